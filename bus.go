/*
Copyright 2024 Tim St. Pierre
I²C transport used by the display
*/
package i2clcd

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// Opener opens the bus channel a Dev talks through. It is called by Begin.
type Opener interface {
	Open(bus string) (Channel, error)
}

// Channel is an open bus. SendByte is one single byte write transaction.
type Channel interface {
	SendByte(addr uint16, b byte) error
	Close() error
}

// PeriphOpener opens buses through periph.io.
type PeriphOpener struct {
	// OpenBus replaces i2creg.Open. When nil the host drivers are loaded
	// first.
	OpenBus func(name string) (i2c.BusCloser, error)
}

func (p *PeriphOpener) Open(bus string) (Channel, error) {
	open := p.OpenBus
	if open == nil {
		if _, err := host.Init(); err != nil {
			return nil, fmt.Errorf("host init: %w", err)
		}
		open = i2creg.Open
	}
	b, err := open(bus)
	if err != nil {
		return nil, err
	}
	return &periphChannel{bus: b}, nil
}

type periphChannel struct {
	bus i2c.BusCloser
	buf [1]byte
}

func (c *periphChannel) SendByte(addr uint16, b byte) error {
	c.buf[0] = b
	return c.bus.Tx(addr, c.buf[:], nil)
}

func (c *periphChannel) Close() error {
	return c.bus.Close()
}

func (c *periphChannel) String() string {
	return c.bus.String()
}

// sharedBus is a bus owned by the caller; closing the channel leaves it open.
type sharedBus struct {
	i2c.Bus
}

func (sharedBus) Close() error {
	return nil
}
