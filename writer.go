/*
Copyright 2024 Tim St. Pierre
4-bit bus protocol between the PCF8574 backpack and the HD44780
*/
package i2clcd

import (
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	// Pins of the PCF8574, as wired on the common backpacks
	RS        = 0
	WR        = 1
	EN        = 2
	BACKLIGHT = 3
	D4        = 4
	D5        = 5
	D6        = 6
	D7        = 7
)

type registerSelect bool

const (
	modeCommand   registerSelect = false
	modeCharacter registerSelect = true
)

func (rs registerSelect) String() string {
	if rs == modeCharacter {
		return "chr"
	}
	return "cmd"
}

// writer pushes bytes to the controller one nibble at a time. It owns no
// display state: the backlight bit is supplied by the caller on every write.
type writer struct {
	ch     Channel
	addr   uint16
	settle time.Duration
	sleep  func(time.Duration)
	log    *log.Entry
}

// nibble returns the three expander bytes that latch the upper four bits of
// value: data lines set, enable high, enable low.
func nibble(value byte, rs registerSelect, backlight bool) [3]byte {
	data := value & 0xF0
	data = pinInterpret(RS, data, bool(rs))
	data = pinInterpret(BACKLIGHT, data, backlight)
	return [3]byte{data, pinInterpret(EN, data, true), data}
}

func (w *writer) writeNibble(value byte, rs registerSelect, backlight bool) error {
	for _, b := range nibble(value, rs, backlight) {
		if err := w.ch.SendByte(w.addr, b); err != nil {
			return &BusError{Err: err}
		}
	}
	w.sleep(w.settle)
	return nil
}

// writeRaw sets the expander outputs without strobing the controller.
func (w *writer) writeRaw(b byte) error {
	w.log.Debugf("Writing raw %08b", b)
	if err := w.ch.SendByte(w.addr, b); err != nil {
		return &BusError{Err: err}
	}
	return nil
}

// writeByte sends the high nibble, then the low nibble.
func (w *writer) writeByte(value byte, rs registerSelect, backlight bool) error {
	w.log.Debugf("Writing %s %08b %#02x", rs, value, value)
	if err := w.writeNibble(value, rs, backlight); err != nil {
		return err
	}
	return w.writeNibble(value<<4, rs, backlight)
}

func pinInterpret(pin, data byte, value bool) byte {
	mask := byte(0x01) << pin
	if value {
		return data | mask
	}
	return data &^ mask
}
