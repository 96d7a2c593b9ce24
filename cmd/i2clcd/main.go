/*
Copyright 2024 Tim St. Pierre
Prints lines of text on a PCF8574 backed character LCD
*/
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	log "github.com/sirupsen/logrus"

	"github.com/tstpierre-tc/i2clcd"
)

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "i2clcd: %s.\n", err)
		os.Exit(1)
	}
}

func mainImpl() error {
	opts := i2clcd.DefaultOpts
	bus := flag.String("b", opts.Bus, "I²C bus to use")
	addr := flag.String("a", "0x27", "expander address")
	cols := flag.Uint("cols", uint(opts.Cols), "display columns")
	rows := flag.Uint("rows", uint(opts.Rows), "display rows")
	a00 := flag.Bool("a00", false, "translate text for the A00 character ROM")
	cursor := flag.Bool("cursor", false, "show a blinking cursor after the text")
	off := flag.Bool("off", false, "turn the display and backlight off and exit")
	verbose := flag.Bool("v", false, "verbose mode")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: i2clcd [flags] [line...]\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	a, err := strconv.ParseUint(*addr, 0, 7)
	if err != nil {
		return fmt.Errorf("invalid address %q: %w", *addr, err)
	}
	opts.Bus = *bus
	opts.Addr = uint16(a)
	opts.Cols = uint8(*cols)
	opts.Rows = uint8(*rows)
	if *a00 {
		opts.Charset = i2clcd.CharsetA00
	}

	dev, err := i2clcd.NewHost(&opts)
	if err != nil {
		return err
	}
	log.Infof("Using %s", dev)

	c := dev.Chain().Begin()
	if *off {
		return c.NoDisplay().Close().Err()
	}
	c.Clear()
	for row, line := range flag.Args() {
		if row >= dev.Rows() {
			log.Warnf("Dropping line %d, the display has %d rows", row+1, dev.Rows())
			break
		}
		c.PrintLine(row, line)
	}
	if *cursor {
		c.Cursor().Blink()
	}
	return c.Close().Err()
}
