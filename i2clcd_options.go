/*
Copyright 2024 Tim St. Pierre
Options for PCF8574 backed character displays
*/
package i2clcd

import (
	"time"
)

type Opts struct {
	// The I²C bus name as registered in i2creg, empty for the first bus
	Bus string
	// The I²C slave address, 0 for the default
	Addr uint16
	// Display geometry. Rows is 1 to 4.
	Cols uint8
	Rows uint8
	// Pause after every latched nibble
	Settle time.Duration
	// How text passed to Print is turned into character codes
	Charset Charset
}

var DefaultOpts = Opts{
	Bus:     "",
	Addr:    0x27,
	Cols:    16,
	Rows:    2,
	Settle:  2 * time.Millisecond,
	Charset: CharsetRaw,
}

func (o *Opts) i2cAddr() (uint16, error) {
	switch o.Addr {
	case 0:
		// Default address.
		return 0x27, nil
	case 0x20, 0x21, 0x22, 0x23, 0x24, 0x25, 0x26, 0x27:
		// PCF8574
		return o.Addr, nil
	case 0x38, 0x39, 0x3a, 0x3b, 0x3c, 0x3d, 0x3e, 0x3f:
		// PCF8574A
		return o.Addr, nil
	default:
		return 0, &ConfigurationError{Field: "address", Value: int(o.Addr)}
	}
}

func (o *Opts) geometry() (cols, rows int, err error) {
	if o.Rows < 1 || int(o.Rows) > len(lineAddress) {
		return 0, 0, &ConfigurationError{Field: "rows", Value: int(o.Rows)}
	}
	if o.Cols < 1 {
		return 0, 0, &ConfigurationError{Field: "cols", Value: int(o.Cols)}
	}
	return int(o.Cols), int(o.Rows), nil
}

func (o *Opts) settle() time.Duration {
	if o.Settle <= 0 {
		return DefaultOpts.Settle
	}
	return o.Settle
}
