/*
Copyright 2024 Tim St. Pierre
Controls an HD44780 character LCD through a PCF8574 I²C backpack
Thanks to Dave Cheney for figuring out the registers!
*/

// Package i2clcd drives HD44780 character displays wired to a PCF8574 I²C
// GPIO expander, the common "I2C backpack" of 1602 and 2004 modules.
//
// Every operation comes in three forms that put the same bytes on the bus:
// a blocking method (Clear), a callback method (ClearAsync) and a method
// returning a Future (ClearFuture). Operations on one Dev run one at a time
// in the order they were issued.
package i2clcd

import (
	"fmt"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/i2c"
)

const (
	// Commands
	CMD_Clear_Display        = 0x01
	CMD_Return_Home          = 0x02
	CMD_Entry_Mode           = 0x04
	CMD_Display_Control      = 0x08
	CMD_Cursor_Display_Shift = 0x10
	CMD_Function_Set         = 0x20
	CMD_CGRAM_Set            = 0x40
	CMD_DDRAM_Set            = 0x80

	// Options
	OPT_Increment      = 0x02 // CMD_Entry_Mode 0 = right to left
	OPT_Cursor_Shift   = 0x01 // CMD_Entry_Mode
	OPT_Enable_Display = 0x04 // CMD_Display_Control
	OPT_Enable_Cursor  = 0x02 // CMD_Display_Control
	OPT_Enable_Blink   = 0x01 // CMD_Display_Control
	OPT_Display_Shift  = 0x08 // CMD_Cursor_Display_Shift 0 = move cursor
	OPT_Shift_Right    = 0x04 // CMD_Cursor_Display_Shift 0 = Left
	OPT_8_Bit          = 0x10 // CMD_Function_Set 0 = 4 bit
	OPT_2_Lines        = 0x08 // CMD_Function_Set 0 = 1 line
	OPT_5x10_Dots      = 0x04 // CMD_Function_Set 0 = 5x7 dots
)

// DDRAM set commands for the first cell of each row.
var lineAddress = [4]byte{0x80, 0xC0, 0x94, 0xD4}

// Sent through the nibble writer only: the controller is still in 8 bit
// mode and latches the upper half of each.
var initNibbles = []byte{
	0x33,
	0x32,
	0x06,
	0x28,
	0x01,
	CMD_Function_Set | OPT_2_Lines | OPT_5x10_Dots,
}

var initCommands = []byte{
	CMD_Display_Control | OPT_Enable_Display,
	CMD_Entry_Mode | OPT_Increment,
	CMD_Clear_Display,
}

// State is the lifecycle of a Dev.
type State int32

const (
	StateUninitialized State = iota
	StateBegun
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateBegun:
		return "begun"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Dev is one display. It owns its expander address exclusively; two Dev on
// the same address corrupt each other's nibbles.
type Dev struct {
	opts   Opts
	addr   uint16
	cols   int
	rows   int
	opener Opener
	state  atomic.Int32

	// Only touched from the executor.
	cursor      bool
	blink       bool
	backlight   bool
	rightToLeft bool
	autoscroll  bool
	w           writer

	exec      executor
	callbacks executor
	log       *log.Entry
}

// New returns a display that opens its bus through o when Begin is called.
//
// Use default options if nil is used.
func New(o Opener, opts *Opts) (*Dev, error) {
	if o == nil {
		return nil, errNoOpener
	}
	if opts == nil {
		opts = &DefaultOpts
	}
	addr, err := opts.i2cAddr()
	if err != nil {
		return nil, err
	}
	cols, rows, err := opts.geometry()
	if err != nil {
		return nil, err
	}
	d := &Dev{
		opts:      *opts,
		addr:      addr,
		cols:      cols,
		rows:      rows,
		opener:    o,
		backlight: true,
		log: log.WithFields(log.Fields{
			"bus":  opts.Bus,
			"addr": fmt.Sprintf("%#x", addr),
		}),
	}
	d.w = writer{
		addr:   addr,
		settle: opts.settle(),
		sleep:  time.Sleep,
		log:    d.log,
	}
	return d, nil
}

// NewI2C returns a display on a bus the caller already opened. Close leaves
// the bus open.
//
// Use default options if nil is used.
func NewI2C(b i2c.Bus, opts *Opts) (*Dev, error) {
	return New(&PeriphOpener{
		OpenBus: func(string) (i2c.BusCloser, error) {
			return sharedBus{b}, nil
		},
	}, opts)
}

// NewHost returns a display on the bus named by opts.Bus, opened through the
// periph.io host drivers when Begin is called.
func NewHost(opts *Opts) (*Dev, error) {
	return New(&PeriphOpener{}, opts)
}

func (d *Dev) String() string {
	return fmt.Sprintf("i2clcd{%q %#x %dx%d}", d.opts.Bus, d.addr, d.cols, d.rows)
}

// State returns the lifecycle state reached by the operations completed so
// far.
func (d *Dev) State() State {
	return State(d.state.Load())
}

func (d *Dev) setState(s State) {
	d.state.Store(int32(s))
}

func (d *Dev) Cols() int {
	return d.cols
}

func (d *Dev) Rows() int {
	return d.rows
}

func (d *Dev) command(value byte) error {
	return d.w.writeByte(value, modeCommand, d.backlight)
}

func (d *Dev) char(value byte) error {
	return d.w.writeByte(value, modeCharacter, d.backlight)
}

func (d *Dev) displayControl() byte {
	option := byte(CMD_Display_Control | OPT_Enable_Display)
	if d.cursor {
		option |= OPT_Enable_Cursor
	}
	if d.blink {
		option |= OPT_Enable_Blink
	}
	return option
}

func (d *Dev) entryMode() byte {
	option := byte(CMD_Entry_Mode)
	if !d.rightToLeft {
		option |= OPT_Increment
	}
	if d.autoscroll {
		option |= OPT_Cursor_Shift
	}
	return option
}

func (d *Dev) begin() error {
	ch, err := d.opener.Open(d.opts.Bus)
	if err != nil {
		return &BusError{Err: err}
	}
	if ch == nil {
		return &BusError{Err: errNoChannel}
	}
	d.w.ch = ch
	if err := d.initialize(); err != nil {
		if cerr := ch.Close(); cerr != nil {
			d.log.WithError(cerr).Warn("Closing bus after failed init")
		}
		d.w.ch = nil
		return err
	}
	d.setState(StateBegun)
	d.log.Info("Display initialized")
	return nil
}

func (d *Dev) initialize() error {
	for _, b := range initNibbles {
		if err := d.w.writeNibble(b, modeCommand, d.backlight); err != nil {
			return err
		}
	}
	for _, b := range initCommands {
		if err := d.command(b); err != nil {
			return err
		}
	}
	// The backlight bit, sent as a character.
	return d.char(pinInterpret(BACKLIGHT, 0, d.backlight))
}

func (d *Dev) close() error {
	err := d.w.ch.Close()
	d.w.ch = nil
	d.setState(StateClosed)
	d.log.Info("Display closed")
	if err != nil {
		return &BusError{Err: err}
	}
	return nil
}

func (d *Dev) setCursor(col, row int) error {
	if row < 0 || row >= d.rows {
		return &ConfigurationError{Field: "row", Value: row}
	}
	// Columns are not checked; past the end the address runs into the next
	// row or wraps.
	return d.command(CMD_DDRAM_Set | (lineAddress[row] + byte(col)))
}

func (d *Dev) print(codes []byte) error {
	for _, c := range codes {
		if err := d.char(c); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dev) printLine(row int, text string) error {
	if row < 0 || row >= d.rows {
		return nil
	}
	codes := d.opts.Charset.encode(text)
	if len(codes) > d.cols {
		codes = codes[:d.cols]
	}
	if err := d.command(lineAddress[row]); err != nil {
		return err
	}
	return d.print(codes)
}

func (d *Dev) setCursorVisible(on bool) error {
	d.cursor = on
	return d.command(d.displayControl())
}

func (d *Dev) setBlink(on bool) error {
	d.blink = on
	return d.command(d.displayControl())
}

// The backlight shares the expander with the data lines, so it follows the
// display state in every byte written from now on.
func (d *Dev) setDisplay(on bool) error {
	d.backlight = on
	option := byte(CMD_Display_Control)
	if on {
		option |= OPT_Enable_Display
	}
	return d.command(option)
}

func (d *Dev) setDirection(rightToLeft bool) error {
	d.rightToLeft = rightToLeft
	return d.command(d.entryMode())
}

func (d *Dev) setAutoscroll(on bool) error {
	d.autoscroll = on
	return d.command(d.entryMode())
}

// setBacklight writes the backlight pin alone; the controller sees no
// enable pulse.
func (d *Dev) setBacklight(on bool) error {
	d.backlight = on
	return d.w.writeRaw(pinInterpret(BACKLIGHT, 0, on))
}

func (d *Dev) createChar(slot int, pattern [8]byte) error {
	if err := d.command(CMD_CGRAM_Set | byte(slot&7)<<3); err != nil {
		return err
	}
	if err := d.print(pattern[:]); err != nil {
		return err
	}
	return d.command(CMD_DDRAM_Set)
}

// Begin opens the bus and runs the 4 bit initialization sequence. It fails
// with a LifecycleError if the display is already initialized. After Close
// it may be called again.
func (d *Dev) Begin() error {
	return d.BeginFuture().Wait()
}

func (d *Dev) BeginAsync(cb func(error)) {
	d.async(d.beginOp(), cb)
}

func (d *Dev) BeginFuture() *Future {
	return d.future(d.beginOp())
}

func (d *Dev) beginOp() operation {
	return operation{"Begin", needNotBegun, d.begin}
}

// Close closes the bus. Cursor, blink and backlight settings are kept for a
// later Begin.
func (d *Dev) Close() error {
	return d.CloseFuture().Wait()
}

func (d *Dev) CloseAsync(cb func(error)) {
	d.async(d.closeOp(), cb)
}

func (d *Dev) CloseFuture() *Future {
	return d.future(d.closeOp())
}

func (d *Dev) closeOp() operation {
	return operation{"Close", needBegun, d.close}
}

// Clear blanks the display and returns the cursor home.
func (d *Dev) Clear() error {
	return d.ClearFuture().Wait()
}

func (d *Dev) ClearAsync(cb func(error)) {
	d.async(d.clearOp(), cb)
}

func (d *Dev) ClearFuture() *Future {
	return d.future(d.clearOp())
}

func (d *Dev) clearOp() operation {
	return d.commandOp("Clear", CMD_Clear_Display)
}

// Home moves the cursor to the first cell of the first row.
func (d *Dev) Home() error {
	return d.HomeFuture().Wait()
}

func (d *Dev) HomeAsync(cb func(error)) {
	d.async(d.homeOp(), cb)
}

func (d *Dev) HomeFuture() *Future {
	return d.future(d.homeOp())
}

func (d *Dev) homeOp() operation {
	return d.commandOp("Home", CMD_DDRAM_Set)
}

// SetCursor moves the cursor, top left is 0,0. A row outside the display is
// a ConfigurationError.
func (d *Dev) SetCursor(col, row int) error {
	return d.SetCursorFuture(col, row).Wait()
}

func (d *Dev) SetCursorAsync(col, row int, cb func(error)) {
	d.async(d.setCursorOp(col, row), cb)
}

func (d *Dev) SetCursorFuture(col, row int) *Future {
	return d.future(d.setCursorOp(col, row))
}

func (d *Dev) setCursorOp(col, row int) operation {
	return operation{"SetCursor", needBegun, func() error {
		return d.setCursor(col, row)
	}}
}

// Print writes text at the cursor. On failure the characters before the
// failing one stay on the display.
func (d *Dev) Print(text string) error {
	return d.PrintFuture(text).Wait()
}

func (d *Dev) PrintAsync(text string, cb func(error)) {
	d.async(d.printOp(text), cb)
}

func (d *Dev) PrintFuture(text string) *Future {
	return d.future(d.printOp(text))
}

func (d *Dev) printOp(text string) operation {
	return operation{"Print", needBegun, func() error {
		return d.print(d.opts.Charset.encode(text))
	}}
}

// PrintLine writes text from the start of row, cut to the display width.
// Nothing happens for a row the display does not have.
func (d *Dev) PrintLine(row int, text string) error {
	return d.PrintLineFuture(row, text).Wait()
}

func (d *Dev) PrintLineAsync(row int, text string, cb func(error)) {
	d.async(d.printLineOp(row, text), cb)
}

func (d *Dev) PrintLineFuture(row int, text string) *Future {
	return d.future(d.printLineOp(row, text))
}

func (d *Dev) printLineOp(row int, text string) operation {
	return operation{"PrintLine", needBegun, func() error {
		return d.printLine(row, text)
	}}
}

// Cursor shows the underline cursor.
func (d *Dev) Cursor() error {
	return d.CursorFuture().Wait()
}

func (d *Dev) CursorAsync(cb func(error)) {
	d.async(d.cursorOp(true), cb)
}

func (d *Dev) CursorFuture() *Future {
	return d.future(d.cursorOp(true))
}

func (d *Dev) NoCursor() error {
	return d.NoCursorFuture().Wait()
}

func (d *Dev) NoCursorAsync(cb func(error)) {
	d.async(d.cursorOp(false), cb)
}

func (d *Dev) NoCursorFuture() *Future {
	return d.future(d.cursorOp(false))
}

func (d *Dev) cursorOp(on bool) operation {
	return operation{toggleName("Cursor", on), needBegun, func() error {
		return d.setCursorVisible(on)
	}}
}

// Blink makes the cursor cell blink.
func (d *Dev) Blink() error {
	return d.BlinkFuture().Wait()
}

func (d *Dev) BlinkAsync(cb func(error)) {
	d.async(d.blinkOp(true), cb)
}

func (d *Dev) BlinkFuture() *Future {
	return d.future(d.blinkOp(true))
}

func (d *Dev) NoBlink() error {
	return d.NoBlinkFuture().Wait()
}

func (d *Dev) NoBlinkAsync(cb func(error)) {
	d.async(d.blinkOp(false), cb)
}

func (d *Dev) NoBlinkFuture() *Future {
	return d.future(d.blinkOp(false))
}

func (d *Dev) blinkOp(on bool) operation {
	return operation{toggleName("Blink", on), needBegun, func() error {
		return d.setBlink(on)
	}}
}

// Display turns the display and the backlight on.
func (d *Dev) Display() error {
	return d.DisplayFuture().Wait()
}

func (d *Dev) DisplayAsync(cb func(error)) {
	d.async(d.displayOp(true), cb)
}

func (d *Dev) DisplayFuture() *Future {
	return d.future(d.displayOp(true))
}

// NoDisplay turns the display and the backlight off. The content is kept.
func (d *Dev) NoDisplay() error {
	return d.NoDisplayFuture().Wait()
}

func (d *Dev) NoDisplayAsync(cb func(error)) {
	d.async(d.displayOp(false), cb)
}

func (d *Dev) NoDisplayFuture() *Future {
	return d.future(d.displayOp(false))
}

func (d *Dev) displayOp(on bool) operation {
	return operation{toggleName("Display", on), needBegun, func() error {
		return d.setDisplay(on)
	}}
}

// Backlight turns the backlight on and leaves the display as it is.
func (d *Dev) Backlight() error {
	return d.BacklightFuture().Wait()
}

func (d *Dev) BacklightAsync(cb func(error)) {
	d.async(d.backlightOp(true), cb)
}

func (d *Dev) BacklightFuture() *Future {
	return d.future(d.backlightOp(true))
}

func (d *Dev) NoBacklight() error {
	return d.NoBacklightFuture().Wait()
}

func (d *Dev) NoBacklightAsync(cb func(error)) {
	d.async(d.backlightOp(false), cb)
}

func (d *Dev) NoBacklightFuture() *Future {
	return d.future(d.backlightOp(false))
}

func (d *Dev) backlightOp(on bool) operation {
	return operation{toggleName("Backlight", on), needBegun, func() error {
		return d.setBacklight(on)
	}}
}

func (d *Dev) ScrollDisplayLeft() error {
	return d.ScrollDisplayLeftFuture().Wait()
}

func (d *Dev) ScrollDisplayLeftAsync(cb func(error)) {
	d.async(d.scrollLeftOp(), cb)
}

func (d *Dev) ScrollDisplayLeftFuture() *Future {
	return d.future(d.scrollLeftOp())
}

func (d *Dev) scrollLeftOp() operation {
	return d.commandOp("ScrollDisplayLeft", CMD_Cursor_Display_Shift|OPT_Display_Shift)
}

func (d *Dev) ScrollDisplayRight() error {
	return d.ScrollDisplayRightFuture().Wait()
}

func (d *Dev) ScrollDisplayRightAsync(cb func(error)) {
	d.async(d.scrollRightOp(), cb)
}

func (d *Dev) ScrollDisplayRightFuture() *Future {
	return d.future(d.scrollRightOp())
}

func (d *Dev) scrollRightOp() operation {
	return d.commandOp("ScrollDisplayRight", CMD_Cursor_Display_Shift|OPT_Display_Shift|OPT_Shift_Right)
}

// MoveCursorLeft moves the cursor one cell without writing.
func (d *Dev) MoveCursorLeft() error {
	return d.MoveCursorLeftFuture().Wait()
}

func (d *Dev) MoveCursorLeftAsync(cb func(error)) {
	d.async(d.moveLeftOp(), cb)
}

func (d *Dev) MoveCursorLeftFuture() *Future {
	return d.future(d.moveLeftOp())
}

func (d *Dev) moveLeftOp() operation {
	return d.commandOp("MoveCursorLeft", CMD_Cursor_Display_Shift)
}

func (d *Dev) MoveCursorRight() error {
	return d.MoveCursorRightFuture().Wait()
}

func (d *Dev) MoveCursorRightAsync(cb func(error)) {
	d.async(d.moveRightOp(), cb)
}

func (d *Dev) MoveCursorRightFuture() *Future {
	return d.future(d.moveRightOp())
}

func (d *Dev) moveRightOp() operation {
	return d.commandOp("MoveCursorRight", CMD_Cursor_Display_Shift|OPT_Shift_Right)
}

// LeftToRight makes the cursor advance to the right after each character.
func (d *Dev) LeftToRight() error {
	return d.LeftToRightFuture().Wait()
}

func (d *Dev) LeftToRightAsync(cb func(error)) {
	d.async(d.directionOp(false), cb)
}

func (d *Dev) LeftToRightFuture() *Future {
	return d.future(d.directionOp(false))
}

// RightToLeft makes the cursor advance to the left after each character.
func (d *Dev) RightToLeft() error {
	return d.RightToLeftFuture().Wait()
}

func (d *Dev) RightToLeftAsync(cb func(error)) {
	d.async(d.directionOp(true), cb)
}

func (d *Dev) RightToLeftFuture() *Future {
	return d.future(d.directionOp(true))
}

func (d *Dev) directionOp(rightToLeft bool) operation {
	name := "LeftToRight"
	if rightToLeft {
		name = "RightToLeft"
	}
	return operation{name, needBegun, func() error {
		return d.setDirection(rightToLeft)
	}}
}

// Autoscroll shifts the whole display on each character instead of moving
// the cursor, so text appears to flow in from the side.
func (d *Dev) Autoscroll() error {
	return d.AutoscrollFuture().Wait()
}

func (d *Dev) AutoscrollAsync(cb func(error)) {
	d.async(d.autoscrollOp(true), cb)
}

func (d *Dev) AutoscrollFuture() *Future {
	return d.future(d.autoscrollOp(true))
}

func (d *Dev) NoAutoscroll() error {
	return d.NoAutoscrollFuture().Wait()
}

func (d *Dev) NoAutoscrollAsync(cb func(error)) {
	d.async(d.autoscrollOp(false), cb)
}

func (d *Dev) NoAutoscrollFuture() *Future {
	return d.future(d.autoscrollOp(false))
}

func (d *Dev) autoscrollOp(on bool) operation {
	return operation{toggleName("Autoscroll", on), needBegun, func() error {
		return d.setAutoscroll(on)
	}}
}

// CreateChar stores an 5x8 glyph in one of the 8 CGRAM slots, then moves
// the cursor home. Print the slot number to show it.
func (d *Dev) CreateChar(slot int, pattern [8]byte) error {
	return d.CreateCharFuture(slot, pattern).Wait()
}

func (d *Dev) CreateCharAsync(slot int, pattern [8]byte, cb func(error)) {
	d.async(d.createCharOp(slot, pattern), cb)
}

func (d *Dev) CreateCharFuture(slot int, pattern [8]byte) *Future {
	return d.future(d.createCharOp(slot, pattern))
}

func (d *Dev) createCharOp(slot int, pattern [8]byte) operation {
	return operation{"CreateChar", needBegun, func() error {
		return d.createChar(slot, pattern)
	}}
}

// Write sends p as character codes, without charset translation.
func (d *Dev) Write(p []byte) (int, error) {
	n := 0
	err := d.future(operation{"Write", needBegun, func() error {
		for _, c := range p {
			if err := d.char(c); err != nil {
				return err
			}
			n++
		}
		return nil
	}}).Wait()
	return n, err
}

// Halt turns the display and the backlight off if the display is
// initialized.
func (d *Dev) Halt() error {
	return d.future(operation{"Halt", anyState, func() error {
		if d.State() != StateBegun {
			return nil
		}
		return d.setDisplay(false)
	}}).Wait()
}

func (d *Dev) commandOp(name string, value byte) operation {
	return operation{name, needBegun, func() error {
		return d.command(value)
	}}
}

func toggleName(name string, on bool) string {
	if on {
		return name
	}
	return "No" + name
}

var _ conn.Resource = &Dev{}
