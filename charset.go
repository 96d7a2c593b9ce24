/*
Copyright 2024 Tim St. Pierre
Text to character code translation
*/
package i2clcd

import (
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/width"
)

// Charset selects how Print turns text into character codes.
type Charset int

const (
	// CharsetRaw sends the low byte of every rune.
	CharsetRaw Charset = iota
	// CharsetA00 targets the A00 character ROM: ASCII, half-width katakana
	// and a few symbols. Other runes print as '?'.
	CharsetA00
)

func (c Charset) String() string {
	switch c {
	case CharsetRaw:
		return "raw"
	case CharsetA00:
		return "A00"
	default:
		return "unknown"
	}
}

// A00 moves '\' and '~' away from their ASCII codes.
var a00Symbols = map[rune]byte{
	'¥': 0x5C,
	'→': 0x7E,
	'←': 0x7F,
	'°': 0xDF,
}

// encode returns one character code per display cell.
func (c Charset) encode(text string) []byte {
	out := make([]byte, 0, len(text))
	if c != CharsetA00 {
		for _, r := range text {
			out = append(out, byte(r))
		}
		return out
	}
	sjis := japanese.ShiftJIS.NewEncoder()
	for _, r := range text {
		// Narrow would turn the arrows into their half-width forms.
		if b, ok := a00Symbols[r]; ok {
			out = append(out, b)
			continue
		}
		for _, n := range width.Narrow.String(string(r)) {
			out = append(out, a00Code(sjis, n))
		}
	}
	return out
}

func a00Code(sjis *encoding.Encoder, r rune) byte {
	if b, ok := a00Symbols[r]; ok {
		return b
	}
	if r < 0x80 && r != '\\' && r != '~' {
		return byte(r)
	}
	// Half-width katakana share their single byte Shift JIS codes with the
	// ROM.
	if r >= 0xFF61 && r <= 0xFF9F {
		if b, err := sjis.String(string(r)); err == nil && len(b) == 1 {
			return b[0]
		}
	}
	return '?'
}
