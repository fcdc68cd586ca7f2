// Copyright © 2025 Texelgrid contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: session/serialize.go
// Summary: Turns an ordered update list into a minimal ANSI escape stream.

package session

import (
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/framegrace/texelgrid/grid"
	"github.com/mattn/go-runewidth"
)

const (
	seqSyncBegin = "\x1b[?2026h"
	seqSyncEnd   = "\x1b[?2026l"
	seqSGRReset  = "\x1b[0m"
)

// serialize builds the escape stream for one flush into s.out. Updates
// are consumed in the diff's row-major order; cursor moves are elided
// when the terminal's natural advance already lands on the next cell,
// and a style group is only emitted when it differs from the last one.
// Changing any of fg/bg/attrs re-emits the whole group because SGR
// resets are not independently addressable. The stream is wrapped in
// synchronized-update guards and always ends with a full reset.
func (s *Session) serialize(updates []grid.Update) {
	s.out.Reset()
	s.out.WriteString(seqSyncBegin)

	lastX, lastY := -2, -2
	var lastStyle grid.Style
	styleValid := false

	var scratch [utf8.UTFMax]byte
	for _, u := range updates {
		// The spacer half of a wide glyph carries no character of its
		// own; the glyph in the cell before it already painted this
		// column and advanced the cursor across it.
		if u.Cell.IsSpacer() {
			continue
		}

		if u.Y != lastY || u.X != lastX+1 {
			fmt.Fprintf(&s.out, "\x1b[%d;%dH", u.Y+1, u.X+1)
		}

		if !styleValid || u.Cell.Style != lastStyle {
			writeSGR(&s.out, u.Cell.Style)
			lastStyle = u.Cell.Style
			styleValid = true
		}

		ch := u.Cell.Ch
		switch {
		case ch < 0x80 && ch >= 0x20:
			s.out.WriteByte(byte(ch))
		case utf8.ValidRune(ch) && ch >= 0x20:
			n := utf8.EncodeRune(scratch[:], ch)
			s.out.Write(scratch[:n])
		default:
			// Unencodable content degrades to a placeholder; a frame is
			// never aborted for one bad cell.
			s.out.WriteByte('?')
		}

		// Account the shadow cursor in measured glyph columns so the
		// cell after a double-width rune is still recognized as
		// auto-advanced onto.
		w := runewidth.RuneWidth(ch)
		if w < 1 {
			w = 1
		}
		lastX = u.X + w - 1
		lastY = u.Y
	}

	s.out.WriteString(seqSGRReset)
	s.out.WriteString(seqSyncEnd)
}

// writeSGR emits one combined style group: a full reset followed by
// foreground, background and attribute parameters in a single sequence.
func writeSGR(out interface{ WriteString(string) (int, error) }, style grid.Style) {
	seq := "\x1b[0"
	seq += colorParams(style.Fg, false)
	seq += colorParams(style.Bg, true)
	seq += attrParams(style.Attrs)
	seq += "m"
	out.WriteString(seq) //nolint:errcheck
}

func colorParams(c grid.Color, background bool) string {
	switch c.Model {
	case grid.ColorModelANSI16:
		n := int(c.Value & 0x0F)
		base := 30
		if n >= 8 {
			base = 90
			n -= 8
		}
		if background {
			base += 10
		}
		return ";" + strconv.Itoa(base+n)
	case grid.ColorModelANSI256:
		if background {
			return ";48;5;" + strconv.Itoa(int(c.Value&0xFF))
		}
		return ";38;5;" + strconv.Itoa(int(c.Value&0xFF))
	case grid.ColorModelRGB:
		r := int(c.Value >> 16 & 0xFF)
		g := int(c.Value >> 8 & 0xFF)
		b := int(c.Value & 0xFF)
		prefix := ";38;2;"
		if background {
			prefix = ";48;2;"
		}
		return prefix + strconv.Itoa(r) + ";" + strconv.Itoa(g) + ";" + strconv.Itoa(b)
	default:
		// The leading full reset already selected the default colour.
		return ""
	}
}

var attrCodes = []struct {
	attr grid.AttrMask
	code string
}{
	{grid.AttrBold, ";1"},
	{grid.AttrDim, ";2"},
	{grid.AttrItalic, ";3"},
	{grid.AttrUnderline, ";4"},
	{grid.AttrBlink, ";5"},
	{grid.AttrRapidBlink, ";6"},
	{grid.AttrReverse, ";7"},
	{grid.AttrHidden, ";8"},
	{grid.AttrStrikethrough, ";9"},
}

func attrParams(attrs grid.AttrMask) string {
	if attrs == 0 {
		return ""
	}
	var seq string
	for _, ac := range attrCodes {
		if attrs&ac.attr != 0 {
			seq += ac.code
		}
	}
	return seq
}
