// Copyright © 2025 Texelgrid contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: term/parse.go
// Summary: Decodes raw terminal input bytes into typed events for the unix backend.

package term

import (
	"bytes"
	"strconv"
	"strings"
	"unicode/utf8"
)

// inputParser converts the raw byte stream of a terminal in raw mode into
// typed events: plain runes, control keys, CSI/SS3 escape sequences, SGR
// mouse reports, focus reports, bracketed paste blocks and kitty CSI-u
// key reports. Incomplete sequences stay buffered until more bytes
// arrive or the backend decides the sequence will never complete.
type inputParser struct {
	buf      []byte
	pasting  bool
	pasteBuf []byte

	// Probe bookkeeping: replies to the kitty keyboard query and the
	// primary device-attributes query are consumed here, never surfaced
	// as events.
	sawKittyReply bool
	sawDAReply    bool
}

func (p *inputParser) feed(data []byte) {
	p.buf = append(p.buf, data...)
}

func (p *inputParser) empty() bool {
	return len(p.buf) == 0 && !p.pasting
}

// pendingEscape reports whether the buffer holds what may be the start
// of an incomplete escape sequence.
func (p *inputParser) pendingEscape() bool {
	return len(p.buf) > 0 && p.buf[0] == 0x1b
}

var pasteEnd = []byte("\x1b[201~")

// next extracts one event from the buffer. ok is false when no complete
// event is available; needMore distinguishes "waiting for additional
// bytes" from "buffer empty".
func (p *inputParser) next() (ev Event, ok bool, needMore bool) {
	for {
		if p.pasting {
			if i := bytes.Index(p.buf, pasteEnd); i >= 0 {
				p.pasteBuf = append(p.pasteBuf, p.buf[:i]...)
				p.buf = p.buf[i+len(pasteEnd):]
				p.pasting = false
				text := string(p.pasteBuf)
				p.pasteBuf = nil
				return EventPaste{Text: text}, true, false
			}
			// Keep a partial terminator at the tail so it can match later.
			keep := len(p.buf)
			for k := 1; k < len(pasteEnd) && k <= len(p.buf); k++ {
				if bytes.HasPrefix(pasteEnd, p.buf[len(p.buf)-k:]) {
					keep = len(p.buf) - k
				}
			}
			p.pasteBuf = append(p.pasteBuf, p.buf[:keep]...)
			p.buf = p.buf[keep:]
			return nil, false, true
		}

		if len(p.buf) == 0 {
			return nil, false, false
		}

		b := p.buf[0]
		switch {
		case b == 0x1b:
			ev, ok, needMore := p.parseEscape()
			if needMore {
				return nil, false, true
			}
			if ok {
				return ev, true, false
			}
			continue // sequence consumed without producing an event
		case b == '\r' || b == '\n':
			p.buf = p.buf[1:]
			return EventKey{Key: KeyEnter}, true, false
		case b == '\t':
			p.buf = p.buf[1:]
			return EventKey{Key: KeyTab}, true, false
		case b == 0x7f || b == 0x08:
			p.buf = p.buf[1:]
			return EventKey{Key: KeyBackspace}, true, false
		case b < 0x20:
			p.buf = p.buf[1:]
			if b == 0 {
				continue
			}
			return EventKey{Key: KeyRune, Ch: rune('a' + b - 1), Mod: ModCtrl}, true, false
		default:
			if !utf8.FullRune(p.buf) {
				if len(p.buf) < utf8.UTFMax {
					return nil, false, true
				}
				p.buf = p.buf[1:] // invalid byte, drop it
				continue
			}
			r, n := utf8.DecodeRune(p.buf)
			p.buf = p.buf[n:]
			if r == utf8.RuneError && n == 1 {
				continue
			}
			return EventKey{Key: KeyRune, Ch: r}, true, false
		}
	}
}

// flushEscape resolves a buffered lone ESC (or ESC+rune) that no further
// bytes will complete, called after the escape-disambiguation poll
// timed out.
func (p *inputParser) flushEscape() (Event, bool) {
	if len(p.buf) == 0 || p.buf[0] != 0x1b {
		return nil, false
	}
	if len(p.buf) == 1 {
		p.buf = nil
		return EventKey{Key: KeyEscape}, true
	}
	// ESC followed by a printable rune is Alt+rune.
	r, n := utf8.DecodeRune(p.buf[1:])
	if r != utf8.RuneError && r >= 0x20 && r != '[' && r != 'O' {
		p.buf = p.buf[1+n:]
		return EventKey{Key: KeyRune, Ch: r, Mod: ModAlt}, true
	}
	p.buf = p.buf[1:]
	return EventKey{Key: KeyEscape}, true
}

func (p *inputParser) parseEscape() (ev Event, ok bool, needMore bool) {
	if len(p.buf) < 2 {
		return nil, false, true
	}
	switch p.buf[1] {
	case '[':
		return p.parseCSI()
	case 'O':
		if len(p.buf) < 3 {
			return nil, false, true
		}
		final := p.buf[2]
		p.buf = p.buf[3:]
		if key, found := ss3Keys[final]; found {
			return EventKey{Key: key}, true, false
		}
		return nil, false, false
	case 0x1b:
		// ESC ESC: deliver the first as a bare escape.
		p.buf = p.buf[1:]
		return EventKey{Key: KeyEscape}, true, false
	default:
		r, n := utf8.DecodeRune(p.buf[1:])
		if r == utf8.RuneError && n < 2 && !utf8.FullRune(p.buf[1:]) {
			return nil, false, true
		}
		p.buf = p.buf[1+n:]
		if r >= 0x20 {
			return EventKey{Key: KeyRune, Ch: r, Mod: ModAlt}, true, false
		}
		return nil, false, false
	}
}

var ss3Keys = map[byte]Key{
	'A': KeyUp, 'B': KeyDown, 'C': KeyRight, 'D': KeyLeft,
	'H': KeyHome, 'F': KeyEnd,
	'P': KeyF1, 'Q': KeyF2, 'R': KeyF3, 'S': KeyF4,
}

var tildeKeys = map[int]Key{
	1: KeyHome, 2: KeyInsert, 3: KeyDelete, 4: KeyEnd,
	5: KeyPgUp, 6: KeyPgDn, 7: KeyHome, 8: KeyEnd,
	11: KeyF1, 12: KeyF2, 13: KeyF3, 14: KeyF4, 15: KeyF5,
	17: KeyF6, 18: KeyF7, 19: KeyF8, 20: KeyF9, 21: KeyF10,
	23: KeyF11, 24: KeyF12,
}

func (p *inputParser) parseCSI() (ev Event, ok bool, needMore bool) {
	// Locate the final byte (0x40-0x7e) after the parameter bytes.
	end := -1
	for i := 2; i < len(p.buf); i++ {
		if p.buf[i] >= 0x40 && p.buf[i] <= 0x7e {
			end = i
			break
		}
	}
	if end < 0 {
		return nil, false, true
	}
	params := string(p.buf[2:end])
	final := p.buf[end]
	p.buf = p.buf[end+1:]

	switch final {
	case 'A', 'B', 'C', 'D', 'H', 'F':
		key := map[byte]Key{
			'A': KeyUp, 'B': KeyDown, 'C': KeyRight, 'D': KeyLeft,
			'H': KeyHome, 'F': KeyEnd,
		}[final]
		return EventKey{Key: key, Mod: csiModifier(params)}, true, false
	case 'Z':
		return EventKey{Key: KeyBacktab, Mod: ModShift}, true, false
	case '~':
		parts := strings.Split(params, ";")
		code, _ := strconv.Atoi(parts[0])
		if code == 200 {
			p.pasting = true
			return nil, false, false
		}
		if key, found := tildeKeys[code]; found {
			return EventKey{Key: key, Mod: csiModifier(params)}, true, false
		}
		return nil, false, false
	case 'M', 'm':
		if strings.HasPrefix(params, "<") {
			return parseSGRMouse(params[1:], final == 'm')
		}
		return nil, false, false
	case 'I':
		return EventFocus{Focused: true}, true, false
	case 'O':
		return EventFocus{Focused: false}, true, false
	case 'u':
		if strings.HasPrefix(params, "?") {
			p.sawKittyReply = true
			return nil, false, false
		}
		return parseKittyKey(params)
	case 'c':
		if strings.HasPrefix(params, "?") {
			p.sawDAReply = true
		}
		return nil, false, false
	default:
		return nil, false, false
	}
}

// csiModifier extracts the xterm-style modifier parameter, encoded as
// 1 + bitmask (shift=1, alt=2, ctrl=4, super=8), from "sel;mod" params.
func csiModifier(params string) ModMask {
	parts := strings.Split(params, ";")
	if len(parts) < 2 {
		return 0
	}
	return decodeModifier(parts[1])
}

func decodeModifier(field string) ModMask {
	n, err := strconv.Atoi(field)
	if err != nil || n < 2 {
		return 0
	}
	bits := n - 1
	var mod ModMask
	if bits&1 != 0 {
		mod |= ModShift
	}
	if bits&2 != 0 {
		mod |= ModAlt
	}
	if bits&4 != 0 {
		mod |= ModCtrl
	}
	if bits&8 != 0 {
		mod |= ModSuper
	}
	return mod
}

func parseSGRMouse(params string, release bool) (Event, bool, bool) {
	parts := strings.Split(params, ";")
	if len(parts) != 3 {
		return nil, false, false
	}
	btn, err1 := strconv.Atoi(parts[0])
	x, err2 := strconv.Atoi(parts[1])
	y, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return nil, false, false
	}

	ev := EventMouse{X: x - 1, Y: y - 1}
	if btn&4 != 0 {
		ev.Mod |= ModShift
	}
	if btn&8 != 0 {
		ev.Mod |= ModAlt
	}
	if btn&16 != 0 {
		ev.Mod |= ModCtrl
	}

	switch {
	case btn&64 != 0:
		if btn&1 == 0 {
			ev.Button = MouseWheelUp
		} else {
			ev.Button = MouseWheelDown
		}
		ev.Action = MousePress
	default:
		switch btn & 3 {
		case 0:
			ev.Button = MouseLeft
		case 1:
			ev.Button = MouseMiddle
		case 2:
			ev.Button = MouseRight
		case 3:
			ev.Button = MouseNone
		}
		switch {
		case btn&32 != 0:
			ev.Action = MouseMotion
		case release:
			ev.Action = MouseRelease
		default:
			ev.Action = MousePress
		}
	}
	return ev, true, false
}

// parseKittyKey decodes a kitty CSI-u key report:
// codepoint[:alternates];modifiers[:event-type]u.
func parseKittyKey(params string) (Event, bool, bool) {
	parts := strings.Split(params, ";")
	cpField := strings.Split(parts[0], ":")[0]
	cp, err := strconv.Atoi(cpField)
	if err != nil {
		return nil, false, false
	}

	ev := EventKey{Action: KeyPress}
	if len(parts) > 1 {
		modParts := strings.Split(parts[1], ":")
		ev.Mod = decodeModifier(modParts[0])
		if len(modParts) > 1 {
			switch modParts[1] {
			case "2":
				ev.Action = KeyRepeat
			case "3":
				ev.Action = KeyRelease
			}
		}
	}

	switch cp {
	case 13:
		ev.Key = KeyEnter
	case 9:
		ev.Key = KeyTab
	case 27:
		ev.Key = KeyEscape
	case 127:
		ev.Key = KeyBackspace
	default:
		ev.Key = KeyRune
		ev.Ch = rune(cp)
	}
	return ev, true, false
}
