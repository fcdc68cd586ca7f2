// Copyright © 2025 Texelgrid contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: term/windows.go
// Summary: Native console backend using virtual terminal processing and console input records.

//go:build windows

package term

import (
	"bufio"
	"fmt"
	"os"
	"time"

	"github.com/erikgeiser/coninput"
	"golang.org/x/sys/windows"
)

// WindowsBackend drives the native console API. Output goes through
// virtual terminal processing, so the escape sequences it emits are the
// same ANSI byte stream the unix backend produces; only input handling
// differs, decoding native input records instead of escape sequences.
type WindowsBackend struct {
	in  windows.Handle
	out windows.Handle
	w   *bufio.Writer

	savedIn  uint32
	savedOut uint32
	raw      bool

	queue        []Event
	mouseEnabled bool
	kittyDepth   int
	lastSize     coord
}

type coord struct{ x, y int }

// NewWindowsBackend builds a backend over the process console handles.
func NewWindowsBackend() (*WindowsBackend, error) {
	return &WindowsBackend{
		in:  windows.Handle(os.Stdin.Fd()),
		out: windows.Handle(os.Stdout.Fd()),
		w:   bufio.NewWriterSize(os.Stdout, 8192),
	}, nil
}

// NewBackend returns the platform's default backend on the process's
// standard streams.
func NewBackend() (Backend, error) {
	return NewWindowsBackend()
}

func (b *WindowsBackend) EnterRawMode() error {
	if b.raw {
		return nil
	}
	if err := windows.GetConsoleMode(b.in, &b.savedIn); err != nil {
		return fmt.Errorf("term: console input mode: %w", err)
	}
	if err := windows.GetConsoleMode(b.out, &b.savedOut); err != nil {
		return fmt.Errorf("term: console output mode: %w", err)
	}

	inMode := b.savedIn
	inMode &^= windows.ENABLE_ECHO_INPUT | windows.ENABLE_LINE_INPUT | windows.ENABLE_PROCESSED_INPUT | windows.ENABLE_QUICK_EDIT_MODE
	inMode |= windows.ENABLE_VIRTUAL_TERMINAL_INPUT | windows.ENABLE_WINDOW_INPUT | windows.ENABLE_MOUSE_INPUT | windows.ENABLE_EXTENDED_FLAGS
	if err := windows.SetConsoleMode(b.in, inMode); err != nil {
		return fmt.Errorf("term: set raw input mode: %w", err)
	}

	outMode := b.savedOut | windows.ENABLE_VIRTUAL_TERMINAL_PROCESSING | windows.DISABLE_NEWLINE_AUTO_RETURN | windows.ENABLE_PROCESSED_OUTPUT
	if err := windows.SetConsoleMode(b.out, outMode); err != nil {
		windows.SetConsoleMode(b.in, b.savedIn) //nolint:errcheck
		return fmt.Errorf("term: set vt output mode: %w", err)
	}
	b.raw = true
	return nil
}

func (b *WindowsBackend) ExitRawMode() error {
	if !b.raw {
		return nil
	}
	b.raw = false
	errIn := windows.SetConsoleMode(b.in, b.savedIn)
	errOut := windows.SetConsoleMode(b.out, b.savedOut)
	if errIn != nil {
		return fmt.Errorf("term: restore input mode: %w", errIn)
	}
	if errOut != nil {
		return fmt.Errorf("term: restore output mode: %w", errOut)
	}
	return nil
}

func (b *WindowsBackend) EnableAlternateScreen() error {
	return b.writeSeq(seqAltScreenOn)
}

func (b *WindowsBackend) DisableAlternateScreen() error {
	return b.writeSeq(seqAltScreenOff)
}

func (b *WindowsBackend) ClearScreen() error {
	return b.writeSeq(seqClearScreen)
}

func (b *WindowsBackend) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	return b.w.Write(p)
}

func (b *WindowsBackend) Flush() error {
	return b.w.Flush()
}

func (b *WindowsBackend) Size() (int, int, error) {
	var info windows.ConsoleScreenBufferInfo
	if err := windows.GetConsoleScreenBufferInfo(b.out, &info); err != nil {
		return 0, 0, ErrNotTerminal
	}
	w := int(info.Window.Right-info.Window.Left) + 1
	h := int(info.Window.Bottom-info.Window.Top) + 1
	return w, h, nil
}

func (b *WindowsBackend) HideCursor() error { return b.writeSeq(seqCursorHide) }
func (b *WindowsBackend) ShowCursor() error { return b.writeSeq(seqCursorShow) }

func (b *WindowsBackend) SetCursor(x, y int) error {
	return b.writeSeq(seqCursorTo(x, y))
}

// EnableMouse toggles delivery of mouse records; the console reports
// them whenever the window has mouse input enabled, so this is a
// delivery filter rather than a terminal mode switch.
func (b *WindowsBackend) EnableMouse() error {
	b.mouseEnabled = true
	return nil
}

func (b *WindowsBackend) DisableMouse() error {
	b.mouseEnabled = false
	return nil
}

func (b *WindowsBackend) EnableKeyboardProtocol(opts KeyboardOptions) error {
	if opts.Probe && !opts.Legacy {
		// Console input records already disambiguate press/release;
		// the kitty escape protocol itself is not spoken here.
		return ErrNotSupported
	}
	b.kittyDepth++
	return nil
}

func (b *WindowsBackend) DisableKeyboardProtocol() error {
	if b.kittyDepth > 0 {
		b.kittyDepth--
	}
	return nil
}

func (b *WindowsBackend) PollEvent(timeout time.Duration) (Event, error) {
	deadline := time.Now().Add(timeout)
	for {
		if len(b.queue) > 0 {
			ev := b.queue[0]
			b.queue = b.queue[1:]
			return ev, nil
		}

		ms := uint32(windows.INFINITE)
		if timeout >= 0 {
			remaining := time.Until(deadline)
			if remaining < 0 {
				remaining = 0
			}
			ms = uint32(remaining / time.Millisecond)
		}
		status, err := windows.WaitForSingleObject(b.in, ms)
		if err != nil {
			return nil, fmt.Errorf("term: wait for console input: %w", err)
		}
		if status == uint32(windows.WAIT_TIMEOUT) {
			return EventNone{}, nil
		}

		records, err := coninput.ReadNConsoleInputs(b.in, 16)
		if err != nil {
			return nil, fmt.Errorf("term: read console input: %w", err)
		}
		for _, rec := range records {
			if ev, ok := b.translate(rec); ok {
				b.queue = append(b.queue, ev)
			}
		}
	}
}

func (b *WindowsBackend) translate(rec coninput.InputRecord) (Event, bool) {
	switch rec.EventType {
	case coninput.KeyEventType:
		return b.translateKey(rec.KeyEvent())
	case coninput.MouseEventType:
		if !b.mouseEnabled {
			return nil, false
		}
		return b.translateMouse(rec.MouseEvent())
	case coninput.WindowBufferSizeEventType:
		size := rec.WindowBufferSizeEvent()
		c := coord{int(size.Size.X), int(size.Size.Y)}
		if c == b.lastSize {
			return nil, false
		}
		b.lastSize = c
		return EventResize{Width: c.x, Height: c.y}, true
	case coninput.FocusEventType:
		return EventFocus{Focused: rec.FocusEvent().SetFocus}, true
	default:
		return nil, false
	}
}

func (b *WindowsBackend) translateKey(key coninput.KeyEventRecord) (Event, bool) {
	action := KeyPress
	if !key.KeyDown {
		// Modifier-only releases carry no key information worth reporting.
		if key.Char == 0 && vkKeys[key.VirtualKeyCode] == 0 {
			return nil, false
		}
		action = KeyRelease
	}

	mod := controlKeyMods(key.ControlKeyState)
	if k, found := vkKeys[key.VirtualKeyCode]; found && k != 0 {
		return EventKey{Key: k, Mod: mod, Action: action}, true
	}
	ch := key.Char
	if ch == 0 {
		return nil, false
	}
	if ch < 0x20 && mod&ModCtrl != 0 {
		ch = rune('a' + ch - 1)
	}
	return EventKey{Key: KeyRune, Ch: ch, Mod: mod, Action: action}, true
}

func (b *WindowsBackend) translateMouse(m coninput.MouseEventRecord) (Event, bool) {
	ev := EventMouse{
		X:   int(m.MousePositon.X),
		Y:   int(m.MousePositon.Y),
		Mod: controlKeyMods(m.ControlKeyState),
	}
	switch {
	case m.EventFlags&coninput.MOUSE_WHEELED != 0:
		if int16(m.ButtonState>>16) > 0 {
			ev.Button = MouseWheelUp
		} else {
			ev.Button = MouseWheelDown
		}
		ev.Action = MousePress
	case m.EventFlags&coninput.MOUSE_MOVED != 0:
		ev.Button = buttonFromState(m.ButtonState)
		ev.Action = MouseMotion
	case m.ButtonState == 0:
		ev.Button = MouseNone
		ev.Action = MouseRelease
	default:
		ev.Button = buttonFromState(m.ButtonState)
		ev.Action = MousePress
	}
	return ev, true
}

func buttonFromState(state coninput.ButtonState) MouseButton {
	switch {
	case state&coninput.FROM_LEFT_1ST_BUTTON_PRESSED != 0:
		return MouseLeft
	case state&coninput.RIGHTMOST_BUTTON_PRESSED != 0:
		return MouseRight
	case state&coninput.FROM_LEFT_2ND_BUTTON_PRESSED != 0:
		return MouseMiddle
	default:
		return MouseNone
	}
}

func controlKeyMods(state coninput.ControlKeyState) ModMask {
	var mod ModMask
	if state&coninput.SHIFT_PRESSED != 0 {
		mod |= ModShift
	}
	if state&(coninput.LEFT_ALT_PRESSED|coninput.RIGHT_ALT_PRESSED) != 0 {
		mod |= ModAlt
	}
	if state&(coninput.LEFT_CTRL_PRESSED|coninput.RIGHT_CTRL_PRESSED) != 0 {
		mod |= ModCtrl
	}
	return mod
}

var vkKeys = map[coninput.VirtualKeyCode]Key{
	coninput.VK_RETURN: KeyEnter,
	coninput.VK_TAB:    KeyTab,
	coninput.VK_BACK:   KeyBackspace,
	coninput.VK_ESCAPE: KeyEscape,
	coninput.VK_UP:     KeyUp,
	coninput.VK_DOWN:   KeyDown,
	coninput.VK_LEFT:   KeyLeft,
	coninput.VK_RIGHT:  KeyRight,
	coninput.VK_HOME:   KeyHome,
	coninput.VK_END:    KeyEnd,
	coninput.VK_PRIOR:  KeyPgUp,
	coninput.VK_NEXT:   KeyPgDn,
	coninput.VK_INSERT: KeyInsert,
	coninput.VK_DELETE: KeyDelete,
	coninput.VK_F1:     KeyF1,
	coninput.VK_F2:     KeyF2,
	coninput.VK_F3:     KeyF3,
	coninput.VK_F4:     KeyF4,
	coninput.VK_F5:     KeyF5,
	coninput.VK_F6:     KeyF6,
	coninput.VK_F7:     KeyF7,
	coninput.VK_F8:     KeyF8,
	coninput.VK_F9:     KeyF9,
	coninput.VK_F10:    KeyF10,
	coninput.VK_F11:    KeyF11,
	coninput.VK_F12:    KeyF12,
}

func (b *WindowsBackend) writeSeq(seq string) error {
	if _, err := b.w.WriteString(seq); err != nil {
		return err
	}
	return b.w.Flush()
}
