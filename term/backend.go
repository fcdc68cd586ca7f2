// Copyright © 2025 Texelgrid contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: term/backend.go
// Summary: Platform-neutral terminal backend contract driven by the session layer.

package term

import (
	"errors"
	"time"
)

var (
	// ErrNotTerminal is returned when the output stream is not an
	// interactive terminal device.
	ErrNotTerminal = errors.New("term: not a terminal")

	// ErrClosed is returned from operations on a backend whose streams
	// have been torn down.
	ErrClosed = errors.New("term: backend closed")
)

// KeyboardFlags selects kitty keyboard protocol progressive enhancements.
type KeyboardFlags uint8

const (
	// KeyboardDisambiguate requests unambiguous escape-code reporting.
	KeyboardDisambiguate KeyboardFlags = 1 << iota
	// KeyboardReportEvents requests press/repeat/release event types.
	KeyboardReportEvents
	// KeyboardReportAlternates requests alternate-key reporting.
	KeyboardReportAlternates
	// KeyboardReportAllKeys requests reports for every key as escape codes.
	KeyboardReportAllKeys
	// KeyboardReportText requests associated text with key events.
	KeyboardReportText
)

// KeyboardOptions configures EnableKeyboardProtocol. The zero value
// selects the legacy compatibility mode with no extended reporting.
type KeyboardOptions struct {
	// Legacy disables the extended protocol entirely; the terminal's
	// traditional key encoding stays in effect.
	Legacy bool
	// Flags are the protocol enhancements to push when Legacy is false.
	Flags KeyboardFlags
	// Probe, when set, sends a capability query before pushing flags and
	// reports ErrNotSupported if the terminal does not answer in time.
	Probe bool
	// ProbeTimeout bounds the probe round trip. Zero means 50ms.
	ProbeTimeout time.Duration
}

// ErrNotSupported is returned by a keyboard-protocol probe when the
// terminal gives no indication of supporting the extended protocol.
var ErrNotSupported = errors.New("term: extended keyboard protocol not supported")

// Backend is the capability contract every platform transport satisfies.
// The session controller depends only on this interface; implementations
// manage their own platform resources and must converge on the same
// event and error surface.
type Backend interface {
	// EnterRawMode switches input to character-at-a-time, unprocessed
	// delivery. ExitRawMode restores the previous input mode and is safe
	// to call without a prior successful EnterRawMode.
	EnterRawMode() error
	ExitRawMode() error

	// EnableAlternateScreen switches to the secondary screen buffer so
	// the user's scrollback is restored on exit.
	EnableAlternateScreen() error
	DisableAlternateScreen() error

	// ClearScreen erases the visible screen.
	ClearScreen() error

	// Write buffers raw bytes for the terminal; a zero-length write is a
	// no-op. Flush forces delivery of everything buffered.
	Write(p []byte) (int, error)
	Flush() error

	// Size reports the terminal dimensions in character cells. It fails
	// with ErrNotTerminal when the output is not an interactive device.
	Size() (width, height int, err error)

	// PollEvent blocks up to timeout waiting for one input event. An
	// elapsed timeout is not an error; it yields EventNone.
	PollEvent(timeout time.Duration) (Event, error)

	HideCursor() error
	ShowCursor() error
	SetCursor(x, y int) error

	// EnableMouse turns on click/drag/scroll reporting, along with focus
	// and bracketed-paste reporting which terminals group with it.
	EnableMouse() error
	DisableMouse() error

	// EnableKeyboardProtocol pushes the extended keyboard protocol with
	// the given options; DisableKeyboardProtocol pops it. Activations
	// nest: each enable needs a matching disable.
	EnableKeyboardProtocol(opts KeyboardOptions) error
	DisableKeyboardProtocol() error
}
