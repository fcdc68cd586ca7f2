// Copyright © 2025 Texelgrid contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: session/session.go
// Summary: Owns the terminal session lifecycle and the diff/serialize/flush draw cycle.

package session

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/framegrace/texelgrid/grid"
	"github.com/framegrace/texelgrid/term"
)

// State is the session lifecycle phase.
type State int

const (
	StateUninitialized State = iota
	StateActive
	StateTerminated
)

var (
	// ErrNotActive is returned by operations that need an initialized,
	// non-terminated session.
	ErrNotActive = errors.New("session: not active")

	// ErrAlreadyInitialized is returned by Init on a session that left
	// the uninitialized state.
	ErrAlreadyInitialized = errors.New("session: already initialized")
)

// RenderFunc builds one frame. It receives exclusive mutable access to
// the next buffer for the duration of the call.
type RenderFunc func(next *grid.Buffer)

// Session owns one backend and the current/next buffer pair for the
// lifetime of a terminal session. It is single-threaded by contract:
// no locking is done, and the buffers must only be touched through the
// draw cycle.
type Session struct {
	backend term.Backend
	state   State

	current *grid.Buffer
	next    *grid.Buffer

	cursorHidden bool

	// Serializer scratch, reused across flushes.
	out bytes.Buffer
}

// New wraps a backend in an uninitialized session.
func New(backend term.Backend) *Session {
	return &Session{backend: backend}
}

// State returns the lifecycle phase.
func (s *Session) State() State { return s.state }

// Backend exposes the owned backend for direct escape injection.
func (s *Session) Backend() term.Backend { return s.backend }

// Size returns the buffer dimensions, zero before Init.
func (s *Session) Size() (int, int) {
	if s.current == nil {
		return 0, 0
	}
	return s.current.Size()
}

// Init transitions uninitialized→active: sizes both buffers from the
// terminal, enters raw mode, switches to the alternate screen and
// clears it. A failure anywhere unwinds the partial setup before
// reporting.
func (s *Session) Init() error {
	if s.state != StateUninitialized {
		return ErrAlreadyInitialized
	}

	w, h, err := s.backend.Size()
	if err != nil {
		return fmt.Errorf("session: init: %w", err)
	}

	if err := s.backend.EnterRawMode(); err != nil {
		return fmt.Errorf("session: init: %w", err)
	}
	if err := s.backend.EnableAlternateScreen(); err != nil {
		s.backend.ExitRawMode() //nolint:errcheck
		return fmt.Errorf("session: init: %w", err)
	}
	if err := s.backend.ClearScreen(); err != nil {
		s.backend.DisableAlternateScreen() //nolint:errcheck
		s.backend.ExitRawMode()            //nolint:errcheck
		return fmt.Errorf("session: init: %w", err)
	}

	s.current = grid.NewBuffer(w, h)
	s.next = grid.NewBuffer(w, h)
	s.state = StateActive
	return nil
}

// Deinit transitions active→terminated: restores the normal screen,
// exits raw mode and restores the cursor. Every restoration step runs
// regardless of earlier failures; errors are logged and discarded so
// the terminal is never left half-restored.
func (s *Session) Deinit() {
	if s.state != StateActive {
		s.state = StateTerminated
		return
	}
	if s.cursorHidden {
		if err := s.backend.ShowCursor(); err != nil {
			log.Printf("session: restore cursor: %v", err)
		}
		s.cursorHidden = false
	}
	if err := s.backend.DisableAlternateScreen(); err != nil {
		log.Printf("session: leave alternate screen: %v", err)
	}
	if err := s.backend.Flush(); err != nil {
		log.Printf("session: final flush: %v", err)
	}
	if err := s.backend.ExitRawMode(); err != nil {
		log.Printf("session: exit raw mode: %v", err)
	}
	s.current = nil
	s.next = nil
	s.state = StateTerminated
}

// Draw runs one frame: clears the next buffer, lets render fill it,
// then flushes the difference to the terminal.
func (s *Session) Draw(render RenderFunc) error {
	if s.state != StateActive {
		return ErrNotActive
	}
	s.next.Clear()
	render(s.next)
	return s.Flush()
}

// Flush diffs next against current and writes the minimal escape stream
// in a single backend write. An empty diff performs zero writes.
func (s *Session) Flush() error {
	if s.state != StateActive {
		return ErrNotActive
	}
	updates := grid.Diff(s.current, s.next)
	if len(updates) == 0 {
		return nil
	}

	s.serialize(updates)
	if _, err := s.backend.Write(s.out.Bytes()); err != nil {
		return fmt.Errorf("session: flush: %w", err)
	}
	if err := s.backend.Flush(); err != nil {
		return fmt.Errorf("session: flush: %w", err)
	}
	s.current.CopyFrom(s.next)
	return nil
}

// Resize resizes both buffers to the new dimensions without otherwise
// altering session state. Callers apply it between frames.
func (s *Session) Resize(w, h int) {
	if s.state != StateActive {
		return
	}
	s.current.Resize(w, h)
	s.next.Resize(w, h)
}

// HideCursor hides the terminal cursor, remembering the state so Deinit
// can restore it.
func (s *Session) HideCursor() error {
	if s.state != StateActive {
		return ErrNotActive
	}
	if err := s.backend.HideCursor(); err != nil {
		return err
	}
	s.cursorHidden = true
	return nil
}

// ShowCursor makes the cursor visible again.
func (s *Session) ShowCursor() error {
	if s.state != StateActive {
		return ErrNotActive
	}
	if err := s.backend.ShowCursor(); err != nil {
		return err
	}
	s.cursorHidden = false
	return nil
}

// SetCursor moves the terminal cursor.
func (s *Session) SetCursor(x, y int) error {
	if s.state != StateActive {
		return ErrNotActive
	}
	return s.backend.SetCursor(x, y)
}

// EnableMouse turns on mouse reporting.
func (s *Session) EnableMouse() error {
	if s.state != StateActive {
		return ErrNotActive
	}
	return s.backend.EnableMouse()
}

// DisableMouse turns off mouse reporting.
func (s *Session) DisableMouse() error {
	if s.state != StateActive {
		return ErrNotActive
	}
	return s.backend.DisableMouse()
}

// EnableKeyboardProtocol pushes the extended keyboard protocol.
func (s *Session) EnableKeyboardProtocol(opts term.KeyboardOptions) error {
	if s.state != StateActive {
		return ErrNotActive
	}
	return s.backend.EnableKeyboardProtocol(opts)
}

// DisableKeyboardProtocol pops the extended keyboard protocol.
func (s *Session) DisableKeyboardProtocol() error {
	if s.state != StateActive {
		return ErrNotActive
	}
	return s.backend.DisableKeyboardProtocol()
}

// PollEvent waits up to timeout for one input event.
func (s *Session) PollEvent(timeout time.Duration) (term.Event, error) {
	return s.backend.PollEvent(timeout)
}
