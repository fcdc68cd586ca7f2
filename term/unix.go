// Copyright © 2025 Texelgrid contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: term/unix.go
// Summary: ANSI/POSIX terminal backend built on termios raw mode and poll(2).

//go:build !windows

package term

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// escapeTimeout is how long the backend waits for the remainder of a
// partially received escape sequence before treating the buffered ESC
// as a bare escape key.
const escapeTimeout = 20 * time.Millisecond

// UnixBackend drives a POSIX terminal with termios raw mode and ANSI
// escape sequences. Resize notifications arrive via SIGWINCH, forwarded
// through a self-pipe so they can wake a blocked PollEvent.
type UnixBackend struct {
	in  *os.File
	out *os.File
	w   *bufio.Writer

	rawState *term.State
	parser   inputParser
	queue    []Event
	readBuf  []byte

	pipeR, pipeW *os.File
	sigc         chan os.Signal

	// kittyStack records, per nested EnableKeyboardProtocol call, whether
	// a kitty push escape was actually emitted (false for legacy mode).
	kittyStack []bool
}

// NewUnixBackend builds a backend over the given tty streams, normally
// os.Stdin and os.Stdout.
func NewUnixBackend(in, out *os.File) (*UnixBackend, error) {
	b := &UnixBackend{
		in:      in,
		out:     out,
		w:       bufio.NewWriterSize(out, 8192),
		readBuf: make([]byte, 4096),
	}

	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("term: winch pipe: %w", err)
	}
	b.pipeR, b.pipeW = pr, pw

	b.sigc = make(chan os.Signal, 1)
	signal.Notify(b.sigc, syscall.SIGWINCH)
	go func() {
		for range b.sigc {
			b.pipeW.Write([]byte{0}) //nolint:errcheck
		}
	}()

	return b, nil
}

// NewBackend returns the platform's default backend on the process's
// standard streams.
func NewBackend() (Backend, error) {
	return NewUnixBackend(os.Stdin, os.Stdout)
}

// Close releases the signal handler and the self-pipe. The terminal
// modes are not touched; callers restore those through ExitRawMode and
// DisableAlternateScreen.
func (b *UnixBackend) Close() error {
	signal.Stop(b.sigc)
	close(b.sigc)
	b.pipeW.Close()
	return b.pipeR.Close()
}

func (b *UnixBackend) EnterRawMode() error {
	if b.rawState != nil {
		return nil
	}
	st, err := term.MakeRaw(int(b.in.Fd()))
	if err != nil {
		return fmt.Errorf("term: enter raw mode: %w", err)
	}
	b.rawState = st
	return nil
}

func (b *UnixBackend) ExitRawMode() error {
	if b.rawState == nil {
		return nil
	}
	err := term.Restore(int(b.in.Fd()), b.rawState)
	b.rawState = nil
	if err != nil {
		return fmt.Errorf("term: exit raw mode: %w", err)
	}
	return nil
}

func (b *UnixBackend) EnableAlternateScreen() error {
	return b.writeSeq(seqAltScreenOn)
}

func (b *UnixBackend) DisableAlternateScreen() error {
	return b.writeSeq(seqAltScreenOff)
}

func (b *UnixBackend) ClearScreen() error {
	return b.writeSeq(seqClearScreen)
}

func (b *UnixBackend) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	return b.w.Write(p)
}

func (b *UnixBackend) Flush() error {
	return b.w.Flush()
}

func (b *UnixBackend) Size() (int, int, error) {
	fd := int(b.out.Fd())
	if !term.IsTerminal(fd) {
		return 0, 0, ErrNotTerminal
	}
	w, h, err := term.GetSize(fd)
	if err != nil {
		return 0, 0, fmt.Errorf("term: query size: %w", err)
	}
	return w, h, nil
}

func (b *UnixBackend) HideCursor() error { return b.writeSeq(seqCursorHide) }
func (b *UnixBackend) ShowCursor() error { return b.writeSeq(seqCursorShow) }

func (b *UnixBackend) SetCursor(x, y int) error {
	return b.writeSeq(seqCursorTo(x, y))
}

func (b *UnixBackend) EnableMouse() error  { return b.writeSeq(seqMouseOn) }
func (b *UnixBackend) DisableMouse() error { return b.writeSeq(seqMouseOff) }

func (b *UnixBackend) EnableKeyboardProtocol(opts KeyboardOptions) error {
	if opts.Legacy {
		b.kittyStack = append(b.kittyStack, false)
		return nil
	}
	if opts.Probe {
		if err := b.probeKitty(opts.ProbeTimeout); err != nil {
			return err
		}
	}
	flags := opts.Flags
	if flags == 0 {
		flags = KeyboardDisambiguate | KeyboardReportEvents
	}
	if err := b.writeSeq(seqKittyPush(flags)); err != nil {
		return err
	}
	b.kittyStack = append(b.kittyStack, true)
	return nil
}

func (b *UnixBackend) DisableKeyboardProtocol() error {
	if len(b.kittyStack) == 0 {
		return nil
	}
	pushed := b.kittyStack[len(b.kittyStack)-1]
	b.kittyStack = b.kittyStack[:len(b.kittyStack)-1]
	if !pushed {
		return nil
	}
	return b.writeSeq(seqKittyPop)
}

// probeKitty asks the terminal for its kitty keyboard flags followed by
// primary device attributes. Terminals answer DA unconditionally; one
// that answers the flags query first supports the protocol.
func (b *UnixBackend) probeKitty(timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 50 * time.Millisecond
	}
	b.parser.sawKittyReply = false
	b.parser.sawDAReply = false
	if err := b.writeSeq(seqKittyQuery + seqDAQuery); err != nil {
		return err
	}

	deadline := time.Now().Add(timeout)
	for !b.parser.sawKittyReply && !b.parser.sawDAReply {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		ready, _, err := b.waitInput(remaining)
		if err != nil {
			return err
		}
		if !ready {
			break
		}
		if err := b.fill(); err != nil {
			return err
		}
		b.drainParsed()
	}
	if !b.parser.sawKittyReply {
		return ErrNotSupported
	}
	return nil
}

// drainParsed moves every complete event out of the parser into the
// delivery queue. Used while scanning for probe replies so interleaved
// user input is not lost.
func (b *UnixBackend) drainParsed() {
	for {
		ev, ok, _ := b.parser.next()
		if !ok {
			return
		}
		b.queue = append(b.queue, ev)
	}
}

func (b *UnixBackend) PollEvent(timeout time.Duration) (Event, error) {
	deadline := time.Now().Add(timeout)
	for {
		if len(b.queue) > 0 {
			ev := b.queue[0]
			b.queue = b.queue[1:]
			return ev, nil
		}
		if ev, ok, _ := b.parser.next(); ok {
			return ev, nil
		}

		remaining := time.Until(deadline)
		if timeout < 0 {
			remaining = -1
		} else if remaining <= 0 {
			if b.parser.pendingEscape() {
				if ev, ok := b.parser.flushEscape(); ok {
					return ev, nil
				}
			}
			return EventNone{}, nil
		}

		wait := remaining
		if b.parser.pendingEscape() && (wait < 0 || wait > escapeTimeout) {
			wait = escapeTimeout
		}

		ready, resized, err := b.waitInput(wait)
		if err != nil {
			return nil, err
		}
		if resized {
			w, h, serr := b.Size()
			if serr == nil {
				return EventResize{Width: w, Height: h}, nil
			}
		}
		if ready {
			if err := b.fill(); err != nil {
				return nil, err
			}
			continue
		}

		// Nothing became readable within the wait.
		if b.parser.pendingEscape() {
			if ev, ok := b.parser.flushEscape(); ok {
				return ev, nil
			}
		}
		if timeout >= 0 && time.Until(deadline) <= 0 {
			return EventNone{}, nil
		}
	}
}

// waitInput polls the tty and the winch pipe. ready reports readable
// input; resized reports a delivered SIGWINCH. A negative timeout
// blocks indefinitely.
func (b *UnixBackend) waitInput(timeout time.Duration) (ready, resized bool, err error) {
	fds := []unix.PollFd{
		{Fd: int32(b.in.Fd()), Events: unix.POLLIN},
		{Fd: int32(b.pipeR.Fd()), Events: unix.POLLIN},
	}
	ms := -1
	if timeout >= 0 {
		ms = int(timeout / time.Millisecond)
		if ms < 1 {
			ms = 1
		}
	}
	for {
		n, perr := unix.Poll(fds, ms)
		if perr == unix.EINTR {
			continue
		}
		if perr != nil {
			return false, false, fmt.Errorf("term: poll: %w", perr)
		}
		if n == 0 {
			return false, false, nil
		}
		break
	}
	if fds[1].Revents&unix.POLLIN != 0 {
		b.drainPipe()
		resized = true
	}
	ready = fds[0].Revents&(unix.POLLIN|unix.POLLHUP) != 0
	return ready, resized, nil
}

func (b *UnixBackend) drainPipe() {
	var scratch [16]byte
	for {
		fds := []unix.PollFd{{Fd: int32(b.pipeR.Fd()), Events: unix.POLLIN}}
		n, _ := unix.Poll(fds, 0)
		if n <= 0 {
			return
		}
		if _, err := b.pipeR.Read(scratch[:]); err != nil {
			return
		}
	}
}

// fill reads whatever is available from the tty into the parser.
func (b *UnixBackend) fill() error {
	n, err := b.in.Read(b.readBuf)
	if n > 0 {
		b.parser.feed(b.readBuf[:n])
		return nil
	}
	if err != nil {
		return fmt.Errorf("term: read input: %w", err)
	}
	return ErrClosed
}

func (b *UnixBackend) writeSeq(seq string) error {
	if _, err := b.w.WriteString(seq); err != nil {
		return err
	}
	return b.w.Flush()
}
