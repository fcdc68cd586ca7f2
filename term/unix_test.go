//go:build !windows

package term

import (
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/creack/pty"
)

// openBackend builds a UnixBackend over the slave side of a fresh pty
// pair, so raw mode and size queries run against a real tty.
func openBackend(t *testing.T) (*UnixBackend, ptyPair) {
	t.Helper()
	master, slave, err := pty.Open()
	if err != nil {
		t.Skipf("pty unavailable: %v", err)
	}
	b, err := NewUnixBackend(slave, slave)
	if err != nil {
		t.Fatalf("new backend: %v", err)
	}
	pp := ptyPair{master: master, slave: slave}
	t.Cleanup(func() {
		b.Close()
		master.Close()
		slave.Close()
	})
	return b, pp
}

type ptyPair struct {
	master, slave *os.File
}

func TestRawModeRoundTrip(t *testing.T) {
	b, _ := openBackend(t)
	if err := b.EnterRawMode(); err != nil {
		t.Fatalf("enter raw mode: %v", err)
	}
	// Entering twice is a no-op, exiting twice is safe.
	if err := b.EnterRawMode(); err != nil {
		t.Fatalf("re-enter raw mode: %v", err)
	}
	if err := b.ExitRawMode(); err != nil {
		t.Fatalf("exit raw mode: %v", err)
	}
	if err := b.ExitRawMode(); err != nil {
		t.Fatalf("exit raw mode without enter: %v", err)
	}
}

func TestSizeOnPty(t *testing.T) {
	b, _ := openBackend(t)
	w, h, err := b.Size()
	if err != nil {
		t.Fatalf("size: %v", err)
	}
	if w < 0 || h < 0 {
		t.Fatalf("size = %dx%d", w, h)
	}
}

func TestSizeNotATerminal(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer r.Close()
	defer w.Close()
	b, err := NewUnixBackend(r, w)
	if err != nil {
		t.Fatalf("new backend: %v", err)
	}
	defer b.Close()
	if _, _, err := b.Size(); !errors.Is(err, ErrNotTerminal) {
		t.Fatalf("size on pipe = %v, want ErrNotTerminal", err)
	}
}

func TestWriteIsBufferedUntilFlush(t *testing.T) {
	b, pp := openBackend(t)

	if n, err := b.Write(nil); n != 0 || err != nil {
		t.Fatalf("zero-length write: n=%d err=%v", n, err)
	}
	payload := "buffered-output"
	if _, err := b.Write([]byte(payload)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := b.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	buf := make([]byte, 256)
	n, err := pp.master.Read(buf)
	if err != nil {
		t.Fatalf("read master: %v", err)
	}
	if !strings.Contains(string(buf[:n]), payload) {
		t.Fatalf("master saw %q, want %q", buf[:n], payload)
	}
}

func TestPollEventTimeout(t *testing.T) {
	b, _ := openBackend(t)
	start := time.Now()
	ev, err := b.PollEvent(30 * time.Millisecond)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if _, ok := ev.(EventNone); !ok {
		t.Fatalf("poll with no input = %#v, want EventNone", ev)
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Fatalf("poll returned before the timeout elapsed")
	}
}

func TestPollEventDeliversTypedInput(t *testing.T) {
	b, pp := openBackend(t)
	if _, err := pp.master.Write([]byte("k\x1b[A")); err != nil {
		t.Fatalf("write master: %v", err)
	}

	ev, err := b.PollEvent(time.Second)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if ev != Event(EventKey{Key: KeyRune, Ch: 'k'}) {
		t.Fatalf("first event = %#v", ev)
	}

	ev, err = b.PollEvent(time.Second)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if ev != Event(EventKey{Key: KeyUp}) {
		t.Fatalf("second event = %#v", ev)
	}
}

func TestPollEventBareEscapeAfterDisambiguation(t *testing.T) {
	b, pp := openBackend(t)
	if _, err := pp.master.Write([]byte{0x1b}); err != nil {
		t.Fatalf("write master: %v", err)
	}
	ev, err := b.PollEvent(500 * time.Millisecond)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if ev != Event(EventKey{Key: KeyEscape}) {
		t.Fatalf("lone ESC = %#v, want bare escape key", ev)
	}
}

func TestKeyboardProtocolNesting(t *testing.T) {
	b, pp := openBackend(t)
	go drain(pp)

	if err := b.EnableKeyboardProtocol(KeyboardOptions{Legacy: true}); err != nil {
		t.Fatalf("legacy enable: %v", err)
	}
	if err := b.EnableKeyboardProtocol(KeyboardOptions{Flags: KeyboardDisambiguate}); err != nil {
		t.Fatalf("extended enable: %v", err)
	}
	if len(b.kittyStack) != 2 {
		t.Fatalf("stack depth = %d, want 2", len(b.kittyStack))
	}
	if err := b.DisableKeyboardProtocol(); err != nil {
		t.Fatalf("pop extended: %v", err)
	}
	if err := b.DisableKeyboardProtocol(); err != nil {
		t.Fatalf("pop legacy: %v", err)
	}
	if err := b.DisableKeyboardProtocol(); err != nil {
		t.Fatalf("pop on empty stack: %v", err)
	}
}

func TestKeyboardProbeUnsupported(t *testing.T) {
	b, pp := openBackend(t)
	go drain(pp)

	err := b.EnableKeyboardProtocol(KeyboardOptions{
		Probe:        true,
		ProbeTimeout: 30 * time.Millisecond,
	})
	if !errors.Is(err, ErrNotSupported) {
		t.Fatalf("probe against silent terminal = %v, want ErrNotSupported", err)
	}
}

func drain(pp ptyPair) {
	buf := make([]byte, 1024)
	for {
		if _, err := pp.master.Read(buf); err != nil {
			return
		}
	}
}
