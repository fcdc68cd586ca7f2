package session

import (
	"bytes"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/framegrace/texelgrid/grid"
	"github.com/framegrace/texelgrid/term"
)

// fakeBackend records calls and captures the byte stream so serializer
// behaviour can be asserted without a terminal.
type fakeBackend struct {
	out        bytes.Buffer
	writeCalls int

	width, height int

	rawEntered  bool
	rawExits    int
	altEnabled  bool
	cursorShown bool
	mouse       bool
	kittyDepth  int

	failAlternate bool
	failClear     bool
	failSize      bool

	events []term.Event
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{width: 20, height: 6, cursorShown: true}
}

func (f *fakeBackend) EnterRawMode() error {
	f.rawEntered = true
	return nil
}

func (f *fakeBackend) ExitRawMode() error {
	f.rawEntered = false
	f.rawExits++
	return nil
}

func (f *fakeBackend) EnableAlternateScreen() error {
	if f.failAlternate {
		return errors.New("fake: no alternate screen")
	}
	f.altEnabled = true
	return nil
}

func (f *fakeBackend) DisableAlternateScreen() error {
	f.altEnabled = false
	return nil
}

func (f *fakeBackend) ClearScreen() error {
	if f.failClear {
		return errors.New("fake: clear failed")
	}
	return nil
}

func (f *fakeBackend) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	f.writeCalls++
	return f.out.Write(p)
}

func (f *fakeBackend) Flush() error { return nil }

func (f *fakeBackend) Size() (int, int, error) {
	if f.failSize {
		return 0, 0, term.ErrNotTerminal
	}
	return f.width, f.height, nil
}

func (f *fakeBackend) PollEvent(timeout time.Duration) (term.Event, error) {
	if len(f.events) == 0 {
		return term.EventNone{}, nil
	}
	ev := f.events[0]
	f.events = f.events[1:]
	return ev, nil
}

func (f *fakeBackend) HideCursor() error {
	f.cursorShown = false
	return nil
}

func (f *fakeBackend) ShowCursor() error {
	f.cursorShown = true
	return nil
}

func (f *fakeBackend) SetCursor(x, y int) error { return nil }

func (f *fakeBackend) EnableMouse() error {
	f.mouse = true
	return nil
}

func (f *fakeBackend) DisableMouse() error {
	f.mouse = false
	return nil
}

func (f *fakeBackend) EnableKeyboardProtocol(opts term.KeyboardOptions) error {
	f.kittyDepth++
	return nil
}

func (f *fakeBackend) DisableKeyboardProtocol() error {
	f.kittyDepth--
	return nil
}

var cursorMoveRe = regexp.MustCompile(`\x1b\[\d+;\d+H`)
var styleGroupRe = regexp.MustCompile(`\x1b\[0[0-9;]*m`)

func activeSession(t *testing.T) (*Session, *fakeBackend) {
	t.Helper()
	fb := newFakeBackend()
	s := New(fb)
	if err := s.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	fb.out.Reset()
	fb.writeCalls = 0
	return s, fb
}

func TestInitLifecycle(t *testing.T) {
	fb := newFakeBackend()
	s := New(fb)
	if s.State() != StateUninitialized {
		t.Fatalf("new session state = %v", s.State())
	}
	if err := s.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	if s.State() != StateActive || !fb.rawEntered || !fb.altEnabled {
		t.Fatalf("init left state=%v raw=%v alt=%v", s.State(), fb.rawEntered, fb.altEnabled)
	}
	w, h := s.Size()
	if w != 20 || h != 6 {
		t.Fatalf("buffers sized %dx%d, want 20x6", w, h)
	}
	if err := s.Init(); !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("second init = %v, want ErrAlreadyInitialized", err)
	}
}

func TestInitUnwindsOnAlternateScreenFailure(t *testing.T) {
	fb := newFakeBackend()
	fb.failAlternate = true
	s := New(fb)
	if err := s.Init(); err == nil {
		t.Fatal("init should fail")
	}
	if fb.rawEntered {
		t.Fatal("raw mode not unwound after alternate-screen failure")
	}
	if s.State() != StateUninitialized {
		t.Fatalf("failed init left state %v", s.State())
	}
}

func TestInitUnwindsOnClearFailure(t *testing.T) {
	fb := newFakeBackend()
	fb.failClear = true
	s := New(fb)
	if err := s.Init(); err == nil {
		t.Fatal("init should fail")
	}
	if fb.rawEntered || fb.altEnabled {
		t.Fatalf("partial setup not unwound: raw=%v alt=%v", fb.rawEntered, fb.altEnabled)
	}
}

func TestInitFailsWhenNotTerminal(t *testing.T) {
	fb := newFakeBackend()
	fb.failSize = true
	s := New(fb)
	if err := s.Init(); !errors.Is(err, term.ErrNotTerminal) {
		t.Fatalf("init = %v, want ErrNotTerminal", err)
	}
}

func TestDeinitRestoresEverything(t *testing.T) {
	s, fb := activeSession(t)
	if err := s.HideCursor(); err != nil {
		t.Fatalf("hide cursor: %v", err)
	}
	s.Deinit()
	if s.State() != StateTerminated {
		t.Fatalf("state after deinit = %v", s.State())
	}
	if fb.altEnabled || fb.rawEntered || !fb.cursorShown {
		t.Fatalf("deinit left alt=%v raw=%v cursor=%v", fb.altEnabled, fb.rawEntered, fb.cursorShown)
	}
	if err := s.Flush(); !errors.Is(err, ErrNotActive) {
		t.Fatalf("flush after deinit = %v, want ErrNotActive", err)
	}
}

func TestFlushEmptyDiffWritesNothing(t *testing.T) {
	s, fb := activeSession(t)
	if err := s.Draw(func(next *grid.Buffer) {
		next.SetString(0, 0, "hi", grid.StyleDefault)
	}); err != nil {
		t.Fatalf("draw: %v", err)
	}
	if fb.writeCalls != 1 {
		t.Fatalf("first draw made %d writes, want 1", fb.writeCalls)
	}

	// Same frame again: the diff is empty, so zero backend writes.
	if err := s.Draw(func(next *grid.Buffer) {
		next.SetString(0, 0, "hi", grid.StyleDefault)
	}); err != nil {
		t.Fatalf("second draw: %v", err)
	}
	if fb.writeCalls != 1 {
		t.Fatalf("idle draw wrote to the backend (%d calls)", fb.writeCalls)
	}
	if err := s.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if fb.writeCalls != 1 {
		t.Fatalf("idempotent flush wrote to the backend (%d calls)", fb.writeCalls)
	}
}

func TestCursorMoveElision(t *testing.T) {
	s, fb := activeSession(t)
	if err := s.Draw(func(next *grid.Buffer) {
		next.SetString(3, 2, "abcdef", grid.StyleDefault)
	}); err != nil {
		t.Fatalf("draw: %v", err)
	}
	moves := cursorMoveRe.FindAllString(fb.out.String(), -1)
	if len(moves) != 1 {
		t.Fatalf("got %d cursor moves for one run of consecutive cells, want 1:\n%q", len(moves), fb.out.String())
	}
	if moves[0] != "\x1b[3;4H" {
		t.Fatalf("cursor move = %q, want row 3 col 4", moves[0])
	}
}

func TestCursorMoveAcrossRows(t *testing.T) {
	s, fb := activeSession(t)
	if err := s.Draw(func(next *grid.Buffer) {
		next.SetString(0, 0, "ab", grid.StyleDefault)
		next.SetString(0, 1, "cd", grid.StyleDefault)
	}); err != nil {
		t.Fatalf("draw: %v", err)
	}
	if got := len(cursorMoveRe.FindAllString(fb.out.String(), -1)); got != 2 {
		t.Fatalf("two rows need two cursor moves, got %d", got)
	}
}

func TestStyleCoalescing(t *testing.T) {
	s, fb := activeSession(t)
	style := grid.StyleDefault.Foreground(grid.ColorGreen).Attributes(grid.AttrBold)
	if err := s.Draw(func(next *grid.Buffer) {
		next.SetString(0, 0, "aaaa", style)
	}); err != nil {
		t.Fatalf("draw: %v", err)
	}
	groups := styleGroupRe.FindAllString(fb.out.String(), -1)
	// One group covering the styled run, plus the trailing full reset.
	if len(groups) != 2 {
		t.Fatalf("got %d style groups, want 2:\n%q", len(groups), fb.out.String())
	}
	if !strings.Contains(groups[0], ";32") || !strings.Contains(groups[0], ";1") {
		t.Fatalf("style group %q missing green foreground or bold", groups[0])
	}
	if groups[1] != "\x1b[0m" {
		t.Fatalf("stream does not end with a full reset: %q", groups[1])
	}
}

func TestStyleChangeReemitsFullGroup(t *testing.T) {
	s, fb := activeSession(t)
	red := grid.StyleDefault.Foreground(grid.ColorRed)
	blue := grid.StyleDefault.Foreground(grid.ColorBlue)
	if err := s.Draw(func(next *grid.Buffer) {
		next.SetString(0, 0, "rr", red)
		next.SetString(2, 0, "bb", blue)
	}); err != nil {
		t.Fatalf("draw: %v", err)
	}
	groups := styleGroupRe.FindAllString(fb.out.String(), -1)
	if len(groups) != 3 { // red group, blue group, trailing reset
		t.Fatalf("got %d style groups, want 3:\n%q", len(groups), fb.out.String())
	}
}

func TestSerializeRGBAnd256(t *testing.T) {
	s, fb := activeSession(t)
	style := grid.StyleDefault.
		Foreground(grid.RGB(1, 2, 3)).
		Background(grid.ANSI256(200))
	if err := s.Draw(func(next *grid.Buffer) {
		next.SetChar(0, 0, 'x', style)
	}); err != nil {
		t.Fatalf("draw: %v", err)
	}
	out := fb.out.String()
	if !strings.Contains(out, ";38;2;1;2;3") {
		t.Fatalf("missing truecolor foreground in %q", out)
	}
	if !strings.Contains(out, ";48;5;200") {
		t.Fatalf("missing indexed background in %q", out)
	}
}

func TestSerializeInvalidRunePlaceholder(t *testing.T) {
	s, fb := activeSession(t)
	if err := s.Draw(func(next *grid.Buffer) {
		next.SetChar(0, 0, rune(0xD800), grid.StyleDefault) // lone surrogate
	}); err != nil {
		t.Fatalf("draw: %v", err)
	}
	if !strings.Contains(fb.out.String(), "?") {
		t.Fatalf("surrogate not degraded to placeholder: %q", fb.out.String())
	}
}

func TestWideGlyphCursorAccounting(t *testing.T) {
	s, fb := activeSession(t)
	if err := s.Draw(func(next *grid.Buffer) {
		next.SetString(0, 0, "日本", grid.StyleDefault)
	}); err != nil {
		t.Fatalf("draw: %v", err)
	}
	out := fb.out.String()
	// Two wide glyphs at columns 0 and 2: the second is reached by the
	// terminal's own double-column advance, so one move suffices, and
	// the spacer cells emit nothing.
	if got := len(cursorMoveRe.FindAllString(out, -1)); got != 1 {
		t.Fatalf("wide run needed %d cursor moves, want 1:\n%q", got, out)
	}
	if strings.Count(out, "日") != 1 || strings.Count(out, "本") != 1 {
		t.Fatalf("glyphs not each emitted exactly once: %q", out)
	}
}

func TestFlushWrapsInSynchronizedUpdate(t *testing.T) {
	s, fb := activeSession(t)
	if err := s.Draw(func(next *grid.Buffer) {
		next.SetChar(0, 0, 'x', grid.StyleDefault)
	}); err != nil {
		t.Fatalf("draw: %v", err)
	}
	out := fb.out.String()
	if !strings.HasPrefix(out, "\x1b[?2026h") || !strings.HasSuffix(out, "\x1b[?2026l") {
		t.Fatalf("flush not guarded by synchronized update: %q", out)
	}
}

func TestResizeKeepsGridsInSync(t *testing.T) {
	s, _ := activeSession(t)
	s.Resize(11, 7)
	w, h := s.Size()
	if w != 11 || h != 7 {
		t.Fatalf("size after resize = %dx%d", w, h)
	}
	// Drawing after resize must work across the full new area.
	if err := s.Draw(func(next *grid.Buffer) {
		next.SetChar(10, 6, 'e', grid.StyleDefault)
	}); err != nil {
		t.Fatalf("draw after resize: %v", err)
	}
}

func TestPassthroughBookkeeping(t *testing.T) {
	s, fb := activeSession(t)
	if err := s.EnableMouse(); err != nil || !fb.mouse {
		t.Fatalf("mouse enable: err=%v enabled=%v", err, fb.mouse)
	}
	if err := s.EnableKeyboardProtocol(term.KeyboardOptions{}); err != nil || fb.kittyDepth != 1 {
		t.Fatalf("keyboard enable: err=%v depth=%d", err, fb.kittyDepth)
	}
	if err := s.DisableKeyboardProtocol(); err != nil || fb.kittyDepth != 0 {
		t.Fatalf("keyboard disable: err=%v depth=%d", err, fb.kittyDepth)
	}
	if err := s.DisableMouse(); err != nil || fb.mouse {
		t.Fatalf("mouse disable: err=%v enabled=%v", err, fb.mouse)
	}
}
