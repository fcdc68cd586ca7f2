package term

// Event is one input occurrence delivered by PollEvent. Concrete types:
// EventNone, EventKey, EventMouse, EventResize, EventFocus, EventPaste.
type Event interface {
	isEvent()
}

// EventNone is delivered when the poll timeout elapses with no input.
type EventNone struct{}

// ModMask is a bitmask of modifier keys held during a key or mouse event.
type ModMask uint8

const (
	ModShift ModMask = 1 << iota
	ModAlt
	ModCtrl
	ModSuper
)

// Key identifies a non-printable key. Printable input arrives as KeyRune
// with the character in EventKey.Ch.
type Key int

const (
	KeyRune Key = iota
	KeyEnter
	KeyTab
	KeyBacktab
	KeyBackspace
	KeyEscape
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyHome
	KeyEnd
	KeyPgUp
	KeyPgDn
	KeyInsert
	KeyDelete
	KeyF1
	KeyF2
	KeyF3
	KeyF4
	KeyF5
	KeyF6
	KeyF7
	KeyF8
	KeyF9
	KeyF10
	KeyF11
	KeyF12
)

// KeyAction distinguishes press, repeat and release. Repeat and release
// are only reported while the extended keyboard protocol is active;
// legacy input always reports KeyPress.
type KeyAction uint8

const (
	KeyPress KeyAction = iota
	KeyRepeat
	KeyRelease
)

// EventKey is a keyboard event.
type EventKey struct {
	Key    Key
	Ch     rune
	Mod    ModMask
	Action KeyAction
}

// MouseButton identifies which button (or wheel direction) an EventMouse
// refers to.
type MouseButton uint8

const (
	MouseNone MouseButton = iota
	MouseLeft
	MouseMiddle
	MouseRight
	MouseWheelUp
	MouseWheelDown
)

// MouseAction is the kind of mouse activity reported.
type MouseAction uint8

const (
	MousePress MouseAction = iota
	MouseRelease
	MouseMotion
)

// EventMouse is a mouse event in cell coordinates.
type EventMouse struct {
	X, Y   int
	Button MouseButton
	Action MouseAction
	Mod    ModMask
}

// EventResize reports a new terminal size in cells.
type EventResize struct {
	Width, Height int
}

// EventFocus reports the terminal gaining or losing focus.
type EventFocus struct {
	Focused bool
}

// EventPaste carries one bracketed-paste block.
type EventPaste struct {
	Text string
}

func (EventNone) isEvent()   {}
func (EventKey) isEvent()    {}
func (EventMouse) isEvent()  {}
func (EventResize) isEvent() {}
func (EventFocus) isEvent()  {}
func (EventPaste) isEvent()  {}
