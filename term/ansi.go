package term

import "fmt"

// ANSI control sequences shared by both backends. The windows backend
// emits the same byte sequences with virtual terminal processing enabled,
// so only input handling differs between platforms.
const (
	seqAltScreenOn  = "\x1b[?1049h"
	seqAltScreenOff = "\x1b[?1049l"
	seqClearScreen  = "\x1b[2J\x1b[H"
	seqCursorHide   = "\x1b[?25l"
	seqCursorShow   = "\x1b[?25h"

	// Mouse reporting: normal tracking, button-drag tracking, any-motion
	// tracking and SGR extended coordinates, plus focus and bracketed
	// paste which ride along with mouse enablement.
	seqMouseOn  = "\x1b[?1000h\x1b[?1002h\x1b[?1003h\x1b[?1006h\x1b[?1004h\x1b[?2004h"
	seqMouseOff = "\x1b[?2004l\x1b[?1004l\x1b[?1006l\x1b[?1003l\x1b[?1002l\x1b[?1000l"

	seqKittyPop   = "\x1b[<u"
	seqKittyQuery = "\x1b[?u"
	seqDAQuery    = "\x1b[c"
)

func seqCursorTo(x, y int) string {
	return fmt.Sprintf("\x1b[%d;%dH", y+1, x+1)
}

func seqKittyPush(flags KeyboardFlags) string {
	return fmt.Sprintf("\x1b[>%du", flags)
}
