package grid

// ColorModel represents how a colour is encoded.
type ColorModel uint8

const (
	ColorModelDefault ColorModel = iota
	ColorModelANSI16
	ColorModelANSI256
	ColorModelRGB
)

// Color is a tagged colour value. The meaning of Value depends on Model:
// an index 0-15 for ANSI16, 0-255 for ANSI256, 0xRRGGBB for RGB, and
// ignored for the default (terminal-chosen) colour.
type Color struct {
	Model ColorModel
	Value uint32
}

// ColorDefault is the terminal's own default foreground/background.
var ColorDefault = Color{Model: ColorModelDefault}

// ANSI16 returns one of the 16 named colours (0-15).
func ANSI16(n uint8) Color {
	return Color{Model: ColorModelANSI16, Value: uint32(n & 0x0F)}
}

// ANSI256 returns an 8-bit indexed palette colour.
func ANSI256(n uint8) Color {
	return Color{Model: ColorModelANSI256, Value: uint32(n)}
}

// RGB returns a 24-bit true colour.
func RGB(r, g, b uint8) Color {
	return Color{Model: ColorModelRGB, Value: uint32(r)<<16 | uint32(g)<<8 | uint32(b)}
}

// The 16 named colours.
var (
	ColorBlack         = ANSI16(0)
	ColorRed           = ANSI16(1)
	ColorGreen         = ANSI16(2)
	ColorYellow        = ANSI16(3)
	ColorBlue          = ANSI16(4)
	ColorMagenta       = ANSI16(5)
	ColorCyan          = ANSI16(6)
	ColorWhite         = ANSI16(7)
	ColorBrightBlack   = ANSI16(8)
	ColorBrightRed     = ANSI16(9)
	ColorBrightGreen   = ANSI16(10)
	ColorBrightYellow  = ANSI16(11)
	ColorBrightBlue    = ANSI16(12)
	ColorBrightMagenta = ANSI16(13)
	ColorBrightCyan    = ANSI16(14)
	ColorBrightWhite   = ANSI16(15)
)

// AttrMask is a bitmask of text style modifiers.
type AttrMask uint16

const (
	AttrBold AttrMask = 1 << iota
	AttrDim
	AttrItalic
	AttrUnderline
	AttrBlink
	AttrRapidBlink
	AttrReverse
	AttrHidden
	AttrStrikethrough
)

// Style is the full visual styling of a cell: foreground, background and
// attribute modifiers. The zero value is the terminal default.
type Style struct {
	Fg    Color
	Bg    Color
	Attrs AttrMask
}

// StyleDefault is plain text in the terminal's default colours.
var StyleDefault = Style{}

// Foreground returns a copy of the style with the foreground replaced.
func (s Style) Foreground(c Color) Style {
	s.Fg = c
	return s
}

// Background returns a copy of the style with the background replaced.
func (s Style) Background(c Color) Style {
	s.Bg = c
	return s
}

// Attributes returns a copy of the style with the attribute mask replaced.
func (s Style) Attributes(a AttrMask) Style {
	s.Attrs = a
	return s
}

// Cell represents a single character cell on the terminal screen, with a
// character (Ch) and its styling. Ch == 0 marks the spacer half of a
// wide glyph written by SetString; the serializer emits nothing for it.
type Cell struct {
	Ch    rune
	Style Style
}

// CellBlank is an empty cell: a space in the default style.
var CellBlank = Cell{Ch: ' '}

// IsSpacer reports whether the cell is the trailing half of a wide glyph.
func (c Cell) IsSpacer() bool {
	return c.Ch == 0
}
