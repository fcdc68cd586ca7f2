package grid

import (
	"github.com/mattn/go-runewidth"
	"github.com/rivo/uniseg"
)

// Rect is a rectangular region in cell coordinates.
type Rect struct {
	X, Y, W, H int
}

// Contains reports whether the point (x, y) lies inside the rectangle.
func (r Rect) Contains(x, y int) bool {
	return x >= r.X && x < r.X+r.W && y >= r.Y && y < r.Y+r.H
}

// Buffer is a rectangular array of cells representing one screen state.
// Storage is row-major and owned exclusively by the buffer.
type Buffer struct {
	width  int
	height int
	cells  []Cell
}

// NewBuffer returns a buffer of the given dimensions with every cell
// set to a blank (space, default style). Non-positive dimensions are
// clamped to zero.
func NewBuffer(width, height int) *Buffer {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	b := &Buffer{
		width:  width,
		height: height,
		cells:  make([]Cell, width*height),
	}
	b.Clear()
	return b
}

// Size returns the buffer's dimensions in cells.
func (b *Buffer) Size() (width, height int) {
	return b.width, b.height
}

// Width returns the buffer width in cells.
func (b *Buffer) Width() int { return b.width }

// Height returns the buffer height in cells.
func (b *Buffer) Height() int { return b.height }

// Area returns the buffer's full extent as a rectangle at the origin.
func (b *Buffer) Area() Rect {
	return Rect{W: b.width, H: b.height}
}

// Get returns a mutable reference to the cell at (x, y), or false when
// the coordinates are outside the buffer.
func (b *Buffer) Get(x, y int) (*Cell, bool) {
	if x < 0 || y < 0 || x >= b.width || y >= b.height {
		return nil, false
	}
	return &b.cells[y*b.width+x], true
}

// Set overwrites the cell at (x, y). Out-of-range writes are dropped.
func (b *Buffer) Set(x, y int, cell Cell) {
	if x < 0 || y < 0 || x >= b.width || y >= b.height {
		return
	}
	b.cells[y*b.width+x] = cell
}

// SetChar writes one character at (x, y) with the given style.
func (b *Buffer) SetChar(x, y int, ch rune, style Style) {
	b.Set(x, y, Cell{Ch: ch, Style: style})
}

// SetString writes text left to right starting at (x, y), clipping
// silently at the right edge. Text is segmented into grapheme clusters;
// a cluster wider than one column occupies its measured width, with the
// extra columns marked as spacer cells. The x position one past the
// last written column is returned.
func (b *Buffer) SetString(x, y int, text string, style Style) int {
	if y < 0 || y >= b.height {
		return x
	}
	state := -1
	remainder := text
	for len(remainder) > 0 {
		var cluster string
		cluster, remainder, _, state = uniseg.FirstGraphemeClusterInString(remainder, state)
		w := runewidth.StringWidth(cluster)
		if w < 1 {
			w = 1
		}
		if x >= b.width {
			break
		}
		if x >= 0 {
			b.Set(x, y, Cell{Ch: firstRune(cluster), Style: style})
			for i := 1; i < w && x+i < b.width; i++ {
				b.Set(x+i, y, Cell{Ch: 0, Style: style})
			}
		}
		x += w
	}
	return x
}

// SetStringTruncated writes text like SetString but hard-limits it to
// maxWidth columns, replacing the final column with an ellipsis when
// the text does not fit.
func (b *Buffer) SetStringTruncated(x, y int, text string, style Style, maxWidth int) int {
	if maxWidth <= 0 {
		return x
	}
	if runewidth.StringWidth(text) <= maxWidth {
		return b.SetString(x, y, text, style)
	}
	truncated := runewidth.Truncate(text, maxWidth, "…")
	return b.SetString(x, y, truncated, style)
}

// Fill overwrites every cell inside area (clipped to the buffer) with
// the given character and style.
func (b *Buffer) Fill(area Rect, ch rune, style Style) {
	for y := area.Y; y < area.Y+area.H; y++ {
		for x := area.X; x < area.X+area.W; x++ {
			b.Set(x, y, Cell{Ch: ch, Style: style})
		}
	}
}

// Clear resets every cell to a blank in the default style.
func (b *Buffer) Clear() {
	for i := range b.cells {
		b.cells[i] = CellBlank
	}
}

// Resize reallocates storage for the new dimensions. Content inside the
// overlapping region is preserved; everything else is discarded. The old
// storage is released.
func (b *Buffer) Resize(width, height int) {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	if width == b.width && height == b.height {
		return
	}
	cells := make([]Cell, width*height)
	for i := range cells {
		cells[i] = CellBlank
	}
	copyW := min(width, b.width)
	copyH := min(height, b.height)
	for y := 0; y < copyH; y++ {
		copy(cells[y*width:y*width+copyW], b.cells[y*b.width:y*b.width+copyW])
	}
	b.width = width
	b.height = height
	b.cells = cells
}

// CopyFrom overwrites this buffer's content with src. Both buffers must
// have identical dimensions; mismatched copies are dropped.
func (b *Buffer) CopyFrom(src *Buffer) {
	if src == nil || src.width != b.width || src.height != b.height {
		return
	}
	copy(b.cells, src.cells)
}

// Clone returns an independent copy of the buffer.
func (b *Buffer) Clone() *Buffer {
	c := &Buffer{width: b.width, height: b.height, cells: make([]Cell, len(b.cells))}
	copy(c.cells, b.cells)
	return c
}

func firstRune(s string) rune {
	for _, r := range s {
		return r
	}
	return ' '
}
