package grid

// Update is one cell change computed between two buffers.
type Update struct {
	X, Y int
	Cell Cell
}

// Diff compares two buffers of identical dimensions and returns one
// update per differing cell, in row-major order. The ordering matters:
// consecutive updates on the same row let the serializer skip cursor
// repositioning. When the dimensions disagree only the shared region
// is compared.
func Diff(current, next *Buffer) []Update {
	if current == nil || next == nil {
		return nil
	}
	w := min(current.width, next.width)
	h := min(current.height, next.height)

	var updates []Update
	for y := 0; y < h; y++ {
		curRow := current.cells[y*current.width:]
		nextRow := next.cells[y*next.width:]
		for x := 0; x < w; x++ {
			if curRow[x] != nextRow[x] {
				updates = append(updates, Update{X: x, Y: y, Cell: nextRow[x]})
			}
		}
	}
	return updates
}

// Apply writes every update into the buffer. Out-of-range updates are
// dropped, matching Set semantics.
func Apply(b *Buffer, updates []Update) {
	for _, u := range updates {
		b.Set(u.X, u.Y, u.Cell)
	}
}
