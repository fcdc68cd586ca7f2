package graphics

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
)

// MaxChunkSize is the largest base64 payload carried by one escape
// sequence. Bounding each write to this size keeps individual sequences
// within what terminals reliably buffer.
const MaxChunkSize = 4096

// QueryImageID is the fixed image id used by the capability probe.
const QueryImageID = 31

// Codec builds and parses the kitty graphics protocol: chunked,
// base64-encoded APC escape sequences riding in-band over the terminal
// connection. One codec instance belongs to one session; the internal
// buffer and the image-id counter are reused across calls and assume
// single-threaded use.
type Codec struct {
	out    io.Writer
	buf    bytes.Buffer
	nextID uint32
}

// NewCodec builds a codec writing through the given backend writer.
func NewCodec(out io.Writer) *Codec {
	return &Codec{out: out, nextID: 1}
}

// NextImageID returns a fresh monotonically increasing image id,
// skipping the probe's reserved id.
func (c *Codec) NextImageID() uint32 {
	id := c.nextID
	if id == QueryImageID {
		id++
	}
	c.nextID = id + 1
	return id
}

// Transmit sends image data without displaying it (action t). The data
// becomes addressable by id for later Place calls.
func (c *Codec) Transmit(img Image, id uint32) error {
	if err := img.Validate(); err != nil {
		return err
	}
	params := fmt.Sprintf("a=t,f=%d%s,i=%d", img.Format, geometryParams(img), id)
	return c.emit(params, img.Data)
}

// Draw transmits and displays in one action (T). When p.ImageID is
// zero a fresh id is assigned; the id in effect is returned.
func (c *Codec) Draw(img Image, p Placement) (uint32, error) {
	if err := img.Validate(); err != nil {
		return 0, err
	}
	if p.ImageID == 0 {
		p.ImageID = c.NextImageID()
	}
	params := fmt.Sprintf("a=T,f=%d%s%s", img.Format, geometryParams(img), placementParams(p))
	if err := c.emit(params, img.Data); err != nil {
		return 0, err
	}
	return p.ImageID, nil
}

// TransmitPNG sends an already-encoded PNG payload without displaying
// it. The terminal decodes the PNG itself, so no geometry is carried.
func (c *Codec) TransmitPNG(data []byte, id uint32) error {
	return c.Transmit(FromPNG(data), id)
}

// DrawAt saves the cursor, moves it to the given cell, draws the image
// there and restores the cursor. col and row are zero-based cells. The
// restore is written even when drawing fails so the cursor never stays
// parked at the placement site.
func (c *Codec) DrawAt(img Image, col, row int, p Placement) (uint32, error) {
	if _, err := fmt.Fprintf(c.out, "\x1b[s\x1b[%d;%dH", row+1, col+1); err != nil {
		return 0, fmt.Errorf("graphics: write sequence: %w", err)
	}
	p.SuppressCursor = true
	id, err := c.Draw(img, p)
	if _, werr := io.WriteString(c.out, "\x1b[u"); werr != nil && err == nil {
		err = fmt.Errorf("graphics: write sequence: %w", werr)
	}
	return id, err
}

// Place displays a previously transmitted image (action p).
func (c *Codec) Place(p Placement) error {
	if p.ImageID == 0 {
		return fmt.Errorf("graphics: place needs an image id")
	}
	return c.emit("a=p"+placementParams(p), nil)
}

// DeleteAll removes every visible placement.
func (c *Codec) DeleteAll() error {
	return c.emit("a=d,d=a", nil)
}

// DeleteImage removes all placements of one image and frees its data.
func (c *Codec) DeleteImage(id uint32) error {
	return c.emit(fmt.Sprintf("a=d,d=i,i=%d", id), nil)
}

// DeletePlacement removes a single placement of an image.
func (c *Codec) DeletePlacement(id, placementID uint32) error {
	return c.emit(fmt.Sprintf("a=d,d=i,i=%d,p=%d", id, placementID), nil)
}

// DeleteAtCursor removes placements intersecting the cursor cell.
func (c *Codec) DeleteAtCursor() error {
	return c.emit("a=d,d=c", nil)
}

// DeleteRows removes placements intersecting the given row range,
// inclusive on both ends.
func (c *Codec) DeleteRows(first, last int) error {
	for y := first; y <= last; y++ {
		if err := c.emit(fmt.Sprintf("a=d,d=y,y=%d", y+1), nil); err != nil {
			return err
		}
	}
	return nil
}

// queryPayload is one transparent RGBA pixel.
var queryPayload = []byte{0, 0, 0, 0}

// Query sends the capability probe: a 1×1 transparent image with the
// reserved probe id. A supporting terminal answers with ";OK"; anything
// else, or silence, means the protocol is not spoken.
func (c *Codec) Query() error {
	params := fmt.Sprintf("a=q,f=32,s=1,v=1,i=%d", QueryImageID)
	return c.emit(params, queryPayload)
}

// emit encodes data, splits it into bounded chunks and writes the whole
// escape stream in one writer call. The first chunk carries the full
// parameter list; later chunks carry only the continuation marker, as
// the protocol requires.
func (c *Codec) emit(params string, data []byte) error {
	c.buf.Reset()

	if len(data) == 0 {
		c.buf.WriteString("\x1b_G")
		c.buf.WriteString(params)
		c.buf.WriteString(",m=0;")
		c.buf.WriteString("\x1b\\")
		return c.flush()
	}

	encoded := base64.StdEncoding.EncodeToString(data)
	first := true
	for len(encoded) > 0 {
		n := len(encoded)
		if n > MaxChunkSize {
			n = MaxChunkSize
		}
		chunk := encoded[:n]
		encoded = encoded[n:]

		c.buf.WriteString("\x1b_G")
		if first {
			c.buf.WriteString(params)
			c.buf.WriteByte(',')
			first = false
		}
		if len(encoded) > 0 {
			c.buf.WriteString("m=1;")
		} else {
			c.buf.WriteString("m=0;")
		}
		c.buf.WriteString(chunk)
		c.buf.WriteString("\x1b\\")
	}
	return c.flush()
}

func (c *Codec) flush() error {
	if _, err := c.out.Write(c.buf.Bytes()); err != nil {
		return fmt.Errorf("graphics: write sequence: %w", err)
	}
	return nil
}

func geometryParams(img Image) string {
	if img.Format == FormatPNG {
		return ""
	}
	return fmt.Sprintf(",s=%d,v=%d", img.Width, img.Height)
}

func placementParams(p Placement) string {
	var sb strings.Builder
	if p.ImageID != 0 {
		fmt.Fprintf(&sb, ",i=%d", p.ImageID)
	}
	if p.PlacementID != 0 {
		fmt.Fprintf(&sb, ",p=%d", p.PlacementID)
	}
	if p.X != 0 {
		fmt.Fprintf(&sb, ",x=%d", p.X)
	}
	if p.Y != 0 {
		fmt.Fprintf(&sb, ",y=%d", p.Y)
	}
	if p.Cols != 0 {
		fmt.Fprintf(&sb, ",c=%d", p.Cols)
	}
	if p.Rows != 0 {
		fmt.Fprintf(&sb, ",r=%d", p.Rows)
	}
	if p.Z != 0 {
		fmt.Fprintf(&sb, ",z=%d", p.Z)
	}
	if p.SuppressCursor {
		sb.WriteString(",C=1")
	}
	return sb.String()
}

// QueryResponse is the parsed outcome of a capability probe.
type QueryResponse struct {
	// Responded reports whether a graphics response was present at all.
	Responded bool
	// Supported reports an "OK" payload.
	Supported bool
	// Message holds the error token for non-OK responses.
	Message string
}

// ParseResponse scans raw bytes read back from the terminal for a
// graphics response. A terminal that does not speak the protocol echoes
// garbage or nothing; both degrade to "no response" rather than an
// error so the rest of the input stream stays interpretable.
func ParseResponse(data []byte) QueryResponse {
	start := bytes.Index(data, []byte("\x1b_G"))
	if start < 0 {
		return QueryResponse{}
	}
	rest := data[start+3:]
	end := bytes.Index(rest, []byte("\x1b\\"))
	if end < 0 {
		return QueryResponse{}
	}
	body := rest[:end]

	sep := bytes.IndexByte(body, ';')
	if sep < 0 {
		return QueryResponse{Responded: true}
	}
	payload := string(body[sep+1:])
	if payload == "OK" {
		return QueryResponse{Responded: true, Supported: true}
	}
	return QueryResponse{Responded: true, Message: payload}
}
