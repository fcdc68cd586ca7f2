package graphics

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"

	xdraw "golang.org/x/image/draw"
)

// Format is the pixel format code used on the wire.
type Format uint8

const (
	FormatRGB  Format = 24
	FormatRGBA Format = 32
	FormatPNG  Format = 100
)

var (
	// ErrUnsupportedFormat is returned for a pixel format the protocol
	// does not define.
	ErrUnsupportedFormat = errors.New("graphics: unsupported pixel format")

	// ErrBadGeometry is returned when an image's data length does not
	// match its declared dimensions.
	ErrBadGeometry = errors.New("graphics: image data does not match dimensions")

	// ErrPayloadTooLarge is returned when image data exceeds
	// MaxPayloadSize. Caught at construction so the chunk writer never
	// starts a stream it cannot finish.
	ErrPayloadTooLarge = errors.New("graphics: image payload too large")
)

// MaxPayloadSize bounds the raw byte size of a single image payload.
const MaxPayloadSize = 64 << 20

// Image is raw pixel data ready for transmission. Width and Height are
// pixel dimensions; PNG payloads carry their own and may leave them zero.
type Image struct {
	Data   []byte
	Format Format
	Width  int
	Height int
}

// Validate checks the format tag and, for raw formats, that the data
// length matches the declared geometry.
func (img Image) Validate() error {
	if len(img.Data) > MaxPayloadSize {
		return fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(img.Data))
	}
	var bpp int
	switch img.Format {
	case FormatRGB:
		bpp = 3
	case FormatRGBA:
		bpp = 4
	case FormatPNG:
		return nil
	default:
		return fmt.Errorf("%w: %d", ErrUnsupportedFormat, img.Format)
	}
	if img.Width <= 0 || img.Height <= 0 || len(img.Data) != img.Width*img.Height*bpp {
		return fmt.Errorf("%w: %dx%d with %d bytes", ErrBadGeometry, img.Width, img.Height, len(img.Data))
	}
	return nil
}

// Placement describes where and how a transmitted image is shown.
// Zero-valued fields are omitted from the wire parameters.
type Placement struct {
	ImageID     uint32
	PlacementID uint32
	X, Y        int
	Cols, Rows  int
	Z           int
	// SuppressCursor keeps the cursor where it is instead of moving it
	// past the placed image.
	SuppressCursor bool
}

// FromImage converts any decoded image into the codec's RGBA wire
// format.
func FromImage(src image.Image) Image {
	bounds := src.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	xdraw.Copy(rgba, image.Point{}, src, bounds, xdraw.Src, nil)
	return Image{
		Data:   rgba.Pix,
		Format: FormatRGBA,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}
}

// FromImageScaled converts like FromImage but resamples to the given
// pixel dimensions first.
func FromImageScaled(src image.Image, width, height int) Image {
	rgba := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.ApproxBiLinear.Scale(rgba, rgba.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return Image{
		Data:   rgba.Pix,
		Format: FormatRGBA,
		Width:  width,
		Height: height,
	}
}

// FromPNG wraps an already-encoded PNG for pass-through transmission.
func FromPNG(data []byte) Image {
	return Image{Data: data, Format: FormatPNG}
}

// EncodePNG compresses a decoded image to a PNG pass-through Image.
func EncodePNG(src image.Image) (Image, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		return Image{}, fmt.Errorf("graphics: png encode: %w", err)
	}
	return FromPNG(buf.Bytes()), nil
}
