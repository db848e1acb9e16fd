// Package raster holds the flat 8-bit pixel buffer passed between the codec
// and the compute device.
package raster

import "fmt"

// Image is a tightly packed 8-bit-per-channel pixel buffer, row major,
// channels interleaved. len(Pix) is always Width*Height*Channels.
type Image struct {
	Width    int
	Height   int
	Channels int
	Pix      []byte
}

// New validates the dimensions against pix and wraps it without copying.
func New(width, height, channels int, pix []byte) (*Image, error) {
	if err := check(width, height, channels); err != nil {
		return nil, err
	}
	if want := width * height * channels; len(pix) != want {
		return nil, fmt.Errorf("pixel buffer is %d bytes, %dx%dx%d needs %d", len(pix), width, height, channels, want)
	}
	return &Image{Width: width, Height: height, Channels: channels, Pix: pix}, nil
}

// NewBlank allocates a zeroed image.
func NewBlank(width, height, channels int) (*Image, error) {
	if err := check(width, height, channels); err != nil {
		return nil, err
	}
	return &Image{
		Width:    width,
		Height:   height,
		Channels: channels,
		Pix:      make([]byte, width*height*channels),
	}, nil
}

func check(width, height, channels int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid dimensions %dx%d", width, height)
	}
	switch channels {
	case 1, 3, 4:
	default:
		return fmt.Errorf("unsupported channel count %d", channels)
	}
	return nil
}

// Len returns the number of pixels.
func (m *Image) Len() int { return m.Width * m.Height }

// Offset returns the index of the first channel of pixel (x, y).
func (m *Image) Offset(x, y int) int {
	return (y*m.Width + x) * m.Channels
}

func (m *Image) String() string {
	return fmt.Sprintf("%dx%d (%d channels)", m.Width, m.Height, m.Channels)
}
