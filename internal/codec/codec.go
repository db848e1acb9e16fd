// Package codec turns image files into flat raster buffers and back.
package codec

import (
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"OpenCLGray/internal/failure"
	"OpenCLGray/internal/raster"
)

// JPEGQuality is the quality used for JPEG output, the maximum the encoder accepts.
const JPEGQuality = 100

// OutputMode is the permission of written images, matching a file made by
// os.Create under the common 022 umask.
const OutputMode os.FileMode = 0o644

// Decode reads the image at path. Opaque images decode to 3 channels,
// images with an alpha channel to 4.
func Decode(path string) (*raster.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, failure.New(failure.DecodeFailed, "opening "+path, err)
	}
	defer f.Close()

	img, err := DecodeReader(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// DecodeReader decodes an image stream in any registered format.
func DecodeReader(r io.Reader) (*raster.Image, error) {
	src, format, err := image.Decode(r)
	if err != nil {
		return nil, failure.New(failure.DecodeFailed, "decoding", err)
	}
	b := src.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, failure.New(failure.DecodeFailed, "decoding", fmt.Errorf("%s image has empty bounds %v", format, b))
	}

	nrgba := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(nrgba, nrgba.Bounds(), src, b.Min, draw.Src)

	channels := 4
	if opaque(src) {
		channels = 3
	}
	pix := nrgba.Pix
	if channels == 3 {
		pix = make([]byte, b.Dx()*b.Dy()*3)
		for i, j := 0, 0; i < len(nrgba.Pix); i, j = i+4, j+3 {
			copy(pix[j:j+3], nrgba.Pix[i:i+3])
		}
	}

	img, err := raster.New(b.Dx(), b.Dy(), channels, pix)
	if err != nil {
		return nil, failure.New(failure.DecodeFailed, "decoding", err)
	}
	return img, nil
}

func opaque(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return o.Opaque()
	}
	return false
}

// Encode writes img to path in the format named by the path's extension.
// The file appears only once encoding has fully succeeded.
func Encode(path string, img *raster.Image) error {
	enc, err := encoderFor(path)
	if err != nil {
		return failure.New(failure.EncodeFailed, "encoding "+path, err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return failure.New(failure.EncodeFailed, "creating output", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if err := enc(tmp, toImage(img)); err != nil {
		return failure.New(failure.EncodeFailed, "encoding "+path, err)
	}
	if err := tmp.Chmod(OutputMode); err != nil {
		return failure.New(failure.EncodeFailed, "writing "+path, err)
	}
	if err := tmp.Close(); err != nil {
		return failure.New(failure.EncodeFailed, "writing "+path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return failure.New(failure.EncodeFailed, "writing "+path, err)
	}
	committed = true
	return nil
}

type encodeFunc func(io.Writer, image.Image) error

func encoderFor(path string) (encodeFunc, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".jpg", ".jpeg":
		return func(w io.Writer, m image.Image) error {
			return jpeg.Encode(w, m, &jpeg.Options{Quality: JPEGQuality})
		}, nil
	case ".png":
		return png.Encode, nil
	case ".bmp":
		return bmp.Encode, nil
	case ".tif", ".tiff":
		return func(w io.Writer, m image.Image) error {
			return tiff.Encode(w, m, &tiff.Options{Compression: tiff.Deflate})
		}, nil
	case "":
		return nil, fmt.Errorf("output path has no extension")
	default:
		return nil, fmt.Errorf("unsupported output format %q", ext)
	}
}

// toImage wraps the raster buffer as an image.Image without copying pixel data
// where the layout allows it.
func toImage(img *raster.Image) image.Image {
	rect := image.Rect(0, 0, img.Width, img.Height)
	switch img.Channels {
	case 1:
		return &image.Gray{Pix: img.Pix, Stride: img.Width, Rect: rect}
	case 4:
		return &image.NRGBA{Pix: img.Pix, Stride: img.Width * 4, Rect: rect}
	default:
		out := image.NewNRGBA(rect)
		for i, j := 0, 0; j < len(img.Pix); i, j = i+4, j+3 {
			copy(out.Pix[i:i+3], img.Pix[j:j+3])
			out.Pix[i+3] = 0xFF
		}
		return out
	}
}
