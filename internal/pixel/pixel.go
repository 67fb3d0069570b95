// Package pixel describes raw pixel buffers and converts them to and from
// image.RGBA.
package pixel

import (
	"errors"
	"fmt"
	"image"
	"math"
	"strings"

	"golang.org/x/image/draw"
)

// Format is the byte layout of one pixel in a raw buffer.
type Format uint8

const (
	RGBA Format = iota
	RGB
	BGRA
)

// ErrUnknownFormat is returned for format names other than rgb, rgba, bgra.
var ErrUnknownFormat = errors.New("unknown pixel format")

// ParseFormat parses a case-insensitive format name. The empty string is RGBA.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(name) {
	case "", "rgba":
		return RGBA, nil
	case "rgb":
		return RGB, nil
	case "bgra":
		return BGRA, nil
	}
	return RGBA, fmt.Errorf("%w: %q", ErrUnknownFormat, name)
}

func (f Format) String() string {
	switch f {
	case RGBA:
		return "rgba"
	case RGB:
		return "rgb"
	case BGRA:
		return "bgra"
	}
	return fmt.Sprintf("format(%d)", uint8(f))
}

// BytesPerPixel returns 3 for RGB and 4 otherwise.
func (f Format) BytesPerPixel() int {
	if f == RGB {
		return 3
	}
	return 4
}

// Len returns the number of bytes a width x height buffer occupies. It is 0
// for empty sizes and for sizes whose RGBA conversion would overflow int.
func (f Format) Len(width, height int) int {
	if width <= 0 || height <= 0 {
		return 0
	}
	if width > math.MaxInt/height/4 {
		return 0
	}
	return width * height * f.BytesPerPixel()
}

// ToRGBA converts buf into dst, reallocating dst when its size differs.
// The returned image never aliases buf.
func ToRGBA(dst *image.RGBA, buf []byte, width, height int, f Format) (*image.RGBA, error) {
	need := f.Len(width, height)
	if need == 0 {
		return nil, fmt.Errorf("invalid buffer size %dx%d", width, height)
	}
	if len(buf) < need {
		return nil, fmt.Errorf("buffer too short: have %d bytes, need %d", len(buf), need)
	}

	if dst == nil || dst.Rect.Dx() != width || dst.Rect.Dy() != height {
		dst = image.NewRGBA(image.Rect(0, 0, width, height))
	}

	switch f {
	case RGBA:
		for y := 0; y < height; y++ {
			copy(dst.Pix[y*dst.Stride:y*dst.Stride+width*4], buf[y*width*4:])
		}
	case BGRA:
		for y := 0; y < height; y++ {
			src := buf[y*width*4:]
			row := dst.Pix[y*dst.Stride:]
			for x := 0; x < width; x++ {
				row[4*x+0] = src[4*x+2]
				row[4*x+1] = src[4*x+1]
				row[4*x+2] = src[4*x+0]
				row[4*x+3] = src[4*x+3]
			}
		}
	case RGB:
		for y := 0; y < height; y++ {
			src := buf[y*width*3:]
			row := dst.Pix[y*dst.Stride:]
			for x := 0; x < width; x++ {
				row[4*x+0] = src[3*x+0]
				row[4*x+1] = src[3*x+1]
				row[4*x+2] = src[3*x+2]
				row[4*x+3] = 0xff
			}
		}
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownFormat, f)
	}
	return dst, nil
}

// FromImage flattens img into a tightly packed buffer in format f.
func FromImage(img image.Image, f Format) (buf []byte, width, height int) {
	b := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Rect.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	}
	width, height = rgba.Rect.Dx(), rgba.Rect.Dy()
	bpp := f.BytesPerPixel()
	buf = make([]byte, f.Len(width, height))
	for y := 0; y < height; y++ {
		row := rgba.Pix[y*rgba.Stride:]
		out := buf[y*width*bpp:]
		for x := 0; x < width; x++ {
			r, g, bl, a := row[4*x], row[4*x+1], row[4*x+2], row[4*x+3]
			switch f {
			case RGB:
				out[3*x], out[3*x+1], out[3*x+2] = r, g, bl
			case BGRA:
				out[4*x], out[4*x+1], out[4*x+2], out[4*x+3] = bl, g, r, a
			default:
				out[4*x], out[4*x+1], out[4*x+2], out[4*x+3] = r, g, bl, a
			}
		}
	}
	return buf, width, height
}

// Fit returns the largest rectangle with src's aspect ratio that fits in
// dst, centered.
func Fit(src, dst image.Point) image.Rectangle {
	if src.X <= 0 || src.Y <= 0 || dst.X <= 0 || dst.Y <= 0 {
		return image.Rectangle{}
	}
	scaleX := float64(dst.X) / float64(src.X)
	scaleY := float64(dst.Y) / float64(src.Y)
	scale := scaleX
	if scaleY < scaleX {
		scale = scaleY
	}
	w := int(float64(src.X) * scale)
	h := int(float64(src.Y) * scale)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	x := (dst.X - w) / 2
	y := (dst.Y - h) / 2
	return image.Rect(x, y, x+w, y+h)
}
