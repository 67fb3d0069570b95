package surface

import (
	"image"
	"image/color"
	"sync"

	"github.com/bryanchriswhite/pixview/internal/pixel"
	"golang.org/x/image/draw"
)

// MaxDimension bounds each side of a composed surface.
const MaxDimension = 16384

// DefaultClearColor is the background shown around letterboxed frames.
var DefaultClearColor = color.RGBA{R: 80, G: 80, B: 80, A: 255}

// Framebuffer holds the last frame blitted into a window together with the
// pixel format and clear color used to present it.
type Framebuffer struct {
	mu     sync.Mutex
	format pixel.Format
	frame  *image.RGBA
	clear  color.RGBA
	scaler draw.Scaler
}

// NewFramebuffer returns an empty RGBA framebuffer.
func NewFramebuffer() *Framebuffer {
	return &Framebuffer{
		format: pixel.RGBA,
		clear:  DefaultClearColor,
		scaler: draw.ApproxBiLinear,
	}
}

// SetFormat changes the layout expected by the next Blit.
func (f *Framebuffer) SetFormat(name string) Status {
	format, err := pixel.ParseFormat(name)
	if err != nil {
		return StatusInvalidArgument
	}
	f.mu.Lock()
	f.format = format
	f.mu.Unlock()
	return StatusOK
}

// Format returns the current pixel format.
func (f *Framebuffer) Format() pixel.Format {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.format
}

// SetClearColor sets the opaque background color.
func (f *Framebuffer) SetClearColor(r, g, b uint8) {
	f.mu.Lock()
	f.clear = color.RGBA{R: r, G: g, B: b, A: 255}
	f.mu.Unlock()
}

// ClearColor returns the background color.
func (f *Framebuffer) ClearColor() color.RGBA {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clear
}

// Blit copies buf into the framebuffer. buf is not retained.
func (f *Framebuffer) Blit(buf []byte, width, height int) Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	frame, err := pixel.ToRGBA(f.frame, buf, width, height, f.format)
	if err != nil {
		return StatusInvalidArgument
	}
	f.frame = frame
	return StatusOK
}

// Size returns the dimensions of the last blitted frame.
func (f *Framebuffer) Size() image.Point {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.frame == nil {
		return image.Point{}
	}
	return f.frame.Rect.Size()
}

// Compose paints the clear color over dst and draws the frame letterboxed
// and centered on top of it. dst may be nil; a new image of size is
// returned in that case or when dst has a different size.
func (f *Framebuffer) Compose(dst *image.RGBA, size image.Point) *image.RGBA {
	if size.X <= 0 || size.Y <= 0 {
		return dst
	}
	size.X = min(size.X, MaxDimension)
	size.Y = min(size.Y, MaxDimension)
	if dst == nil || dst.Rect.Size() != size {
		dst = image.NewRGBA(image.Rectangle{Max: size})
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	draw.Draw(dst, dst.Bounds(), image.NewUniform(f.clear), image.Point{}, draw.Src)
	if f.frame == nil {
		return dst
	}

	target := pixel.Fit(f.frame.Rect.Size(), size)
	if target.Size() == f.frame.Rect.Size() {
		draw.Draw(dst, target, f.frame, image.Point{}, draw.Over)
	} else {
		f.scaler.Scale(dst, target, f.frame, f.frame.Bounds(), draw.Over, nil)
	}
	return dst
}
