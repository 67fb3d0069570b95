package x11

import (
	"fmt"
	"image"
)

// pixmapFormat is the server's layout for images of the window depth.
type pixmapFormat struct {
	depth        byte
	bitsPerPixel int
	scanlinePad  int
}

// stride returns the padded length of one scanline of width pixels.
func (f pixmapFormat) stride(width int) int {
	unpadded := width * f.bitsPerPixel / 8
	pad := f.scanlinePad / 8
	if pad <= 0 {
		return unpadded
	}
	return ((unpadded + pad - 1) / pad) * pad
}

// encode converts img to ZPixmap data in BGRx (or BGR) order matching the
// TrueColor masks 0xff0000, 0xff00, 0xff.
func (f pixmapFormat) encode(img *image.RGBA, dst []byte) ([]byte, error) {
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	bpp := f.bitsPerPixel / 8
	if bpp != 3 && bpp != 4 {
		return nil, fmt.Errorf("unsupported bits per pixel: %d", f.bitsPerPixel)
	}

	stride := f.stride(width)
	need := stride * height
	if cap(dst) < need {
		dst = make([]byte, need)
	}
	dst = dst[:need]

	for y := 0; y < height; y++ {
		src := img.Pix[img.PixOffset(b.Min.X, b.Min.Y+y):]
		row := dst[y*stride : (y+1)*stride]
		for x := 0; x < width; x++ {
			s := src[x*4 : x*4+4]
			d := row[x*bpp:]
			d[0] = s[2]
			d[1] = s[1]
			d[2] = s[0]
			if bpp == 4 {
				if f.depth == 32 {
					d[3] = s[3]
				} else {
					d[3] = 0
				}
			}
		}
		for i := width * bpp; i < stride; i++ {
			row[i] = 0
		}
	}
	return dst, nil
}

// strips splits height rows into bands whose PutImage request stays under
// maxBytes. Every band has at least one row.
func strips(height, stride, maxBytes int) [][2]int {
	// PutImage request header
	const header = 24
	rows := 1
	if stride > 0 && maxBytes > header+stride {
		rows = (maxBytes - header) / stride
	}
	var out [][2]int
	for y := 0; y < height; y += rows {
		end := y + rows
		if end > height {
			end = height
		}
		out = append(out, [2]int{y, end})
	}
	return out
}
