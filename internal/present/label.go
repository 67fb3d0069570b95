package present

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// LabelColor is the text color used by DrawLabel.
var LabelColor = color.RGBA{R: 50, G: 50, B: 50, A: 255}

// DrawLabel writes text centered on img with the basic 7x13 face.
func DrawLabel(img draw.Image, text string) {
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(LabelColor),
		Face: face,
	}

	b := img.Bounds()
	width := d.MeasureString(text).Ceil()
	x := b.Min.X + (b.Dx()-width)/2
	y := b.Min.Y + (b.Dy()+face.Ascent-face.Descent)/2
	d.Dot = fixed.P(x, y)
	d.DrawString(text)
}
