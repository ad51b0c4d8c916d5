package export

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/mrjoshuak/go-openexr/exr"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	labelMargin     = 6
	labelLineHeight = 15
)

var (
	labelColor  = color.RGBA{230, 230, 230, 255}
	shadowColor = color.RGBA{0, 0, 0, 255}
)

// Annotate draws lines of HUD text in the top-left corner of a finished
// frame, with a one pixel drop shadow so it reads on any background.
func Annotate(img *exr.RGBAImage, lines []string) {
	canvas := floatCanvas{img}
	for i, line := range lines {
		baseline := img.Rect.Min.Y + labelMargin + basicfont.Face7x13.Ascent + i*labelLineHeight
		left := img.Rect.Min.X + labelMargin
		drawString(canvas, line, left+1, baseline+1, shadowColor)
		drawString(canvas, line, left, baseline, labelColor)
	}
}

func drawString(dst draw.Image, s string, x, y int, c color.Color) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

// floatCanvas exposes a float frame as a 16-bit draw.Image
type floatCanvas struct {
	*exr.RGBAImage
}

func (c floatCanvas) ColorModel() color.Model {
	return color.RGBA64Model
}

func (c floatCanvas) At(x, y int) color.Color {
	r, g, b, a := c.RGBAImage.RGBA(x, y)
	return color.RGBA64{R: quantize16(r), G: quantize16(g), B: quantize16(b), A: quantize16(a)}
}

func (c floatCanvas) Set(x, y int, col color.Color) {
	r, g, b, a := col.RGBA()
	c.SetRGBA(x, y, float32(r)/0xffff, float32(g)/0xffff, float32(b)/0xffff, float32(a)/0xffff)
}
