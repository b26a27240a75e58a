package overlay

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// Rect is a rectangle in surface pixels.
type Rect struct {
	X, Y, W, H float64
}

// Canvas is the transparent drawing surface laid over the video.
type Canvas interface {
	SetSize(width, height int)
	Size() (width, height int)
	Clear()
	StrokeRect(r Rect, c color.RGBA, lineWidth int)
	FillText(text string, x, y float64, c color.RGBA)
}

// RasterCanvas draws into an RGBA image.
type RasterCanvas struct {
	img  *image.RGBA
	face font.Face
}

func NewRasterCanvas() *RasterCanvas {
	return &RasterCanvas{
		img:  image.NewRGBA(image.Rect(0, 0, 0, 0)),
		face: LabelFace,
	}
}

// SetSize reallocates the surface, which also clears it.
func (c *RasterCanvas) SetSize(width, height int) {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	c.img = image.NewRGBA(image.Rect(0, 0, width, height))
}

func (c *RasterCanvas) Size() (int, int) {
	b := c.img.Bounds()
	return b.Dx(), b.Dy()
}

func (c *RasterCanvas) Clear() {
	draw.Draw(c.img, c.img.Bounds(), image.Transparent, image.Point{}, draw.Src)
}

func (c *RasterCanvas) StrokeRect(r Rect, col color.RGBA, lineWidth int) {
	if lineWidth < 1 {
		lineWidth = 1
	}
	x0 := int(math.Round(r.X))
	y0 := int(math.Round(r.Y))
	x1 := int(math.Round(r.X + r.W))
	y1 := int(math.Round(r.Y + r.H))
	half := lineWidth / 2
	src := image.NewUniform(col)

	edges := []image.Rectangle{
		image.Rect(x0-half, y0-half, x1+lineWidth-half, y0-half+lineWidth),
		image.Rect(x0-half, y1-half, x1+lineWidth-half, y1-half+lineWidth),
		image.Rect(x0-half, y0-half, x0-half+lineWidth, y1+lineWidth-half),
		image.Rect(x1-half, y0-half, x1-half+lineWidth, y1+lineWidth-half),
	}
	for _, e := range edges {
		draw.Draw(c.img, e.Intersect(c.img.Bounds()), src, image.Point{}, draw.Over)
	}
}

// FillText draws text with its baseline at y.
func (c *RasterCanvas) FillText(text string, x, y float64, col color.RGBA) {
	d := &font.Drawer{
		Dst:  c.img,
		Src:  image.NewUniform(col),
		Face: c.face,
		Dot:  fixed.Point26_6{X: fixed.I(int(math.Round(x))), Y: fixed.I(int(math.Round(y)))},
	}
	d.DrawString(text)
}

func (c *RasterCanvas) Image() image.Image {
	return c.img
}

func (c *RasterCanvas) PNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, c.img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
