package overlay

import (
	"image"

	"github.com/hajimehoshi/bitmapfont/v4"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// LabelFace draws defect labels. The simplified-Chinese bitmap face covers
// the defect names; basicfont fills in any rune it lacks.
var LabelFace font.Face = fallbackFace{
	primary:  bitmapfont.FaceSC,
	fallback: basicfont.Face7x13,
}

// fallbackFace resolves each rune against primary first. Metrics and kerning
// come from primary.
type fallbackFace struct {
	primary  font.Face
	fallback font.Face
}

func (f fallbackFace) pick(r rune) font.Face {
	if _, ok := f.primary.GlyphAdvance(r); ok {
		return f.primary
	}
	return f.fallback
}

func (f fallbackFace) Close() error {
	return nil
}

func (f fallbackFace) Glyph(dot fixed.Point26_6, r rune) (image.Rectangle, image.Image, image.Point, fixed.Int26_6, bool) {
	return f.pick(r).Glyph(dot, r)
}

func (f fallbackFace) GlyphBounds(r rune) (fixed.Rectangle26_6, fixed.Int26_6, bool) {
	return f.pick(r).GlyphBounds(r)
}

func (f fallbackFace) GlyphAdvance(r rune) (fixed.Int26_6, bool) {
	return f.pick(r).GlyphAdvance(r)
}

func (f fallbackFace) Kern(r0, r1 rune) fixed.Int26_6 {
	return f.primary.Kern(r0, r1)
}

func (f fallbackFace) Metrics() font.Metrics {
	return f.primary.Metrics()
}
