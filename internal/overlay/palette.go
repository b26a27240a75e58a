package overlay

import "image/color"

var DefaultColor = color.RGBA{R: 0x00, G: 0xff, B: 0x00, A: 0xff}

var labelColors = map[string]color.RGBA{
	"裂缝": {R: 0xff, G: 0x00, B: 0x00, A: 0xff},
	"坑槽": {R: 0x00, G: 0xff, B: 0x00, A: 0xff},
	"松散": {R: 0x00, G: 0x00, B: 0xff, A: 0xff},
	"沉陷": {R: 0xff, G: 0xff, B: 0x00, A: 0xff},
}

// ColorFor returns the stroke colour for a defect label.
func ColorFor(label string) color.RGBA {
	if c, ok := labelColors[label]; ok {
		return c
	}
	return DefaultColor
}
