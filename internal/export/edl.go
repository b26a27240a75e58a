package export

import (
	"fmt"
	"math"
	"strings"
)

// GenerateEDL renders clips as a CMX3600 list. Record timecodes run
// back-to-back from zero.
func GenerateEDL(clips []Clip, title string, frameRate float64) string {
	fps := int(math.Round(frameRate))
	if fps <= 0 {
		fps = 30
	}

	var b strings.Builder
	fmt.Fprintf(&b, "TITLE: %s\n", title)
	if isDropFrame(frameRate) {
		b.WriteString("FCM: DROP FRAME\n\n")
	} else {
		b.WriteString("FCM: NON-DROP FRAME\n\n")
	}

	record := 0
	for i, c := range clips {
		length := c.EndMs - c.StartMs
		fmt.Fprintf(&b, "%03d  %-8s %-5s C        %s %s %s %s\n", i+1, "AX", "V",
			timecode(c.StartMs, fps), timecode(c.EndMs, fps),
			timecode(record, fps), timecode(record+length, fps))
		fmt.Fprintf(&b, "* FROM CLIP NAME:  %s\n", c.Name)
		fmt.Fprintf(&b, "* MEDIA PATH:  %s\n", c.MediaPath)
		record += length
	}
	return b.String()
}

func isDropFrame(rate float64) bool {
	return math.Abs(rate-29.97) < 0.01 || math.Abs(rate-59.94) < 0.01
}

// timecode formats ms as HH:MM:SS:FF at fps.
func timecode(ms int, fps int) string {
	frames := int(math.Round(float64(ms) * float64(fps) / 1000.0))
	secs := frames / fps
	return fmt.Sprintf("%02d:%02d:%02d:%02d", secs/3600, secs/60%60, secs%60, frames%fps)
}
