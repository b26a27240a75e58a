// Package overlay draws detection boxes over a playing video, keyed by the
// video's playback time.
package overlay

import (
	"math"

	"github.com/roadwatch/roadwatch-agent/internal/detection"
)

// TimeKey quantises a playback time in seconds to whole milliseconds so that
// clock jitter below half a millisecond maps to the same key.
func TimeKey(seconds float64) (int64, bool) {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return 0, false
	}
	return int64(math.Round(seconds * 1000)), true
}

// FrameIndex maps quantised playback time to the boxes sampled at that
// instant for one batch. It is rebuilt wholesale, never patched.
type FrameIndex struct {
	frames map[int64][]detection.Box
}

func NewFrameIndex() *FrameIndex {
	return &FrameIndex{frames: make(map[int64][]detection.Box)}
}

// BuildFrameIndex indexes frames by TimeKey. Colliding keys keep the last entry.
func BuildFrameIndex(frames []detection.Frame) *FrameIndex {
	fi := &FrameIndex{frames: make(map[int64][]detection.Box, len(frames))}
	for _, f := range frames {
		key, ok := TimeKey(f.Time)
		if !ok {
			continue
		}
		fi.frames[key] = f.Boxes
	}
	return fi
}

// Lookup returns the boxes sampled at seconds, or nil. A nil index is empty.
func (fi *FrameIndex) Lookup(seconds float64) []detection.Box {
	if fi == nil {
		return nil
	}
	key, ok := TimeKey(seconds)
	if !ok {
		return nil
	}
	return fi.frames[key]
}

func (fi *FrameIndex) Clear() {
	if fi == nil {
		return
	}
	fi.frames = make(map[int64][]detection.Box)
}

func (fi *FrameIndex) Len() int {
	if fi == nil {
		return 0
	}
	return len(fi.frames)
}
