package overlay

import (
	"time"

	"github.com/roadwatch/roadwatch-agent/internal/media"
)

const (
	StrategyFrameCallback  = "frame-callback"
	StrategyDisplayRefresh = "display-refresh"
)

// Scheduler arranges for draw to run at the next host-chosen instant with the
// playback time that instant corresponds to.
type Scheduler interface {
	Name() string
	Schedule(draw func(mediaTime float64))
}

// frameScheduler draws once per presented video frame using the frame's own
// media time.
type frameScheduler struct {
	frames media.FrameCallbacker
}

func (s frameScheduler) Name() string { return StrategyFrameCallback }

func (s frameScheduler) Schedule(draw func(float64)) {
	s.frames.RequestVideoFrameCallback(func(_ time.Time, meta media.FrameMetadata) {
		draw(meta.MediaTime)
	})
}

// refreshScheduler draws once per display refresh, polling the video clock.
type refreshScheduler struct {
	display media.Display
	video   media.Video
}

func (s refreshScheduler) Name() string { return StrategyDisplayRefresh }

func (s refreshScheduler) Schedule(draw func(float64)) {
	s.display.RequestAnimationFrame(func(time.Time) {
		draw(s.video.CurrentTime())
	})
}

// SelectScheduler prefers per-frame callbacks when the video supports them.
func SelectScheduler(video media.Video, display media.Display) Scheduler {
	if fc, ok := video.(media.FrameCallbacker); ok {
		return frameScheduler{frames: fc}
	}
	return refreshScheduler{display: display, video: video}
}
