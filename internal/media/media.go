// Package media models the playback host the overlay is drawn against: a
// video element, its optional per-frame callback capability, and the display
// refresh primitive.
package media

import (
	"errors"
	"time"
)

var (
	ErrNoSource        = errors.New("no media source")
	ErrAutoplayBlocked = errors.New("playback blocked until user activation")
)

type Event string

const (
	EventPlay           Event = "play"
	EventPause          Event = "pause"
	EventEnded          Event = "ended"
	EventLoadedMetadata Event = "loadedmetadata"
	EventSeeked         Event = "seeked"
	EventResize         Event = "resize"
)

// Video is the playback element. Methods must be called from the event loop
// that owns the element; listeners are dispatched as separate loop tasks.
type Video interface {
	CurrentTime() float64
	Seek(seconds float64)
	Duration() float64
	Paused() bool
	Ended() bool
	// IntrinsicSize is the decoded frame resolution, zero until metadata is known.
	IntrinsicSize() (width, height int)
	// DisplaySize is the laid-out size of the element.
	DisplaySize() (width, height int)
	Source() string
	SetSource(src string)
	Load()
	Play() error
	Pause()
	On(ev Event, fn func())
}

// FrameMetadata describes the frame about to be presented.
type FrameMetadata struct {
	MediaTime       float64
	PresentedFrames uint64
	Width           int
	Height          int
}

// FrameCallbacker is implemented by hosts that can call back once per
// presented video frame.
type FrameCallbacker interface {
	RequestVideoFrameCallback(fn func(now time.Time, meta FrameMetadata))
}

// Display schedules work for the next display refresh.
type Display interface {
	RequestAnimationFrame(fn func(now time.Time))
}

// LayoutSetter is implemented by hosts whose laid-out size can be changed.
type LayoutSetter interface {
	SetDisplaySize(width, height int)
}

// Activator is implemented by hosts that gate playback on user activation.
type Activator interface {
	Activate()
}

// WithoutFrameCallbacks hides any per-frame callback capability of v, forcing
// consumers onto the display refresh path.
func WithoutFrameCallbacks(v Video) Video {
	return plainVideo{v}
}

type plainVideo struct {
	Video
}

func (p plainVideo) Activate() {
	if a, ok := p.Video.(Activator); ok {
		a.Activate()
	}
}

func (p plainVideo) SetDisplaySize(width, height int) {
	if ls, ok := p.Video.(LayoutSetter); ok {
		ls.SetDisplaySize(width, height)
	}
}
