package media

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/roadwatch/roadwatch-agent/internal/eventloop"
)

const defaultFrameRate = 30.0

// Metadata is what a loaded source reveals about itself.
type Metadata struct {
	Width     int
	Height    int
	Duration  float64
	FrameRate float64
}

type SimVideoConfig struct {
	Loop   *eventloop.Loop
	Prober Prober
	// Fallback is used when the source cannot be probed.
	Fallback        Metadata
	DisplayWidth    int
	DisplayHeight   int
	AutoplayBlocked bool
	ProbeTimeout    time.Duration
	// ResolveSource maps a source reference (for example a path relative to
	// the backend) to something the prober can open.
	ResolveSource func(src string) string
	Logger        *slog.Logger
	Now           func() time.Time
}

// SimVideo is a wall-clock driven video element. It presents frames at the
// source frame rate, detects end of media and dispatches element events on
// the owning loop.
type SimVideo struct {
	cfg  SimVideoConfig
	now  func() time.Time
	loop *eventloop.Loop

	src       string
	meta      Metadata
	paused    bool
	ended     bool
	position  float64
	anchor    time.Time
	activated bool

	displayW int
	displayH int

	listeners map[Event][]func()

	playSeq       uint64
	loadSeq       uint64
	frameTimer    *time.Timer
	endTimer      *time.Timer
	pendingFrames []func(time.Time, FrameMetadata)
	presented     uint64
}

func NewSimVideo(cfg SimVideoConfig) *SimVideo {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 10 * time.Second
	}
	return &SimVideo{
		cfg:       cfg,
		now:       now,
		loop:      cfg.Loop,
		paused:    true,
		displayW:  cfg.DisplayWidth,
		displayH:  cfg.DisplayHeight,
		listeners: make(map[Event][]func()),
	}
}

func (v *SimVideo) On(ev Event, fn func()) {
	v.listeners[ev] = append(v.listeners[ev], fn)
}

func (v *SimVideo) dispatch(ev Event) {
	v.loop.Post(func() {
		for _, fn := range v.listeners[ev] {
			fn()
		}
	})
}

func (v *SimVideo) CurrentTime() float64 {
	if v.paused {
		return v.position
	}
	t := v.position + v.now().Sub(v.anchor).Seconds()
	if v.meta.Duration > 0 && t > v.meta.Duration {
		return v.meta.Duration
	}
	return t
}

func (v *SimVideo) Duration() float64 {
	return v.meta.Duration
}

func (v *SimVideo) Paused() bool {
	return v.paused
}

func (v *SimVideo) Ended() bool {
	return v.ended
}

func (v *SimVideo) IntrinsicSize() (int, int) {
	return v.meta.Width, v.meta.Height
}

func (v *SimVideo) DisplaySize() (int, int) {
	return v.displayW, v.displayH
}

// SetDisplaySize changes the element layout and fires EventResize.
func (v *SimVideo) SetDisplaySize(width, height int) {
	v.displayW = width
	v.displayH = height
	v.dispatch(EventResize)
}

func (v *SimVideo) Source() string {
	return v.src
}

func (v *SimVideo) SetSource(src string) {
	v.src = src
}

func (v *SimVideo) Activate() {
	v.activated = true
}

// Load resets playback and discovers the metadata of the current source.
// EventLoadedMetadata fires once the metadata is known.
func (v *SimVideo) Load() {
	if !v.paused {
		v.halt()
		v.dispatch(EventPause)
	}
	v.position = 0
	v.ended = false
	v.meta = Metadata{}
	v.loadSeq++
	seq := v.loadSeq
	src := v.src

	if src == "" {
		return
	}

	if v.cfg.Prober == nil {
		v.applyMetadata(seq, v.cfg.Fallback)
		return
	}

	target := src
	if v.cfg.ResolveSource != nil {
		target = v.cfg.ResolveSource(src)
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), v.cfg.ProbeTimeout)
		defer cancel()

		meta := v.cfg.Fallback
		result, err := v.cfg.Prober.Probe(ctx, target)
		if err != nil {
			if v.cfg.Logger != nil {
				v.cfg.Logger.Warn("media probe failed, using fallback metadata", "src", target, "error", err)
			}
		} else {
			meta = Metadata{
				Width:     result.Width,
				Height:    result.Height,
				Duration:  result.Duration,
				FrameRate: result.FrameRate,
			}
		}
		v.loop.Post(func() { v.applyMetadata(seq, meta) })
	}()
}

func (v *SimVideo) applyMetadata(seq uint64, meta Metadata) {
	if seq != v.loadSeq {
		return
	}
	v.meta = meta
	if !v.paused {
		v.position = v.CurrentTime()
		v.anchor = v.now()
		v.schedule()
	}
	v.dispatch(EventLoadedMetadata)
}

func (v *SimVideo) Play() error {
	if v.src == "" {
		return ErrNoSource
	}
	if v.cfg.AutoplayBlocked && !v.activated {
		return ErrAutoplayBlocked
	}
	if !v.paused {
		return nil
	}
	if v.ended || (v.meta.Duration > 0 && v.position >= v.meta.Duration) {
		v.position = 0
		v.ended = false
	}
	v.paused = false
	v.anchor = v.now()
	v.schedule()
	v.dispatch(EventPlay)
	return nil
}

func (v *SimVideo) Pause() {
	if v.paused {
		return
	}
	v.halt()
	v.dispatch(EventPause)
}

func (v *SimVideo) Seek(seconds float64) {
	if math.IsNaN(seconds) || seconds < 0 {
		seconds = 0
	}
	if v.meta.Duration > 0 && seconds > v.meta.Duration {
		seconds = v.meta.Duration
	}
	v.position = seconds
	v.ended = false
	if !v.paused {
		v.anchor = v.now()
		v.schedule()
	}
	v.dispatch(EventSeeked)
}

func (v *SimVideo) RequestVideoFrameCallback(fn func(now time.Time, meta FrameMetadata)) {
	v.pendingFrames = append(v.pendingFrames, fn)
}

// halt freezes the clock at the current position and stops frame presentation.
func (v *SimVideo) halt() {
	v.position = v.CurrentTime()
	v.paused = true
	v.stopTimers()
}

func (v *SimVideo) stopTimers() {
	v.playSeq++
	if v.frameTimer != nil {
		v.frameTimer.Stop()
		v.frameTimer = nil
	}
	if v.endTimer != nil {
		v.endTimer.Stop()
		v.endTimer = nil
	}
}

func (v *SimVideo) frameInterval() time.Duration {
	fps := v.meta.FrameRate
	if fps <= 0 {
		fps = defaultFrameRate
	}
	return time.Duration(float64(time.Second) / fps)
}

// schedule (re)arms the frame and end-of-media timers for the current play run.
func (v *SimVideo) schedule() {
	v.stopTimers()
	seq := v.playSeq

	v.frameTimer = v.loop.AfterFunc(v.frameInterval(), func() { v.presentFrame(seq) })

	if v.meta.Duration > 0 {
		remaining := v.meta.Duration - v.CurrentTime()
		if remaining < 0 {
			remaining = 0
		}
		v.endTimer = v.loop.AfterFunc(time.Duration(remaining*float64(time.Second)), func() { v.reachEnd(seq) })
	}
}

func (v *SimVideo) presentFrame(seq uint64) {
	if seq != v.playSeq || v.paused {
		return
	}
	v.presented++

	fps := v.meta.FrameRate
	if fps <= 0 {
		fps = defaultFrameRate
	}
	meta := FrameMetadata{
		MediaTime:       math.Floor(v.CurrentTime()*fps) / fps,
		PresentedFrames: v.presented,
		Width:           v.meta.Width,
		Height:          v.meta.Height,
	}
	callbacks := v.pendingFrames
	v.pendingFrames = nil
	now := v.now()
	for _, fn := range callbacks {
		fn(now, meta)
	}

	v.frameTimer = v.loop.AfterFunc(v.frameInterval(), func() { v.presentFrame(seq) })
}

func (v *SimVideo) reachEnd(seq uint64) {
	if seq != v.playSeq || v.paused {
		return
	}
	v.position = v.meta.Duration
	v.paused = true
	v.ended = true
	v.stopTimers()
	v.dispatch(EventEnded)
}
