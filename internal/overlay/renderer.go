package overlay

import (
	"log/slog"

	"github.com/roadwatch/roadwatch-agent/internal/media"
)

const (
	LineWidth    = 2
	labelOffsetY = 4
)

// Renderer repaints the overlay canvas for the current playback instant while
// the video is playing. All methods run on the loop that owns the video.
type Renderer struct {
	video   media.Video
	display media.Display
	canvas  Canvas
	logger  *slog.Logger

	index *FrameIndex

	// loopID identifies the live draw chain; continuations carrying an older
	// id do nothing.
	loopID   uint64
	running  bool
	strategy string

	ready    bool
	displayW int
	displayH int

	draws     uint64
	lastTime  float64
	lastBoxes int
}

type RendererConfig struct {
	Video   media.Video
	Display media.Display
	Canvas  Canvas
	Logger  *slog.Logger
}

func NewRenderer(cfg RendererConfig) *Renderer {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Renderer{
		video:   cfg.Video,
		display: cfg.Display,
		canvas:  cfg.Canvas,
		logger:  cfg.Logger,
	}
}

// Bind attaches the renderer to the video's lifecycle events.
func (r *Renderer) Bind() {
	r.video.On(media.EventLoadedMetadata, r.Resize)
	r.video.On(media.EventResize, r.Resize)
	r.video.On(media.EventPlay, r.StartLoop)
	r.video.On(media.EventPause, r.StopLoop)
	r.video.On(media.EventEnded, r.StopLoop)
}

// SetIndex swaps the index consulted by every subsequent draw.
func (r *Renderer) SetIndex(fi *FrameIndex) {
	r.index = fi
}

func (r *Renderer) Index() *FrameIndex {
	return r.index
}

// Resize samples the video's decoded and laid-out sizes. Unknown (zero)
// dimensions leave the renderer unready until the next metadata or resize.
func (r *Renderer) Resize() {
	w, h := r.video.IntrinsicSize()
	r.displayW, r.displayH = r.video.DisplaySize()
	if w <= 0 || h <= 0 {
		r.ready = false
		r.logger.Debug("overlay resize skipped, video dimensions unknown")
		return
	}
	r.canvas.SetSize(w, h)
	r.ready = true
	r.logger.Debug("overlay resized", "width", w, "height", h, "display_width", r.displayW, "display_height", r.displayH)
}

// RenderAt clears the surface and draws the boxes sampled at seconds.
func (r *Renderer) RenderAt(seconds float64) {
	r.Clear()
	r.lastTime = seconds
	r.lastBoxes = 0
	if !r.ready {
		return
	}
	w, h := r.canvas.Size()
	if w <= 0 || h <= 0 {
		return
	}

	boxes := r.index.Lookup(seconds)
	fw, fh := float64(w), float64(h)
	for _, b := range boxes {
		rect := Rect{X: b.X * fw, Y: b.Y * fh, W: b.W * fw, H: b.H * fh}
		col := ColorFor(b.Label)
		r.canvas.StrokeRect(rect, col, LineWidth)
		r.canvas.FillText(b.Label, rect.X, rect.Y-labelOffsetY, col)
	}
	r.lastBoxes = len(boxes)
	r.draws++
}

func (r *Renderer) Clear() {
	r.canvas.Clear()
}

// StartLoop begins a fresh draw chain, superseding any previous one.
func (r *Renderer) StartLoop() {
	r.loopID++
	id := r.loopID
	sched := SelectScheduler(r.video, r.display)
	r.running = true
	r.strategy = sched.Name()
	r.logger.Debug("overlay loop started", "loop_id", id, "strategy", r.strategy)

	var tick func(float64)
	tick = func(mediaTime float64) {
		if id != r.loopID {
			return
		}
		r.RenderAt(mediaTime)
		if r.video.Paused() || r.video.Ended() {
			r.running = false
			return
		}
		sched.Schedule(tick)
	}
	sched.Schedule(tick)
}

// StopLoop invalidates the live chain and clears the surface.
func (r *Renderer) StopLoop() {
	r.loopID++
	r.running = false
	r.Clear()
}

type Snapshot struct {
	Running       bool    `json:"running"`
	Strategy      string  `json:"strategy,omitempty"`
	LoopID        uint64  `json:"loop_id"`
	Ready         bool    `json:"ready"`
	Width         int     `json:"width"`
	Height        int     `json:"height"`
	DisplayWidth  int     `json:"display_width"`
	DisplayHeight int     `json:"display_height"`
	Draws         uint64  `json:"draws"`
	LastTime      float64 `json:"last_time"`
	LastBoxes     int     `json:"last_boxes"`
	IndexedFrames int     `json:"indexed_frames"`
}

func (r *Renderer) Snapshot() Snapshot {
	w, h := r.canvas.Size()
	return Snapshot{
		Running:       r.running,
		Strategy:      r.strategy,
		LoopID:        r.loopID,
		Ready:         r.ready,
		Width:         w,
		Height:        h,
		DisplayWidth:  r.displayW,
		DisplayHeight: r.displayH,
		Draws:         r.draws,
		LastTime:      r.lastTime,
		LastBoxes:     r.lastBoxes,
		IndexedFrames: r.index.Len(),
	}
}
