package dashboard

import (
	"context"

	"github.com/roadwatch/roadwatch-agent/internal/detection"
	"github.com/roadwatch/roadwatch-agent/internal/eventloop"
)

// Surface exposes the rendered overlay as an encoded image.
type Surface interface {
	PNG() ([]byte, error)
}

// Handle gives goroutines other than the loop access to a Dashboard. Every
// call runs on the loop and waits for it.
type Handle struct {
	d       *Dashboard
	loop    *eventloop.Loop
	surface Surface
}

func NewHandle(d *Dashboard, surface Surface) *Handle {
	return &Handle{d: d, loop: d.loop, surface: surface}
}

func (h *Handle) State(ctx context.Context) (State, error) {
	return call(ctx, h.loop, func() (State, error) { return h.d.State(), nil })
}

func (h *Handle) SelectBatch(ctx context.Context, id detection.ID) error {
	return h.do(ctx, func() error { return h.d.SelectBatch(id) })
}

func (h *Handle) NextBatch(ctx context.Context) (detection.ID, error) {
	return call(ctx, h.loop, h.d.NextBatch)
}

func (h *Handle) SelectTrack(ctx context.Context, i int) error {
	return h.do(ctx, func() error { return h.d.SelectTrack(i) })
}

func (h *Handle) Play(ctx context.Context) error {
	return h.do(ctx, h.d.Play)
}

func (h *Handle) Pause(ctx context.Context) error {
	return h.do(ctx, func() error {
		h.d.Pause()
		return nil
	})
}

func (h *Handle) Replay(ctx context.Context) error {
	return h.do(ctx, h.d.Replay)
}

func (h *Handle) SetLayout(ctx context.Context, width, height int) error {
	return h.do(ctx, func() error { return h.d.SetLayout(width, height) })
}

// OverlayPNG encodes the overlay as currently drawn. A nil result means the
// dashboard has no raster surface.
func (h *Handle) OverlayPNG(ctx context.Context) ([]byte, error) {
	if h.surface == nil {
		return nil, nil
	}
	return call(ctx, h.loop, h.surface.PNG)
}

func (h *Handle) do(ctx context.Context, fn func() error) error {
	_, err := call(ctx, h.loop, func() (struct{}, error) { return struct{}{}, fn() })
	return err
}

// call runs fn on loop and hands its result back over a buffered channel.
func call[T any](ctx context.Context, loop *eventloop.Loop, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	if err := loop.Call(ctx, func() {
		v, err := fn()
		ch <- result{v, err}
	}); err != nil {
		var zero T
		return zero, err
	}
	r := <-ch
	return r.v, r.err
}
