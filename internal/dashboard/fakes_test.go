package dashboard

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/roadwatch/roadwatch-agent/internal/detection"
	"github.com/roadwatch/roadwatch-agent/internal/eventloop"
	"github.com/roadwatch/roadwatch-agent/internal/media"
	"github.com/roadwatch/roadwatch-agent/internal/overlay"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeVideo is a loop-confined video element whose clock is set by the test.
type fakeVideo struct {
	loop      *eventloop.Loop
	t         float64
	paused    bool
	ended     bool
	w, h      int
	dw, dh    int
	src       string
	loads     int
	plays     int
	activated bool
	blockAuto bool
	listeners map[media.Event][]func()
}

func newFakeVideo(loop *eventloop.Loop) *fakeVideo {
	return &fakeVideo{loop: loop, paused: true, listeners: map[media.Event][]func(){}}
}

func (v *fakeVideo) CurrentTime() float64         { return v.t }
func (v *fakeVideo) Duration() float64            { return 10 }
func (v *fakeVideo) Paused() bool                 { return v.paused }
func (v *fakeVideo) Ended() bool                  { return v.ended }
func (v *fakeVideo) IntrinsicSize() (int, int)    { return v.w, v.h }
func (v *fakeVideo) DisplaySize() (int, int)      { return v.dw, v.dh }
func (v *fakeVideo) Source() string               { return v.src }
func (v *fakeVideo) SetSource(s string)           { v.src = s }
func (v *fakeVideo) Activate()                    { v.activated = true }
func (v *fakeVideo) On(ev media.Event, fn func()) { v.listeners[ev] = append(v.listeners[ev], fn) }

func (v *fakeVideo) Seek(s float64) {
	v.t = s
	v.ended = false
	v.emit(media.EventSeeked)
}

func (v *fakeVideo) Load() {
	v.loads++
	if !v.paused {
		v.paused = true
		v.emit(media.EventPause)
	}
	v.t = 0
	v.ended = false
	v.w, v.h = 1000, 500
	v.emit(media.EventLoadedMetadata)
}

func (v *fakeVideo) Play() error {
	if v.src == "" {
		return media.ErrNoSource
	}
	if v.blockAuto && !v.activated {
		return media.ErrAutoplayBlocked
	}
	v.plays++
	v.paused = false
	v.ended = false
	v.emit(media.EventPlay)
	return nil
}

func (v *fakeVideo) Pause() {
	if v.paused {
		return
	}
	v.paused = true
	v.emit(media.EventPause)
}

func (v *fakeVideo) SetDisplaySize(w, h int) {
	v.dw, v.dh = w, h
	v.emit(media.EventResize)
}

func (v *fakeVideo) end() {
	v.paused = true
	v.ended = true
	v.emit(media.EventEnded)
}

func (v *fakeVideo) emit(ev media.Event) {
	for _, fn := range v.listeners[ev] {
		v.loop.Post(fn)
	}
}

type fakeDisplay struct {
	pending []func(time.Time)
}

func (d *fakeDisplay) RequestAnimationFrame(fn func(time.Time)) {
	d.pending = append(d.pending, fn)
}

func (d *fakeDisplay) refresh() {
	cbs := d.pending
	d.pending = nil
	for _, fn := range cbs {
		fn(time.Now())
	}
}

type batchData struct {
	boxes  *detection.BoxesResponse
	tracks *detection.TracksResponse
	stats  *detection.StatsResponse
	err    error
	// gate, when set, holds every response for the batch until closed.
	gate chan struct{}
}

type fakeFetcher struct {
	mu      sync.Mutex
	batches []detection.Batch
	data    map[detection.ID]*batchData
	global  *detection.StatsResponse
	failAll error
	calls   map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		data:   map[detection.ID]*batchData{},
		global: &detection.StatsResponse{InspectionCount: 5, PendingCount: 10, CompletionRate: 33.33},
		calls:  map[string]int{},
	}
}

func (f *fakeFetcher) count(endpoint string) {
	f.mu.Lock()
	f.calls[endpoint]++
	f.mu.Unlock()
}

func (f *fakeFetcher) callCount(endpoint string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[endpoint]
}

func (f *fakeFetcher) batch(id detection.ID) (*batchData, error) {
	f.mu.Lock()
	d, ok := f.data[id]
	f.mu.Unlock()
	if !ok {
		return nil, errors.New("unknown batch")
	}
	if d.gate != nil {
		<-d.gate
	}
	if d.err != nil {
		return nil, d.err
	}
	return d, nil
}

func (f *fakeFetcher) Stats(ctx context.Context, batch detection.ID) (*detection.StatsResponse, error) {
	f.count("stats")
	if f.failAll != nil {
		return nil, f.failAll
	}
	if batch == "" {
		return f.global, nil
	}
	d, err := f.batch(batch)
	if err != nil {
		return nil, err
	}
	return d.stats, nil
}

func (f *fakeFetcher) RoadStats(ctx context.Context) (*detection.RoadStats, error) {
	f.count("road_stats")
	if f.failAll != nil {
		return nil, f.failAll
	}
	return &detection.RoadStats{TotalLength: 1234.5, TotalCount: 12}, nil
}

func (f *fakeFetcher) Weather(ctx context.Context) (*detection.Weather, error) {
	f.count("weather")
	if f.failAll != nil {
		return nil, f.failAll
	}
	temp := 21.5
	return &detection.Weather{Weather: "晴", Temperature: &temp, Code: "sunny"}, nil
}

func (f *fakeFetcher) DiseaseTypes(ctx context.Context) (*detection.Distribution, error) {
	f.count("disease_types")
	if f.failAll != nil {
		return nil, f.failAll
	}
	return &detection.Distribution{Labels: []string{"裂缝", "坑槽"}, Data: []float64{7, 3}}, nil
}

func (f *fakeFetcher) Boxes(ctx context.Context, batch detection.ID) (*detection.BoxesResponse, error) {
	f.count("boxes")
	d, err := f.batch(batch)
	if err != nil {
		return nil, err
	}
	return d.boxes, nil
}

func (f *fakeFetcher) Tracks(ctx context.Context, batch detection.ID) (*detection.TracksResponse, error) {
	f.count("tracks")
	d, err := f.batch(batch)
	if err != nil {
		return nil, err
	}
	return d.tracks, nil
}

func (f *fakeFetcher) Batches(ctx context.Context) (*detection.BatchesResponse, error) {
	f.count("batches")
	if f.failAll != nil {
		return nil, f.failAll
	}
	return &detection.BatchesResponse{Batches: f.batches}, nil
}

// singleBoxBatch returns batch data with one box at time t at (x, y).
func singleBoxBatch(video string, t, x, y float64, label string) *batchData {
	return &batchData{
		boxes: &detection.BoxesResponse{
			Video: video,
			Frames: []detection.Frame{
				{Time: t, Boxes: []detection.Box{{X: x, Y: y, W: 0.2, H: 0.2, Label: label}}},
			},
		},
		tracks: &detection.TracksResponse{Tracks: []detection.Track{
			{ID: "1", Label: label, Severity: "重度", Start: t, Snapshot: "/media/snap.jpg"},
		}},
		stats: &detection.StatsResponse{Batch: &detection.BatchStats{DefectCount: 1, PendingCount: 1}},
	}
}

type harness struct {
	loop     *eventloop.Loop
	video    *fakeVideo
	display  *fakeDisplay
	canvas   *overlay.RasterCanvas
	renderer *overlay.Renderer
	fetcher  *fakeFetcher
	dash     *Dashboard
}

func newHarness(t *testing.T, fetcher *fakeFetcher) *harness {
	t.Helper()
	loop := eventloop.New(testLogger())
	video := newFakeVideo(loop)
	display := &fakeDisplay{}
	canvas := overlay.NewRasterCanvas()
	renderer := overlay.NewRenderer(overlay.RendererConfig{
		Video:   video,
		Display: display,
		Canvas:  canvas,
		Logger:  testLogger(),
	})
	dash := New(Config{
		Loop:         loop,
		Fetcher:      fetcher,
		Video:        video,
		Renderer:     renderer,
		Logger:       testLogger(),
		FetchTimeout: 5 * time.Second,
	})
	t.Cleanup(dash.Close)
	return &harness{
		loop:     loop,
		video:    video,
		display:  display,
		canvas:   canvas,
		renderer: renderer,
		fetcher:  fetcher,
		dash:     dash,
	}
}

// settle waits for every outstanding request and drains the loop. Requests
// issued by drained tasks are waited for too.
func (h *harness) settle() {
	for {
		h.dash.Wait()
		if h.loop.RunPending() == 0 {
			return
		}
	}
}

// waitUntil drains the loop until cond holds or the deadline passes.
func (h *harness) waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		h.loop.RunPending()
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}
