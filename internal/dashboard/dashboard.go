package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roadwatch/roadwatch-agent/internal/detection"
	"github.com/roadwatch/roadwatch-agent/internal/eventloop"
	"github.com/roadwatch/roadwatch-agent/internal/media"
	"github.com/roadwatch/roadwatch-agent/internal/overlay"
)

var (
	ErrEmptyBatchID  = errors.New("batch id is required")
	ErrNoBatches     = errors.New("no batches available")
	ErrLayoutFixed   = errors.New("video layout cannot be changed")
	ErrInvalidLayout = errors.New("layout size must be positive")
)

type Config struct {
	Loop         *eventloop.Loop
	Fetcher      Fetcher
	Video        media.Video
	Renderer     *overlay.Renderer
	Logger       *slog.Logger
	FetchTimeout time.Duration
}

// Dashboard is the composition root of the inspection page: batch list,
// stats widgets, video, overlay, track panel and replay affordance.
type Dashboard struct {
	loop     *eventloop.Loop
	fetcher  Fetcher
	video    media.Video
	renderer *overlay.Renderer
	logger   *slog.Logger
	timeout  time.Duration

	controller *BatchController
	panel      *TrackPanel
	replay     *ReplayButton
	stats      *StatsBoard

	batches       []detection.Batch
	batchesLoaded bool
	fetchFailures uint64

	startup sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

func New(cfg Config) *Dashboard {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	replay := &ReplayButton{}
	panel := NewTrackPanel(cfg.Video, replay)
	stats := &StatsBoard{}
	ctx, cancel := context.WithCancel(context.Background())

	d := &Dashboard{
		loop:     cfg.Loop,
		fetcher:  cfg.Fetcher,
		video:    cfg.Video,
		renderer: cfg.Renderer,
		logger:   cfg.Logger,
		timeout:  cfg.FetchTimeout,
		panel:    panel,
		replay:   replay,
		stats:    stats,
		ctx:      ctx,
		cancel:   cancel,
	}
	d.controller = NewBatchController(ControllerConfig{
		Loop:         cfg.Loop,
		Fetcher:      cfg.Fetcher,
		Video:        cfg.Video,
		Renderer:     cfg.Renderer,
		Panel:        panel,
		Stats:        stats,
		Logger:       cfg.Logger,
		FetchTimeout: cfg.FetchTimeout,
	})

	cfg.Renderer.Bind()
	cfg.Video.On(media.EventEnded, replay.Show)
	cfg.Video.On(media.EventPlay, replay.Hide)
	return d
}

// Start issues the batch-independent requests and the batch list request.
// The first listed batch is loaded once the list arrives.
func (d *Dashboard) Start() {
	d.logger.Info("dashboard starting")

	startupFetch(d, "/api/stats/", func(ctx context.Context) (*detection.StatsResponse, error) {
		return d.fetcher.Stats(ctx, "")
	}, d.stats.SetGlobal)

	startupFetch(d, "/api/road_stats/", d.fetcher.RoadStats, func(resp *detection.RoadStats) {
		d.stats.Road = resp
	})

	startupFetch(d, "/api/weather/", d.fetcher.Weather, func(resp *detection.Weather) {
		d.stats.Weather = resp
	})

	startupFetch(d, "/api/disease_types/", d.fetcher.DiseaseTypes, func(resp *detection.Distribution) {
		d.stats.Diseases = resp
	})

	startupFetch(d, "/api/batches/", d.fetcher.Batches, func(resp *detection.BatchesResponse) {
		d.batches = resp.Batches
		d.batchesLoaded = true
		d.logger.Info("batch list loaded", "count", len(resp.Batches))
		if len(resp.Batches) > 0 {
			d.controller.LoadBatch(resp.Batches[0].ID)
		}
	})
}

func startupFetch[T any](d *Dashboard, endpoint string, get func(context.Context) (T, error), apply func(T)) {
	d.startup.Add(1)
	go func() {
		defer d.startup.Done()
		ctx, cancel := context.WithTimeout(d.ctx, d.timeout)
		defer cancel()
		resp, err := get(ctx)
		d.loop.Post(func() {
			if err != nil {
				d.fetchFailures++
				d.logger.Error("dashboard fetch failed", "endpoint", endpoint, "error", err)
				return
			}
			apply(resp)
		})
	}()
}

// SelectBatch loads the batch chosen by the operator.
func (d *Dashboard) SelectBatch(id detection.ID) error {
	if id == "" {
		return ErrEmptyBatchID
	}
	d.controller.LoadBatch(id)
	return nil
}

// NextBatch loads the batch following the active one in list order.
func (d *Dashboard) NextBatch() (detection.ID, error) {
	if len(d.batches) == 0 {
		return "", ErrNoBatches
	}
	next := 0
	for i, b := range d.batches {
		if b.ID == d.controller.Active() {
			next = (i + 1) % len(d.batches)
			break
		}
	}
	id := d.batches[next].ID
	d.controller.LoadBatch(id)
	return id, nil
}

func (d *Dashboard) SelectTrack(i int) error {
	return d.panel.Select(i)
}

// Play starts playback on behalf of the operator.
func (d *Dashboard) Play() error {
	if a, ok := d.video.(media.Activator); ok {
		a.Activate()
	}
	return d.video.Play()
}

func (d *Dashboard) Pause() {
	d.video.Pause()
}

// Replay restarts playback from the beginning.
func (d *Dashboard) Replay() error {
	d.video.Seek(0)
	d.replay.Hide()
	if err := d.Play(); err != nil {
		return fmt.Errorf("replay: %w", err)
	}
	return nil
}

// SetLayout changes the laid-out size of the video element.
func (d *Dashboard) SetLayout(width, height int) error {
	if width <= 0 || height <= 0 {
		return ErrInvalidLayout
	}
	ls, ok := d.video.(media.LayoutSetter)
	if !ok {
		return ErrLayoutFixed
	}
	ls.SetDisplaySize(width, height)
	return nil
}

func (d *Dashboard) Controller() *BatchController { return d.controller }
func (d *Dashboard) Panel() *TrackPanel           { return d.panel }
func (d *Dashboard) ReplayButton() *ReplayButton  { return d.replay }

// Wait blocks until all issued requests have posted their continuations.
func (d *Dashboard) Wait() {
	d.startup.Wait()
	d.controller.Wait()
}

// Close cancels outstanding requests.
func (d *Dashboard) Close() {
	d.cancel()
	d.controller.Close()
}

// BatchEntry is one line of the batch list panel.
type BatchEntry struct {
	Rank   int          `json:"rank"`
	ID     detection.ID `json:"id"`
	Name   string       `json:"name"`
	Title  string       `json:"title"`
	Active bool         `json:"active"`
}

type Playback struct {
	Source      string  `json:"source"`
	CurrentTime float64 `json:"current_time"`
	Duration    float64 `json:"duration"`
	Paused      bool    `json:"paused"`
	Ended       bool    `json:"ended"`
}

// State is a copy of everything the dashboard displays.
type State struct {
	Batches        []BatchEntry     `json:"batches"`
	BatchesLoaded  bool             `json:"batches_loaded"`
	ActiveBatch    detection.ID     `json:"active_batch"`
	Generation     uint64           `json:"generation"`
	StaleResponses uint64           `json:"stale_responses"`
	FetchFailures  uint64           `json:"fetch_failures"`
	Stats          StatsBoard       `json:"stats"`
	Tracks         []TrackItem      `json:"tracks"`
	ReplayVisible  bool             `json:"replay_visible"`
	Playback       Playback         `json:"playback"`
	Overlay        overlay.Snapshot `json:"overlay"`
}

func (d *Dashboard) State() State {
	active := d.controller.Active()
	entries := make([]BatchEntry, 0, len(d.batches))
	for i, b := range d.batches {
		entries = append(entries, BatchEntry{
			Rank:   i + 1,
			ID:     b.ID,
			Name:   b.Name,
			Title:  fmt.Sprintf("%d. %s", i+1, b.Name),
			Active: b.ID == active,
		})
	}
	return State{
		Batches:        entries,
		BatchesLoaded:  d.batchesLoaded,
		ActiveBatch:    active,
		Generation:     d.controller.Generation(),
		StaleResponses: d.controller.StaleResponses(),
		FetchFailures:  d.fetchFailures + d.controller.FetchFailures(),
		Stats:          d.stats.snapshot(),
		Tracks:         d.panel.Items(),
		ReplayVisible:  d.replay.Visible(),
		Playback: Playback{
			Source:      d.video.Source(),
			CurrentTime: d.video.CurrentTime(),
			Duration:    d.video.Duration(),
			Paused:      d.video.Paused(),
			Ended:       d.video.Ended(),
		},
		Overlay: d.renderer.Snapshot(),
	}
}
