package dashboard

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/roadwatch/roadwatch-agent/internal/detection"
	"github.com/roadwatch/roadwatch-agent/internal/eventloop"
	"github.com/roadwatch/roadwatch-agent/internal/logging"
	"github.com/roadwatch/roadwatch-agent/internal/media"
	"github.com/roadwatch/roadwatch-agent/internal/overlay"
)

const DefaultFetchTimeout = 30 * time.Second

// BatchController makes one batch active at a time and keeps the frame index,
// the video source, the track panel and the batch counters in step with it.
type BatchController struct {
	loop     *eventloop.Loop
	fetcher  Fetcher
	video    media.Video
	renderer *overlay.Renderer
	panel    *TrackPanel
	stats    *StatsBoard
	logger   *slog.Logger
	timeout  time.Duration

	active     detection.ID
	generation uint64
	cancel     context.CancelFunc

	staleResponses uint64
	fetchFailures  uint64

	inflight sync.WaitGroup
}

type ControllerConfig struct {
	Loop         *eventloop.Loop
	Fetcher      Fetcher
	Video        media.Video
	Renderer     *overlay.Renderer
	Panel        *TrackPanel
	Stats        *StatsBoard
	Logger       *slog.Logger
	FetchTimeout time.Duration
}

func NewBatchController(cfg ControllerConfig) *BatchController {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &BatchController{
		loop:     cfg.Loop,
		fetcher:  cfg.Fetcher,
		video:    cfg.Video,
		renderer: cfg.Renderer,
		panel:    cfg.Panel,
		stats:    cfg.Stats,
		logger:   cfg.Logger,
		timeout:  cfg.FetchTimeout,
	}
}

// LoadBatch makes id the active batch. The current frame index is discarded
// before any request is issued; responses belonging to an earlier load are
// dropped when they arrive.
func (c *BatchController) LoadBatch(id detection.ID) {
	if c.cancel != nil {
		c.cancel()
	}
	c.generation++
	gen := c.generation
	c.active = id

	c.renderer.SetIndex(overlay.NewFrameIndex())
	c.renderer.Clear()

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	c.cancel = cancel

	logger := logging.WithLoad(c.logger, id.String(), gen)
	logger.Info("loading batch")

	remaining := 3
	done := func() {
		remaining--
		if remaining == 0 && gen == c.generation {
			cancel()
		}
	}

	fetch(c, ctx, gen, logger, "/api/boxes/", func(ctx context.Context) (*detection.BoxesResponse, error) {
		return c.fetcher.Boxes(ctx, id)
	}, func(resp *detection.BoxesResponse) {
		c.applyBoxes(logger, resp)
	}, done)

	fetch(c, ctx, gen, logger, "/api/tracks/", func(ctx context.Context) (*detection.TracksResponse, error) {
		return c.fetcher.Tracks(ctx, id)
	}, func(resp *detection.TracksResponse) {
		c.panel.Replace(resp.Tracks)
		logger.Debug("tracks applied", "count", len(resp.Tracks))
	}, done)

	fetch(c, ctx, gen, logger, "/api/stats/", func(ctx context.Context) (*detection.StatsResponse, error) {
		return c.fetcher.Stats(ctx, id)
	}, func(resp *detection.StatsResponse) {
		if !c.stats.SetBatch(resp) {
			logger.Debug("stats response carried no batch data")
		}
	}, done)
}

func (c *BatchController) applyBoxes(logger *slog.Logger, resp *detection.BoxesResponse) {
	c.renderer.SetIndex(overlay.BuildFrameIndex(resp.Frames))
	logger.Debug("frame index built", "frames", len(resp.Frames))

	if resp.Video == "" {
		return
	}
	c.video.SetSource(resp.Video)
	c.video.Load()
	if err := c.video.Play(); err != nil {
		logger.Info("autoplay not started", "error", err)
	}
}

// fetch runs one request off the loop and applies its result on the loop,
// provided gen is still the current generation.
func fetch[T any](c *BatchController, ctx context.Context, gen uint64, logger *slog.Logger,
	endpoint string, get func(context.Context) (T, error), apply func(T), done func()) {
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		resp, err := get(ctx)
		c.loop.Post(func() {
			defer done()
			if gen != c.generation {
				c.staleResponses++
				logger.Debug("dropping superseded response", "endpoint", endpoint, "current_generation", c.generation)
				return
			}
			if err != nil {
				c.fetchFailures++
				logger.Error("batch fetch failed", "endpoint", endpoint, "error", err)
				return
			}
			apply(resp)
		})
	}()
}

func (c *BatchController) Active() detection.ID   { return c.active }
func (c *BatchController) Generation() uint64     { return c.generation }
func (c *BatchController) StaleResponses() uint64 { return c.staleResponses }
func (c *BatchController) FetchFailures() uint64  { return c.fetchFailures }

// Wait blocks until every issued request has posted its continuation.
func (c *BatchController) Wait() {
	c.inflight.Wait()
}

// Close cancels the requests of the current load.
func (c *BatchController) Close() {
	if c.cancel != nil {
		c.cancel()
	}
}
