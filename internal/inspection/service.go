package inspection

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"

	"github.com/roadwatch/roadwatch-agent/internal/detection"
)

const (
	BatchListLimit           = 5
	DefaultTrackPreviewLimit = 5
)

type ServiceConfig struct {
	TrackPreviewLimit int
	RoadTotalLength   float64
	RoadTotalCount    int
}

// Service answers the dashboard's read queries from the repository.
type Service struct {
	repo   Repository
	cfg    ServiceConfig
	logger *slog.Logger
}

func NewService(repo Repository, cfg ServiceConfig, logger *slog.Logger) *Service {
	if cfg.TrackPreviewLimit <= 0 {
		cfg.TrackPreviewLimit = DefaultTrackPreviewLimit
	}
	return &Service{repo: repo, cfg: cfg, logger: logger}
}

func formatID(id int64) detection.ID {
	return detection.ID(strconv.FormatInt(id, 10))
}

// completionRate is the percentage of repaired tracks, rounded to 2 decimals.
func completionRate(c TrackCounts) float64 {
	if c.Total == 0 {
		return 0
	}
	return math.Round(float64(c.Completed)/float64(c.Total)*100*100) / 100
}

// Stats returns the global counters, plus the counters of batch when given.
func (s *Service) Stats(ctx context.Context, batch *int64) (*detection.StatsResponse, error) {
	inspections, err := s.repo.CountBatches(ctx)
	if err != nil {
		return nil, fmt.Errorf("count batches: %w", err)
	}
	all, err := s.repo.CountTracks(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("count tracks: %w", err)
	}

	resp := &detection.StatsResponse{
		InspectionCount: inspections,
		PendingCount:    all.Pending(),
		CompletionRate:  completionRate(all),
	}
	if batch == nil {
		return resp, nil
	}

	scoped, err := s.repo.CountTracks(ctx, *batch)
	if err != nil {
		return nil, fmt.Errorf("count batch tracks: %w", err)
	}
	resp.Batch = &detection.BatchStats{
		DefectCount:    scoped.Total,
		PendingCount:   scoped.Pending(),
		CompletionRate: completionRate(scoped),
	}
	return resp, nil
}

func (s *Service) DiseaseTypes(ctx context.Context) (*detection.Distribution, error) {
	counts, err := s.repo.DiseaseDistribution(ctx)
	if err != nil {
		return nil, fmt.Errorf("disease distribution: %w", err)
	}
	out := &detection.Distribution{Labels: []string{}, Data: []float64{}}
	for _, c := range counts {
		out.Labels = append(out.Labels, c.Label)
		out.Data = append(out.Data, float64(c.Count))
	}
	return out, nil
}

// Batches lists the most recent batches, newest first.
func (s *Service) Batches(ctx context.Context) (*detection.BatchesResponse, error) {
	batches, err := s.repo.RecentBatches(ctx, BatchListLimit)
	if err != nil {
		return nil, fmt.Errorf("recent batches: %w", err)
	}
	out := &detection.BatchesResponse{Batches: []detection.Batch{}}
	for _, b := range batches {
		out.Batches = append(out.Batches, detection.Batch{ID: formatID(b.ID), Name: b.Name()})
	}
	return out, nil
}

// Boxes groups the ground truth of batchID (every batch when 0) into frame
// entries ordered by frame index.
func (s *Service) Boxes(ctx context.Context, batchID int64) (*detection.BoxesResponse, error) {
	rows, err := s.repo.ListFrameBoxes(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("list frame boxes: %w", err)
	}

	out := &detection.BoxesResponse{Frames: []detection.Frame{}}
	if len(rows) == 0 {
		return out, nil
	}

	batches := map[int64]*Batch{}
	batchOf := func(id int64) (*Batch, error) {
		if b, ok := batches[id]; ok {
			return b, nil
		}
		b, err := s.repo.GetBatch(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("get batch %d: %w", id, err)
		}
		batches[id] = b
		return b, nil
	}

	for _, fb := range rows {
		if n := len(out.Frames); n == 0 || out.Frames[n-1].Frame != fb.FrameIndex {
			t, err := s.frameTime(fb, batchOf)
			if err != nil {
				return nil, err
			}
			out.Frames = append(out.Frames, detection.Frame{Frame: fb.FrameIndex, Time: t})
		}
		f := &out.Frames[len(out.Frames)-1]
		f.Boxes = append(f.Boxes, detection.Box{
			Track:    formatID(fb.TrackID),
			X:        fb.X,
			Y:        fb.Y,
			W:        fb.Width,
			H:        fb.Height,
			Label:    fb.DiseaseType,
			Severity: fb.Severity,
			Start:    fb.StartFrame,
			End:      fb.EndFrame,
		})
	}

	first, err := batchOf(rows[0].BatchID)
	if err != nil {
		return nil, err
	}
	if first != nil {
		out.Video = first.VideoLink
	}
	return out, nil
}

// frameTime is the recorded time of a box, or its frame index over the
// batch frame rate when no time was recorded.
func (s *Service) frameTime(fb *FrameBox, batchOf func(int64) (*Batch, error)) (float64, error) {
	if fb.Time != nil {
		return *fb.Time, nil
	}
	b, err := batchOf(fb.BatchID)
	if err != nil {
		return 0, err
	}
	if b == nil {
		return 0, nil
	}
	if fps := b.FrameRate(); fps > 0 {
		return float64(fb.FrameIndex) / fps, nil
	}
	return 0, nil
}

// Tracks previews the tracks of batchID (every batch when 0).
func (s *Service) Tracks(ctx context.Context, batchID int64) (*detection.TracksResponse, error) {
	tracks, err := s.repo.ListTracks(ctx, batchID, s.cfg.TrackPreviewLimit)
	if err != nil {
		return nil, fmt.Errorf("list tracks: %w", err)
	}

	out := &detection.TracksResponse{Tracks: []detection.Track{}}
	for _, t := range tracks {
		snapshot := t.SnapshotLink
		if snapshot == "" {
			m, err := s.repo.FirstMedia(ctx, t.ID, MediaTypeImage)
			if err != nil {
				return nil, fmt.Errorf("track %d media: %w", t.ID, err)
			}
			if m != nil {
				snapshot = m.FileLink
			}
		}
		start := 0.0
		if t.StartTime != nil {
			start = *t.StartTime
		}
		out.Tracks = append(out.Tracks, detection.Track{
			ID:       formatID(t.ID),
			Label:    t.DiseaseType,
			Severity: t.Severity,
			Start:    start,
			End:      t.EndTime,
			Snapshot: snapshot,
		})
	}
	return out, nil
}

func (s *Service) RoadStats() *detection.RoadStats {
	return &detection.RoadStats{TotalLength: s.cfg.RoadTotalLength, TotalCount: s.cfg.RoadTotalCount}
}

// Weather reports the conditions recorded with the latest batch.
func (s *Service) Weather(ctx context.Context) (*detection.Weather, error) {
	b, err := s.repo.LatestBatch(ctx)
	if err != nil {
		return nil, fmt.Errorf("latest batch: %w", err)
	}
	out := &detection.Weather{}
	if b == nil {
		return out, nil
	}
	if b.Weather != nil {
		out.Weather = b.Weather.Name
		out.Code = b.Weather.Code
	}
	out.Temperature = b.Temperature
	return out, nil
}
