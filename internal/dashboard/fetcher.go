// Package dashboard keeps the active inspection batch, the overlay renderer,
// the video element and the dashboard widgets consistent with each other.
//
// Everything except Handle is confined to the event loop that owns the video.
package dashboard

import (
	"context"

	"github.com/roadwatch/roadwatch-agent/internal/detection"
)

// Fetcher is the backend the dashboard reads from. Implementations must be
// safe for concurrent use; calls are issued from their own goroutines.
type Fetcher interface {
	Stats(ctx context.Context, batch detection.ID) (*detection.StatsResponse, error)
	RoadStats(ctx context.Context) (*detection.RoadStats, error)
	Weather(ctx context.Context) (*detection.Weather, error)
	DiseaseTypes(ctx context.Context) (*detection.Distribution, error)
	Boxes(ctx context.Context, batch detection.ID) (*detection.BoxesResponse, error)
	Tracks(ctx context.Context, batch detection.ID) (*detection.TracksResponse, error)
	Batches(ctx context.Context) (*detection.BatchesResponse, error)
}
