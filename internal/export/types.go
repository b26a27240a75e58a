// Package export turns the defect tracks of a batch into an edit decision
// list so reviewers can step through them in an NLE.
package export

import (
	"math"

	"github.com/roadwatch/roadwatch-agent/internal/detection"
)

// DefaultSpanMs is the clip length used for tracks without an end time.
const DefaultSpanMs = 1000

// Clip is one event of the list, in source-media milliseconds.
type Clip struct {
	Name      string
	MediaPath string
	StartMs   int
	EndMs     int
}

// ClipsFromTracks builds one clip per track of the batch video.
func ClipsFromTracks(tracks []detection.Track, mediaPath string) []Clip {
	clips := make([]Clip, 0, len(tracks))
	for _, t := range tracks {
		start := secondsToMs(t.Start)
		end := start + DefaultSpanMs
		if t.End != nil {
			if e := secondsToMs(*t.End); e > start {
				end = e
			}
		}
		clips = append(clips, Clip{
			Name:      ClipName(t.Label, t.Severity, t.ID),
			MediaPath: mediaPath,
			StartMs:   start,
			EndMs:     end,
		})
	}
	return clips
}

func secondsToMs(s float64) int {
	if s <= 0 {
		return 0
	}
	return int(math.Round(s * 1000))
}
