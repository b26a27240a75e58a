// Package inspection stores drone inspection batches, the defect tracks found
// in them and their per-frame ground truth, and answers the dashboard queries.
package inspection

import (
	"fmt"
	"time"
)

const (
	BatchStatusDone       = "done"
	BatchStatusProcessing = "processing"
	BatchStatusFailed     = "failed"

	TrendGrowing   = "扩大"
	TrendUnchanged = "无变化"
	TrendRepaired  = "已修复"

	MediaTypeImage = "image"
	MediaTypeVideo = "video"
)

type DiseaseType struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type WeatherType struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

type SeverityLevel struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Code        string `json:"code"`
	Description string `json:"description,omitempty"`
}

// Batch is one drone inspection flight.
type Batch struct {
	ID            int64        `json:"id"`
	StartTime     time.Time    `json:"start_time"`
	EndTime       time.Time    `json:"end_time"`
	Airport       string       `json:"airport"`
	DroneID       string       `json:"drone_id"`
	Weather       *WeatherType `json:"weather,omitempty"`
	Temperature   *float64     `json:"temperature,omitempty"`
	Status        string       `json:"status"`
	VideoLink     string       `json:"video_link"`
	TotalFrames   *int         `json:"total_frames,omitempty"`
	VideoDuration *float64     `json:"video_duration,omitempty"`
}

// Name is the display name of the batch: airport and take-off minute.
func (b *Batch) Name() string {
	return fmt.Sprintf("%s-%s", b.Airport, b.StartTime.UTC().Format("200601021504"))
}

// FrameRate derives frames per second from the recorded video, or 0 when the
// batch does not carry both figures.
func (b *Batch) FrameRate() float64 {
	if b.TotalFrames == nil || b.VideoDuration == nil || *b.VideoDuration <= 0 {
		return 0
	}
	return float64(*b.TotalFrames) / *b.VideoDuration
}

// DefectTrack is one defect followed across consecutive video frames.
type DefectTrack struct {
	ID           int64    `json:"id"`
	BatchID      int64    `json:"batch_id"`
	DiseaseType  string   `json:"disease_type"`
	UniqueCode   string   `json:"unique_code"`
	Severity     string   `json:"severity,omitempty"`
	StartFrame   int      `json:"start_frame"`
	EndFrame     int      `json:"end_frame"`
	StartTime    *float64 `json:"start_time,omitempty"`
	EndTime      *float64 `json:"end_time,omitempty"`
	DevelopTrend string   `json:"develop_trend,omitempty"`
	SnapshotLink string   `json:"snapshot_link,omitempty"`
}

type TrackMedia struct {
	ID          int64  `json:"id"`
	TrackID     int64  `json:"track_id"`
	MediaType   string `json:"media_type"`
	FileLink    string `json:"file_link"`
	Description string `json:"description,omitempty"`
}

// GroundTruthFrame is a labelled bounding box of a track on one frame, in
// coordinates normalised to the frame size.
type GroundTruthFrame struct {
	ID         int64    `json:"id"`
	TrackID    int64    `json:"track_id"`
	FrameIndex int      `json:"frame_index"`
	Time       *float64 `json:"time,omitempty"`
	X          float64  `json:"x"`
	Y          float64  `json:"y"`
	Width      float64  `json:"w"`
	Height     float64  `json:"h"`
}

// FrameBox is a ground-truth box joined with its track.
type FrameBox struct {
	GroundTruthFrame
	DiseaseType string
	Severity    string
	StartFrame  int
	EndFrame    int
	BatchID     int64
}

type LabelCount struct {
	Label string
	Count int
}

type TrackCounts struct {
	Total     int
	Completed int
}

func (c TrackCounts) Pending() int {
	return c.Total - c.Completed
}
