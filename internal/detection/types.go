// Package detection holds the wire-level data model shared by the inspection
// backend, the HTTP client and the dashboard core.
package detection

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ID is an identifier that may arrive as a JSON number or a JSON string.
// It is always carried as its decimal/string form.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(id) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id ID) String() string {
	return string(id)
}

// Box is one detection, normalised to the frame (0..1). Immutable once received.
type Box struct {
	Track    ID      `json:"track,omitempty"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	W        float64 `json:"w"`
	H        float64 `json:"h"`
	Label    string  `json:"label"`
	Severity string  `json:"severity,omitempty"`
	// Start and End are the owning track's frame span, when the backend provides it.
	Start int `json:"start,omitempty"`
	End   int `json:"end,omitempty"`
}

// Frame is the set of boxes sampled at one playback instant.
type Frame struct {
	Frame int     `json:"frame,omitempty"`
	Time  float64 `json:"time"`
	Boxes []Box   `json:"boxes"`
}

type Track struct {
	ID       ID       `json:"id"`
	Label    string   `json:"label"`
	Severity string   `json:"severity,omitempty"`
	Start    float64  `json:"start"`
	End      *float64 `json:"end,omitempty"`
	Snapshot string   `json:"snapshot"`
}

type Batch struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

type BatchesResponse struct {
	Batches []Batch `json:"batches"`
}

type BoxesResponse struct {
	Video  string  `json:"video,omitempty"`
	Frames []Frame `json:"frames"`
}

type TracksResponse struct {
	Tracks []Track `json:"tracks"`
}

// BatchStats is the batch-scoped part of the stats feed.
type BatchStats struct {
	DefectCount    int     `json:"defect_count"`
	PendingCount   int     `json:"pending_count"`
	CompletionRate float64 `json:"completion_rate"`
}

// StatsResponse carries global counters and, when requested with a batch,
// the batch-scoped counters under Batch.
type StatsResponse struct {
	InspectionCount int         `json:"inspection_count"`
	PendingCount    int         `json:"pending_count"`
	CompletionRate  float64     `json:"completion_rate"`
	Batch           *BatchStats `json:"batch,omitempty"`
}

type RoadStats struct {
	TotalLength float64 `json:"total_length"`
	TotalCount  int     `json:"total_count"`
}

type Weather struct {
	Weather     string   `json:"weather"`
	Temperature *float64 `json:"temperature"`
	Code        string   `json:"code,omitempty"`
}

// Distribution is a labelled category histogram.
type Distribution struct {
	Labels []string  `json:"labels"`
	Data   []float64 `json:"data"`
}
