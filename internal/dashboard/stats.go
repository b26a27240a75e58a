package dashboard

import "github.com/roadwatch/roadwatch-agent/internal/detection"

// GlobalStats are the batch-independent dashboard counters.
type GlobalStats struct {
	InspectionCount int     `json:"inspection_count"`
	PendingCount    int     `json:"pending_count"`
	CompletionRate  float64 `json:"completion_rate"`
}

// StatsBoard holds the summary widgets. Each feed updates only its own field.
type StatsBoard struct {
	Global   *GlobalStats            `json:"global,omitempty"`
	Batch    *detection.BatchStats   `json:"batch,omitempty"`
	Road     *detection.RoadStats    `json:"road,omitempty"`
	Weather  *detection.Weather      `json:"weather,omitempty"`
	Diseases *detection.Distribution `json:"diseases,omitempty"`
}

func (s *StatsBoard) SetGlobal(resp *detection.StatsResponse) {
	s.Global = &GlobalStats{
		InspectionCount: resp.InspectionCount,
		PendingCount:    resp.PendingCount,
		CompletionRate:  resp.CompletionRate,
	}
}

// SetBatch applies a batch-scoped response. Responses without batch data
// leave the board untouched.
func (s *StatsBoard) SetBatch(resp *detection.StatsResponse) bool {
	if resp == nil || resp.Batch == nil {
		return false
	}
	b := *resp.Batch
	s.Batch = &b
	return true
}

func (s *StatsBoard) snapshot() StatsBoard {
	out := StatsBoard{}
	if s.Global != nil {
		g := *s.Global
		out.Global = &g
	}
	if s.Batch != nil {
		b := *s.Batch
		out.Batch = &b
	}
	if s.Road != nil {
		r := *s.Road
		out.Road = &r
	}
	if s.Weather != nil {
		w := *s.Weather
		out.Weather = &w
	}
	if s.Diseases != nil {
		d := detection.Distribution{
			Labels: append([]string(nil), s.Diseases.Labels...),
			Data:   append([]float64(nil), s.Diseases.Data...),
		}
		out.Diseases = &d
	}
	return out
}
