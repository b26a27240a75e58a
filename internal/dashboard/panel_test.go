package dashboard

import (
	"testing"

	"github.com/roadwatch/roadwatch-agent/internal/detection"
	"github.com/roadwatch/roadwatch-agent/internal/eventloop"
)

func TestCaption(t *testing.T) {
	tests := []struct {
		track detection.Track
		want  string
	}{
		{detection.Track{Label: "裂缝"}, "裂缝"},
		{detection.Track{Label: "坑槽", Severity: "轻度"}, "坑槽 - 轻度"},
		{detection.Track{Label: "", Severity: "重度"}, " - 重度"},
	}
	for _, tt := range tests {
		if got := Caption(tt.track); got != tt.want {
			t.Errorf("Caption(%+v) = %q, want %q", tt.track, got, tt.want)
		}
	}
}

func TestTrackPanel_ReplaceIsWholesale(t *testing.T) {
	video := newFakeVideo(eventloop.New(testLogger()))
	p := NewTrackPanel(video, &ReplayButton{})

	p.Replace([]detection.Track{{ID: "1", Label: "裂缝"}, {ID: "2", Label: "坑槽"}})
	p.Replace([]detection.Track{{ID: "3", Label: "松散", Severity: "中度"}})

	items := p.Items()
	if len(items) != 1 || items[0].Track.ID != "3" || items[0].Caption != "松散 - 中度" {
		t.Errorf("items = %+v", items)
	}

	p.Replace(nil)
	if p.Len() != 0 {
		t.Errorf("Len() = %d after empty replace", p.Len())
	}
}

func TestStatsBoard_SetBatch(t *testing.T) {
	var s StatsBoard
	if s.SetBatch(&detection.StatsResponse{InspectionCount: 3}) {
		t.Error("SetBatch accepted a response without batch data")
	}
	if s.SetBatch(nil) {
		t.Error("SetBatch accepted nil")
	}
	if !s.SetBatch(&detection.StatsResponse{Batch: &detection.BatchStats{DefectCount: 2}}) || s.Batch.DefectCount != 2 {
		t.Errorf("batch = %+v", s.Batch)
	}
}
