package export

import (
	"strings"
	"testing"

	"github.com/roadwatch/roadwatch-agent/internal/detection"
)

func TestGenerateEDL_SingleClip(t *testing.T) {
	clips := []Clip{{
		Name:      "裂缝 (1)",
		MediaPath: "/media/demo/demo_video.mp4",
		StartMs:   0,
		EndMs:     2000,
	}}

	edl := GenerateEDL(clips, "airport-202406100900", 30.0)

	if !strings.Contains(edl, "TITLE: airport-202406100900") {
		t.Fatalf("missing title in EDL: %q", edl)
	}
	if !strings.Contains(edl, "FCM: NON-DROP FRAME") {
		t.Fatalf("missing non-drop-frame FCM: %q", edl)
	}
	if !strings.Contains(edl, "001  AX       V     C        00:00:00:00 00:00:02:00 00:00:00:00 00:00:02:00") {
		t.Fatalf("missing event line: %q", edl)
	}
	if !strings.Contains(edl, "* FROM CLIP NAME:  裂缝 (1)") {
		t.Fatalf("missing clip name comment: %q", edl)
	}
	if !strings.Contains(edl, "* MEDIA PATH:  /media/demo/demo_video.mp4") {
		t.Fatalf("missing media path comment: %q", edl)
	}
}

func TestGenerateEDL_RecordOffsets(t *testing.T) {
	clips := []Clip{
		{Name: "A", MediaPath: "/a.mp4", StartMs: 0, EndMs: 1000},
		{Name: "B", MediaPath: "/a.mp4", StartMs: 1000, EndMs: 2500},
	}

	edl := GenerateEDL(clips, "Multi", 30.0)

	if !strings.Contains(edl, "001  AX       V     C        00:00:00:00 00:00:01:00 00:00:00:00 00:00:01:00") {
		t.Fatalf("first event line mismatch: %q", edl)
	}
	if !strings.Contains(edl, "002  AX       V     C        00:00:01:00 00:00:02:15 00:00:01:00 00:00:02:15") {
		t.Fatalf("second event line mismatch or bad record offset: %q", edl)
	}
}

func TestGenerateEDL_DropFrame(t *testing.T) {
	edl := GenerateEDL([]Clip{{Name: "x", StartMs: 0, EndMs: 1000}}, "Drop", 29.97)
	if !strings.Contains(edl, "FCM: DROP FRAME") {
		t.Fatalf("expected drop frame FCM, got: %q", edl)
	}
}

func TestGenerateEDL_NoClips(t *testing.T) {
	edl := GenerateEDL(nil, "Empty", 0)
	if edl != "TITLE: Empty\nFCM: NON-DROP FRAME\n\n" {
		t.Fatalf("GenerateEDL(nil) = %q", edl)
	}
}

func TestTimecode(t *testing.T) {
	tests := []struct {
		name string
		ms   int
		fps  int
		want string
	}{
		{name: "zero", ms: 0, fps: 30, want: "00:00:00:00"},
		{name: "one second", ms: 1000, fps: 30, want: "00:00:01:00"},
		{name: "fractional second", ms: 500, fps: 30, want: "00:00:00:15"},
		{name: "one minute", ms: 60000, fps: 30, want: "00:01:00:00"},
		{name: "one hour", ms: 3600000, fps: 30, want: "01:00:00:00"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := timecode(tc.ms, tc.fps); got != tc.want {
				t.Fatalf("timecode(%d, %d) = %q, want %q", tc.ms, tc.fps, got, tc.want)
			}
		})
	}
}

func TestClipsFromTracks(t *testing.T) {
	end := 3.25
	tracks := []detection.Track{
		{ID: "7", Label: "坑槽", Severity: "轻度", Start: 1.5, End: &end},
		{ID: "8", Label: "裂缝", Start: 4},
		{ID: "9", Label: "裂缝", Start: 2, End: &end},
	}

	clips := ClipsFromTracks(tracks, "/media/v.mp4")
	want := []Clip{
		{Name: "坑槽 轻度 (7)", MediaPath: "/media/v.mp4", StartMs: 1500, EndMs: 3250},
		{Name: "裂缝 (8)", MediaPath: "/media/v.mp4", StartMs: 4000, EndMs: 5000},
		{Name: "裂缝 (9)", MediaPath: "/media/v.mp4", StartMs: 2000, EndMs: 3250},
	}
	if len(clips) != len(want) {
		t.Fatalf("clips = %+v", clips)
	}
	for i := range want {
		if clips[i] != want[i] {
			t.Errorf("clips[%d] = %+v, want %+v", i, clips[i], want[i])
		}
	}
}
