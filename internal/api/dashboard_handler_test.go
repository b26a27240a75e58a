package api

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/roadwatch/roadwatch-agent/internal/dashboard"
	"github.com/roadwatch/roadwatch-agent/internal/detection"
	"github.com/roadwatch/roadwatch-agent/internal/eventloop"
)

const testToken = "test-token-0123456789"

type fakeDashboard struct {
	state   dashboard.State
	calls   []string
	err     error
	overlay []byte
}

func (f *fakeDashboard) record(call string) error {
	f.calls = append(f.calls, call)
	return f.err
}

func (f *fakeDashboard) State(ctx context.Context) (dashboard.State, error) {
	return f.state, nil
}

func (f *fakeDashboard) SelectBatch(ctx context.Context, id detection.ID) error {
	if id == "" {
		return dashboard.ErrEmptyBatchID
	}
	return f.record("batch " + string(id))
}

func (f *fakeDashboard) NextBatch(ctx context.Context) (detection.ID, error) {
	return "2", f.record("next")
}

func (f *fakeDashboard) SelectTrack(ctx context.Context, i int) error {
	if i < 0 || i >= len(f.state.Tracks) {
		return fmt.Errorf("%w: %d", dashboard.ErrTrackIndex, i)
	}
	return f.record(fmt.Sprintf("track %d", i))
}

func (f *fakeDashboard) Play(ctx context.Context) error   { return f.record("play") }
func (f *fakeDashboard) Pause(ctx context.Context) error  { return f.record("pause") }
func (f *fakeDashboard) Replay(ctx context.Context) error { return f.record("replay") }

func (f *fakeDashboard) SetLayout(ctx context.Context, width, height int) error {
	if width <= 0 || height <= 0 {
		return dashboard.ErrInvalidLayout
	}
	return f.record(fmt.Sprintf("layout %dx%d", width, height))
}

func (f *fakeDashboard) OverlayPNG(ctx context.Context) ([]byte, error) {
	return f.overlay, f.err
}

func newDashboardRouter(d *fakeDashboard) http.Handler {
	return NewRouter(ServerConfig{
		Dashboard: d,
		Config:    &fakeConfigStore{values: map[string]string{AuthTokenKey: testToken}},
		Logger:    testLogger(),
		StartTime: time.Now(),
	})
}

func doDashboard(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+testToken)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func sampleState() dashboard.State {
	end := 2.5
	return dashboard.State{
		Batches: []dashboard.BatchEntry{
			{Rank: 1, ID: "1", Name: "A1-202406100900", Title: "1. A1-202406100900", Active: true},
			{Rank: 2, ID: "2", Name: "A2-202406090900", Title: "2. A2-202406090900"},
		},
		BatchesLoaded: true,
		ActiveBatch:   "1",
		Stats: dashboard.StatsBoard{
			Diseases: &detection.Distribution{Labels: []string{"裂缝", "坑槽"}, Data: []float64{4, 2}},
		},
		Tracks: []dashboard.TrackItem{
			{Track: detection.Track{ID: "10", Label: "裂缝", Start: 1, End: &end}, Caption: "裂缝"},
			{Track: detection.Track{ID: "11", Label: "坑槽", Start: 4}, Caption: "坑槽"},
		},
		Playback: dashboard.Playback{Source: "/media/demo/demo_video.mp4"},
	}
}

func TestDashboard_RequiresAuth(t *testing.T) {
	h := newDashboardRouter(&fakeDashboard{})

	req := httptest.NewRequest(http.MethodGet, "/dashboard/state", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rr.Code)
	}
}

func TestDashboard_Actions(t *testing.T) {
	d := &fakeDashboard{state: sampleState()}
	h := newDashboardRouter(d)

	tests := []struct {
		method string
		path   string
		body   string
		want   int
		call   string
	}{
		{http.MethodPost, "/dashboard/batches/7", "", http.StatusOK, "batch 7"},
		{http.MethodPost, "/dashboard/tracks/1/seek", "", http.StatusOK, "track 1"},
		{http.MethodPost, "/dashboard/play", "", http.StatusOK, "play"},
		{http.MethodPost, "/dashboard/pause", "", http.StatusOK, "pause"},
		{http.MethodPost, "/dashboard/replay", "", http.StatusOK, "replay"},
		{http.MethodPut, "/dashboard/layout", `{"width":640,"height":360}`, http.StatusOK, "layout 640x360"},
		{http.MethodPost, "/dashboard/tracks/5/seek", "", http.StatusNotFound, ""},
		{http.MethodPost, "/dashboard/tracks/x/seek", "", http.StatusNotFound, ""},
		{http.MethodPut, "/dashboard/layout", `{"width":0,"height":360}`, http.StatusBadRequest, ""},
		{http.MethodPut, "/dashboard/layout", `not json`, http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			d.calls = nil
			rr := doDashboard(t, h, tt.method, tt.path, tt.body)
			if rr.Code != tt.want {
				t.Fatalf("status = %d, want %d: %s", rr.Code, tt.want, rr.Body.String())
			}
			if tt.call == "" {
				if len(d.calls) != 0 {
					t.Errorf("calls = %v, want none", d.calls)
				}
				return
			}
			if len(d.calls) != 1 || d.calls[0] != tt.call {
				t.Errorf("calls = %v, want [%s]", d.calls, tt.call)
			}
			if body := decodeJSONBody(t, rr); body["active_batch"] != float64(1) {
				t.Errorf("response is not the dashboard state: %v", body)
			}
		})
	}
}

func TestDashboard_NextBatch(t *testing.T) {
	d := &fakeDashboard{state: sampleState()}
	rr := doDashboard(t, newDashboardRouter(d), http.MethodPost, "/dashboard/batches/next", "")

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if body := decodeJSONBody(t, rr); body["batch"] != float64(2) {
		t.Errorf("batch = %v, want 2", body["batch"])
	}
	if len(d.calls) != 1 || d.calls[0] != "next" {
		t.Errorf("calls = %v", d.calls)
	}
}

func TestDashboard_ErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{dashboard.ErrNoBatches, http.StatusConflict},
		{dashboard.ErrLayoutFixed, http.StatusConflict},
		{eventloop.ErrClosed, http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusServiceUnavailable},
		{fmt.Errorf("replay: %w", fmt.Errorf("decode failed")), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		d := &fakeDashboard{state: sampleState(), err: tt.err}
		rr := doDashboard(t, newDashboardRouter(d), http.MethodPost, "/dashboard/replay", "")
		if rr.Code != tt.want {
			t.Errorf("%v: status = %d, want %d", tt.err, rr.Code, tt.want)
		}
	}
}

func TestDashboard_OverlayPNG(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 2))); err != nil {
		t.Fatal(err)
	}
	rr := doDashboard(t, newDashboardRouter(&fakeDashboard{overlay: buf.Bytes()}), http.MethodGet, "/dashboard/overlay.png", "")
	if rr.Code != http.StatusOK || rr.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("status = %d type = %q", rr.Code, rr.Header().Get("Content-Type"))
	}

	rr = doDashboard(t, newDashboardRouter(&fakeDashboard{}), http.MethodGet, "/dashboard/overlay.png", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("no surface: status = %d, want 404", rr.Code)
	}
}

func TestDashboard_DiseaseChart(t *testing.T) {
	rr := doDashboard(t, newDashboardRouter(&fakeDashboard{state: sampleState()}), http.MethodGet, "/dashboard/charts/diseases.png?width=200&height=150", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	img, err := png.Decode(rr.Body)
	if err != nil {
		t.Fatalf("not a PNG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 200 || b.Dy() != 150 {
		t.Errorf("size = %v", b)
	}

	rr = doDashboard(t, newDashboardRouter(&fakeDashboard{}), http.MethodGet, "/dashboard/charts/diseases.png", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("without data: status = %d, want 404", rr.Code)
	}
}

func TestDashboard_MileageChart(t *testing.T) {
	rr := doDashboard(t, newDashboardRouter(&fakeDashboard{}), http.MethodGet, "/dashboard/charts/mileage.png?width=300&height=9999", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q", ct)
	}
	img, err := png.Decode(rr.Body)
	if err != nil {
		t.Fatalf("not a PNG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 300 || b.Dy() != 2048 {
		t.Errorf("size = %v, want 300x2048", b)
	}
}

func TestDashboard_ExportEDL(t *testing.T) {
	rr := doDashboard(t, newDashboardRouter(&fakeDashboard{state: sampleState()}), http.MethodGet, "/dashboard/export.edl", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	edl := rr.Body.String()
	for _, want := range []string{
		"TITLE: A1-202406100900",
		"001  AX       V     C        00:00:01:00 00:00:02:15 00:00:00:00 00:00:01:15",
		"002  AX       V     C        00:00:04:00 00:00:05:00 00:00:01:15 00:00:02:15",
		"* MEDIA PATH:  /media/demo/demo_video.mp4",
	} {
		if !strings.Contains(edl, want) {
			t.Errorf("EDL missing %q:\n%s", want, edl)
		}
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "A1-202406100900.edl") {
		t.Errorf("Content-Disposition = %q", cd)
	}

	rr = doDashboard(t, newDashboardRouter(&fakeDashboard{}), http.MethodGet, "/dashboard/export.edl", "")
	if rr.Code != http.StatusConflict {
		t.Errorf("no active batch: status = %d, want 409", rr.Code)
	}
}
