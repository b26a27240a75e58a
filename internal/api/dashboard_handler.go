package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/roadwatch/roadwatch-agent/internal/charts"
	"github.com/roadwatch/roadwatch-agent/internal/dashboard"
	"github.com/roadwatch/roadwatch-agent/internal/detection"
	"github.com/roadwatch/roadwatch-agent/internal/eventloop"
	"github.com/roadwatch/roadwatch-agent/internal/export"
)

// DashboardControl drives the operator dashboard from HTTP handlers.
// *dashboard.Handle implements it.
type DashboardControl interface {
	State(ctx context.Context) (dashboard.State, error)
	SelectBatch(ctx context.Context, id detection.ID) error
	NextBatch(ctx context.Context) (detection.ID, error)
	SelectTrack(ctx context.Context, i int) error
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	Replay(ctx context.Context) error
	SetLayout(ctx context.Context, width, height int) error
	OverlayPNG(ctx context.Context) ([]byte, error)
}

func mountDashboard(r chi.Router, cfg ServerConfig) {
	d := cfg.Dashboard

	r.Get("/state", func(w http.ResponseWriter, r *http.Request) {
		writeState(w, r, cfg)
	})
	r.Post("/batches/next", func(w http.ResponseWriter, r *http.Request) {
		id, err := d.NextBatch(r.Context())
		if err != nil {
			writeDashboardError(w, err)
			return
		}
		state, err := d.State(r.Context())
		if err != nil {
			writeDashboardError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, NextBatchResponse{Batch: id, State: state})
	})
	r.Post("/batches/{id}", action(cfg, func(ctx context.Context, r *http.Request) error {
		return d.SelectBatch(ctx, detection.ID(chi.URLParam(r, "id")))
	}))
	r.Post("/tracks/{index}/seek", action(cfg, func(ctx context.Context, r *http.Request) error {
		i, err := strconv.Atoi(chi.URLParam(r, "index"))
		if err != nil {
			return fmt.Errorf("%w: %s", dashboard.ErrTrackIndex, chi.URLParam(r, "index"))
		}
		return d.SelectTrack(ctx, i)
	}))
	r.Post("/play", action(cfg, func(ctx context.Context, _ *http.Request) error { return d.Play(ctx) }))
	r.Post("/pause", action(cfg, func(ctx context.Context, _ *http.Request) error { return d.Pause(ctx) }))
	r.Post("/replay", action(cfg, func(ctx context.Context, _ *http.Request) error { return d.Replay(ctx) }))
	r.Put("/layout", action(cfg, func(ctx context.Context, r *http.Request) error {
		var req LayoutRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return errBadBody
		}
		return d.SetLayout(ctx, req.Width, req.Height)
	}))

	r.Get("/overlay.png", overlayHandler(cfg))
	r.Get("/charts/diseases.png", diseaseChartHandler(cfg))
	r.Get("/charts/mileage.png", mileageChartHandler(cfg))
	r.Get("/export.edl", exportEDLHandler(cfg))
}

var errBadBody = errors.New("invalid request body")

// action runs fn and answers with the resulting dashboard state.
func action(cfg ServerConfig, fn func(context.Context, *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(r.Context(), r); err != nil {
			writeDashboardError(w, err)
			return
		}
		writeState(w, r, cfg)
	}
}

func writeState(w http.ResponseWriter, r *http.Request, cfg ServerConfig) {
	state, err := cfg.Dashboard.State(r.Context())
	if err != nil {
		writeDashboardError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, state)
}

func writeDashboardError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errBadBody),
		errors.Is(err, dashboard.ErrEmptyBatchID),
		errors.Is(err, dashboard.ErrInvalidLayout):
		WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
	case errors.Is(err, dashboard.ErrTrackIndex):
		WriteError(w, http.StatusNotFound, err.Error(), "NOT_FOUND")
	case errors.Is(err, dashboard.ErrNoBatches),
		errors.Is(err, dashboard.ErrLayoutFixed):
		WriteError(w, http.StatusConflict, err.Error(), "CONFLICT")
	case errors.Is(err, eventloop.ErrClosed):
		WriteError(w, http.StatusServiceUnavailable, "dashboard is shutting down", "UNAVAILABLE")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		WriteError(w, http.StatusServiceUnavailable, "dashboard did not respond", "UNAVAILABLE")
	default:
		WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
	}
}

func overlayHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := cfg.Dashboard.OverlayPNG(r.Context())
		if err != nil {
			writeDashboardError(w, err)
			return
		}
		if data == nil {
			WriteError(w, http.StatusNotFound, "overlay has no raster surface", "NOT_FOUND")
			return
		}
		writePNG(w, data)
	}
}

const maxChartSize = 2048

func diseaseChartHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, err := cfg.Dashboard.State(r.Context())
		if err != nil {
			writeDashboardError(w, err)
			return
		}
		width, height := chartSize(r)
		data, err := charts.DiseasePie(state.Stats.Diseases, width, height)
		if errors.Is(err, charts.ErrNoData) {
			WriteError(w, http.StatusNotFound, "no disease data", "NO_DATA")
			return
		}
		if err != nil {
			cfg.Logger.Error("chart render failed", "error", err)
			WriteError(w, http.StatusInternalServerError, "failed to render chart", "INTERNAL_ERROR")
			return
		}
		writePNG(w, data)
	}
}

func mileageChartHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		width, height := chartSize(r)
		data, err := charts.MileageTrend(charts.WeeklyMileage, width, height)
		if err != nil {
			cfg.Logger.Error("chart render failed", "chart", "mileage", "error", err)
			WriteError(w, http.StatusInternalServerError, "failed to render chart", "INTERNAL_ERROR")
			return
		}
		writePNG(w, data)
	}
}

// chartSize reads the optional width/height query, capped at 2048 px.
// Missing or invalid values fall back to the chart defaults.
func chartSize(r *http.Request) (int, int) {
	width, _ := strconv.Atoi(r.URL.Query().Get("width"))
	height, _ := strconv.Atoi(r.URL.Query().Get("height"))
	return min(width, maxChartSize), min(height, maxChartSize)
}

func exportEDLHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, err := cfg.Dashboard.State(r.Context())
		if err != nil {
			writeDashboardError(w, err)
			return
		}
		if state.ActiveBatch == "" {
			WriteError(w, http.StatusConflict, "no active batch", "NO_ACTIVE_BATCH")
			return
		}

		title := string(state.ActiveBatch)
		for _, b := range state.Batches {
			if b.Active {
				title = b.Name
			}
		}
		title = export.Title(title)

		frameRate := 30.0
		if fps, err := strconv.ParseFloat(r.URL.Query().Get("fps"), 64); err == nil && fps > 0 {
			frameRate = fps
		}

		tracks := make([]detection.Track, 0, len(state.Tracks))
		for _, item := range state.Tracks {
			tracks = append(tracks, item.Track)
		}
		edl := export.GenerateEDL(export.ClipsFromTracks(tracks, state.Playback.Source), title, frameRate)

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", title+".edl"))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(edl))
	}
}

func writePNG(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
