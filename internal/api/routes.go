package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/roadwatch/roadwatch-agent/internal/config"
)

var errBadBatch = errors.New("batch must be a positive integer")

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.StripSlashes)
	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(CORSAllowlist())

	r.Get("/health", healthHandler(cfg))

	if cfg.Inspection != nil {
		r.Route("/api", func(r chi.Router) {
			r.Get("/stats", statsHandler(cfg))
			r.Get("/disease_types", diseaseTypesHandler(cfg))
			r.Get("/batches", batchesHandler(cfg))
			r.Get("/boxes", boxesHandler(cfg))
			r.Get("/tracks", tracksHandler(cfg))
			r.Get("/road_stats", roadStatsHandler(cfg))
			r.Get("/weather", weatherHandler(cfg))
		})
	}

	if cfg.Media != nil {
		r.Group(func(r chi.Router) {
			r.Use(LoopbackGuard())
			r.Get("/media/*", mediaHandler(cfg))
			r.Head("/media/*", mediaHandler(cfg))
		})
	}

	if cfg.Dashboard != nil {
		r.Route("/dashboard", func(r chi.Router) {
			r.Use(AuthMiddleware(cfg.Config, cfg.Logger))
			mountDashboard(r, cfg)
		})
	}

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	version := cfg.Version
	if version == "" {
		version = config.Version
	}
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: version,
			UptimeS: int64(time.Since(cfg.StartTime).Seconds()),
		})
	}
}

// batchParam reads the optional batch query parameter.
func batchParam(r *http.Request) (int64, bool, error) {
	raw := r.URL.Query().Get("batch")
	if raw == "" {
		return 0, false, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, true, errBadBatch
	}
	return id, true, nil
}

func statsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok, err := batchParam(r)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}
		var batch *int64
		if ok {
			batch = &id
		}
		resp, err := cfg.Inspection.Stats(r.Context(), batch)
		if err != nil {
			internalError(w, r, cfg, "stats", err)
			return
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func diseaseTypesHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := cfg.Inspection.DiseaseTypes(r.Context())
		if err != nil {
			internalError(w, r, cfg, "disease types", err)
			return
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func batchesHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := cfg.Inspection.Batches(r.Context())
		if err != nil {
			internalError(w, r, cfg, "batches", err)
			return
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func boxesHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, _, err := batchParam(r)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}
		resp, err := cfg.Inspection.Boxes(r.Context(), id)
		if err != nil {
			internalError(w, r, cfg, "boxes", err)
			return
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func tracksHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, _, err := batchParam(r)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}
		resp, err := cfg.Inspection.Tracks(r.Context(), id)
		if err != nil {
			internalError(w, r, cfg, "tracks", err)
			return
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func roadStatsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, cfg.Inspection.RoadStats())
	}
}

func weatherHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := cfg.Inspection.Weather(r.Context())
		if err != nil {
			internalError(w, r, cfg, "weather", err)
			return
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func mediaHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rel := chi.URLParam(r, "*")
		if err := cfg.Media.ServeMedia(w, r, rel); err != nil {
			cfg.Logger.Error("media error", "error", err, "path", rel)
			WriteError(w, http.StatusInternalServerError, "failed to serve media", "INTERNAL_ERROR")
		}
	}
}

func internalError(w http.ResponseWriter, r *http.Request, cfg ServerConfig, what string, err error) {
	requestID, _ := r.Context().Value(RequestIDKey).(string)
	cfg.Logger.Error("request failed", "query", what, "error", err, "request_id", requestID)
	WriteError(w, http.StatusInternalServerError, "failed to load "+what, "INTERNAL_ERROR")
}
