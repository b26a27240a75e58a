package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/roadwatch/roadwatch-agent/internal/detection"
	"github.com/roadwatch/roadwatch-agent/internal/playback"
)

// InspectionService answers the read queries behind /api.
type InspectionService interface {
	Stats(ctx context.Context, batch *int64) (*detection.StatsResponse, error)
	DiseaseTypes(ctx context.Context) (*detection.Distribution, error)
	Batches(ctx context.Context) (*detection.BatchesResponse, error)
	Boxes(ctx context.Context, batchID int64) (*detection.BoxesResponse, error)
	Tracks(ctx context.Context, batchID int64) (*detection.TracksResponse, error)
	RoadStats() *detection.RoadStats
	Weather(ctx context.Context) (*detection.Weather, error)
}

// ConfigStore holds the agent's key/value settings, including the dashboard
// auth token.
type ConfigStore interface {
	GetConfig(ctx context.Context, key string) (string, error)
}

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

type ServerConfig struct {
	Port       int
	Inspection InspectionService
	Media      playback.MediaService
	// Dashboard is optional; without it /dashboard is not mounted.
	Dashboard DashboardControl
	Config    ConfigStore
	Logger    *slog.Logger
	StartTime time.Time
	Version   string
}

func NewServer(cfg ServerConfig) *Server {
	router := NewRouter(cfg)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("127.0.0.1:%d", cfg.Port),
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("starting HTTP server", "addr", ln.Addr().String())
	err := s.httpServer.Serve(ln)
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
