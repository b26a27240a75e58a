package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/roadwatch/roadwatch-agent/internal/api"
	"github.com/roadwatch/roadwatch-agent/internal/client"
	"github.com/roadwatch/roadwatch-agent/internal/config"
	"github.com/roadwatch/roadwatch-agent/internal/dashboard"
	"github.com/roadwatch/roadwatch-agent/internal/db"
	"github.com/roadwatch/roadwatch-agent/internal/eventloop"
	"github.com/roadwatch/roadwatch-agent/internal/inspection"
	"github.com/roadwatch/roadwatch-agent/internal/logging"
	"github.com/roadwatch/roadwatch-agent/internal/media"
	"github.com/roadwatch/roadwatch-agent/internal/overlay"
	"github.com/roadwatch/roadwatch-agent/internal/playback"
	"github.com/roadwatch/roadwatch-agent/internal/ui"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	if err := os.MkdirAll(cfg.MediaDir(), 0755); err != nil {
		return fmt.Errorf("failed to create media dir: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting roadwatch agent",
		"version", config.Version,
		"commit", config.GitCommit,
		"data_dir", logging.SanitizePath(cfg.DataDir()),
	)

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := inspection.NewRepository(database.Conn())

	authToken, err := ensureAuthToken(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	if cfg.SeedDemo() {
		seeded, err := inspection.SeedIfEmpty(context.Background(), repo, inspection.SeedOptions{
			Days:     cfg.DemoDays(),
			MediaDir: cfg.MediaDir(),
			Logger:   logging.WithComponent(logger, "seed"),
		})
		if err != nil {
			return fmt.Errorf("failed to seed demo data: %w", err)
		}
		if seeded {
			logger.Info("demo inspection data seeded", "days", cfg.DemoDays())
		}
	}

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Println("║                     ROADWATCH AGENT                       ║")
	fmt.Println("╠═══════════════════════════════════════════════════════════╣")
	fmt.Printf("║  API URL:    http://127.0.0.1:%-27d ║\n", cfg.Port())
	fmt.Printf("║  Auth Token: %-45s ║\n", authToken)
	fmt.Printf("║  Backend:    %-45s ║\n", cfg.BackendURL())
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	inspectionSvc := inspection.NewService(repo, inspection.ServiceConfig{
		TrackPreviewLimit: cfg.TrackPreviewLimit(),
		RoadTotalLength:   cfg.RoadTotalLength(),
		RoadTotalCount:    cfg.RoadTotalCount(),
	}, logging.WithComponent(logger, "inspection"))
	mediaSrv := playback.NewServer(cfg.MediaDir(), logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loop := eventloop.New(logging.WithComponent(logger, "loop"))
	backend := client.NewHTTPClient(cfg.BackendURL(), cfg.FetchTimeout(), logging.WithComponent(logger, "client"))
	dash, canvas := newDashboard(cfg, loop, backend, logger)
	handle := dashboard.NewHandle(dash, canvas)

	loopDone := make(chan error, 1)
	go func() {
		loopDone <- loop.Run(ctx)
	}()

	apiServer := api.NewServer(api.ServerConfig{
		Port:       cfg.Port(),
		Inspection: inspectionSvc,
		Media:      mediaSrv,
		Dashboard:  handle,
		Config:     repo,
		Logger:     logger,
		StartTime:  startTime,
		Version:    config.Version,
	})

	ln, err := net.Listen("tcp", apiServer.Addr())
	if err != nil {
		cancel()
		<-loopDone
		return fmt.Errorf("failed to listen on %s: %w", apiServer.Addr(), err)
	}
	go func() {
		if err := apiServer.Serve(ln); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	// the default backend is this agent's own /api, so fetch only once it listens
	loop.Post(dash.Start)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	quitCh := make(chan struct{})
	var quitOnce sync.Once
	quit := func() { quitOnce.Do(func() { close(quitCh) }) }

	var tray *ui.Tray
	if cfg.Headless() {
		logger.Info("running in headless mode (no system tray)")
	} else {
		tray = ui.NewTray(ui.TrayConfig{
			Control: handle,
			Logger:  logging.WithComponent(logger, "tray"),
			OnQuit:  quit,
		})
		go tray.Run()
	}

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			if tray != nil {
				tray.Quit()
			}
			quit()
		case <-quitCh:
		}
	}()

	<-quitCh

	logger.Info("initiating graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}
	if err := loop.Call(shutdownCtx, dash.Close); err != nil {
		logger.Warn("dashboard close skipped", "error", err)
	}
	cancel()
	if err := <-loopDone; err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("event loop stopped with error", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// newDashboard wires the simulated video, overlay renderer and dashboard
// onto loop. Nothing here may be touched off the loop once it runs.
func newDashboard(cfg config.Config, loop *eventloop.Loop, backend *client.HTTPClient, logger *slog.Logger) (*dashboard.Dashboard, *overlay.RasterCanvas) {
	mediaLogger := logging.WithComponent(logger, "media")

	var prober media.Prober
	if ff := media.NewFFprobe(cfg.FFprobePath(), mediaLogger); ff.Available() {
		prober = ff
	} else {
		logger.Warn("ffprobe not found, using fallback video metadata", "path", cfg.FFprobePath())
	}

	sim := media.NewSimVideo(media.SimVideoConfig{
		Loop:   loop,
		Prober: prober,
		Fallback: media.Metadata{
			Width:     cfg.FallbackWidth(),
			Height:    cfg.FallbackHeight(),
			Duration:  cfg.FallbackDuration(),
			FrameRate: cfg.FallbackFPS(),
		},
		DisplayWidth:    cfg.DisplayWidth(),
		DisplayHeight:   cfg.DisplayHeight(),
		AutoplayBlocked: cfg.AutoplayBlocked(),
		ResolveSource:   backend.ResolveURL,
		Logger:          mediaLogger,
	})

	var video media.Video = sim
	if !cfg.FrameCallbacks() {
		logger.Info("frame callbacks disabled, overlay follows the display refresh")
		video = media.WithoutFrameCallbacks(sim)
	}

	canvas := overlay.NewRasterCanvas()
	renderer := overlay.NewRenderer(overlay.RendererConfig{
		Video:   video,
		Display: media.NewRefreshDisplay(loop, cfg.RefreshInterval()),
		Canvas:  canvas,
		Logger:  logging.WithComponent(logger, "overlay"),
	})

	dash := dashboard.New(dashboard.Config{
		Loop:         loop,
		Fetcher:      backend,
		Video:        video,
		Renderer:     renderer,
		Logger:       logging.WithComponent(logger, "dashboard"),
		FetchTimeout: cfg.FetchTimeout(),
	})
	return dash, canvas
}

func ensureAuthToken(repo inspection.Repository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, api.AuthTokenKey)
	if err == nil && existing != "" {
		return existing, nil
	}

	token := uuid.NewString()
	if err := repo.SetConfig(ctx, api.AuthTokenKey, token); err != nil {
		return "", err
	}
	return token, nil
}
