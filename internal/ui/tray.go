// Package ui shows the dashboard's active batch and playback controls in the
// system tray.
package ui

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"sync"
	"time"

	"github.com/getlantern/systray"

	"github.com/roadwatch/roadwatch-agent/internal/dashboard"
	"github.com/roadwatch/roadwatch-agent/internal/detection"
	"github.com/roadwatch/roadwatch-agent/internal/overlay"
)

const (
	DefaultRefreshInterval = time.Second
	callTimeout            = 5 * time.Second
)

// Control is the part of the dashboard the tray drives.
type Control interface {
	State(ctx context.Context) (dashboard.State, error)
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	Replay(ctx context.Context) error
	NextBatch(ctx context.Context) (detection.ID, error)
}

type Tray struct {
	control Control
	logger  *slog.Logger
	refresh time.Duration

	batchItem  *systray.MenuItem
	statusItem *systray.MenuItem
	playItem   *systray.MenuItem

	mu     sync.Mutex
	paused bool
	done   chan struct{}

	onQuit func()
}

type TrayConfig struct {
	Control         Control
	Logger          *slog.Logger
	RefreshInterval time.Duration
	OnQuit          func()
}

func NewTray(cfg TrayConfig) *Tray {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = DefaultRefreshInterval
	}
	return &Tray{
		control: cfg.Control,
		logger:  cfg.Logger,
		refresh: cfg.RefreshInterval,
		paused:  true,
		done:    make(chan struct{}),
		onQuit:  cfg.OnQuit,
	}
}

// Run blocks until the tray quits. It must be called from the main goroutine.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(iconBytes())
	systray.SetTitle("Roadwatch")
	systray.SetTooltip("Roadwatch Agent")

	t.batchItem = systray.AddMenuItem("Batch: none", "Active inspection batch")
	t.batchItem.Disable()

	t.statusItem = systray.AddMenuItem("Status: Loading", "Playback state")
	t.statusItem.Disable()

	systray.AddSeparator()

	t.playItem = systray.AddMenuItem("Play", "Play or pause the inspection video")
	nextItem := systray.AddMenuItem("Next batch", "Switch to the next batch")
	replayItem := systray.AddMenuItem("Replay", "Play the video from the start")

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit Roadwatch Agent")

	go func() {
		ticker := time.NewTicker(t.refresh)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				t.sync()
			case <-t.playItem.ClickedCh:
				t.togglePlay()
			case <-nextItem.ClickedCh:
				t.run("next batch", func(ctx context.Context) error {
					_, err := t.control.NextBatch(ctx)
					return err
				})
			case <-replayItem.ClickedCh:
				t.run("replay", t.control.Replay)
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			case <-t.done:
				return
			}
		}
	}()

	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	t.logger.Info("system tray exiting")
}

func (t *Tray) run(what string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		t.logger.Error("tray action failed", "action", what, "error", err)
	}
	t.sync()
}

func (t *Tray) togglePlay() {
	t.mu.Lock()
	paused := t.paused
	t.mu.Unlock()

	if paused {
		t.run("play", t.control.Play)
	} else {
		t.run("pause", t.control.Pause)
	}
}

// sync copies the dashboard state into the menu.
func (t *Tray) sync() {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	state, err := t.control.State(ctx)
	if err != nil {
		t.logger.Debug("tray state unavailable", "error", err)
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.paused = state.Playback.Paused
	t.batchItem.SetTitle(batchLabel(state))
	t.statusItem.SetTitle(statusLabel(state))
	if t.paused {
		t.playItem.SetTitle("Play")
	} else {
		t.playItem.SetTitle("Pause")
	}
}

func (t *Tray) Quit() {
	select {
	case <-t.done:
	default:
		close(t.done)
	}
	systray.Quit()
}

func batchLabel(s dashboard.State) string {
	for _, b := range s.Batches {
		if b.Active {
			return "Batch: " + b.Title
		}
	}
	if s.ActiveBatch != "" {
		return "Batch: " + string(s.ActiveBatch)
	}
	if s.BatchesLoaded {
		return "Batch: none"
	}
	return "Batch: loading"
}

func statusLabel(s dashboard.State) string {
	switch {
	case s.Playback.Source == "":
		return "Status: No video"
	case s.Playback.Ended:
		return "Status: Ended"
	case s.Playback.Paused:
		return "Status: Paused"
	}
	return "Status: Playing"
}

var (
	iconOnce sync.Once
	iconData []byte
)

// iconBytes draws the tray icon: a road-grey square with a crack-coloured
// box outline.
func iconBytes() []byte {
	iconOnce.Do(func() {
		const size = 32
		img := image.NewRGBA(image.Rect(0, 0, size, size))
		grey := color.RGBA{R: 0x40, G: 0x40, B: 0x40, A: 0xff}
		red := overlay.ColorFor("裂缝")
		for y := 0; y < size; y++ {
			for x := 0; x < size; x++ {
				c := grey
				if (x >= 6 && x <= 25 && (y == 6 || y == 7 || y == 24 || y == 25)) ||
					(y >= 6 && y <= 25 && (x == 6 || x == 7 || x == 24 || x == 25)) {
					c = red
				}
				img.SetRGBA(x, y, c)
			}
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err == nil {
			iconData = buf.Bytes()
		}
	})
	return iconData
}
