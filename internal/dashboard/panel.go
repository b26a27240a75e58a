package dashboard

import (
	"errors"
	"fmt"

	"github.com/roadwatch/roadwatch-agent/internal/detection"
	"github.com/roadwatch/roadwatch-agent/internal/media"
)

var ErrTrackIndex = errors.New("track index out of range")

// TrackItem is one entry of the track panel.
type TrackItem struct {
	Track   detection.Track `json:"track"`
	Caption string          `json:"caption"`
}

// Caption is the label, suffixed with " - severity" when a severity is known.
func Caption(t detection.Track) string {
	if t.Severity == "" {
		return t.Label
	}
	return t.Label + " - " + t.Severity
}

// TrackPanel lists the active batch's tracks; selecting one seeks to it.
type TrackPanel struct {
	video  media.Video
	replay *ReplayButton
	items  []TrackItem
}

func NewTrackPanel(video media.Video, replay *ReplayButton) *TrackPanel {
	return &TrackPanel{video: video, replay: replay}
}

// Replace rebuilds the panel from tracks.
func (p *TrackPanel) Replace(tracks []detection.Track) {
	items := make([]TrackItem, 0, len(tracks))
	for _, t := range tracks {
		items = append(items, TrackItem{Track: t, Caption: Caption(t)})
	}
	p.items = items
}

func (p *TrackPanel) Items() []TrackItem {
	out := make([]TrackItem, len(p.items))
	copy(out, p.items)
	return out
}

func (p *TrackPanel) Len() int {
	return len(p.items)
}

// Select seeks to the start of track i and resumes playback.
func (p *TrackPanel) Select(i int) error {
	if i < 0 || i >= len(p.items) {
		return fmt.Errorf("%w: %d", ErrTrackIndex, i)
	}
	p.video.Seek(p.items[i].Track.Start)
	p.replay.Hide()
	if a, ok := p.video.(media.Activator); ok {
		a.Activate()
	}
	if err := p.video.Play(); err != nil {
		return fmt.Errorf("play track %s: %w", p.items[i].Track.ID, err)
	}
	return nil
}

// ReplayButton is the affordance offered once playback reaches the end.
type ReplayButton struct {
	visible bool
}

func (b *ReplayButton) Show()         { b.visible = true }
func (b *ReplayButton) Hide()         { b.visible = false }
func (b *ReplayButton) Visible() bool { return b.visible }
