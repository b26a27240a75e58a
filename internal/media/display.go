package media

import (
	"time"

	"github.com/roadwatch/roadwatch-agent/internal/eventloop"
)

const DefaultRefreshInterval = time.Second / 60

// RefreshDisplay batches animation frame requests and runs them on the loop
// once per refresh interval.
type RefreshDisplay struct {
	loop      *eventloop.Loop
	interval  time.Duration
	now       func() time.Time
	pending   []func(time.Time)
	scheduled bool
}

func NewRefreshDisplay(loop *eventloop.Loop, interval time.Duration) *RefreshDisplay {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &RefreshDisplay{loop: loop, interval: interval, now: time.Now}
}

func (d *RefreshDisplay) RequestAnimationFrame(fn func(now time.Time)) {
	d.pending = append(d.pending, fn)
	if d.scheduled {
		return
	}
	d.scheduled = true
	d.loop.AfterFunc(d.interval, d.refresh)
}

func (d *RefreshDisplay) refresh() {
	callbacks := d.pending
	d.pending = nil
	d.scheduled = false
	now := d.now()
	for _, fn := range callbacks {
		fn(now)
	}
}
