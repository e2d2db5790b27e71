// Package poller runs the background refresh loop: it polls the controller
// on a fixed period while online and publishes each fresh snapshot to the
// event bus for SSE delivery.
package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/openbmc-go/occmon/internal/events"
	"github.com/openbmc-go/occmon/internal/occ"
)

// Poller drives periodic polls of one controller. Taking it offline pauses
// the loop without tearing anything down; on-demand reads through the client
// still work.
type Poller struct {
	client *occ.Client
	bus    *events.Bus

	mu       sync.Mutex
	interval time.Duration
	online   bool
	pending  bool

	kick chan struct{}
}

// New creates a poller. A zero interval disables the loop until
// SetInterval raises it.
func New(client *occ.Client, bus *events.Bus, interval time.Duration, online bool) *Poller {
	return &Poller{
		client:   client,
		bus:      bus,
		interval: interval,
		online:   online,
		kick:     make(chan struct{}, 1),
	}
}

// Run blocks until ctx is cancelled, polling while online.
func (p *Poller) Run(ctx context.Context) {
	for {
		d := p.delay()
		var tick <-chan time.Time
		var timer *time.Timer
		if d > 0 {
			timer = time.NewTimer(d)
			tick = timer.C
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case <-p.kick:
			if timer != nil {
				timer.Stop()
			}
			if p.takePending() {
				p.pollOnce(ctx)
			}
		case <-tick:
			p.pollOnce(ctx)
		}
	}
}

// SetOnline starts or pauses the loop. Going online polls immediately.
func (p *Poller) SetOnline(online bool) {
	p.mu.Lock()
	changed := p.online != online
	p.online = online
	if changed && online {
		p.client.Invalidate()
		p.pending = true
	}
	p.mu.Unlock()
	if changed {
		slog.Info("poller: online state changed", "online", online)
		p.wake()
	}
}

// Online reports whether the loop is currently polling.
func (p *Poller) Online() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online
}

// SetInterval changes the poll period. Zero pauses the loop.
func (p *Poller) SetInterval(d time.Duration) {
	p.mu.Lock()
	p.interval = d
	p.mu.Unlock()
	p.wake()
}

// Interval returns the configured poll period.
func (p *Poller) Interval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.interval
}

// delay returns the time until the next poll, or zero when paused.
func (p *Poller) delay() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.online || p.interval <= 0 {
		return 0
	}
	return p.interval
}

func (p *Poller) takePending() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	pending := p.pending && p.online
	p.pending = false
	return pending
}

func (p *Poller) wake() {
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

func (p *Poller) pollOnce(ctx context.Context) {
	snap, err := p.client.Snapshot(ctx, false)
	if err != nil {
		slog.Warn("poller: refresh failed", "err", err)
		return
	}
	p.bus.Publish(*snap)
}
