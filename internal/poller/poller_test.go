package poller_test

import (
	"context"
	"testing"
	"time"

	"github.com/openbmc-go/occmon/internal/events"
	"github.com/openbmc-go/occmon/internal/occ"
	"github.com/openbmc-go/occmon/internal/poller"
)

func startPoller(t *testing.T, interval time.Duration, online bool) (*poller.Poller, *events.Bus) {
	t.Helper()
	client := occ.New(occ.NewSimulator())
	client.SetRefreshInterval(time.Millisecond)
	bus := events.NewBus()
	p := poller.New(client, bus, interval, online)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		client.Close()
	})
	return p, bus
}

func waitSnapshot(t *testing.T, ch <-chan occ.Snapshot, timeout time.Duration) (occ.Snapshot, bool) {
	t.Helper()
	select {
	case snap := <-ch:
		return snap, true
	case <-time.After(timeout):
		return occ.Snapshot{}, false
	}
}

func TestPollerPublishesSnapshots(t *testing.T) {
	_, bus := startPoller(t, 10*time.Millisecond, true)
	ch := bus.Subscribe("t")
	defer bus.Unsubscribe("t")

	snap, ok := waitSnapshot(t, ch, 2*time.Second)
	if !ok {
		t.Fatal("no snapshot published")
	}
	if _, present := snap.Frequencies(); !present {
		t.Error("published snapshot missing frequency block")
	}
}

func TestPollerOfflinePausesPolling(t *testing.T) {
	p, bus := startPoller(t, 10*time.Millisecond, true)
	ch := bus.Subscribe("t")
	defer bus.Unsubscribe("t")

	if _, ok := waitSnapshot(t, ch, 2*time.Second); !ok {
		t.Fatal("no snapshot while online")
	}

	p.SetOnline(false)
	// Drain whatever was already buffered, then expect silence.
	for {
		if _, ok := waitSnapshot(t, ch, 100*time.Millisecond); !ok {
			break
		}
	}
	if _, ok := waitSnapshot(t, ch, 150*time.Millisecond); ok {
		t.Error("snapshot published while offline")
	}

	p.SetOnline(true)
	if _, ok := waitSnapshot(t, ch, 2*time.Second); !ok {
		t.Error("no snapshot after coming back online")
	}
}

func TestPollerStartsOffline(t *testing.T) {
	p, bus := startPoller(t, 10*time.Millisecond, false)
	ch := bus.Subscribe("t")
	defer bus.Unsubscribe("t")

	if p.Online() {
		t.Error("poller reports online")
	}
	if _, ok := waitSnapshot(t, ch, 150*time.Millisecond); ok {
		t.Error("offline poller published a snapshot")
	}
}

func TestPollerSetInterval(t *testing.T) {
	p, bus := startPoller(t, time.Hour, true)
	ch := bus.Subscribe("t")
	defer bus.Unsubscribe("t")

	if _, ok := waitSnapshot(t, ch, 100*time.Millisecond); ok {
		t.Fatal("snapshot arrived before the hour-long period")
	}

	p.SetInterval(10 * time.Millisecond)
	if _, ok := waitSnapshot(t, ch, 2*time.Second); !ok {
		t.Error("no snapshot after shortening the period")
	}
	if p.Interval() != 10*time.Millisecond {
		t.Errorf("Interval = %v", p.Interval())
	}
}
