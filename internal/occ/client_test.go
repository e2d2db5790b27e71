package occ

import (
	"context"
	"errors"
	"testing"
	"time"
)

// pollCount counts attention raises, one per command exchange.
func pollCount(sim *Simulator) int {
	n := 0
	for _, reg := range sim.Writes() {
		if reg == RegAttention {
			n++
		}
	}
	return n
}

func newTestClient(t *testing.T) (*Client, *Simulator, *time.Time) {
	t.Helper()
	sim := NewSimulator()
	c := New(sim)
	t.Cleanup(func() { c.Close() })

	cur := time.Unix(1000, 0)
	c.now = func() time.Time { return cur }
	return c, sim, &cur
}

func TestSnapshotEndToEnd(t *testing.T) {
	c, _, _ := newTestClient(t)

	snap, err := c.Snapshot(context.Background(), false)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	freq, ok := snap.Frequencies()
	if !ok || len(freq) != 4 {
		t.Fatalf("frequencies = %+v, %v", freq, ok)
	}
	if freq[0].SensorID != 0x20 || freq[0].Value != 3524 {
		t.Errorf("first frequency record = %+v", freq[0])
	}
	temp, ok := snap.Temperatures()
	if !ok || len(temp) != 4 {
		t.Fatalf("temperatures = %+v, %v", temp, ok)
	}
	power, ok := snap.PowerSensors()
	if !ok || len(power) != 2 {
		t.Fatalf("power = %+v, %v", power, ok)
	}
	caps, ok := snap.CapsSensors()
	if !ok || len(caps) != 1 || caps[0].MaxCap != 1200 {
		t.Fatalf("caps = %+v, %v", caps, ok)
	}
	if snap.Header.State != 0x03 {
		t.Errorf("header state = 0x%02x, want 0x03", snap.Header.State)
	}
	if snap.Header.CodeLevel != "occmon-sim" {
		t.Errorf("code level = %q", snap.Header.CodeLevel)
	}
}

func TestSnapshotCachesWithinInterval(t *testing.T) {
	c, sim, cur := newTestClient(t)
	ctx := context.Background()

	if _, err := c.Snapshot(ctx, false); err != nil {
		t.Fatalf("first Snapshot: %v", err)
	}
	if n := pollCount(sim); n != 1 {
		t.Fatalf("polls after first call = %d, want 1", n)
	}

	// Within the interval the cached snapshot is served.
	*cur = cur.Add(500 * time.Millisecond)
	if _, err := c.Snapshot(ctx, false); err != nil {
		t.Fatalf("cached Snapshot: %v", err)
	}
	if n := pollCount(sim); n != 1 {
		t.Errorf("polls after cached call = %d, want 1", n)
	}

	// Past the interval the device is polled again.
	*cur = cur.Add(time.Second)
	if _, err := c.Snapshot(ctx, false); err != nil {
		t.Fatalf("refreshed Snapshot: %v", err)
	}
	if n := pollCount(sim); n != 2 {
		t.Errorf("polls after expiry = %d, want 2", n)
	}
}

func TestSnapshotForceBypassesCache(t *testing.T) {
	c, sim, _ := newTestClient(t)
	ctx := context.Background()

	if _, err := c.Snapshot(ctx, false); err != nil {
		t.Fatalf("first Snapshot: %v", err)
	}
	if _, err := c.Snapshot(ctx, true); err != nil {
		t.Fatalf("forced Snapshot: %v", err)
	}
	if n := pollCount(sim); n != 2 {
		t.Errorf("polls = %d, want 2", n)
	}
}

func TestInvalidateForcesRefresh(t *testing.T) {
	c, sim, _ := newTestClient(t)
	ctx := context.Background()

	if _, err := c.Snapshot(ctx, false); err != nil {
		t.Fatalf("first Snapshot: %v", err)
	}
	c.Invalidate()
	if _, err := c.Snapshot(ctx, false); err != nil {
		t.Fatalf("post-invalidate Snapshot: %v", err)
	}
	if n := pollCount(sim); n != 2 {
		t.Errorf("polls = %d, want 2", n)
	}
}

func TestFailedRefreshThrottlesRetry(t *testing.T) {
	c, sim, cur := newTestClient(t)
	ctx := context.Background()
	sim.SetFailRecv(true)

	if _, err := c.Snapshot(ctx, false); err == nil {
		t.Fatal("Snapshot succeeded with recv failing")
	}
	polls := pollCount(sim)
	if polls != 1 {
		t.Fatalf("polls after failure = %d, want 1", polls)
	}

	// Within the interval the stored error is returned without another
	// bus exchange.
	*cur = cur.Add(200 * time.Millisecond)
	if _, err := c.Snapshot(ctx, false); err == nil {
		t.Fatal("throttled Snapshot returned no error")
	}
	if n := pollCount(sim); n != polls {
		t.Errorf("throttled call polled the device: %d polls", n)
	}

	// Once the interval re-elapses the fetch is retried.
	*cur = cur.Add(time.Second)
	sim.SetFailRecv(false)
	snap, err := c.Snapshot(ctx, false)
	if err != nil {
		t.Fatalf("retry Snapshot: %v", err)
	}
	if _, ok := snap.Frequencies(); !ok {
		t.Error("retry snapshot missing frequency block")
	}
	if n := pollCount(sim); n != polls+1 {
		t.Errorf("polls after retry = %d, want %d", n, polls+1)
	}
}

func TestSnapshotSurfacesPollRejection(t *testing.T) {
	c, sim, _ := newTestClient(t)
	sim.SetPollStatus(0x15)

	_, err := c.Snapshot(context.Background(), false)
	if !errors.Is(err, ErrProtocolRejected) {
		t.Fatalf("err = %v, want ErrProtocolRejected", err)
	}
}

func TestSetRefreshInterval(t *testing.T) {
	c, sim, cur := newTestClient(t)
	ctx := context.Background()
	c.SetRefreshInterval(5 * time.Second)

	if _, err := c.Snapshot(ctx, false); err != nil {
		t.Fatalf("first Snapshot: %v", err)
	}
	*cur = cur.Add(2 * time.Second)
	if _, err := c.Snapshot(ctx, false); err != nil {
		t.Fatalf("second Snapshot: %v", err)
	}
	if n := pollCount(sim); n != 1 {
		t.Errorf("polls = %d, want 1 under a 5s interval", n)
	}
	if c.RefreshInterval() != 5*time.Second {
		t.Errorf("RefreshInterval = %v", c.RefreshInterval())
	}
}

func TestSetUserPowerCap(t *testing.T) {
	c, _, _ := newTestClient(t)
	ctx := context.Background()

	if err := c.SetUserPowerCap(ctx, 900); err != nil {
		t.Fatalf("SetUserPowerCap(900): %v", err)
	}
	if got := c.UserPowerCap(); got != 900 {
		t.Errorf("UserPowerCap = %d, want 900", got)
	}

	snap, err := c.Snapshot(ctx, true)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	caps, ok := snap.CapsSensors()
	if !ok || caps[0].UserLimit != 900 || caps[0].CurrentCap != 900 {
		t.Errorf("caps after set = %+v, %v", caps, ok)
	}

	// Zero clears the cap and restores the normal limit.
	if err := c.SetUserPowerCap(ctx, 0); err != nil {
		t.Fatalf("SetUserPowerCap(0): %v", err)
	}
	snap, err = c.Snapshot(ctx, true)
	if err != nil {
		t.Fatalf("Snapshot after clear: %v", err)
	}
	caps, _ = snap.CapsSensors()
	if caps[0].UserLimit != 0 || caps[0].CurrentCap != caps[0].NormalCap {
		t.Errorf("caps after clear = %+v", caps)
	}
}

func TestSetUserPowerCapOutOfRange(t *testing.T) {
	c, _, _ := newTestClient(t)

	err := c.SetUserPowerCap(context.Background(), 5000)
	if !errors.Is(err, ErrInvalidPowerCap) {
		t.Fatalf("err = %v, want ErrInvalidPowerCap", err)
	}
	if got := c.UserPowerCap(); got != 0 {
		t.Errorf("rejected cap was recorded: %d", got)
	}
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	c, sim, _ := newTestClient(t)
	ctx := context.Background()

	first, err := c.Snapshot(ctx, false)
	if err != nil {
		t.Fatalf("first Snapshot: %v", err)
	}
	freq, _ := first.Frequencies()
	before := freq[0].Value

	set := NewSimulator().set
	set.Freq[0].Value = before + 100
	sim.SetSensors(set)

	if _, err := c.Snapshot(ctx, true); err != nil {
		t.Fatalf("second Snapshot: %v", err)
	}
	freq, _ = first.Frequencies()
	if freq[0].Value != before {
		t.Errorf("earlier snapshot mutated by a later refresh: %d", freq[0].Value)
	}
}
