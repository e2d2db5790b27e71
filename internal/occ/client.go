// Package occ implements the command/response protocol for the On-Chip
// Controller: checksummed command frames, the SCOM drive sequence that
// carries them over the bus, validation and decoding of the self-describing
// poll response, and the cached sensor snapshot built from it.
package occ

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/openbmc-go/occmon/internal/transport"
)

// DefaultRefreshInterval is the minimum time between device polls unless
// reconfigured.
const DefaultRefreshInterval = time.Second

// Client owns one physical controller: the transport handle, the decoded
// snapshot, and the refresh cache that rate-limits polls. All methods are
// safe for concurrent use; a single mutex serializes every bus exchange and
// snapshot mutation.
type Client struct {
	tr transport.Transport

	mu       sync.Mutex
	snap     Snapshot
	valid    bool
	lastErr  error
	last     time.Time
	interval time.Duration
	seq      byte
	userCap  uint16

	now func() time.Time // test seam
}

// New creates a client for the controller behind tr. The client takes
// ownership of the transport and closes it on Close.
func New(tr transport.Transport) *Client {
	return &Client{
		tr:       tr,
		snap:     newSnapshot(),
		interval: DefaultRefreshInterval,
		now:      time.Now,
	}
}

// Snapshot returns the decoded sensor snapshot, polling the controller first
// when the cache is invalid, older than the refresh interval, or force is
// set. Concurrent callers either wait for one in-flight refresh or get the
// fresh cached copy. After a failed refresh the error is returned, without
// touching the bus again, until the interval re-elapses from the failed
// attempt; force bypasses that throttle. The returned snapshot is the
// caller's to keep.
func (c *Client) Snapshot(ctx context.Context, force bool) (*Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stale := !c.valid || c.now().Sub(c.last) > c.interval
	throttled := c.lastErr != nil && c.now().Sub(c.last) <= c.interval

	if force || (stale && !throttled) {
		c.valid = true
		c.lastErr = c.refresh(ctx)
		// Stamp the attempt time even on failure so a misbehaving
		// device is not hammered before the interval re-elapses.
		c.last = c.now()
		if c.lastErr != nil {
			c.valid = false
			slog.Warn("occ: refresh failed", "err", c.lastErr)
		}
	}
	if !c.valid {
		return nil, c.lastErr
	}

	snap := c.snap.clone()
	return &snap, nil
}

// SendRawCommand performs a single command exchange outside the poll path
// and returns the device status byte. The reply payload beyond the status is
// discarded.
func (c *Client) SendRawCommand(ctx context.Context, cmdType byte, payload []byte) (byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var reply [scomChunk]byte
	return c.sendCommand(ctx, c.nextSeq(), cmdType, payload, reply[:])
}

// SetUserPowerCap asks the controller to apply a user power cap in watts.
// A zero value clears the cap. The controller answers status 0x13 for a
// value outside its supported range.
func (c *Client) SetUserPowerCap(ctx context.Context, watts uint16) error {
	var payload [2]byte
	binary.LittleEndian.PutUint16(payload[:], watts)

	status, err := c.SendRawCommand(ctx, CmdSetUserPowerCap, payload[:])
	if err != nil {
		return err
	}
	switch status {
	case statusOK:
		c.mu.Lock()
		c.userCap = watts
		c.mu.Unlock()
		return nil
	case statusInvalidPowerCap:
		return fmt.Errorf("%w: %d W", ErrInvalidPowerCap, watts)
	default:
		return fmt.Errorf("%w: set power cap status 0x%02x", ErrProtocolRejected, status)
	}
}

// UserPowerCap returns the last power cap the controller accepted from us.
func (c *Client) UserPowerCap() uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userCap
}

// SetRefreshInterval changes the minimum time between polls. It takes
// effect on the next refresh decision.
func (c *Client) SetRefreshInterval(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.interval = d
	slog.Debug("occ: refresh interval set", "interval", d)
}

// RefreshInterval returns the configured minimum time between polls.
func (c *Client) RefreshInterval() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.interval
}

// Invalidate forces the next Snapshot call to poll regardless of age.
func (c *Client) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.valid = false
}

// Close releases the snapshot storage and the transport.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap.teardown()
	c.valid = false
	return c.tr.Close()
}

func (c *Client) nextSeq() byte {
	c.seq++
	return c.seq
}
