//go:build linux

package transport

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sys/unix"
	"golang.org/x/time/rate"
)

const (
	i2cSlave     = 0x0703 // I2C_SLAVE ioctl
	maxOpsPerSec = 500
)

// I2C talks to the controller as a plain I2C slave: whole-buffer master
// sends and receives, no register addressing at this layer. The controller's
// own bus protocol (address writes, data reads) is layered on top by the
// protocol engine.
type I2C struct {
	mu      sync.Mutex
	fd      int
	addr    uint16
	limiter *rate.Limiter
}

// OpenI2C opens the I2C character device and binds it to the peer address
// (7-bit). Typical controller addresses are 0x50 and 0x51.
func OpenI2C(devPath string, addr uint16) (*I2C, error) {
	fd, err := unix.Open(devPath, unix.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("i2c: open %s: %w", devPath, err)
	}
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), i2cSlave, uintptr(addr)); errno != 0 {
		unix.Close(fd)
		return nil, fmt.Errorf("i2c: bind slave 0x%02x: %w", addr, errno)
	}
	slog.Info("i2c: bus opened", "device", devPath, "addr", fmt.Sprintf("0x%02x", addr))
	return &I2C{
		fd:      fd,
		addr:    addr,
		limiter: rate.NewLimiter(rate.Limit(maxOpsPerSec), 10),
	}, nil
}

func (d *I2C) Send(ctx context.Context, p []byte) (int, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fd < 0 {
		return 0, fmt.Errorf("i2c: bus closed")
	}
	n, err := unix.Write(d.fd, p)
	if err != nil {
		return n, fmt.Errorf("i2c: write %d bytes @0x%02x: %w", len(p), d.addr, err)
	}
	return n, nil
}

func (d *I2C) Recv(ctx context.Context, p []byte) (int, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fd < 0 {
		return 0, fmt.Errorf("i2c: bus closed")
	}
	n, err := unix.Read(d.fd, p)
	if err != nil {
		return n, fmt.Errorf("i2c: read %d bytes @0x%02x: %w", len(p), d.addr, err)
	}
	return n, nil
}

// Close releases the I2C file descriptor.
func (d *I2C) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fd >= 0 {
		err := unix.Close(d.fd)
		d.fd = -1
		return err
	}
	return nil
}
