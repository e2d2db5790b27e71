package transport

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.bug.st/serial"
)

const serialReadTimeout = 2 * time.Second

// Serial carries the same send/receive primitive over a tty, for bench
// setups where the controller bus is tunneled through a USB bridge. The
// bridge is assumed transparent: every byte written reaches the peer, every
// byte the peer produces is readable in order.
type Serial struct {
	mu   sync.Mutex
	port serial.Port
}

// OpenSerial opens the bridge tty at the given baud rate (8N1).
func OpenSerial(devPath string, baud int) (*Serial, error) {
	port, err := serial.Open(devPath, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("serial: open %s: %w", devPath, err)
	}
	if err := port.SetReadTimeout(serialReadTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("serial: set timeout: %w", err)
	}
	slog.Info("serial: bridge opened", "device", devPath, "baud", baud)
	return &Serial{port: port}, nil
}

func (s *Serial) Send(ctx context.Context, p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port.Write(p)
}

func (s *Serial) Recv(ctx context.Context, p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for total < len(p) {
		n, err := s.port.Read(p[total:])
		if err != nil {
			return total, fmt.Errorf("serial: read: %w", err)
		}
		if n == 0 {
			// Read timeout elapsed with nothing received; report the
			// short transfer and let the register layer classify it.
			return total, nil
		}
		total += n
	}
	return total, nil
}

func (s *Serial) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port.Close()
}
