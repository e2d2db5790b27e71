//go:build !linux

package transport

import (
	"context"
	"errors"
)

// I2C is only available on Linux (it needs the i2c-dev character device).
type I2C struct{}

var errNoI2C = errors.New("i2c: transport requires linux")

func OpenI2C(devPath string, addr uint16) (*I2C, error) { return nil, errNoI2C }

func (d *I2C) Send(ctx context.Context, p []byte) (int, error) { return 0, errNoI2C }
func (d *I2C) Recv(ctx context.Context, p []byte) (int, error) { return 0, errNoI2C }
func (d *I2C) Close() error                                    { return nil }
