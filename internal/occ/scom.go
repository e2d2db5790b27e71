package occ

import (
	"context"
	"encoding/binary"
	"fmt"
)

// getSCOM reads the 8-byte register at address into buf[offset:offset+8].
// The device returns the bytes in the opposite order the caller wants, so
// they are flipped here; successive calls at increasing offsets assemble a
// multi-register response contiguously.
func (c *Client) getSCOM(ctx context.Context, address uint32, buf []byte, offset int) error {
	var addr [4]byte
	binary.BigEndian.PutUint32(addr[:], address<<1)

	n, err := c.tr.Send(ctx, addr[:])
	if err != nil {
		return fmt.Errorf("occ: scom 0x%06x address write: %w", address, err)
	}
	if n != len(addr) {
		return fmt.Errorf("occ: scom 0x%06x address write (%d/%d bytes): %w",
			address, n, len(addr), ErrTransportWrite)
	}

	var raw [scomChunk]byte
	n, err = c.tr.Recv(ctx, raw[:])
	if err != nil {
		return fmt.Errorf("occ: scom 0x%06x read: %w", address, err)
	}
	if n != len(raw) {
		return fmt.Errorf("occ: scom 0x%06x read (%d/%d bytes): %w",
			address, n, len(raw), ErrTransportRead)
	}

	for i := 0; i < scomChunk; i++ {
		buf[offset+i] = raw[scomChunk-1-i]
	}
	return nil
}

// putSCOM writes a 64-bit value to the register at address as one 12-byte
// address / low-word / high-word transfer.
func (c *Client) putSCOM(ctx context.Context, address, high, low uint32) error {
	var buf [12]byte
	binary.BigEndian.PutUint32(buf[0:4], address<<1)
	binary.BigEndian.PutUint32(buf[4:8], low)
	binary.BigEndian.PutUint32(buf[8:12], high)

	n, err := c.tr.Send(ctx, buf[:])
	if err != nil {
		return fmt.Errorf("occ: scom 0x%06x write: %w", address, err)
	}
	if n != len(buf) {
		return fmt.Errorf("occ: scom 0x%06x write (%d/%d bytes): %w",
			address, n, len(buf), ErrTransportWrite)
	}
	return nil
}
