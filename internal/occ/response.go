package occ

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"strings"
)

// refresh performs one full poll: send the poll command, read the declared
// response length out of the first eight reply bytes, fetch the rest of the
// buffer in 8-byte register reads, and parse it into the snapshot. Callers
// hold the client mutex.
func (c *Client) refresh(ctx context.Context) error {
	// The retrieval loop reads whole 8-byte chunks, so the scratch buffer
	// carries slack past the 4 KiB data limit.
	buf := make([]byte, MaxDataLength+2*scomChunk)

	status, err := c.sendCommand(ctx, c.nextSeq(), CmdPoll, []byte{pollPayload}, buf)
	if err != nil {
		return err
	}
	if status != statusOK {
		return fmt.Errorf("%w: poll status 0x%02x", ErrProtocolRejected, status)
	}

	length := int(binary.BigEndian.Uint16(buf[offDataLength:]))
	if length == 0 || length > MaxDataLength {
		return fmt.Errorf("%w: declared data length %d", ErrMalformedResponse, length)
	}

	for off := scomChunk; off < length+scomChunk; off += scomChunk {
		if err := c.getSCOM(ctx, RegOCBData, buf, off); err != nil {
			return err
		}
	}

	return parseResponse(buf[:length+scomChunk], &c.snap)
}

// parseResponse validates and decodes a raw response buffer into snap,
// reusing snap's existing storage wherever the controller's block layout is
// unchanged. On any failure the snapshot is fully torn down; it is never
// left partially decoded.
func parseResponse(data []byte, snap *Snapshot) error {
	if len(data) < offFirstBlock {
		snap.teardown()
		return fmt.Errorf("%w: %d bytes is shorter than the fixed header", ErrMalformedResponse, len(data))
	}
	if !bytes.Equal(data[offSignature:offSignature+len(sensorSignature)], sensorSignature) {
		snap.teardown()
		return fmt.Errorf("%w: missing SENSOR signature", ErrMalformedResponse)
	}
	blockCount := data[offBlockCount]
	if blockCount == 0 {
		snap.teardown()
		return fmt.Errorf("%w: zero sensor blocks", ErrMalformedResponse)
	}

	// A changed block count discards the whole block list; per-type
	// storage reuse only applies while the layout is stable.
	if int(blockCount) != len(snap.Blocks) {
		snap.teardown()
		snap.Blocks = make([]Block, blockCount)
	}

	snap.Header = decodeHeader(data)

	var seen [4]bool // indexed by SensorKind

	cur := offFirstBlock
	for b := 0; b < int(blockCount); b++ {
		if cur+blockPrologueLen > len(data) {
			snap.teardown()
			return fmt.Errorf("%w: truncated prologue for block %d", ErrMalformedResponse, b)
		}
		tag := string(data[cur : cur+4])
		format := data[cur+5]
		stride := data[cur+6]
		count := data[cur+7]
		cur += blockPrologueLen

		kind, ok := kindForTag(tag)
		if !ok {
			snap.teardown()
			return fmt.Errorf("%w: %q in block %d", ErrUnsupportedSensorType, tag, b)
		}
		slog.Debug("occ: sensor block", "index", b, "type", tag, "records", count, "stride", stride)

		retired, err := snap.renew(kind, b, stride, count)
		if err != nil {
			return err // renew already tore the snapshot down
		}
		blk := &snap.Blocks[b]
		blk.Type = tag
		blk.Format = format
		blk.Stride = stride
		blk.Count = count
		if retired {
			continue
		}

		// The declared stride is authoritative for cursor advance and
		// may exceed or undercut the decoded field span; both bounds
		// matter.
		span := int(count) * int(stride)
		lastRecord := cur + (int(count)-1)*int(stride)
		if cur+span > len(data) || lastRecord+recordSize(kind) > len(data) {
			snap.teardown()
			return fmt.Errorf("%w: block %d records overrun the buffer", ErrMalformedResponse, b)
		}

		switch kind {
		case KindFrequency:
			for s := range blk.Freq {
				blk.Freq[s].SensorID = binary.BigEndian.Uint16(data[cur:])
				blk.Freq[s].Value = binary.BigEndian.Uint16(data[cur+2:])
				cur += int(stride)
			}
			snap.FreqBlock = b
		case KindTemperature:
			for s := range blk.Temp {
				blk.Temp[s].SensorID = binary.BigEndian.Uint16(data[cur:])
				blk.Temp[s].Value = binary.BigEndian.Uint16(data[cur+2:])
				cur += int(stride)
			}
			snap.TempBlock = b
		case KindPower:
			for s := range blk.Power {
				blk.Power[s].SensorID = binary.BigEndian.Uint16(data[cur:])
				blk.Power[s].UpdateTag = binary.BigEndian.Uint32(data[cur+2:])
				blk.Power[s].Accumulator = binary.BigEndian.Uint32(data[cur+6:])
				blk.Power[s].Value = binary.BigEndian.Uint16(data[cur+10:])
				cur += int(stride)
			}
			snap.PowerBlock = b
		case KindCaps:
			for s := range blk.Caps {
				blk.Caps[s].CurrentCap = binary.BigEndian.Uint16(data[cur:])
				blk.Caps[s].CurrentReading = binary.BigEndian.Uint16(data[cur+2:])
				blk.Caps[s].NormalCap = binary.BigEndian.Uint16(data[cur+4:])
				blk.Caps[s].MaxCap = binary.BigEndian.Uint16(data[cur+6:])
				blk.Caps[s].MinCap = binary.BigEndian.Uint16(data[cur+8:])
				blk.Caps[s].UserLimit = binary.BigEndian.Uint16(data[cur+10:])
				cur += int(stride)
			}
			snap.CapsBlock = b
		}
		seen[kind] = true
	}

	// A type that vanished from the response without an explicit
	// zero-count retirement still loses its index and storage; an index is
	// only ever valid when its block's tag matches.
	for _, kind := range []SensorKind{KindFrequency, KindTemperature, KindPower, KindCaps} {
		idx := snap.kindIndex(kind)
		if seen[kind] || *idx == NoBlock {
			continue
		}
		if *idx < len(snap.Blocks) {
			snap.Blocks[*idx].clearRecords(kind)
		}
		*idx = NoBlock
	}

	return nil
}

// decodeHeader copies the fixed-layout header out of the buffer, converting
// its multi-byte big-endian fields to host order. Offsets are relative to
// the start of the response buffer.
func decodeHeader(data []byte) Header {
	return Header{
		Status:         data[offHeader],
		ExtStatus:      data[offHeader+1],
		OCCsPresent:    data[offHeader+2],
		Config:         data[offHeader+3],
		State:          data[offHeader+4],
		ErrorLogID:     data[offHeader+7],
		ErrorLogAddr:   binary.BigEndian.Uint32(data[offHeader+8:]),
		ErrorLogLength: binary.BigEndian.Uint16(data[offHeader+12:]),
		CodeLevel:      strings.TrimRight(string(data[offHeader+16:offHeader+32]), "\x00"),
		BlockCount:     data[offBlockCount],
		Version:        data[offBlockCount+1],
	}
}
