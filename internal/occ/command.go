package occ

import (
	"context"
)

// encodeCommand packs a command into the two 32-bit words the OCB data
// register carries. Word layout, serialized big-endian by the register
// layer: seq, type, 16-bit payload length (little-endian, device
// convention), then the payload left-justified with the checksum in the two
// bytes immediately following it. The checksum is the mod-65536 sum of all
// eight frame bytes; because it sits right after the payload it never
// overlaps payload data, but that placement is only defined for payloads of
// 0-2 bytes.
func encodeCommand(seq, cmdType byte, payload []byte) (word1, word2 uint32, err error) {
	if len(payload) > MaxPayload {
		return 0, 0, ErrPayloadTooLong
	}
	length := uint32(len(payload))

	word1 = uint32(seq)<<24 | uint32(cmdType)<<16 | length<<8 | length>>8

	for i, b := range payload {
		word2 |= uint32(b) << (8 * (3 - i))
	}

	var sum uint16
	for i := 0; i < 4; i++ {
		sum += uint16(word1>>(8*i)) & 0xFF
		sum += uint16(word2>>(8*i)) & 0xFF
	}
	word2 |= uint32(sum) << ((2 - length) * 8)

	return word1, word2, nil
}

// sendCommand drives one command/response exchange. The register order is
// fixed by the OCB control register semantics: arm the command path, clear
// stale state, point the address register at the command buffer (the device
// requires that write twice), write the command words, raise attention, then
// re-point at the response buffer and read back the first eight reply bytes
// into reply[0:8]. Returns the reply status byte. Any step's transport
// failure is surfaced as-is; there are no retries at this layer.
func (c *Client) sendCommand(ctx context.Context, seq, cmdType byte, payload, reply []byte) (byte, error) {
	word1, word2, err := encodeCommand(seq, cmdType, payload)
	if err != nil {
		return 0, err
	}

	if err := c.putSCOM(ctx, RegOCBControlOr, ocbArmHigh, 0); err != nil {
		return 0, err
	}
	if err := c.putSCOM(ctx, RegOCBControlAnd, ocbClearHigh, ocbClearLow); err != nil {
		return 0, err
	}
	if err := c.putSCOM(ctx, RegOCBAddress, CommandAddr, 0); err != nil {
		return 0, err
	}
	if err := c.putSCOM(ctx, RegOCBAddress, CommandAddr, 0); err != nil {
		return 0, err
	}
	if err := c.putSCOM(ctx, RegOCBData, word1, word2); err != nil {
		return 0, err
	}
	if err := c.putSCOM(ctx, RegAttention, attnHigh, 0); err != nil {
		return 0, err
	}
	if err := c.putSCOM(ctx, RegOCBAddress, ResponseAddr, 0); err != nil {
		return 0, err
	}
	if err := c.getSCOM(ctx, RegOCBData, reply, 0); err != nil {
		return 0, err
	}
	return reply[replyStatusOffset], nil
}
