package occ

import "errors"

// Protocol and storage errors. Every one of these aborts the in-progress
// refresh and leaves the snapshot either fully valid or fully reset; none is
// retried automatically.
var (
	// ErrTransportWrite reports a short or failed bus write at the
	// register layer.
	ErrTransportWrite = errors.New("occ: short transport write")

	// ErrTransportRead reports a short or failed bus read at the register
	// layer.
	ErrTransportRead = errors.New("occ: short transport read")

	// ErrProtocolRejected reports a non-zero status byte in a command
	// reply.
	ErrProtocolRejected = errors.New("occ: command rejected by controller")

	// ErrMalformedResponse reports a response that fails structural
	// validation: missing SENSOR signature, zero block count, declared
	// length outside (0, 4096], or truncated block data.
	ErrMalformedResponse = errors.New("occ: malformed response")

	// ErrUnsupportedSensorType reports an unknown 4-byte block type tag.
	// The whole parse fails; partial snapshots are never retained.
	ErrUnsupportedSensorType = errors.New("occ: unsupported sensor type")

	// ErrOutOfMemory reports a sensor-storage request no response buffer
	// could ever satisfy.
	ErrOutOfMemory = errors.New("occ: sensor storage request exceeds response capacity")

	// ErrPayloadTooLong reports a command payload longer than two bytes;
	// checksum placement is undefined past that.
	ErrPayloadTooLong = errors.New("occ: command payload longer than 2 bytes")

	// ErrInvalidPowerCap reports the controller's 0x13 reject status for
	// an out-of-range user power cap.
	ErrInvalidPowerCap = errors.New("occ: power cap value rejected")
)
