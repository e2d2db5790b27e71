package occ

// SCOM register numbers, from the POWER8 processor register specification.
// The bus addressing convention requires the register number shifted up one
// bit before it goes on the wire; the register layer applies the shift.
const (
	// RegAttention signals the controller that a command is waiting.
	RegAttention uint32 = 0x0006B035
	// RegOCBAddress selects the SRAM address the data register operates on.
	RegOCBAddress uint32 = 0x0006B070
	// RegOCBControlAnd clears OCB status/control bits (write of AND mask).
	RegOCBControlAnd uint32 = 0x0006B072
	// RegOCBControlOr sets OCB status/control bits (write of OR mask).
	RegOCBControlOr uint32 = 0x0006B073
	// RegOCBData streams data to/from the SRAM address in RegOCBAddress.
	RegOCBData uint32 = 0x0006B075
)

// SRAM addresses of the controller's command and response buffers. These are
// values written through RegOCBAddress, not register numbers themselves.
const (
	CommandAddr  uint32 = 0xFFFF6000
	ResponseAddr uint32 = 0xFFFF7000
)

// Control words for the command drive sequence.
const (
	ocbArmHigh   uint32 = 0x08000000 // OR mask: arm the command path
	ocbClearHigh uint32 = 0xFBFFFFFF // AND mask: clear stale state
	ocbClearLow  uint32 = 0xFFFFFFFF
	attnHigh     uint32 = 0x01010000 // attention trigger value
)

// Command types.
const (
	CmdPoll            byte = 0x00
	CmdSetUserPowerCap byte = 0x22
)

// pollPayload selects the sensor-poll variant of the poll command.
const pollPayload byte = 0x10

// Device status bytes carried in a command reply.
const (
	statusOK              byte = 0x00
	statusInvalidPowerCap byte = 0x13
)

// Fixed offsets into the assembled response buffer.
const (
	replyStatusOffset = 2  // status byte within the first 8 reply bytes
	offDataLength     = 3  // 16-bit big-endian declared data length
	offHeader         = 5  // fixed-size poll header
	offSignature      = 37 // 6-byte ASCII "SENSOR"
	offBlockCount     = 43
	offFirstBlock     = 45
)

const (
	// MaxDataLength caps the declared response length; a single refresh
	// never consumes more than 4 KiB.
	MaxDataLength = 4096
	// MaxPayload is the longest command payload with a defined checksum
	// placement.
	MaxPayload = 2

	scomChunk        = 8 // bytes per data-register read
	blockPrologueLen = 8
)

var sensorSignature = []byte("SENSOR")
