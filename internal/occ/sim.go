package occ

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
)

// Device status bytes the simulator hands back for bad commands.
const (
	simStatusBadCommand  byte = 0x11
	simStatusBadChecksum byte = 0x12
)

// SensorSet is the sensor population a Simulator reports.
type SensorSet struct {
	Freq  []FrequencySensor
	Temp  []TemperatureSensor
	Power []PowerSensor
	Caps  []CapsSensor
}

// Simulator emulates the controller end of the bus: it decodes the SCOM
// write protocol, tracks the OCB address register, executes poll and
// power-cap commands, and serves the response buffer back through the data
// register. It backs `occd --mock` and the protocol tests, with the same
// kind of fault injection the hardware mock in a real rig would offer.
type Simulator struct {
	mu  sync.Mutex
	set SensorSet

	capMin, capMax uint16

	resp    []byte // response buffer as the host will assemble it
	bufAddr uint32 // OCB address register
	readReg uint32 // register addressed by the last 4-byte write
	cursor  int    // read offset into resp

	writes     []uint32 // register numbers in putSCOM order
	pollStatus byte

	failSend, failRecv   bool
	shortSend, shortRecv bool
}

// NewSimulator creates a simulator with a plausible default population:
// four cores' frequency and temperature, two power rails, one caps record.
func NewSimulator() *Simulator {
	return &Simulator{
		set: SensorSet{
			Freq: []FrequencySensor{
				{SensorID: 0x20, Value: 3524}, {SensorID: 0x21, Value: 3524},
				{SensorID: 0x22, Value: 3491}, {SensorID: 0x23, Value: 3524},
			},
			Temp: []TemperatureSensor{
				{SensorID: 0x40, Value: 41}, {SensorID: 0x41, Value: 43},
				{SensorID: 0x42, Value: 40}, {SensorID: 0x43, Value: 44},
			},
			Power: []PowerSensor{
				{SensorID: 0x60, UpdateTag: 1, Accumulator: 128400, Value: 212},
				{SensorID: 0x61, UpdateTag: 1, Accumulator: 96200, Value: 158},
			},
			Caps: []CapsSensor{
				{CurrentCap: 1000, CurrentReading: 370, NormalCap: 1000,
					MaxCap: 1200, MinCap: 400, UserLimit: 0},
			},
		},
		capMin: 400,
		capMax: 1200,
	}
}

// SetSensors replaces the reported sensor population; the next poll serves
// it.
func (m *Simulator) SetSensors(set SensorSet) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.set = set
}

// SetPollStatus makes subsequent poll commands answer with the given status
// byte; zero restores normal behavior.
func (m *Simulator) SetPollStatus(status byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pollStatus = status
}

// SetFailSend configures every Send to fail outright.
func (m *Simulator) SetFailSend(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failSend = fail
}

// SetFailRecv configures every Recv to fail outright.
func (m *Simulator) SetFailRecv(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failRecv = fail
}

// SetShortSend configures Send to transfer one byte fewer than asked.
func (m *Simulator) SetShortSend(short bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shortSend = short
}

// SetShortRecv configures Recv to transfer one byte fewer than asked.
func (m *Simulator) SetShortRecv(short bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shortRecv = short
}

// Writes returns the register numbers written so far, in order.
func (m *Simulator) Writes() []uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]uint32, len(m.writes))
	copy(out, m.writes)
	return out
}

// ResetWrites clears the register write log.
func (m *Simulator) ResetWrites() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes = nil
}

func (m *Simulator) Send(ctx context.Context, p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSend {
		return 0, fmt.Errorf("sim: send failure configured")
	}
	if m.shortSend {
		return len(p) - 1, nil
	}

	switch len(p) {
	case 12:
		reg := binary.BigEndian.Uint32(p[0:4]) >> 1
		low := binary.BigEndian.Uint32(p[4:8])
		high := binary.BigEndian.Uint32(p[8:12])
		m.writes = append(m.writes, reg)
		switch reg {
		case RegOCBAddress:
			m.bufAddr = high
			if high == ResponseAddr {
				m.cursor = 0
			}
		case RegOCBData:
			if m.bufAddr == CommandAddr {
				m.execCommand(high, low)
			}
		case RegAttention, RegOCBControlAnd, RegOCBControlOr:
			// control traffic, no state to track
		}
		return 12, nil
	case 4:
		// read-address write
		m.readReg = binary.BigEndian.Uint32(p) >> 1
		return 4, nil
	default:
		return 0, fmt.Errorf("sim: unexpected %d-byte write", len(p))
	}
}

func (m *Simulator) Recv(ctx context.Context, p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failRecv {
		return 0, fmt.Errorf("sim: recv failure configured")
	}

	for i := range p {
		p[i] = 0
	}
	if m.readReg == RegOCBData && m.bufAddr == ResponseAddr && len(p) == scomChunk {
		var chunk [scomChunk]byte
		if m.cursor < len(m.resp) {
			copy(chunk[:], m.resp[m.cursor:])
		}
		// The host flips each 8-byte register read; serve the chunk
		// pre-reversed so it assembles in order.
		for i := 0; i < scomChunk; i++ {
			p[i] = chunk[scomChunk-1-i]
		}
		m.cursor += scomChunk
	}

	if m.shortRecv {
		return len(p) - 1, nil
	}
	return len(p), nil
}

func (m *Simulator) Close() error { return nil }

// execCommand decodes and executes the command frame written to the command
// buffer. Word layout matches encodeCommand.
func (m *Simulator) execCommand(word1, word2 uint32) {
	var frame [8]byte
	binary.BigEndian.PutUint32(frame[0:4], word1)
	binary.BigEndian.PutUint32(frame[4:8], word2)

	seq := frame[0]
	cmdType := frame[1]
	length := int(binary.LittleEndian.Uint16(frame[2:4]))
	if length > MaxPayload {
		m.resp = statusReply(seq, cmdType, simStatusBadCommand)
		return
	}

	// Pull the checksum out, zero its bytes and re-sum the frame.
	csPos := 4 + length
	got := binary.BigEndian.Uint16(frame[csPos:])
	frame[csPos], frame[csPos+1] = 0, 0
	var sum uint16
	for _, b := range frame {
		sum += uint16(b)
	}
	if got != sum {
		m.resp = statusReply(seq, cmdType, simStatusBadChecksum)
		return
	}
	payload := frame[4 : 4+length]

	switch cmdType {
	case CmdPoll:
		if m.pollStatus != statusOK {
			m.resp = statusReply(seq, cmdType, m.pollStatus)
			return
		}
		m.resp = buildPollResponse(seq, m.set)
	case CmdSetUserPowerCap:
		if len(payload) != 2 {
			m.resp = statusReply(seq, cmdType, simStatusBadCommand)
			return
		}
		val := binary.LittleEndian.Uint16(payload)
		if val != 0 && (val < m.capMin || val > m.capMax) {
			m.resp = statusReply(seq, cmdType, statusInvalidPowerCap)
			return
		}
		for i := range m.set.Caps {
			m.set.Caps[i].UserLimit = val
			if val != 0 {
				m.set.Caps[i].CurrentCap = val
			} else {
				m.set.Caps[i].CurrentCap = m.set.Caps[i].NormalCap
			}
		}
		m.resp = statusReply(seq, cmdType, statusOK)
	default:
		m.resp = statusReply(seq, cmdType, simStatusBadCommand)
	}
}

// statusReply is the minimal 8-byte reply carrying only a status byte.
func statusReply(seq, cmdType, status byte) []byte {
	return []byte{seq, cmdType, status, 0, 0, 0, 0, 0}
}

// buildPollResponse assembles a full poll response buffer: reply prologue,
// fixed header with the SENSOR signature, then one self-describing block per
// populated sensor type.
func buildPollResponse(seq byte, set SensorSet) []byte {
	buf := make([]byte, offFirstBlock)
	buf[0] = seq
	buf[1] = CmdPoll
	buf[2] = statusOK
	buf[offHeader+2] = 0x01 // one controller present
	buf[offHeader+4] = 0x03 // active state
	copy(buf[offHeader+16:offHeader+32], "occmon-sim")
	copy(buf[offSignature:], sensorSignature)

	var nblocks byte
	var scratch [4]byte

	if len(set.Freq) > 0 {
		buf = appendPrologue(buf, TagFrequency, 4, byte(len(set.Freq)))
		for _, r := range set.Freq {
			binary.BigEndian.PutUint16(scratch[0:2], r.SensorID)
			binary.BigEndian.PutUint16(scratch[2:4], r.Value)
			buf = append(buf, scratch[:4]...)
		}
		nblocks++
	}
	if len(set.Temp) > 0 {
		buf = appendPrologue(buf, TagTemperature, 4, byte(len(set.Temp)))
		for _, r := range set.Temp {
			binary.BigEndian.PutUint16(scratch[0:2], r.SensorID)
			binary.BigEndian.PutUint16(scratch[2:4], r.Value)
			buf = append(buf, scratch[:4]...)
		}
		nblocks++
	}
	if len(set.Power) > 0 {
		buf = appendPrologue(buf, TagPower, 12, byte(len(set.Power)))
		for _, r := range set.Power {
			binary.BigEndian.PutUint16(scratch[0:2], r.SensorID)
			buf = append(buf, scratch[:2]...)
			binary.BigEndian.PutUint32(scratch[0:4], r.UpdateTag)
			buf = append(buf, scratch[:4]...)
			binary.BigEndian.PutUint32(scratch[0:4], r.Accumulator)
			buf = append(buf, scratch[:4]...)
			binary.BigEndian.PutUint16(scratch[0:2], r.Value)
			buf = append(buf, scratch[:2]...)
		}
		nblocks++
	}
	if len(set.Caps) > 0 {
		buf = appendPrologue(buf, TagCaps, 12, byte(len(set.Caps)))
		for _, r := range set.Caps {
			for _, v := range []uint16{r.CurrentCap, r.CurrentReading,
				r.NormalCap, r.MaxCap, r.MinCap, r.UserLimit} {
				binary.BigEndian.PutUint16(scratch[0:2], v)
				buf = append(buf, scratch[:2]...)
			}
		}
		nblocks++
	}

	buf[offBlockCount] = nblocks
	buf[offBlockCount+1] = 1 // block format version
	binary.BigEndian.PutUint16(buf[offDataLength:], uint16(len(buf)-scomChunk))
	return buf
}

func appendPrologue(buf []byte, tag string, stride, count byte) []byte {
	buf = append(buf, tag...)
	return append(buf, 0, 1, stride, count) // reserved, format, stride, count
}
