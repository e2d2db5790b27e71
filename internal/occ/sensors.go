package occ

// SensorKind identifies one of the four record shapes a sensor block can
// carry.
type SensorKind int

const (
	KindFrequency SensorKind = iota
	KindTemperature
	KindPower
	KindCaps
)

func (k SensorKind) String() string {
	switch k {
	case KindFrequency:
		return "frequency"
	case KindTemperature:
		return "temperature"
	case KindPower:
		return "power"
	case KindCaps:
		return "caps"
	}
	return "unknown"
}

// Block type tags as they appear on the wire: 4-byte ASCII, case-sensitive,
// not null-terminated.
const (
	TagFrequency   = "FREQ"
	TagTemperature = "TEMP"
	TagPower       = "POWR"
	TagCaps        = "CAPS"
)

func kindForTag(tag string) (SensorKind, bool) {
	switch tag {
	case TagFrequency:
		return KindFrequency, true
	case TagTemperature:
		return KindTemperature, true
	case TagPower:
		return KindPower, true
	case TagCaps:
		return KindCaps, true
	}
	return 0, false
}

// recordSize returns the number of decoded field bytes per record. The
// device-declared per-record length governs cursor advance during parsing;
// this is only the span the decoder actually reads.
func recordSize(k SensorKind) int {
	switch k {
	case KindPower:
		return 12
	case KindCaps:
		return 12
	default: // frequency, temperature
		return 4
	}
}

// FrequencySensor is one core-frequency reading.
type FrequencySensor struct {
	SensorID uint16 `json:"sensor_id"`
	Value    uint16 `json:"value"`
}

// TemperatureSensor is one temperature reading.
type TemperatureSensor struct {
	SensorID uint16 `json:"sensor_id"`
	Value    uint16 `json:"value"`
}

// PowerSensor is one power reading with its running accumulator.
type PowerSensor struct {
	SensorID    uint16 `json:"sensor_id"`
	UpdateTag   uint32 `json:"update_tag"`
	Accumulator uint32 `json:"accumulator"`
	Value       uint16 `json:"value"`
}

// CapsSensor is the power-capping state record.
type CapsSensor struct {
	CurrentCap     uint16 `json:"current_cap"`
	CurrentReading uint16 `json:"current_reading"`
	NormalCap      uint16 `json:"normal_cap"`
	MaxCap         uint16 `json:"max_cap"`
	MinCap         uint16 `json:"min_cap"`
	UserLimit      uint16 `json:"user_limit"`
}

// Header is the fixed-size record at the front of every poll response.
type Header struct {
	Status         byte   `json:"status"`
	ExtStatus      byte   `json:"ext_status"`
	OCCsPresent    byte   `json:"occs_present"`
	Config         byte   `json:"config"`
	State          byte   `json:"state"`
	ErrorLogID     byte   `json:"error_log_id"`
	ErrorLogAddr   uint32 `json:"error_log_addr"`
	ErrorLogLength uint16 `json:"error_log_length"`
	CodeLevel      string `json:"code_level"`
	BlockCount     byte   `json:"block_count"`
	Version        byte   `json:"version"`
}

// Block is one self-describing segment of the response: an 8-byte prologue
// followed by Count records of Stride bytes each. Exactly one of the record
// slices is populated, selected by Type.
type Block struct {
	Type   string `json:"type"`
	Format byte   `json:"format"`
	Stride byte   `json:"stride"` // device-declared per-record byte length
	Count  byte   `json:"count"`

	Freq  []FrequencySensor   `json:"freq,omitempty"`
	Temp  []TemperatureSensor `json:"temp,omitempty"`
	Power []PowerSensor       `json:"power,omitempty"`
	Caps  []CapsSensor        `json:"caps,omitempty"`
}

// NoBlock marks a sensor type with no block in the last successful parse.
const NoBlock = -1

// Snapshot is the fully decoded result of one successful refresh. The four
// indices locate each sensor type's block, or hold NoBlock when the type was
// absent.
type Snapshot struct {
	Header Header  `json:"header"`
	Blocks []Block `json:"blocks"`

	FreqBlock  int `json:"freq_block"`
	TempBlock  int `json:"temp_block"`
	PowerBlock int `json:"power_block"`
	CapsBlock  int `json:"caps_block"`
}

func newSnapshot() Snapshot {
	return Snapshot{
		FreqBlock:  NoBlock,
		TempBlock:  NoBlock,
		PowerBlock: NoBlock,
		CapsBlock:  NoBlock,
	}
}

func (s *Snapshot) kindIndex(k SensorKind) *int {
	switch k {
	case KindFrequency:
		return &s.FreqBlock
	case KindTemperature:
		return &s.TempBlock
	case KindPower:
		return &s.PowerBlock
	default:
		return &s.CapsBlock
	}
}

// Frequencies returns the frequency records, or false if no FREQ block was
// present in the last successful parse.
func (s *Snapshot) Frequencies() ([]FrequencySensor, bool) {
	if s.FreqBlock == NoBlock {
		return nil, false
	}
	return s.Blocks[s.FreqBlock].Freq, true
}

// Temperatures returns the temperature records, or false if absent.
func (s *Snapshot) Temperatures() ([]TemperatureSensor, bool) {
	if s.TempBlock == NoBlock {
		return nil, false
	}
	return s.Blocks[s.TempBlock].Temp, true
}

// PowerSensors returns the power records, or false if absent.
func (s *Snapshot) PowerSensors() ([]PowerSensor, bool) {
	if s.PowerBlock == NoBlock {
		return nil, false
	}
	return s.Blocks[s.PowerBlock].Power, true
}

// CapsSensors returns the power-capping records, or false if absent.
func (s *Snapshot) CapsSensors() ([]CapsSensor, bool) {
	if s.CapsBlock == NoBlock {
		return nil, false
	}
	return s.Blocks[s.CapsBlock].Caps, true
}

// renewRecords keeps an existing array when the record count is unchanged
// (contents are overwritten record-by-record by the parser) and replaces it
// with a zero-initialized one otherwise.
func renewRecords[T any](old []T, count int) []T {
	if old != nil && len(old) == count {
		return old
	}
	return make([]T, count)
}

// renew prepares storage for block's records ahead of decoding. A zero
// record count or stride retires the sensor type: its storage is released
// and its index left unset, which is not an error. A request that could
// never fit a response tears the whole snapshot down and reports
// ErrOutOfMemory.
func (s *Snapshot) renew(kind SensorKind, block int, stride, count byte) (retired bool, err error) {
	idx := s.kindIndex(kind)

	if count == 0 || stride == 0 {
		if *idx != NoBlock && *idx < len(s.Blocks) {
			s.Blocks[*idx].clearRecords(kind)
		}
		*idx = NoBlock
		return true, nil
	}

	if int(count)*int(stride) > MaxDataLength {
		s.teardown()
		return false, ErrOutOfMemory
	}

	// Carry the previous array for this type over to the new block
	// position so an unchanged count reuses it in place.
	var src *Block
	if *idx != NoBlock && *idx < len(s.Blocks) {
		src = &s.Blocks[*idx]
	}
	dst := &s.Blocks[block]

	switch kind {
	case KindFrequency:
		var old []FrequencySensor
		if src != nil {
			old, src.Freq = src.Freq, nil
		}
		dst.Freq = renewRecords(old, int(count))
	case KindTemperature:
		var old []TemperatureSensor
		if src != nil {
			old, src.Temp = src.Temp, nil
		}
		dst.Temp = renewRecords(old, int(count))
	case KindPower:
		var old []PowerSensor
		if src != nil {
			old, src.Power = src.Power, nil
		}
		dst.Power = renewRecords(old, int(count))
	case KindCaps:
		var old []CapsSensor
		if src != nil {
			old, src.Caps = src.Caps, nil
		}
		dst.Caps = renewRecords(old, int(count))
	}
	return false, nil
}

func (b *Block) clearRecords(kind SensorKind) {
	switch kind {
	case KindFrequency:
		b.Freq = nil
	case KindTemperature:
		b.Temp = nil
	case KindPower:
		b.Power = nil
	case KindCaps:
		b.Caps = nil
	}
}

// teardown releases every typed record array and the block list together and
// resets all indices to the sentinel. Used on any parse error and on
// shutdown, so no partially decoded state is ever observed.
func (s *Snapshot) teardown() {
	*s = newSnapshot()
}

// clone returns a deep copy safe for callers to retain while the original
// keeps being overwritten by later refreshes.
func (s *Snapshot) clone() Snapshot {
	out := *s
	if s.Blocks != nil {
		out.Blocks = make([]Block, len(s.Blocks))
		for i, b := range s.Blocks {
			nb := b
			nb.Freq = append([]FrequencySensor(nil), b.Freq...)
			nb.Temp = append([]TemperatureSensor(nil), b.Temp...)
			nb.Power = append([]PowerSensor(nil), b.Power...)
			nb.Caps = append([]CapsSensor(nil), b.Caps...)
			out.Blocks[i] = nb
		}
	}
	return out
}
