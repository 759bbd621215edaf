package linak

import (
	"encoding/binary"
)

// GATT characteristic UUIDs for the Linak DPG controller (IKEA Idåsen and
// compatible desks). Protocol reverse-engineered by the community:
// https://github.com/anson-vandoren/linak-desk-spec
const (
	// ServiceControl is the primary control service; its presence in an
	// advertisement is a strong hint the device is a Linak desk.
	ServiceControl = "99fa0001-338a-1024-8a49-009c0215f78a"

	// CharCommand accepts 2-byte command opcodes (write-only).
	CharCommand = "99fa0002-338a-1024-8a49-009c0215f78a"

	// CharHeight reports the telemetry frame (read + notify).
	CharHeight = "99fa0021-338a-1024-8a49-009c0215f78a"
)

// memoryChars maps preset slots 1-4 to their characteristic. Reading one
// triggers autonomous movement to the stored position; writing any byte
// commits the current position.
var memoryChars = map[int]string{
	1: "99fa0031-338a-1024-8a49-009c0215f78a",
	2: "99fa0032-338a-1024-8a49-009c0215f78a",
	3: "99fa0033-338a-1024-8a49-009c0215f78a",
	4: "99fa0034-338a-1024-8a49-009c0215f78a",
}

// Command opcodes. These are a vendor contract and must stay bit-for-bit
// identical for hardware compatibility.
var (
	CmdUp   = []byte{0x47, 0x00}
	CmdDown = []byte{0x46, 0x00}
	CmdStop = []byte{0xFF, 0x00}
	CmdWake = []byte{0xFE, 0x00}
)

// Physical range of the actuator in millimeters. BaseHeightMM is the
// column's minimum extension; raw telemetry is relative to it.
const (
	BaseHeightMM = 620
	MinHeightMM  = 620
	MaxHeightMM  = 1270
)

// NumPresets is the number of hardware memory slots.
const NumPresets = 4

// MemoryChar returns the characteristic UUID for a preset slot (1-4).
func MemoryChar(slot int) (string, bool) {
	c, ok := memoryChars[slot]
	return c, ok
}

// RawToMM converts raw telemetry units to millimeters (includes base offset).
func RawToMM(raw uint16) int {
	return int(raw)/10 + BaseHeightMM
}

// MMToRaw is the inverse of RawToMM, used by the simulated transport to
// build telemetry frames.
func MMToRaw(mm int) uint16 {
	return uint16((mm - BaseHeightMM) * 10)
}

// DecodeTelemetry parses a telemetry frame: u16 LE raw height followed by
// i16 LE velocity. Frames shorter than 4 bytes decode to (0, 0); spurious
// short notifications can occur during link setup and must not be fatal.
func DecodeTelemetry(data []byte) (heightMM int, velocity int16) {
	if len(data) < 4 {
		return 0, 0
	}
	raw := binary.LittleEndian.Uint16(data[0:2])
	velocity = int16(binary.LittleEndian.Uint16(data[2:4]))
	return RawToMM(raw), velocity
}

// EncodeTelemetry builds a telemetry frame from a height and velocity.
// Used by the simulated transport and tests; the real desk only ever
// produces frames, it never consumes them.
func EncodeTelemetry(heightMM int, velocity int16) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint16(buf[0:2], MMToRaw(heightMM))
	binary.LittleEndian.PutUint16(buf[2:4], uint16(velocity))
	return buf
}

// ClampHeight limits a target height to the physical range of the column.
func ClampHeight(mm int) int {
	if mm < MinHeightMM {
		return MinHeightMM
	}
	if mm > MaxHeightMM {
		return MaxHeightMM
	}
	return mm
}

// MMToInches converts millimeters to inches.
func MMToInches(mm int) float64 {
	return float64(mm) / 25.4
}

// InchesToMM converts inches to millimeters, truncated to whole mm.
func InchesToMM(inches float64) int {
	return int(inches * 25.4)
}
