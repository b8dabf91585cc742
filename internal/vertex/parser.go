package vertex

import (
	"encoding/binary"
	"fmt"
	"math"
)

// VTRK track-record packet format.
//
// Track producers ship reconstructed track parameters over UDP in VTRK
// packets. One packet carries up to MaxRecordsPerPacket records of a
// single event; large events span several packets and the producer sets
// the end-of-event flag on the last one.
//
// Layout (little-endian):
//
//	offset 0  magic      "VTRK" (4 bytes)
//	offset 4  version    uint8, currently 1
//	offset 5  flags      uint8, bit 0 = end of event
//	offset 6  count      uint16, number of records
//	offset 8  event id   uint64
//	offset 16 records    count × (z float32, ez2 float32)
const (
	packetMagic   = "VTRK"
	packetVersion = 1

	packetHeaderSize = 16
	recordSize       = 8

	// MaxRecordsPerPacket keeps a full packet inside a 1500-byte MTU.
	MaxRecordsPerPacket = 182

	flagEndOfEvent = 0x01
)

// TrackPacket is one decoded VTRK packet.
type TrackPacket struct {
	EventID    uint64
	EndOfEvent bool
	Z          []float32
	EZ2        []float32
}

// ParseTrackPacket decodes a VTRK packet payload. Malformed packets yield
// an error; callers on the network path log and drop rather than fail.
func ParseTrackPacket(payload []byte) (*TrackPacket, error) {
	if len(payload) < packetHeaderSize {
		return nil, fmt.Errorf("packet too short: %d bytes", len(payload))
	}
	if string(payload[0:4]) != packetMagic {
		return nil, fmt.Errorf("bad magic %q", payload[0:4])
	}
	if payload[4] != packetVersion {
		return nil, fmt.Errorf("unsupported version %d", payload[4])
	}
	flags := payload[5]
	count := int(binary.LittleEndian.Uint16(payload[6:8]))
	if count > MaxRecordsPerPacket {
		return nil, fmt.Errorf("record count %d exceeds packet bound %d", count, MaxRecordsPerPacket)
	}
	if want := packetHeaderSize + count*recordSize; len(payload) != want {
		return nil, fmt.Errorf("packet length %d does not match %d records", len(payload), count)
	}

	pkt := &TrackPacket{
		EventID:    binary.LittleEndian.Uint64(payload[8:16]),
		EndOfEvent: flags&flagEndOfEvent != 0,
		Z:          make([]float32, count),
		EZ2:        make([]float32, count),
	}
	for r := 0; r < count; r++ {
		base := packetHeaderSize + r*recordSize
		z := math.Float32frombits(binary.LittleEndian.Uint32(payload[base : base+4]))
		ez2 := math.Float32frombits(binary.LittleEndian.Uint32(payload[base+4 : base+8]))
		if ez2 < 0 || ez2 != ez2 {
			return nil, fmt.Errorf("record %d: invalid variance %v", r, ez2)
		}
		pkt.Z[r] = z
		pkt.EZ2[r] = ez2
	}
	return pkt, nil
}

// AppendTrackPacket encodes one VTRK packet onto dst and returns the
// extended slice. z and ez2 must be the same length and fit one packet.
func AppendTrackPacket(dst []byte, eventID uint64, endOfEvent bool, z, ez2 []float32) ([]byte, error) {
	if len(z) != len(ez2) {
		return nil, fmt.Errorf("mismatched record arrays: %d z, %d ez2", len(z), len(ez2))
	}
	if len(z) > MaxRecordsPerPacket {
		return nil, fmt.Errorf("%d records exceed packet bound %d", len(z), MaxRecordsPerPacket)
	}

	var flags byte
	if endOfEvent {
		flags |= flagEndOfEvent
	}
	dst = append(dst, packetMagic...)
	dst = append(dst, packetVersion, flags)
	dst = binary.LittleEndian.AppendUint16(dst, uint16(len(z)))
	dst = binary.LittleEndian.AppendUint64(dst, eventID)
	for r := range z {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(z[r]))
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(ez2[r]))
	}
	return dst, nil
}
