// SPDX-License-Identifier: MIT
package udp

import (
	"encoding/binary"
	"errors"
	"math"
	"time"
)

/*
UDP Packet Structure (BigEndian)

+-----------------------------------------------------------------------------+
| Field             | Data Type      | Size (Bytes) | Description             |
|-------------------|----------------|--------------|-------------------------|
| Sequence Number   | uint32         | 4            | Monotonically increasing|
| Timestamp         | int64          | 8            | Nanoseconds since epoch |
| Fundamental       | uint32         | 4            | Hz, 0 when none         |
| Peak Volume       | uint16         | 2            | 0-32768                 |
| Flags             | uint8          | 1            | bit 0: gated            |
| MIDI Note         | int8           | 1            | -1 when none            |
| Cents             | float32        | 4            | Offset from MIDI note   |
+-----------------------------------------------------------------------------+
*/

// PacketSize is the size of an encoded result packet in bytes.
const PacketSize = 24

const flagGated = 1 << 0

// ErrShortPacket is returned when decoding fewer than PacketSize bytes.
var ErrShortPacket = errors.New("udp: short packet")

// Packet is the wire form of one analysis result.
type Packet struct {
	Sequence      uint32
	Timestamp     time.Time
	FundamentalHz uint32
	PeakVolume    uint16
	Gated         bool
	MIDI          int8
	Cents         float32
}

// AppendBinary appends the encoded packet to b.
func (p Packet) AppendBinary(b []byte) ([]byte, error) {
	var flags uint8
	if p.Gated {
		flags |= flagGated
	}
	b = binary.BigEndian.AppendUint32(b, p.Sequence)
	b = binary.BigEndian.AppendUint64(b, uint64(p.Timestamp.UnixNano()))
	b = binary.BigEndian.AppendUint32(b, p.FundamentalHz)
	b = binary.BigEndian.AppendUint16(b, p.PeakVolume)
	b = append(b, flags, byte(p.MIDI))
	b = binary.BigEndian.AppendUint32(b, math.Float32bits(p.Cents))
	return b, nil
}

// UnmarshalBinary decodes a packet produced by AppendBinary.
func (p *Packet) UnmarshalBinary(b []byte) error {
	if len(b) < PacketSize {
		return ErrShortPacket
	}
	p.Sequence = binary.BigEndian.Uint32(b[0:])
	p.Timestamp = time.Unix(0, int64(binary.BigEndian.Uint64(b[4:])))
	p.FundamentalHz = binary.BigEndian.Uint32(b[12:])
	p.PeakVolume = binary.BigEndian.Uint16(b[16:])
	p.Gated = b[18]&flagGated != 0
	p.MIDI = int8(b[19])
	p.Cents = math.Float32frombits(binary.BigEndian.Uint32(b[20:]))
	return nil
}
