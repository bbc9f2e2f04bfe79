package gps

import (
	"encoding/binary"
	"fmt"
	"math"
)

// UBX framing.
const (
	UBXSync1 byte = 0xB5
	UBXSync2 byte = 0x62

	UBXClassNAV byte = 0x01
	UBXIDNavPVT byte = 0x07

	NavPVTLength = 92

	// DefaultMaxPayload is large enough for NAV-PVT and the other NAV
	// messages a receiver is usually configured to emit.
	DefaultMaxPayload = 256

	// mm/s to knots.
	mmsToKnots = 0.00194384
)

// UBXState is the position of the frame parser.
type UBXState int

const (
	UBXSeekSync1 UBXState = iota
	UBXSeekSync2
	UBXHeader // class, id, length
	UBXPayload
	UBXChecksum
)

func (s UBXState) String() string {
	switch s {
	case UBXSeekSync1:
		return "seek_sync1"
	case UBXSeekSync2:
		return "seek_sync2"
	case UBXHeader:
		return "header"
	case UBXPayload:
		return "payload"
	case UBXChecksum:
		return "checksum"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// UBXDecoder parses UBX frames:
//
//	B5 62 class id len_lo len_hi payload... ck_a ck_b
//
// The checksum pair is accumulated over class..payload as bytes arrive.
type UBXDecoder struct {
	state UBXState

	header  [4]byte
	nHeader int
	length  int
	payload []byte // cap is the maximum accepted payload
	ck      [2]byte
	nCk     int

	ckA, ckB byte

	stats Stats
}

// NewUBXDecoder creates a decoder whose working buffer holds maxPayload
// bytes. Frames declaring more are dropped.
func NewUBXDecoder(maxPayload int) *UBXDecoder {
	if maxPayload <= 0 {
		maxPayload = DefaultMaxPayload
	}
	return &UBXDecoder{payload: make([]byte, 0, maxPayload)}
}

// State returns the parser state.
func (d *UBXDecoder) State() UBXState { return d.state }

func (d *UBXDecoder) Stats() Stats { return d.stats }

// Reset returns the parser to UBXSeekSync1 and forgets the partial frame.
func (d *UBXDecoder) Reset() {
	d.state = UBXSeekSync1
	d.nHeader = 0
	d.length = 0
	d.payload = d.payload[:0]
	d.nCk = 0
	d.ckA, d.ckB = 0, 0
}

func (d *UBXDecoder) sum(b byte) {
	d.ckA += b
	d.ckB += d.ckA
}

func (d *UBXDecoder) Feed(b byte) (Record, bool) {
	switch d.state {
	case UBXSeekSync1:
		if b == UBXSync1 {
			d.state = UBXSeekSync2
		}

	case UBXSeekSync2:
		switch b {
		case UBXSync2:
			d.state = UBXHeader
		case UBXSync1:
			// B5 B5 62: stay ready for the second sync byte.
		default:
			d.state = UBXSeekSync1
		}

	case UBXHeader:
		d.header[d.nHeader] = b
		d.nHeader++
		d.sum(b)
		if d.nHeader < len(d.header) {
			break
		}
		d.length = int(binary.LittleEndian.Uint16(d.header[2:4]))
		if d.length > cap(d.payload) {
			d.stats.Overflows++
			d.Reset()
			break
		}
		if d.length == 0 {
			d.state = UBXChecksum
		} else {
			d.state = UBXPayload
		}

	case UBXPayload:
		d.payload = append(d.payload, b)
		d.sum(b)
		if len(d.payload) == d.length {
			d.state = UBXChecksum
		}

	case UBXChecksum:
		d.ck[d.nCk] = b
		d.nCk++
		if d.nCk < len(d.ck) {
			break
		}
		ok := d.ck[0] == d.ckA && d.ck[1] == d.ckB
		class, id := d.header[0], d.header[1]
		var rec Record
		var have bool
		if !ok {
			d.stats.ChecksumErrors++
		} else {
			rec, have = d.dispatch(class, id, d.payload)
		}
		d.Reset()
		return rec, have
	}
	return Record{}, false
}

func (d *UBXDecoder) dispatch(class, id byte, p []byte) (Record, bool) {
	if class == UBXClassNAV && id == UBXIDNavPVT && len(p) == NavPVTLength {
		d.stats.Records++
		return decodeNavPVT(p), true
	}
	d.stats.Ignored++
	return Record{}, false
}

// decodeNavPVT reads the fields of a 92-byte UBX-NAV-PVT payload.
func decodeNavPVT(p []byte) Record {
	le := binary.LittleEndian

	fixType := p[20]
	heading := float64(int32(le.Uint32(p[64:68]))) / 1e5
	heading = math.Mod(heading, 360)
	if heading < 0 {
		heading += 360
	}

	return Record{
		Fix: Fix{
			Valid:      fixType >= 2,
			Time:       fmt.Sprintf("%02d:%02d:%02d", p[8], p[9], p[10]),
			Satellites: int(p[23]),
			Longitude:  float64(int32(le.Uint32(p[24:28]))) / 1e7,
			Latitude:   float64(int32(le.Uint32(p[28:32]))) / 1e7,
			SpeedKnots: float64(le.Uint32(p[60:64])) * mmsToKnots,
			HeadingDeg: heading,
		},
		Accuracy: Accuracy{
			HorizontalMM: le.Uint32(p[40:44]),
			SpeedMMS:     le.Uint32(p[68:72]),
			FixType:      fixType,
		},
		HasAccuracy: true,
	}
}

// Checksum computes the UBX checksum pair over class..payload.
func Checksum(body []byte) (a, b byte) {
	for _, c := range body {
		a += c
		b += a
	}
	return a, b
}

// EncodeFrame builds a complete UBX frame around payload.
func EncodeFrame(class, id byte, payload []byte) []byte {
	frame := make([]byte, 0, 8+len(payload))
	frame = append(frame, UBXSync1, UBXSync2, class, id)
	frame = binary.LittleEndian.AppendUint16(frame, uint16(len(payload)))
	frame = append(frame, payload...)
	a, b := Checksum(frame[2:])
	return append(frame, a, b)
}
