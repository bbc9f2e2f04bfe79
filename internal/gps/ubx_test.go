package gps

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// navPVTPayload returns a NAV-PVT payload for 12:34:56, 3D fix, 9 SVs at
// 48.1173N 11.5W, 5144 mm/s heading -90 deg.
func navPVTPayload() []byte {
	p := make([]byte, NavPVTLength)
	le := binary.LittleEndian
	p[8], p[9], p[10] = 12, 34, 56
	p[20] = 3
	p[23] = 9
	lon, heading := int32(-115000000), int32(-9000000)
	le.PutUint32(p[24:], uint32(lon))
	le.PutUint32(p[28:], uint32(int32(481173000)))
	le.PutUint32(p[40:], 2500)
	le.PutUint32(p[60:], 5144)
	le.PutUint32(p[64:], uint32(heading))
	le.PutUint32(p[68:], 300)
	return p
}

func feedAll(d Decoder, data []byte) []Record {
	var out []Record
	DecodeAll(d, data, func(r Record) { out = append(out, r) })
	return out
}

func TestUBXNavPVT(t *testing.T) {
	d := NewUBXDecoder(0)
	frame := EncodeFrame(UBXClassNAV, UBXIDNavPVT, navPVTPayload())

	recs := feedAll(d, frame)
	require.Len(t, recs, 1)
	r := recs[0]

	assert.True(t, r.Fix.Valid)
	assert.Equal(t, "12:34:56", r.Fix.Time)
	assert.Equal(t, 9, r.Fix.Satellites)
	assert.InDelta(t, 48.1173, r.Fix.Latitude, 1e-9)
	assert.InDelta(t, -11.5, r.Fix.Longitude, 1e-9)
	assert.InDelta(t, 9.9991, r.Fix.SpeedKnots, 1e-4)
	assert.InDelta(t, 270.0, r.Fix.HeadingDeg, 1e-9)

	require.True(t, r.HasAccuracy)
	assert.EqualValues(t, 2500, r.Accuracy.HorizontalMM)
	assert.EqualValues(t, 300, r.Accuracy.SpeedMMS)
	assert.EqualValues(t, 3, r.Accuracy.FixType)

	assert.Equal(t, UBXSeekSync1, d.State())
	assert.EqualValues(t, 1, d.Stats().Records)
}

func TestUBXFixTypeValidity(t *testing.T) {
	for fixType, valid := range map[byte]bool{0: false, 1: false, 2: true, 3: true, 4: true} {
		p := navPVTPayload()
		p[20] = fixType
		recs := feedAll(NewUBXDecoder(0), EncodeFrame(UBXClassNAV, UBXIDNavPVT, p))
		require.Len(t, recs, 1)
		assert.Equal(t, valid, recs[0].Fix.Valid, "fixType %d", fixType)
	}
}

func TestUBXHeadingNormalized(t *testing.T) {
	for raw, want := range map[int32]float64{
		0:          0,
		-9000000:   270,
		36000000:   0,
		45000000:   90,
		-72000000:  0,
		17999999:   179.99999,
	} {
		p := navPVTPayload()
		binary.LittleEndian.PutUint32(p[64:], uint32(raw))
		recs := feedAll(NewUBXDecoder(0), EncodeFrame(UBXClassNAV, UBXIDNavPVT, p))
		require.Len(t, recs, 1)
		assert.InDelta(t, want, recs[0].Fix.HeadingDeg, 1e-6, "raw %d", raw)
	}
}

func TestUBXSingleBitFlipRejected(t *testing.T) {
	frame := EncodeFrame(UBXClassNAV, UBXIDNavPVT, navPVTPayload())
	filler := make([]byte, 300)

	for i := range frame {
		for bit := 0; bit < 8; bit++ {
			corrupt := append([]byte(nil), frame...)
			corrupt[i] ^= 1 << bit

			d := NewUBXDecoder(0)
			recs := feedAll(d, append(corrupt, filler...))
			assert.Empty(t, recs, "byte %d bit %d", i, bit)
			assert.Equal(t, UBXSeekSync1, d.State(), "byte %d bit %d", i, bit)
		}
	}
}

func TestUBXResyncAfterGarbage(t *testing.T) {
	frame := EncodeFrame(UBXClassNAV, UBXIDNavPVT, navPVTPayload())
	stream := []byte{0x00, 0xB5, 0x00, 0xB5, 0xB5}
	stream = append(stream, frame[1:]...) // B5 B5 B5 62 ... still syncs
	stream = append(stream, 0x13, 0x37)
	stream = append(stream, frame...)

	d := NewUBXDecoder(0)
	recs := feedAll(d, stream)
	assert.Len(t, recs, 2)
}

func TestUBXChecksumMismatchCounted(t *testing.T) {
	frame := EncodeFrame(UBXClassNAV, UBXIDNavPVT, navPVTPayload())
	frame[len(frame)-1] ^= 0xFF

	d := NewUBXDecoder(0)
	assert.Empty(t, feedAll(d, frame))
	assert.EqualValues(t, 1, d.Stats().ChecksumErrors)
	assert.Equal(t, UBXSeekSync1, d.State())
}

func TestUBXOversizedFrameResets(t *testing.T) {
	d := NewUBXDecoder(64)
	frame := EncodeFrame(UBXClassNAV, UBXIDNavPVT, navPVTPayload())

	// Stop right after the length field.
	for _, b := range frame[:6] {
		_, ok := d.Feed(b)
		require.False(t, ok)
	}
	assert.Equal(t, UBXSeekSync1, d.State())
	assert.EqualValues(t, 1, d.Stats().Overflows)

	// A frame that fits is still decoded afterwards.
	small := EncodeFrame(0x01, 0x02, make([]byte, 28))
	assert.Empty(t, feedAll(d, small))
	assert.EqualValues(t, 1, d.Stats().Ignored)
}

func TestUBXUnknownAndWrongLength(t *testing.T) {
	d := NewUBXDecoder(0)

	assert.Empty(t, feedAll(d, EncodeFrame(0x0A, 0x04, []byte{1, 2, 3})))
	assert.Empty(t, feedAll(d, EncodeFrame(UBXClassNAV, UBXIDNavPVT, make([]byte, 84))))
	assert.Empty(t, feedAll(d, EncodeFrame(0x05, 0x01, nil)))
	assert.EqualValues(t, 3, d.Stats().Ignored)

	recs := feedAll(d, EncodeFrame(UBXClassNAV, UBXIDNavPVT, navPVTPayload()))
	assert.Len(t, recs, 1)
}

func TestUBXSplitAcrossReads(t *testing.T) {
	frame := EncodeFrame(UBXClassNAV, UBXIDNavPVT, navPVTPayload())
	d := NewUBXDecoder(0)

	var recs []Record
	for _, chunk := range [][]byte{frame[:3], frame[3:50], frame[50:99], frame[99:]} {
		recs = append(recs, feedAll(d, chunk)...)
	}
	assert.Len(t, recs, 1)
}

func TestChecksumKnownValue(t *testing.T) {
	// CFG-MSG poll, a commonly documented frame: B5 62 06 01 02 00 01 07 11 3A
	a, b := Checksum([]byte{0x06, 0x01, 0x02, 0x00, 0x01, 0x07})
	assert.Equal(t, byte(0x11), a)
	assert.Equal(t, byte(0x3A), b)
}
