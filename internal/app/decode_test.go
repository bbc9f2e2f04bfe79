package app

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/motion_computer/internal/gps"
)

func navPVTFrame(fixType byte) []byte {
	payload := make([]byte, gps.NavPVTLength)
	payload[8], payload[9], payload[10] = 12, 34, 56
	payload[20] = fixType
	payload[23] = 7
	return gps.EncodeFrame(gps.UBXClassNAV, gps.UBXIDNavPVT, payload)
}

func TestDecodeStreamText(t *testing.T) {
	var in bytes.Buffer
	in.Write(navPVTFrame(3))
	in.WriteString("noise")
	in.Write(navPVTFrame(0))

	var out bytes.Buffer
	st, err := DecodeStream(&in, gps.NewUBXDecoder(0), &out, false)
	require.NoError(t, err)
	assert.EqualValues(t, 2, st.Records)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "FIX   12:34:56"))
	assert.Contains(t, lines[0], "sats=7")
	assert.Contains(t, lines[0], "type=3")
	assert.True(t, strings.HasPrefix(lines[1], "NOFIX"))
}

func TestDecodeStreamJSON(t *testing.T) {
	var out bytes.Buffer
	_, err := DecodeStream(bytes.NewReader(navPVTFrame(3)), gps.NewUBXDecoder(0), &out, true)
	require.NoError(t, err)

	var rec gps.Record
	require.NoError(t, json.Unmarshal(out.Bytes(), &rec))
	assert.True(t, rec.Fix.Valid)
	assert.Equal(t, byte(3), rec.Accuracy.FixType)
}

func TestBench(t *testing.T) {
	results := Bench(1000)
	require.Len(t, results, 4)
	for _, r := range results {
		assert.Equal(t, 1000, r.Ops, r.Name)
	}
	var out bytes.Buffer
	WriteBench(&out, results)
	assert.Contains(t, out.String(), "ubx nav-pvt decode")
	assert.Contains(t, out.String(), "1,000")
}
