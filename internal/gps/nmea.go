package gps

import (
	"math"
	"strconv"
	"strings"

	nmea "github.com/adrianmo/go-nmea"
)

// DefaultMaxLine fits the 82-character NMEA 0183 limit with room to spare.
const DefaultMaxLine = 128

type sentenceKind int

const (
	sentenceOther sentenceKind = iota
	sentenceRMC                // position and velocity
	sentenceGGA                // fix quality, satellites in use
)

var sentencePrefixes = map[string]sentenceKind{
	"$GPRMC": sentenceRMC,
	"$GNRMC": sentenceRMC,
	"$GPGGA": sentenceGGA,
	"$GNGGA": sentenceGGA,
}

// NMEADecoder splits the stream into lines and decodes RMC and GGA
// sentences. A record is emitted per RMC; GGA only refreshes the satellite
// count carried by later records.
type NMEADecoder struct {
	line           []byte // cap is the line limit
	verifyChecksum bool
	satellites     int
	stats          Stats
}

// NewNMEADecoder creates a decoder with a maxLine byte line buffer.
func NewNMEADecoder(maxLine int, verifyChecksum bool) *NMEADecoder {
	if maxLine <= 0 {
		maxLine = DefaultMaxLine
	}
	return &NMEADecoder{line: make([]byte, 0, maxLine), verifyChecksum: verifyChecksum}
}

func (d *NMEADecoder) Stats() Stats { return d.stats }

// Reset drops the partial line. The last satellite count is kept.
func (d *NMEADecoder) Reset() {
	d.line = d.line[:0]
}

func (d *NMEADecoder) Feed(b byte) (Record, bool) {
	if b == '\r' || b == '\n' {
		if len(d.line) == 0 {
			return Record{}, false
		}
		rec, ok := d.parseLine(string(d.line))
		d.line = d.line[:0]
		return rec, ok
	}
	if len(d.line) == cap(d.line) {
		// Unterminated garbage; start over.
		d.stats.Overflows++
		d.line = d.line[:0]
	}
	d.line = append(d.line, b)
	return Record{}, false
}

func (d *NMEADecoder) parseLine(line string) (Record, bool) {
	if len(line) < 6 {
		d.stats.Ignored++
		return Record{}, false
	}
	kind := sentencePrefixes[line[:6]]
	if kind == sentenceOther {
		d.stats.Ignored++
		return Record{}, false
	}

	body, ok := d.stripChecksum(line)
	if !ok {
		d.stats.ChecksumErrors++
		return Record{}, false
	}
	fields := strings.Split(body, ",")

	switch kind {
	case sentenceGGA:
		// $GPGGA,time,lat,N,lon,E,quality,numSV,hdop,alt,M,...
		if len(fields) > 7 {
			if n, err := strconv.Atoi(fields[7]); err == nil {
				d.satellites = n
			}
		}
		return Record{}, false

	case sentenceRMC:
		// $GPRMC,time,status,lat,N,lon,E,speed,course,date,...
		if len(fields) < 9 {
			d.stats.Ignored++
			return Record{}, false
		}
		fix := Fix{
			Time:       formatNMEATime(fields[1]),
			Valid:      fields[2] == "A",
			Latitude:   d.coordinate(fields[3], fields[4]),
			Longitude:  d.coordinate(fields[5], fields[6]),
			SpeedKnots: parseFloatOrZero(fields[7]),
			HeadingDeg: parseFloatOrZero(fields[8]),
			Satellites: d.satellites,
		}
		d.stats.Records++
		return Record{Fix: fix}, true
	}
	return Record{}, false
}

// stripChecksum removes the leading '$' and any "*hh" suffix, verifying the
// suffix when configured to.
func (d *NMEADecoder) stripChecksum(line string) (string, bool) {
	star := strings.LastIndexByte(line, '*')
	if star < 0 {
		return line, !d.verifyChecksum
	}
	body := line[:star]
	if d.verifyChecksum {
		want := strings.ToUpper(strings.TrimSpace(line[star+1:]))
		if nmea.Checksum(body[1:]) != want {
			return "", false
		}
	}
	return body, true
}

func (d *NMEADecoder) coordinate(value, hemi string) float64 {
	v, ok := nmeaToDecimal(value, hemi)
	if !ok && value != "" {
		d.stats.CoercedCoordinates++
	}
	return v
}

// NMEAToDecimal converts a ddmm.mmmm (or dddmm.mmmm) token and its
// hemisphere letter to signed decimal degrees. Malformed or out-of-range
// input yields 0.
func NMEAToDecimal(value, hemi string) float64 {
	v, _ := nmeaToDecimal(value, hemi)
	return v
}

func nmeaToDecimal(value, hemi string) (float64, bool) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil || !(v >= 0 && v <= 18000) {
		return 0, false
	}
	deg := math.Floor(v / 100)
	minutes := v - deg*100
	if minutes >= 60 {
		return 0, false
	}
	out := deg + minutes/60
	if hemi == "S" || hemi == "W" {
		out = -out
	}
	return out, true
}

func formatNMEATime(s string) string {
	if len(s) < 6 {
		return s
	}
	return s[0:2] + ":" + s[2:4] + ":" + s[4:6]
}

func parseFloatOrZero(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
