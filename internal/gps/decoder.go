package gps

import (
	"fmt"
	"strings"
)

// Decoder turns a receiver byte stream into records, one byte at a time. It
// does no I/O and keeps all state in itself, so canned byte sequences can
// drive it directly.
type Decoder interface {
	// Feed consumes one byte and returns a record when that byte completes a
	// valid, recognized message.
	Feed(b byte) (Record, bool)
	// Reset drops any partial message.
	Reset()
	// Stats returns the decoder counters.
	Stats() Stats
}

// Stats counts what a decoder has seen. Framing errors are otherwise silent.
type Stats struct {
	Records            uint64 `json:"records"`
	ChecksumErrors     uint64 `json:"checksum_errors"`
	Overflows          uint64 `json:"overflows"`
	Ignored            uint64 `json:"ignored"`
	CoercedCoordinates uint64 `json:"coerced_coordinates"`
}

// Protocol names a receiver grammar.
type Protocol string

const (
	ProtocolUBX  Protocol = "ubx"
	ProtocolNMEA Protocol = "nmea"
)

// Options configure NewDecoder.
type Options struct {
	// MaxPayload bounds the UBX working buffer. Zero means DefaultMaxPayload.
	MaxPayload int
	// MaxLine bounds the NMEA line buffer. Zero means DefaultMaxLine.
	MaxLine int
	// VerifyChecksum makes the NMEA decoder drop sentences whose *hh suffix
	// is missing or wrong.
	VerifyChecksum bool
}

// NewDecoder returns a decoder for the named protocol.
func NewDecoder(p Protocol, opts Options) (Decoder, error) {
	switch Protocol(strings.ToLower(string(p))) {
	case ProtocolUBX:
		return NewUBXDecoder(opts.MaxPayload), nil
	case ProtocolNMEA:
		return NewNMEADecoder(opts.MaxLine, opts.VerifyChecksum), nil
	default:
		return nil, fmt.Errorf("gps: unknown protocol %q", p)
	}
}

// DecodeAll feeds every byte of p to d and calls emit for each record.
func DecodeAll(d Decoder, p []byte, emit func(Record)) int {
	n := 0
	for _, b := range p {
		if rec, ok := d.Feed(b); ok {
			n++
			if emit != nil {
				emit(rec)
			}
		}
	}
	return n
}
