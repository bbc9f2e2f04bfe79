package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/relabs-tech/motion_computer/internal/gps"
)

// DecodeStream runs a captured receiver stream through dec and writes one
// line per record, as JSON when asJSON is set.
func DecodeStream(r io.Reader, dec gps.Decoder, out io.Writer, asJSON bool) (gps.Stats, error) {
	enc := json.NewEncoder(out)
	var werr error
	emit := func(rec gps.Record) {
		if werr != nil {
			return
		}
		if asJSON {
			werr = enc.Encode(rec)
			return
		}
		_, werr = fmt.Fprintln(out, formatRecord(rec))
	}

	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		gps.DecodeAll(dec, buf[:n], emit)
		if werr != nil {
			return dec.Stats(), werr
		}
		if errors.Is(err, io.EOF) {
			return dec.Stats(), nil
		}
		if err != nil {
			return dec.Stats(), err
		}
	}
}

func formatRecord(rec gps.Record) string {
	f := rec.Fix
	status := "NOFIX"
	if f.Valid {
		status = "FIX"
	}
	line := fmt.Sprintf("%-5s %s lat=%.7f lon=%.7f speed=%.2fkn heading=%.1f sats=%d",
		status, f.Time, f.Latitude, f.Longitude, f.SpeedKnots, f.HeadingDeg, f.Satellites)
	if rec.HasAccuracy {
		line += fmt.Sprintf(" hacc=%.1fm sacc=%.2fm/s type=%d",
			float64(rec.Accuracy.HorizontalMM)/1000, float64(rec.Accuracy.SpeedMMS)/1000, rec.Accuracy.FixType)
	}
	return line
}
