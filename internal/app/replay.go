package app

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// ReplaySource plays a captured receiver stream back at line rate, looping
// at the end. It stands in for the serial port when no receiver is attached.
type ReplaySource struct {
	mu          sync.Mutex
	data        []byte
	pos         int
	bytesPerSec int
	start       time.Time
	consumed    int64
	now         func() time.Time
}

// NewReplaySource replays data as a UART at baud would deliver it (8N1).
func NewReplaySource(data []byte, baud uint) *ReplaySource {
	r := &ReplaySource{data: data, bytesPerSec: int(baud / 10), now: time.Now}
	r.start = r.now()
	return r
}

// OpenReplayFile loads path into a ReplaySource.
func OpenReplayFile(path string, baud uint) (*ReplaySource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("replay: %s is empty", path)
	}
	return NewReplaySource(data, baud), nil
}

// Read returns the bytes that would have arrived since the previous call,
// at most len(p). It returns 0, nil when nothing is due.
func (r *ReplaySource) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.data) == 0 {
		return 0, nil
	}

	due := int64(r.now().Sub(r.start).Seconds()*float64(r.bytesPerSec)) - r.consumed
	n := 0
	for n < len(p) && int64(n) < due {
		c := copy(p[n:], r.data[r.pos:])
		if int64(n+c) > due {
			c = int(due) - n
		}
		n += c
		r.pos += c
		if r.pos == len(r.data) {
			r.pos = 0
		}
	}
	r.consumed += int64(n)
	return n, nil
}

// Reset restarts playback from the beginning.
func (r *ReplaySource) Reset() error {
	r.mu.Lock()
	r.pos = 0
	r.consumed = 0
	r.start = r.now()
	r.mu.Unlock()
	return nil
}
