package app

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/relabs-tech/motion_computer/internal/gps"
	"github.com/relabs-tech/motion_computer/internal/imu"
	"github.com/relabs-tech/motion_computer/internal/queue"
)

// BenchResult is one measured workload.
type BenchResult struct {
	Name    string
	Ops     int
	Elapsed time.Duration
}

// PerSecond is the measured throughput.
func (r BenchResult) PerSecond() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Ops) / r.Elapsed.Seconds()
}

func (r BenchResult) String() string {
	return fmt.Sprintf("%-28s %12s ops  %10v  %s/s", r.Name, humanize.Comma(int64(r.Ops)),
		r.Elapsed.Round(time.Microsecond), humanize.SIWithDigits(r.PerSecond(), 2, "op"))
}

// Bench measures the hot paths on this host: queue send/receive under both
// overflow policies and UBX frame decoding.
func Bench(n int) []BenchResult {
	return []BenchResult{
		benchQueue("queue send+recv drop-new", n, queue.DropNew),
		benchQueue("queue send+recv drop-oldest", n, queue.DropOldestKeepNewest),
		benchQueueOverflow(n),
		benchUBX(n),
	}
}

func benchQueue(name string, n int, policy queue.Policy) BenchResult {
	q := queue.MustNew[imu.Raw]("bench", 256, policy)
	start := time.Now()
	for i := 0; i < n; i++ {
		q.Send(imu.Raw{Valid: true})
		q.TryReceive()
	}
	return BenchResult{Name: name, Ops: n, Elapsed: time.Since(start)}
}

func benchQueueOverflow(n int) BenchResult {
	q := queue.MustNew[imu.Raw]("bench", 16, queue.DropOldestKeepNewest)
	for i := 0; i < q.Cap(); i++ {
		q.Send(imu.Raw{})
	}
	start := time.Now()
	for i := 0; i < n; i++ {
		q.Send(imu.Raw{Valid: true})
	}
	return BenchResult{Name: "queue overwrite-on-full", Ops: n, Elapsed: time.Since(start)}
}

func benchUBX(n int) BenchResult {
	payload := make([]byte, gps.NavPVTLength)
	payload[20] = 3
	frame := gps.EncodeFrame(gps.UBXClassNAV, gps.UBXIDNavPVT, payload)
	d := gps.NewUBXDecoder(0)
	start := time.Now()
	got := 0
	for i := 0; i < n; i++ {
		got += gps.DecodeAll(d, frame, nil)
	}
	return BenchResult{Name: "ubx nav-pvt decode", Ops: got, Elapsed: time.Since(start)}
}

// WriteBench prints results one per line.
func WriteBench(w io.Writer, results []BenchResult) {
	for _, r := range results {
		fmt.Fprintln(w, r.String())
	}
}
