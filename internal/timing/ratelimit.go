package timing

import (
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter thins out high-frequency log lines to at most hz per second
// and counts what it swallowed.
type RateLimiter struct {
	lim        *rate.Limiter
	suppressed uint64
}

// NewRateLimiter allows up to hz lines per second. hz <= 0 disables limiting.
func NewRateLimiter(hz int) *RateLimiter {
	limit := rate.Inf
	if hz > 0 {
		limit = rate.Limit(hz)
	}
	return &RateLimiter{lim: rate.NewLimiter(limit, 1)}
}

// Allow reports whether a line may be logged at now. When it may, the number
// of lines suppressed since the previous allowed one is returned and cleared.
func (r *RateLimiter) Allow(now time.Time) (ok bool, suppressed uint64) {
	if !r.lim.AllowN(now, 1) {
		r.suppressed++
		return false, 0
	}
	suppressed = r.suppressed
	r.suppressed = 0
	return true, suppressed
}
