package batch

import (
	"time"

	"go.uber.org/zap"
)

// Progress measures batch pace over fixed-size windows of rows.
type Progress struct {
	total int
	every int
	done  int
	last  time.Time
	now   func() time.Time
}

// Report is the pace over the most recent window.
type Report struct {
	Done      int
	Remaining int
	// Pace is the wall-clock time the last window of rows took.
	Pace time.Duration
	// ETA extrapolates Pace over the remaining rows.
	ETA time.Duration
}

// NewProgress starts measuring a batch of total rows, reporting every
// `every` rows.
func NewProgress(total, every int, now func() time.Time) *Progress {
	if every <= 0 {
		every = 100
	}
	if now == nil {
		now = time.Now
	}
	return &Progress{total: total, every: every, last: now(), now: now}
}

// Tick records one finished row. It returns a report when the row closes a
// window.
func (p *Progress) Tick() (Report, bool) {
	p.done++
	if p.done%p.every != 0 {
		return Report{}, false
	}

	t := p.now()
	pace := t.Sub(p.last)
	p.last = t

	remaining := p.total - p.done
	if remaining < 0 {
		remaining = 0
	}
	eta := time.Duration(float64(pace) * float64(remaining) / float64(p.every))

	return Report{Done: p.done, Remaining: remaining, Pace: pace, ETA: eta}, true
}

// Every returns the window size.
func (p *Progress) Every() int { return p.every }

// Log writes the report at info level.
func (r Report) Log(every int) {
	zap.L().Info("batch: progress",
		zap.Int("done", r.Done),
		zap.Int("remaining", r.Remaining),
		zap.Int("window_rows", every),
		zap.Float64("window_seconds", r.Pace.Seconds()),
		zap.Float64("eta_hours", r.ETA.Hours()),
	)
}
