package fetch

import (
	"sync"
	"time"

	"github.com/clipfetch/clipfetch/internal/config"
)

// progressGate throttles and orders progress reports. Emitted percentages
// never decrease even if the source regresses, and consecutive reports
// are at least interval apart (100% always goes through).
type progressGate struct {
	mu           sync.Mutex
	out          ProgressFunc
	limits       config.LimitSettings
	interval     time.Duration
	lastPercent  float64
	lastReported time.Time
	reported     bool
}

// newProgressGate wraps out. totalBytes scales the pacing interval:
// bigger files report less often to keep chat edits reasonable. Zero
// means unknown; SetTotal rescales once a size is learned.
func newProgressGate(out ProgressFunc, totalBytes int64, limits config.LimitSettings) *progressGate {
	return &progressGate{
		out:      out,
		limits:   limits,
		interval: pacingInterval(totalBytes, limits),
	}
}

// SetTotal rescales the pacing interval for a size learned after
// construction, e.g. from a response's Content-Length.
func (g *progressGate) SetTotal(totalBytes int64) {
	g.mu.Lock()
	g.interval = pacingInterval(totalBytes, g.limits)
	g.mu.Unlock()
}

func pacingInterval(totalBytes int64, limits config.LimitSettings) time.Duration {
	interval := limits.MinProgressInterval
	// Above 256 MiB stretch the interval linearly up to the max
	const threshold = 256 * config.MB
	if totalBytes > threshold {
		scaled := time.Duration(float64(limits.MaxProgressInterval) * float64(totalBytes) / float64(4*1024*config.MB))
		if scaled > interval {
			interval = scaled
		}
		if interval > limits.MaxProgressInterval {
			interval = limits.MaxProgressInterval
		}
	}
	return interval
}

// Report forwards percent downstream if it passes the gate.
func (g *progressGate) Report(percent float64) {
	if g.out == nil {
		return
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.reported && percent <= g.lastPercent {
		return
	}
	now := time.Now()
	if g.reported && percent < 100 && now.Sub(g.lastReported) < g.interval {
		return
	}

	g.lastPercent = percent
	g.lastReported = now
	g.reported = true
	g.out(percent)
}
