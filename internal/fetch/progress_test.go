package fetch

import (
	"testing"
	"time"

	"github.com/clipfetch/clipfetch/internal/config"
)

func collectGate(interval time.Duration) (*progressGate, *[]float64) {
	var emitted []float64
	limits := config.LimitSettings{
		MinProgressInterval: interval,
		MaxProgressInterval: interval,
	}
	gate := newProgressGate(func(p float64) { emitted = append(emitted, p) }, 0, limits)
	return gate, &emitted
}

func TestProgressGateMonotonic(t *testing.T) {
	gate, emitted := collectGate(0)

	// Input contains regressions; output must not
	for _, p := range []float64{10, 30, 20, 30, 50, 40, 100} {
		gate.Report(p)
	}

	if len(*emitted) == 0 {
		t.Fatal("no reports emitted")
	}
	prev := -1.0
	for _, p := range *emitted {
		if p < prev {
			t.Errorf("emitted report %v is lower than previous %v", p, prev)
		}
		prev = p
	}
	if (*emitted)[len(*emitted)-1] != 100 {
		t.Errorf("final report should be 100, got %v", (*emitted)[len(*emitted)-1])
	}
}

func TestProgressGateSkipsEqual(t *testing.T) {
	gate, emitted := collectGate(0)
	gate.Report(50)
	gate.Report(50)
	gate.Report(50)
	if len(*emitted) != 1 {
		t.Errorf("repeated identical percent should be emitted once, got %d", len(*emitted))
	}
}

func TestProgressGatePacing(t *testing.T) {
	gate, emitted := collectGate(time.Hour)
	gate.Report(10)
	gate.Report(20)
	gate.Report(30)
	if len(*emitted) != 1 {
		t.Errorf("reports inside the interval should be dropped, got %d", len(*emitted))
	}

	// 100%% always passes the pacing check
	gate.Report(100)
	if len(*emitted) != 2 || (*emitted)[1] != 100 {
		t.Errorf("100%% should bypass pacing, emitted=%v", *emitted)
	}
}

func TestProgressGateClamps(t *testing.T) {
	gate, emitted := collectGate(0)
	gate.Report(-5)
	gate.Report(150)
	for _, p := range *emitted {
		if p < 0 || p > 100 {
			t.Errorf("emitted percent out of range: %v", p)
		}
	}
}

func TestProgressGateNilSink(t *testing.T) {
	limits := config.LimitSettings{MinProgressInterval: time.Second, MaxProgressInterval: time.Second}
	gate := newProgressGate(nil, 0, limits)
	gate.Report(50) // must not panic
}

func TestProgressGateIntervalScalesWithSize(t *testing.T) {
	limits := config.LimitSettings{
		MinProgressInterval: time.Second,
		MaxProgressInterval: 7 * time.Second,
	}
	small := newProgressGate(nil, 10*config.MB, limits)
	big := newProgressGate(nil, 4*1024*config.MB, limits)

	if small.interval != time.Second {
		t.Errorf("small file interval = %v, want %v", small.interval, time.Second)
	}
	if big.interval <= small.interval {
		t.Errorf("large file interval (%v) should exceed small file interval (%v)", big.interval, small.interval)
	}
	if big.interval > limits.MaxProgressInterval {
		t.Errorf("interval %v exceeds the configured maximum %v", big.interval, limits.MaxProgressInterval)
	}
}

func TestProgressGateSetTotalRescales(t *testing.T) {
	limits := config.LimitSettings{
		MinProgressInterval: time.Second,
		MaxProgressInterval: 7 * time.Second,
	}

	// Size unknown at construction, learned from the response later.
	gate := newProgressGate(nil, 0, limits)
	if gate.interval != time.Second {
		t.Fatalf("unknown size should use the minimum interval, got %v", gate.interval)
	}

	gate.SetTotal(4 * 1024 * config.MB)
	if gate.interval <= time.Second {
		t.Errorf("interval should stretch after learning a large size, got %v", gate.interval)
	}
	if gate.interval > limits.MaxProgressInterval {
		t.Errorf("interval %v exceeds the configured maximum %v", gate.interval, limits.MaxProgressInterval)
	}
}
