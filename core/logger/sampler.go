package logger

import (
	"strconv"
	"strings"
	"sync/atomic"
)

// sampleGate admits the first num out of every den events. A zeroed gate
// (den <= 0) is open and admits everything.
type sampleGate struct {
	count atomic.Uint64
	num   atomic.Int64
	den   atomic.Int64
}

func newSampleGate(num, den int) *sampleGate {
	g := &sampleGate{}
	g.Configure(num, den)
	return g
}

// Configure replaces the sampling ratio. Non-positive values open the gate.
func (g *sampleGate) Configure(num, den int) {
	if num <= 0 || den <= 0 {
		g.num.Store(0)
		g.den.Store(0)
		return
	}
	if num > den {
		num = den
	}
	g.num.Store(int64(num))
	g.den.Store(int64(den))
	g.count.Store(0)
}

// Allow reports whether the current event passes the gate.
func (g *sampleGate) Allow() bool {
	den := g.den.Load()
	if den <= 0 {
		return true
	}
	n := g.count.Add(1)
	return int64((n-1)%uint64(den)) < g.num.Load()
}

// parseSampleSpec understands "1/50" ratios and bare denominators ("50"
// means 1/50). Zero or malformed specs disable sampling entirely.
func parseSampleSpec(spec string) (int, int) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return 0, 0
	}
	if num, den, ok := strings.Cut(spec, "/"); ok {
		n, err1 := strconv.Atoi(strings.TrimSpace(num))
		d, err2 := strconv.Atoi(strings.TrimSpace(den))
		if err1 == nil && err2 == nil {
			return n, d
		}
		return 0, 0
	}
	if d, err := strconv.Atoi(spec); err == nil && d > 0 {
		return 1, d
	}
	return 0, 0
}
