package targetquality_test

import (
	"context"
	"math"
	"testing"

	"lathe/internal/chunk"
	"lathe/internal/metrics"
	"lathe/internal/targetquality"
)

// curveProber scores probes from a fixed quantizer-to-score function and
// counts invocations.
type curveProber struct {
	curve func(q int) float64
	calls int
	seen  []int
}

func (p *curveProber) Probe(_ context.Context, _ *chunk.Chunk, q int) (float64, error) {
	p.calls++
	p.seen = append(p.seen, q)
	return p.curve(q), nil
}

func testChunk() *chunk.Chunk {
	return &chunk.Chunk{Index: 0, Start: 0, End: 600}
}

func TestSearchConvergesOnVMAFTarget(t *testing.T) {
	// Monotone decreasing VMAF over q, crossing 95 near q=35.
	prober := &curveProber{curve: func(q int) float64 {
		return 100 - 0.25*float64(q-15)
	}}
	search := &targetquality.Search{
		Metric:    metrics.VMAF,
		Target:    95,
		MinQ:      15,
		MaxQ:      55,
		MaxProbes: 4,
		Prober:    prober,
	}

	q, err := search.Run(context.Background(), testChunk())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if prober.calls > 4 {
		t.Fatalf("probe budget exceeded: %d calls", prober.calls)
	}
	if prober.seen[0] != 15 || prober.seen[1] != 55 {
		t.Fatalf("anchors not probed first: %v", prober.seen)
	}
	// Exact crossing is q=35; the chosen q must score on the good side and
	// be near the crossing.
	if score := prober.curve(q); score < 95 {
		t.Fatalf("chosen q %d scores %f, crossing the target on the worse side", q, score)
	}
	if q < 30 || q > 35 {
		t.Fatalf("chosen q %d far from crossing 35", q)
	}
}

func TestSearchAcceptsMinQWhenTargetUnreachable(t *testing.T) {
	// Even the best quantizer cannot reach 95.
	prober := &curveProber{curve: func(q int) float64 { return 80 - float64(q) }}
	search := &targetquality.Search{
		Metric:    metrics.VMAF,
		Target:    95,
		MinQ:      15,
		MaxQ:      55,
		MaxProbes: 4,
		Prober:    prober,
	}
	q, err := search.Run(context.Background(), testChunk())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if q != 15 {
		t.Fatalf("q = %d, want min q 15", q)
	}
	if prober.calls != 1 {
		t.Fatalf("expected a single anchor probe, got %d", prober.calls)
	}
}

func TestSearchLowerIsBetterEarlyAccept(t *testing.T) {
	// Scenario: butteraugli-3 target 1.5, probe at min q scores 0.6 -- on
	// the better side, so min q is accepted after one probe.
	prober := &curveProber{curve: func(q int) float64 {
		return 0.6 + 0.1*float64(q-10)
	}}
	search := &targetquality.Search{
		Metric:    metrics.Butteraugli3,
		Target:    1.5,
		MinQ:      10,
		MaxQ:      50,
		MaxProbes: 4,
		Prober:    prober,
	}
	q, err := search.Run(context.Background(), testChunk())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if prober.calls != 1 {
		t.Fatalf("expected exactly one probe, got %d", prober.calls)
	}
	if q != 10 {
		t.Fatalf("q = %d, want 10", q)
	}
}

func TestSearchLowerIsBetterEarlyAcceptWrongSide(t *testing.T) {
	// At min q the lower-is-better score is already above target: quality
	// target unreachable, accept min q.
	prober := &curveProber{curve: func(q int) float64 { return 2.0 + float64(q)/10 }}
	search := &targetquality.Search{
		Metric:    metrics.Butteraugli3,
		Target:    1.5,
		MinQ:      10,
		MaxQ:      50,
		MaxProbes: 4,
		Prober:    prober,
	}
	q, err := search.Run(context.Background(), testChunk())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if q != 10 || prober.calls != 1 {
		t.Fatalf("q = %d after %d probes, want 10 after 1", q, prober.calls)
	}
}

func TestSearchAcceptsMaxQWhenTargetMetEverywhere(t *testing.T) {
	prober := &curveProber{curve: func(q int) float64 { return 99 - 0.01*float64(q) }}
	search := &targetquality.Search{
		Metric:    metrics.VMAF,
		Target:    95,
		MinQ:      15,
		MaxQ:      55,
		MaxProbes: 4,
		Prober:    prober,
	}
	q, err := search.Run(context.Background(), testChunk())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if q != 55 {
		t.Fatalf("q = %d, want max q 55", q)
	}
	if prober.calls != 2 {
		t.Fatalf("expected both anchors only, got %d probes", prober.calls)
	}
}

func TestSearchFlatChunkAcceptsMaxQ(t *testing.T) {
	prober := &curveProber{curve: func(int) float64 { return 96 }}
	search := &targetquality.Search{
		Metric:    metrics.VMAF,
		Target:    95,
		MinQ:      15,
		MaxQ:      55,
		MaxProbes: 4,
		Prober:    prober,
	}
	q, err := search.Run(context.Background(), testChunk())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// Both anchors score 96 (good side): max q early-accept fires first.
	if q != 55 {
		t.Fatalf("q = %d, want 55", q)
	}
}

func TestSearchSingleProbeBudgetUsesMidpoint(t *testing.T) {
	prober := &curveProber{curve: func(q int) float64 { return 100 - float64(q) }}
	search := &targetquality.Search{
		Metric:    metrics.VMAF,
		Target:    60,
		MinQ:      10,
		MaxQ:      50,
		MaxProbes: 1,
		Prober:    prober,
	}
	q, err := search.Run(context.Background(), testChunk())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if q != 30 {
		t.Fatalf("q = %d, want midpoint 30", q)
	}
	if prober.calls != 1 {
		t.Fatalf("probe count = %d", prober.calls)
	}
}

func TestSearchBracketNeverWidens(t *testing.T) {
	prober := &curveProber{curve: func(q int) float64 {
		return 100 - 0.6*float64(q)
	}}
	search := &targetquality.Search{
		Metric:    metrics.VMAF,
		Target:    80,
		MinQ:      10,
		MaxQ:      60,
		MaxProbes: 6,
		Prober:    prober,
	}
	if _, err := search.Run(context.Background(), testChunk()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Reconstruct the bracket after each interior probe and assert its
	// width is non-increasing.
	lo, hi := 10, 60
	width := hi - lo
	for _, q := range prober.seen[2:] {
		score := prober.curve(q)
		if score < 80 {
			hi = q
		} else {
			lo = q
		}
		if hi-lo > width {
			t.Fatalf("bracket widened to [%d,%d]", lo, hi)
		}
		width = hi - lo
	}
}

func TestSearchNeverRepeatsQuantizer(t *testing.T) {
	prober := &curveProber{curve: func(q int) float64 {
		// Steep cliff makes interpolation aim at the same integer twice.
		if q < 30 {
			return 99
		}
		return 50
	}}
	search := &targetquality.Search{
		Metric:    metrics.VMAF,
		Target:    95,
		MinQ:      28,
		MaxQ:      32,
		MaxProbes: 6,
		Prober:    prober,
	}
	if _, err := search.Run(context.Background(), testChunk()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	seen := map[int]bool{}
	for _, q := range prober.seen {
		if seen[q] {
			t.Fatalf("quantizer %d probed twice: %v", q, prober.seen)
		}
		seen[q] = true
	}
}

func TestPickPrefersGoodSideClosest(t *testing.T) {
	// Scores straddle the target; 94.9 is closer but on the worse side.
	scores := map[int]float64{15: 99, 35: 95.4, 40: 94.9, 55: 80}
	prober := &curveProber{curve: func(q int) float64 {
		if s, ok := scores[q]; ok {
			return s
		}
		// Monotone fill-in for any other probe.
		return math.Max(0, 110-0.5*float64(q)-float64(q)*0.05)
	}}
	search := &targetquality.Search{
		Metric:    metrics.VMAF,
		Target:    95,
		MinQ:      15,
		MaxQ:      55,
		MaxProbes: 4,
		Prober:    prober,
	}
	q, err := search.Run(context.Background(), testChunk())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if score := prober.curve(q); score < 95 {
		t.Fatalf("selected q %d crosses the target on the worse side (%f)", q, score)
	}
}
