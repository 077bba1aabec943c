package targetquality

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"lathe/internal/chunk"
	"lathe/internal/logging"
	"lathe/internal/metrics"
)

// Prober encodes a chunk probe at one quantizer and returns its aggregated
// metric score.
type Prober interface {
	Probe(ctx context.Context, c *chunk.Chunk, q int) (float64, error)
}

// Search is the per-chunk quantizer search configuration.
type Search struct {
	Metric    metrics.Metric
	Target    float64
	MinQ      int
	MaxQ      int
	MaxProbes int
	Prober    Prober
	Logger    *slog.Logger
}

type probeResult struct {
	q     int
	score float64
}

// Run executes the search and returns the chosen quantizer. The number of
// probe encodes never exceeds MaxProbes.
func (s *Search) Run(ctx context.Context, c *chunk.Chunk) (int, error) {
	if s.MinQ > s.MaxQ {
		return 0, fmt.Errorf("target quality: min q %d exceeds max q %d", s.MinQ, s.MaxQ)
	}
	budget := s.MaxProbes
	if budget <= 0 {
		budget = 4
	}
	logger := s.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logging.WithComponent(logger, "target-quality")

	var history []probeResult
	probe := func(q int) (float64, error) {
		score, err := s.Prober.Probe(ctx, c, q)
		if err != nil {
			return 0, err
		}
		history = append(history, probeResult{q: q, score: score})
		logger.Debug("probe scored",
			logging.Int("chunk", c.Index),
			logging.Int("q", q),
			logging.Float64("score", score),
			logging.Float64("target", s.Target))
		return score, nil
	}

	// A single-probe budget cannot form a bracket; spend it at the
	// midpoint.
	if budget == 1 {
		mid := (s.MinQ + s.MaxQ) / 2
		if _, err := probe(mid); err != nil {
			return 0, err
		}
		return mid, nil
	}

	// Anchor probes at the interval endpoints. min q is the best quality
	// the search may use: a worse-side score there means the target is out
	// of reach and min q is the answer.
	scoreLo, err := probe(s.MinQ)
	if err != nil {
		return 0, err
	}
	if s.Metric.WorseSide(scoreLo, s.Target) {
		logger.Debug("target unreachable, accepting min q",
			logging.Int("chunk", c.Index), logging.Int("q", s.MinQ))
		return s.MinQ, nil
	}
	if s.MinQ == s.MaxQ {
		return s.MinQ, nil
	}

	scoreHi, err := probe(s.MaxQ)
	if err != nil {
		return 0, err
	}
	if !s.Metric.WorseSide(scoreHi, s.Target) {
		// Even the worst quantizer meets the target.
		logger.Debug("target met at max q",
			logging.Int("chunk", c.Index), logging.Int("q", s.MaxQ))
		return s.MaxQ, nil
	}
	if scoreLo == scoreHi {
		// Flat chunk; the lower quantizer wins the tie.
		return s.MinQ, nil
	}

	qLo, sLo := s.MinQ, scoreLo
	qHi, sHi := s.MaxQ, scoreHi

	for len(history) < budget && qHi-qLo > 1 {
		candidate := interpolate(qLo, sLo, qHi, sHi, s.Target)
		candidate = clampInt(candidate, qLo+1, qHi-1)
		candidate, ok := avoidRepeat(candidate, history, qLo, qHi)
		if !ok {
			break
		}

		score, err := probe(candidate)
		if err != nil {
			return 0, err
		}
		if s.Metric.WorseSide(score, s.Target) {
			qHi, sHi = candidate, score
		} else {
			qLo, sLo = candidate, score
		}
	}

	return s.pick(history), nil
}

// pick selects the probed quantizer whose score is closest to the target
// without crossing onto the worse side; ties go to the lower quantizer.
func (s *Search) pick(history []probeResult) int {
	best := -1
	bestDistance := math.Inf(1)
	for i, result := range history {
		if s.Metric.WorseSide(result.score, s.Target) {
			continue
		}
		distance := math.Abs(result.score - s.Target)
		if best < 0 || distance < bestDistance ||
			(distance == bestDistance && result.q < history[best].q) {
			best = i
			bestDistance = distance
		}
	}
	if best >= 0 {
		return history[best].q
	}
	// No good-side probe; fall back to the overall closest.
	for i, result := range history {
		distance := math.Abs(result.score - s.Target)
		if best < 0 || distance < bestDistance ||
			(distance == bestDistance && result.q < history[best].q) {
			best = i
			bestDistance = distance
		}
	}
	return history[best].q
}

// interpolate predicts the quantizer whose score would hit the target by
// linear interpolation between the bracket endpoints.
func interpolate(qLo int, sLo float64, qHi int, sHi float64, target float64) int {
	if sHi == sLo {
		return (qLo + qHi) / 2
	}
	predicted := float64(qLo) + (target-sLo)*float64(qHi-qLo)/(sHi-sLo)
	return int(math.Round(predicted))
}

// avoidRepeat shifts an already-probed candidate by one step toward an
// unexplored integer inside (qLo, qHi); ok is false when none remains.
func avoidRepeat(candidate int, history []probeResult, qLo, qHi int) (int, bool) {
	probed := make(map[int]bool, len(history))
	for _, result := range history {
		probed[result.q] = true
	}
	if !probed[candidate] {
		return candidate, true
	}
	for offset := 1; ; offset++ {
		up := candidate + offset
		down := candidate - offset
		upOK := up > qLo && up < qHi && !probed[up]
		downOK := down > qLo && down < qHi && !probed[down]
		if !upOK && !downOK {
			if up >= qHi && down <= qLo {
				return 0, false
			}
			continue
		}
		// Prefer the lower quantizer side on ties.
		if downOK {
			return down, true
		}
		return up, true
	}
}

func clampInt(value, low, high int) int {
	if value < low {
		return low
	}
	if value > high {
		return high
	}
	return value
}
