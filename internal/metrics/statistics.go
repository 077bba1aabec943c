package metrics

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// StatisticKind enumerates the per-frame score aggregation functions.
type StatisticKind string

const (
	StatAuto              StatisticKind = "auto"
	StatMean              StatisticKind = "mean"
	StatMedian            StatisticKind = "median"
	StatHarmonic          StatisticKind = "harmonic"
	StatRootMeanSquare    StatisticKind = "root-mean-square"
	StatPercentile        StatisticKind = "percentile"
	StatStandardDeviation StatisticKind = "standard-deviation"
	StatMode              StatisticKind = "mode"
	StatMinimum           StatisticKind = "minimum"
	StatMaximum           StatisticKind = "maximum"
)

// Statistic is an aggregation choice, optionally parameterized
// (percentile=p, standard-deviation=k).
type Statistic struct {
	Kind  StatisticKind
	Param float64
}

// ParseStatistic parses the CLI spelling, accepting a trailing float for the
// parameterized kinds.
func ParseStatistic(value string) (Statistic, error) {
	trimmed := strings.ToLower(strings.TrimSpace(value))
	if trimmed == "" {
		return Statistic{Kind: StatAuto}, nil
	}
	name, param, hasParam := strings.Cut(trimmed, "=")
	stat := Statistic{Kind: StatisticKind(name)}
	switch stat.Kind {
	case StatAuto, StatMean, StatMedian, StatHarmonic, StatRootMeanSquare,
		StatMode, StatMinimum, StatMaximum:
		if hasParam {
			return Statistic{}, fmt.Errorf("statistic %q takes no parameter", name)
		}
		return stat, nil
	case StatPercentile, StatStandardDeviation:
		if !hasParam {
			return Statistic{}, fmt.Errorf("statistic %q requires a parameter", name)
		}
		parsed, err := strconv.ParseFloat(param, 64)
		if err != nil {
			return Statistic{}, fmt.Errorf("statistic %q: invalid parameter %q", name, param)
		}
		if stat.Kind == StatPercentile && (parsed < 0 || parsed > 100) {
			return Statistic{}, fmt.Errorf("percentile must be in [0,100], got %v", parsed)
		}
		stat.Param = parsed
		return stat, nil
	}
	return Statistic{}, fmt.Errorf("unknown probing statistic %q", value)
}

// Resolve replaces auto with a concrete statistic: the mean at full-rate
// probing, the median when sub-sampling, where the sparser score stream
// makes single-frame outliers noisier.
func (s Statistic) Resolve(metric Metric, probingRate int) Statistic {
	if s.Kind != StatAuto {
		return s
	}
	if probingRate > 1 {
		return Statistic{Kind: StatMedian}
	}
	return Statistic{Kind: StatMean}
}

// Aggregate reduces per-frame scores to a single probe score.
func (s Statistic) Aggregate(metric Metric, scores []float64) (float64, error) {
	if len(scores) == 0 {
		return 0, fmt.Errorf("no scores to aggregate")
	}
	switch s.Kind {
	case StatAuto:
		return Statistic{Kind: StatMean}.Aggregate(metric, scores)
	case StatMean:
		return mean(scores), nil
	case StatMedian:
		return percentile(scores, 50), nil
	case StatHarmonic:
		var sum float64
		for _, score := range scores {
			if score == 0 {
				return 0, nil
			}
			sum += 1 / score
		}
		return float64(len(scores)) / sum, nil
	case StatRootMeanSquare:
		var sum float64
		for _, score := range scores {
			sum += score * score
		}
		return math.Sqrt(sum / float64(len(scores))), nil
	case StatPercentile:
		return percentile(scores, s.Param), nil
	case StatStandardDeviation:
		avg := mean(scores)
		var variance float64
		for _, score := range scores {
			diff := score - avg
			variance += diff * diff
		}
		sigma := math.Sqrt(variance / float64(len(scores)))
		low, high := metric.ScoreRange()
		return clamp(avg+s.Param*sigma, low, high), nil
	case StatMode:
		return mode(scores), nil
	case StatMinimum:
		return minimum(scores), nil
	case StatMaximum:
		return maximum(scores), nil
	}
	return 0, fmt.Errorf("unknown statistic %q", s.Kind)
}

func mean(scores []float64) float64 {
	var sum float64
	for _, score := range scores {
		sum += score
	}
	return sum / float64(len(scores))
}

// percentile uses linear interpolation between the closest ranks.
func percentile(scores []float64, p float64) float64 {
	sorted := append([]float64(nil), scores...)
	sort.Float64s(sorted)
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}
	weight := rank - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

func mode(scores []float64) float64 {
	counts := make(map[int]int, len(scores))
	for _, score := range scores {
		counts[int(math.Round(score))]++
	}
	best := 0
	for _, count := range counts {
		if count > best {
			best = count
		}
	}
	for _, score := range scores {
		if counts[int(math.Round(score))] == best {
			return score
		}
	}
	return scores[0]
}

func minimum(scores []float64) float64 {
	out := scores[0]
	for _, score := range scores[1:] {
		if score < out {
			out = score
		}
	}
	return out
}

func maximum(scores []float64) float64 {
	out := scores[0]
	for _, score := range scores[1:] {
		if score > out {
			out = score
		}
	}
	return out
}

func clamp(value, low, high float64) float64 {
	return math.Max(low, math.Min(high, value))
}
