package metrics

import (
	"fmt"
	"strings"
)

// Sense says which direction of a metric means better quality. Exposing the
// sense keeps comparisons in one place instead of branching on metric names.
type Sense int

const (
	HigherBetter Sense = iota
	LowerBetter
)

// Metric identifies a perceptual quality metric.
type Metric string

const (
	VMAF           Metric = "vmaf"
	SSIMULACRA2    Metric = "ssimulacra2"
	XPSNR          Metric = "xpsnr"
	ButteraugliInf Metric = "butteraugli-inf"
	Butteraugli3   Metric = "butteraugli-3"
)

// DefaultVMAFModel is the model path handed to libvmaf when the user does
// not override it.
const DefaultVMAFModel = "/usr/share/model/vmaf_v0.6.1.pkl"

// Parse converts the CLI spelling into a Metric.
func Parse(value string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "vmaf":
		return VMAF, nil
	case "ssimulacra2", "ssimu2":
		return SSIMULACRA2, nil
	case "xpsnr":
		return XPSNR, nil
	case "butteraugli-inf", "butteraugli":
		return ButteraugliInf, nil
	case "butteraugli-3":
		return Butteraugli3, nil
	}
	return "", fmt.Errorf("unknown metric %q", value)
}

// Sense returns the metric's quality direction.
func (m Metric) Sense() Sense {
	switch m {
	case ButteraugliInf, Butteraugli3:
		return LowerBetter
	default:
		return HigherBetter
	}
}

// ScoreRange returns the metric's score domain, used to clamp synthetic
// aggregates like mean plus k standard deviations.
func (m Metric) ScoreRange() (low, high float64) {
	switch m {
	case VMAF, SSIMULACRA2:
		return 0, 100
	default:
		// Unbounded above.
		return 0, 1e9
	}
}

// WorseSide reports whether the score is on the worse-quality side of the
// target: below a higher-is-better target, or above a lower-is-better one.
func (m Metric) WorseSide(score, target float64) bool {
	if m.Sense() == LowerBetter {
		return score > target
	}
	return score < target
}
