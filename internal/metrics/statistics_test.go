package metrics_test

import (
	"math"
	"testing"

	"lathe/internal/metrics"
)

func aggregate(t *testing.T, spec string, scores []float64) float64 {
	t.Helper()
	stat, err := metrics.ParseStatistic(spec)
	if err != nil {
		t.Fatalf("ParseStatistic(%q): %v", spec, err)
	}
	value, err := stat.Aggregate(metrics.VMAF, scores)
	if err != nil {
		t.Fatalf("Aggregate(%q): %v", spec, err)
	}
	return value
}

func almost(t *testing.T, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestStatistics(t *testing.T) {
	scores := []float64{90, 92, 94, 96}
	almost(t, aggregate(t, "mean", scores), 93)
	almost(t, aggregate(t, "median", scores), 93)
	almost(t, aggregate(t, "minimum", scores), 90)
	almost(t, aggregate(t, "maximum", scores), 96)
	almost(t, aggregate(t, "percentile=0", scores), 90)
	almost(t, aggregate(t, "percentile=100", scores), 96)
	almost(t, aggregate(t, "root-mean-square", scores),
		math.Sqrt((90*90+92*92+94*94+96*96)/4.0))

	harmonic := 4.0 / (1.0/90 + 1.0/92 + 1.0/94 + 1.0/96)
	almost(t, aggregate(t, "harmonic", scores), harmonic)
}

func TestStandardDeviationClampsToRange(t *testing.T) {
	// Mean 95, huge k pushes past the VMAF ceiling of 100.
	scores := []float64{90, 100}
	almost(t, aggregate(t, "standard-deviation=100", scores), 100)
	almost(t, aggregate(t, "standard-deviation=-100", scores), 0)
}

func TestModePicksMostFrequentRoundedValue(t *testing.T) {
	scores := []float64{90.1, 90.4, 95.0, 96.0}
	almost(t, aggregate(t, "mode", scores), 90.1)
}

func TestParseStatisticRejectsBadInput(t *testing.T) {
	for _, spec := range []string{"percentile", "standard-deviation", "percentile=200", "bogus", "mean=3"} {
		if _, err := metrics.ParseStatistic(spec); err == nil {
			t.Fatalf("expected error for %q", spec)
		}
	}
}

func TestAutoResolution(t *testing.T) {
	auto, err := metrics.ParseStatistic("auto")
	if err != nil {
		t.Fatalf("ParseStatistic: %v", err)
	}
	if got := auto.Resolve(metrics.VMAF, 1); got.Kind != metrics.StatMean {
		t.Fatalf("auto at rate 1 = %q", got.Kind)
	}
	if got := auto.Resolve(metrics.VMAF, 3); got.Kind != metrics.StatMedian {
		t.Fatalf("auto at rate 3 = %q", got.Kind)
	}
	explicit, _ := metrics.ParseStatistic("harmonic")
	if got := explicit.Resolve(metrics.VMAF, 3); got.Kind != metrics.StatHarmonic {
		t.Fatalf("explicit statistic overridden: %q", got.Kind)
	}
}

func TestMetricSense(t *testing.T) {
	if metrics.VMAF.Sense() != metrics.HigherBetter {
		t.Fatal("vmaf should be higher-better")
	}
	if metrics.Butteraugli3.Sense() != metrics.LowerBetter {
		t.Fatal("butteraugli-3 should be lower-better")
	}
	if !metrics.VMAF.WorseSide(90, 95) {
		t.Fatal("vmaf 90 is worse than target 95")
	}
	if metrics.VMAF.WorseSide(96, 95) {
		t.Fatal("vmaf 96 is not worse than target 95")
	}
	if !metrics.Butteraugli3.WorseSide(2.0, 1.5) {
		t.Fatal("butteraugli 2.0 is worse than target 1.5")
	}
	if metrics.Butteraugli3.WorseSide(0.6, 1.5) {
		t.Fatal("butteraugli 0.6 is not worse than target 1.5")
	}
}
