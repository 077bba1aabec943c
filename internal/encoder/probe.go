package encoder

import (
	"fmt"
	"strconv"
	"strings"
)

// ProbingSpeed selects how aggressively probe encodes trade accuracy for
// speed. The zero value means the encoder's fastest usable probe preset.
type ProbingSpeed int

const (
	SpeedVeryFast ProbingSpeed = iota
	SpeedFast
	SpeedMedium
	SpeedSlow
	SpeedVerySlow
)

// ParseProbingSpeed converts the CLI spelling into a ProbingSpeed.
func ParseProbingSpeed(value string) (ProbingSpeed, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "veryfast":
		return SpeedVeryFast, nil
	case "fast":
		return SpeedFast, nil
	case "medium":
		return SpeedMedium, nil
	case "slow":
		return SpeedSlow, nil
	case "veryslow":
		return SpeedVerySlow, nil
	}
	return 0, fmt.Errorf("unknown probing speed %q", value)
}

func (s ProbingSpeed) String() string {
	switch s {
	case SpeedFast:
		return "fast"
	case SpeedMedium:
		return "medium"
	case SpeedSlow:
		return "slow"
	case SpeedVerySlow:
		return "veryslow"
	default:
		return "veryfast"
	}
}

// numeric maps the speed onto the 0 (slowest) .. 4 (fastest) scale the
// per-encoder probe presets are derived from.
func (s ProbingSpeed) numeric() int {
	switch s {
	case SpeedVerySlow:
		return 0
	case SpeedSlow:
		return 1
	case SpeedMedium:
		return 2
	case SpeedFast:
		return 3
	default:
		return 4
	}
}

const (
	maxProbeSpeedAom   = 9
	maxProbeSpeedRav1e = 10
	maxProbeSpeedVpx   = 9
	maxProbeSpeedSvt   = 12
)

// ProbeArgs returns a fast one-pass parameter list for probing quantizer q.
// Probe settings disable the expensive coding tools that barely move metric
// scores so the search stays cheap.
func (e Encoder) ProbeArgs(q int, speed ProbingSpeed, threads int) []string {
	n := speed.numeric()
	switch e {
	case Aom:
		return []string{
			"--passes=1",
			fmt.Sprintf("--threads=%d", threads),
			"--tile-columns=2",
			"--tile-rows=1",
			"--end-usage=q",
			"-b", "8",
			fmt.Sprintf("--cpu-used=%d", n*maxProbeSpeedAom/4),
			fmt.Sprintf("--cq-level=%d", q),
			"--enable-filter-intra=0",
			"--enable-smooth-intra=0",
			"--enable-paeth-intra=0",
			"--enable-cfl-intra=0",
			"--enable-angle-delta=0",
			"--reduced-tx-type-set=1",
			"--enable-intra-edge-filter=0",
			"--enable-order-hint=0",
			"--enable-flip-idtx=0",
			"--enable-global-motion=0",
			"--enable-cdef=0",
			"--max-reference-frames=3",
			"--cdf-update-mode=2",
			"--enable-tpl-model=0",
			"--sb-size=64",
			"--min-partition-size=32",
			"--disable-kf",
			"--kf-max-dist=9999",
		}
	case Rav1e:
		return []string{
			"-y",
			"-s", strconv.Itoa(n * maxProbeSpeedRav1e / 4),
			"--threads", strconv.Itoa(threads),
			"--tiles", "16",
			"--quantizer", strconv.Itoa(q),
			"--low-latency",
			"--rdo-lookahead-frames", "5",
			"--no-scene-detection",
		}
	case Vpx:
		return []string{
			"-b", "10",
			"--profile=2",
			"--passes=1",
			"--codec=vp9",
			fmt.Sprintf("--threads=%d", threads),
			fmt.Sprintf("--cpu-used=%d", n*maxProbeSpeedVpx/4),
			"--end-usage=q",
			fmt.Sprintf("--cq-level=%d", q),
			"--row-mt=1",
			"--disable-kf",
			"--kf-max-dist=9999",
		}
	case SvtAV1:
		return []string{
			"--lp", strconv.Itoa(threads),
			"--preset", strconv.Itoa(n * maxProbeSpeedSvt / 4),
			"--keyint", "240",
			"--rc", "0",
			"--crf", strconv.Itoa(q),
			"--tile-rows", "1",
			"--tile-columns", "2",
		}
	case X264:
		return []string{
			"--no-progress",
			"--threads", strconv.Itoa(threads),
			"--preset", x264ProbePreset(n),
			"--crf", strconv.Itoa(q),
		}
	case X265:
		return []string{
			"--no-progress",
			"--frame-threads", strconv.Itoa(min(threads, 16)),
			"--preset", x265ProbePreset(n),
			"--crf", strconv.Itoa(q),
		}
	}
	return nil
}

func x264ProbePreset(n int) string {
	switch n {
	case 0:
		return "placebo"
	case 1:
		return "veryslow"
	case 2:
		return "slower"
	case 3:
		return "slow"
	default:
		return "medium"
	}
}

func x265ProbePreset(n int) string {
	switch n {
	case 0:
		return "veryslow"
	case 1:
		return "slower"
	case 2:
		return "slow"
	case 3:
		return "medium"
	default:
		return "fast"
	}
}

// ProbeSlowArgs returns the user's own parameters prepared for a one-pass
// probe at quantizer q: pass-related flags are stripped and the quantizer is
// substituted.
func (e Encoder) ProbeSlowArgs(userArgs []string, q int) []string {
	stripped := make([]string, 0, len(userArgs))
	skipValue := false
	for _, arg := range userArgs {
		if skipValue {
			skipValue = false
			continue
		}
		switch {
		case strings.HasPrefix(arg, "--passes="), strings.HasPrefix(arg, "--pass="),
			strings.HasPrefix(arg, "--fpf="), strings.HasPrefix(arg, "--stats="):
			continue
		case arg == "--passes" || arg == "--pass" || arg == "--stats" || arg == "--first-pass" || arg == "--second-pass":
			skipValue = true
			continue
		}
		stripped = append(stripped, arg)
	}
	return e.SubstituteQuantizer(stripped, q)
}
