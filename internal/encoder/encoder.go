package encoder

import (
	"fmt"
	"strconv"
	"strings"
)

// Encoder identifies one of the supported external encoder binaries.
type Encoder string

const (
	Aom    Encoder = "aom"
	Rav1e  Encoder = "rav1e"
	SvtAV1 Encoder = "svt-av1"
	Vpx    Encoder = "vpx"
	X264   Encoder = "x264"
	X265   Encoder = "x265"
)

var all = []Encoder{Aom, Rav1e, SvtAV1, Vpx, X264, X265}

// All returns the supported encoders in a stable order.
func All() []Encoder {
	cp := make([]Encoder, len(all))
	copy(cp, all)
	return cp
}

// Parse converts a user-supplied name into a known Encoder.
func Parse(value string) (Encoder, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "aom", "aomenc":
		return Aom, nil
	case "rav1e":
		return Rav1e, nil
	case "svt-av1", "svt_av1", "svtav1":
		return SvtAV1, nil
	case "vpx", "vpxenc", "libvpx":
		return Vpx, nil
	case "x264":
		return X264, nil
	case "x265":
		return X265, nil
	}
	return "", fmt.Errorf("unknown encoder %q", value)
}

// Binary returns the executable name for the encoder.
func (e Encoder) Binary() string {
	switch e {
	case Aom:
		return "aomenc"
	case Rav1e:
		return "rav1e"
	case SvtAV1:
		return "SvtAv1EncApp"
	case Vpx:
		return "vpxenc"
	case X264:
		return "x264"
	case X265:
		return "x265"
	}
	return string(e)
}

// Format returns the bitstream format the encoder produces.
func (e Encoder) Format() string {
	switch e {
	case Aom, Rav1e, SvtAV1:
		return "av1"
	case Vpx:
		return "vp9"
	case X264:
		return "h264"
	case X265:
		return "h265"
	}
	return ""
}

// OutputExtension returns the per-chunk container extension.
func (e Encoder) OutputExtension() string {
	switch e {
	case X264, X265:
		return "mkv"
	default:
		return "ivf"
	}
}

// DefaultArgs returns the encoder's default parameter list. Keyframe
// placement is disabled because chunk boundaries are the only keyframes the
// pipeline wants.
func (e Encoder) DefaultArgs() []string {
	switch e {
	case Aom:
		return []string{
			"--threads=8", "--cpu-used=6", "--end-usage=q", "--cq-level=30",
			"--disable-kf", "--kf-max-dist=9999",
		}
	case Rav1e:
		return []string{
			"--speed", "6", "--quantizer", "100", "--keyint", "0",
			"--no-scene-detection",
		}
	case SvtAV1:
		return []string{
			"--preset", "4", "--keyint", "0", "--scd", "0", "--rc", "0",
			"--crf", "25",
		}
	case Vpx:
		return []string{
			"--codec=vp9", "-b", "10", "--profile=2", "--threads=4",
			"--cpu-used=2", "--end-usage=q", "--cq-level=30", "--row-mt=1",
			"--auto-alt-ref=6", "--disable-kf", "--kf-max-dist=9999",
		}
	case X264:
		return []string{
			"--preset", "slow", "--crf", "25", "--keyint", "infinite",
			"--scenecut", "0",
		}
	case X265:
		return []string{
			"--preset", "slow", "--crf", "25", "-D", "10",
			"--level-idc", "5.0", "--keyint", "-1", "--scenecut", "0",
		}
	}
	return nil
}

// QuantizerRange returns the default quantizer search interval for target
// quality mode. Scales are encoder specific.
func (e Encoder) QuantizerRange() (minQ, maxQ int) {
	switch e {
	case Aom, Vpx:
		return 15, 55
	case Rav1e:
		return 50, 140
	case SvtAV1:
		return 15, 50
	case X264, X265:
		return 15, 35
	}
	return 0, 0
}

// DefaultPasses returns the number of passes the encoder runs by default.
func (e Encoder) DefaultPasses() int {
	switch e {
	case Aom, Vpx:
		return 2
	default:
		return 1
	}
}

// TwoPassSupported reports whether the encoder can run a two-pass encode.
// All six supported encoders can; the method exists so callers branch on
// capability rather than identity.
func (e Encoder) TwoPassSupported() bool {
	return true
}

// equalsStyle reports whether the encoder takes parameters in --key=value
// form rather than as flag/value pairs.
func (e Encoder) equalsStyle() bool {
	return e == Aom || e == Vpx
}

// QuantizerFlagMatch reports whether the given parameter sets the encoder's
// quantizer.
func (e Encoder) QuantizerFlagMatch(param string) bool {
	switch e {
	case Aom, Vpx:
		return strings.HasPrefix(param, "--cq-level=")
	case Rav1e:
		return param == "--quantizer" || param == "-q"
	case SvtAV1:
		return param == "--qp" || param == "-q" || param == "--crf"
	case X264, X265:
		return param == "--crf"
	}
	return false
}

// SubstituteQuantizer returns args with the encoder-specific quantizer flag
// set to q, replacing any existing quantizer parameter.
func (e Encoder) SubstituteQuantizer(args []string, q int) []string {
	out := make([]string, 0, len(args)+2)
	skipValue := false
	for _, arg := range args {
		if skipValue {
			skipValue = false
			continue
		}
		if e.QuantizerFlagMatch(arg) {
			if !e.equalsStyle() {
				skipValue = true
			}
			continue
		}
		out = append(out, arg)
	}
	switch e {
	case Aom, Vpx:
		out = append(out, "--cq-level="+strconv.Itoa(q))
	case Rav1e:
		out = append(out, "--quantizer", strconv.Itoa(q))
	case SvtAV1, X264, X265:
		out = append(out, "--crf", strconv.Itoa(q))
	}
	return out
}

// ExtractQuantizer returns the quantizer currently set in args, if any.
func (e Encoder) ExtractQuantizer(args []string) (int, bool) {
	for i, arg := range args {
		if !e.QuantizerFlagMatch(arg) {
			continue
		}
		if e.equalsStyle() {
			_, value, found := strings.Cut(arg, "=")
			if !found {
				return 0, false
			}
			q, err := strconv.Atoi(value)
			if err != nil {
				return 0, false
			}
			return q, true
		}
		if i+1 >= len(args) {
			return 0, false
		}
		q, err := strconv.Atoi(args[i+1])
		if err != nil {
			return 0, false
		}
		return q, true
	}
	return 0, false
}
