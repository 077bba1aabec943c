package scenes

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"lathe/internal/encoder"
)

// ParseZonesFile reads a zones file where each non-empty line is
//
//	start end encoder [reset] [args...]
//
// An end of -1 means the last frame. defaultEncoder is the run's encoder;
// switching encoders inside a zone requires reset because inherited
// arguments would not parse.
func ParseZonesFile(path string, frameCount int, defaultEncoder encoder.Encoder) ([]Zone, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open zones file: %w", err)
	}
	defer file.Close()

	var zones []Zone
	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		zone, err := ParseZone(line, frameCount, defaultEncoder)
		if err != nil {
			return nil, fmt.Errorf("zones file line %d: %w", lineNo, err)
		}
		zones = append(zones, zone)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read zones file: %w", err)
	}

	sort.Slice(zones, func(i, j int) bool { return zones[i].Start < zones[j].Start })
	for i := 1; i < len(zones); i++ {
		if zones[i].Start < zones[i-1].End {
			return nil, fmt.Errorf("zones file contains overlapping zones: [%d,%d) and [%d,%d)",
				zones[i-1].Start, zones[i-1].End, zones[i].Start, zones[i].End)
		}
	}
	return zones, nil
}

// ParseZone parses a single zone line.
func ParseZone(line string, frameCount int, defaultEncoder encoder.Encoder) (Zone, error) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return Zone{}, fmt.Errorf("expected at least 'start end encoder', got %q", line)
	}

	start, err := strconv.Atoi(fields[0])
	if err != nil {
		return Zone{}, fmt.Errorf("invalid start frame %q", fields[0])
	}
	end := frameCount
	if fields[1] != "-1" {
		end, err = strconv.Atoi(fields[1])
		if err != nil {
			return Zone{}, fmt.Errorf("invalid end frame %q", fields[1])
		}
	}
	if start >= end {
		return Zone{}, fmt.Errorf("start frame %d must be earlier than end frame %d", start, end)
	}
	if start >= frameCount || end > frameCount {
		return Zone{}, fmt.Errorf("zone [%d,%d) extends past the %d-frame video", start, end, frameCount)
	}

	enc, err := encoder.Parse(fields[2])
	if err != nil {
		return Zone{}, err
	}
	if enc.Format() != defaultEncoder.Format() {
		return Zone{}, fmt.Errorf("zone uses %s, which produces %s and cannot share a file with %s output",
			enc, enc.Format(), defaultEncoder.Format())
	}

	rest := fields[3:]
	reset := false
	if len(rest) > 0 && rest[0] == "reset" {
		reset = true
		rest = rest[1:]
	}
	if enc != defaultEncoder && !reset {
		return Zone{}, fmt.Errorf("zone changes encoder to %s but keeps inherited arguments; add \"reset\"", enc)
	}

	zone := Zone{Start: start, End: end, Encoder: enc, Reset: reset}

	// Pull the planner-level overrides out of the arg list; the rest go to
	// the encoder verbatim.
	for i := 0; i < len(rest); i++ {
		switch rest[i] {
		case "-x", "--extra-split":
			if i+1 >= len(rest) {
				return Zone{}, fmt.Errorf("%s requires a value", rest[i])
			}
			value, err := strconv.Atoi(rest[i+1])
			if err != nil {
				return Zone{}, fmt.Errorf("invalid %s value %q", rest[i], rest[i+1])
			}
			zone.ExtraSplit = &value
			i++
		case "--min-scene-len":
			if i+1 >= len(rest) {
				return Zone{}, fmt.Errorf("--min-scene-len requires a value")
			}
			value, err := strconv.Atoi(rest[i+1])
			if err != nil {
				return Zone{}, fmt.Errorf("invalid --min-scene-len value %q", rest[i+1])
			}
			zone.MinSceneLen = &value
			i++
		default:
			zone.Args = append(zone.Args, rest[i])
		}
	}

	return zone, nil
}

// ArgsFor resolves the final encoder argument list for a chunk inside the
// zone. Reset zones return exactly their own arguments; otherwise zone
// arguments replace matching defaults and append the rest.
func (z *Zone) ArgsFor(defaults []string) []string {
	if z == nil {
		return append([]string(nil), defaults...)
	}
	if z.Reset {
		return append([]string(nil), z.Args...)
	}
	return mergeArgs(z.Encoder, defaults, z.Args)
}

// mergeArgs applies overrides onto base: an override flag removes any base
// occurrence of the same flag (and its value for flag/value style encoders)
// before being appended.
func mergeArgs(enc encoder.Encoder, base, overrides []string) []string {
	merged := append([]string(nil), base...)
	for i := 0; i < len(overrides); i++ {
		arg := overrides[i]
		if !isFlag(arg) {
			merged = append(merged, arg)
			continue
		}
		key, _, hasValue := strings.Cut(arg, "=")
		merged = removeFlag(merged, key)

		merged = append(merged, arg)
		if !hasValue && i+1 < len(overrides) && !isFlag(overrides[i+1]) {
			merged = append(merged, overrides[i+1])
			i++
		}
	}
	return merged
}

func removeFlag(args []string, key string) []string {
	out := args[:0]
	skipValue := false
	for i, arg := range args {
		if skipValue {
			skipValue = false
			continue
		}
		argKey, _, hasValue := strings.Cut(arg, "=")
		if argKey == key {
			if !hasValue && i+1 < len(args) && !isFlag(args[i+1]) {
				skipValue = true
			}
			continue
		}
		out = append(out, arg)
	}
	return append([]string(nil), out...)
}

func isFlag(arg string) bool {
	if strings.HasPrefix(arg, "--") {
		return true
	}
	if strings.HasPrefix(arg, "-") && len(arg) > 1 {
		c := arg[1]
		return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
	}
	return false
}
