package encoder

import (
	"strconv"
	"strings"
)

// ParseEncodedFrames extracts the number of frames the encoder reports as
// encoded from one line of its progress output. Returns false when the line
// carries no frame count. Progress formats are encoder specific:
//
//	aomenc/vpxenc:  "Pass 1/1 frame  142/141 ..."  (second number is encoded)
//	rav1e:          "encoded 142/240 frames, ..."
//	SvtAv1EncApp:   "Encoding frame  142 ..."
//	x264/x265:      "[23.4%] 142/600 frames, ..."
func (e Encoder) ParseEncodedFrames(line string) (int, bool) {
	switch e {
	case Aom, Vpx:
		return parseAomVpxFrames(line)
	case Rav1e:
		return parseRav1eFrames(line)
	case SvtAV1:
		return parseSvtFrames(line)
	case X264, X265:
		return parseX26xFrames(line)
	}
	return 0, false
}

func parseAomVpxFrames(line string) (int, bool) {
	if !strings.HasPrefix(line, "Pass") {
		return 0, false
	}
	slash := strings.IndexByte(line, '/')
	if slash < 0 {
		return 0, false
	}
	// Skip the pass counter; the frame counter is the next number pair and
	// its second component is the encoded count.
	rest := line[slash+1:]
	slash = strings.IndexByte(rest, '/')
	if slash < 0 {
		return 0, false
	}
	rest = rest[slash+1:]
	end := strings.IndexByte(rest, ' ')
	if end < 0 {
		end = len(rest)
	}
	return parseFrameInt(rest[:end])
}

func parseRav1eFrames(line string) (int, bool) {
	const prefix = "encoded "
	if !strings.HasPrefix(line, prefix) {
		return 0, false
	}
	fields := strings.Fields(line[len(prefix):])
	if len(fields) == 0 {
		return 0, false
	}
	value, _, _ := strings.Cut(fields[0], "/")
	return parseFrameInt(value)
}

func parseSvtFrames(line string) (int, bool) {
	const prefix = "Encoding frame"
	if !strings.HasPrefix(line, prefix) {
		return 0, false
	}
	fields := strings.Fields(line[len(prefix):])
	if len(fields) == 0 {
		return 0, false
	}
	return parseFrameInt(fields[0])
}

func parseX26xFrames(line string) (int, bool) {
	for _, field := range strings.Fields(line) {
		if strings.HasPrefix(field, "[") {
			continue
		}
		value, _, _ := strings.Cut(field, "/")
		return parseFrameInt(value)
	}
	return 0, false
}

func parseFrameInt(value string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
