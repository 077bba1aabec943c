package encoder

// Pass composition. Every returned slice is a full argv including the binary
// name; the caller pipes y4m frames to standard input and reads progress from
// standard error.

const nullDevice = "/dev/null"

// OnePass composes the command for a single-pass encode writing to output.
func (e Encoder) OnePass(params []string, output string) []string {
	switch e {
	case Aom:
		return join([]string{"aomenc", "--passes=1"}, params, []string{"-o", output, "-"})
	case Rav1e:
		return join([]string{"rav1e", "-", "-y"}, params, []string{"--output", output})
	case Vpx:
		return join([]string{"vpxenc", "--passes=1"}, params, []string{"-o", output, "-"})
	case SvtAV1:
		return join([]string{"SvtAv1EncApp", "-i", "stdin", "--progress", "2"}, params, []string{"-b", output})
	case X264:
		return join([]string{"x264", "--stitchable", "--log-level", "error", "--demuxer", "y4m"}, params, []string{"-", "-o", output})
	case X265:
		return join([]string{"x265", "--y4m"}, params, []string{"--input", "-", "-o", output})
	}
	return nil
}

// FirstPass composes the analysis pass of a two-pass encode. fpf is the
// first-pass file prefix inside the chunk working directory.
func (e Encoder) FirstPass(params []string, fpf string) []string {
	switch e {
	case Aom:
		return join([]string{"aomenc", "--passes=2", "--pass=1"}, params, []string{"--fpf=" + fpf + ".log", "-o", nullDevice, "-"})
	case Rav1e:
		return join([]string{"rav1e", "-", "-y", "--quiet"}, params, []string{"--first-pass", fpf + ".stat", "--output", nullDevice})
	case Vpx:
		return join([]string{"vpxenc", "--passes=2", "--pass=1"}, params, []string{"--fpf=" + fpf + ".log", "-o", nullDevice, "-"})
	case SvtAV1:
		return join([]string{"SvtAv1EncApp", "-i", "stdin", "--progress", "2", "--irefresh-type", "2"}, params, []string{"--pass", "1", "--stats", fpf + ".stat", "-b", nullDevice})
	case X264:
		return join([]string{"x264", "--stitchable", "--log-level", "error", "--pass", "1", "--demuxer", "y4m"}, params, []string{"--stats", fpf + ".log", "-", "-o", nullDevice})
	case X265:
		return join([]string{"x265", "--repeat-headers", "--log-level", "error", "--pass", "1", "--y4m"}, params, []string{"--stats", fpf + ".log", "--analysis-reuse-file", fpf + "_analysis.dat", "--input", "-", "-o", nullDevice})
	}
	return nil
}

// SecondPass composes the final pass of a two-pass encode writing to output.
func (e Encoder) SecondPass(params []string, fpf, output string) []string {
	switch e {
	case Aom:
		return join([]string{"aomenc", "--passes=2", "--pass=2"}, params, []string{"--fpf=" + fpf + ".log", "-o", output, "-"})
	case Rav1e:
		return join([]string{"rav1e", "-", "-y", "--quiet"}, params, []string{"--second-pass", fpf + ".stat", "--output", output})
	case Vpx:
		return join([]string{"vpxenc", "--passes=2", "--pass=2"}, params, []string{"--fpf=" + fpf + ".log", "-o", output, "-"})
	case SvtAV1:
		return join([]string{"SvtAv1EncApp", "-i", "stdin", "--progress", "2", "--irefresh-type", "2"}, params, []string{"--pass", "2", "--stats", fpf + ".stat", "-b", output})
	case X264:
		return join([]string{"x264", "--stitchable", "--log-level", "error", "--pass", "2", "--demuxer", "y4m"}, params, []string{"--stats", fpf + ".log", "-", "-o", output})
	case X265:
		return join([]string{"x265", "--repeat-headers", "--log-level", "error", "--pass", "2", "--y4m"}, params, []string{"--stats", fpf + ".log", "--analysis-reuse-file", fpf + "_analysis.dat", "--input", "-", "-o", output})
	}
	return nil
}

func join(groups ...[]string) []string {
	size := 0
	for _, group := range groups {
		size += len(group)
	}
	out := make([]string, 0, size)
	for _, group := range groups {
		out = append(out, group...)
	}
	return out
}
