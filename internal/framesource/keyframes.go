package framesource

import (
	"bufio"
	"bytes"
	"context"
	"os/exec"
	"sort"
	"strings"

	"lathe/internal/services"
)

// previousKeyframe returns the largest keyframe index <= frame. The keyframe
// list is probed once per source and cached.
func (s *Source) previousKeyframe(ctx context.Context, frame int) (int, error) {
	s.kfOnce.Do(func() {
		s.keyframes, s.kfErr = probeKeyframes(ctx, s.Input)
	})
	if s.kfErr != nil {
		return 0, s.kfErr
	}
	idx := sort.SearchInts(s.keyframes, frame+1)
	if idx == 0 {
		return 0, nil
	}
	return s.keyframes[idx-1], nil
}

// probeKeyframes lists the video packet flags in decode order and collects
// the indexes flagged as keyframes.
func probeKeyframes(ctx context.Context, input string) ([]int, error) {
	cmd := exec.CommandContext(ctx, "ffprobe", "-v", "error", "-select_streams", "v:0",
		"-show_entries", "packet=flags", "-of", "csv=p=0", "--", input)
	output, err := cmd.Output()
	if err != nil {
		return nil, services.Wrap(services.ErrFrameSource, "plan", "keyframe probe", input, err)
	}

	var keyframes []int
	scanner := bufio.NewScanner(bytes.NewReader(output))
	index := 0
	for scanner.Scan() {
		flags := strings.TrimSpace(scanner.Text())
		if flags == "" {
			continue
		}
		if strings.Contains(flags, "K") {
			keyframes = append(keyframes, index)
		}
		index++
	}
	if len(keyframes) == 0 {
		keyframes = []int{0}
	}
	return keyframes, nil
}
