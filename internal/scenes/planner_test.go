package scenes_test

import (
	"path/filepath"
	"testing"

	"lathe/internal/encoder"
	"lathe/internal/scenes"
)

func mustPlan(t *testing.T, input scenes.PlanInput) []scenes.Scene {
	t.Helper()
	plan, err := scenes.Plan(input)
	if err != nil {
		t.Fatalf("Plan returned error: %v", err)
	}
	if err := scenes.Validate(plan, input.FrameCount); err != nil {
		t.Fatalf("plan violates partition invariants: %v", err)
	}
	return plan
}

func TestPlanPartitionsSource(t *testing.T) {
	plan := mustPlan(t, scenes.PlanInput{
		FrameCount:   10000,
		DetectedCuts: []int{250, 1000, 8000},
		MinSceneLen:  24,
		ExtraSplit:   240,
	})

	total := 0
	for _, scene := range plan {
		total += scene.Frames()
		if scene.Frames() > 240 {
			t.Fatalf("scene [%d,%d) exceeds extra-split limit", scene.Start, scene.End)
		}
	}
	if total != 10000 {
		t.Fatalf("scenes cover %d frames, want 10000", total)
	}
	// 250 -> 2 pieces, 750 -> 4, 7000 -> 30, 2000 -> 9.
	if len(plan) != 45 {
		t.Fatalf("got %d scenes, want 45", len(plan))
	}
	if plan[0].Start != 0 || plan[len(plan)-1].End != 10000 {
		t.Fatalf("plan endpoints wrong: %v ... %v", plan[0], plan[len(plan)-1])
	}
}

func TestPlanMergesShortScenes(t *testing.T) {
	plan := mustPlan(t, scenes.PlanInput{
		FrameCount:   1000,
		DetectedCuts: []int{10, 500},
		MinSceneLen:  24,
	})
	// The 10-frame opener merges into its neighbor; the cut at 500 stays.
	if len(plan) != 2 {
		t.Fatalf("got %d scenes, want 2: %v", len(plan), plan)
	}
	if plan[0].End != 500 {
		t.Fatalf("first scene = [%d,%d), want [0,500)", plan[0].Start, plan[0].End)
	}
}

func TestPlanKeepsForcedKeyframes(t *testing.T) {
	plan := mustPlan(t, scenes.PlanInput{
		FrameCount:     1000,
		DetectedCuts:   []int{12},
		ForceKeyframes: []int{10, 700},
		MinSceneLen:    24,
	})
	starts := map[int]bool{}
	for _, scene := range plan {
		starts[scene.Start] = true
	}
	for _, kf := range []int{10, 700} {
		if !starts[kf] {
			t.Fatalf("forced keyframe %d is not a scene start: %v", kf, plan)
		}
	}
	// The detected cut at 12 creates a 2-frame scene after the forced
	// keyframe at 10; the cut must merge away, the keyframe must not.
	for _, scene := range plan {
		if scene.Start == 12 || scene.End == 12 {
			t.Fatalf("mergeable cut at 12 survived: %v", plan)
		}
	}
}

func TestPlanZoneEndpointsForceCuts(t *testing.T) {
	zones := []scenes.Zone{
		{Start: 136, End: 169, Encoder: encoder.Aom, Args: []string{"--cq-level=32"}},
		{Start: 169, End: 1330, Encoder: encoder.Rav1e, Reset: true, Args: []string{"-s", "3", "-q", "42"}},
	}
	plan := mustPlan(t, scenes.PlanInput{
		FrameCount:  2000,
		MinSceneLen: 24,
		Zones:       zones,
	})

	boundaries := map[int]bool{}
	for _, scene := range plan {
		boundaries[scene.Start] = true
	}
	for _, cut := range []int{136, 169, 1330} {
		if !boundaries[cut] {
			t.Fatalf("zone endpoint %d missing from plan: %v", cut, plan)
		}
	}

	for _, scene := range plan {
		switch {
		case scene.Start >= 169 && scene.End <= 1330:
			if scene.Zone == nil || scene.Zone.Encoder != encoder.Rav1e || !scene.Zone.Reset {
				t.Fatalf("scene [%d,%d) missing rav1e reset zone", scene.Start, scene.End)
			}
		case scene.Start >= 136 && scene.End <= 169:
			if scene.Zone == nil || scene.Zone.Encoder != encoder.Aom {
				t.Fatalf("scene [%d,%d) missing aom zone", scene.Start, scene.End)
			}
		default:
			if scene.Zone != nil {
				t.Fatalf("scene [%d,%d) unexpectedly zoned", scene.Start, scene.End)
			}
		}
	}
}

func TestPlanShortZoneSurvivesMinSceneLen(t *testing.T) {
	zones := []scenes.Zone{{Start: 136, End: 150, Encoder: encoder.Aom, Args: []string{"--cq-level=32"}}}
	plan := mustPlan(t, scenes.PlanInput{
		FrameCount:  1000,
		MinSceneLen: 24,
		Zones:       zones,
	})
	var found bool
	for _, scene := range plan {
		if scene.Start == 136 && scene.End == 150 {
			found = true
		}
	}
	if !found {
		t.Fatalf("14-frame zone was merged away: %v", plan)
	}
}

func TestPlanIdempotentOverSceneFile(t *testing.T) {
	plan := mustPlan(t, scenes.PlanInput{
		FrameCount:   5000,
		DetectedCuts: []int{100, 900, 2400},
		MinSceneLen:  24,
		ExtraSplit:   240,
	})

	path := filepath.Join(t.TempDir(), scenes.FileName)
	if err := scenes.WriteFile(path, plan, 5000); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	reloaded, frames, err := scenes.ReadFile(path, 5000, false)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if frames != 5000 {
		t.Fatalf("frames = %d, want 5000", frames)
	}
	if len(reloaded) != len(plan) {
		t.Fatalf("reloaded %d scenes, want %d", len(reloaded), len(plan))
	}
	for i := range plan {
		if reloaded[i].Start != plan[i].Start || reloaded[i].End != plan[i].End {
			t.Fatalf("scene %d changed across rehydration: %v vs %v", i, reloaded[i], plan[i])
		}
	}
}

func TestReadFileFrameMismatch(t *testing.T) {
	plan := mustPlan(t, scenes.PlanInput{FrameCount: 100, MinSceneLen: 1})
	path := filepath.Join(t.TempDir(), scenes.FileName)
	if err := scenes.WriteFile(path, plan, 100); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, _, err := scenes.ReadFile(path, 200, false); err == nil {
		t.Fatal("expected frame count mismatch error")
	}
	if _, _, err := scenes.ReadFile(path, 200, true); err != nil {
		t.Fatalf("ignore-frame-mismatch should trust the file: %v", err)
	}
}
