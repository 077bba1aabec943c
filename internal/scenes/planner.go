package scenes

import (
	"fmt"
	"sort"
)

// PlanInput carries everything the planner needs to produce a scene list.
type PlanInput struct {
	FrameCount     int
	DetectedCuts   []int
	ForceKeyframes []int
	Zones          []Zone
	MinSceneLen    int
	// ExtraSplit is the maximum scene length in frames; zero disables the
	// limit.
	ExtraSplit int
}

// Plan produces the deterministic scene list: boundary union, short-scene
// merging, extra splits, zone attachment. The result partitions
// [0, FrameCount) exactly and is sorted by start frame.
func Plan(input PlanInput) ([]Scene, error) {
	if input.FrameCount <= 0 {
		return nil, fmt.Errorf("plan: frame count must be positive, got %d", input.FrameCount)
	}

	protected := map[int]bool{0: true, input.FrameCount: true}
	boundarySet := map[int]bool{0: true, input.FrameCount: true}

	for _, cut := range input.DetectedCuts {
		if cut > 0 && cut < input.FrameCount {
			boundarySet[cut] = true
		}
	}
	for _, kf := range input.ForceKeyframes {
		if kf <= 0 || kf >= input.FrameCount {
			continue
		}
		boundarySet[kf] = true
		protected[kf] = true
	}
	for _, zone := range input.Zones {
		for _, edge := range []int{zone.Start, zone.End} {
			if edge > 0 && edge < input.FrameCount {
				boundarySet[edge] = true
				protected[edge] = true
			}
		}
	}

	boundaries := make([]int, 0, len(boundarySet))
	for b := range boundarySet {
		boundaries = append(boundaries, b)
	}
	sort.Ints(boundaries)

	boundaries = mergeShortScenes(boundaries, protected, input)
	scenes := splitLongScenes(boundaries, input)

	for i := range scenes {
		scenes[i].Zone = zoneFor(input.Zones, scenes[i].Start, scenes[i].End)
	}
	return scenes, nil
}

// mergeShortScenes collapses runs shorter than min_scene_len by dropping
// boundaries. A short scene merges into the neighbor across its earlier
// boundary when that boundary is removable, otherwise forward. Boundaries
// seeded by forced keyframes or zone endpoints are never removed, so zones
// may legitimately produce short scenes. The final scene may stay short.
func mergeShortScenes(boundaries []int, protected map[int]bool, input PlanInput) []int {
	if input.MinSceneLen <= 1 {
		return boundaries
	}
	minLen := func(start, end int) int {
		if zone := zoneFor(input.Zones, start, end); zone != nil && zone.MinSceneLen != nil {
			return *zone.MinSceneLen
		}
		return input.MinSceneLen
	}

	for {
		removed := false
		for i := 0; i+1 < len(boundaries); i++ {
			start, end := boundaries[i], boundaries[i+1]
			if end-start >= minLen(start, end) {
				continue
			}
			if !protected[start] {
				boundaries = append(boundaries[:i], boundaries[i+1:]...)
				removed = true
				break
			}
			if !protected[end] {
				boundaries = append(boundaries[:i+1], boundaries[i+2:]...)
				removed = true
				break
			}
		}
		if !removed {
			return boundaries
		}
	}
}

// splitLongScenes inserts evenly spaced split points into every scene longer
// than the extra-split limit.
func splitLongScenes(boundaries []int, input PlanInput) []Scene {
	limit := func(start, end int) int {
		if zone := zoneFor(input.Zones, start, end); zone != nil && zone.ExtraSplit != nil {
			return *zone.ExtraSplit
		}
		return input.ExtraSplit
	}

	var scenes []Scene
	for i := 0; i+1 < len(boundaries); i++ {
		start, end := boundaries[i], boundaries[i+1]
		distance := end - start
		splitSize := limit(start, end)
		if splitSize <= 0 || distance <= splitSize {
			scenes = append(scenes, Scene{Start: start, End: end})
			continue
		}
		pieces := distance/splitSize + 1
		prev := start
		for n := 1; n < pieces; n++ {
			cut := start + distance*n/pieces
			scenes = append(scenes, Scene{Start: prev, End: cut})
			prev = cut
		}
		scenes = append(scenes, Scene{Start: prev, End: end})
	}
	return scenes
}

func zoneFor(zones []Zone, start, end int) *Zone {
	for i := range zones {
		if zones[i].Contains(start, end) {
			return &zones[i]
		}
	}
	return nil
}

// Validate checks the partition invariants: scenes are sorted, pairwise
// disjoint, and cover [0, frameCount) exactly.
func Validate(scenes []Scene, frameCount int) error {
	if len(scenes) == 0 {
		return fmt.Errorf("empty scene list")
	}
	if scenes[0].Start != 0 {
		return fmt.Errorf("first scene starts at %d, want 0", scenes[0].Start)
	}
	for i, scene := range scenes {
		if scene.End <= scene.Start {
			return fmt.Errorf("scene %d has non-positive length [%d,%d)", i, scene.Start, scene.End)
		}
		if i > 0 && scene.Start != scenes[i-1].End {
			return fmt.Errorf("gap between scene %d (ends %d) and scene %d (starts %d)",
				i-1, scenes[i-1].End, i, scene.Start)
		}
	}
	if last := scenes[len(scenes)-1].End; last != frameCount {
		return fmt.Errorf("last scene ends at %d, want %d", last, frameCount)
	}
	return nil
}
