package scenes

import (
	"lathe/internal/encoder"
)

// Scene is a contiguous half-open frame range [Start, End). A scene carries
// the zone override that applies to it, if any.
type Scene struct {
	Start int   `json:"start"`
	End   int   `json:"end"`
	Zone  *Zone `json:"zone,omitempty"`
}

// Frames returns the number of source frames in the scene.
func (s Scene) Frames() int {
	return s.End - s.Start
}

// Zone is a user-specified frame range with alternative encoder settings.
// Reset replaces the default argument list entirely; otherwise the zone's
// arguments override matching defaults and append the rest.
type Zone struct {
	Start       int             `json:"start"`
	End         int             `json:"end"`
	Encoder     encoder.Encoder `json:"encoder"`
	Reset       bool            `json:"reset"`
	Args        []string        `json:"args,omitempty"`
	MinSceneLen *int            `json:"min_scene_len,omitempty"`
	ExtraSplit  *int            `json:"extra_split,omitempty"`
}

// Contains reports whether the frame range [start, end) lies inside the
// zone.
func (z *Zone) Contains(start, end int) bool {
	if z == nil {
		return false
	}
	return start >= z.Start && end <= z.End
}
