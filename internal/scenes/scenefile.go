package scenes

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"lathe/internal/fileutil"
)

// FileName is the persisted scene plan file inside the working directory.
const FileName = "scenes.json"

// ErrFrameCountMismatch is returned when a persisted scene file disagrees
// with the probed source length.
var ErrFrameCountMismatch = errors.New("scene file frame count mismatch")

type sceneFile struct {
	Scenes []Scene `json:"scenes"`
	Frames int     `json:"frames"`
}

// WriteFile persists the scene list and source frame count atomically.
func WriteFile(path string, scenes []Scene, frameCount int) error {
	payload, err := json.MarshalIndent(sceneFile{Scenes: scenes, Frames: frameCount}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal scene file: %w", err)
	}
	if err := fileutil.WriteFileAtomic(path, payload, 0o644); err != nil {
		return fmt.Errorf("write scene file: %w", err)
	}
	return nil
}

// ReadFile loads a persisted scene plan. When expectedFrames is positive and
// disagrees with the recorded frame count, ErrFrameCountMismatch is returned
// unless ignoreMismatch is set, in which case the file is trusted.
func ReadFile(path string, expectedFrames int, ignoreMismatch bool) ([]Scene, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("read scene file: %w", err)
	}
	var parsed sceneFile
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, 0, fmt.Errorf("parse scene file %s: %w", path, err)
	}
	if err := Validate(parsed.Scenes, parsed.Frames); err != nil {
		return nil, 0, fmt.Errorf("scene file %s: %w", path, err)
	}
	if expectedFrames > 0 && parsed.Frames != expectedFrames && !ignoreMismatch {
		return nil, 0, fmt.Errorf("%w: file has %d frames, source has %d",
			ErrFrameCountMismatch, parsed.Frames, expectedFrames)
	}
	return parsed.Scenes, parsed.Frames, nil
}
