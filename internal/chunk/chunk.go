package chunk

import (
	"fmt"
	"path/filepath"

	"lathe/internal/encoder"
	"lathe/internal/scenes"
)

// State tracks a chunk through its lifecycle. Transitions are monotone
// within a run except that a failed chunk may revert to pending on retry.
type State string

const (
	StatePending  State = "pending"
	StateInProbe  State = "in_probe"
	StateInEncode State = "in_encode"
	StateDone     State = "done"
	StateFailed   State = "failed"
)

// Chunk is a contiguous half-open frame range encoded as a single unit.
type Chunk struct {
	Index   int
	Start   int
	End     int
	Encoder encoder.Encoder
	// Args is the resolved encoder parameter list after zone overrides.
	Args []string
	// ForcedQ is set by the target-quality search or by a zone quantizer;
	// nil means the quantizer already embedded in Args applies.
	ForcedQ *int
	Passes  int
	// WorkDir is this chunk's private directory inside the run's working
	// directory. No other worker touches it.
	WorkDir   string
	FrameRate float64
}

// Frames returns the number of source frames in the chunk.
func (c *Chunk) Frames() int {
	return c.End - c.Start
}

// Name returns the zero-padded chunk identifier used in file names.
func (c *Chunk) Name() string {
	return fmt.Sprintf("%05d", c.Index)
}

// OutputPath returns the finished per-chunk file inside the run's encode
// directory.
func (c *Chunk) OutputPath(tempDir string) string {
	return filepath.Join(tempDir, "encode", c.Name()+"."+c.Encoder.OutputExtension())
}

// FinalArgs returns the argument list with ForcedQ substituted when set.
func (c *Chunk) FinalArgs() []string {
	if c.ForcedQ == nil {
		return append([]string(nil), c.Args...)
	}
	return c.Encoder.SubstituteQuantizer(c.Args, *c.ForcedQ)
}

// FromScenes materializes the chunk list from a scene plan.
func FromScenes(plan []scenes.Scene, defaultEncoder encoder.Encoder, defaultArgs []string, passes int, tempDir string, frameRate float64) []*Chunk {
	chunks := make([]*Chunk, 0, len(plan))
	for i, scene := range plan {
		enc := defaultEncoder
		args := scene.Zone.ArgsFor(defaultArgs)
		chunkPasses := passes
		if scene.Zone != nil {
			enc = scene.Zone.Encoder
			if scene.Zone.Reset {
				chunkPasses = enc.DefaultPasses()
			}
		}
		c := &Chunk{
			Index:     i,
			Start:     scene.Start,
			End:       scene.End,
			Encoder:   enc,
			Args:      args,
			Passes:    chunkPasses,
			WorkDir:   filepath.Join(tempDir, "split", fmt.Sprintf("%05d", i)),
			FrameRate: frameRate,
		}
		if q, ok := enc.ExtractQuantizer(args); ok && scene.Zone != nil && scene.Zone.Reset {
			// A reset zone's quantizer is authoritative; record it so target
			// quality search is skipped for the chunk.
			c.ForcedQ = &q
		}
		chunks = append(chunks, c)
	}
	return chunks
}
