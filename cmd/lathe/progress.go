package main

import (
	"fmt"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"lathe/internal/chunk"
	"lathe/internal/worker"
)

// encodeProgress renders the frame-level progress bar. Events arrive from
// multiple workers; per-chunk frame counts are tracked so out-of-order
// updates never move the bar backwards.
type encodeProgress struct {
	mu          sync.Mutex
	bar         *progressbar.ProgressBar
	perChunk    map[int]int
	totalFrames int
	doneChunks  int
	totalChunks int
	interactive bool
}

func newEncodeProgress() *encodeProgress {
	return &encodeProgress{
		perChunk:    make(map[int]int),
		interactive: isatty.IsTerminal(os.Stderr.Fd()),
	}
}

// start initializes the bar once the plan is known.
func (p *encodeProgress) start(totalFrames, totalChunks int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.totalFrames = totalFrames
	p.totalChunks = totalChunks
	if !p.interactive {
		return
	}
	p.bar = progressbar.NewOptions(totalFrames,
		progressbar.OptionSetDescription("encoding"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("fps"),
		progressbar.OptionShowIts(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionClearOnFinish(),
	)
}

func (p *encodeProgress) handle(event worker.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if frames := event.FramesDone; frames > p.perChunk[event.ChunkIndex] {
		p.perChunk[event.ChunkIndex] = frames
	}
	if event.State == chunk.StateDone {
		p.perChunk[event.ChunkIndex] = event.FramesInChunk
		p.doneChunks++
	}

	if p.bar == nil {
		return
	}
	total := 0
	for _, frames := range p.perChunk {
		total += frames
	}
	_ = p.bar.Set(total)
	p.bar.Describe(fmt.Sprintf("encoding %d/%d chunks", p.doneChunks, p.totalChunks))
}

func (p *encodeProgress) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}
