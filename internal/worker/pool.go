package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"lathe/internal/chunk"
	"lathe/internal/concat"
	"lathe/internal/fileutil"
	"lathe/internal/framesource"
	"lathe/internal/journal"
	"lathe/internal/logging"
	"lathe/internal/runstate"
	"lathe/internal/services"
	"lathe/internal/targetquality"
)

// Event reports a chunk state change to the progress consumer.
type Event struct {
	ChunkIndex    int
	State         chunk.State
	FramesDone    int
	FramesInChunk int
	Skipped       bool
}

// Pool runs W workers over the chunk queue.
type Pool struct {
	Queue   *chunk.Queue
	Source  *framesource.Source
	Journal *journal.Journal
	State   *runstate.Store
	RunID   string
	TempDir string

	Workers  int
	MaxTries int
	// TargetQuality is nil when the search is disabled.
	TargetQuality       *targetquality.Search
	IgnoreFrameMismatch bool
	SetThreadAffinity   int

	Logger  *slog.Logger
	OnEvent func(Event)

	sampler *logging.ProgressSampler

	// encodeHook substitutes the subprocess pipeline in tests.
	encodeHook func(ctx context.Context, c *chunk.Chunk, workerID int) (int, error)
}

// Run blocks until the queue drains or the first fatal error. Worker-local
// errors bubble through the queue's error slot; the first permanent chunk
// failure cancels the subprocesses of the other in-flight chunks, and
// in-flight workers drain before Run returns.
func (p *Pool) Run(ctx context.Context) error {
	workers := p.Workers
	if workers < 1 {
		workers = 1
	}
	maxTries := p.MaxTries
	if maxTries < 1 {
		maxTries = 3
	}
	logger := logging.WithComponent(p.loggerOrDefault(), "worker")
	p.sampler = logging.NewProgressSampler(10)
	logger.Info("encode phase started",
		logging.Int("workers", workers),
		logging.Int("chunks", p.Queue.Remaining()))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for workerID := 0; workerID < workers; workerID++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.workerLoop(runCtx, id, maxTries, logger)
			if p.Queue.Err() != nil {
				cancel()
			}
		}(workerID)
	}
	wg.Wait()

	if err := p.Queue.Err(); err != nil {
		return err
	}
	return ctx.Err()
}

func (p *Pool) workerLoop(ctx context.Context, workerID, maxTries int, logger *slog.Logger) {
	for {
		if ctx.Err() != nil {
			return
		}
		c, ok := p.Queue.Claim()
		if !ok {
			return
		}

		if p.skipCompleted(ctx, c) {
			continue
		}

		if err := p.encodeWithRetries(ctx, c, workerID, maxTries, logger); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			logger.Error("chunk failed permanently",
				logging.Int("chunk", c.Index),
				logging.Int("tries", maxTries),
				logging.Error(err))
			p.setState(ctx, c, chunk.StateFailed)
			p.Queue.Fail(err)
			return
		}
	}
}

// skipCompleted honors the journal on resume: a matching record with an
// intact output file means the chunk is never re-encoded.
func (p *Pool) skipCompleted(ctx context.Context, c *chunk.Chunk) bool {
	output := c.OutputPath(p.TempDir)
	if !p.Journal.Accept(c.Index, c.Frames(), output) {
		return false
	}
	p.setState(ctx, c, chunk.StateDone)
	p.emit(Event{ChunkIndex: c.Index, State: chunk.StateDone,
		FramesDone: c.Frames(), FramesInChunk: c.Frames(), Skipped: true})
	return true
}

func (p *Pool) encodeWithRetries(ctx context.Context, c *chunk.Chunk, workerID, maxTries int, logger *slog.Logger) error {
	var lastErr error
	searchNeeded := p.TargetQuality != nil && c.ForcedQ == nil

	for try := 1; try <= maxTries; try++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if p.State != nil {
			_ = p.State.RecordTry(ctx, p.RunID, c.Index)
		}

		if searchNeeded {
			p.setState(ctx, c, chunk.StateInProbe)
			p.emit(Event{ChunkIndex: c.Index, State: chunk.StateInProbe, FramesInChunk: c.Frames()})
			q, err := p.TargetQuality.Run(ctx, c)
			if err != nil {
				// Probe and metric failures count against the chunk's
				// tries; the next try restarts the search from scratch.
				lastErr = err
				if !services.Retryable(err) {
					return err
				}
				logger.Warn("target quality search failed",
					logging.Int("chunk", c.Index),
					logging.Int("try", try),
					logging.Error(err))
				continue
			}
			c.ForcedQ = &q
			logger.Info("target quality selected",
				logging.Int("chunk", c.Index),
				logging.Int("q", q))
		}

		start := time.Now()
		p.setState(ctx, c, chunk.StateInEncode)
		p.emit(Event{ChunkIndex: c.Index, State: chunk.StateInEncode, FramesInChunk: c.Frames()})

		reported, err := p.encodeChunk(ctx, c, workerID)
		if err == nil {
			err = p.validateFrames(c, reported)
		}
		if err != nil {
			lastErr = err
			if !services.Retryable(err) {
				return err
			}
			logger.Warn("encode attempt failed",
				logging.Int("chunk", c.Index),
				logging.Int("try", try),
				logging.Error(err))
			if p.TargetQuality != nil && errors.Is(err, services.ErrMetric) {
				c.ForcedQ = nil
				searchNeeded = true
			}
			continue
		}

		record := journal.Record{
			ChunkIndex: c.Index,
			Frames:     c.Frames(),
			Output:     c.OutputPath(p.TempDir),
			ChosenQ:    c.ForcedQ,
		}
		if err := p.Journal.Mark(record); err != nil {
			return services.Wrap(services.ErrJournal, "encode", "journal flush", "", err)
		}
		if p.State != nil {
			_ = p.State.MarkChunkDone(ctx, p.RunID, c.Index, c.ForcedQ, time.Since(start).Seconds())
		}
		targetquality.CleanupProbes(c)
		p.emit(Event{ChunkIndex: c.Index, State: chunk.StateDone,
			FramesDone: c.Frames(), FramesInChunk: c.Frames()})
		logger.Info("chunk done",
			logging.Int("chunk", c.Index),
			logging.Int("frames", c.Frames()),
			logging.Duration("took", time.Since(start)))
		return nil
	}
	return lastErr
}

// encodeChunk runs all passes for the chunk's final encode.
func (p *Pool) encodeChunk(ctx context.Context, c *chunk.Chunk, workerID int) (int, error) {
	if p.encodeHook != nil {
		return p.encodeHook(ctx, c, workerID)
	}
	if err := fileutil.EnsureDir(c.WorkDir); err != nil {
		return 0, err
	}

	args := c.FinalArgs()
	output := c.OutputPath(p.TempDir)
	logger := logging.WithComponent(p.loggerOrDefault(), "worker")
	onFrames := func(frames int) {
		p.emit(Event{ChunkIndex: c.Index, State: chunk.StateInEncode,
			FramesDone: frames, FramesInChunk: c.Frames()})
		percent := float64(frames) / float64(c.Frames()) * 100
		if p.sampler != nil && p.sampler.ShouldLog(c.Name(), percent) {
			logger.Debug("encode progress",
				logging.Int("chunk", c.Index),
				logging.Int("frames", frames),
				logging.Float64("percent", percent))
		}
	}

	if c.Passes <= 1 || !p.twoPassUsable(c) {
		return p.runPass(ctx, c, workerID, c.Encoder.OnePass(args, output), onFrames)
	}

	fpf := fpfPrefix(c)
	if _, err := p.runPass(ctx, c, workerID, c.Encoder.FirstPass(args, fpf), nil); err != nil {
		return 0, err
	}
	return p.runPass(ctx, c, workerID, c.Encoder.SecondPass(args, fpf, output), onFrames)
}

func (p *Pool) twoPassUsable(c *chunk.Chunk) bool {
	return c.Passes == 2 && c.Encoder.TwoPassSupported()
}

// validateFrames compares the encoder-reported output frame count to the
// chunk's expectation. Encoders that do not report (quiet presets) fall
// back to the recorded ivf header count when available.
func (p *Pool) validateFrames(c *chunk.Chunk, reported int) error {
	if p.IgnoreFrameMismatch {
		return nil
	}
	expected := c.Frames()
	if reported == 0 {
		frames, err := concat.IvfFrameCount(c.OutputPath(p.TempDir))
		if err != nil {
			// Not an ivf container or unreadable header; nothing to check
			// against.
			return nil
		}
		reported = frames
	}
	if reported != expected {
		return services.Wrap(services.ErrEncoderRun, "encode", "frame check",
			fmt.Sprintf("chunk %d produced %d frames, expected %d", c.Index, reported, expected), nil)
	}
	return nil
}

func (p *Pool) emit(event Event) {
	if p.OnEvent != nil {
		p.OnEvent(event)
	}
}

func (p *Pool) setState(ctx context.Context, c *chunk.Chunk, state chunk.State) {
	if p.State == nil {
		return
	}
	_ = p.State.SetChunkState(ctx, p.RunID, c.Index, state)
}

func (p *Pool) loggerOrDefault() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.New(slog.DiscardHandler)
}
