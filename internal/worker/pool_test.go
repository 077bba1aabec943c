package worker_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"lathe/internal/chunk"
	"lathe/internal/encoder"
	"lathe/internal/framesource"
	"lathe/internal/journal"
	"lathe/internal/scenes"
	"lathe/internal/worker"
)

type fixture struct {
	pool    *worker.Pool
	chunks  []*chunk.Chunk
	tempDir string
}

func newFixture(t *testing.T, lengths ...int) *fixture {
	t.Helper()
	tempDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(tempDir, "encode"), 0o755); err != nil {
		t.Fatalf("mkdir encode: %v", err)
	}

	var plan []scenes.Scene
	start := 0
	for _, length := range lengths {
		plan = append(plan, scenes.Scene{Start: start, End: start + length})
		start += length
	}
	chunks := chunk.FromScenes(plan, encoder.SvtAV1, encoder.SvtAV1.DefaultArgs(), 1, tempDir, 24)

	j, err := journal.Open(filepath.Join(tempDir, journal.FileName))
	if err != nil {
		t.Fatalf("journal.Open: %v", err)
	}
	source, err := framesource.New(framesource.MethodSelect, "input.mkv", tempDir, "yuv420p10le")
	if err != nil {
		t.Fatalf("framesource.New: %v", err)
	}

	return &fixture{
		pool: &worker.Pool{
			Queue:    chunk.NewQueue(chunks, chunk.OrderSequential),
			Source:   source,
			Journal:  j,
			TempDir:  tempDir,
			Workers:  2,
			MaxTries: 3,
		},
		chunks:  chunks,
		tempDir: tempDir,
	}
}

// fakeEncode writes the chunk output file and reports the exact frame count.
func fakeEncode(f *fixture) func(context.Context, *chunk.Chunk, int) (int, error) {
	return func(_ context.Context, c *chunk.Chunk, _ int) (int, error) {
		output := c.OutputPath(f.tempDir)
		if err := os.WriteFile(output, []byte("segment"), 0o644); err != nil {
			return 0, err
		}
		return c.Frames(), nil
	}
}

func TestPoolEncodesAllChunks(t *testing.T) {
	f := newFixture(t, 500, 2000, 1000)
	var calls atomic.Int32
	inner := fakeEncode(f)
	restore := f.pool.SetEncodeHookForTests(func(ctx context.Context, c *chunk.Chunk, id int) (int, error) {
		calls.Add(1)
		return inner(ctx, c, id)
	})
	defer restore()

	if err := f.pool.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("encode calls = %d, want 3", calls.Load())
	}
	if f.pool.Journal.Len() != 3 {
		t.Fatalf("journal records = %d, want 3", f.pool.Journal.Len())
	}
}

func TestPoolSkipsJournaledChunks(t *testing.T) {
	f := newFixture(t, 125, 115, 250, 240)
	// Pre-complete chunks 0 and 2: journal records plus intact outputs.
	for _, index := range []int{0, 2} {
		c := f.chunks[index]
		output := c.OutputPath(f.tempDir)
		if err := os.WriteFile(output, []byte("done"), 0o644); err != nil {
			t.Fatalf("write output: %v", err)
		}
		if err := f.pool.Journal.Mark(journal.Record{
			ChunkIndex: c.Index, Frames: c.Frames(), Output: output,
		}); err != nil {
			t.Fatalf("Mark: %v", err)
		}
	}

	var encoded sync.Map
	inner := fakeEncode(f)
	restore := f.pool.SetEncodeHookForTests(func(ctx context.Context, c *chunk.Chunk, id int) (int, error) {
		encoded.Store(c.Index, true)
		return inner(ctx, c, id)
	})
	defer restore()

	if err := f.pool.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, index := range []int{0, 2} {
		if _, hit := encoded.Load(index); hit {
			t.Fatalf("journaled chunk %d was re-encoded", index)
		}
	}
	for _, index := range []int{1, 3} {
		if _, hit := encoded.Load(index); !hit {
			t.Fatalf("pending chunk %d was not encoded", index)
		}
	}
}

func TestPoolRetriesThenSucceeds(t *testing.T) {
	f := newFixture(t, 300)
	var tries atomic.Int32
	inner := fakeEncode(f)
	restore := f.pool.SetEncodeHookForTests(func(ctx context.Context, c *chunk.Chunk, id int) (int, error) {
		if tries.Add(1) < 3 {
			return 0, errors.New("encoder crashed")
		}
		return inner(ctx, c, id)
	})
	defer restore()

	if err := f.pool.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if tries.Load() != 3 {
		t.Fatalf("tries = %d, want 3", tries.Load())
	}
}

func TestPoolAbortsAfterMaxTries(t *testing.T) {
	f := newFixture(t, 300, 300)
	boom := errors.New("encoder crashed")
	restore := f.pool.SetEncodeHookForTests(func(context.Context, *chunk.Chunk, int) (int, error) {
		return 0, boom
	})
	defer restore()

	err := f.pool.Run(context.Background())
	if err == nil {
		t.Fatal("expected failure after exhausting tries")
	}
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v", err)
	}
}

func TestPoolFrameMismatchFailsUnlessIgnored(t *testing.T) {
	f := newFixture(t, 300)
	restore := f.pool.SetEncodeHookForTests(func(_ context.Context, c *chunk.Chunk, _ int) (int, error) {
		output := c.OutputPath(f.tempDir)
		if err := os.WriteFile(output, []byte("short"), 0o644); err != nil {
			return 0, err
		}
		return c.Frames() - 1, nil
	})
	defer restore()

	if err := f.pool.Run(context.Background()); err == nil {
		t.Fatal("expected frame mismatch failure")
	}

	f2 := newFixture(t, 300)
	f2.pool.IgnoreFrameMismatch = true
	restore2 := f2.pool.SetEncodeHookForTests(func(_ context.Context, c *chunk.Chunk, _ int) (int, error) {
		output := c.OutputPath(f2.tempDir)
		if err := os.WriteFile(output, []byte("short"), 0o644); err != nil {
			return 0, err
		}
		return c.Frames() - 1, nil
	})
	defer restore2()
	if err := f2.pool.Run(context.Background()); err != nil {
		t.Fatalf("ignore-frame-mismatch run failed: %v", err)
	}
}

func TestPoolEmitsDoneEvents(t *testing.T) {
	f := newFixture(t, 100, 200)
	var mu sync.Mutex
	var done []int
	f.pool.OnEvent = func(event worker.Event) {
		if event.State == chunk.StateDone {
			mu.Lock()
			done = append(done, event.ChunkIndex)
			mu.Unlock()
		}
	}
	restore := f.pool.SetEncodeHookForTests(fakeEncode(f))
	defer restore()

	if err := f.pool.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(done) != 2 {
		t.Fatalf("done events = %v", done)
	}
}

func TestPoolResumeProducesRemainingChunksOnly(t *testing.T) {
	// Simulate the interrupted-run scenario: first run completes a subset,
	// the resumed run encodes exactly the remainder.
	f := newFixture(t, 125, 115, 250, 240, 100, 100, 100, 100)
	completed := map[int]bool{0: true, 1: true, 3: true, 7: true}
	for index := range completed {
		c := f.chunks[index]
		output := c.OutputPath(f.tempDir)
		if err := os.WriteFile(output, []byte(fmt.Sprintf("chunk-%d", index)), 0o644); err != nil {
			t.Fatalf("write output: %v", err)
		}
		if err := f.pool.Journal.Mark(journal.Record{
			ChunkIndex: c.Index, Frames: c.Frames(), Output: output,
		}); err != nil {
			t.Fatalf("Mark: %v", err)
		}
	}

	var calls atomic.Int32
	inner := fakeEncode(f)
	restore := f.pool.SetEncodeHookForTests(func(ctx context.Context, c *chunk.Chunk, id int) (int, error) {
		if completed[c.Index] {
			t.Errorf("completed chunk %d re-encoded", c.Index)
		}
		calls.Add(1)
		return inner(ctx, c, id)
	})
	defer restore()

	if err := f.pool.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if calls.Load() != 4 {
		t.Fatalf("resumed run encoded %d chunks, want 4", calls.Load())
	}
	// Completed outputs are untouched.
	for index := range completed {
		data, err := os.ReadFile(f.chunks[index].OutputPath(f.tempDir))
		if err != nil {
			t.Fatalf("read output: %v", err)
		}
		if string(data) != fmt.Sprintf("chunk-%d", index) {
			t.Fatalf("chunk %d output rewritten", index)
		}
	}
}
