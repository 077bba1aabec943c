package runstate_test

import (
	"context"
	"testing"

	"lathe/internal/chunk"
	"lathe/internal/encoder"
	"lathe/internal/runstate"
	"lathe/internal/scenes"
)

func testChunks(t *testing.T) []*chunk.Chunk {
	t.Helper()
	plan := []scenes.Scene{{Start: 0, End: 125}, {Start: 125, End: 250}, {Start: 250, End: 500}}
	return chunk.FromScenes(plan, encoder.SvtAV1, encoder.SvtAV1.DefaultArgs(), 1, t.TempDir(), 24)
}

func openStore(t *testing.T) *runstate.Store {
	t.Helper()
	store, err := runstate.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStartRunSeedsChunks(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	run, err := store.StartRun(ctx, "in.mkv", "out.mkv", "svt-av1", 4, 500, testChunks(t))
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	if run.ID == "" {
		t.Fatal("run id missing")
	}

	rows, err := store.Chunks(ctx, run.ID)
	if err != nil {
		t.Fatalf("Chunks: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d chunk rows, want 3", len(rows))
	}
	for _, row := range rows {
		if row.State != chunk.StatePending {
			t.Fatalf("chunk %d state = %s", row.ChunkIndex, row.State)
		}
	}
}

func TestChunkLifecycle(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	run, err := store.StartRun(ctx, "in.mkv", "out.mkv", "svt-av1", 4, 500, testChunks(t))
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}

	if err := store.SetChunkState(ctx, run.ID, 1, chunk.StateInEncode); err != nil {
		t.Fatalf("SetChunkState: %v", err)
	}
	if err := store.RecordTry(ctx, run.ID, 1); err != nil {
		t.Fatalf("RecordTry: %v", err)
	}
	q := 31
	if err := store.MarkChunkDone(ctx, run.ID, 1, &q, 12.5); err != nil {
		t.Fatalf("MarkChunkDone: %v", err)
	}

	rows, err := store.Chunks(ctx, run.ID)
	if err != nil {
		t.Fatalf("Chunks: %v", err)
	}
	row := rows[1]
	if row.State != chunk.StateDone || row.Tries != 1 {
		t.Fatalf("row = %+v", row)
	}
	if row.ChosenQ == nil || *row.ChosenQ != 31 {
		t.Fatalf("chosen q = %v", row.ChosenQ)
	}
	if row.EncodeSeconds == nil || *row.EncodeSeconds != 12.5 {
		t.Fatalf("encode seconds = %v", row.EncodeSeconds)
	}

	summary, err := store.Summarize(ctx, run.ID)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if summary.Total != 3 || summary.Done != 1 || summary.Pending != 2 {
		t.Fatalf("summary = %+v", summary)
	}
}

func TestLatestRunAndFinish(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	if run, err := store.LatestRun(ctx); err != nil || run != nil {
		t.Fatalf("empty store LatestRun = %v, %v", run, err)
	}

	run, err := store.StartRun(ctx, "in.mkv", "out.mkv", "aom", 2, 100, testChunks(t))
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	if err := store.FinishRun(ctx, run.ID, runstate.RunCompleted); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	latest, err := store.LatestRun(ctx)
	if err != nil {
		t.Fatalf("LatestRun: %v", err)
	}
	if latest == nil || latest.Status != runstate.RunCompleted {
		t.Fatalf("latest = %+v", latest)
	}
	if latest.FinishedAt == nil {
		t.Fatal("finished_at missing")
	}
}

func TestStartRunReplacesPriorRunForInput(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	first, err := store.StartRun(ctx, "in.mkv", "out.mkv", "aom", 2, 100, testChunks(t))
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	second, err := store.StartRun(ctx, "in.mkv", "out.mkv", "aom", 2, 100, testChunks(t))
	if err != nil {
		t.Fatalf("second StartRun: %v", err)
	}
	if first.ID == second.ID {
		t.Fatal("expected a fresh run id")
	}
	rows, err := store.Chunks(ctx, first.ID)
	if err != nil {
		t.Fatalf("Chunks: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("stale run rows survived: %d", len(rows))
	}
}
