package runstate

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"lathe/internal/chunk"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever schema.sql changes. Stale databases are
// recreated; run state is observability data, not source of truth.
const schemaVersion = 1

// DBName is the database file inside the working directory.
const DBName = "state.db"

// RunStatus tracks the overall run lifecycle.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Run is a row in the runs table.
type Run struct {
	ID         string
	InputPath  string
	OutputPath string
	Encoder    string
	Workers    int
	FrameCount int
	Status     RunStatus
	StartedAt  time.Time
	FinishedAt *time.Time
}

// ChunkRow is a row in the chunks table.
type ChunkRow struct {
	ChunkIndex    int
	StartFrame    int
	EndFrame      int
	State         chunk.State
	Tries         int
	ChosenQ       *int
	EncodeSeconds *float64
	UpdatedAt     time.Time
}

// Store manages run-state persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the state database inside dir.
func Open(dir string) (*Store, error) {
	dbPath := filepath.Join(dir, DBName)
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		// Observability-only data: recreate instead of migrating.
		for _, stmt := range []string{"DROP TABLE IF EXISTS chunks", "DROP TABLE IF EXISTS runs", "DROP TABLE IF EXISTS schema_version"} {
			if _, err := s.db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("reset stale schema: %w", err)
			}
		}
		return s.createSchema(ctx)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return tx.Commit()
}

// StartRun inserts a run row and seeds a pending chunk row per plan entry.
// An existing run for the same input is replaced; the journal decides what
// actually gets re-encoded.
func (s *Store) StartRun(ctx context.Context, input, output, enc string, workers, frameCount int, chunks []*chunk.Chunk) (*Run, error) {
	run := &Run{
		ID:         uuid.NewString(),
		InputPath:  input,
		OutputPath: output,
		Encoder:    enc,
		Workers:    workers,
		FrameCount: frameCount,
		Status:     RunRunning,
		StartedAt:  time.Now().UTC(),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin run tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM runs WHERE input_path = ?", input); err != nil {
		return nil, fmt.Errorf("clear stale run: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, input_path, output_path, encoder, workers, frame_count, status, started_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.InputPath, run.OutputPath, run.Encoder, run.Workers,
		run.FrameCount, run.Status, run.StartedAt.Format(time.RFC3339Nano),
	); err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, c := range chunks {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chunks (run_id, chunk_index, start_frame, end_frame, state, updated_at)
             VALUES (?, ?, ?, ?, ?, ?)`,
			run.ID, c.Index, c.Start, c.End, chunk.StatePending, now,
		); err != nil {
			return nil, fmt.Errorf("insert chunk %d: %w", c.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit run: %w", err)
	}
	return run, nil
}

// SetChunkState records a chunk's new state. It leaves the try counter
// alone; RecordTry maintains that.
func (s *Store) SetChunkState(ctx context.Context, runID string, index int, state chunk.State) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE chunks SET state = ?, updated_at = ? WHERE run_id = ? AND chunk_index = ?`,
		state, time.Now().UTC().Format(time.RFC3339Nano), runID, index,
	)
	if err != nil {
		return fmt.Errorf("set chunk %d state: %w", index, err)
	}
	return nil
}

// RecordTry increments the try counter for a chunk.
func (s *Store) RecordTry(ctx context.Context, runID string, index int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE chunks SET tries = tries + 1, updated_at = ? WHERE run_id = ? AND chunk_index = ?`,
		time.Now().UTC().Format(time.RFC3339Nano), runID, index,
	)
	if err != nil {
		return fmt.Errorf("record try for chunk %d: %w", index, err)
	}
	return nil
}

// MarkChunkDone finalizes a chunk row.
func (s *Store) MarkChunkDone(ctx context.Context, runID string, index int, chosenQ *int, encodeSeconds float64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE chunks SET state = ?, chosen_q = ?, encode_seconds = ?, updated_at = ?
         WHERE run_id = ? AND chunk_index = ?`,
		chunk.StateDone, nullableInt(chosenQ), encodeSeconds,
		time.Now().UTC().Format(time.RFC3339Nano), runID, index,
	)
	if err != nil {
		return fmt.Errorf("mark chunk %d done: %w", index, err)
	}
	return nil
}

// FinishRun records the run outcome.
func (s *Store) FinishRun(ctx context.Context, runID string, status RunStatus) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, finished_at = ? WHERE id = ?`,
		status, time.Now().UTC().Format(time.RFC3339Nano), runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// LatestRun returns the most recently started run, or nil when the database
// is empty.
func (s *Store) LatestRun(ctx context.Context) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, input_path, output_path, encoder, workers, frame_count, status, started_at, finished_at
         FROM runs ORDER BY started_at DESC LIMIT 1`)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest run: %w", err)
	}
	return run, nil
}

// Chunks returns the chunk rows for a run ordered by index.
func (s *Store) Chunks(ctx context.Context, runID string) ([]ChunkRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chunk_index, start_frame, end_frame, state, tries, chosen_q, encode_seconds, updated_at
         FROM chunks WHERE run_id = ? ORDER BY chunk_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	defer rows.Close()

	var out []ChunkRow
	for rows.Next() {
		var row ChunkRow
		var state string
		var chosenQ sql.NullInt64
		var seconds sql.NullFloat64
		var updated string
		if err := rows.Scan(&row.ChunkIndex, &row.StartFrame, &row.EndFrame, &state,
			&row.Tries, &chosenQ, &seconds, &updated); err != nil {
			return nil, fmt.Errorf("scan chunk row: %w", err)
		}
		row.State = chunk.State(state)
		if chosenQ.Valid {
			q := int(chosenQ.Int64)
			row.ChosenQ = &q
		}
		if seconds.Valid {
			v := seconds.Float64
			row.EncodeSeconds = &v
		}
		row.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
		out = append(out, row)
	}
	return out, rows.Err()
}

// Summary aggregates chunk states for a run.
type Summary struct {
	Total    int
	Pending  int
	InProbe  int
	InEncode int
	Done     int
	Failed   int
}

// Summarize counts chunk states for a run.
func (s *Store) Summarize(ctx context.Context, runID string) (Summary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT state, COUNT(1) FROM chunks WHERE run_id = ? GROUP BY state`, runID)
	if err != nil {
		return Summary{}, fmt.Errorf("summarize run: %w", err)
	}
	defer rows.Close()

	var summary Summary
	for rows.Next() {
		var state string
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return Summary{}, fmt.Errorf("scan summary: %w", err)
		}
		summary.Total += count
		switch chunk.State(state) {
		case chunk.StatePending:
			summary.Pending = count
		case chunk.StateInProbe:
			summary.InProbe = count
		case chunk.StateInEncode:
			summary.InEncode = count
		case chunk.StateDone:
			summary.Done = count
		case chunk.StateFailed:
			summary.Failed = count
		}
	}
	return summary, rows.Err()
}

func scanRun(row *sql.Row) (*Run, error) {
	var run Run
	var status, started string
	var finished sql.NullString
	if err := row.Scan(&run.ID, &run.InputPath, &run.OutputPath, &run.Encoder,
		&run.Workers, &run.FrameCount, &status, &started, &finished); err != nil {
		return nil, err
	}
	run.Status = RunStatus(status)
	run.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
	if finished.Valid {
		ts, err := time.Parse(time.RFC3339Nano, finished.String)
		if err == nil {
			run.FinishedAt = &ts
		}
	}
	return &run, nil
}

func nullableInt(value *int) any {
	if value == nil {
		return nil
	}
	return *value
}
