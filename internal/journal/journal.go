package journal

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"lathe/internal/fileutil"
)

// FileName is the journal file inside the working directory.
const FileName = "done.jsonl"

// Record marks one chunk as done.
type Record struct {
	ChunkIndex int    `json:"chunk"`
	Frames     int    `json:"frames"`
	Output     string `json:"output"`
	ChosenQ    *int   `json:"q,omitempty"`
}

// Journal is the shared progress journal. All writes serialize through its
// mutex and land on disk via write-temp-then-rename.
type Journal struct {
	mu      sync.Mutex
	path    string
	records map[int]Record
}

// Open loads the journal at path, tolerating a missing file and trailing
// garbage from a crashed write.
func Open(path string) (*Journal, error) {
	j := &Journal{path: path, records: make(map[int]Record)}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return j, nil
		}
		return nil, fmt.Errorf("read journal: %w", err)
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var record Record
		if err := json.Unmarshal(line, &record); err != nil {
			// A crash mid-rewrite leaves a partial tail; everything before
			// it is intact, so truncate here and continue.
			break
		}
		j.records[record.ChunkIndex] = record
	}
	return j, nil
}

// Mark records a chunk completion and flushes the journal.
func (j *Journal) Mark(record Record) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.records[record.ChunkIndex] = record
	return j.flushLocked()
}

// Records returns the recorded completions sorted by chunk index.
func (j *Journal) Records() []Record {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]Record, 0, len(j.records))
	for _, record := range j.records {
		out = append(out, record)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ChunkIndex < out[k].ChunkIndex })
	return out
}

// Lookup returns the record for a chunk index, if present.
func (j *Journal) Lookup(index int) (Record, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	record, ok := j.records[index]
	return record, ok
}

// Len returns the number of recorded completions.
func (j *Journal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.records)
}

// Flush rewrites the journal file. Mark flushes implicitly; Flush exists for
// shutdown paths.
func (j *Journal) Flush() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.flushLocked()
}

func (j *Journal) flushLocked() error {
	indexes := make([]int, 0, len(j.records))
	for index := range j.records {
		indexes = append(indexes, index)
	}
	sort.Ints(indexes)

	var buf bytes.Buffer
	for _, index := range indexes {
		line, err := json.Marshal(j.records[index])
		if err != nil {
			return fmt.Errorf("marshal journal record: %w", err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}

	if err := fileutil.EnsureDir(filepath.Dir(j.path)); err != nil {
		return err
	}
	if err := fileutil.WriteFileAtomic(j.path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("flush journal: %w", err)
	}
	return nil
}

// Accept reports whether a journal record lets the chunk be skipped on
// resume: the expected frame count must match and the output file must still
// exist and be non-empty. The output file's own frame count is not re-read.
func (j *Journal) Accept(index, expectedFrames int, outputPath string) bool {
	record, ok := j.Lookup(index)
	if !ok {
		return false
	}
	if record.Frames != expectedFrames {
		return false
	}
	info, err := os.Stat(outputPath)
	if err != nil || info.Size() == 0 {
		return false
	}
	return true
}
