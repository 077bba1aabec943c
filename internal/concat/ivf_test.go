package concat_test

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"lathe/internal/concat"
)

// writeIvf builds a synthetic ivf file with the given frame payloads.
func writeIvf(t *testing.T, path string, payloads [][]byte) {
	t.Helper()
	header := make([]byte, 32)
	copy(header[0:4], "DKIF")
	binary.LittleEndian.PutUint16(header[4:6], 0)
	binary.LittleEndian.PutUint16(header[6:8], 32)
	copy(header[8:12], "AV01")
	binary.LittleEndian.PutUint16(header[12:14], 1920)
	binary.LittleEndian.PutUint16(header[14:16], 1080)
	binary.LittleEndian.PutUint32(header[16:20], 24000)
	binary.LittleEndian.PutUint32(header[20:24], 1001)
	binary.LittleEndian.PutUint32(header[24:28], uint32(len(payloads)))

	data := header
	for i, payload := range payloads {
		frame := make([]byte, 12)
		binary.LittleEndian.PutUint32(frame[0:4], uint32(len(payload)))
		binary.LittleEndian.PutUint64(frame[4:12], uint64(i))
		data = append(data, frame...)
		data = append(data, payload...)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write ivf: %v", err)
	}
}

func TestIvfConcat(t *testing.T) {
	dir := t.TempDir()
	seg0 := filepath.Join(dir, "00000.ivf")
	seg1 := filepath.Join(dir, "00001.ivf")
	writeIvf(t, seg0, [][]byte{{1, 2, 3}, {4, 5}})
	writeIvf(t, seg1, [][]byte{{6}, {7, 8}, {9}})

	out := filepath.Join(dir, "out.ivf")
	if err := concat.Ivf([]string{seg0, seg1}, out); err != nil {
		t.Fatalf("Ivf: %v", err)
	}

	frames, err := concat.IvfFrameCount(out)
	if err != nil {
		t.Fatalf("IvfFrameCount: %v", err)
	}
	if frames != 5 {
		t.Fatalf("merged frame count = %d, want 5", frames)
	}

	// Timestamps must be a single monotone sequence.
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read merged: %v", err)
	}
	offset := 32
	for want := uint64(0); want < 5; want++ {
		size := binary.LittleEndian.Uint32(data[offset : offset+4])
		ts := binary.LittleEndian.Uint64(data[offset+4 : offset+12])
		if ts != want {
			t.Fatalf("frame %d timestamp = %d", want, ts)
		}
		offset += 12 + int(size)
	}
	if offset != len(data) {
		t.Fatalf("trailing bytes after last frame: %d != %d", offset, len(data))
	}
}

func TestIvfRejectsNonIvf(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.ivf")
	if err := os.WriteFile(bad, []byte("this is not an ivf file at all!!"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := concat.Ivf([]string{bad}, filepath.Join(dir, "out.ivf")); err == nil {
		t.Fatal("expected error for non-ivf input")
	}
}

func TestParseMethod(t *testing.T) {
	if _, err := concat.ParseMethod("tar"); err == nil {
		t.Fatal("expected error for unknown method")
	}
	m, err := concat.ParseMethod("MKVMerge")
	if err != nil || m != concat.MethodMKVMerge {
		t.Fatalf("ParseMethod = %q, %v", m, err)
	}
	if m, _ := concat.ParseMethod(""); m != "" {
		t.Fatalf("empty method should defer to auto-select, got %q", m)
	}
}
