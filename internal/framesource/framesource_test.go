package framesource_test

import (
	"context"
	"strings"
	"testing"

	"lathe/internal/chunk"
	"lathe/internal/framesource"
)

func TestParseMethod(t *testing.T) {
	cases := map[string]framesource.Method{
		"lsmash":     framesource.MethodLSmash,
		"FFMS2":      framesource.MethodFFMS2,
		"bestsource": framesource.MethodBestSource,
		"dgdecnv":    framesource.MethodDGDecNV,
		"segment":    framesource.MethodSegment,
		"select":     framesource.MethodSelect,
		"hybrid":     framesource.MethodHybrid,
	}
	for input, want := range cases {
		got, err := framesource.ParseMethod(input)
		if err != nil {
			t.Fatalf("ParseMethod(%q): %v", input, err)
		}
		if got != want {
			t.Fatalf("ParseMethod(%q) = %q", input, got)
		}
	}
	if method, err := framesource.ParseMethod(""); err != nil || method != "" {
		t.Fatalf("empty method should auto-select: %q, %v", method, err)
	}
	if _, err := framesource.ParseMethod("mmap"); err == nil {
		t.Fatal("expected error for unknown method")
	}
}

func TestSelectPipeCmdWindowsFrames(t *testing.T) {
	source, err := framesource.New(framesource.MethodSelect, "input.mkv", t.TempDir(), "yuv420p10le")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c := &chunk.Chunk{Index: 3, Start: 240, End: 480}
	cmd, err := source.PipeCmd(context.Background(), c)
	if err != nil {
		t.Fatalf("PipeCmd: %v", err)
	}
	argv := strings.Join(cmd.Args, " ")
	if !strings.Contains(argv, "select=between(n\\,240\\,479)") {
		t.Fatalf("select window missing: %s", argv)
	}
	if !strings.Contains(argv, "yuv4mpegpipe") {
		t.Fatalf("y4m output missing: %s", argv)
	}
	if !strings.Contains(argv, "-pix_fmt yuv420p10le") {
		t.Fatalf("pixel format missing: %s", argv)
	}
}

func TestSegmentRequiresPrepare(t *testing.T) {
	source, err := framesource.New(framesource.MethodSegment, "input.mkv", t.TempDir(), "yuv420p")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c := &chunk.Chunk{Index: 0, Start: 0, End: 100}
	if _, err := source.PipeCmd(context.Background(), c); err == nil {
		t.Fatal("segment method must require Prepare before use")
	}
}

func TestScriptBackedPipeUsesVspipe(t *testing.T) {
	source, err := framesource.New(framesource.MethodLSmash, "input.mkv", t.TempDir(), "yuv420p10le")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c := &chunk.Chunk{Index: 1, Start: 125, End: 250}
	cmd, err := source.PipeCmd(context.Background(), c)
	if err != nil {
		t.Fatalf("PipeCmd: %v", err)
	}
	argv := strings.Join(cmd.Args, " ")
	if !strings.Contains(argv, "vspipe") {
		t.Fatalf("expected vspipe command: %s", argv)
	}
	if !strings.Contains(argv, "-s 125") || !strings.Contains(argv, "-e 249") {
		t.Fatalf("frame window missing: %s", argv)
	}
}
