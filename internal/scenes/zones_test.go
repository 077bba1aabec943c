package scenes_test

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"lathe/internal/encoder"
	"lathe/internal/scenes"
)

func TestParseZoneAppendOverride(t *testing.T) {
	zone, err := scenes.ParseZone("136 169 aom --cq-level=32", 10000, encoder.Aom)
	if err != nil {
		t.Fatalf("ParseZone: %v", err)
	}
	if zone.Start != 136 || zone.End != 169 {
		t.Fatalf("zone range [%d,%d)", zone.Start, zone.End)
	}
	if zone.Reset {
		t.Fatal("zone should not be reset")
	}

	final := zone.ArgsFor(encoder.Aom.DefaultArgs())
	var levels []string
	for _, arg := range final {
		if len(arg) > 11 && arg[:11] == "--cq-level=" {
			levels = append(levels, arg)
		}
	}
	if len(levels) != 1 || levels[0] != "--cq-level=32" {
		t.Fatalf("quantizer override not applied: %v", final)
	}
	// Defaults unrelated to the override survive.
	var hasCPUUsed bool
	for _, arg := range final {
		if arg == "--cpu-used=6" {
			hasCPUUsed = true
		}
	}
	if !hasCPUUsed {
		t.Fatalf("default args lost: %v", final)
	}
}

func TestParseZoneResetReplacesArgs(t *testing.T) {
	zone, err := scenes.ParseZone("169 1330 rav1e reset -s 3 -q 42", 10000, encoder.Aom)
	if err != nil {
		t.Fatalf("ParseZone: %v", err)
	}
	if !zone.Reset || zone.Encoder != encoder.Rav1e {
		t.Fatalf("zone = %+v", zone)
	}
	final := zone.ArgsFor(encoder.Aom.DefaultArgs())
	want := []string{"-s", "3", "-q", "42"}
	if !reflect.DeepEqual(final, want) {
		t.Fatalf("reset zone args = %v, want %v", final, want)
	}
}

func TestParseZoneEncoderChangeRequiresReset(t *testing.T) {
	if _, err := scenes.ParseZone("0 100 rav1e -s 3", 10000, encoder.Aom); err == nil {
		t.Fatal("expected error for encoder change without reset")
	}
}

func TestParseZoneFormatMismatch(t *testing.T) {
	if _, err := scenes.ParseZone("0 100 x264 reset", 10000, encoder.Aom); err == nil {
		t.Fatal("expected error for output format mismatch")
	}
}

func TestParseZoneEndSentinel(t *testing.T) {
	zone, err := scenes.ParseZone("5000 -1 aom reset --cq-level=20", 6900, encoder.Aom)
	if err != nil {
		t.Fatalf("ParseZone: %v", err)
	}
	if zone.End != 6900 {
		t.Fatalf("end = %d, want 6900", zone.End)
	}
}

func TestParseZonePlannerOverrides(t *testing.T) {
	zone, err := scenes.ParseZone("45 729 aom --cq-level=20 -x 60 --min-scene-len 12", 6900, encoder.Aom)
	if err != nil {
		t.Fatalf("ParseZone: %v", err)
	}
	if zone.ExtraSplit == nil || *zone.ExtraSplit != 60 {
		t.Fatalf("extra split override = %v", zone.ExtraSplit)
	}
	if zone.MinSceneLen == nil || *zone.MinSceneLen != 12 {
		t.Fatalf("min scene len override = %v", zone.MinSceneLen)
	}
	if !reflect.DeepEqual(zone.Args, []string{"--cq-level=20"}) {
		t.Fatalf("zone args = %v", zone.Args)
	}
}

func TestParseZonesFileRejectsOverlap(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "zones.txt")
	content := "0 200 aom --cq-level=20\n100 400 aom --cq-level=30\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write zones: %v", err)
	}
	if _, err := scenes.ParseZonesFile(path, 10000, encoder.Aom); err == nil {
		t.Fatal("expected overlap error")
	}
}

func TestParseZonesFileScenario(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "zones.txt")
	content := "136 169 aom --cq-level=32\n169 1330 rav1e reset -s 3 -q 42\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write zones: %v", err)
	}
	zones, err := scenes.ParseZonesFile(path, 10000, encoder.Aom)
	if err != nil {
		t.Fatalf("ParseZonesFile: %v", err)
	}
	if len(zones) != 2 {
		t.Fatalf("got %d zones, want 2", len(zones))
	}
	if zones[1].Encoder != encoder.Rav1e || !zones[1].Reset {
		t.Fatalf("second zone = %+v", zones[1])
	}
}
