package worker

import (
	"runtime"

	"lathe/internal/encoder"
)

// threadFootprint estimates how many cores one encoder instance keeps busy;
// it caps the automatic worker count so instances do not starve each other.
func threadFootprint(enc encoder.Encoder) int {
	switch enc {
	case encoder.Aom, encoder.Rav1e, encoder.Vpx:
		return 3
	default:
		return 6
	}
}

// DefaultWorkers picks the worker count for `--workers 0`.
func DefaultWorkers(enc encoder.Encoder) int {
	cpus := runtime.NumCPU()
	workers := cpus / threadFootprint(enc)
	if workers < 1 {
		workers = 1
	}
	if workers > 64 {
		workers = 64
	}
	return workers
}
