// Package worker drives parallel chunk encoding: a fixed set of goroutine
// workers pull chunks from the shared queue, optionally run the
// target-quality search, pipe frames from the frame source into the encoder
// subprocess, validate the output frame count, and record completions in the
// progress journal. The kernel pipe buffer between the two subprocesses is
// the pipeline's backpressure mechanism.
package worker
