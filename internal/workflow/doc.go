// Package workflow is the driver: it builds the working directory, takes
// the run lock, sequences the probe, plan, audio, encode, concat, and
// cleanup phases, and owns the wiring between the queue, the worker pool,
// the journal, and the run-state store.
package workflow
