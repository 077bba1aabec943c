// Package chunk defines the unit of encoding work and the shared queue the
// workers pull from. A chunk is created by the planner, mutated only by the
// worker that claimed it, and frozen once it is recorded as done.
package chunk
