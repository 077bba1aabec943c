// Package journal persists which chunks have finished encoding so an
// interrupted run can resume without re-encoding completed work. The journal
// is a JSON-lines file rewritten atomically after each chunk completion; a
// crash mid-write leaves at worst a garbled final line, which readers drop.
package journal
