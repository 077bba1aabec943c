//go:build linux

package worker

import "golang.org/x/sys/unix"

// pinProcess binds a subprocess to a contiguous CPU set of setSize cores
// starting at workerID*setSize, keeping each worker's subprocess tree on a
// disjoint set.
func pinProcess(pid, workerID, setSize int) error {
	if setSize <= 0 {
		return nil
	}
	var set unix.CPUSet
	set.Zero()
	start := workerID * setSize
	for cpu := start; cpu < start+setSize; cpu++ {
		set.Set(cpu)
	}
	return unix.SchedSetaffinity(pid, &set)
}
