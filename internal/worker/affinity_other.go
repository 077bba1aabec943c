//go:build !linux

package worker

// Thread affinity is only wired up on Linux; elsewhere the option is
// silently ignored.
func pinProcess(pid, workerID, setSize int) error {
	return nil
}
