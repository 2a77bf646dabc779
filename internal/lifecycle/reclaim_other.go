//go:build !linux

package lifecycle

import "fmt"

// findPortHolder has no portable way to map a TCP port to its owning
// process outside /proc, so reclamation is Linux-only; WaitForPort falls
// back to probe-and-wait elsewhere.
func findPortHolder(port int) (int, error) {
	return 0, fmt.Errorf("port reclamation unsupported on this platform")
}

func terminateProcess(pid int) error {
	return fmt.Errorf("port reclamation unsupported on this platform")
}

func reclaimSupported() bool { return false }
