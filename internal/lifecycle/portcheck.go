package lifecycle

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// ProbePort reports whether addr (host:port) is free to bind by briefly
// listening on it, so startup can check the port before the transport
// layer tries to listen. It does not tell which process holds an
// occupied port.
func ProbePort(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %s unavailable: %w", addr, err)
	}
	return ln.Close()
}

// reclaimGrace is how long to give a SIGTERM'd holder to release the
// port before re-probing.
const reclaimGrace = 500 * time.Millisecond

// WaitForPort polls ProbePort until it succeeds or timeout elapses,
// giving a previous instance time to release the port during a restart.
// If the first probe finds the port occupied, it locates the
// process holding it via OS facilities and sends it SIGTERM, then
// resumes probing — the usual cause is a prior instance of this same
// process that missed its own shutdown handler. If reclamation isn't
// supported on this platform, or no holder can be found, or the holder
// ignores SIGTERM, WaitForPort falls through to the plain probe-and-wait
// and ultimately aborts via its timeout.
func WaitForPort(addr string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	reclaimed := false
	var lastErr error
	for time.Now().Before(deadline) {
		if err := ProbePort(addr); err == nil {
			return nil
		} else {
			lastErr = err
		}
		if !reclaimed && reclaimSupported() {
			reclaimed = true
			if pid, ok := reclaimAttempted(addr); ok {
				if err := terminateProcess(pid); err == nil {
					time.Sleep(reclaimGrace)
					continue
				}
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("timed out waiting for port: %w", lastErr)
}

// reclaimAttempted locates the process holding addr's port, if any. The
// bool result is false when the port can't be parsed or no holder is
// found.
func reclaimAttempted(addr string) (pid int, ok bool) {
	idx := strings.LastIndex(addr, ":")
	if idx < 0 {
		return 0, false
	}
	port, err := strconv.Atoi(addr[idx+1:])
	if err != nil {
		return 0, false
	}
	holder, err := findPortHolder(port)
	if err != nil {
		return 0, false
	}
	return holder, true
}
