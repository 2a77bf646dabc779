//go:build linux

package lifecycle

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// findPortHolder scans /proc/net/tcp and /proc/net/tcp6 for a listening
// socket bound to port, then walks every process's fd table looking for
// a symlink to that socket's inode, returning the owning pid.
func findPortHolder(port int) (int, error) {
	inode, err := findListeningInode(port)
	if err != nil {
		return 0, err
	}
	return findInodeOwner(inode)
}

func findListeningInode(port int) (string, error) {
	target := fmt.Sprintf("%04X", port)
	for _, path := range []string{"/proc/net/tcp", "/proc/net/tcp6"} {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		lines := strings.Split(string(data), "\n")
		for _, line := range lines[1:] {
			fields := strings.Fields(line)
			if len(fields) < 10 {
				continue
			}
			localAddr := fields[1]
			state := fields[3]
			parts := strings.Split(localAddr, ":")
			if len(parts) != 2 || !strings.EqualFold(parts[1], target) {
				continue
			}
			const tcpListen = "0A"
			if state != tcpListen {
				continue
			}
			return fields[9], nil
		}
	}
	return "", fmt.Errorf("no listening socket found for port %d", port)
}

func findInodeOwner(inode string) (int, error) {
	want := fmt.Sprintf("socket:[%s]", inode)
	procEntries, err := os.ReadDir("/proc")
	if err != nil {
		return 0, err
	}
	for _, entry := range procEntries {
		pid, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}
		fdDir := filepath.Join("/proc", entry.Name(), "fd")
		fds, err := os.ReadDir(fdDir)
		if err != nil {
			continue // process exited or unreadable (not ours), skip
		}
		for _, fd := range fds {
			link, err := os.Readlink(filepath.Join(fdDir, fd.Name()))
			if err != nil {
				continue
			}
			if link == want {
				return pid, nil
			}
		}
	}
	return 0, fmt.Errorf("no process found holding inode %s", inode)
}

// terminateProcess sends SIGTERM to pid, the OS facility used to ask the
// holder to release the port before the next probe.
func terminateProcess(pid int) error {
	return syscall.Kill(pid, syscall.SIGTERM)
}

func reclaimSupported() bool { return true }
