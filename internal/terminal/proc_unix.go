//go:build !windows

package terminal

import (
	"os/exec"
	"syscall"
)

// terminateProcess sends SIGTERM to the process group. The shell is a
// session leader (pty start calls setsid), so its pgid equals its pid and
// the group signal reaches every child it forked.
func terminateProcess(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	pgid, err := syscall.Getpgid(cmd.Process.Pid)
	if err != nil {
		// If we can't get pgid, just signal the process directly
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	// Send SIGTERM to entire process group (negative pid)
	return syscall.Kill(-pgid, syscall.SIGTERM)
}
