//go:build windows

package terminal

import "os/exec"

// terminateProcess kills the process directly. PTY sessions are not
// currently supported on Windows; spawn fails earlier at pty.Start.
func terminateProcess(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}
