//go:build !windows

package external

import (
	"os/exec"
	"syscall"
)

// isolate runs cmd in its own process group so that cancellation kills the
// tool together with any helpers it spawned.
func isolate(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
