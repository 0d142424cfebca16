//go:build !windows

package invoker

import (
	"os/exec"
	"syscall"
)

// configureProcess puts the analyzer in its own process group so that a timeout
// or a cancellation kills the interpreter together with anything it spawned.
func configureProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = waitDelay
}
