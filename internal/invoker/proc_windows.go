//go:build windows

package invoker

import "os/exec"

func configureProcess(cmd *exec.Cmd) {
	cmd.WaitDelay = waitDelay
}
