//go:build windows

package environment

import "os/exec"

func setProcessGroup(_ *exec.Cmd) {}

// Windows has no POSIX process groups or SIGTERM; both signals collapse to a
// hard kill of the direct child.
func signalGroupTerm(cmd *exec.Cmd) {
	signalGroupKill(cmd)
}

func signalGroupKill(cmd *exec.Cmd) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	_ = cmd.Process.Kill()
}
