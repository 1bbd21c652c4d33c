package engine

import (
	"errors"
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

func setProcessGroup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

// terminateGroup sends SIGTERM to the process group, then SIGKILL when the
// process has not exited within grace. done must be closed once the process
// has been reaped.
func terminateGroup(pid int, done <-chan struct{}, grace time.Duration) {
	if pid <= 0 {
		return
	}
	if err := signalGroup(pid, unix.SIGTERM); err != nil {
		return
	}
	select {
	case <-done:
		return
	case <-time.After(grace):
	}
	_ = signalGroup(pid, unix.SIGKILL)
	<-done
}

func signalGroup(pid int, sig unix.Signal) error {
	err := unix.Kill(-pid, sig)
	if errors.Is(err, unix.ESRCH) {
		return err
	}
	if err != nil {
		// Fall back to the leader when the group cannot be signalled.
		return unix.Kill(pid, sig)
	}
	return nil
}
