//go:build !windows

package catt

import (
	"errors"
	"fmt"
	"os/exec"
	"syscall"
	"time"
)

func setProcessGroup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

// terminateTree signals the whole process group led by pid: SIGTERM first,
// SIGKILL once grace has elapsed.
func terminateTree(pid int, done <-chan struct{}, grace time.Duration) error {
	if pid <= 0 {
		return nil
	}

	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil {
		if errors.Is(err, syscall.ESRCH) {
			return nil
		}
		return fmt.Errorf("sigterm process group %d: %w", pid, err)
	}

	if waitGroupExit(pid, done, grace) {
		return nil
	}

	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("sigkill process group %d: %w", pid, err)
	}

	if waitGroupExit(pid, done, 1*time.Second) {
		return nil
	}

	return fmt.Errorf("process group %d still alive", pid)
}

// waitGroupExit waits for the leader to be reaped and for the group to
// empty out.
func waitGroupExit(pgid int, done <-chan struct{}, timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	select {
	case <-done:
	case <-deadline.C:
		return !groupAlive(pgid)
	}

	for {
		if !groupAlive(pgid) {
			return true
		}
		select {
		case <-deadline.C:
			return !groupAlive(pgid)
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func groupAlive(pgid int) bool {
	if pgid <= 0 {
		return false
	}

	err := syscall.Kill(-pgid, 0)
	if err == nil {
		return true
	}

	// EPERM means it exists but we can't signal it.
	return errors.Is(err, syscall.EPERM)
}
