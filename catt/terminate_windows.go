//go:build windows

package catt

import (
	"fmt"
	"os/exec"
	"strconv"
	"syscall"
	"time"
)

func setProcessGroup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.CreationFlags |= syscall.CREATE_NEW_PROCESS_GROUP
}

// terminateTree kills pid and its children with taskkill.
func terminateTree(pid int, done <-chan struct{}, grace time.Duration) error {
	if pid <= 0 {
		return nil
	}

	select {
	case <-done:
		return nil
	default:
	}

	kill := exec.Command("taskkill", "/T", "/F", "/PID", strconv.Itoa(pid))
	_ = kill.Run()

	select {
	case <-done:
		return nil
	case <-time.After(grace):
		return fmt.Errorf("process %d still alive", pid)
	}
}
