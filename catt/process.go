package catt

import (
	"os/exec"
	"sync"
	"time"
)

// Process is a handle to a detached catt invocation.
type Process interface {
	Pid() int
	// Done is closed once the process has exited and been reaped.
	Done() <-chan struct{}
	// Terminate stops the process and every descendant sharing its
	// process group. It is safe to call more than once.
	Terminate() error
}

// GroupProcess is a started command leading its own process group.
type GroupProcess struct {
	cmd   *exec.Cmd
	grace time.Duration
	done  chan struct{}

	mu       sync.Mutex
	exitCode int

	termOnce sync.Once
	termErr  error
}

// StartGroup starts cmd in a new process group. Terminate signals the
// group and escalates after grace. The caller must not call cmd.Wait.
func StartGroup(cmd *exec.Cmd, grace time.Duration) (*GroupProcess, error) {
	setProcessGroup(cmd)
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return newGroupProcess(cmd, grace), nil
}

func newGroupProcess(cmd *exec.Cmd, grace time.Duration) *GroupProcess {
	p := &GroupProcess{
		cmd:      cmd,
		grace:    grace,
		done:     make(chan struct{}),
		exitCode: -1,
	}

	go func() {
		_ = cmd.Wait()
		p.mu.Lock()
		if cmd.ProcessState != nil {
			p.exitCode = cmd.ProcessState.ExitCode()
		}
		p.mu.Unlock()
		close(p.done)
	}()

	return p
}

func (p *GroupProcess) Pid() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

func (p *GroupProcess) Done() <-chan struct{} {
	return p.done
}

// ExitCode is -1 while the process is running.
func (p *GroupProcess) ExitCode() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode
}

func (p *GroupProcess) Terminate() error {
	p.termOnce.Do(func() {
		p.termErr = terminateTree(p.Pid(), p.done, p.grace)
	})
	return p.termErr
}
