package castprotocol

import (
	"sync"
	"time"
)

// closeWait bounds how long Terminate waits for the serving goroutine.
var closeWait = 5 * time.Second

// localProcess is a local file being served to a receiver. It satisfies
// catt.Process so the session treats it like a detached catt cast.
type localProcess struct {
	r    Receiver
	done chan struct{}
	err  error
	once sync.Once
}

func newLocalProcess(r Receiver) *localProcess {
	return &localProcess{r: r, done: make(chan struct{})}
}

func (p *localProcess) serve(path string) {
	defer close(p.done)
	p.err = p.r.LoadLocal(path)
}

// Pid is always 0; the cast runs in-process.
func (p *localProcess) Pid() int { return 0 }

func (p *localProcess) Done() <-chan struct{} { return p.done }

// Terminate stops playback and closes the dedicated connection, which
// unblocks the serving goroutine.
func (p *localProcess) Terminate() error {
	var err error
	p.once.Do(func() {
		err = p.r.Close(true)
		select {
		case <-p.done:
		case <-time.After(closeWait):
		}
	})
	return err
}
