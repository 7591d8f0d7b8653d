package arbiter

import (
	"context"
	"sync"
	"time"
)

// dispatcher runs writes in the background. Writes to the same path run
// one after another in submission order, so a release that follows a
// claim of the same slot cannot overtake it. Writes to different paths
// run independently.
type dispatcher struct {
	timeout time.Duration

	mu   sync.Mutex
	last map[string]chan struct{} // tail of each path's chain
	wg   sync.WaitGroup
}

func newDispatcher(timeout time.Duration) *dispatcher {
	return &dispatcher{timeout: timeout, last: make(map[string]chan struct{})}
}

func (d *dispatcher) submit(path string, write func(ctx context.Context)) {
	done := make(chan struct{})

	d.mu.Lock()
	prev := d.last[path]
	d.last[path] = done
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		defer d.finish(path, done)

		if prev != nil {
			<-prev
		}

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		write(ctx)
	}()
}

// finish releases the next write on path and forgets the chain once it
// has no successor.
func (d *dispatcher) finish(path string, done chan struct{}) {
	d.mu.Lock()
	if d.last[path] == done {
		delete(d.last, path)
	}
	d.mu.Unlock()
	close(done)
}

// pending reports how many paths still have queued or running writes.
func (d *dispatcher) pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.last)
}

func (d *dispatcher) wait() {
	d.wg.Wait()
}
