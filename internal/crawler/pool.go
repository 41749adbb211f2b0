package crawler

import (
	"sync"

	"golang.org/x/sync/errgroup"
)

// task is one pending page visit.
type task struct {
	url   string
	depth int
}

// workerPool is an unbounded FIFO of tasks drained by a fixed number of
// workers. submit never blocks, so a worker may enqueue any number of
// children without waiting on its peers. The queue closes itself once every
// submitted task, including those submitted by other tasks, has finished.
//
// Design decision: We use a slice guarded by sync.Cond rather than a
// buffered channel because:
//  1. A bounded channel deadlocks when every worker blocks sending children
//  2. Termination is a pending-task count, not the queue being empty
//  3. run returns only after every worker goroutine has exited
type workerPool struct {
	size int

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []task
	closed bool

	pending sync.WaitGroup
}

func newWorkerPool(size int) *workerPool {
	p := &workerPool{size: size}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// submit enqueues t. It must be called before run for the first task and
// from inside a running task for every later one.
func (p *workerPool) submit(t task) {
	p.pending.Add(1)

	p.mu.Lock()
	p.queue = append(p.queue, t)
	p.mu.Unlock()
	p.cond.Signal()
}

// next blocks until a task is available or the pool is closed.
func (p *workerPool) next() (task, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for len(p.queue) == 0 && !p.closed {
		p.cond.Wait()
	}
	if len(p.queue) == 0 {
		return task{}, false
	}
	t := p.queue[0]
	p.queue[0] = task{}
	p.queue = p.queue[1:]
	return t, true
}

func (p *workerPool) close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.cond.Broadcast()
}

// run starts the workers and returns after all of them have exited.
func (p *workerPool) run(fn func(task)) error {
	go func() {
		p.pending.Wait()
		p.close()
	}()

	var g errgroup.Group
	for range p.size {
		g.Go(func() error {
			for {
				t, ok := p.next()
				if !ok {
					return nil
				}
				p.do(fn, t)
			}
		})
	}
	return g.Wait()
}

func (p *workerPool) do(fn func(task), t task) {
	defer p.pending.Done()
	fn(t)
}
