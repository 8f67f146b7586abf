// Package pool implements a bounded worker pool with idle-TTL reaping:
// spawn workers lazily up to a cap, let each worker exit once it has
// sat idle past a timeout. Grounded on songbird's BlockyTaskPool
// (internal/mixer/pool.go wraps this), which in turn wraps Rust's
// rusty_pool::ThreadPool (bounded 0-64 threads, 5s idle TTL). No Go
// library in the pack offers this shape, so it is hand-built here on
// top of golang.org/x/sync/semaphore for the concurrency bound.
package pool

import (
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// Pool runs submitted funcs on a bounded set of goroutines. Unlike a
// fixed-size worker pool, workers are spawned lazily on demand and
// exit on their own after IdleTTL with nothing queued — so a quiet
// pool costs nothing and a busy one never exceeds MaxWorkers
// concurrently running funcs.
type Pool struct {
	sem     *semaphore.Weighted
	tasks   chan func()
	idleTTL time.Duration
	wg      sync.WaitGroup
	closing chan struct{}
	once    sync.Once
}

// New returns a Pool bounding concurrent workers at maxWorkers, each
// exiting after idleTTL spent with no work queued.
func New(maxWorkers int64, idleTTL time.Duration) *Pool {
	return &Pool{
		sem:     semaphore.NewWeighted(maxWorkers),
		tasks:   make(chan func()),
		idleTTL: idleTTL,
		closing: make(chan struct{}),
	}
}

// Submit runs fn on the pool. It hands fn directly to an idle worker
// if one is waiting, otherwise spawns a new worker (if under the
// concurrency cap), otherwise blocks until either happens. Submit
// never runs fn synchronously on the calling goroutine.
func (p *Pool) Submit(fn func()) {
	select {
	case p.tasks <- fn:
		return
	default:
	}

	if p.sem.TryAcquire(1) {
		p.wg.Add(1)
		go p.spawn(fn)
		return
	}

	select {
	case p.tasks <- fn:
	case <-p.closing:
	}
}

func (p *Pool) spawn(first func()) {
	defer p.wg.Done()
	defer p.sem.Release(1)

	fn := first
	for {
		fn()

		timer := time.NewTimer(p.idleTTL)
		select {
		case next := <-p.tasks:
			timer.Stop()
			fn = next
		case <-timer.C:
			return
		case <-p.closing:
			timer.Stop()
			return
		}
	}
}

// Close signals every worker to exit once its current func (if any)
// returns, and blocks until they have all done so.
func (p *Pool) Close() {
	p.once.Do(func() { close(p.closing) })
	p.wg.Wait()
}
