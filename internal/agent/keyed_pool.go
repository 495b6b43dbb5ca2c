package agent

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
)

// Job is a unit of work submitted to the KeyedPool.
type Job func(ctx context.Context)

var ErrPoolClosed = errors.New("worker pool closed")

// KeyedPool runs jobs on a fixed number of goroutines. Jobs with the same key
// always land on the same worker, so they run one at a time in submission
// order while different keys proceed in parallel.
type KeyedPool struct {
	queues  []chan Job
	wg      sync.WaitGroup
	closeMu sync.Mutex
	closed  bool
}

// NewKeyedPool creates a pool with the given number of workers, each with a
// FIFO of the given capacity.
func NewKeyedPool(workers, queue int) *KeyedPool {
	if workers <= 0 {
		workers = 1
	}
	if queue <= 0 {
		queue = 16
	}
	p := &KeyedPool{queues: make([]chan Job, workers)}
	for i := range p.queues {
		p.queues[i] = make(chan Job, queue)
	}
	return p
}

// Start launches the workers. They drain their queues until Close is called
// or ctx is done.
func (p *KeyedPool) Start(ctx context.Context) {
	for _, q := range p.queues {
		p.wg.Add(1)
		go func(q chan Job) {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case job, ok := <-q:
					if !ok {
						return
					}
					job(ctx)
				}
			}
		}(q)
	}
}

// Submit enqueues job behind every earlier job with the same key. It blocks
// while that worker's queue is full.
func (p *KeyedPool) Submit(ctx context.Context, key string, job Job) error {
	p.closeMu.Lock()
	defer p.closeMu.Unlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.queues[p.index(key)] <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting jobs and waits for queued ones to finish.
func (p *KeyedPool) Close() {
	p.closeMu.Lock()
	if p.closed {
		p.closeMu.Unlock()
		return
	}
	p.closed = true
	for _, q := range p.queues {
		close(q)
	}
	p.closeMu.Unlock()
	p.wg.Wait()
}

func (p *KeyedPool) index(key string) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(p.queues)))
}
