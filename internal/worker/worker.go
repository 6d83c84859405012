package worker

import (
	"context"
	"sync"
)

type ProcessFunc[T any] func(ctx context.Context, job T) error

// Pool is a bounded worker pool. Processor errors are the processor's
// problem: the pool never stops on them.
type Pool[T any] struct {
	numWorkers int
	jobs       chan T
	processor  ProcessFunc[T]
	wg         sync.WaitGroup
}

func NewPool[T any](numWorkers int, bufferSize int, processor ProcessFunc[T]) *Pool[T] {
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &Pool[T]{
		numWorkers: numWorkers,
		jobs:       make(chan T, bufferSize),
		processor:  processor,
	}
}

func (p *Pool[T]) Start(ctx context.Context) {
	for i := 1; i <= p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
}

// worker drains the queue until it closes. Cancellation never abandons
// a queued job: the processor always runs, sees the cancelled context,
// and decides for itself. Callers joining on per-job completion rely on
// this.
func (p *Pool[T]) worker(ctx context.Context) {
	defer p.wg.Done()

	for job := range p.jobs {
		p.processor(ctx, job)
	}
}

func (p *Pool[T]) Submit(job T) {
	p.jobs <- job
}

// Stop closes the queue and waits for in-flight jobs.
func (p *Pool[T]) Stop() {
	close(p.jobs)
	p.wg.Wait()
}
