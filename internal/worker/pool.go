// Package worker provides the concurrency plumbing for batch runs: a
// fixed-size job pool and a launch limiter for the replay subprocess.
package worker

import (
	"context"
	"sync"
)

// Job is one unit of batch work, typically a submission archive.
type Job interface {
	Execute(ctx context.Context) Result
}

// Result is what a job hands back; GetError lets the pool caller count
// failures without knowing the concrete type.
type Result interface {
	GetError() error
}

// Pool fans jobs out over a fixed worker count. Replay playback dominates
// each job, so the count bounds engine processes, not CPU use.
type Pool struct {
	workers    int
	jobQueue   chan Job
	results    chan Result
	wg         sync.WaitGroup
	ctx        context.Context
	cancelFunc context.CancelFunc
	closeOnce  sync.Once
}

// NewPool sizes a pool. Anything below one worker still gets one, so a
// zero config value degrades to sequential processing rather than a hang.
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		workers:    workers,
		jobQueue:   make(chan Job, workers*2),
		results:    make(chan Result, workers*2),
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Start brings the workers up; jobs may already be queued.
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case job, ok := <-p.jobQueue:
			if !ok {
				return
			}
			result := job.Execute(p.ctx)
			select {
			case p.results <- result:
			case <-p.ctx.Done():
				return
			}
		}
	}
}

// Submit queues a job. On a pool that was shut down it is a no-op, so a
// producer losing a race with Shutdown does not block forever.
func (p *Pool) Submit(job Job) {
	select {
	case <-p.ctx.Done():
		return
	case p.jobQueue <- job:
	}
}

// Wait seals the queue and collects one result per submitted job. Call it
// exactly once, after the last Submit; the pool is spent afterwards.
func (p *Pool) Wait() []Result {
	close(p.jobQueue)

	go func() {
		p.wg.Wait()
		p.closeResults()
	}()

	var results []Result
	for result := range p.results {
		results = append(results, result)
	}

	return results
}

// Shutdown cancels the shared context and returns once every worker has
// seen it. In-flight jobs decide for themselves how to honor cancellation.
func (p *Pool) Shutdown() {
	p.cancelFunc()
	p.wg.Wait()
	p.closeResults()
}

func (p *Pool) closeResults() {
	p.closeOnce.Do(func() {
		close(p.results)
	})
}
