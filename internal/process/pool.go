package process

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Job is a unit of work run by the Pool.
type Job func(ctx context.Context) error

// PoolStats reports pool activity.
type PoolStats struct {
	Size     int    `json:"size"`
	Running  int64  `json:"running"`
	Finished uint64 `json:"finished"`
	Failed   uint64 `json:"failed"`
	Rejected uint64 `json:"rejected"`
}

// Pool runs jobs on at most size goroutines.
//
// A failing or panicking job is logged and does not affect other jobs.
type Pool struct {
	group  errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc
	size   int
	logger Logger

	running  atomic.Int64
	finished atomic.Uint64
	failed   atomic.Uint64
	rejected atomic.Uint64
}

// NewPool creates a pool whose jobs receive a context derived from ctx.
func NewPool(ctx context.Context, size int, logger Logger) *Pool {
	if size < 1 {
		size = 1
	}
	if logger == nil {
		logger = noopLogger{}
	}
	p := &Pool{size: size, logger: logger}
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.group.SetLimit(size)
	return p
}

// Go starts job if a worker is free. It returns false, without blocking,
// when the pool is saturated or closed.
func (p *Pool) Go(name string, job Job) bool {
	if p.ctx.Err() != nil {
		p.rejected.Add(1)
		p.logger.Warn("job rejected, pool closed", "job", name)
		return false
	}

	ok := p.group.TryGo(func() error {
		p.running.Add(1)
		defer p.running.Add(-1)

		if err := p.run(name, job); err != nil {
			p.failed.Add(1)
			p.logger.Error("job failed", "job", name, "error", err)
		}
		p.finished.Add(1)
		return nil
	})
	if !ok {
		p.rejected.Add(1)
		p.logger.Warn("job rejected, pool busy", "job", name, "size", p.size)
	}
	return ok
}

func (p *Pool) run(name string, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in job %s: %v", name, r)
		}
	}()
	return job(p.ctx)
}

// Wait blocks until every started job has returned.
func (p *Pool) Wait() {
	_ = p.group.Wait()
}

// Close refuses new jobs, cancels the jobs' context and waits for them.
func (p *Pool) Close() {
	p.cancel()
	p.Wait()
}

// Stats returns a snapshot of pool counters.
func (p *Pool) Stats() PoolStats {
	return PoolStats{
		Size:     p.size,
		Running:  p.running.Load(),
		Finished: p.finished.Load(),
		Failed:   p.failed.Load(),
		Rejected: p.rejected.Load(),
	}
}
