package texport

import (
	"context"
	"errors"
	"runtime"
	"sync"
)

// Pool sizing constants.
const (
	// MinPoolSize ensures at least one worker is available.
	MinPoolSize = 1

	// MaxPoolSize caps concurrent converter processes to limit memory.
	MaxPoolSize = 8

	// cpuDivisor leaves headroom for converter child processes.
	cpuDivisor = 2
)

// ErrPoolClosed is returned by Acquire after Close.
var ErrPoolClosed = errors.New("exporter pool is closed")

// Pool bounds the number of export jobs running at once. Each slot owns an
// Exporter, so backends holding a browser get one browser per slot.
// Exporters are created lazily on first acquire to avoid startup delay.
type Pool struct {
	size      int
	newFn     func() *Exporter
	exporters []*Exporter
	sem       chan *Exporter
	mu        sync.Mutex
	created   int
	closed    bool
}

// NewPool creates a pool with capacity for n exporters built by newFn.
func NewPool(n int, newFn func() *Exporter) *Pool {
	if n < 1 {
		n = 1
	}

	return &Pool{
		size:      n,
		newFn:     newFn,
		exporters: make([]*Exporter, 0, n),
		sem:       make(chan *Exporter, n),
	}
}

// Acquire gets an exporter from the pool, creating one if needed.
// Blocks until one is free or ctx is done.
func (p *Pool) Acquire(ctx context.Context) (*Exporter, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return nil, ErrPoolClosed
	}

	select {
	case e, ok := <-p.sem:
		if !ok {
			return nil, ErrPoolClosed
		}
		return e, nil
	default:
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	if p.created < p.size {
		p.created++
		p.mu.Unlock()

		e := p.newFn()

		p.mu.Lock()
		p.exporters = append(p.exporters, e)
		p.mu.Unlock()

		return e, nil
	}
	p.mu.Unlock()

	select {
	case e, ok := <-p.sem:
		if !ok {
			return nil, ErrPoolClosed
		}
		return e, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release returns an exporter to the pool.
// The lock is held while sending so Close cannot close the channel mid-send;
// the send never blocks because at most size exporters exist.
func (p *Pool) Release(e *Exporter) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.sem <- e
}

// Export runs req on a pooled exporter.
func (p *Pool) Export(ctx context.Context, req Request) (*Result, error) {
	e, err := p.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer p.Release(e)
	return e.Export(ctx, req)
}

// Close releases all converter resources.
// Returns an aggregated error if multiple exporters fail to close.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.sem)
	exporters := p.exporters
	p.mu.Unlock()

	var errs []error
	for _, e := range exporters {
		if err := e.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Size returns the pool capacity.
func (p *Pool) Size() int {
	return p.size
}

// ResolvePoolSize determines the pool size.
// Priority: explicit workers > GOMAXPROCS-based calculation.
func ResolvePoolSize(workers int) int {
	if workers > 0 {
		return workers
	}

	// GOMAXPROCS is adjusted by automaxprocs for containers.
	n := runtime.GOMAXPROCS(0) / cpuDivisor

	if n < MinPoolSize {
		return MinPoolSize
	}
	if n > MaxPoolSize {
		return MaxPoolSize
	}
	return n
}
