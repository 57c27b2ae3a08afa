package fnbridge

import (
	"context"
	"fmt"
	"sync"
)

// Pool is a fixed set of workers loaded from the same source. Each Invoke
// runs on a free worker, so up to Size calls execute in parallel.
type Pool struct {
	workers chan *Worker
	all     []*Worker
	size    int

	mu     sync.Mutex
	closed bool
}

// NewPool loads size workers. Worker names get a "-<index>" suffix.
func NewPool(cfg Config, size int, source, handler string) (*Pool, error) {
	if size < 1 {
		size = 1
	}
	cfg = cfg.withDefaults()
	p := &Pool{
		workers: make(chan *Worker, size),
		size:    size,
	}
	base := cfg.Name
	for i := 0; i < size; i++ {
		wcfg := cfg
		wcfg.Name = fmt.Sprintf("%s-%d", base, i)
		w, err := Load(wcfg, source, handler)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("loading pool worker %d: %w", i, err)
		}
		p.all = append(p.all, w)
		p.workers <- w
	}
	return p, nil
}

// Size is the number of workers.
func (p *Pool) Size() int { return p.size }

// Invoke runs ev on the next free worker. It waits for a worker until ctx is
// done; a cancelled wait returns ctx.Err().
func (p *Pool) Invoke(ctx context.Context, hostCtx *Context, ev Event) (*Response, error) {
	w, err := p.get(ctx)
	if err != nil {
		return nil, err
	}
	defer p.put(w)
	return w.Invoke(hostCtx, ev), nil
}

func (p *Pool) get(ctx context.Context) (*Worker, error) {
	select {
	case w, ok := <-p.workers:
		if !ok {
			return nil, ErrWorkerClosed
		}
		return w, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Pool) put(w *Worker) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.workers <- w
}

// Close closes every worker. Calls waiting for a worker fail with
// ErrWorkerClosed; calls already running finish first.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.workers)
	for range p.workers {
	}
	p.mu.Unlock()

	for _, w := range p.all {
		w.Close()
	}
}
