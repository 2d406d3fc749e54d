package browserpool

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-rod/rod"
)

// Pool hands out browser instances from a fixed-size rotation, recycling any
// instance that has served too many pages. Grounded on the teacher's
// internal/browser.Pool (semaphore-gated Acquire/Release, round-robin
// rotation with recycle-on-acquire).
type Pool struct {
	mu       sync.Mutex
	browsers []*Instance
	config   Config
	current  int
	closed   bool
	sem      chan struct{}
}

// NewPool pre-launches config.PoolSize browser instances.
func NewPool(config Config) (*Pool, error) {
	if config.PoolSize < 1 {
		config.PoolSize = 1
	}

	p := &Pool{
		browsers: make([]*Instance, config.PoolSize),
		config:   config,
		sem:      make(chan struct{}, config.PoolSize),
	}
	for i := 0; i < config.PoolSize; i++ {
		p.sem <- struct{}{}
	}

	for i := 0; i < config.PoolSize; i++ {
		inst, err := New(config)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("create browser %d: %w", i, err)
		}
		p.browsers[i] = inst
	}

	return p, nil
}

// Acquire blocks until a browser instance is available, recycling it first
// if it has exceeded its page budget.
func (p *Pool) Acquire(ctx context.Context) (*Instance, error) {
	select {
	case <-p.sem:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		p.sem <- struct{}{}
		return nil, fmt.Errorf("browser pool is closed")
	}

	inst := p.browsers[p.current]
	slot := p.current
	p.current = (p.current + 1) % len(p.browsers)

	if inst.NeedsRecycle() {
		inst.Close()
		fresh, err := New(p.config)
		if err != nil {
			p.sem <- struct{}{}
			return nil, fmt.Errorf("recycle browser: %w", err)
		}
		p.browsers[slot] = fresh
		inst = fresh
	}

	return inst, nil
}

// Release returns an instance's slot to the pool.
func (p *Pool) Release() {
	p.sem <- struct{}{}
}

// WithPage acquires an instance, opens a tab, runs fn, and always releases
// both the tab and the instance slot. The orchestrator does not use it: it
// calls Acquire and the instance's Page directly so one tab stays open for
// the whole crawl.
func (p *Pool) WithPage(ctx context.Context, fn func(*rod.Page) error) error {
	inst, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer p.Release()

	page, err := inst.Page(ctx)
	if err != nil {
		return err
	}
	defer page.Close()

	return fn(page)
}

// Size returns the configured pool size.
func (p *Pool) Size() int {
	return len(p.browsers)
}

// Stats reports pool utilization.
type Stats struct {
	Size       int
	Available  int
	TotalPages int
}

// Stats returns current pool statistics.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	total := 0
	for _, b := range p.browsers {
		if b != nil {
			total += b.PageCount()
		}
	}

	return Stats{Size: len(p.browsers), Available: len(p.sem), TotalPages: total}
}

// Close shuts down every browser instance in the pool.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	var lastErr error
	for _, b := range p.browsers {
		if b != nil {
			if err := b.Close(); err != nil {
				lastErr = err
			}
		}
	}
	close(p.sem)
	return lastErr
}
