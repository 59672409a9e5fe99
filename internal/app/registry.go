package app

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kg-components/storefront/internal/pkg/metrics"
	"github.com/sirupsen/logrus"
)

// Factory builds a storefront for a visitor. credential is the access
// token the visitor last held, or "".
type Factory func(ctx context.Context, id, credential string) (*Storefront, error)

// Registry keeps one storefront per visitor and disposes idle ones
type Registry struct {
	factory Factory
	idleTTL time.Duration
	log     logrus.FieldLogger

	mu    sync.Mutex
	items map[string]*Storefront

	started  atomic.Bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewRegistry creates an empty registry
func NewRegistry(factory Factory, idleTTL time.Duration, log logrus.FieldLogger) *Registry {
	return &Registry{
		factory: factory,
		idleTTL: idleTTL,
		log:     log.WithField("component", "registry"),
		items:   make(map[string]*Storefront),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Get returns the visitor's storefront, building and initialising it on
// first use.
func (r *Registry) Get(ctx context.Context, id, credential string) (*Storefront, error) {
	r.mu.Lock()
	sf, ok := r.items[id]
	r.mu.Unlock()
	if ok {
		sf.Touch()
		return sf, nil
	}

	sf, err := r.factory(ctx, id, credential)
	if err != nil {
		return nil, err
	}
	if err := sf.Init(ctx); err != nil {
		sf.Dispose()
		return nil, err
	}

	r.mu.Lock()
	if existing, raced := r.items[id]; raced {
		r.mu.Unlock()
		sf.Dispose()
		existing.Touch()
		return existing, nil
	}
	r.items[id] = sf
	n := len(r.items)
	r.mu.Unlock()

	metrics.ActiveStorefronts.Set(float64(n))
	return sf, nil
}

// Len returns the number of held storefronts
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// Remove disposes and forgets a storefront
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	sf, ok := r.items[id]
	delete(r.items, id)
	n := len(r.items)
	r.mu.Unlock()

	if ok {
		sf.Dispose()
		metrics.ActiveStorefronts.Set(float64(n))
	}
}

// Sweep disposes every storefront idle since before now minus the idle TTL
// and returns how many were evicted.
func (r *Registry) Sweep(now time.Time) int {
	cutoff := now.Add(-r.idleTTL)

	r.mu.Lock()
	var idle []*Storefront
	for id, sf := range r.items {
		if sf.LastSeen().Before(cutoff) {
			idle = append(idle, sf)
			delete(r.items, id)
		}
	}
	n := len(r.items)
	r.mu.Unlock()

	for _, sf := range idle {
		sf.Dispose()
	}
	if len(idle) > 0 {
		metrics.ActiveStorefronts.Set(float64(n))
		r.log.WithField("evicted", len(idle)).Debug("evicted idle storefronts")
	}
	return len(idle)
}

// Start runs the janitor every interval until Close
func (r *Registry) Start(interval time.Duration) {
	if !r.started.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer close(r.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-r.stop:
				return
			case now := <-ticker.C:
				r.Sweep(now)
			}
		}
	}()
}

// Close stops the janitor and disposes every storefront
func (r *Registry) Close() {
	r.stopOnce.Do(func() {
		close(r.stop)
	})
	if r.started.Load() {
		<-r.done
	}

	r.mu.Lock()
	items := r.items
	r.items = make(map[string]*Storefront)
	r.mu.Unlock()

	for _, sf := range items {
		sf.Dispose()
	}
	metrics.ActiveStorefronts.Set(0)
	r.log.WithField("disposed", len(items)).Info("storefront registry closed")
}
