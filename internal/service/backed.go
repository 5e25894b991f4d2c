package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/mattjoyce/svcengine/internal/worker"
)

// TaskFactory creates the task for a new worker run. Workers are single use,
// so Backed calls it on every Start.
type TaskFactory func() (worker.Task, error)

// StateObserver is told about every worker state transition.
type StateObserver func(service string, from, to worker.State)

// Backed is the worker-backed service variant. It owns one background worker
// at a time and a client whose transaction ids survive worker restarts.
// Embedders implement Handle and call Request to reach the worker.
type Backed struct {
	*Base

	cfg       WorkerConfig
	newTask   TaskFactory
	client    *worker.Client
	observers []StateObserver

	mu     sync.Mutex
	worker *worker.Worker
}

// BackedOption configures a Backed service.
type BackedOption func(*Backed)

// WithStateObserver registers fn for worker state transitions.
func WithStateObserver(fn StateObserver) BackedOption {
	return func(b *Backed) {
		if fn != nil {
			b.observers = append(b.observers, fn)
		}
	}
}

// NewBacked wraps base with a worker built by newTask.
func NewBacked(base *Base, newTask TaskFactory, opts ...BackedOption) *Backed {
	cfg := base.Registration().Worker.WithDefaults()
	b := &Backed{
		Base:    base,
		cfg:     cfg,
		newTask: newTask,
		client:  worker.NewClient(base.Name(), cfg.RequestTimeout, base.Logger()),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// WorkerConfig returns the effective worker timings.
func (b *Backed) WorkerConfig() WorkerConfig { return b.cfg }

// Start creates a fresh worker and starts it.
func (b *Backed) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.worker != nil && !b.worker.State().Terminal() {
		return fmt.Errorf("service %s: %w", b.Name(), worker.ErrAlreadyStarted)
	}

	task, err := b.newTask()
	if err != nil {
		return fmt.Errorf("service %s: create task: %w", b.Name(), err)
	}

	w := worker.New(task, worker.Config{
		Name:         b.Name(),
		PollInterval: b.cfg.PollInterval,
		GracePeriod:  b.cfg.GracePeriod,
		OnState:      b.notify,
	})
	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("service %s: %w", b.Name(), err)
	}

	b.worker = w
	b.client.Attach(w)
	return nil
}

// Stop shuts the worker down. A forced termination is logged by the worker
// and is not an error for the caller.
func (b *Backed) Stop(ctx context.Context) error {
	b.mu.Lock()
	w := b.worker
	b.mu.Unlock()

	if w == nil {
		return nil
	}
	w.Shutdown(ctx)
	return nil
}

// Request performs one correlated round-trip with the worker using the
// configured request timeout. ok is false when no answer arrived in time.
func (b *Backed) Request(ctx context.Context, payload any) (reply any, ok bool) {
	return b.client.Request(ctx, payload, b.cfg.RequestTimeout)
}

// WorkerState reports the state of the current worker, Created if none yet.
func (b *Backed) WorkerState() worker.State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.worker == nil {
		return worker.Created
	}
	return b.worker.State()
}

// WorkerInfo describes the current worker run. ok is false before the first Start.
func (b *Backed) WorkerInfo() (info worker.Info, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.worker == nil {
		return worker.Info{}, false
	}
	return b.worker.Info(), true
}

// LastTransactionID exposes the client's id counter.
func (b *Backed) LastTransactionID() uint64 {
	return b.client.LastTransactionID()
}

func (b *Backed) notify(name string, from, to worker.State) {
	for _, fn := range b.observers {
		fn(name, from, to)
	}
}
