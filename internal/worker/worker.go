package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/mattjoyce/svcengine/internal/log"
)

// Default timings, matching service.WorkerConfig defaults.
const (
	DefaultPollInterval = 2 * time.Second
	DefaultGracePeriod  = 2 * time.Second
)

// ErrAlreadyStarted is returned when Start is called on a worker that has left Created.
var ErrAlreadyStarted = errors.New("worker already started")

// State is the lifecycle state of a Worker.
type State int32

const (
	Created State = iota
	Running
	StopRequested
	Stopped
	ForceTerminated
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Running:
		return "running"
	case StopRequested:
		return "stop_requested"
	case Stopped:
		return "stopped"
	case ForceTerminated:
		return "force_terminated"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == Stopped || s == ForceTerminated
}

// Message travels on both worker channels.
type Message struct {
	TransactionID uint64
	Payload       any
}

// Task is the service-specific behaviour run by a Worker.
type Task interface {
	// Loop performs one unit of background work. It is called repeatedly until
	// the worker is asked to stop; ctx is cancelled at that moment. Loop should
	// block for the duration of its unit of work. A Loop that returns at once
	// is re-entered only after the poll interval; request-only tasks embed
	// NoWork instead.
	Loop(ctx context.Context)
	// HandleRequest computes the reply to one request payload.
	HandleRequest(ctx context.Context, payload any) any
	// Stop is the best-effort release hook called when shutdown begins.
	Stop()
}

// Initializer is implemented by tasks that need setup before the loops start.
type Initializer interface {
	Init(ctx context.Context) error
}

// Deinitializer is implemented by tasks that clean up after a graceful stop.
type Deinitializer interface {
	Deinit()
}

// Killer is implemented by tasks that can be forcibly terminated, such as a
// child process. Goroutine-only tasks are abandoned instead.
type Killer interface {
	Kill() error
}

// Config tunes a Worker.
type Config struct {
	Name         string
	PollInterval time.Duration
	GracePeriod  time.Duration
	Logger       *slog.Logger
	// OnState is called after every state transition.
	OnState func(name string, from, to State)
}

// Worker runs a Task with a servicing loop and a work loop. It talks to its
// owner only through the inbound and outbound channels. A Worker is single
// use: once stopped it cannot be started again.
type Worker struct {
	cfg   Config
	task  Task
	runID string

	inbound  chan Message
	outbound chan Message
	stopCh   chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	state       atomic.Int32
	servingDone chan struct{}
	workDone    chan struct{}
	lastPoll    atomic.Int64
	handled     atomic.Uint64
}

// New creates a Worker in the Created state.
func New(task Task, cfg Config) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = DefaultGracePeriod
	}
	runID := uuid.NewString()
	if cfg.Logger == nil {
		cfg.Logger = log.WithWorker(cfg.Name, runID)
	} else {
		cfg.Logger = cfg.Logger.With("worker_run", runID)
	}

	return &Worker{
		cfg:         cfg,
		task:        task,
		runID:       runID,
		inbound:     make(chan Message),
		outbound:    make(chan Message, 1),
		stopCh:      make(chan struct{}),
		servingDone: make(chan struct{}),
		workDone:    make(chan struct{}),
	}
}

// Name returns the configured worker name.
func (w *Worker) Name() string { return w.cfg.Name }

// State returns the current lifecycle state.
func (w *Worker) State() State { return State(w.state.Load()) }

// Info is an operator view of one worker run.
type Info struct {
	RunID   string `json:"run_id"`
	State   string `json:"state"`
	Handled uint64 `json:"handled"`
	// LastPoll is the last time the servicing loop woke up without a message.
	LastPoll time.Time `json:"last_poll"`
	Pid      int       `json:"pid,omitempty"`
}

// Info reports the run id, state and counters of w. Pid is set for tasks
// backed by a child process.
func (w *Worker) Info() Info {
	info := Info{
		RunID:   w.runID,
		State:   w.State().String(),
		Handled: w.handled.Load(),
	}
	if ns := w.lastPoll.Load(); ns != 0 {
		info.LastPoll = time.Unix(0, ns).UTC()
	}
	if p, ok := w.task.(interface{ Pid() int }); ok {
		info.Pid = p.Pid()
	}
	return info
}

// Start initialises the task and launches both loops.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.State() != Created {
		return fmt.Errorf("%w: %s is %s", ErrAlreadyStarted, w.cfg.Name, w.State())
	}

	if init, ok := w.task.(Initializer); ok {
		if err := init.Init(ctx); err != nil {
			w.setState(Stopped)
			return fmt.Errorf("init worker %s: %w", w.cfg.Name, err)
		}
	}

	// Detached from the caller: the worker outlives Start's context.
	w.ctx, w.cancel = context.WithCancel(context.WithoutCancel(ctx))

	go w.serve()
	go w.work()

	w.setState(Running)
	w.cfg.Logger.Debug("worker started", "poll_interval", w.cfg.PollInterval)
	return nil
}

// Shutdown stops the worker and returns its terminal state.
//
// It raises the stop flag, calls Task.Stop and waits up to the grace period
// for both loops to return. If they do not, the worker is force terminated:
// Kill is called when the task implements Killer and the loops are abandoned
// along with any work in flight. Calling Shutdown again returns the terminal
// state without repeating any of this.
func (w *Worker) Shutdown(ctx context.Context) State {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch st := w.State(); st {
	case Created:
		w.setState(Stopped)
		return Stopped
	case Stopped, ForceTerminated:
		return st
	}

	w.setState(StopRequested)
	close(w.stopCh)
	w.cancel()
	w.callStop()

	done := make(chan struct{})
	go func() {
		<-w.servingDone
		<-w.workDone
		close(done)
	}()

	grace := time.NewTimer(w.cfg.GracePeriod)
	defer grace.Stop()

	select {
	case <-done:
		if d, ok := w.task.(Deinitializer); ok {
			d.Deinit()
		}
		w.setState(Stopped)
		w.cfg.Logger.Debug("worker stopped")
	case <-grace.C:
		w.forceTerminate("grace period elapsed")
	case <-ctx.Done():
		w.forceTerminate(ctx.Err().Error())
	}
	return w.State()
}

func (w *Worker) forceTerminate(reason string) {
	w.cfg.Logger.Warn("worker did not stop in time, force terminating",
		"reason", reason,
		"grace_period", w.cfg.GracePeriod,
	)
	if k, ok := w.task.(Killer); ok {
		if err := k.Kill(); err != nil {
			w.cfg.Logger.Warn("kill failed", "error", err)
		}
	}
	w.setState(ForceTerminated)
}

func (w *Worker) callStop() {
	defer func() {
		if r := recover(); r != nil {
			w.cfg.Logger.Error("task stop hook panicked", "panic", r)
		}
	}()
	w.task.Stop()
}

func (w *Worker) setState(to State) {
	from := State(w.state.Swap(int32(to)))
	if from == to {
		return
	}
	if w.cfg.OnState != nil {
		w.cfg.OnState(w.cfg.Name, from, to)
	}
}

// serve is the servicing loop. It never blocks longer than the poll interval
// without re-checking the stop flag, and returns as soon as stop is raised
// while idle.
func (w *Worker) serve() {
	defer close(w.servingDone)

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case msg := <-w.inbound:
			reply := w.handle(msg)
			w.deliver(Message{TransactionID: msg.TransactionID, Payload: reply})
		case now := <-ticker.C:
			w.lastPoll.Store(now.UnixNano())
		}
	}
}

func (w *Worker) handle(msg Message) (reply any) {
	defer func() {
		if r := recover(); r != nil {
			w.cfg.Logger.Error("request handler panicked",
				"transaction_id", msg.TransactionID,
				"panic", r,
			)
			reply = nil
		}
	}()
	reply = w.task.HandleRequest(w.ctx, msg.Payload)
	w.handled.Add(1)
	return reply
}

// deliver places a reply on the outbound channel. Requests are serialised by
// the client, so anything still buffered belongs to an abandoned request and
// is replaced.
func (w *Worker) deliver(m Message) {
	for {
		select {
		case w.outbound <- m:
			return
		case <-w.stopCh:
			return
		default:
		}
		select {
		case stale := <-w.outbound:
			w.cfg.Logger.Debug("dropping unclaimed reply", "transaction_id", stale.TransactionID)
		default:
		}
	}
}

// minLoopDuration is the shortest Loop call that is re-entered immediately.
const minLoopDuration = time.Millisecond

// work is the work loop. A Loop call that panics or returns within
// minLoopDuration is followed by a poll interval pause.
func (w *Worker) work() {
	defer close(w.workDone)

	for {
		select {
		case <-w.stopCh:
			return
		default:
		}
		start := time.Now()
		if !w.runOnce() || time.Since(start) < minLoopDuration {
			select {
			case <-w.stopCh:
				return
			case <-time.After(w.cfg.PollInterval):
			}
		}
	}
}

func (w *Worker) runOnce() (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			w.cfg.Logger.Error("task loop panicked", "panic", r)
			ok = false
		}
	}()
	w.task.Loop(w.ctx)
	return true
}

// NoWork can be embedded by tasks that only answer requests.
type NoWork struct{}

// Loop blocks until the worker stops.
func (NoWork) Loop(ctx context.Context) { <-ctx.Done() }

// Stop does nothing.
func (NoWork) Stop() {}
