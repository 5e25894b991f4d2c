package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mattjoyce/svcengine/internal/metrics"
)

// Request outcomes, also used as metric labels.
const (
	OutcomeAnswered    = "answered"
	OutcomeTimeout     = "timeout"
	OutcomeUnavailable = "unavailable"
	OutcomeCancelled   = "cancelled"
	OutcomeStale       = "stale"
)

// Client issues correlated requests to the Worker currently attached to it.
//
// The transaction counter lives on the Client rather than the Worker, so ids
// keep increasing when the owning service replaces a stopped Worker with a
// new one. One request at a time owns the channel pair; callers wait for
// their turn inside their own timeout.
type Client struct {
	name    string
	timeout time.Duration
	logger  *slog.Logger

	// slot holds a token while a request owns the channel pair.
	slot chan struct{}

	mu     sync.Mutex
	nextID uint64
	w      *Worker
}

// NewClient returns a client with a default per-request timeout.
func NewClient(name string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{name: name, timeout: timeout, logger: logger, slot: make(chan struct{}, 1)}
}

// Attach points the client at w. Requests already waiting keep the worker
// they started with.
func (c *Client) Attach(w *Worker) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.w = w
}

// LastTransactionID returns the most recently allocated id (0 if none).
func (c *Client) LastTransactionID() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nextID
}

func (c *Client) attached() *Worker {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.w
}

func (c *Client) allocateID() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	return c.nextID
}

// Request sends payload to the worker and waits for the reply carrying the
// same transaction id. It returns (nil, false) when no matching reply arrives
// within timeout, which callers must treat as a normal outcome. A zero
// timeout uses the client default. The timeout covers waiting for other
// callers, the handshake and the wait for the reply together.
func (c *Client) Request(ctx context.Context, payload any, timeout time.Duration) (any, bool) {
	if timeout <= 0 {
		timeout = c.timeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	w := c.attached()
	if w == nil || w.State() != Running {
		c.record(OutcomeUnavailable)
		return nil, false
	}

	select {
	case c.slot <- struct{}{}:
		defer func() { <-c.slot }()
	case <-timer.C:
		c.logger.Debug("request gave up waiting for its turn", "timeout", timeout)
		c.record(OutcomeTimeout)
		return nil, false
	case <-w.stopCh:
		c.record(OutcomeUnavailable)
		return nil, false
	case <-ctx.Done():
		c.record(OutcomeCancelled)
		return nil, false
	}

	id := c.allocateID()

	// Unbuffered: the send completes only when the servicing loop takes it.
	select {
	case w.inbound <- Message{TransactionID: id, Payload: payload}:
	case <-timer.C:
		c.logger.Debug("worker did not accept request", "transaction_id", id, "timeout", timeout)
		c.record(OutcomeTimeout)
		return nil, false
	case <-w.stopCh:
		c.record(OutcomeUnavailable)
		return nil, false
	case <-ctx.Done():
		c.record(OutcomeCancelled)
		return nil, false
	}

	for {
		select {
		case reply := <-w.outbound:
			if reply.TransactionID == id {
				c.record(OutcomeAnswered)
				return reply.Payload, true
			}
			c.logger.Debug("discarding stale reply", "transaction_id", reply.TransactionID, "waiting_for", id)
			c.record(OutcomeStale)
		case <-timer.C:
			c.logger.Debug("no reply from worker", "transaction_id", id, "timeout", timeout)
			c.record(OutcomeTimeout)
			return nil, false
		case <-w.stopCh:
			// A reply delivered just before stop still counts.
			select {
			case reply := <-w.outbound:
				if reply.TransactionID == id {
					c.record(OutcomeAnswered)
					return reply.Payload, true
				}
			default:
			}
			c.record(OutcomeUnavailable)
			return nil, false
		case <-ctx.Done():
			c.record(OutcomeCancelled)
			return nil, false
		}
	}
}

func (c *Client) record(outcome string) {
	metrics.RecordWorkerRequest(c.name, outcome)
}
