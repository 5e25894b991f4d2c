package services

import (
	"context"
	"math/rand/v2"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/mattjoyce/svcengine/internal/service"
	"github.com/mattjoyce/svcengine/internal/worker"
)

// KindRandom regenerates a random number in the background.
const KindRandom = "random"

// RequestLatest is the only request the random worker understands.
const RequestLatest = "latest_random_number"

// DefaultRandomInterval is how often a new number is drawn.
const DefaultRandomInterval = 5 * time.Second

// Random is a worker-backed service returning the latest number in 1..100.
type Random struct {
	*service.Backed
}

func NewRandom(base *service.Base, deps Deps) (service.Service, error) {
	interval, err := base.DurationSetting("interval", DefaultRandomInterval)
	if err != nil {
		return nil, err
	}
	if interval <= 0 {
		interval = DefaultRandomInterval
	}

	logger := base.Logger()
	newTask := func() (worker.Task, error) {
		return &randomTask{interval: interval, logger: logger.Debug}, nil
	}
	return &Random{Backed: service.NewBacked(base, newTask, deps.backedOptions()...)}, nil
}

func (r *Random) Handle(ctx context.Context, _ *service.Request) *service.Response {
	reply, ok := r.Request(ctx, RequestLatest)
	if !ok {
		return service.NewResponse(http.StatusServiceUnavailable, nil)
	}
	n, isInt := reply.(int64)
	if !isInt {
		return service.NewResponse(http.StatusInternalServerError, nil)
	}
	return service.Text(http.StatusOK, strconv.FormatInt(n, 10))
}

type randomTask struct {
	interval time.Duration
	latest   atomic.Int64
	logger   func(msg string, args ...any)
}

func (t *randomTask) Init(context.Context) error {
	t.latest.Store(0)
	return nil
}

func (t *randomTask) Loop(ctx context.Context) {
	n := rand.Int64N(100) + 1
	t.latest.Store(n)
	t.logger("latest random number", "value", n)

	timer := time.NewTimer(t.interval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (t *randomTask) HandleRequest(_ context.Context, payload any) any {
	if payload != RequestLatest {
		return nil
	}
	return t.latest.Load()
}

func (t *randomTask) Stop() {}

func (t *randomTask) Deinit() {
	t.latest.Store(0)
}
