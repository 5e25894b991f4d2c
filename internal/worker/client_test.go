package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientRequestEcho(t *testing.T) {
	w := startWorker(t, &echoTask{}, Config{Name: "echo"})
	defer w.Shutdown(context.Background())

	c := NewClient("echo", time.Second, testLogger())
	c.Attach(w)

	reply, ok := c.Request(context.Background(), "hello", 0)
	require.True(t, ok)
	assert.Equal(t, "hello", reply)
	assert.Equal(t, uint64(1), c.LastTransactionID())
	assert.Equal(t, uint64(1), w.Info().Handled)
}

func TestClientDiscardsStaleReply(t *testing.T) {
	w := startWorker(t, &echoTask{}, Config{Name: "echo"})
	defer w.Shutdown(context.Background())

	c := NewClient("echo", time.Second, testLogger())
	c.Attach(w)

	// A reply left over from an abandoned request sits in the outbound buffer.
	w.outbound <- Message{TransactionID: 999, Payload: "stale"}

	reply, ok := c.Request(context.Background(), "fresh", 0)
	require.True(t, ok)
	assert.Equal(t, "fresh", reply)
}

func TestClientLateReplyIsNotDeliveredToNextCaller(t *testing.T) {
	w := startWorker(t, slowTask{}, Config{Name: "slow"})
	defer w.Shutdown(context.Background())

	c := NewClient("slow", time.Second, testLogger())
	c.Attach(w)

	reply, ok := c.Request(context.Background(), "sleep:300ms", 100*time.Millisecond)
	assert.False(t, ok)
	assert.Nil(t, reply)

	// The first reply arrives late and must not satisfy the second request.
	reply, ok = c.Request(context.Background(), "second", 2*time.Second)
	require.True(t, ok)
	assert.Equal(t, "second", reply)
}

func TestClientOverlappingCallers(t *testing.T) {
	w := startWorker(t, slowTask{}, Config{Name: "slow"})
	defer w.Shutdown(context.Background())

	c := NewClient("slow", 5*time.Second, testLogger())
	c.Attach(w)

	payloads := []string{"sleep:30ms", "sleep:1ms", "sleep:20ms", "sleep:5ms", "sleep:10ms"}
	replies := make([]any, len(payloads))
	oks := make([]bool, len(payloads))

	var wg sync.WaitGroup
	for i, p := range payloads {
		wg.Add(1)
		go func(i int, p string) {
			defer wg.Done()
			replies[i], oks[i] = c.Request(context.Background(), p, 0)
		}(i, p)
	}
	wg.Wait()

	for i, p := range payloads {
		assert.True(t, oks[i], "request %d", i)
		assert.Equal(t, p, replies[i], "caller %d got someone else's answer", i)
	}
	assert.Equal(t, uint64(len(payloads)), c.LastTransactionID())
}

func TestClientTimeoutIsHonoured(t *testing.T) {
	release := make(chan struct{})
	task := &blockingHandler{release: release}
	w := startWorker(t, task, Config{Name: "blocked", GracePeriod: 100 * time.Millisecond})
	defer func() {
		close(release)
		w.Shutdown(context.Background())
	}()

	c := NewClient("blocked", time.Second, testLogger())
	c.Attach(w)

	timeout := 200 * time.Millisecond
	start := time.Now()
	reply, ok := c.Request(context.Background(), "anything", timeout)
	elapsed := time.Since(start)

	assert.False(t, ok)
	assert.Nil(t, reply)
	assert.GreaterOrEqual(t, elapsed, timeout)
	assert.Less(t, elapsed, timeout+500*time.Millisecond)
}

func TestClientQueuedCallersKeepTheirTimeout(t *testing.T) {
	release := make(chan struct{})
	w := startWorker(t, &blockingHandler{release: release}, Config{Name: "blocked", GracePeriod: 100 * time.Millisecond})
	defer func() {
		close(release)
		w.Shutdown(context.Background())
	}()

	c := NewClient("blocked", time.Second, testLogger())
	c.Attach(w)

	timeout := 200 * time.Millisecond
	elapsed := make([]time.Duration, 5)
	var wg sync.WaitGroup
	for i := range elapsed {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			start := time.Now()
			_, ok := c.Request(context.Background(), "x", timeout)
			assert.False(t, ok)
			elapsed[i] = time.Since(start)
		}(i)
	}
	wg.Wait()

	for i, d := range elapsed {
		assert.Less(t, d, timeout+300*time.Millisecond, "caller %d waited %s", i, d)
	}
}

func TestClientQueuedCallerHonoursContext(t *testing.T) {
	release := make(chan struct{})
	w := startWorker(t, &blockingHandler{release: release}, Config{Name: "blocked", GracePeriod: 100 * time.Millisecond})
	defer func() {
		close(release)
		w.Shutdown(context.Background())
	}()

	c := NewClient("blocked", 5*time.Second, testLogger())
	c.Attach(w)

	first := make(chan struct{})
	go func() {
		defer close(first)
		c.Request(context.Background(), "first", time.Second)
	}()
	// Let the first caller take the slot.
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, ok := c.Request(ctx, "second", 0)
	assert.False(t, ok)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	<-first
}

func TestClientReturnsWhenWorkerStopsMidRequest(t *testing.T) {
	release := make(chan struct{})
	w := startWorker(t, &blockingHandler{release: release}, Config{Name: "blocked", GracePeriod: 50 * time.Millisecond})
	defer close(release)

	c := NewClient("blocked", 5*time.Second, testLogger())
	c.Attach(w)

	go func() {
		time.Sleep(50 * time.Millisecond)
		w.Shutdown(context.Background())
	}()

	start := time.Now()
	_, ok := c.Request(context.Background(), "x", 0)
	assert.False(t, ok)
	assert.Less(t, time.Since(start), time.Second)
}

func TestClientHandshakeTimeout(t *testing.T) {
	release := make(chan struct{})
	task := &blockingHandler{release: release}
	w := startWorker(t, task, Config{Name: "blocked", GracePeriod: 100 * time.Millisecond})
	defer func() {
		close(release)
		w.Shutdown(context.Background())
	}()

	c := NewClient("blocked", time.Second, testLogger())
	c.Attach(w)

	// First request occupies the servicing loop.
	_, ok := c.Request(context.Background(), "first", 100*time.Millisecond)
	assert.False(t, ok)

	// Second one cannot even be handed over and must still give up on time.
	start := time.Now()
	_, ok = c.Request(context.Background(), "second", 100*time.Millisecond)
	assert.False(t, ok)
	assert.Less(t, time.Since(start), 600*time.Millisecond)
}

func TestClientWithoutWorker(t *testing.T) {
	c := NewClient("none", time.Second, testLogger())

	start := time.Now()
	reply, ok := c.Request(context.Background(), "x", 0)
	assert.False(t, ok)
	assert.Nil(t, reply)
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestClientStoppedWorker(t *testing.T) {
	w := startWorker(t, &echoTask{}, Config{Name: "echo"})
	c := NewClient("echo", time.Second, testLogger())
	c.Attach(w)
	w.Shutdown(context.Background())

	_, ok := c.Request(context.Background(), "x", 0)
	assert.False(t, ok)
}

func TestClientContextCancelled(t *testing.T) {
	release := make(chan struct{})
	w := startWorker(t, &blockingHandler{release: release}, Config{Name: "blocked", GracePeriod: 100 * time.Millisecond})
	defer func() {
		close(release)
		w.Shutdown(context.Background())
	}()

	c := NewClient("blocked", 5*time.Second, testLogger())
	c.Attach(w)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, ok := c.Request(ctx, "x", 0)
	assert.False(t, ok)
	assert.Less(t, time.Since(start), time.Second)
}

func TestTransactionIDsIncreaseAcrossRestarts(t *testing.T) {
	c := NewClient("echo", time.Second, testLogger())

	first := startWorker(t, &echoTask{}, Config{Name: "echo"})
	c.Attach(first)
	_, ok := c.Request(context.Background(), "a", 0)
	require.True(t, ok)
	_, ok = c.Request(context.Background(), "b", 0)
	require.True(t, ok)
	assert.Equal(t, Stopped, first.Shutdown(context.Background()))
	assert.Equal(t, uint64(2), c.LastTransactionID())

	second := startWorker(t, &echoTask{}, Config{Name: "echo"})
	defer second.Shutdown(context.Background())
	c.Attach(second)

	reply, ok := c.Request(context.Background(), "c", 0)
	require.True(t, ok)
	assert.Equal(t, "c", reply)
	assert.Equal(t, uint64(3), c.LastTransactionID())
}

// blockingHandler never answers until released.
type blockingHandler struct {
	NoWork
	release chan struct{}
}

func (b *blockingHandler) HandleRequest(_ context.Context, payload any) any {
	<-b.release
	return payload
}
