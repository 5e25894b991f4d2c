package worker

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/mattjoyce/svcengine/internal/protocol"
)

// ProcessConfig describes the child process behind a ProcessTask.
type ProcessConfig struct {
	Command string
	Args    []string
	Dir     string
	Env     []string
	// ReplyTimeout bounds how long one request waits for the child's answer.
	ReplyTimeout time.Duration
	// RestartDelay is the pause before restarting a child that exited on its own.
	RestartDelay time.Duration
	Logger       *slog.Logger
}

// ProcessTask is a Task that forwards requests to a long-lived child process
// speaking newline-delimited JSON envelopes on stdin/stdout. Stop sends
// SIGTERM and Kill sends SIGKILL, so a child that ignores SIGTERM is killed
// once the worker's grace period runs out.
type ProcessTask struct {
	cfg     ProcessConfig
	replies chan *protocol.Envelope

	mu     sync.Mutex
	cmd    *exec.Cmd
	enc    *protocol.Encoder
	exited chan struct{}
	seq    uint64
}

// NewProcessTask validates cfg and returns an unstarted task.
func NewProcessTask(cfg ProcessConfig) (*ProcessTask, error) {
	if cfg.Command == "" {
		return nil, errors.New("process command is required")
	}
	if cfg.ReplyTimeout <= 0 {
		cfg.ReplyTimeout = 5 * time.Second
	}
	if cfg.RestartDelay <= 0 {
		cfg.RestartDelay = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &ProcessTask{
		cfg:     cfg,
		replies: make(chan *protocol.Envelope, 16),
	}, nil
}

// Init starts the child process.
func (p *ProcessTask) Init(ctx context.Context) error {
	return p.spawn()
}

func (p *ProcessTask) spawn() error {
	cmd := exec.Command(p.cfg.Command, p.cfg.Args...)
	cmd.Dir = p.cfg.Dir
	if len(p.cfg.Env) > 0 {
		cmd.Env = p.cfg.Env
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", p.cfg.Command, err)
	}

	exited := make(chan struct{})
	logger := p.cfg.Logger.With("pid", cmd.Process.Pid)

	go p.readReplies(stdout, logger)
	go logStderr(stderr, logger)
	go func() {
		err := cmd.Wait()
		logger.Debug("child process exited", "error", err)
		close(exited)
	}()

	p.mu.Lock()
	p.cmd = cmd
	p.enc = protocol.NewEncoder(stdin)
	p.exited = exited
	p.mu.Unlock()

	logger.Info("child process started", "command", p.cfg.Command)
	return nil
}

func (p *ProcessTask) readReplies(r io.Reader, logger *slog.Logger) {
	dec := protocol.NewDecoder(r)
	for {
		env, err := dec.Decode()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Warn("child process protocol error", "error", err)
			}
			return
		}
		select {
		case p.replies <- env:
		default:
			logger.Warn("reply buffer full, dropping envelope", "id", env.ID)
		}
	}
}

func logStderr(r io.Reader, logger *slog.Logger) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		logger.Info("child stderr", "line", scanner.Text())
	}
}

// Loop waits for the child to exit. If it exits while the worker is running it
// is restarted after RestartDelay. Once ctx is cancelled Loop keeps waiting for
// the child to go away, which is what lets shutdown escalate to Kill.
func (p *ProcessTask) Loop(ctx context.Context) {
	p.mu.Lock()
	exited := p.exited
	p.mu.Unlock()

	select {
	case <-exited:
		if ctx.Err() != nil {
			return
		}
		p.cfg.Logger.Warn("child process exited unexpectedly, restarting", "delay", p.cfg.RestartDelay)
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.cfg.RestartDelay):
		}
		if err := p.spawn(); err != nil {
			p.cfg.Logger.Error("failed to restart child process", "error", err)
		}
	case <-ctx.Done():
		<-exited
	}
}

// HandleRequest writes payload to the child and waits for the envelope with
// the matching id. Replies to earlier, abandoned requests are discarded.
func (p *ProcessTask) HandleRequest(ctx context.Context, payload any) any {
	p.mu.Lock()
	p.seq++
	id := p.seq
	enc := p.enc
	exited := p.exited
	p.mu.Unlock()

	env, err := protocol.NewEnvelope(id, payload)
	if err != nil {
		p.cfg.Logger.Warn("cannot encode request for child", "error", err)
		return nil
	}
	if err := enc.Encode(env); err != nil {
		p.cfg.Logger.Warn("cannot write to child", "error", err)
		return nil
	}

	timer := time.NewTimer(p.cfg.ReplyTimeout)
	defer timer.Stop()

	for {
		select {
		case reply := <-p.replies:
			if reply.ID != id {
				p.cfg.Logger.Debug("discarding stale child reply", "id", reply.ID, "waiting_for", id)
				continue
			}
			if reply.Error != "" {
				p.cfg.Logger.Warn("child reported error", "id", id, "error", reply.Error)
				return nil
			}
			v, err := reply.Value()
			if err != nil {
				p.cfg.Logger.Warn("cannot decode child reply", "id", id, "error", err)
				return nil
			}
			return v
		case <-timer.C:
			return nil
		case <-exited:
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

// Stop asks the child to exit with SIGTERM.
func (p *ProcessTask) Stop() {
	if err := p.signal(syscall.SIGTERM); err != nil {
		p.cfg.Logger.Warn("failed to send SIGTERM", "error", err)
	}
}

// Kill sends SIGKILL to the child.
func (p *ProcessTask) Kill() error {
	return p.signal(syscall.SIGKILL)
}

// Pid returns the current child's pid, or 0 before Init.
func (p *ProcessTask) Pid() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd == nil || p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

func (p *ProcessTask) signal(sig syscall.Signal) error {
	p.mu.Lock()
	cmd := p.cmd
	exited := p.exited
	p.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}
	select {
	case <-exited:
		return nil
	default:
	}
	if err := cmd.Process.Signal(sig); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("send %s: %w", sig, err)
	}
	return nil
}
