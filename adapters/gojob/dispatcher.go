package gojob

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-issuer/core"
	glog "github.com/goliatone/go-logger/glog"
)

// JobHandler executes one issuer job.
type JobHandler interface {
	HandleJob(ctx context.Context, msg *core.JobExecutionMessage) error
}

type JobHandlerFunc func(ctx context.Context, msg *core.JobExecutionMessage) error

func (f JobHandlerFunc) HandleJob(ctx context.Context, msg *core.JobExecutionMessage) error {
	return f(ctx, msg)
}

// BackgroundRunner is the part of the issuer service the job handlers drive.
type BackgroundRunner interface {
	RunProcessManager(ctx context.Context) (core.ProcessRunResult, error)
	RunCredentialWatchdog(ctx context.Context) (core.WatchdogRunResult, error)
}

// IssuerJobHandlers maps the issuer job ids onto a single run of the
// matching background loop.
func IssuerJobHandlers(runner BackgroundRunner) map[string]JobHandler {
	return map[string]JobHandler{
		JobIDProcessAdvance: JobHandlerFunc(func(ctx context.Context, _ *core.JobExecutionMessage) error {
			_, err := runner.RunProcessManager(ctx)
			return err
		}),
		JobIDCredentialWatchdog: JobHandlerFunc(func(ctx context.Context, _ *core.JobExecutionMessage) error {
			_, err := runner.RunCredentialWatchdog(ctx)
			return err
		}),
	}
}

type DispatcherConfig struct {
	Dequeuer   core.JobDequeuer
	Handlers   map[string]JobHandler
	Hook       core.JobWorkerHook
	RetryDelay time.Duration
	Logger     glog.Logger
}

// Dispatcher pulls deliveries and routes them to handlers by job id.
// Unknown job ids are dead lettered; handler failures are requeued.
type Dispatcher struct {
	dequeuer   core.JobDequeuer
	handlers   map[string]JobHandler
	hook       core.JobWorkerHook
	retryDelay time.Duration
	logger     glog.Logger
	now        func() time.Time
}

func NewDispatcher(cfg DispatcherConfig) (*Dispatcher, error) {
	if cfg.Dequeuer == nil {
		return nil, fmt.Errorf("gojob: dequeuer is required")
	}
	if len(cfg.Handlers) == 0 {
		return nil, fmt.Errorf("gojob: at least one job handler is required")
	}
	handlers := make(map[string]JobHandler, len(cfg.Handlers))
	for id, handler := range cfg.Handlers {
		if handler == nil {
			continue
		}
		handlers[strings.TrimSpace(id)] = handler
	}
	logger := cfg.Logger
	if logger == nil {
		logger = glog.Nop()
	}
	return &Dispatcher{
		dequeuer:   cfg.Dequeuer,
		handlers:   handlers,
		hook:       cfg.Hook,
		retryDelay: cfg.RetryDelay,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// DispatchOne handles a single delivery. The returned error reports queue
// failures only; handler errors end in a nack.
func (d *Dispatcher) DispatchOne(ctx context.Context) error {
	if d == nil || d.dequeuer == nil {
		return fmt.Errorf("gojob: dispatcher is not configured")
	}
	delivery, err := d.dequeuer.Dequeue(ctx)
	if err != nil {
		return err
	}
	if delivery == nil {
		return nil
	}
	msg := delivery.Message()
	if msg == nil {
		return delivery.Nack(ctx, core.JobNackOptions{DeadLetter: true, Reason: "missing job message"})
	}

	handler, ok := d.handlers[strings.TrimSpace(msg.JobID)]
	if !ok {
		d.logger.Warn("issuer job dead lettered", "job_id", msg.JobID, "reason", "unsupported job")
		return delivery.Nack(ctx, core.JobNackOptions{
			DeadLetter: true,
			Reason:     fmt.Sprintf("unsupported job %q", msg.JobID),
		})
	}

	started := d.now()
	event := core.JobWorkerEvent{Message: msg, StartedAt: started}
	d.emit(ctx, event, "start")
	if err := handler.HandleJob(ctx, msg); err != nil {
		event.Err = err
		event.Delay = d.retryDelay
		event.Duration = d.now().Sub(started)
		d.emit(ctx, event, "failure")
		d.emit(ctx, event, "retry")
		d.logger.Warn("issuer job failed", "job_id", msg.JobID, "error", err.Error(), "retry_delay", d.retryDelay.String())
		return delivery.Nack(ctx, core.JobNackOptions{
			Delay:   d.retryDelay,
			Requeue: true,
			Reason:  err.Error(),
		})
	}
	event.Duration = d.now().Sub(started)
	d.emit(ctx, event, "success")
	return delivery.Ack(ctx)
}

// Run dispatches until ctx is cancelled or the queue fails.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		if err := d.DispatchOne(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

func (d *Dispatcher) emit(ctx context.Context, event core.JobWorkerEvent, phase string) {
	if d.hook == nil {
		return
	}
	switch phase {
	case "start":
		d.hook.OnStart(ctx, event)
	case "success":
		d.hook.OnSuccess(ctx, event)
	case "failure":
		d.hook.OnFailure(ctx, event)
	case "retry":
		d.hook.OnRetry(ctx, event)
	}
}

var _ BackgroundRunner = core.IssuanceService(nil)
