package gojob

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-issuer/core"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
)

const (
	JobIDProcessAdvance     = core.JobIDProcessAdvance
	JobIDCredentialWatchdog = core.JobIDCredentialWatchdog
)

// issuerJobs lists the job ids the issuer enqueues and handles.
var issuerJobs = map[string]struct{}{
	JobIDProcessAdvance:     {},
	JobIDCredentialWatchdog: {},
}

// RetryPolicy bounds redelivery of a failing issuer job. Attempts are
// counted per job key by the DequeuerAdapter.
type RetryPolicy struct {
	MaxAttempts     int
	MaxDelay        time.Duration
	DeadLetterOnMax bool
}

// NormalizeAttempt clamps the delay and decides between requeue and dead
// letter for the given attempt number.
func (p RetryPolicy) NormalizeAttempt(opts core.JobNackOptions, attempt int) core.JobNackOptions {
	out := opts
	out.Reason = strings.TrimSpace(out.Reason)
	out.Delay = max(out.Delay, 0)
	if p.MaxDelay > 0 {
		out.Delay = min(out.Delay, p.MaxDelay)
	}

	exhausted := p.MaxAttempts > 0 && attempt >= p.MaxAttempts
	switch {
	case out.DeadLetter:
		out.Requeue = false
	case exhausted && p.DeadLetterOnMax:
		out.Requeue = false
		out.DeadLetter = true
	case exhausted:
		// Without a dead letter queue the job is requeued and the counter
		// restarts with the next delivery.
		out.Requeue = true
	default:
		out.Requeue = true
	}
	return out
}

func ToExecutionMessage(msg *core.JobExecutionMessage) *job.ExecutionMessage {
	if msg == nil {
		return nil
	}
	return &job.ExecutionMessage{
		JobID:          strings.TrimSpace(msg.JobID),
		ScriptPath:     strings.TrimSpace(msg.ScriptPath),
		Parameters:     copyParameters(msg.Parameters),
		IdempotencyKey: strings.TrimSpace(msg.IdempotencyKey),
		DedupPolicy:    job.DeduplicationPolicy(strings.TrimSpace(msg.DedupPolicy)),
	}
}

func FromExecutionMessage(msg *job.ExecutionMessage) *core.JobExecutionMessage {
	if msg == nil {
		return nil
	}
	return &core.JobExecutionMessage{
		JobID:          strings.TrimSpace(msg.JobID),
		ScriptPath:     strings.TrimSpace(msg.ScriptPath),
		Parameters:     copyParameters(msg.Parameters),
		IdempotencyKey: strings.TrimSpace(msg.IdempotencyKey),
		DedupPolicy:    strings.TrimSpace(string(msg.DedupPolicy)),
	}
}

func ToNackOptions(opts core.JobNackOptions) queue.NackOptions {
	return queue.NackOptions{
		Delay:      opts.Delay,
		Requeue:    opts.Requeue,
		DeadLetter: opts.DeadLetter,
		Reason:     opts.Reason,
	}
}

func FromNackOptions(opts queue.NackOptions) core.JobNackOptions {
	return core.JobNackOptions{
		Delay:      opts.Delay,
		Requeue:    opts.Requeue,
		DeadLetter: opts.DeadLetter,
		Reason:     opts.Reason,
	}
}

// jobKey identifies a job across redeliveries.
func jobKey(msg *job.ExecutionMessage) string {
	if msg == nil {
		return ""
	}
	if key := strings.TrimSpace(msg.IdempotencyKey); key != "" {
		return key
	}
	return strings.TrimSpace(msg.JobID)
}

// EnqueuerAdapter publishes issuer jobs to a go-job queue. Script path and
// idempotency key default to the job id.
type EnqueuerAdapter struct {
	enqueuer queue.Enqueuer
}

func NewEnqueuerAdapter(enqueuer queue.Enqueuer) *EnqueuerAdapter {
	return &EnqueuerAdapter{enqueuer: enqueuer}
}

func (a *EnqueuerAdapter) Enqueue(ctx context.Context, msg *core.JobExecutionMessage) error {
	if a == nil || a.enqueuer == nil {
		return fmt.Errorf("gojob: enqueuer is not configured")
	}
	if msg == nil {
		return fmt.Errorf("gojob: execution message is required")
	}
	out := ToExecutionMessage(msg)
	if _, ok := issuerJobs[out.JobID]; !ok {
		return fmt.Errorf("gojob: unsupported issuer job %q", out.JobID)
	}
	if out.ScriptPath == "" {
		out.ScriptPath = out.JobID
	}
	if out.IdempotencyKey == "" {
		out.IdempotencyKey = out.JobID
	}
	return a.enqueuer.Enqueue(ctx, out)
}

type attemptTracker struct {
	mu       sync.Mutex
	attempts map[string]int
}

func newAttemptTracker() *attemptTracker {
	return &attemptTracker{attempts: map[string]int{}}
}

func (t *attemptTracker) failed(key string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.attempts[key]++
	return t.attempts[key]
}

func (t *attemptTracker) reset(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.attempts, key)
}

// DeliveryAdapter exposes a go-job delivery as a core.JobDelivery.
type DeliveryAdapter struct {
	delivery queue.Delivery
	policy   RetryPolicy
	tracker  *attemptTracker
}

func NewDeliveryAdapter(delivery queue.Delivery, policy RetryPolicy) *DeliveryAdapter {
	return &DeliveryAdapter{delivery: delivery, policy: policy}
}

func (d *DeliveryAdapter) Message() *core.JobExecutionMessage {
	if d == nil || d.delivery == nil {
		return nil
	}
	return FromExecutionMessage(d.delivery.Message())
}

func (d *DeliveryAdapter) Ack(ctx context.Context) error {
	if d == nil || d.delivery == nil {
		return fmt.Errorf("gojob: delivery is not configured")
	}
	if d.tracker != nil {
		d.tracker.reset(jobKey(d.delivery.Message()))
	}
	return d.delivery.Ack(ctx)
}

// Nack counts the failure against the job key when the delivery came from
// a DequeuerAdapter.
func (d *DeliveryAdapter) Nack(ctx context.Context, opts core.JobNackOptions) error {
	if d == nil || d.delivery == nil {
		return fmt.Errorf("gojob: delivery is not configured")
	}
	attempt := 0
	key := jobKey(d.delivery.Message())
	if d.tracker != nil {
		attempt = d.tracker.failed(key)
	}
	normalized := d.policy.NormalizeAttempt(opts, attempt)
	if d.tracker != nil && (normalized.DeadLetter || (d.policy.MaxAttempts > 0 && attempt >= d.policy.MaxAttempts)) {
		d.tracker.reset(key)
	}
	return d.delivery.Nack(ctx, ToNackOptions(normalized))
}

func (d *DeliveryAdapter) NackForAttempt(ctx context.Context, opts core.JobNackOptions, attempt int) error {
	if d == nil || d.delivery == nil {
		return fmt.Errorf("gojob: delivery is not configured")
	}
	return d.delivery.Nack(ctx, ToNackOptions(d.policy.NormalizeAttempt(opts, attempt)))
}

// DequeuerAdapter pulls issuer jobs and tracks failed attempts per job key
// so RetryPolicy.MaxAttempts applies across redeliveries.
type DequeuerAdapter struct {
	dequeuer queue.Dequeuer
	policy   RetryPolicy
	tracker  *attemptTracker
}

func NewDequeuerAdapter(dequeuer queue.Dequeuer, policy RetryPolicy) *DequeuerAdapter {
	return &DequeuerAdapter{dequeuer: dequeuer, policy: policy, tracker: newAttemptTracker()}
}

func (a *DequeuerAdapter) Dequeue(ctx context.Context) (core.JobDelivery, error) {
	if a == nil || a.dequeuer == nil {
		return nil, fmt.Errorf("gojob: dequeuer is not configured")
	}
	delivery, err := a.dequeuer.Dequeue(ctx)
	if err != nil {
		return nil, err
	}
	if delivery == nil {
		return nil, nil
	}
	return &DeliveryAdapter{delivery: delivery, policy: a.policy, tracker: a.tracker}, nil
}

// WorkerHookAdapter forwards go-job worker events to a core.JobWorkerHook.
type WorkerHookAdapter struct {
	hook core.JobWorkerHook
}

func NewWorkerHookAdapter(hook core.JobWorkerHook) *WorkerHookAdapter {
	return &WorkerHookAdapter{hook: hook}
}

func (a *WorkerHookAdapter) OnStart(ctx context.Context, event worker.Event) {
	a.forward(ctx, event, core.JobWorkerHook.OnStart)
}

func (a *WorkerHookAdapter) OnSuccess(ctx context.Context, event worker.Event) {
	a.forward(ctx, event, core.JobWorkerHook.OnSuccess)
}

func (a *WorkerHookAdapter) OnFailure(ctx context.Context, event worker.Event) {
	a.forward(ctx, event, core.JobWorkerHook.OnFailure)
}

func (a *WorkerHookAdapter) OnRetry(ctx context.Context, event worker.Event) {
	a.forward(ctx, event, core.JobWorkerHook.OnRetry)
}

func (a *WorkerHookAdapter) forward(
	ctx context.Context,
	event worker.Event,
	phase func(core.JobWorkerHook, context.Context, core.JobWorkerEvent),
) {
	if a == nil || a.hook == nil {
		return
	}
	phase(a.hook, ctx, toWorkerEvent(event))
}

func toWorkerEvent(event worker.Event) core.JobWorkerEvent {
	message := event.Message
	if message == nil && event.Delivery != nil {
		message = event.Delivery.Message()
	}
	return core.JobWorkerEvent{
		Message:   FromExecutionMessage(message),
		Attempt:   event.Attempt,
		Delay:     event.Delay,
		Err:       event.Err,
		StartedAt: event.StartedAt,
		Duration:  event.Duration,
	}
}

func copyParameters(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

var (
	_ core.JobEnqueuer = (*EnqueuerAdapter)(nil)
	_ core.JobDelivery = (*DeliveryAdapter)(nil)
	_ core.JobDequeuer = (*DequeuerAdapter)(nil)
	_ worker.Hook      = (*WorkerHookAdapter)(nil)
)
