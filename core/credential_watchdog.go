package core

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/goliatone/go-issuer/statuslist"
)

type WatchdogRunResult struct {
	Checked int
	Updated int
	Failed  int
}

// CredentialWatchdog re-evaluates the state of credentials that can still
// change: validity windows and status list bits.
type CredentialWatchdog struct {
	credentials CredentialStore
	revocation  *RevocationService
	logger      Logger
	clock       func() time.Time
}

func NewCredentialWatchdog(credentials CredentialStore, revocation *RevocationService, logger Logger, clock func() time.Time) *CredentialWatchdog {
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &CredentialWatchdog{
		credentials: credentials,
		revocation:  revocation,
		logger:      logger,
		clock:       clock,
	}
}

// Run scans once. Failures for a single credential are logged and skipped.
func (w *CredentialWatchdog) Run(ctx context.Context) (WatchdogRunResult, error) {
	if w == nil || w.credentials == nil {
		return WatchdogRunResult{}, programmingError("core: credential watchdog is not configured")
	}
	candidates, err := w.credentials.Query(ctx, NewQuerySpec(In("state", []string{
		string(CredentialStateIssued),
		string(CredentialStateNotYetValid),
		string(CredentialStateSuspended),
	})))
	if err != nil {
		return WatchdogRunResult{}, mapStoreError(err, "query credentials")
	}

	result := WatchdogRunResult{}
	for _, credential := range candidates {
		if !credential.State.RequiresStatusCheck() {
			continue
		}
		result.Checked++
		next, err := w.evaluate(ctx, credential)
		if err != nil {
			result.Failed++
			emitLog(ctx, w.logger, "warn", "credential status check failed", map[string]any{
				"credential_id": credential.ID,
				"error":         err.Error(),
			})
			continue
		}
		if next == credential.State {
			continue
		}
		if err := credential.TransitionTo(next, w.clock()); err != nil {
			result.Failed++
			emitLog(ctx, w.logger, "warn", "credential status transition rejected", map[string]any{
				"credential_id": credential.ID,
				"error":         err.Error(),
			})
			continue
		}
		if _, err := w.credentials.Update(ctx, credential); err != nil {
			result.Failed++
			emitLog(ctx, w.logger, "warn", "credential status update failed", map[string]any{
				"credential_id": credential.ID,
				"error":         err.Error(),
			})
			continue
		}
		result.Updated++
	}
	return result, nil
}

func (w *CredentialWatchdog) evaluate(ctx context.Context, credential VerifiableCredentialResource) (CredentialState, error) {
	suspended := false
	if w.revocation != nil {
		for _, entry := range credential.Credential.Status {
			ref, err := w.revocation.parseEntry(entry)
			if err != nil {
				return "", err
			}
			set, err := w.revocation.readBit(ctx, ref)
			if err != nil {
				return "", err
			}
			if !set {
				continue
			}
			switch ref.Purpose {
			case statuslist.PurposeRevocation:
				return CredentialStateRevoked, nil
			case statuslist.PurposeSuspension:
				suspended = true
			}
		}
	}

	now := w.clock()
	vc := credential.Credential
	switch {
	case vc.ExpirationDate != nil && now.After(*vc.ExpirationDate):
		return CredentialStateExpired, nil
	case suspended:
		return CredentialStateSuspended, nil
	case !vc.IssuanceDate.IsZero() && now.Before(vc.IssuanceDate):
		return CredentialStateNotYetValid, nil
	default:
		return CredentialStateIssued, nil
	}
}

// WatchdogRunner schedules CredentialWatchdog.Run at a fixed period after an
// initial delay.
type WatchdogRunner struct {
	watchdog *CredentialWatchdog
	settings WatchdogConfig
	logger   Logger
	jitter   func() time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

func NewWatchdogRunner(watchdog *CredentialWatchdog, settings WatchdogConfig, logger Logger) *WatchdogRunner {
	return &WatchdogRunner{
		watchdog: watchdog,
		settings: settings,
		logger:   logger,
		jitter: func() time.Duration {
			return time.Duration(rand.IntN(5)+1) * time.Second
		},
	}
}

// InitialDelay is the configured delay, or a random 1..5 seconds so that
// instances sharing a store do not scan in lockstep.
func (r *WatchdogRunner) InitialDelay() time.Duration {
	if r.settings.DelaySeconds > 0 {
		return time.Duration(r.settings.DelaySeconds) * time.Second
	}
	return r.jitter()
}

func (r *WatchdogRunner) Enabled() bool {
	return r != nil && r.settings.PeriodSeconds > 0
}

// Start returns immediately; a non-positive period starts nothing.
func (r *WatchdogRunner) Start(ctx context.Context) {
	if r == nil {
		return
	}
	if !r.Enabled() {
		emitLog(ctx, r.logger, "info", "Credential Watchdog is disabled", map[string]any{
			"period_seconds": r.settings.PeriodSeconds,
		})
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	r.started = true

	delay := r.InitialDelay()
	period := time.Duration(r.settings.PeriodSeconds) * time.Second
	emitLog(ctx, r.logger, "info", "Credential Watchdog scheduled", map[string]any{
		"delay_ms":       delay.Milliseconds(),
		"period_seconds": r.settings.PeriodSeconds,
	})
	go r.loop(runCtx, r.done, delay, period)
}

// Stop is a no-op when the runner was never started.
func (r *WatchdogRunner) Stop() {
	if r == nil {
		return
	}
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done, r.started = nil, nil, false
	r.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (r *WatchdogRunner) Running() bool {
	if r == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started
}

func (r *WatchdogRunner) loop(ctx context.Context, done chan struct{}, delay time.Duration, period time.Duration) {
	defer close(done)
	if err := waitWithContext(ctx, delay); err != nil {
		return
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		r.runOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (r *WatchdogRunner) runOnce(ctx context.Context) {
	result, err := r.watchdog.Run(ctx)
	if err != nil {
		if ctx.Err() == nil {
			emitLog(ctx, r.logger, "error", "credential watchdog run failed", map[string]any{"error": err.Error()})
		}
		return
	}
	emitLog(ctx, r.logger, "debug", "credential watchdog run completed", map[string]any{
		"checked": result.Checked,
		"updated": result.Updated,
		"failed":  result.Failed,
	})
}

func waitWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
