package core

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// RetryableError marks a failure that should leave the process APPROVED and
// be attempted again.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	if e == nil || e.Err == nil {
		return "core: retryable failure"
	}
	return e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *RetryableError) Retryable() bool { return true }

func MarkRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// IsRetryable reports whether err is worth another delivery attempt. Errors
// decide for themselves through a Retryable() bool method; network errors
// and deadlines are retryable; anything else is permanent.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var classified interface{ Retryable() bool }
	if errors.As(err, &classified) {
		return classified.Retryable()
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

type ProcessRunResult struct {
	Claimed   int
	Approved  int
	Delivered int
	Retried   int
	Errored   int
}

type IssuanceProcessManagerConfig struct {
	Processes    IssuanceProcessStore
	Definitions  CredentialDefinitionStore
	Participants ParticipantStore
	Credentials  CredentialStore
	Generator    CredentialGenerator
	Resolver     DidResolver
	Deliverer    CredentialDeliverer
	Settings     ProcessManagerConfig
	IssuerDID    string
	LeaseOwner   string
	Logger       Logger
	Clock        func() time.Time
}

// IssuanceProcessManager drives issuance processes from SUBMITTED to a
// terminal state. Exclusivity between workers and between instances comes
// from store leases only.
type IssuanceProcessManager struct {
	processes    IssuanceProcessStore
	definitions  CredentialDefinitionStore
	participants ParticipantStore
	credentials  CredentialStore
	generator    CredentialGenerator
	resolver     DidResolver
	deliverer    CredentialDeliverer
	settings     ProcessManagerConfig
	issuerDID    string
	owner        string
	logger       Logger
	clock        func() time.Time

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	trigger chan struct{}
}

func NewIssuanceProcessManager(cfg IssuanceProcessManagerConfig) *IssuanceProcessManager {
	settings := cfg.Settings
	defaults := DefaultConfig().ProcessManager
	if settings.BatchSize <= 0 {
		settings.BatchSize = defaults.BatchSize
	}
	if settings.Workers <= 0 {
		settings.Workers = defaults.Workers
	}
	if settings.PollIntervalMS <= 0 {
		settings.PollIntervalMS = defaults.PollIntervalMS
	}
	if settings.LeaseSeconds <= 0 {
		settings.LeaseSeconds = defaults.LeaseSeconds
	}
	if settings.MaxRetries == 0 {
		settings.MaxRetries = defaults.MaxRetries
	}
	if settings.InitialBackoffMS <= 0 {
		settings.InitialBackoffMS = defaults.InitialBackoffMS
	}
	if settings.MaxBackoffMS <= 0 {
		settings.MaxBackoffMS = defaults.MaxBackoffMS
	}
	clock := cfg.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &IssuanceProcessManager{
		processes:    cfg.Processes,
		definitions:  cfg.Definitions,
		participants: cfg.Participants,
		credentials:  cfg.Credentials,
		generator:    cfg.Generator,
		resolver:     cfg.Resolver,
		deliverer:    cfg.Deliverer,
		settings:     settings,
		issuerDID:    strings.TrimSpace(cfg.IssuerDID),
		owner:        strings.TrimSpace(cfg.LeaseOwner),
		logger:       cfg.Logger,
		clock:        clock,
		trigger:      make(chan struct{}, 1),
	}
}

// RunOnce claims one batch of ready processes and advances each of them by
// one step. Claim failures, programming errors and lost leases are
// returned; delivery failures end up on the process.
func (m *IssuanceProcessManager) RunOnce(ctx context.Context) (ProcessRunResult, error) {
	if m == nil || m.processes == nil {
		return ProcessRunResult{}, programmingError("core: issuance process manager is not configured")
	}
	if m.owner == "" {
		return ProcessRunResult{}, programmingError("core: issuance process manager lease owner is required")
	}
	claimed, err := m.processes.ClaimNext(ctx, ClaimRequest{
		States:        []IssuanceProcessState{IssuanceProcessStateSubmitted, IssuanceProcessStateApproved},
		Limit:         m.settings.BatchSize,
		Owner:         m.owner,
		LeaseDuration: m.settings.LeaseDuration(),
		Now:           m.clock(),
	})
	if err != nil {
		return ProcessRunResult{}, mapStoreError(err, "claim issuance processes")
	}

	result := ProcessRunResult{Claimed: len(claimed)}
	var resultMu sync.Mutex
	var group errgroup.Group
	group.SetLimit(m.settings.Workers)
	for _, claim := range claimed {
		group.Go(func() error {
			outcome, err := m.advance(ctx, claim)
			resultMu.Lock()
			switch outcome {
			case IssuanceProcessStateDelivered:
				result.Delivered++
			case IssuanceProcessStateErrored:
				result.Errored++
			case IssuanceProcessStateApproved:
				if claim.Lease.State == IssuanceProcessStateSubmitted {
					result.Approved++
				} else {
					result.Retried++
				}
			}
			resultMu.Unlock()
			return err
		})
	}
	return result, group.Wait()
}

// advance performs one lifecycle step for a leased process and commits it
// under the claim's lease, releasing it.
func (m *IssuanceProcessManager) advance(ctx context.Context, claim ClaimedProcess) (IssuanceProcessState, error) {
	process := claim.Process
	fields := map[string]any{
		"process_id":     process.ID,
		"participant_id": process.ParticipantID,
		"process_state":  string(process.State),
	}

	if process.State == IssuanceProcessStateSubmitted {
		if err := process.TransitionToApproved(m.clock()); err != nil {
			return "", m.fatal(ctx, err, fields)
		}
	}

	deliveryErr := m.deliver(ctx, process)
	now := m.clock()
	switch {
	case deliveryErr == nil:
		process.ErrorDetail = ""
		if err := process.TransitionToDelivered(now); err != nil {
			return "", m.fatal(ctx, err, fields)
		}
	case IsProgrammingError(deliveryErr):
		return "", m.fatal(ctx, deliveryErr, fields)
	case IsRetryable(deliveryErr) && process.RetryCount < m.settings.MaxRetries:
		if err := process.TransitionToApproved(now); err != nil {
			return "", m.fatal(ctx, err, fields)
		}
		process.RetryCount++
		next := now.Add(m.retryDelay(process.RetryCount))
		process.NextAttemptAt = &next
		process.ErrorDetail = deliveryErr.Error()
		fields["retry_count"] = process.RetryCount
		fields["next_attempt_at"] = next
		fields["error"] = deliveryErr.Error()
		emitLog(ctx, m.logger, "warn", "issuance process delivery will be retried", fields)
	default:
		if err := process.TransitionToError(deliveryErr.Error(), now); err != nil {
			return "", m.fatal(ctx, err, fields)
		}
		fields["error"] = deliveryErr.Error()
		emitLog(ctx, m.logger, "error", "issuance process failed permanently", fields)
	}

	if _, err := m.processes.Update(ctx, process, claim.Lease, m.clock()); err != nil {
		fields["error"] = err.Error()
		fields["next_state"] = string(process.State)
		emitLog(ctx, m.logger, "error", "issuance process commit failed", fields)
		return "", mapStoreError(err, "commit issuance process "+process.ID)
	}
	return process.State, nil
}

// fatal logs a state machine or configuration violation. The lease is left
// to expire so the persisted state stays unchanged.
func (m *IssuanceProcessManager) fatal(ctx context.Context, err error, fields map[string]any) error {
	logged := cloneFields(fields)
	logged["severity"] = "critical"
	logged["error"] = err.Error()
	emitLog(ctx, m.logger, "error", "issuance process step violated the state machine", logged)
	if IsProgrammingError(err) {
		return err
	}
	return programmingError(err.Error())
}

func (m *IssuanceProcessManager) deliver(ctx context.Context, process IssuanceProcess) error {
	if m.definitions == nil || m.participants == nil || m.generator == nil ||
		m.resolver == nil || m.deliverer == nil || m.credentials == nil {
		return programmingError("core: issuance process manager delivery collaborators are not configured")
	}

	participant, err := m.participants.FindByID(ctx, process.ParticipantID)
	if err != nil {
		if IsNotFound(err) {
			return fmt.Errorf("core: participant %q no longer exists", process.ParticipantID)
		}
		return MarkRetryable(err)
	}

	now := m.clock()
	generated := make([]VerifiableCredentialResource, 0, len(process.CredentialDefinitions))
	containers := make([]CredentialContainer, 0, len(process.CredentialDefinitions))
	for _, definitionID := range process.CredentialDefinitions {
		def, err := m.definitions.FindByID(ctx, definitionID)
		if err != nil {
			if IsNotFound(err) {
				return fmt.Errorf("core: credential definition %q no longer exists", definitionID)
			}
			return MarkRetryable(err)
		}
		subject, err := applyMappings(def.Mappings, process.Claims)
		if err != nil {
			return err
		}
		req := CredentialGenerationRequest{
			CredentialID: IssuedCredentialID(process.ID, definitionID),
			Definition:   def,
			Format:       process.CredentialFormats[definitionID],
			Process:      process,
			Subject:      subject,
			IssuedAt:     now,
		}
		if def.Validity > 0 {
			expires := now.Add(time.Duration(def.Validity) * time.Second)
			req.ExpiresAt = &expires
		}
		resource, err := m.generator.Generate(ctx, req)
		if err != nil {
			return fmt.Errorf("core: generate credential %q: %w", def.CredentialType, err)
		}
		resource.ID = req.CredentialID
		resource.ParticipantContextID = process.ParticipantID
		resource.HolderID = process.HolderPID
		if resource.IssuerID == "" {
			resource.IssuerID = m.issuerDID
		}
		if resource.State == "" {
			resource.State = CredentialStateIssued
		}
		if resource.Format == "" {
			resource.Format = req.Format
		}
		generated = append(generated, resource)
		containers = append(containers, CredentialContainer{
			CredentialType: def.CredentialType,
			Format:         resource.Format,
			Payload:        resource.RawCredential,
		})
	}

	endpoint, err := m.resolver.ResolveServiceEndpoint(ctx, participant.DID, CredentialServiceType)
	if err != nil {
		return fmt.Errorf("core: resolve credential service of %q: %w", participant.DID, err)
	}
	err = m.deliverer.Deliver(ctx, endpoint, CredentialMessage{
		IssuerPID:   process.ID,
		HolderPID:   process.HolderPID,
		Credentials: containers,
	})
	if err != nil {
		return fmt.Errorf("core: deliver credentials to %q: %w", endpoint, err)
	}

	for _, resource := range generated {
		resource.CreatedAt = now
		resource.UpdatedAt = now
		if _, err := m.credentials.Create(ctx, resource); err != nil && !errors.Is(err, ErrStoreAlreadyExists) {
			return MarkRetryable(fmt.Errorf("core: store issued credential %q: %w", resource.ID, err))
		}
	}
	return nil
}

var issuedCredentialNamespace = uuid.MustParse("9b3f6d0e-52a1-4c8e-a7d4-3f1e2c6b8a90")

// IssuedCredentialID is the stored id of the credential issued for
// definitionID within processID. A process that is delivered again after a
// lost commit maps onto the same ids, so the credential store keeps one
// record per issued credential.
func IssuedCredentialID(processID string, definitionID string) string {
	return uuid.NewSHA1(issuedCredentialNamespace, []byte(processID+"/"+definitionID)).String()
}

func (m *IssuanceProcessManager) retryDelay(attempt int) time.Duration {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = m.settings.InitialBackoff()
	policy.MaxInterval = m.settings.MaxBackoff()
	policy.Multiplier = 2
	policy.RandomizationFactor = 0
	policy.MaxElapsedTime = 0
	policy.Reset()
	delay := policy.InitialInterval
	for i := 0; i < attempt; i++ {
		delay = policy.NextBackOff()
	}
	return delay
}

// Start runs RunOnce on every poll interval, and immediately after Trigger,
// until Stop or ctx is done.
func (m *IssuanceProcessManager) Start(ctx context.Context) error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.loop(runCtx, m.done)
	return nil
}

func (m *IssuanceProcessManager) Stop() {
	if m == nil {
		return
	}
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Trigger asks a started loop to run immediately.
func (m *IssuanceProcessManager) Trigger() {
	if m == nil {
		return
	}
	select {
	case m.trigger <- struct{}{}:
	default:
	}
}

// HandleJob advances processes in response to a process advance job.
func (m *IssuanceProcessManager) HandleJob(ctx context.Context, msg *JobExecutionMessage) error {
	if msg == nil || strings.TrimSpace(msg.JobID) != JobIDProcessAdvance {
		return fmt.Errorf("core: unsupported job %v", msg)
	}
	_, err := m.RunOnce(ctx)
	return err
}

func (m *IssuanceProcessManager) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(m.settings.PollInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-m.trigger:
		}
		if _, err := m.RunOnce(ctx); err != nil && ctx.Err() == nil {
			emitLog(ctx, m.logger, "error", "issuance process run failed", map[string]any{"error": err.Error()})
		}
	}
}

// applyMappings copies mapped claims into the credential subject. Without
// mappings the subject is the full claim set.
func applyMappings(mappings []MappingDefinition, claims map[string]any) (map[string]any, error) {
	if len(mappings) == 0 {
		return copyAnyMap(claims), nil
	}
	subject := map[string]any{}
	for _, mapping := range mappings {
		value, ok := lookupPath(claims, mapping.Input)
		if !ok {
			if mapping.Required {
				return nil, fmt.Errorf("core: required claim %q is missing", mapping.Input)
			}
			continue
		}
		assignPath(subject, mapping.Output, value)
	}
	return subject, nil
}

func lookupPath(values map[string]any, path string) (any, bool) {
	path = strings.TrimPrefix(strings.TrimSpace(path), "claims.")
	var current any = values
	for _, segment := range strings.Split(path, ".") {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = node[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func assignPath(target map[string]any, path string, value any) {
	path = strings.TrimPrefix(strings.TrimSpace(path), "credentialSubject.")
	segments := strings.Split(path, ".")
	node := target
	for _, segment := range segments[:len(segments)-1] {
		child, ok := node[segment].(map[string]any)
		if !ok {
			child = map[string]any{}
			node[segment] = child
		}
		node = child
	}
	node[segments[len(segments)-1]] = value
}
