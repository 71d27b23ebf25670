package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goliatone/go-issuer/statuslist"
)

// RevocationService flips status list bits for issued credentials. Every
// mutation is a read-check-write of the shared status list credential that
// is retried when a concurrent writer bumped its version.
type RevocationService struct {
	credentials  CredentialStore
	registry     StatusListRegistry
	tx           TransactionContext
	maxConflicts int
	logger       Logger
	clock        func() time.Time
}

func NewRevocationService(
	credentials CredentialStore,
	registry StatusListRegistry,
	tx TransactionContext,
	settings RevocationConfig,
	logger Logger,
) *RevocationService {
	if tx == nil {
		tx = NoopTransactionContext{}
	}
	if registry == nil {
		registry = statuslist.NewDefaultRegistry()
	}
	return &RevocationService{
		credentials:  credentials,
		registry:     registry,
		tx:           tx,
		maxConflicts: settings.MaxConflictRetries,
		logger:       logger,
		clock:        func() time.Time { return time.Now().UTC() },
	}
}

// RevokeCredential sets the revocation bit of the credential. Revoking an
// already revoked credential succeeds without writing.
func (s *RevocationService) RevokeCredential(ctx context.Context, credentialID string, participantID string) error {
	return s.changeStatus(ctx, credentialID, participantID, statuslist.PurposeRevocation, true, CredentialStateRevoked)
}

func (s *RevocationService) SuspendCredential(ctx context.Context, credentialID string, participantID string) error {
	return s.changeStatus(ctx, credentialID, participantID, statuslist.PurposeSuspension, true, CredentialStateSuspended)
}

func (s *RevocationService) ResumeCredential(ctx context.Context, credentialID string, participantID string) error {
	return s.changeStatus(ctx, credentialID, participantID, statuslist.PurposeSuspension, false, CredentialStateIssued)
}

// CheckCredentialStatus returns the purpose of the first set status bit, or
// an empty string when the credential is active.
func (s *RevocationService) CheckCredentialStatus(ctx context.Context, credentialID string, participantID string) (string, error) {
	credential, err := s.ownedCredential(ctx, credentialID, participantID)
	if err != nil {
		return "", err
	}
	for _, entry := range credential.Credential.Status {
		ref, err := s.parseEntry(entry)
		if err != nil {
			return "", err
		}
		set, err := s.readBit(ctx, ref)
		if err != nil {
			return "", err
		}
		if set {
			return ref.Purpose, nil
		}
	}
	return "", nil
}

func (s *RevocationService) GetCredential(ctx context.Context, credentialID string, participantID string) (VerifiableCredentialResource, error) {
	return s.ownedCredential(ctx, credentialID, participantID)
}

func (s *RevocationService) QueryCredentials(ctx context.Context, participantID string, spec QuerySpec) ([]VerifiableCredentialResource, error) {
	participantID = strings.TrimSpace(participantID)
	if participantID == "" {
		return nil, validationError("core: participant id is required")
	}
	found, err := s.credentials.Query(ctx, spec.With(Equal("participantContextId", participantID)))
	if err != nil {
		return nil, mapStoreError(err, "query credentials")
	}
	return found, nil
}

func (s *RevocationService) changeStatus(
	ctx context.Context,
	credentialID string,
	participantID string,
	purpose string,
	value bool,
	target CredentialState,
) error {
	if s == nil || s.credentials == nil {
		return programmingError("core: revocation service is not configured")
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 10 * time.Millisecond
	policy.MaxInterval = 250 * time.Millisecond
	policy.MaxElapsedTime = 0
	retries := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(max(s.maxConflicts, 0))), ctx)

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		err := s.tx.Execute(ctx, func(ctx context.Context) error {
			return s.applyStatus(ctx, credentialID, participantID, purpose, value, target)
		})
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrConcurrentModification) {
			emitLog(ctx, s.logger, "debug", "status list update conflicted", map[string]any{
				"credential_id": credentialID,
				"attempt":       attempt,
			})
			return err
		}
		return backoff.Permanent(err)
	}, retries)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrConcurrentModification) {
		return mapStoreError(err, "update status list credential")
	}
	return err
}

func (s *RevocationService) applyStatus(
	ctx context.Context,
	credentialID string,
	participantID string,
	purpose string,
	value bool,
	target CredentialState,
) error {
	credential, err := s.ownedCredential(ctx, credentialID, participantID)
	if err != nil {
		return err
	}
	entry, ref, err := s.entryForPurpose(credential, purpose)
	if err != nil {
		return err
	}

	statusCredential, err := s.credentials.FindByID(ctx, ref.StatusListCredentialID)
	if err != nil {
		if errors.Is(err, ErrStoreNotFound) {
			return notFoundError(fmt.Sprintf("Status list credential with ID '%s' was not found", ref.StatusListCredentialID))
		}
		return mapStoreError(err, "find status list credential")
	}
	bits, err := decodeStatusList(statusCredential)
	if err != nil {
		return processingError(err, fmt.Sprintf("core: status list %q cannot be decoded", statusCredential.ID))
	}
	current, err := bits.Get(ref.Index)
	if err != nil {
		return validationError(fmt.Sprintf("core: status entry %q index %d: %v", entry.ID, ref.Index, err))
	}

	now := s.clock()
	if current != value {
		if err := bits.Set(ref.Index, value); err != nil {
			return validationError(fmt.Sprintf("core: status entry %q index %d: %v", entry.ID, ref.Index, err))
		}
		encoded, err := bits.Encode()
		if err != nil {
			return processingError(err, fmt.Sprintf("core: status list %q cannot be encoded", statusCredential.ID))
		}
		subject := copyAnyMap(statusCredential.Credential.Subject)
		subject[statuslist.ClaimEncodedList] = encoded
		statusCredential.Credential.Subject = subject
		statusCredential.UpdatedAt = now
		if _, err := s.credentials.Update(ctx, statusCredential); err != nil {
			if errors.Is(err, ErrConcurrentModification) {
				return err
			}
			return processingError(mapStoreError(err, "update status list credential"), "core: status list update failed")
		}
	}

	if credential.State == target || !isCredentialStateTransitionAllowed(credential.State, target) {
		return nil
	}
	if err := credential.TransitionTo(target, now); err != nil {
		return nil
	}
	if _, err := s.credentials.Update(ctx, credential); err != nil {
		if errors.Is(err, ErrConcurrentModification) {
			return err
		}
		return processingError(mapStoreError(err, "update credential"), "core: credential state update failed")
	}
	return nil
}

func (s *RevocationService) ownedCredential(ctx context.Context, credentialID string, participantID string) (VerifiableCredentialResource, error) {
	credentialID = strings.TrimSpace(credentialID)
	if credentialID == "" {
		return VerifiableCredentialResource{}, validationError("core: credential id is required")
	}
	credential, err := s.credentials.FindByID(ctx, credentialID)
	if err != nil {
		return VerifiableCredentialResource{}, mapStoreError(err, "find credential")
	}
	if credential.ParticipantContextID != strings.TrimSpace(participantID) {
		return VerifiableCredentialResource{}, forbiddenError(
			fmt.Sprintf("core: participant %q is not authorized to access credential %q", participantID, credentialID),
		)
	}
	return credential, nil
}

func (s *RevocationService) entryForPurpose(credential VerifiableCredentialResource, purpose string) (CredentialStatusEntry, statuslist.Reference, error) {
	if len(credential.Credential.Status) == 0 {
		return CredentialStatusEntry{}, statuslist.Reference{}, validationError(
			fmt.Sprintf("core: credential %q has no credential status", credential.ID),
		)
	}
	for _, entry := range credential.Credential.Status {
		ref, err := s.parseEntry(entry)
		if err != nil {
			return CredentialStatusEntry{}, statuslist.Reference{}, err
		}
		if ref.Purpose == purpose {
			return entry, ref, nil
		}
	}
	return CredentialStatusEntry{}, statuslist.Reference{}, validationError(
		fmt.Sprintf("core: credential %q has no %s status entry", credential.ID, purpose),
	)
}

func (s *RevocationService) parseEntry(entry CredentialStatusEntry) (statuslist.Reference, error) {
	statusType, err := s.registry.Resolve(entry.Type)
	if err != nil {
		return statuslist.Reference{}, validationError(err.Error())
	}
	ref, err := statusType.Parse(entry.Properties)
	if err != nil {
		return statuslist.Reference{}, validationError(err.Error())
	}
	return ref, nil
}

func (s *RevocationService) readBit(ctx context.Context, ref statuslist.Reference) (bool, error) {
	statusCredential, err := s.credentials.FindByID(ctx, ref.StatusListCredentialID)
	if err != nil {
		return false, mapStoreError(err, "find status list credential")
	}
	bits, err := decodeStatusList(statusCredential)
	if err != nil {
		return false, processingError(err, fmt.Sprintf("core: status list %q cannot be decoded", statusCredential.ID))
	}
	set, err := bits.Get(ref.Index)
	if err != nil {
		return false, validationError(err.Error())
	}
	return set, nil
}

func decodeStatusList(credential VerifiableCredentialResource) (*statuslist.Bitstring, error) {
	encoded, ok := credential.Credential.Subject[statuslist.ClaimEncodedList].(string)
	if !ok || strings.TrimSpace(encoded) == "" {
		return nil, fmt.Errorf("%w: credential %q has no %s", statuslist.ErrInvalidEncoding, credential.ID, statuslist.ClaimEncodedList)
	}
	return statuslist.Decode(encoded)
}
