package core

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"
)

type callCounter struct {
	mu    sync.Mutex
	calls map[string]int
}

func (c *callCounter) record(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.calls == nil {
		c.calls = map[string]int{}
	}
	c.calls[name]++
}

func (c *callCounter) count(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[name]
}

func (c *callCounter) total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	sum := 0
	for _, n := range c.calls {
		sum += n
	}
	return sum
}

func (c *callCounter) writes() int {
	return c.count("create") + c.count("update") + c.count("delete")
}

func matchesSpec(fields map[string]any, spec QuerySpec) bool {
	for _, criterion := range spec.Filter {
		value := fmt.Sprint(fields[criterion.Field])
		switch criterion.Operator {
		case QueryOperatorIn:
			values, _ := criterion.Value.([]string)
			if !slices.Contains(values, value) {
				return false
			}
		case QueryOperatorNotEqual:
			if value == fmt.Sprint(criterion.Value) {
				return false
			}
		default:
			if value != fmt.Sprint(criterion.Value) {
				return false
			}
		}
	}
	return true
}

func page[T any](items []T, spec QuerySpec) []T {
	if spec.Offset > 0 {
		if spec.Offset >= len(items) {
			return []T{}
		}
		items = items[spec.Offset:]
	}
	if spec.Limit > 0 && spec.Limit < len(items) {
		items = items[:spec.Limit]
	}
	return items
}

type memoryAttestationStore struct {
	callCounter
	mu   sync.Mutex
	byID map[string]AttestationDefinition
	err  error
}

func newMemoryAttestationStore(defs ...AttestationDefinition) *memoryAttestationStore {
	store := &memoryAttestationStore{byID: map[string]AttestationDefinition{}}
	for _, def := range defs {
		store.byID[def.ID] = def
	}
	return store
}

func (s *memoryAttestationStore) Create(_ context.Context, def AttestationDefinition) (AttestationDefinition, error) {
	s.record("create")
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[def.ID]; exists {
		return AttestationDefinition{}, NewAlreadyExistsStoreError("AttestationDefinition", def.ID)
	}
	s.byID[def.ID] = def
	return def, nil
}

func (s *memoryAttestationStore) Update(_ context.Context, def AttestationDefinition) (AttestationDefinition, error) {
	s.record("update")
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[def.ID]; !exists {
		return AttestationDefinition{}, NewNotFoundStoreError("AttestationDefinition", def.ID)
	}
	s.byID[def.ID] = def
	return def, nil
}

func (s *memoryAttestationStore) DeleteByID(_ context.Context, id string) error {
	s.record("delete")
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[id]; !exists {
		return NewNotFoundStoreError("AttestationDefinition", id)
	}
	delete(s.byID, id)
	return nil
}

func (s *memoryAttestationStore) FindByID(_ context.Context, id string) (AttestationDefinition, error) {
	s.record("find")
	s.mu.Lock()
	defer s.mu.Unlock()
	def, ok := s.byID[id]
	if !ok {
		return AttestationDefinition{}, NewNotFoundStoreError("AttestationDefinition", id)
	}
	return def, nil
}

func (s *memoryAttestationStore) Query(_ context.Context, spec QuerySpec) ([]AttestationDefinition, error) {
	s.record("query")
	if s.err != nil {
		return nil, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []AttestationDefinition{}
	for _, def := range s.byID {
		fields := map[string]any{
			"id":                   def.ID,
			"attestationType":      def.AttestationType,
			"participantContextId": def.ParticipantContextID,
		}
		if matchesSpec(fields, spec) {
			out = append(out, def)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, spec), nil
}

type memoryParticipantStore struct {
	callCounter
	mu   sync.Mutex
	byID map[string]Participant
}

func newMemoryParticipantStore(participants ...Participant) *memoryParticipantStore {
	store := &memoryParticipantStore{byID: map[string]Participant{}}
	for _, participant := range participants {
		store.byID[participant.ParticipantID] = cloneParticipant(participant)
	}
	return store
}

func cloneParticipant(participant Participant) Participant {
	participant.LinkedAttestations = slices.Clone(participant.LinkedAttestations)
	return participant
}

func (s *memoryParticipantStore) Create(_ context.Context, participant Participant) (Participant, error) {
	s.record("create")
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[participant.ParticipantID]; exists {
		return Participant{}, NewAlreadyExistsStoreError("Participant", participant.ParticipantID)
	}
	s.byID[participant.ParticipantID] = cloneParticipant(participant)
	return cloneParticipant(participant), nil
}

func (s *memoryParticipantStore) Update(_ context.Context, participant Participant) (Participant, error) {
	s.record("update")
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[participant.ParticipantID]; !exists {
		return Participant{}, NewNotFoundStoreError("Participant", participant.ParticipantID)
	}
	s.byID[participant.ParticipantID] = cloneParticipant(participant)
	return cloneParticipant(participant), nil
}

func (s *memoryParticipantStore) DeleteByID(_ context.Context, id string) error {
	s.record("delete")
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[id]; !exists {
		return NewNotFoundStoreError("Participant", id)
	}
	delete(s.byID, id)
	return nil
}

func (s *memoryParticipantStore) FindByID(_ context.Context, id string) (Participant, error) {
	s.record("find")
	s.mu.Lock()
	defer s.mu.Unlock()
	participant, ok := s.byID[id]
	if !ok {
		return Participant{}, NewNotFoundStoreError("Participant", id)
	}
	return cloneParticipant(participant), nil
}

func (s *memoryParticipantStore) FindByDID(_ context.Context, did string) (Participant, error) {
	s.record("find")
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, participant := range s.byID {
		if participant.DID == did {
			return cloneParticipant(participant), nil
		}
	}
	return Participant{}, NewNotFoundStoreError("Participant", did)
}

func (s *memoryParticipantStore) Query(_ context.Context, spec QuerySpec) ([]Participant, error) {
	s.record("query")
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []Participant{}
	for _, participant := range s.byID {
		if matchesSpec(map[string]any{"participantId": participant.ParticipantID, "did": participant.DID}, spec) {
			out = append(out, cloneParticipant(participant))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ParticipantID < out[j].ParticipantID })
	return page(out, spec), nil
}

type memoryCredentialDefinitionStore struct {
	callCounter
	mu   sync.Mutex
	byID map[string]CredentialDefinition
}

func newMemoryCredentialDefinitionStore(defs ...CredentialDefinition) *memoryCredentialDefinitionStore {
	store := &memoryCredentialDefinitionStore{byID: map[string]CredentialDefinition{}}
	for _, def := range defs {
		store.byID[def.ID] = def
	}
	return store
}

func (s *memoryCredentialDefinitionStore) Create(_ context.Context, def CredentialDefinition) (CredentialDefinition, error) {
	s.record("create")
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[def.ID]; exists {
		return CredentialDefinition{}, NewAlreadyExistsStoreError("CredentialDefinition", def.ID)
	}
	s.byID[def.ID] = def
	return def, nil
}

func (s *memoryCredentialDefinitionStore) Update(_ context.Context, def CredentialDefinition) (CredentialDefinition, error) {
	s.record("update")
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[def.ID]; !exists {
		return CredentialDefinition{}, NewNotFoundStoreError("CredentialDefinition", def.ID)
	}
	s.byID[def.ID] = def
	return def, nil
}

func (s *memoryCredentialDefinitionStore) DeleteByID(_ context.Context, id string) error {
	s.record("delete")
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[id]; !exists {
		return NewNotFoundStoreError("CredentialDefinition", id)
	}
	delete(s.byID, id)
	return nil
}

func (s *memoryCredentialDefinitionStore) FindByID(_ context.Context, id string) (CredentialDefinition, error) {
	s.record("find")
	s.mu.Lock()
	defer s.mu.Unlock()
	def, ok := s.byID[id]
	if !ok {
		return CredentialDefinition{}, NewNotFoundStoreError("CredentialDefinition", id)
	}
	return def, nil
}

func (s *memoryCredentialDefinitionStore) Query(_ context.Context, spec QuerySpec) ([]CredentialDefinition, error) {
	s.record("query")
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []CredentialDefinition{}
	for _, def := range s.byID {
		fields := map[string]any{
			"id":                   def.ID,
			"credentialType":       def.CredentialType,
			"participantContextId": def.ParticipantContextID,
		}
		if matchesSpec(fields, spec) {
			out = append(out, def)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, spec), nil
}

type memoryIssuanceProcessStore struct {
	callCounter
	mu     sync.Mutex
	byID   map[string]IssuanceProcess
	leases map[string]ProcessLease
	claims int
	// updateErr fails every Update after the lease check.
	updateErr error
}

func newMemoryIssuanceProcessStore(processes ...IssuanceProcess) *memoryIssuanceProcessStore {
	store := &memoryIssuanceProcessStore{byID: map[string]IssuanceProcess{}, leases: map[string]ProcessLease{}}
	for _, process := range processes {
		store.byID[process.ID] = process
	}
	return store
}

func (s *memoryIssuanceProcessStore) Create(_ context.Context, process IssuanceProcess) (IssuanceProcess, error) {
	s.record("create")
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[process.ID]; exists {
		return IssuanceProcess{}, NewAlreadyExistsStoreError("IssuanceProcess", process.ID)
	}
	s.byID[process.ID] = process
	return process, nil
}

func (s *memoryIssuanceProcessStore) DeleteByID(_ context.Context, id string) error {
	s.record("delete")
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, id)
	delete(s.leases, id)
	return nil
}

func (s *memoryIssuanceProcessStore) FindByID(_ context.Context, id string) (IssuanceProcess, error) {
	s.record("find")
	s.mu.Lock()
	defer s.mu.Unlock()
	process, ok := s.byID[id]
	if !ok {
		return IssuanceProcess{}, NewNotFoundStoreError("IssuanceProcess", id)
	}
	return process, nil
}

func (s *memoryIssuanceProcessStore) Query(_ context.Context, spec QuerySpec) ([]IssuanceProcess, error) {
	s.record("query")
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []IssuanceProcess{}
	for _, process := range s.byID {
		fields := map[string]any{
			"id":            process.ID,
			"participantId": process.ParticipantID,
			"state":         string(process.State),
			"holderPid":     process.HolderPID,
		}
		if matchesSpec(fields, spec) {
			out = append(out, process)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, spec), nil
}

func (s *memoryIssuanceProcessStore) ClaimNext(_ context.Context, req ClaimRequest) ([]ClaimedProcess, error) {
	s.record("claim")
	s.mu.Lock()
	defer s.mu.Unlock()
	ready := []IssuanceProcess{}
	for id, process := range s.byID {
		if !slices.Contains(req.States, process.State) {
			continue
		}
		if lease, held := s.leases[id]; held && lease.ExpiresAt.After(req.Now) {
			continue
		}
		if process.NextAttemptAt != nil && process.NextAttemptAt.After(req.Now) {
			continue
		}
		ready = append(ready, process)
	}
	sort.Slice(ready, func(i, j int) bool { return ready[i].ID < ready[j].ID })
	if req.Limit > 0 && len(ready) > req.Limit {
		ready = ready[:req.Limit]
	}
	s.claims++
	out := make([]ClaimedProcess, 0, len(ready))
	for _, process := range ready {
		lease := ProcessLease{
			Token:     fmt.Sprintf("%s/%d", req.Owner, s.claims),
			State:     process.State,
			ExpiresAt: req.Now.Add(req.LeaseDuration),
		}
		s.leases[process.ID] = lease
		out = append(out, ClaimedProcess{Process: process, Lease: lease})
	}
	return out, nil
}

func (s *memoryIssuanceProcessStore) Update(_ context.Context, process IssuanceProcess, lease ProcessLease, now time.Time) (IssuanceProcess, error) {
	s.record("update")
	s.mu.Lock()
	defer s.mu.Unlock()
	current, held := s.leases[process.ID]
	if !held || current.Token != lease.Token || !current.ExpiresAt.After(now) || s.byID[process.ID].State != lease.State {
		return IssuanceProcess{}, NewConflictStoreError("IssuanceProcess", process.ID)
	}
	if s.updateErr != nil {
		return IssuanceProcess{}, s.updateErr
	}
	delete(s.leases, process.ID)
	s.byID[process.ID] = process
	return process, nil
}

func (s *memoryIssuanceProcessStore) get(id string) IssuanceProcess {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byID[id]
}

type memoryCredentialStore struct {
	callCounter
	mu   sync.Mutex
	byID map[string]VerifiableCredentialResource
	// beforeUpdate runs without the lock held, before the version check.
	beforeUpdate func(resource VerifiableCredentialResource)
	updateErr    error
}

func newMemoryCredentialStore(resources ...VerifiableCredentialResource) *memoryCredentialStore {
	store := &memoryCredentialStore{byID: map[string]VerifiableCredentialResource{}}
	for _, resource := range resources {
		if resource.Version == 0 {
			resource.Version = 1
		}
		store.byID[resource.ID] = cloneResource(resource)
	}
	return store
}

func cloneResource(resource VerifiableCredentialResource) VerifiableCredentialResource {
	if resource.Credential.Subject != nil {
		resource.Credential.Subject = copyAnyMap(resource.Credential.Subject)
	}
	resource.Credential.Status = slices.Clone(resource.Credential.Status)
	return resource
}

func (s *memoryCredentialStore) Create(_ context.Context, resource VerifiableCredentialResource) (VerifiableCredentialResource, error) {
	s.record("create")
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[resource.ID]; exists {
		return VerifiableCredentialResource{}, NewAlreadyExistsStoreError("Credential", resource.ID)
	}
	resource.Version = 1
	s.byID[resource.ID] = cloneResource(resource)
	return cloneResource(resource), nil
}

func (s *memoryCredentialStore) Update(_ context.Context, resource VerifiableCredentialResource) (VerifiableCredentialResource, error) {
	s.record("update")
	if s.beforeUpdate != nil {
		s.beforeUpdate(resource)
	}
	if s.updateErr != nil {
		return VerifiableCredentialResource{}, s.updateErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, exists := s.byID[resource.ID]
	if !exists {
		return VerifiableCredentialResource{}, NewNotFoundStoreError("Credential", resource.ID)
	}
	if stored.Version != resource.Version {
		return VerifiableCredentialResource{}, NewConflictStoreError("Credential", resource.ID)
	}
	resource.Version++
	s.byID[resource.ID] = cloneResource(resource)
	return cloneResource(resource), nil
}

func (s *memoryCredentialStore) DeleteByID(_ context.Context, id string) error {
	s.record("delete")
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, id)
	return nil
}

func (s *memoryCredentialStore) FindByID(_ context.Context, id string) (VerifiableCredentialResource, error) {
	s.record("find")
	s.mu.Lock()
	defer s.mu.Unlock()
	resource, ok := s.byID[id]
	if !ok {
		return VerifiableCredentialResource{}, NewNotFoundStoreError("Credential", id)
	}
	return cloneResource(resource), nil
}

func (s *memoryCredentialStore) Query(_ context.Context, spec QuerySpec) ([]VerifiableCredentialResource, error) {
	s.record("query")
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []VerifiableCredentialResource{}
	for _, resource := range s.byID {
		fields := map[string]any{
			"id":                   resource.ID,
			"participantContextId": resource.ParticipantContextID,
			"state":                string(resource.State),
			"holderId":             resource.HolderID,
		}
		if matchesSpec(fields, spec) {
			out = append(out, cloneResource(resource))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, spec), nil
}

func (s *memoryCredentialStore) get(id string) VerifiableCredentialResource {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneResource(s.byID[id])
}

type staticClaimsSource map[string]any

func (s staticClaimsSource) Execute(context.Context, AttestationContext) (map[string]any, error) {
	return copyAnyMap(s), nil
}

type failingSource struct {
	err error
}

func (s failingSource) Execute(context.Context, AttestationContext) (map[string]any, error) {
	return nil, s.err
}

// configSourceFactory returns the "claims" configuration of the definition
// as claims, or fails when the configuration has "fail" set.
func configSourceFactory() AttestationSourceFactory {
	return AttestationSourceFactoryFunc(func(def AttestationDefinition) (AttestationSource, error) {
		if reason, ok := def.Configuration["fail"].(string); ok {
			return failingSource{err: fmt.Errorf("%s", reason)}, nil
		}
		claims, _ := def.Configuration["claims"].(map[string]any)
		return staticClaimsSource(claims), nil
	})
}

type stubLoggerProvider struct {
	logger Logger
}

func (s stubLoggerProvider) GetLogger(string) Logger {
	return s.logger
}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFixedClock(now time.Time) *fixedClock {
	return &fixedClock{now: now}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
