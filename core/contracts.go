package core

import (
	"context"
	"crypto"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

const (
	QueryOperatorEqual    = "="
	QueryOperatorNotEqual = "!="
	QueryOperatorIn       = "in"
)

// Criterion filters on a domain field name, e.g. "participantContextId".
type Criterion struct {
	Field    string
	Operator string
	Value    any
}

func Equal(field string, value any) Criterion {
	return Criterion{Field: field, Operator: QueryOperatorEqual, Value: value}
}

func In(field string, values []string) Criterion {
	return Criterion{Field: field, Operator: QueryOperatorIn, Value: append([]string(nil), values...)}
}

type QuerySpec struct {
	Filter         []Criterion
	Offset         int
	Limit          int
	SortField      string
	SortDescending bool
}

func NewQuerySpec(criteria ...Criterion) QuerySpec {
	return QuerySpec{Filter: append([]Criterion(nil), criteria...)}
}

// With returns a copy of q with an additional criterion.
func (q QuerySpec) With(criterion Criterion) QuerySpec {
	out := q
	out.Filter = append(append([]Criterion(nil), q.Filter...), criterion)
	return out
}

type AttestationDefinitionStore interface {
	Create(ctx context.Context, def AttestationDefinition) (AttestationDefinition, error)
	Update(ctx context.Context, def AttestationDefinition) (AttestationDefinition, error)
	DeleteByID(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (AttestationDefinition, error)
	Query(ctx context.Context, spec QuerySpec) ([]AttestationDefinition, error)
}

type ParticipantStore interface {
	Create(ctx context.Context, participant Participant) (Participant, error)
	Update(ctx context.Context, participant Participant) (Participant, error)
	DeleteByID(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (Participant, error)
	FindByDID(ctx context.Context, did string) (Participant, error)
	Query(ctx context.Context, spec QuerySpec) ([]Participant, error)
}

type CredentialDefinitionStore interface {
	Create(ctx context.Context, def CredentialDefinition) (CredentialDefinition, error)
	Update(ctx context.Context, def CredentialDefinition) (CredentialDefinition, error)
	DeleteByID(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (CredentialDefinition, error)
	Query(ctx context.Context, spec QuerySpec) ([]CredentialDefinition, error)
}

// ClaimRequest selects processes whose lease is free and whose next attempt
// is due, and leases them until Now+LeaseDuration. Owner prefixes the lease
// token written for the claim.
type ClaimRequest struct {
	States        []IssuanceProcessState
	Limit         int
	Owner         string
	LeaseDuration time.Duration
	Now           time.Time
}

type IssuanceProcessStore interface {
	Create(ctx context.Context, process IssuanceProcess) (IssuanceProcess, error)
	DeleteByID(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (IssuanceProcess, error)
	Query(ctx context.Context, spec QuerySpec) ([]IssuanceProcess, error)
	// ClaimNext atomically leases ready processes. A process under a live
	// lease is never returned. Every claim gets a fresh lease token.
	ClaimNext(ctx context.Context, req ClaimRequest) ([]ClaimedProcess, error)
	// Update persists the process and releases the lease. It fails with a
	// conflict StoreError unless lease is still the live lease on the
	// process at now and the stored state is the one it was claimed in.
	Update(ctx context.Context, process IssuanceProcess, lease ProcessLease, now time.Time) (IssuanceProcess, error)
}

// ProcessLease fences writes to a claimed process. Token is unique per
// claim, so a worker whose lease expired and was claimed again cannot
// commit, even within the same instance.
type ProcessLease struct {
	Token     string
	State     IssuanceProcessState
	ExpiresAt time.Time
}

type ClaimedProcess struct {
	Process IssuanceProcess
	Lease   ProcessLease
}

type CredentialStore interface {
	Create(ctx context.Context, resource VerifiableCredentialResource) (VerifiableCredentialResource, error)
	// Update writes the resource when its Version matches the stored one and
	// increments the version. A mismatch is a conflict StoreError.
	Update(ctx context.Context, resource VerifiableCredentialResource) (VerifiableCredentialResource, error)
	DeleteByID(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (VerifiableCredentialResource, error)
	Query(ctx context.Context, spec QuerySpec) ([]VerifiableCredentialResource, error)
}

// TransactionContext runs fn inside a transactional scope. Stores resolve
// the active transaction from ctx.
type TransactionContext interface {
	Execute(ctx context.Context, fn func(ctx context.Context) error) error
}

// AttestationContext carries what an attestation source may inspect.
type AttestationContext struct {
	ParticipantID  string
	ParticipantDID string
	HolderPID      string
	TokenClaims    map[string]any
}

type AttestationSource interface {
	Execute(ctx context.Context, actx AttestationContext) (map[string]any, error)
}

type AttestationSourceFunc func(ctx context.Context, actx AttestationContext) (map[string]any, error)

func (f AttestationSourceFunc) Execute(ctx context.Context, actx AttestationContext) (map[string]any, error) {
	return f(ctx, actx)
}

type AttestationSourceFactory interface {
	CreateSource(def AttestationDefinition) (AttestationSource, error)
}

type AttestationSourceFactoryFunc func(def AttestationDefinition) (AttestationSource, error)

func (f AttestationSourceFactoryFunc) CreateSource(def AttestationDefinition) (AttestationSource, error) {
	return f(def)
}

// AttestationDefinitionValidator may be implemented by a factory to check
// definitions of its type before they are stored.
type AttestationDefinitionValidator interface {
	ValidateDefinition(def AttestationDefinition) error
}

type AttestationRegistry interface {
	RegisterFactory(attestationType string, factory AttestationSourceFactory)
	Factory(attestationType string) (AttestationSourceFactory, bool)
	RegisteredTypes() []string
}

type RuleEngine interface {
	Validate(def RuleDefinition) error
	Evaluate(ctx context.Context, defs []RuleDefinition, claims map[string]any) error
}

type TokenClaims struct {
	ID        string
	Issuer    string
	Subject   string
	Audience  []string
	KeyID     string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Extra     map[string]any
}

// SelfIssuedTokenVerifier verifies the signature of a holder token with the
// key of its subject DID and checks the audience.
type SelfIssuedTokenVerifier interface {
	Verify(ctx context.Context, token string, audience string) (TokenClaims, error)
}

type KeyResolver interface {
	ResolveKey(ctx context.Context, keyID string) (crypto.PublicKey, error)
}

const CredentialServiceType = "CredentialService"

type DidResolver interface {
	ResolveServiceEndpoint(ctx context.Context, did string, serviceType string) (string, error)
}

type CredentialGenerationRequest struct {
	// CredentialID is derived from the process and definition ids and is
	// the id the credential is stored under.
	CredentialID string
	Definition   CredentialDefinition
	Format       string
	Process      IssuanceProcess
	Subject      map[string]any
	IssuedAt     time.Time
	ExpiresAt    *time.Time
}

// CredentialGenerator signs a credential. Implementations may allocate a
// status list entry and return it in Credential.Status.
type CredentialGenerator interface {
	Generate(ctx context.Context, req CredentialGenerationRequest) (VerifiableCredentialResource, error)
}

type CredentialContainer struct {
	CredentialType string
	Format         string
	Payload        string
}

// CredentialMessage is sent to the holder. IssuerPID is the issuance
// process id, HolderPID the correlation id the holder supplied.
type CredentialMessage struct {
	IssuerPID   string
	HolderPID   string
	Credentials []CredentialContainer
}

type CredentialDeliverer interface {
	Deliver(ctx context.Context, endpoint string, msg CredentialMessage) error
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type JobExecutionMessage struct {
	JobID          string
	ScriptPath     string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

type JobWorkerHook interface {
	OnStart(ctx context.Context, event JobWorkerEvent)
	OnSuccess(ctx context.Context, event JobWorkerEvent)
	OnFailure(ctx context.Context, event JobWorkerEvent)
	OnRetry(ctx context.Context, event JobWorkerEvent)
}

type JobWorkerEvent struct {
	Message   *JobExecutionMessage
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

// StoreProvider exposes the stores built by a repository factory.
type StoreProvider interface {
	AttestationDefinitionStore() AttestationDefinitionStore
	ParticipantStore() ParticipantStore
	CredentialDefinitionStore() CredentialDefinitionStore
	IssuanceProcessStore() IssuanceProcessStore
	CredentialStore() CredentialStore
	TransactionContext() TransactionContext
}

type RepositoryStoreFactory interface {
	BuildStores(persistenceClient any) (StoreProvider, error)
}

// IssuanceService is the operation surface consumed by the command and query
// packages.
type IssuanceService interface {
	CreateAttestationDefinition(ctx context.Context, def AttestationDefinition) (AttestationDefinition, error)
	UpdateAttestationDefinition(ctx context.Context, def AttestationDefinition) (AttestationDefinition, error)
	DeleteAttestationDefinition(ctx context.Context, id string) error
	FindAttestationDefinition(ctx context.Context, id string) (AttestationDefinition, error)
	QueryAttestationDefinitions(ctx context.Context, spec QuerySpec) ([]AttestationDefinition, error)
	LinkAttestation(ctx context.Context, attestationID string, participantID string) (bool, error)
	UnlinkAttestation(ctx context.Context, attestationID string, participantID string) (bool, error)
	GetAttestationsForParticipant(ctx context.Context, participantID string) ([]AttestationDefinition, error)

	CreateParticipant(ctx context.Context, participant Participant) (Participant, error)
	FindParticipant(ctx context.Context, participantID string) (Participant, error)
	DeleteParticipant(ctx context.Context, participantID string) error
	QueryParticipants(ctx context.Context, spec QuerySpec) ([]Participant, error)

	CreateCredentialDefinition(ctx context.Context, def CredentialDefinition) (CredentialDefinition, error)
	UpdateCredentialDefinition(ctx context.Context, def CredentialDefinition) (CredentialDefinition, error)
	DeleteCredentialDefinition(ctx context.Context, id string) error
	FindCredentialDefinition(ctx context.Context, id string) (CredentialDefinition, error)
	QueryCredentialDefinitions(ctx context.Context, spec QuerySpec) ([]CredentialDefinition, error)

	HandleCredentialRequest(ctx context.Context, token string, msg CredentialRequestMessage) (CredentialRequestResult, error)
	GetIssuanceProcess(ctx context.Context, processID string) (IssuanceProcess, error)
	QueryIssuanceProcesses(ctx context.Context, spec QuerySpec) ([]IssuanceProcess, error)
	RunProcessManager(ctx context.Context) (ProcessRunResult, error)

	RevokeCredential(ctx context.Context, credentialID string, participantID string) error
	SuspendCredential(ctx context.Context, credentialID string, participantID string) error
	ResumeCredential(ctx context.Context, credentialID string, participantID string) error
	CheckCredentialStatus(ctx context.Context, credentialID string, participantID string) (string, error)
	GetCredential(ctx context.Context, credentialID string, participantID string) (VerifiableCredentialResource, error)
	QueryCredentials(ctx context.Context, participantID string, spec QuerySpec) ([]VerifiableCredentialResource, error)
	RunCredentialWatchdog(ctx context.Context) (WatchdogRunResult, error)
}
