package issuer

import "github.com/goliatone/go-issuer/core"

type Config = core.Config

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies

type IssuanceService = core.IssuanceService

type AttestationDefinition = core.AttestationDefinition
type Participant = core.Participant
type CredentialDefinition = core.CredentialDefinition
type IssuanceProcess = core.IssuanceProcess
type VerifiableCredentialResource = core.VerifiableCredentialResource

type CredentialRequestMessage = core.CredentialRequestMessage
type CredentialRequestResult = core.CredentialRequestResult

type QuerySpec = core.QuerySpec

type ProcessRunResult = core.ProcessRunResult
type WatchdogRunResult = core.WatchdogRunResult

var (
	WithLogger                     = core.WithLogger
	WithLoggerProvider             = core.WithLoggerProvider
	WithMetricsRecorder            = core.WithMetricsRecorder
	WithErrorFactory               = core.WithErrorFactory
	WithErrorMapper                = core.WithErrorMapper
	WithPersistenceClient          = core.WithPersistenceClient
	WithRepositoryFactory          = core.WithRepositoryFactory
	WithConfigProvider             = core.WithConfigProvider
	WithOptionsResolver            = core.WithOptionsResolver
	WithAttestationRegistry        = core.WithAttestationRegistry
	WithRuleEngine                 = core.WithRuleEngine
	WithStatusListRegistry         = core.WithStatusListRegistry
	WithAttestationDefinitionStore = core.WithAttestationDefinitionStore
	WithParticipantStore           = core.WithParticipantStore
	WithCredentialDefinitionStore  = core.WithCredentialDefinitionStore
	WithIssuanceProcessStore       = core.WithIssuanceProcessStore
	WithCredentialStore            = core.WithCredentialStore
	WithTransactionContext         = core.WithTransactionContext
	WithTokenVerifier              = core.WithTokenVerifier
	WithDidResolver                = core.WithDidResolver
	WithCredentialGenerator        = core.WithCredentialGenerator
	WithCredentialDeliverer        = core.WithCredentialDeliverer
	WithJobEnqueuer                = core.WithJobEnqueuer
	WithClock                      = core.WithClock
	WithIDGenerator                = core.WithIDGenerator
	WithLeaseOwner                 = core.WithLeaseOwner
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return core.Setup(cfg, opts...)
}
