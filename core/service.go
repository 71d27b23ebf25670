package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-issuer/statuslist"
	glog "github.com/goliatone/go-logger/glog"
)

type Service struct {
	config             Config
	logger             Logger
	loggerProvider     LoggerProvider
	metricsRecorder    MetricsRecorder
	errorFactory       ErrorFactory
	errorMapper        ErrorMapper
	persistenceClient  any
	repositoryFactory  any
	configProvider     ConfigProvider
	optionsResolver    OptionsResolver
	attestationReg     AttestationRegistry
	ruleEngine         RuleEngine
	statusListRegistry StatusListRegistry
	attestationStore   AttestationDefinitionStore
	participantStore   ParticipantStore
	definitionStore    CredentialDefinitionStore
	processStore       IssuanceProcessStore
	credentialStore    CredentialStore
	transactionContext TransactionContext
	tokenVerifier      SelfIssuedTokenVerifier
	didResolver        DidResolver
	generator          CredentialGenerator
	deliverer          CredentialDeliverer
	jobEnqueuer        JobEnqueuer
	clock              func() time.Time

	pipeline       *AttestationPipeline
	attestations   *AttestationDefinitionService
	participants   *ParticipantService
	definitions    *CredentialDefinitionService
	requests       *IssuanceRequestHandler
	processManager *IssuanceProcessManager
	revocation     *RevocationService
	watchdog       *CredentialWatchdog
	watchdogRunner *WatchdogRunner
}

type ServiceDependencies struct {
	Logger              Logger
	LoggerProvider      LoggerProvider
	MetricsRecorder     MetricsRecorder
	ErrorFactory        ErrorFactory
	ErrorMapper         ErrorMapper
	PersistenceClient   any
	RepositoryFactory   any
	ConfigProvider      ConfigProvider
	OptionsResolver     OptionsResolver
	AttestationRegistry AttestationRegistry
	RuleEngine          RuleEngine
	StatusListRegistry  StatusListRegistry
	AttestationStore    AttestationDefinitionStore
	ParticipantStore    ParticipantStore
	DefinitionStore     CredentialDefinitionStore
	ProcessStore        IssuanceProcessStore
	CredentialStore     CredentialStore
	TransactionContext  TransactionContext
	TokenVerifier       SelfIssuedTokenVerifier
	DidResolver         DidResolver
	CredentialGenerator CredentialGenerator
	CredentialDeliverer CredentialDeliverer
	JobEnqueuer         JobEnqueuer
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("issuer", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("issuer"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.clock == nil {
		builder.clock = func() time.Time { return time.Now().UTC() }
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if err := builder.resolveStores(); err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	if builder.transactionContext == nil {
		builder.transactionContext = NoopTransactionContext{}
	}

	svc := &Service{
		config:             finalConfig,
		logger:             logger,
		loggerProvider:     provider,
		metricsRecorder:    builder.metricsRecorder,
		errorFactory:       builder.errorFactory,
		errorMapper:        builder.errorMapper,
		persistenceClient:  builder.persistenceClient,
		repositoryFactory:  builder.repositoryFactory,
		configProvider:     builder.configProvider,
		optionsResolver:    builder.optionsResolver,
		attestationReg:     builder.attestationRegistry,
		ruleEngine:         builder.ruleEngine,
		statusListRegistry: builder.statusListRegistry,
		attestationStore:   builder.attestationDefinitionStore,
		participantStore:   builder.participantStore,
		definitionStore:    builder.credentialDefinitionStore,
		processStore:       builder.issuanceProcessStore,
		credentialStore:    builder.credentialStore,
		transactionContext: builder.transactionContext,
		tokenVerifier:      builder.tokenVerifier,
		didResolver:        builder.didResolver,
		generator:          builder.credentialGenerator,
		deliverer:          builder.credentialDeliverer,
		jobEnqueuer:        builder.jobEnqueuer,
		clock:              builder.clock,
	}
	svc.wireComponents(builder)
	return svc, nil
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return NewService(cfg, opts...)
}

// resolveStores fills stores not given explicitly from the repository factory.
func (b *serviceBuilder) resolveStores() error {
	if b.repositoryFactory == nil {
		return nil
	}
	var provider StoreProvider
	switch factory := b.repositoryFactory.(type) {
	case RepositoryStoreFactory:
		built, err := factory.BuildStores(b.persistenceClient)
		if err != nil {
			return err
		}
		provider = built
	case StoreProvider:
		provider = factory
	default:
		return fmt.Errorf("core: unsupported repository factory %T", b.repositoryFactory)
	}
	if provider == nil {
		return nil
	}
	if b.attestationDefinitionStore == nil {
		b.attestationDefinitionStore = provider.AttestationDefinitionStore()
	}
	if b.participantStore == nil {
		b.participantStore = provider.ParticipantStore()
	}
	if b.credentialDefinitionStore == nil {
		b.credentialDefinitionStore = provider.CredentialDefinitionStore()
	}
	if b.issuanceProcessStore == nil {
		b.issuanceProcessStore = provider.IssuanceProcessStore()
	}
	if b.credentialStore == nil {
		b.credentialStore = provider.CredentialStore()
	}
	if b.transactionContext == nil {
		b.transactionContext = provider.TransactionContext()
	}
	return nil
}

func (s *Service) wireComponents(b serviceBuilder) {
	s.pipeline = NewAttestationPipeline(s.attestationStore, s.attestationReg, s.logger)

	s.attestations = NewAttestationDefinitionService(s.attestationStore, s.participantStore, s.attestationReg, s.transactionContext)
	s.attestations.clock = s.clock

	s.participants = NewParticipantService(s.participantStore)
	s.participants.clock = s.clock

	s.definitions = NewCredentialDefinitionService(s.attestationStore, s.definitionStore, s.ruleEngine, s.transactionContext)
	s.definitions.clock = s.clock

	s.requests = NewIssuanceRequestHandler(IssuanceRequestHandlerConfig{
		Verifier:     s.tokenVerifier,
		Participants: s.participantStore,
		Definitions:  s.definitions,
		Pipeline:     s.pipeline,
		Rules:        s.ruleEngine,
		Processes:    s.processStore,
		Enqueuer:     s.jobEnqueuer,
		IssuerDID:    s.config.IssuerDID,
		Logger:       s.logger,
		Clock:        s.clock,
		IDGenerator:  b.idGenerator,
	})

	s.processManager = NewIssuanceProcessManager(IssuanceProcessManagerConfig{
		Processes:    s.processStore,
		Definitions:  s.definitionStore,
		Participants: s.participantStore,
		Credentials:  s.credentialStore,
		Generator:    s.generator,
		Resolver:     s.didResolver,
		Deliverer:    s.deliverer,
		Settings:     s.config.ProcessManager,
		IssuerDID:    s.config.IssuerDID,
		LeaseOwner:   b.leaseOwner,
		Logger:       s.logger,
		Clock:        s.clock,
	})

	s.revocation = NewRevocationService(s.credentialStore, s.statusListRegistry, s.transactionContext, s.config.Revocation, s.logger)
	s.revocation.clock = s.clock

	s.watchdog = NewCredentialWatchdog(s.credentialStore, s.revocation, s.logger, s.clock)
	s.watchdogRunner = NewWatchdogRunner(s.watchdog, s.config.Watchdog, s.logger)
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:              s.logger,
		LoggerProvider:      s.loggerProvider,
		MetricsRecorder:     s.metricsRecorder,
		ErrorFactory:        s.errorFactory,
		ErrorMapper:         s.errorMapper,
		PersistenceClient:   s.persistenceClient,
		RepositoryFactory:   s.repositoryFactory,
		ConfigProvider:      s.configProvider,
		OptionsResolver:     s.optionsResolver,
		AttestationRegistry: s.attestationReg,
		RuleEngine:          s.ruleEngine,
		StatusListRegistry:  s.statusListRegistry,
		AttestationStore:    s.attestationStore,
		ParticipantStore:    s.participantStore,
		DefinitionStore:     s.definitionStore,
		ProcessStore:        s.processStore,
		CredentialStore:     s.credentialStore,
		TransactionContext:  s.transactionContext,
		TokenVerifier:       s.tokenVerifier,
		DidResolver:         s.didResolver,
		CredentialGenerator: s.generator,
		CredentialDeliverer: s.deliverer,
		JobEnqueuer:         s.jobEnqueuer,
	}
}

// RegisterAttestationSource registers factory for attestationType. A later
// registration for the same type replaces the earlier one.
func (s *Service) RegisterAttestationSource(attestationType string, factory AttestationSourceFactory) {
	if s == nil || s.attestationReg == nil {
		return
	}
	s.attestationReg.RegisterFactory(attestationType, factory)
}

func (s *Service) ProcessManager() *IssuanceProcessManager {
	if s == nil {
		return nil
	}
	return s.processManager
}

func (s *Service) WatchdogRunner() *WatchdogRunner {
	if s == nil {
		return nil
	}
	return s.watchdogRunner
}

// Start launches the process manager loop and the credential watchdog.
func (s *Service) Start(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("core: service is nil")
	}
	if err := s.processManager.Start(ctx); err != nil {
		return s.mapError(err)
	}
	s.watchdogRunner.Start(ctx)
	return nil
}

func (s *Service) Stop() {
	if s == nil {
		return
	}
	s.watchdogRunner.Stop()
	s.processManager.Stop()
}

func (s *Service) CreateAttestationDefinition(ctx context.Context, def AttestationDefinition) (created AttestationDefinition, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"attestation_id": def.ID, "attestation_type": def.AttestationType}
	defer func() {
		s.observeOperation(ctx, startedAt, "create_attestation_definition", err, fields)
	}()
	created, err = s.attestations.CreateAttestationDefinition(ctx, def)
	return created, s.mapError(err)
}

func (s *Service) UpdateAttestationDefinition(ctx context.Context, def AttestationDefinition) (updated AttestationDefinition, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"attestation_id": def.ID, "attestation_type": def.AttestationType}
	defer func() {
		s.observeOperation(ctx, startedAt, "update_attestation_definition", err, fields)
	}()
	updated, err = s.attestations.UpdateAttestationDefinition(ctx, def)
	return updated, s.mapError(err)
}

func (s *Service) DeleteAttestationDefinition(ctx context.Context, id string) (err error) {
	startedAt := time.Now().UTC()
	defer func() {
		s.observeOperation(ctx, startedAt, "delete_attestation_definition", err, map[string]any{"attestation_id": id})
	}()
	err = s.mapError(s.attestations.DeleteAttestationDefinition(ctx, id))
	return err
}

func (s *Service) FindAttestationDefinition(ctx context.Context, id string) (AttestationDefinition, error) {
	def, err := s.attestations.FindAttestationDefinition(ctx, id)
	return def, s.mapError(err)
}

func (s *Service) QueryAttestationDefinitions(ctx context.Context, spec QuerySpec) ([]AttestationDefinition, error) {
	defs, err := s.attestations.QueryAttestationDefinitions(ctx, spec)
	return defs, s.mapError(err)
}

func (s *Service) LinkAttestation(ctx context.Context, attestationID string, participantID string) (linked bool, err error) {
	startedAt := time.Now().UTC()
	defer func() {
		s.observeOperation(ctx, startedAt, "link_attestation", err, map[string]any{
			"attestation_id": attestationID,
			"participant_id": participantID,
			"changed":        linked,
		})
	}()
	linked, err = s.attestations.LinkAttestation(ctx, strings.TrimSpace(attestationID), strings.TrimSpace(participantID))
	err = s.mapError(err)
	return linked, err
}

func (s *Service) UnlinkAttestation(ctx context.Context, attestationID string, participantID string) (unlinked bool, err error) {
	startedAt := time.Now().UTC()
	defer func() {
		s.observeOperation(ctx, startedAt, "unlink_attestation", err, map[string]any{
			"attestation_id": attestationID,
			"participant_id": participantID,
			"changed":        unlinked,
		})
	}()
	unlinked, err = s.attestations.UnlinkAttestation(ctx, strings.TrimSpace(attestationID), strings.TrimSpace(participantID))
	err = s.mapError(err)
	return unlinked, err
}

func (s *Service) GetAttestationsForParticipant(ctx context.Context, participantID string) ([]AttestationDefinition, error) {
	defs, err := s.attestations.GetAttestationsForParticipant(ctx, strings.TrimSpace(participantID))
	return defs, s.mapError(err)
}

func (s *Service) CreateParticipant(ctx context.Context, participant Participant) (created Participant, err error) {
	startedAt := time.Now().UTC()
	defer func() {
		s.observeOperation(ctx, startedAt, "create_participant", err, map[string]any{"participant_id": participant.ParticipantID})
	}()
	created, err = s.participants.CreateParticipant(ctx, participant)
	err = s.mapError(err)
	return created, err
}

func (s *Service) FindParticipant(ctx context.Context, participantID string) (Participant, error) {
	participant, err := s.participants.FindParticipant(ctx, participantID)
	return participant, s.mapError(err)
}

func (s *Service) DeleteParticipant(ctx context.Context, participantID string) (err error) {
	startedAt := time.Now().UTC()
	defer func() {
		s.observeOperation(ctx, startedAt, "delete_participant", err, map[string]any{"participant_id": participantID})
	}()
	err = s.mapError(s.participants.DeleteParticipant(ctx, participantID))
	return err
}

func (s *Service) QueryParticipants(ctx context.Context, spec QuerySpec) ([]Participant, error) {
	participants, err := s.participants.QueryParticipants(ctx, spec)
	return participants, s.mapError(err)
}

func (s *Service) CreateCredentialDefinition(ctx context.Context, def CredentialDefinition) (created CredentialDefinition, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"credential_definition_id": def.ID, "credential_type": def.CredentialType}
	defer func() {
		s.observeOperation(ctx, startedAt, "create_credential_definition", err, fields)
	}()
	created, err = s.definitions.CreateCredentialDefinition(ctx, def)
	err = s.mapError(err)
	return created, err
}

func (s *Service) UpdateCredentialDefinition(ctx context.Context, def CredentialDefinition) (updated CredentialDefinition, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"credential_definition_id": def.ID, "credential_type": def.CredentialType}
	defer func() {
		s.observeOperation(ctx, startedAt, "update_credential_definition", err, fields)
	}()
	updated, err = s.definitions.UpdateCredentialDefinition(ctx, def)
	err = s.mapError(err)
	return updated, err
}

func (s *Service) DeleteCredentialDefinition(ctx context.Context, id string) (err error) {
	startedAt := time.Now().UTC()
	defer func() {
		s.observeOperation(ctx, startedAt, "delete_credential_definition", err, map[string]any{"credential_definition_id": id})
	}()
	err = s.mapError(s.definitions.DeleteCredentialDefinition(ctx, id))
	return err
}

func (s *Service) FindCredentialDefinition(ctx context.Context, id string) (CredentialDefinition, error) {
	def, err := s.definitions.FindCredentialDefinition(ctx, id)
	return def, s.mapError(err)
}

func (s *Service) QueryCredentialDefinitions(ctx context.Context, spec QuerySpec) ([]CredentialDefinition, error) {
	defs, err := s.definitions.QueryCredentialDefinitions(ctx, spec)
	return defs, s.mapError(err)
}

// HandleCredentialRequest creates an issuance process for an authenticated
// holder request and returns its id and polling location.
func (s *Service) HandleCredentialRequest(ctx context.Context, token string, msg CredentialRequestMessage) (result CredentialRequestResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"holder_pid": msg.HolderPID, "requested": len(msg.Credentials)}
	defer func() {
		if result.ProcessID != "" {
			fields["process_id"] = result.ProcessID
		}
		s.observeOperation(ctx, startedAt, "handle_credential_request", err, fields)
	}()
	result, err = s.requests.HandleCredentialRequest(ctx, token, msg)
	err = s.mapError(err)
	return result, err
}

func (s *Service) GetIssuanceProcess(ctx context.Context, processID string) (IssuanceProcess, error) {
	if s == nil || s.processStore == nil {
		return IssuanceProcess{}, s.mapError(programmingError("core: issuance process store is not configured"))
	}
	process, err := s.processStore.FindByID(ctx, strings.TrimSpace(processID))
	if err != nil {
		return IssuanceProcess{}, s.mapError(mapStoreError(err, "find issuance process"))
	}
	return process, nil
}

func (s *Service) QueryIssuanceProcesses(ctx context.Context, spec QuerySpec) ([]IssuanceProcess, error) {
	if s == nil || s.processStore == nil {
		return nil, s.mapError(programmingError("core: issuance process store is not configured"))
	}
	processes, err := s.processStore.Query(ctx, spec)
	if err != nil {
		return nil, s.mapError(mapStoreError(err, "query issuance processes"))
	}
	return processes, nil
}

func (s *Service) RunProcessManager(ctx context.Context) (result ProcessRunResult, err error) {
	startedAt := time.Now().UTC()
	defer func() {
		s.observeOperation(ctx, startedAt, "run_process_manager", err, map[string]any{
			"claimed":   result.Claimed,
			"delivered": result.Delivered,
			"retried":   result.Retried,
			"errored":   result.Errored,
		})
	}()
	result, err = s.processManager.RunOnce(ctx)
	recordLoopOutcomes(ctx, s.metricsRecorder, "process_manager", map[string]int{
		"claimed":   result.Claimed,
		"approved":  result.Approved,
		"delivered": result.Delivered,
		"retried":   result.Retried,
		"errored":   result.Errored,
	})
	err = s.mapError(err)
	return result, err
}

func (s *Service) RevokeCredential(ctx context.Context, credentialID string, participantID string) (err error) {
	startedAt := time.Now().UTC()
	defer func() {
		s.observeOperation(ctx, startedAt, "revoke_credential", err, map[string]any{
			"credential_id":  credentialID,
			"participant_id": participantID,
			"status_purpose": statuslist.PurposeRevocation,
		})
	}()
	err = s.mapError(s.revocation.RevokeCredential(ctx, credentialID, participantID))
	return err
}

func (s *Service) SuspendCredential(ctx context.Context, credentialID string, participantID string) (err error) {
	startedAt := time.Now().UTC()
	defer func() {
		s.observeOperation(ctx, startedAt, "suspend_credential", err, map[string]any{
			"credential_id":  credentialID,
			"participant_id": participantID,
			"status_purpose": statuslist.PurposeSuspension,
		})
	}()
	err = s.mapError(s.revocation.SuspendCredential(ctx, credentialID, participantID))
	return err
}

func (s *Service) ResumeCredential(ctx context.Context, credentialID string, participantID string) (err error) {
	startedAt := time.Now().UTC()
	defer func() {
		s.observeOperation(ctx, startedAt, "resume_credential", err, map[string]any{
			"credential_id":  credentialID,
			"participant_id": participantID,
			"status_purpose": statuslist.PurposeSuspension,
		})
	}()
	err = s.mapError(s.revocation.ResumeCredential(ctx, credentialID, participantID))
	return err
}

func (s *Service) CheckCredentialStatus(ctx context.Context, credentialID string, participantID string) (string, error) {
	status, err := s.revocation.CheckCredentialStatus(ctx, credentialID, participantID)
	return status, s.mapError(err)
}

func (s *Service) GetCredential(ctx context.Context, credentialID string, participantID string) (VerifiableCredentialResource, error) {
	credential, err := s.revocation.GetCredential(ctx, credentialID, participantID)
	return credential, s.mapError(err)
}

func (s *Service) QueryCredentials(ctx context.Context, participantID string, spec QuerySpec) ([]VerifiableCredentialResource, error) {
	credentials, err := s.revocation.QueryCredentials(ctx, participantID, spec)
	return credentials, s.mapError(err)
}

func (s *Service) RunCredentialWatchdog(ctx context.Context) (result WatchdogRunResult, err error) {
	startedAt := time.Now().UTC()
	defer func() {
		s.observeOperation(ctx, startedAt, "run_credential_watchdog", err, map[string]any{
			"checked": result.Checked,
			"updated": result.Updated,
			"failed":  result.Failed,
		})
	}()
	result, err = s.watchdog.Run(ctx)
	recordLoopOutcomes(ctx, s.metricsRecorder, "credential_watchdog", map[string]int{
		"checked": result.Checked,
		"updated": result.Updated,
		"failed":  result.Failed,
	})
	err = s.mapError(err)
	return result, err
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}
