package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-issuer/rules"
	"github.com/goliatone/go-issuer/statuslist"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
	"github.com/google/uuid"
)

type ErrorFactory func(message string, category ...goerrors.Category) *goerrors.Error

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

// StatusListRegistry resolves credential status entry types.
type StatusListRegistry interface {
	Resolve(name string) (statuslist.Type, error)
}

type serviceBuilder struct {
	runtimeConfig              Config
	logger                     Logger
	loggerProvider             LoggerProvider
	metricsRecorder            MetricsRecorder
	errorFactory               ErrorFactory
	errorMapper                ErrorMapper
	persistenceClient          any
	repositoryFactory          any
	configProvider             ConfigProvider
	optionsResolver            OptionsResolver
	attestationRegistry        AttestationRegistry
	ruleEngine                 RuleEngine
	statusListRegistry         StatusListRegistry
	attestationDefinitionStore AttestationDefinitionStore
	participantStore           ParticipantStore
	credentialDefinitionStore  CredentialDefinitionStore
	issuanceProcessStore       IssuanceProcessStore
	credentialStore            CredentialStore
	transactionContext         TransactionContext
	tokenVerifier              SelfIssuedTokenVerifier
	didResolver                DidResolver
	credentialGenerator        CredentialGenerator
	credentialDeliverer        CredentialDeliverer
	jobEnqueuer                JobEnqueuer
	clock                      func() time.Time
	idGenerator                func() string
	leaseOwner                 string
}

type Option func(*serviceBuilder)

func WithLogger(logger Logger) Option {
	return func(b *serviceBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *serviceBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *serviceBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorFactory(factory ErrorFactory) Option {
	return func(b *serviceBuilder) {
		b.errorFactory = factory
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *serviceBuilder) {
		b.errorMapper = mapper
	}
}

func WithPersistenceClient(client any) Option {
	return func(b *serviceBuilder) {
		b.persistenceClient = client
	}
}

func WithRepositoryFactory(factory any) Option {
	return func(b *serviceBuilder) {
		b.repositoryFactory = factory
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *serviceBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *serviceBuilder) {
		b.optionsResolver = resolver
	}
}

func WithAttestationRegistry(registry AttestationRegistry) Option {
	return func(b *serviceBuilder) {
		b.attestationRegistry = registry
	}
}

func WithRuleEngine(engine RuleEngine) Option {
	return func(b *serviceBuilder) {
		b.ruleEngine = engine
	}
}

func WithStatusListRegistry(registry StatusListRegistry) Option {
	return func(b *serviceBuilder) {
		b.statusListRegistry = registry
	}
}

func WithAttestationDefinitionStore(store AttestationDefinitionStore) Option {
	return func(b *serviceBuilder) {
		b.attestationDefinitionStore = store
	}
}

func WithParticipantStore(store ParticipantStore) Option {
	return func(b *serviceBuilder) {
		b.participantStore = store
	}
}

func WithCredentialDefinitionStore(store CredentialDefinitionStore) Option {
	return func(b *serviceBuilder) {
		b.credentialDefinitionStore = store
	}
}

func WithIssuanceProcessStore(store IssuanceProcessStore) Option {
	return func(b *serviceBuilder) {
		b.issuanceProcessStore = store
	}
}

func WithCredentialStore(store CredentialStore) Option {
	return func(b *serviceBuilder) {
		b.credentialStore = store
	}
}

func WithTransactionContext(tx TransactionContext) Option {
	return func(b *serviceBuilder) {
		b.transactionContext = tx
	}
}

func WithTokenVerifier(verifier SelfIssuedTokenVerifier) Option {
	return func(b *serviceBuilder) {
		b.tokenVerifier = verifier
	}
}

func WithDidResolver(resolver DidResolver) Option {
	return func(b *serviceBuilder) {
		b.didResolver = resolver
	}
}

func WithCredentialGenerator(generator CredentialGenerator) Option {
	return func(b *serviceBuilder) {
		b.credentialGenerator = generator
	}
}

func WithCredentialDeliverer(deliverer CredentialDeliverer) Option {
	return func(b *serviceBuilder) {
		b.credentialDeliverer = deliverer
	}
}

// WithJobEnqueuer makes new issuance processes enqueue an advance job.
func WithJobEnqueuer(enqueuer JobEnqueuer) Option {
	return func(b *serviceBuilder) {
		b.jobEnqueuer = enqueuer
	}
}

func WithClock(clock func() time.Time) Option {
	return func(b *serviceBuilder) {
		b.clock = clock
	}
}

func WithIDGenerator(generator func() string) Option {
	return func(b *serviceBuilder) {
		b.idGenerator = generator
	}
}

// WithLeaseOwner sets the identity this instance uses when leasing processes.
func WithLeaseOwner(owner string) Option {
	return func(b *serviceBuilder) {
		b.leaseOwner = strings.TrimSpace(owner)
	}
}

func defaultServiceBuilder(runtime Config) serviceBuilder {
	loggerProvider, logger := glog.Resolve("issuer", nil, nil)
	attestations := NewAttestationSourceRegistry()
	attestations.RegisterFactory(AttestationTypePresentation, PresentationAttestationSourceFactory{})
	return serviceBuilder{
		runtimeConfig:       runtime,
		loggerProvider:      loggerProvider,
		logger:              logger,
		metricsRecorder:     NopMetricsRecorder{},
		errorFactory:        goerrors.New,
		errorMapper:         defaultErrorMapper,
		configProvider:      NewCfgxConfigProvider(nil),
		optionsResolver:     GoOptionsResolver{},
		attestationRegistry: attestations,
		ruleEngine:          rules.NewEngine(),
		statusListRegistry:  statuslist.NewDefaultRegistry(),
		transactionContext:  NoopTransactionContext{},
		clock:               func() time.Time { return time.Now().UTC() },
		idGenerator:         uuid.NewString,
		leaseOwner:          "issuer-" + uuid.NewString(),
	}
}

func defaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	return issuerErrorMapper(err)
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

// NewStaticRawConfigLoader serves a fixed raw configuration map.
func NewStaticRawConfigLoader(values map[string]any) RawConfigLoader {
	return staticRawConfigLoader{Values: values}
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, false)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

// configToLayerMap renders cfg as a layer. Zero values are omitted unless
// includeZero is set, so a runtime layer disables the watchdog with a
// negative period rather than zero.
func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.ServiceName) != "" {
		layer["service_name"] = cfg.ServiceName
	}
	if includeZero || strings.TrimSpace(cfg.IssuerDID) != "" {
		layer["issuer_did"] = cfg.IssuerDID
	}

	processManager := map[string]any{}
	putInt(processManager, "batch_size", cfg.ProcessManager.BatchSize, includeZero)
	putInt(processManager, "workers", cfg.ProcessManager.Workers, includeZero)
	putInt(processManager, "poll_interval_ms", cfg.ProcessManager.PollIntervalMS, includeZero)
	putInt(processManager, "lease_seconds", cfg.ProcessManager.LeaseSeconds, includeZero)
	putInt(processManager, "max_retries", cfg.ProcessManager.MaxRetries, includeZero)
	putInt(processManager, "initial_backoff_ms", cfg.ProcessManager.InitialBackoffMS, includeZero)
	putInt(processManager, "max_backoff_ms", cfg.ProcessManager.MaxBackoffMS, includeZero)
	if len(processManager) > 0 {
		layer["process_manager"] = processManager
	}

	watchdog := map[string]any{}
	putInt(watchdog, "period_seconds", cfg.Watchdog.PeriodSeconds, includeZero)
	putInt(watchdog, "delay_seconds", cfg.Watchdog.DelaySeconds, includeZero)
	if len(watchdog) > 0 {
		layer["watchdog"] = watchdog
	}

	revocation := map[string]any{}
	putInt(revocation, "max_conflict_retries", cfg.Revocation.MaxConflictRetries, includeZero)
	if len(revocation) > 0 {
		layer["revocation"] = revocation
	}
	return layer
}

func putInt(layer map[string]any, key string, value int, includeZero bool) {
	if includeZero || value != 0 {
		layer[key] = value
	}
}
