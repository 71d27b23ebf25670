package core

import (
	"context"
	"sync"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-issuer/statuslist"
)

type capturedCounter struct {
	name  string
	value int64
	tags  map[string]string
}

type captureMetricsRecorder struct {
	mu       sync.Mutex
	counters []capturedCounter
}

func (m *captureMetricsRecorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters = append(m.counters, capturedCounter{name: name, value: value, tags: cloneTags(tags)})
}

func (m *captureMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

func (m *captureMetricsRecorder) counter(name string) (capturedCounter, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, counter := range m.counters {
		if counter.name == name {
			return counter, true
		}
	}
	return capturedCounter{}, false
}

type capturedLog struct {
	level  string
	msg    string
	fields map[string]any
}

type captureLogger struct {
	mu       *sync.Mutex
	records  *[]capturedLog
	defaults map[string]any
}

func newCaptureLogger() *captureLogger {
	records := []capturedLog{}
	return &captureLogger{mu: &sync.Mutex{}, records: &records, defaults: map[string]any{}}
}

func (l *captureLogger) WithFields(fields map[string]any) Logger {
	merged := cloneFields(l.defaults)
	for key, value := range fields {
		merged[key] = value
	}
	return &captureLogger{mu: l.mu, records: l.records, defaults: merged}
}

func (l *captureLogger) Trace(msg string, args ...any) { l.record("trace", msg, args...) }
func (l *captureLogger) Debug(msg string, args ...any) { l.record("debug", msg, args...) }
func (l *captureLogger) Info(msg string, args ...any)  { l.record("info", msg, args...) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.record("warn", msg, args...) }
func (l *captureLogger) Error(msg string, args ...any) { l.record("error", msg, args...) }
func (l *captureLogger) Fatal(msg string, args ...any) { l.record("fatal", msg, args...) }

func (l *captureLogger) WithContext(context.Context) Logger {
	return &captureLogger{mu: l.mu, records: l.records, defaults: cloneFields(l.defaults)}
}

func (l *captureLogger) record(level string, msg string, args ...any) {
	fields := cloneFields(l.defaults)
	for index := 0; index+1 < len(args); index += 2 {
		key, ok := args[index].(string)
		if !ok {
			continue
		}
		fields[key] = args[index+1]
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.records = append(*l.records, capturedLog{level: level, msg: msg, fields: fields})
}

func (l *captureLogger) find(msg string) (capturedLog, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, record := range *l.records {
		if record.msg == msg {
			return record, true
		}
	}
	return capturedLog{}, false
}

type serviceFixture struct {
	svc         *Service
	logger      *captureLogger
	metrics     *captureMetricsRecorder
	processes   *memoryIssuanceProcessStore
	credentials *memoryCredentialStore
	deliverer   *stubDeliverer
	clock       *fixedClock
}

func newServiceFixture(t *testing.T, runtime Config, extra ...Option) *serviceFixture {
	t.Helper()
	fx := &serviceFixture{
		logger:      newCaptureLogger(),
		metrics:     &captureMetricsRecorder{},
		processes:   newMemoryIssuanceProcessStore(),
		credentials: newMemoryCredentialStore(),
		deliverer:   &stubDeliverer{},
		clock:       newFixedClock(time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)),
	}
	opts := []Option{
		WithLoggerProvider(stubLoggerProvider{logger: fx.logger}),
		WithLogger(fx.logger),
		WithMetricsRecorder(fx.metrics),
		WithAttestationDefinitionStore(newMemoryAttestationStore()),
		WithParticipantStore(newMemoryParticipantStore()),
		WithCredentialDefinitionStore(newMemoryCredentialDefinitionStore()),
		WithIssuanceProcessStore(fx.processes),
		WithCredentialStore(fx.credentials),
		WithTokenVerifier(&stubVerifier{claims: TokenClaims{
			Subject:  "did:web:holder.example",
			Audience: []string{testIssuerDID},
		}}),
		WithDidResolver(stubResolver{endpoint: "https://holder.example/api"}),
		WithCredentialGenerator(&stubGenerator{}),
		WithCredentialDeliverer(fx.deliverer),
		WithClock(fx.clock.Now),
		WithIDGenerator(func() string { return "proc-1" }),
		WithLeaseOwner("instance-test"),
	}
	svc, err := NewService(runtime, append(opts, extra...)...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	svc.RegisterAttestationSource("static", configSourceFactory())
	fx.svc = svc
	return fx
}

func TestService_IssuanceFlow(t *testing.T) {
	fx := newServiceFixture(t, Config{IssuerDID: testIssuerDID})
	ctx := context.Background()

	if _, err := fx.svc.CreateAttestationDefinition(ctx, AttestationDefinition{
		ID:              "membership",
		AttestationType: "static",
		Configuration:   map[string]any{"claims": map[string]any{"level": "gold"}},
	}); err != nil {
		t.Fatalf("create attestation: %v", err)
	}
	if _, err := fx.svc.CreateParticipant(ctx, Participant{ParticipantID: "p1", DID: "did:web:holder.example"}); err != nil {
		t.Fatalf("create participant: %v", err)
	}
	if _, err := fx.svc.LinkAttestation(ctx, "membership", "p1"); err != nil {
		t.Fatalf("link: %v", err)
	}
	if _, err := fx.svc.CreateCredentialDefinition(ctx, CredentialDefinition{
		ID:             "cd-1",
		CredentialType: "MembershipCredential",
		DataModel:      DataModelV11,
		Attestations:   []string{"membership"},
	}); err != nil {
		t.Fatalf("create credential definition: %v", err)
	}

	result, err := fx.svc.HandleCredentialRequest(ctx, "token", CredentialRequestMessage{
		HolderPID:   "holder-1",
		Credentials: []CredentialRequestSpec{{CredentialType: "MembershipCredential"}},
	})
	if err != nil {
		t.Fatalf("handle request: %v", err)
	}

	run, err := fx.svc.RunProcessManager(ctx)
	if err != nil {
		t.Fatalf("run process manager: %v", err)
	}
	if run.Delivered != 1 {
		t.Fatalf("expected delivery, got %#v", run)
	}
	process, err := fx.svc.GetIssuanceProcess(ctx, result.ProcessID)
	if err != nil {
		t.Fatalf("get process: %v", err)
	}
	if process.State != IssuanceProcessStateDelivered {
		t.Fatalf("expected DELIVERED, got %s", process.State)
	}

	issued, err := fx.svc.QueryCredentials(ctx, "p1", QuerySpec{})
	if err != nil || len(issued) != 1 {
		t.Fatalf("expected one issued credential, got %d (%v)", len(issued), err)
	}

	counter, ok := fx.metrics.counter("issuer.handle_credential_request.total")
	if !ok || counter.tags["status"] != "success" {
		t.Fatalf("expected request success counter, got %#v", counter)
	}
	delivered, ok := fx.metrics.counter("issuer.process_manager.delivered")
	if !ok || delivered.value != 1 || delivered.tags["loop"] != "process_manager" {
		t.Fatalf("expected delivered outcome counter, got %#v", delivered)
	}
	if _, ok := fx.metrics.counter("issuer.process_manager.errored"); ok {
		t.Fatalf("expected no counter for zero outcomes")
	}
	record, ok := fx.logger.find("handle_credential_request succeeded")
	if !ok || record.fields["process_id"] != "proc-1" {
		t.Fatalf("expected request log with process id, got %#v", record)
	}
}

func TestService_FailuresAreObserved(t *testing.T) {
	fx := newServiceFixture(t, Config{IssuerDID: testIssuerDID})

	_, err := fx.svc.HandleCredentialRequest(context.Background(), "", CredentialRequestMessage{})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.TextCode != IssuerErrorUnauthorized {
		t.Fatalf("expected unauthorized error, got %v", err)
	}
	counter, ok := fx.metrics.counter("issuer.handle_credential_request.total")
	if !ok || counter.tags["status"] != "failure" {
		t.Fatalf("expected failure counter, got %#v", counter)
	}
	if record, ok := fx.logger.find("handle_credential_request failed"); !ok || record.level != "error" {
		t.Fatalf("expected failure log, got %#v", record)
	}
}

func TestService_ProgrammingErrorsAreCritical(t *testing.T) {
	fx := newServiceFixture(t, Config{IssuerDID: testIssuerDID})
	ctx := context.Background()
	if _, err := fx.svc.CreateParticipant(ctx, Participant{ParticipantID: "p1", DID: "did:web:holder.example"}); err != nil {
		t.Fatalf("create participant: %v", err)
	}
	definitions := fx.svc.Dependencies().DefinitionStore
	if _, err := definitions.Create(ctx, CredentialDefinition{
		ID:             "cd-1",
		CredentialType: "MembershipCredential",
		DataModel:      DataModelV11,
		Attestations:   []string{"vanished"},
	}); err != nil {
		t.Fatalf("seed definition: %v", err)
	}

	_, err := fx.svc.HandleCredentialRequest(ctx, "token", CredentialRequestMessage{
		HolderPID:   "holder-1",
		Credentials: []CredentialRequestSpec{{CredentialType: "MembershipCredential"}},
	})
	if !IsProgrammingError(err) {
		t.Fatalf("expected programming error, got %v", err)
	}
	record, ok := fx.logger.find("handle_credential_request failed")
	if !ok || record.fields["severity"] != "critical" {
		t.Fatalf("expected critical failure log, got %#v", record)
	}
}

func TestService_RevocationAndWatchdog(t *testing.T) {
	fx := newServiceFixture(t, Config{IssuerDID: testIssuerDID})
	ctx := context.Background()

	bits, _ := statuslist.NewBitstring(statuslist.DefaultLength)
	encoded, _ := bits.Encode()
	if _, err := fx.credentials.Create(ctx, VerifiableCredentialResource{
		ID:    "status-1",
		State: CredentialStateIssued,
		Credential: VerifiableCredential{
			Subject: map[string]any{statuslist.ClaimEncodedList: encoded},
		},
	}); err != nil {
		t.Fatalf("seed status list: %v", err)
	}
	if _, err := fx.credentials.Create(ctx, issuedCredential("vc-1", "p1", 9, 10)); err != nil {
		t.Fatalf("seed credential: %v", err)
	}

	if err := fx.svc.SuspendCredential(ctx, "vc-1", "p1"); err != nil {
		t.Fatalf("suspend: %v", err)
	}
	if err := fx.svc.RevokeCredential(ctx, "vc-1", "p1"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	status, err := fx.svc.CheckCredentialStatus(ctx, "vc-1", "p1")
	if err != nil || status != statuslist.PurposeRevocation {
		t.Fatalf("expected revoked status, got %q (%v)", status, err)
	}

	result, err := fx.svc.RunCredentialWatchdog(ctx)
	if err != nil {
		t.Fatalf("watchdog: %v", err)
	}
	if result.Updated != 0 {
		t.Fatalf("expected revoked credential to be skipped, got %#v", result)
	}
	if _, err := fx.svc.GetCredential(ctx, "vc-1", "p2"); err == nil {
		t.Fatalf("expected foreign participant to be rejected")
	}
}

func TestService_ConfigLayers(t *testing.T) {
	fx := newServiceFixture(t, Config{
		IssuerDID: testIssuerDID,
		ProcessManager: ProcessManagerConfig{
			BatchSize: 3,
		},
		Watchdog: WatchdogConfig{PeriodSeconds: -1},
	}, WithConfigProvider(NewCfgxConfigProvider(NewStaticRawConfigLoader(map[string]any{
		"service_name": "issuer-test",
		"process_manager": map[string]any{
			"batch_size": 7,
			"workers":    2,
		},
	}))))

	cfg := fx.svc.Config()
	if cfg.ServiceName != "issuer-test" {
		t.Fatalf("expected loaded service name, got %q", cfg.ServiceName)
	}
	if cfg.ProcessManager.BatchSize != 3 || cfg.ProcessManager.Workers != 2 {
		t.Fatalf("expected runtime over config over defaults, got %#v", cfg.ProcessManager)
	}
	if cfg.ProcessManager.LeaseSeconds != DefaultConfig().ProcessManager.LeaseSeconds {
		t.Fatalf("expected default lease, got %d", cfg.ProcessManager.LeaseSeconds)
	}
	if fx.svc.WatchdogRunner().Enabled() {
		t.Fatalf("expected negative period to disable the watchdog")
	}

	if err := fx.svc.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	fx.svc.Stop()
	if _, ok := fx.logger.find("Credential Watchdog is disabled"); !ok {
		t.Fatalf("expected disabled watchdog log")
	}
}

func TestNewService_RejectsUnknownRepositoryFactory(t *testing.T) {
	svc, err := NewService(Config{}, WithRepositoryFactory(struct{}{}))
	if err == nil || svc != nil {
		t.Fatalf("expected unsupported factory error, got %v", err)
	}
}
