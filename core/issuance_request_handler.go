package core

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"
)

const (
	JobIDProcessAdvance     = "issuer.process.advance"
	JobIDCredentialWatchdog = "issuer.credential.watchdog"

	requestLocationPrefix = "/v1alpha/requests/"
)

type CredentialRequestSpec struct {
	CredentialType string
	Format         string
}

// CredentialRequestMessage is the holder's request body.
type CredentialRequestMessage struct {
	HolderPID   string
	Credentials []CredentialRequestSpec
}

type CredentialRequestResult struct {
	ProcessID string
	Location  string
}

// IssuanceRequestHandler turns an authenticated holder request into a
// SUBMITTED issuance process.
type IssuanceRequestHandler struct {
	verifier     SelfIssuedTokenVerifier
	participants ParticipantStore
	definitions  *CredentialDefinitionService
	pipeline     *AttestationPipeline
	rules        RuleEngine
	processes    IssuanceProcessStore
	enqueuer     JobEnqueuer
	issuerDID    string
	logger       Logger
	clock        func() time.Time
	idGenerator  func() string
}

type IssuanceRequestHandlerConfig struct {
	Verifier     SelfIssuedTokenVerifier
	Participants ParticipantStore
	Definitions  *CredentialDefinitionService
	Pipeline     *AttestationPipeline
	Rules        RuleEngine
	Processes    IssuanceProcessStore
	Enqueuer     JobEnqueuer
	IssuerDID    string
	Logger       Logger
	Clock        func() time.Time
	IDGenerator  func() string
}

func NewIssuanceRequestHandler(cfg IssuanceRequestHandlerConfig) *IssuanceRequestHandler {
	clock := cfg.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &IssuanceRequestHandler{
		verifier:     cfg.Verifier,
		participants: cfg.Participants,
		definitions:  cfg.Definitions,
		pipeline:     cfg.Pipeline,
		rules:        cfg.Rules,
		processes:    cfg.Processes,
		enqueuer:     cfg.Enqueuer,
		issuerDID:    strings.TrimSpace(cfg.IssuerDID),
		logger:       cfg.Logger,
		clock:        clock,
		idGenerator:  cfg.IDGenerator,
	}
}

func (h *IssuanceRequestHandler) HandleCredentialRequest(ctx context.Context, token string, msg CredentialRequestMessage) (CredentialRequestResult, error) {
	if h == nil || h.verifier == nil || h.participants == nil || h.definitions == nil ||
		h.pipeline == nil || h.processes == nil || h.idGenerator == nil {
		return CredentialRequestResult{}, programmingError("core: issuance request handler is not configured")
	}
	if h.issuerDID == "" {
		return CredentialRequestResult{}, programmingError("core: issuer did is not configured")
	}

	participant, tokenClaims, err := h.authenticate(ctx, token)
	if err != nil {
		return CredentialRequestResult{}, err
	}

	if strings.TrimSpace(msg.HolderPID) == "" {
		return CredentialRequestResult{}, validationError("core: holder pid is required")
	}
	if len(msg.Credentials) == 0 {
		return CredentialRequestResult{}, validationError("core: at least one credential must be requested")
	}

	definitions, formats, err := h.resolveDefinitions(ctx, msg.Credentials)
	if err != nil {
		return CredentialRequestResult{}, err
	}

	actx := AttestationContext{
		ParticipantID:  participant.ParticipantID,
		ParticipantDID: participant.DID,
		HolderPID:      strings.TrimSpace(msg.HolderPID),
		TokenClaims:    tokenClaims,
	}
	claims := map[string]any{}
	definitionIDs := make([]string, 0, len(definitions))
	for _, def := range definitions {
		gathered, err := h.pipeline.Evaluate(ctx, def.Attestations, actx)
		if err != nil {
			return CredentialRequestResult{}, err
		}
		if h.rules != nil {
			if err := h.rules.Evaluate(ctx, def.Rules, gathered); err != nil {
				return CredentialRequestResult{}, forbiddenError(
					fmt.Sprintf("core: requirements for credential %q are not met: %v", def.CredentialType, err),
				)
			}
		}
		for key, value := range gathered {
			claims[key] = value
		}
		definitionIDs = append(definitionIDs, def.ID)
	}

	process, err := NewIssuanceProcess(NewIssuanceProcessInput{
		ID:                    h.idGenerator(),
		ParticipantID:         participant.ParticipantID,
		IssuerContextID:       h.issuerDID,
		HolderPID:             msg.HolderPID,
		Claims:                claims,
		CredentialDefinitions: definitionIDs,
		CredentialFormats:     formats,
	}, h.clock())
	if err != nil {
		return CredentialRequestResult{}, validationError(err.Error())
	}
	created, err := h.processes.Create(ctx, process)
	if err != nil {
		return CredentialRequestResult{}, mapStoreError(err, "create issuance process")
	}

	h.wakeProcessManager(ctx, created)
	return CredentialRequestResult{
		ProcessID: created.ID,
		Location:  requestLocationPrefix + created.ID,
	}, nil
}

// authenticate never distinguishes why a caller was rejected.
func (h *IssuanceRequestHandler) authenticate(ctx context.Context, token string) (Participant, map[string]any, error) {
	if strings.TrimSpace(token) == "" {
		return Participant{}, nil, unauthorizedError("core: authorization token is required")
	}
	claims, err := h.verifier.Verify(ctx, token, h.issuerDID)
	if err != nil {
		emitLog(ctx, h.logger, "debug", "credential request token rejected", map[string]any{"error": err.Error()})
		return Participant{}, nil, unauthorizedError("core: token verification failed")
	}
	if !slices.Contains(claims.Audience, h.issuerDID) {
		return Participant{}, nil, unauthorizedError("core: token verification failed")
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return Participant{}, nil, unauthorizedError("core: token verification failed")
	}
	participant, err := h.participants.FindByDID(ctx, subject)
	if err != nil {
		if IsNotFound(err) {
			return Participant{}, nil, unauthorizedError("core: token verification failed")
		}
		return Participant{}, nil, mapStoreError(err, "resolve participant")
	}

	tokenClaims := copyAnyMap(claims.Extra)
	tokenClaims["iss"] = claims.Issuer
	tokenClaims["sub"] = claims.Subject
	if claims.ID != "" {
		tokenClaims["jti"] = claims.ID
	}
	return participant, tokenClaims, nil
}

func (h *IssuanceRequestHandler) resolveDefinitions(ctx context.Context, requested []CredentialRequestSpec) ([]CredentialDefinition, map[string]string, error) {
	definitions := make([]CredentialDefinition, 0, len(requested))
	formats := make(map[string]string, len(requested))
	for _, spec := range requested {
		credentialType := strings.TrimSpace(spec.CredentialType)
		if credentialType == "" {
			return nil, nil, validationError("core: credential type is required")
		}
		def, found, err := h.definitions.FindByCredentialType(ctx, credentialType)
		if err != nil {
			return nil, nil, err
		}
		if !found {
			return nil, nil, validationError(fmt.Sprintf("core: no credential definition found for type %q", credentialType))
		}
		format := strings.TrimSpace(spec.Format)
		if format != "" && len(def.Formats) > 0 && !slices.Contains(def.Formats, format) {
			return nil, nil, validationError(fmt.Sprintf("core: format %q is not supported for credential %q", format, credentialType))
		}
		if format == "" && len(def.Formats) > 0 {
			format = def.Formats[0]
		}
		if _, seen := formats[def.ID]; seen {
			continue
		}
		formats[def.ID] = format
		definitions = append(definitions, def)
	}
	return definitions, formats, nil
}

// wakeProcessManager is best effort; the polling loop picks the process up
// anyway.
func (h *IssuanceRequestHandler) wakeProcessManager(ctx context.Context, process IssuanceProcess) {
	if h.enqueuer == nil {
		return
	}
	err := h.enqueuer.Enqueue(ctx, &JobExecutionMessage{
		JobID:          JobIDProcessAdvance,
		ScriptPath:     JobIDProcessAdvance,
		Parameters:     map[string]any{"process_id": process.ID},
		IdempotencyKey: JobIDProcessAdvance + ":" + process.ID,
	})
	if err != nil {
		emitLog(ctx, h.logger, "warn", "issuance process wake-up enqueue failed", map[string]any{
			"process_id": process.ID,
			"error":      err.Error(),
		})
	}
}
