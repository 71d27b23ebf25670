package core

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/goliatone/go-issuer/rules"
)

var (
	ErrInvalidIssuanceProcessTransition = errors.New("core: invalid issuance process transition")
	ErrInvalidCredentialStateTransition = errors.New("core: invalid credential state transition")
	ErrInvalidCredentialDefinition      = errors.New("core: invalid credential definition")
	ErrInvalidIssuanceProcess           = errors.New("core: invalid issuance process")
	ErrInvalidAttestationDefinition     = errors.New("core: invalid attestation definition")
	ErrInvalidParticipant               = errors.New("core: invalid participant")
)

type AttestationDefinition struct {
	ID                   string
	AttestationType      string
	ParticipantContextID string
	Configuration        map[string]any
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func (d AttestationDefinition) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidAttestationDefinition)
	}
	if strings.TrimSpace(d.AttestationType) == "" {
		return fmt.Errorf("%w: attestation type is required", ErrInvalidAttestationDefinition)
	}
	return nil
}

// Participant is a holder known to the issuer. LinkedAttestations has set
// semantics and is changed only through LinkAttestation and UnlinkAttestation.
type Participant struct {
	ParticipantID      string
	DID                string
	Name               string
	LinkedAttestations []string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (p Participant) Validate() error {
	if strings.TrimSpace(p.ParticipantID) == "" {
		return fmt.Errorf("%w: participant id is required", ErrInvalidParticipant)
	}
	if strings.TrimSpace(p.DID) == "" {
		return fmt.Errorf("%w: did is required", ErrInvalidParticipant)
	}
	return nil
}

func (p *Participant) HasAttestation(attestationID string) bool {
	return p != nil && slices.Contains(p.LinkedAttestations, attestationID)
}

// LinkAttestation reports whether the set changed.
func (p *Participant) LinkAttestation(attestationID string) bool {
	if p == nil || p.HasAttestation(attestationID) {
		return false
	}
	p.LinkedAttestations = append(p.LinkedAttestations, attestationID)
	return true
}

// UnlinkAttestation reports whether the set changed.
func (p *Participant) UnlinkAttestation(attestationID string) bool {
	if p == nil {
		return false
	}
	index := slices.Index(p.LinkedAttestations, attestationID)
	if index < 0 {
		return false
	}
	p.LinkedAttestations = slices.Delete(slices.Clone(p.LinkedAttestations), index, index+1)
	return true
}

type DataModel string

const (
	DataModelV11 DataModel = "VCDM_1_1"
	DataModelV20 DataModel = "VCDM_2_0"
)

const (
	CredentialFormatVCJWT  = "VC1_0_JWT"
	CredentialFormatVC2JWT = "VC2_0_JOSE"
	CredentialFormatLDP    = "VC1_0_LD"
)

type RuleDefinition = rules.Definition

// MappingDefinition copies a claim into the credential subject at generation time.
type MappingDefinition struct {
	Input    string
	Output   string
	Required bool
}

type CredentialDefinition struct {
	ID                   string
	CredentialType       string
	ParticipantContextID string
	JSONSchema           string
	JSONSchemaURL        string
	DataModel            DataModel
	Validity             int64
	Attestations         []string
	Rules                []RuleDefinition
	Mappings             []MappingDefinition
	Formats              []string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

type NewCredentialDefinitionInput struct {
	ID                   string
	CredentialType       string
	ParticipantContextID string
	JSONSchema           string
	JSONSchemaURL        string
	DataModel            DataModel
	Validity             int64
	Attestations         []string
	Rules                []RuleDefinition
	Mappings             []MappingDefinition
	Formats              []string
}

// NewCredentialDefinition applies defaults and checks required fields.
func NewCredentialDefinition(in NewCredentialDefinitionInput) (CredentialDefinition, error) {
	def := CredentialDefinition{
		ID:                   strings.TrimSpace(in.ID),
		CredentialType:       strings.TrimSpace(in.CredentialType),
		ParticipantContextID: strings.TrimSpace(in.ParticipantContextID),
		JSONSchema:           strings.TrimSpace(in.JSONSchema),
		JSONSchemaURL:        strings.TrimSpace(in.JSONSchemaURL),
		DataModel:            in.DataModel,
		Validity:             in.Validity,
		Attestations:         slices.Clone(in.Attestations),
		Rules:                slices.Clone(in.Rules),
		Mappings:             slices.Clone(in.Mappings),
		Formats:              slices.Clone(in.Formats),
	}
	if def.DataModel == "" {
		def.DataModel = DataModelV11
	}
	if err := def.Validate(); err != nil {
		return CredentialDefinition{}, err
	}
	return def, nil
}

func (d CredentialDefinition) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidCredentialDefinition)
	}
	if strings.TrimSpace(d.CredentialType) == "" {
		return fmt.Errorf("%w: credential type is required", ErrInvalidCredentialDefinition)
	}
	switch d.DataModel {
	case DataModelV11, DataModelV20:
	default:
		return fmt.Errorf("%w: unsupported data model %q", ErrInvalidCredentialDefinition, d.DataModel)
	}
	if d.Validity < 0 {
		return fmt.Errorf("%w: validity must not be negative", ErrInvalidCredentialDefinition)
	}
	for _, mapping := range d.Mappings {
		if strings.TrimSpace(mapping.Input) == "" || strings.TrimSpace(mapping.Output) == "" {
			return fmt.Errorf("%w: mapping input and output are required", ErrInvalidCredentialDefinition)
		}
	}
	return nil
}

type IssuanceProcessState string

const (
	IssuanceProcessStateSubmitted IssuanceProcessState = "SUBMITTED"
	IssuanceProcessStateApproved  IssuanceProcessState = "APPROVED"
	IssuanceProcessStateDelivered IssuanceProcessState = "DELIVERED"
	IssuanceProcessStateErrored   IssuanceProcessState = "ERRORED"
)

func (s IssuanceProcessState) IsTerminal() bool {
	return s == IssuanceProcessStateDelivered || s == IssuanceProcessStateErrored
}

type IssuanceProcess struct {
	ID                    string
	ParticipantID         string
	IssuerContextID       string
	HolderPID             string
	Claims                map[string]any
	CredentialDefinitions []string
	CredentialFormats     map[string]string
	State                 IssuanceProcessState
	StateCount            int
	StateTimestamp        time.Time
	RetryCount            int
	NextAttemptAt         *time.Time
	ErrorDetail           string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

type NewIssuanceProcessInput struct {
	ID                    string
	ParticipantID         string
	IssuerContextID       string
	HolderPID             string
	Claims                map[string]any
	CredentialDefinitions []string
	CredentialFormats     map[string]string
}

// NewIssuanceProcess builds a SUBMITTED process.
func NewIssuanceProcess(in NewIssuanceProcessInput, now time.Time) (IssuanceProcess, error) {
	process := IssuanceProcess{
		ID:                    strings.TrimSpace(in.ID),
		ParticipantID:         strings.TrimSpace(in.ParticipantID),
		IssuerContextID:       strings.TrimSpace(in.IssuerContextID),
		HolderPID:             strings.TrimSpace(in.HolderPID),
		Claims:                copyAnyMap(in.Claims),
		CredentialDefinitions: slices.Clone(in.CredentialDefinitions),
		CredentialFormats:     copyStringMap(in.CredentialFormats),
		State:                 IssuanceProcessStateSubmitted,
		StateCount:            1,
		StateTimestamp:        now,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	switch {
	case process.ID == "":
		return IssuanceProcess{}, fmt.Errorf("%w: id is required", ErrInvalidIssuanceProcess)
	case process.ParticipantID == "":
		return IssuanceProcess{}, fmt.Errorf("%w: participant id is required", ErrInvalidIssuanceProcess)
	case process.IssuerContextID == "":
		return IssuanceProcess{}, fmt.Errorf("%w: issuer context id is required", ErrInvalidIssuanceProcess)
	case process.HolderPID == "":
		return IssuanceProcess{}, fmt.Errorf("%w: holder pid is required", ErrInvalidIssuanceProcess)
	case len(process.CredentialDefinitions) == 0:
		return IssuanceProcess{}, fmt.Errorf("%w: at least one credential definition is required", ErrInvalidIssuanceProcess)
	}
	return process, nil
}

// InvalidTransitionError is a state machine violation. It is never a
// business failure and matches both ErrInvalidIssuanceProcessTransition and
// ErrProgrammingError.
type InvalidTransitionError struct {
	ProcessID string
	From      IssuanceProcessState
	To        IssuanceProcessState
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s: %s -> %s (process %s)", ErrInvalidIssuanceProcessTransition, e.From, e.To, e.ProcessID)
}

func (e *InvalidTransitionError) Unwrap() []error {
	return []error{ErrInvalidIssuanceProcessTransition, ErrProgrammingError}
}

func (p *IssuanceProcess) TransitionToApproved(now time.Time) error {
	return p.transitionTo(IssuanceProcessStateApproved, now)
}

func (p *IssuanceProcess) TransitionToDelivered(now time.Time) error {
	if err := p.transitionTo(IssuanceProcessStateDelivered, now); err != nil {
		return err
	}
	p.NextAttemptAt = nil
	return nil
}

func (p *IssuanceProcess) TransitionToError(detail string, now time.Time) error {
	if err := p.transitionTo(IssuanceProcessStateErrored, now); err != nil {
		return err
	}
	p.ErrorDetail = strings.TrimSpace(detail)
	p.NextAttemptAt = nil
	return nil
}

// transitionTo bumps StateCount when re-entering the current state and
// resets it otherwise. The process is left untouched on error.
func (p *IssuanceProcess) transitionTo(next IssuanceProcessState, now time.Time) error {
	if p == nil {
		return nil
	}
	if !isIssuanceProcessTransitionAllowed(p.State, next) {
		return &InvalidTransitionError{ProcessID: p.ID, From: p.State, To: next}
	}
	if p.State == next {
		p.StateCount++
	} else {
		p.StateCount = 1
	}
	p.State = next
	p.StateTimestamp = now
	p.UpdatedAt = now
	return nil
}

func isIssuanceProcessTransitionAllowed(current IssuanceProcessState, next IssuanceProcessState) bool {
	allowed := map[IssuanceProcessState]map[IssuanceProcessState]struct{}{
		IssuanceProcessStateSubmitted: {
			IssuanceProcessStateApproved: {},
		},
		IssuanceProcessStateApproved: {
			IssuanceProcessStateApproved:  {},
			IssuanceProcessStateDelivered: {},
			IssuanceProcessStateErrored:   {},
		},
	}
	_, ok := allowed[current][next]
	return ok
}

type CredentialState string

const (
	CredentialStateIssued      CredentialState = "issued"
	CredentialStateRevoked     CredentialState = "revoked"
	CredentialStateSuspended   CredentialState = "suspended"
	CredentialStateExpired     CredentialState = "expired"
	CredentialStateNotYetValid CredentialState = "not_yet_valid"
)

// RequiresStatusCheck reports whether the watchdog should inspect credentials
// in this state.
func (s CredentialState) RequiresStatusCheck() bool {
	switch s {
	case CredentialStateIssued, CredentialStateNotYetValid, CredentialStateSuspended:
		return true
	default:
		return false
	}
}

type CredentialStatusEntry struct {
	ID         string
	Type       string
	Properties map[string]any
}

type VerifiableCredential struct {
	ID             string
	Types          []string
	Issuer         string
	IssuanceDate   time.Time
	ExpirationDate *time.Time
	Subject        map[string]any
	Status         []CredentialStatusEntry
}

// VerifiableCredentialResource is an issued credential (or a status list
// credential) held in the CredentialStore.
type VerifiableCredentialResource struct {
	ID                   string
	ParticipantContextID string
	IssuerID             string
	HolderID             string
	State                CredentialState
	Format               string
	RawCredential        string
	Credential           VerifiableCredential
	Version              int
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func (r *VerifiableCredentialResource) TransitionTo(next CredentialState, now time.Time) error {
	if r == nil {
		return nil
	}
	if r.State == next {
		return nil
	}
	if !isCredentialStateTransitionAllowed(r.State, next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidCredentialStateTransition, r.State, next)
	}
	r.State = next
	r.UpdatedAt = now
	return nil
}

func isCredentialStateTransitionAllowed(current CredentialState, next CredentialState) bool {
	allowed := map[CredentialState]map[CredentialState]struct{}{
		CredentialStateIssued: {
			CredentialStateRevoked:     {},
			CredentialStateSuspended:   {},
			CredentialStateExpired:     {},
			CredentialStateNotYetValid: {},
		},
		CredentialStateNotYetValid: {
			CredentialStateIssued:  {},
			CredentialStateRevoked: {},
			CredentialStateExpired: {},
		},
		CredentialStateSuspended: {
			CredentialStateIssued:      {},
			CredentialStateRevoked:     {},
			CredentialStateExpired:     {},
			CredentialStateNotYetValid: {},
		},
	}
	_, ok := allowed[current][next]
	return ok
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func copyStringMap(in map[string]string) map[string]string {
	if len(in) == 0 {
		return map[string]string{}
	}
	out := make(map[string]string, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
