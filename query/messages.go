package query

import (
	"strings"

	"github.com/goliatone/go-issuer/core"
)

const (
	TypeFindAttestationDefinition     = "issuer.query.attestation_definition.find"
	TypeQueryAttestationDefinitions   = "issuer.query.attestation_definition.list"
	TypeGetAttestationsForParticipant = "issuer.query.participant.attestations"
	TypeFindParticipant               = "issuer.query.participant.find"
	TypeQueryParticipants             = "issuer.query.participant.list"
	TypeFindCredentialDefinition      = "issuer.query.credential_definition.find"
	TypeQueryCredentialDefinitions    = "issuer.query.credential_definition.list"
	TypeGetIssuanceProcess            = "issuer.query.issuance_process.get"
	TypeQueryIssuanceProcesses        = "issuer.query.issuance_process.list"
	TypeGetCredential                 = "issuer.query.credential.get"
	TypeQueryCredentials              = "issuer.query.credential.list"
	TypeCheckCredentialStatus         = "issuer.query.credential.status"
)

type FindAttestationDefinitionMessage struct {
	ID string
}

func (FindAttestationDefinitionMessage) Type() string { return TypeFindAttestationDefinition }

func (m FindAttestationDefinitionMessage) Validate() error {
	return requireField("id", m.ID, "attestation definition id is required")
}

type QueryAttestationDefinitionsMessage struct {
	Spec core.QuerySpec
}

func (QueryAttestationDefinitionsMessage) Type() string { return TypeQueryAttestationDefinitions }

func (m QueryAttestationDefinitionsMessage) Validate() error { return validateSpec(m.Spec) }

type GetAttestationsForParticipantMessage struct {
	ParticipantID string
}

func (GetAttestationsForParticipantMessage) Type() string { return TypeGetAttestationsForParticipant }

func (m GetAttestationsForParticipantMessage) Validate() error {
	return requireField("participant_id", m.ParticipantID, "participant id is required")
}

type FindParticipantMessage struct {
	ParticipantID string
}

func (FindParticipantMessage) Type() string { return TypeFindParticipant }

func (m FindParticipantMessage) Validate() error {
	return requireField("participant_id", m.ParticipantID, "participant id is required")
}

type QueryParticipantsMessage struct {
	Spec core.QuerySpec
}

func (QueryParticipantsMessage) Type() string { return TypeQueryParticipants }

func (m QueryParticipantsMessage) Validate() error { return validateSpec(m.Spec) }

type FindCredentialDefinitionMessage struct {
	ID string
}

func (FindCredentialDefinitionMessage) Type() string { return TypeFindCredentialDefinition }

func (m FindCredentialDefinitionMessage) Validate() error {
	return requireField("id", m.ID, "credential definition id is required")
}

type QueryCredentialDefinitionsMessage struct {
	Spec core.QuerySpec
}

func (QueryCredentialDefinitionsMessage) Type() string { return TypeQueryCredentialDefinitions }

func (m QueryCredentialDefinitionsMessage) Validate() error { return validateSpec(m.Spec) }

type GetIssuanceProcessMessage struct {
	ProcessID string
}

func (GetIssuanceProcessMessage) Type() string { return TypeGetIssuanceProcess }

func (m GetIssuanceProcessMessage) Validate() error {
	return requireField("process_id", m.ProcessID, "issuance process id is required")
}

type QueryIssuanceProcessesMessage struct {
	Spec core.QuerySpec
}

func (QueryIssuanceProcessesMessage) Type() string { return TypeQueryIssuanceProcesses }

func (m QueryIssuanceProcessesMessage) Validate() error { return validateSpec(m.Spec) }

type GetCredentialMessage struct {
	CredentialID  string
	ParticipantID string
}

func (GetCredentialMessage) Type() string { return TypeGetCredential }

func (m GetCredentialMessage) Validate() error {
	return validateCredentialRef(m.CredentialID, m.ParticipantID)
}

// QueryCredentialsMessage lists credentials owned by one participant
// context. The participant filter is always applied on top of Spec.
type QueryCredentialsMessage struct {
	ParticipantID string
	Spec          core.QuerySpec
}

func (QueryCredentialsMessage) Type() string { return TypeQueryCredentials }

func (m QueryCredentialsMessage) Validate() error {
	if err := requireField("participant_id", m.ParticipantID, "participant id is required"); err != nil {
		return err
	}
	return validateSpec(m.Spec)
}

type CheckCredentialStatusMessage struct {
	CredentialID  string
	ParticipantID string
}

func (CheckCredentialStatusMessage) Type() string { return TypeCheckCredentialStatus }

func (m CheckCredentialStatusMessage) Validate() error {
	return validateCredentialRef(m.CredentialID, m.ParticipantID)
}

func requireField(field string, value string, message string) error {
	if strings.TrimSpace(value) == "" {
		return queryValidationError(field, message)
	}
	return nil
}

func validateSpec(spec core.QuerySpec) error {
	if spec.Offset < 0 {
		return queryValidationError("offset", "offset must be >= 0")
	}
	if spec.Limit < 0 {
		return queryValidationError("limit", "limit must be >= 0")
	}
	for _, criterion := range spec.Filter {
		if strings.TrimSpace(criterion.Field) == "" {
			return queryValidationError("filter.field", "filter field is required")
		}
	}
	return nil
}

func validateCredentialRef(credentialID string, participantID string) error {
	if err := requireField("credential_id", credentialID, "credential id is required"); err != nil {
		return err
	}
	return requireField("participant_id", participantID, "participant id is required")
}
