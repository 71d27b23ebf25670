package command

import (
	"strings"

	"github.com/goliatone/go-issuer/core"
)

const (
	TypeCreateAttestationDefinition = "issuer.command.attestation_definition.create"
	TypeUpdateAttestationDefinition = "issuer.command.attestation_definition.update"
	TypeDeleteAttestationDefinition = "issuer.command.attestation_definition.delete"
	TypeLinkAttestation             = "issuer.command.attestation.link"
	TypeUnlinkAttestation           = "issuer.command.attestation.unlink"
	TypeCreateParticipant           = "issuer.command.participant.create"
	TypeDeleteParticipant           = "issuer.command.participant.delete"
	TypeCreateCredentialDefinition  = "issuer.command.credential_definition.create"
	TypeUpdateCredentialDefinition  = "issuer.command.credential_definition.update"
	TypeDeleteCredentialDefinition  = "issuer.command.credential_definition.delete"
	TypeRequestCredential           = "issuer.command.credential.request"
	TypeRevokeCredential            = "issuer.command.credential.revoke"
	TypeSuspendCredential           = "issuer.command.credential.suspend"
	TypeResumeCredential            = "issuer.command.credential.resume"
	TypeRunProcessManager           = "issuer.command.process_manager.run"
	TypeRunCredentialWatchdog       = "issuer.command.credential_watchdog.run"
)

type CreateAttestationDefinitionMessage struct {
	Definition core.AttestationDefinition
}

func (CreateAttestationDefinitionMessage) Type() string { return TypeCreateAttestationDefinition }

func (m CreateAttestationDefinitionMessage) Validate() error {
	return commandWrapValidation(m.Definition.Validate(), "command: invalid attestation definition")
}

type UpdateAttestationDefinitionMessage struct {
	Definition core.AttestationDefinition
}

func (UpdateAttestationDefinitionMessage) Type() string { return TypeUpdateAttestationDefinition }

func (m UpdateAttestationDefinitionMessage) Validate() error {
	return commandWrapValidation(m.Definition.Validate(), "command: invalid attestation definition")
}

type DeleteAttestationDefinitionMessage struct {
	ID string
}

func (DeleteAttestationDefinitionMessage) Type() string { return TypeDeleteAttestationDefinition }

func (m DeleteAttestationDefinitionMessage) Validate() error {
	return requireField("id", m.ID, "attestation definition id is required")
}

type LinkAttestationMessage struct {
	AttestationID string
	ParticipantID string
}

func (LinkAttestationMessage) Type() string { return TypeLinkAttestation }

func (m LinkAttestationMessage) Validate() error {
	return validateLink(m.AttestationID, m.ParticipantID)
}

type UnlinkAttestationMessage struct {
	AttestationID string
	ParticipantID string
}

func (UnlinkAttestationMessage) Type() string { return TypeUnlinkAttestation }

func (m UnlinkAttestationMessage) Validate() error {
	return validateLink(m.AttestationID, m.ParticipantID)
}

type CreateParticipantMessage struct {
	Participant core.Participant
}

func (CreateParticipantMessage) Type() string { return TypeCreateParticipant }

func (m CreateParticipantMessage) Validate() error {
	return commandWrapValidation(m.Participant.Validate(), "command: invalid participant")
}

type DeleteParticipantMessage struct {
	ParticipantID string
}

func (DeleteParticipantMessage) Type() string { return TypeDeleteParticipant }

func (m DeleteParticipantMessage) Validate() error {
	return requireField("participant_id", m.ParticipantID, "participant id is required")
}

type CreateCredentialDefinitionMessage struct {
	Definition core.CredentialDefinition
}

func (CreateCredentialDefinitionMessage) Type() string { return TypeCreateCredentialDefinition }

func (m CreateCredentialDefinitionMessage) Validate() error {
	return commandWrapValidation(m.Definition.Validate(), "command: invalid credential definition")
}

type UpdateCredentialDefinitionMessage struct {
	Definition core.CredentialDefinition
}

func (UpdateCredentialDefinitionMessage) Type() string { return TypeUpdateCredentialDefinition }

func (m UpdateCredentialDefinitionMessage) Validate() error {
	return commandWrapValidation(m.Definition.Validate(), "command: invalid credential definition")
}

type DeleteCredentialDefinitionMessage struct {
	ID string
}

func (DeleteCredentialDefinitionMessage) Type() string { return TypeDeleteCredentialDefinition }

func (m DeleteCredentialDefinitionMessage) Validate() error {
	return requireField("id", m.ID, "credential definition id is required")
}

// RequestCredentialMessage carries a holder's bearer token and request body.
// Token verification happens in the service, so only the shape is checked.
type RequestCredentialMessage struct {
	Token   string
	Request core.CredentialRequestMessage
}

func (RequestCredentialMessage) Type() string { return TypeRequestCredential }

func (m RequestCredentialMessage) Validate() error {
	if err := requireField("token", m.Token, "bearer token is required"); err != nil {
		return err
	}
	if len(m.Request.Credentials) == 0 {
		return commandValidationError("credentials", "at least one credential is required")
	}
	for _, spec := range m.Request.Credentials {
		if strings.TrimSpace(spec.CredentialType) == "" {
			return commandValidationError("credentials.credential_type", "credential type is required")
		}
	}
	return nil
}

type RevokeCredentialMessage struct {
	CredentialID  string
	ParticipantID string
}

func (RevokeCredentialMessage) Type() string { return TypeRevokeCredential }

func (m RevokeCredentialMessage) Validate() error {
	return validateCredentialRef(m.CredentialID, m.ParticipantID)
}

type SuspendCredentialMessage struct {
	CredentialID  string
	ParticipantID string
}

func (SuspendCredentialMessage) Type() string { return TypeSuspendCredential }

func (m SuspendCredentialMessage) Validate() error {
	return validateCredentialRef(m.CredentialID, m.ParticipantID)
}

type ResumeCredentialMessage struct {
	CredentialID  string
	ParticipantID string
}

func (ResumeCredentialMessage) Type() string { return TypeResumeCredential }

func (m ResumeCredentialMessage) Validate() error {
	return validateCredentialRef(m.CredentialID, m.ParticipantID)
}

type RunProcessManagerMessage struct{}

func (RunProcessManagerMessage) Type() string { return TypeRunProcessManager }

func (RunProcessManagerMessage) Validate() error { return nil }

type RunCredentialWatchdogMessage struct{}

func (RunCredentialWatchdogMessage) Type() string { return TypeRunCredentialWatchdog }

func (RunCredentialWatchdogMessage) Validate() error { return nil }

func requireField(field string, value string, message string) error {
	if strings.TrimSpace(value) == "" {
		return commandValidationError(field, message)
	}
	return nil
}

func validateLink(attestationID string, participantID string) error {
	if err := requireField("attestation_id", attestationID, "attestation id is required"); err != nil {
		return err
	}
	return requireField("participant_id", participantID, "participant id is required")
}

func validateCredentialRef(credentialID string, participantID string) error {
	if err := requireField("credential_id", credentialID, "credential id is required"); err != nil {
		return err
	}
	return requireField("participant_id", participantID, "participant id is required")
}
