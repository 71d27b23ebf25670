package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-issuer/core"
)

// MutatingService is the write side of core.IssuanceService.
type MutatingService interface {
	CreateAttestationDefinition(ctx context.Context, def core.AttestationDefinition) (core.AttestationDefinition, error)
	UpdateAttestationDefinition(ctx context.Context, def core.AttestationDefinition) (core.AttestationDefinition, error)
	DeleteAttestationDefinition(ctx context.Context, id string) error
	LinkAttestation(ctx context.Context, attestationID string, participantID string) (bool, error)
	UnlinkAttestation(ctx context.Context, attestationID string, participantID string) (bool, error)
	CreateParticipant(ctx context.Context, participant core.Participant) (core.Participant, error)
	DeleteParticipant(ctx context.Context, participantID string) error
	CreateCredentialDefinition(ctx context.Context, def core.CredentialDefinition) (core.CredentialDefinition, error)
	UpdateCredentialDefinition(ctx context.Context, def core.CredentialDefinition) (core.CredentialDefinition, error)
	DeleteCredentialDefinition(ctx context.Context, id string) error
	HandleCredentialRequest(ctx context.Context, token string, msg core.CredentialRequestMessage) (core.CredentialRequestResult, error)
	RevokeCredential(ctx context.Context, credentialID string, participantID string) error
	SuspendCredential(ctx context.Context, credentialID string, participantID string) error
	ResumeCredential(ctx context.Context, credentialID string, participantID string) error
}

// BackgroundRunner drives the periodic loops once.
type BackgroundRunner interface {
	RunProcessManager(ctx context.Context) (core.ProcessRunResult, error)
	RunCredentialWatchdog(ctx context.Context) (core.WatchdogRunResult, error)
}

type CreateAttestationDefinitionCommand struct {
	service MutatingService
}

func NewCreateAttestationDefinitionCommand(service MutatingService) *CreateAttestationDefinitionCommand {
	return &CreateAttestationDefinitionCommand{service: service}
}

func (c *CreateAttestationDefinitionCommand) Execute(ctx context.Context, msg CreateAttestationDefinitionMessage) error {
	if c == nil || c.service == nil {
		return missingService("attestation definition service")
	}
	out, err := c.service.CreateAttestationDefinition(ctx, msg.Definition)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type UpdateAttestationDefinitionCommand struct {
	service MutatingService
}

func NewUpdateAttestationDefinitionCommand(service MutatingService) *UpdateAttestationDefinitionCommand {
	return &UpdateAttestationDefinitionCommand{service: service}
}

func (c *UpdateAttestationDefinitionCommand) Execute(ctx context.Context, msg UpdateAttestationDefinitionMessage) error {
	if c == nil || c.service == nil {
		return missingService("attestation definition service")
	}
	out, err := c.service.UpdateAttestationDefinition(ctx, msg.Definition)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DeleteAttestationDefinitionCommand struct {
	service MutatingService
}

func NewDeleteAttestationDefinitionCommand(service MutatingService) *DeleteAttestationDefinitionCommand {
	return &DeleteAttestationDefinitionCommand{service: service}
}

func (c *DeleteAttestationDefinitionCommand) Execute(ctx context.Context, msg DeleteAttestationDefinitionMessage) error {
	if c == nil || c.service == nil {
		return missingService("attestation definition service")
	}
	return c.service.DeleteAttestationDefinition(ctx, msg.ID)
}

type LinkAttestationCommand struct {
	service MutatingService
}

func NewLinkAttestationCommand(service MutatingService) *LinkAttestationCommand {
	return &LinkAttestationCommand{service: service}
}

func (c *LinkAttestationCommand) Execute(ctx context.Context, msg LinkAttestationMessage) error {
	if c == nil || c.service == nil {
		return missingService("participant service")
	}
	out, err := c.service.LinkAttestation(ctx, msg.AttestationID, msg.ParticipantID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type UnlinkAttestationCommand struct {
	service MutatingService
}

func NewUnlinkAttestationCommand(service MutatingService) *UnlinkAttestationCommand {
	return &UnlinkAttestationCommand{service: service}
}

func (c *UnlinkAttestationCommand) Execute(ctx context.Context, msg UnlinkAttestationMessage) error {
	if c == nil || c.service == nil {
		return missingService("participant service")
	}
	out, err := c.service.UnlinkAttestation(ctx, msg.AttestationID, msg.ParticipantID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CreateParticipantCommand struct {
	service MutatingService
}

func NewCreateParticipantCommand(service MutatingService) *CreateParticipantCommand {
	return &CreateParticipantCommand{service: service}
}

func (c *CreateParticipantCommand) Execute(ctx context.Context, msg CreateParticipantMessage) error {
	if c == nil || c.service == nil {
		return missingService("participant service")
	}
	out, err := c.service.CreateParticipant(ctx, msg.Participant)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DeleteParticipantCommand struct {
	service MutatingService
}

func NewDeleteParticipantCommand(service MutatingService) *DeleteParticipantCommand {
	return &DeleteParticipantCommand{service: service}
}

func (c *DeleteParticipantCommand) Execute(ctx context.Context, msg DeleteParticipantMessage) error {
	if c == nil || c.service == nil {
		return missingService("participant service")
	}
	return c.service.DeleteParticipant(ctx, msg.ParticipantID)
}

type CreateCredentialDefinitionCommand struct {
	service MutatingService
}

func NewCreateCredentialDefinitionCommand(service MutatingService) *CreateCredentialDefinitionCommand {
	return &CreateCredentialDefinitionCommand{service: service}
}

func (c *CreateCredentialDefinitionCommand) Execute(ctx context.Context, msg CreateCredentialDefinitionMessage) error {
	if c == nil || c.service == nil {
		return missingService("credential definition service")
	}
	out, err := c.service.CreateCredentialDefinition(ctx, msg.Definition)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type UpdateCredentialDefinitionCommand struct {
	service MutatingService
}

func NewUpdateCredentialDefinitionCommand(service MutatingService) *UpdateCredentialDefinitionCommand {
	return &UpdateCredentialDefinitionCommand{service: service}
}

func (c *UpdateCredentialDefinitionCommand) Execute(ctx context.Context, msg UpdateCredentialDefinitionMessage) error {
	if c == nil || c.service == nil {
		return missingService("credential definition service")
	}
	out, err := c.service.UpdateCredentialDefinition(ctx, msg.Definition)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DeleteCredentialDefinitionCommand struct {
	service MutatingService
}

func NewDeleteCredentialDefinitionCommand(service MutatingService) *DeleteCredentialDefinitionCommand {
	return &DeleteCredentialDefinitionCommand{service: service}
}

func (c *DeleteCredentialDefinitionCommand) Execute(ctx context.Context, msg DeleteCredentialDefinitionMessage) error {
	if c == nil || c.service == nil {
		return missingService("credential definition service")
	}
	return c.service.DeleteCredentialDefinition(ctx, msg.ID)
}

type RequestCredentialCommand struct {
	service MutatingService
}

func NewRequestCredentialCommand(service MutatingService) *RequestCredentialCommand {
	return &RequestCredentialCommand{service: service}
}

func (c *RequestCredentialCommand) Execute(ctx context.Context, msg RequestCredentialMessage) error {
	if c == nil || c.service == nil {
		return missingService("issuance service")
	}
	out, err := c.service.HandleCredentialRequest(ctx, msg.Token, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RevokeCredentialCommand struct {
	service MutatingService
}

func NewRevokeCredentialCommand(service MutatingService) *RevokeCredentialCommand {
	return &RevokeCredentialCommand{service: service}
}

func (c *RevokeCredentialCommand) Execute(ctx context.Context, msg RevokeCredentialMessage) error {
	if c == nil || c.service == nil {
		return missingService("revocation service")
	}
	return c.service.RevokeCredential(ctx, msg.CredentialID, msg.ParticipantID)
}

type SuspendCredentialCommand struct {
	service MutatingService
}

func NewSuspendCredentialCommand(service MutatingService) *SuspendCredentialCommand {
	return &SuspendCredentialCommand{service: service}
}

func (c *SuspendCredentialCommand) Execute(ctx context.Context, msg SuspendCredentialMessage) error {
	if c == nil || c.service == nil {
		return missingService("revocation service")
	}
	return c.service.SuspendCredential(ctx, msg.CredentialID, msg.ParticipantID)
}

type ResumeCredentialCommand struct {
	service MutatingService
}

func NewResumeCredentialCommand(service MutatingService) *ResumeCredentialCommand {
	return &ResumeCredentialCommand{service: service}
}

func (c *ResumeCredentialCommand) Execute(ctx context.Context, msg ResumeCredentialMessage) error {
	if c == nil || c.service == nil {
		return missingService("revocation service")
	}
	return c.service.ResumeCredential(ctx, msg.CredentialID, msg.ParticipantID)
}

type RunProcessManagerCommand struct {
	service BackgroundRunner
}

func NewRunProcessManagerCommand(service BackgroundRunner) *RunProcessManagerCommand {
	return &RunProcessManagerCommand{service: service}
}

func (c *RunProcessManagerCommand) Execute(ctx context.Context, _ RunProcessManagerMessage) error {
	if c == nil || c.service == nil {
		return missingService("process manager service")
	}
	out, err := c.service.RunProcessManager(ctx)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RunCredentialWatchdogCommand struct {
	service BackgroundRunner
}

func NewRunCredentialWatchdogCommand(service BackgroundRunner) *RunCredentialWatchdogCommand {
	return &RunCredentialWatchdogCommand{service: service}
}

func (c *RunCredentialWatchdogCommand) Execute(ctx context.Context, _ RunCredentialWatchdogMessage) error {
	if c == nil || c.service == nil {
		return missingService("credential watchdog service")
	}
	out, err := c.service.RunCredentialWatchdog(ctx)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
