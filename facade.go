package issuer

import (
	"fmt"

	issuercommand "github.com/goliatone/go-issuer/command"
	"github.com/goliatone/go-issuer/core"
	issuerquery "github.com/goliatone/go-issuer/query"
)

// CommandQueryService is the surface the facade wraps. *core.Service
// satisfies it.
type CommandQueryService interface {
	core.IssuanceService
}

type Commands struct {
	CreateAttestationDefinition *issuercommand.CreateAttestationDefinitionCommand
	UpdateAttestationDefinition *issuercommand.UpdateAttestationDefinitionCommand
	DeleteAttestationDefinition *issuercommand.DeleteAttestationDefinitionCommand
	LinkAttestation             *issuercommand.LinkAttestationCommand
	UnlinkAttestation           *issuercommand.UnlinkAttestationCommand
	CreateParticipant           *issuercommand.CreateParticipantCommand
	DeleteParticipant           *issuercommand.DeleteParticipantCommand
	CreateCredentialDefinition  *issuercommand.CreateCredentialDefinitionCommand
	UpdateCredentialDefinition  *issuercommand.UpdateCredentialDefinitionCommand
	DeleteCredentialDefinition  *issuercommand.DeleteCredentialDefinitionCommand
	RequestCredential           *issuercommand.RequestCredentialCommand
	RevokeCredential            *issuercommand.RevokeCredentialCommand
	SuspendCredential           *issuercommand.SuspendCredentialCommand
	ResumeCredential            *issuercommand.ResumeCredentialCommand
	RunProcessManager           *issuercommand.RunProcessManagerCommand
	RunCredentialWatchdog       *issuercommand.RunCredentialWatchdogCommand
}

type Queries struct {
	FindAttestationDefinition     *issuerquery.FindAttestationDefinitionQuery
	QueryAttestationDefinitions   *issuerquery.QueryAttestationDefinitionsQuery
	GetAttestationsForParticipant *issuerquery.GetAttestationsForParticipantQuery
	FindParticipant               *issuerquery.FindParticipantQuery
	QueryParticipants             *issuerquery.QueryParticipantsQuery
	FindCredentialDefinition      *issuerquery.FindCredentialDefinitionQuery
	QueryCredentialDefinitions    *issuerquery.QueryCredentialDefinitionsQuery
	GetIssuanceProcess            *issuerquery.GetIssuanceProcessQuery
	QueryIssuanceProcesses        *issuerquery.QueryIssuanceProcessesQuery
	GetCredential                 *issuerquery.GetCredentialQuery
	QueryCredentials              *issuerquery.QueryCredentialsQuery
	CheckCredentialStatus         *issuerquery.CheckCredentialStatusQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

func NewFacade(service CommandQueryService) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("issuer: command/query service is required")
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		CreateAttestationDefinition: issuercommand.NewCreateAttestationDefinitionCommand(service),
		UpdateAttestationDefinition: issuercommand.NewUpdateAttestationDefinitionCommand(service),
		DeleteAttestationDefinition: issuercommand.NewDeleteAttestationDefinitionCommand(service),
		LinkAttestation:             issuercommand.NewLinkAttestationCommand(service),
		UnlinkAttestation:           issuercommand.NewUnlinkAttestationCommand(service),
		CreateParticipant:           issuercommand.NewCreateParticipantCommand(service),
		DeleteParticipant:           issuercommand.NewDeleteParticipantCommand(service),
		CreateCredentialDefinition:  issuercommand.NewCreateCredentialDefinitionCommand(service),
		UpdateCredentialDefinition:  issuercommand.NewUpdateCredentialDefinitionCommand(service),
		DeleteCredentialDefinition:  issuercommand.NewDeleteCredentialDefinitionCommand(service),
		RequestCredential:           issuercommand.NewRequestCredentialCommand(service),
		RevokeCredential:            issuercommand.NewRevokeCredentialCommand(service),
		SuspendCredential:           issuercommand.NewSuspendCredentialCommand(service),
		ResumeCredential:            issuercommand.NewResumeCredentialCommand(service),
		RunProcessManager:           issuercommand.NewRunProcessManagerCommand(service),
		RunCredentialWatchdog:       issuercommand.NewRunCredentialWatchdogCommand(service),
	}
	facade.queries = Queries{
		FindAttestationDefinition:     issuerquery.NewFindAttestationDefinitionQuery(service),
		QueryAttestationDefinitions:   issuerquery.NewQueryAttestationDefinitionsQuery(service),
		GetAttestationsForParticipant: issuerquery.NewGetAttestationsForParticipantQuery(service),
		FindParticipant:               issuerquery.NewFindParticipantQuery(service),
		QueryParticipants:             issuerquery.NewQueryParticipantsQuery(service),
		FindCredentialDefinition:      issuerquery.NewFindCredentialDefinitionQuery(service),
		QueryCredentialDefinitions:    issuerquery.NewQueryCredentialDefinitionsQuery(service),
		GetIssuanceProcess:            issuerquery.NewGetIssuanceProcessQuery(service),
		QueryIssuanceProcesses:        issuerquery.NewQueryIssuanceProcessesQuery(service),
		GetCredential:                 issuerquery.NewGetCredentialQuery(service),
		QueryCredentials:              issuerquery.NewQueryCredentialsQuery(service),
		CheckCredentialStatus:         issuerquery.NewCheckCredentialStatusQuery(service),
	}
	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}
