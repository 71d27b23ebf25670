package command

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-issuer/core"
)

var (
	_ gocmd.Commander[CreateAttestationDefinitionMessage] = (*CreateAttestationDefinitionCommand)(nil)
	_ gocmd.Commander[UpdateAttestationDefinitionMessage] = (*UpdateAttestationDefinitionCommand)(nil)
	_ gocmd.Commander[DeleteAttestationDefinitionMessage] = (*DeleteAttestationDefinitionCommand)(nil)
	_ gocmd.Commander[LinkAttestationMessage]             = (*LinkAttestationCommand)(nil)
	_ gocmd.Commander[UnlinkAttestationMessage]           = (*UnlinkAttestationCommand)(nil)
	_ gocmd.Commander[CreateParticipantMessage]           = (*CreateParticipantCommand)(nil)
	_ gocmd.Commander[DeleteParticipantMessage]           = (*DeleteParticipantCommand)(nil)
	_ gocmd.Commander[CreateCredentialDefinitionMessage]  = (*CreateCredentialDefinitionCommand)(nil)
	_ gocmd.Commander[UpdateCredentialDefinitionMessage]  = (*UpdateCredentialDefinitionCommand)(nil)
	_ gocmd.Commander[DeleteCredentialDefinitionMessage]  = (*DeleteCredentialDefinitionCommand)(nil)
	_ gocmd.Commander[RequestCredentialMessage]           = (*RequestCredentialCommand)(nil)
	_ gocmd.Commander[RevokeCredentialMessage]            = (*RevokeCredentialCommand)(nil)
	_ gocmd.Commander[SuspendCredentialMessage]           = (*SuspendCredentialCommand)(nil)
	_ gocmd.Commander[ResumeCredentialMessage]            = (*ResumeCredentialCommand)(nil)
	_ gocmd.Commander[RunProcessManagerMessage]           = (*RunProcessManagerCommand)(nil)
	_ gocmd.Commander[RunCredentialWatchdogMessage]       = (*RunCredentialWatchdogCommand)(nil)

	_ MutatingService  = core.IssuanceService(nil)
	_ BackgroundRunner = core.IssuanceService(nil)
)
