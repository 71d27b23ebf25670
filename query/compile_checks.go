package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-issuer/core"
)

var (
	_ gocmd.Querier[FindAttestationDefinitionMessage, core.AttestationDefinition]       = (*FindAttestationDefinitionQuery)(nil)
	_ gocmd.Querier[QueryAttestationDefinitionsMessage, []core.AttestationDefinition]   = (*QueryAttestationDefinitionsQuery)(nil)
	_ gocmd.Querier[GetAttestationsForParticipantMessage, []core.AttestationDefinition] = (*GetAttestationsForParticipantQuery)(nil)
	_ gocmd.Querier[FindParticipantMessage, core.Participant]                           = (*FindParticipantQuery)(nil)
	_ gocmd.Querier[QueryParticipantsMessage, []core.Participant]                       = (*QueryParticipantsQuery)(nil)
	_ gocmd.Querier[FindCredentialDefinitionMessage, core.CredentialDefinition]         = (*FindCredentialDefinitionQuery)(nil)
	_ gocmd.Querier[QueryCredentialDefinitionsMessage, []core.CredentialDefinition]     = (*QueryCredentialDefinitionsQuery)(nil)
	_ gocmd.Querier[GetIssuanceProcessMessage, core.IssuanceProcess]                    = (*GetIssuanceProcessQuery)(nil)
	_ gocmd.Querier[QueryIssuanceProcessesMessage, []core.IssuanceProcess]              = (*QueryIssuanceProcessesQuery)(nil)
	_ gocmd.Querier[GetCredentialMessage, core.VerifiableCredentialResource]            = (*GetCredentialQuery)(nil)
	_ gocmd.Querier[QueryCredentialsMessage, []core.VerifiableCredentialResource]       = (*QueryCredentialsQuery)(nil)
	_ gocmd.Querier[CheckCredentialStatusMessage, string]                               = (*CheckCredentialStatusQuery)(nil)

	_ AttestationDefinitionReader = core.IssuanceService(nil)
	_ ParticipantReader           = core.IssuanceService(nil)
	_ CredentialDefinitionReader  = core.IssuanceService(nil)
	_ IssuanceProcessReader       = core.IssuanceService(nil)
	_ CredentialReader            = core.IssuanceService(nil)
)
