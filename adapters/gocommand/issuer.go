package gocommand

import (
	"fmt"

	issuercommand "github.com/goliatone/go-issuer/command"
	"github.com/goliatone/go-issuer/core"
	issuerquery "github.com/goliatone/go-issuer/query"

	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
)

// Subscriptions groups dispatcher subscriptions so they can be released
// together.
type Subscriptions []commanddispatcher.Subscription

func (s Subscriptions) Unsubscribe() {
	for _, subscription := range s {
		if subscription != nil {
			subscription.Unsubscribe()
		}
	}
}

// RegisterIssuerHandlers registers and subscribes every issuer command and
// query against service. On failure nothing stays subscribed.
func RegisterIssuerHandlers(
	adapter *RegistryAdapter,
	service core.IssuanceService,
	runnerOpts ...runner.Option,
) (Subscriptions, error) {
	if service == nil {
		return nil, fmt.Errorf("gocommand: issuance service is required")
	}
	steps := []func() (commanddispatcher.Subscription, error){
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe[issuercommand.CreateAttestationDefinitionMessage](adapter, issuercommand.NewCreateAttestationDefinitionCommand(service), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe[issuercommand.UpdateAttestationDefinitionMessage](adapter, issuercommand.NewUpdateAttestationDefinitionCommand(service), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe[issuercommand.DeleteAttestationDefinitionMessage](adapter, issuercommand.NewDeleteAttestationDefinitionCommand(service), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe[issuercommand.LinkAttestationMessage](adapter, issuercommand.NewLinkAttestationCommand(service), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe[issuercommand.UnlinkAttestationMessage](adapter, issuercommand.NewUnlinkAttestationCommand(service), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe[issuercommand.CreateParticipantMessage](adapter, issuercommand.NewCreateParticipantCommand(service), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe[issuercommand.DeleteParticipantMessage](adapter, issuercommand.NewDeleteParticipantCommand(service), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe[issuercommand.CreateCredentialDefinitionMessage](adapter, issuercommand.NewCreateCredentialDefinitionCommand(service), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe[issuercommand.UpdateCredentialDefinitionMessage](adapter, issuercommand.NewUpdateCredentialDefinitionCommand(service), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe[issuercommand.DeleteCredentialDefinitionMessage](adapter, issuercommand.NewDeleteCredentialDefinitionCommand(service), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe[issuercommand.RequestCredentialMessage](adapter, issuercommand.NewRequestCredentialCommand(service), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe[issuercommand.RevokeCredentialMessage](adapter, issuercommand.NewRevokeCredentialCommand(service), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe[issuercommand.SuspendCredentialMessage](adapter, issuercommand.NewSuspendCredentialCommand(service), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe[issuercommand.ResumeCredentialMessage](adapter, issuercommand.NewResumeCredentialCommand(service), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe[issuercommand.RunProcessManagerMessage](adapter, issuercommand.NewRunProcessManagerCommand(service), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe[issuercommand.RunCredentialWatchdogMessage](adapter, issuercommand.NewRunCredentialWatchdogCommand(service), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribeQuery[issuerquery.FindAttestationDefinitionMessage, core.AttestationDefinition](adapter, issuerquery.NewFindAttestationDefinitionQuery(service), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribeQuery[issuerquery.QueryAttestationDefinitionsMessage, []core.AttestationDefinition](adapter, issuerquery.NewQueryAttestationDefinitionsQuery(service), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribeQuery[issuerquery.GetAttestationsForParticipantMessage, []core.AttestationDefinition](adapter, issuerquery.NewGetAttestationsForParticipantQuery(service), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribeQuery[issuerquery.FindParticipantMessage, core.Participant](adapter, issuerquery.NewFindParticipantQuery(service), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribeQuery[issuerquery.QueryParticipantsMessage, []core.Participant](adapter, issuerquery.NewQueryParticipantsQuery(service), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribeQuery[issuerquery.FindCredentialDefinitionMessage, core.CredentialDefinition](adapter, issuerquery.NewFindCredentialDefinitionQuery(service), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribeQuery[issuerquery.QueryCredentialDefinitionsMessage, []core.CredentialDefinition](adapter, issuerquery.NewQueryCredentialDefinitionsQuery(service), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribeQuery[issuerquery.GetIssuanceProcessMessage, core.IssuanceProcess](adapter, issuerquery.NewGetIssuanceProcessQuery(service), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribeQuery[issuerquery.QueryIssuanceProcessesMessage, []core.IssuanceProcess](adapter, issuerquery.NewQueryIssuanceProcessesQuery(service), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribeQuery[issuerquery.GetCredentialMessage, core.VerifiableCredentialResource](adapter, issuerquery.NewGetCredentialQuery(service), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribeQuery[issuerquery.QueryCredentialsMessage, []core.VerifiableCredentialResource](adapter, issuerquery.NewQueryCredentialsQuery(service), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribeQuery[issuerquery.CheckCredentialStatusMessage, string](adapter, issuerquery.NewCheckCredentialStatusQuery(service), runnerOpts...)
		},
	}

	subscriptions := make(Subscriptions, 0, len(steps))
	for _, step := range steps {
		subscription, err := step()
		if err != nil {
			subscriptions.Unsubscribe()
			return nil, err
		}
		subscriptions = append(subscriptions, subscription)
	}
	return subscriptions, nil
}
