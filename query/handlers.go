package query

import (
	"context"

	"github.com/goliatone/go-issuer/core"
)

type AttestationDefinitionReader interface {
	FindAttestationDefinition(ctx context.Context, id string) (core.AttestationDefinition, error)
	QueryAttestationDefinitions(ctx context.Context, spec core.QuerySpec) ([]core.AttestationDefinition, error)
	GetAttestationsForParticipant(ctx context.Context, participantID string) ([]core.AttestationDefinition, error)
}

type ParticipantReader interface {
	FindParticipant(ctx context.Context, participantID string) (core.Participant, error)
	QueryParticipants(ctx context.Context, spec core.QuerySpec) ([]core.Participant, error)
}

type CredentialDefinitionReader interface {
	FindCredentialDefinition(ctx context.Context, id string) (core.CredentialDefinition, error)
	QueryCredentialDefinitions(ctx context.Context, spec core.QuerySpec) ([]core.CredentialDefinition, error)
}

type IssuanceProcessReader interface {
	GetIssuanceProcess(ctx context.Context, processID string) (core.IssuanceProcess, error)
	QueryIssuanceProcesses(ctx context.Context, spec core.QuerySpec) ([]core.IssuanceProcess, error)
}

// CredentialReader scopes every read to the owning participant context.
type CredentialReader interface {
	GetCredential(ctx context.Context, credentialID string, participantID string) (core.VerifiableCredentialResource, error)
	QueryCredentials(ctx context.Context, participantID string, spec core.QuerySpec) ([]core.VerifiableCredentialResource, error)
	CheckCredentialStatus(ctx context.Context, credentialID string, participantID string) (string, error)
}

type FindAttestationDefinitionQuery struct {
	reader AttestationDefinitionReader
}

func NewFindAttestationDefinitionQuery(reader AttestationDefinitionReader) *FindAttestationDefinitionQuery {
	return &FindAttestationDefinitionQuery{reader: reader}
}

func (q *FindAttestationDefinitionQuery) Query(
	ctx context.Context,
	msg FindAttestationDefinitionMessage,
) (core.AttestationDefinition, error) {
	if q == nil || q.reader == nil {
		return core.AttestationDefinition{}, missingReader("attestation definition reader")
	}
	return q.reader.FindAttestationDefinition(ctx, msg.ID)
}

type QueryAttestationDefinitionsQuery struct {
	reader AttestationDefinitionReader
}

func NewQueryAttestationDefinitionsQuery(reader AttestationDefinitionReader) *QueryAttestationDefinitionsQuery {
	return &QueryAttestationDefinitionsQuery{reader: reader}
}

func (q *QueryAttestationDefinitionsQuery) Query(
	ctx context.Context,
	msg QueryAttestationDefinitionsMessage,
) ([]core.AttestationDefinition, error) {
	if q == nil || q.reader == nil {
		return nil, missingReader("attestation definition reader")
	}
	return q.reader.QueryAttestationDefinitions(ctx, msg.Spec)
}

type GetAttestationsForParticipantQuery struct {
	reader AttestationDefinitionReader
}

func NewGetAttestationsForParticipantQuery(reader AttestationDefinitionReader) *GetAttestationsForParticipantQuery {
	return &GetAttestationsForParticipantQuery{reader: reader}
}

func (q *GetAttestationsForParticipantQuery) Query(
	ctx context.Context,
	msg GetAttestationsForParticipantMessage,
) ([]core.AttestationDefinition, error) {
	if q == nil || q.reader == nil {
		return nil, missingReader("attestation definition reader")
	}
	return q.reader.GetAttestationsForParticipant(ctx, msg.ParticipantID)
}

type FindParticipantQuery struct {
	reader ParticipantReader
}

func NewFindParticipantQuery(reader ParticipantReader) *FindParticipantQuery {
	return &FindParticipantQuery{reader: reader}
}

func (q *FindParticipantQuery) Query(
	ctx context.Context,
	msg FindParticipantMessage,
) (core.Participant, error) {
	if q == nil || q.reader == nil {
		return core.Participant{}, missingReader("participant reader")
	}
	return q.reader.FindParticipant(ctx, msg.ParticipantID)
}

type QueryParticipantsQuery struct {
	reader ParticipantReader
}

func NewQueryParticipantsQuery(reader ParticipantReader) *QueryParticipantsQuery {
	return &QueryParticipantsQuery{reader: reader}
}

func (q *QueryParticipantsQuery) Query(
	ctx context.Context,
	msg QueryParticipantsMessage,
) ([]core.Participant, error) {
	if q == nil || q.reader == nil {
		return nil, missingReader("participant reader")
	}
	return q.reader.QueryParticipants(ctx, msg.Spec)
}

type FindCredentialDefinitionQuery struct {
	reader CredentialDefinitionReader
}

func NewFindCredentialDefinitionQuery(reader CredentialDefinitionReader) *FindCredentialDefinitionQuery {
	return &FindCredentialDefinitionQuery{reader: reader}
}

func (q *FindCredentialDefinitionQuery) Query(
	ctx context.Context,
	msg FindCredentialDefinitionMessage,
) (core.CredentialDefinition, error) {
	if q == nil || q.reader == nil {
		return core.CredentialDefinition{}, missingReader("credential definition reader")
	}
	return q.reader.FindCredentialDefinition(ctx, msg.ID)
}

type QueryCredentialDefinitionsQuery struct {
	reader CredentialDefinitionReader
}

func NewQueryCredentialDefinitionsQuery(reader CredentialDefinitionReader) *QueryCredentialDefinitionsQuery {
	return &QueryCredentialDefinitionsQuery{reader: reader}
}

func (q *QueryCredentialDefinitionsQuery) Query(
	ctx context.Context,
	msg QueryCredentialDefinitionsMessage,
) ([]core.CredentialDefinition, error) {
	if q == nil || q.reader == nil {
		return nil, missingReader("credential definition reader")
	}
	return q.reader.QueryCredentialDefinitions(ctx, msg.Spec)
}

type GetIssuanceProcessQuery struct {
	reader IssuanceProcessReader
}

func NewGetIssuanceProcessQuery(reader IssuanceProcessReader) *GetIssuanceProcessQuery {
	return &GetIssuanceProcessQuery{reader: reader}
}

func (q *GetIssuanceProcessQuery) Query(
	ctx context.Context,
	msg GetIssuanceProcessMessage,
) (core.IssuanceProcess, error) {
	if q == nil || q.reader == nil {
		return core.IssuanceProcess{}, missingReader("issuance process reader")
	}
	return q.reader.GetIssuanceProcess(ctx, msg.ProcessID)
}

type QueryIssuanceProcessesQuery struct {
	reader IssuanceProcessReader
}

func NewQueryIssuanceProcessesQuery(reader IssuanceProcessReader) *QueryIssuanceProcessesQuery {
	return &QueryIssuanceProcessesQuery{reader: reader}
}

func (q *QueryIssuanceProcessesQuery) Query(
	ctx context.Context,
	msg QueryIssuanceProcessesMessage,
) ([]core.IssuanceProcess, error) {
	if q == nil || q.reader == nil {
		return nil, missingReader("issuance process reader")
	}
	return q.reader.QueryIssuanceProcesses(ctx, msg.Spec)
}

type GetCredentialQuery struct {
	reader CredentialReader
}

func NewGetCredentialQuery(reader CredentialReader) *GetCredentialQuery {
	return &GetCredentialQuery{reader: reader}
}

func (q *GetCredentialQuery) Query(
	ctx context.Context,
	msg GetCredentialMessage,
) (core.VerifiableCredentialResource, error) {
	if q == nil || q.reader == nil {
		return core.VerifiableCredentialResource{}, missingReader("credential reader")
	}
	return q.reader.GetCredential(ctx, msg.CredentialID, msg.ParticipantID)
}

type QueryCredentialsQuery struct {
	reader CredentialReader
}

func NewQueryCredentialsQuery(reader CredentialReader) *QueryCredentialsQuery {
	return &QueryCredentialsQuery{reader: reader}
}

func (q *QueryCredentialsQuery) Query(
	ctx context.Context,
	msg QueryCredentialsMessage,
) ([]core.VerifiableCredentialResource, error) {
	if q == nil || q.reader == nil {
		return nil, missingReader("credential reader")
	}
	return q.reader.QueryCredentials(ctx, msg.ParticipantID, msg.Spec)
}

type CheckCredentialStatusQuery struct {
	reader CredentialReader
}

func NewCheckCredentialStatusQuery(reader CredentialReader) *CheckCredentialStatusQuery {
	return &CheckCredentialStatusQuery{reader: reader}
}

func (q *CheckCredentialStatusQuery) Query(
	ctx context.Context,
	msg CheckCredentialStatusMessage,
) (string, error) {
	if q == nil || q.reader == nil {
		return "", missingReader("credential reader")
	}
	return q.reader.CheckCredentialStatus(ctx, msg.CredentialID, msg.ParticipantID)
}
