package sqlstore

import (
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// modelHandlers builds repository handlers for records keyed by a caller
// supplied string id. SetID only fills an empty id, so definitions created
// with non-UUID ids keep them.
func modelHandlers[T comparable](newRecord func() T, getID func(T) string, setID func(T, string)) repository.ModelHandlers[T] {
	var zero T
	return repository.ModelHandlers[T]{
		NewRecord: newRecord,
		GetID: func(record T) uuid.UUID {
			if record == zero {
				return uuid.Nil
			}
			return parseUUID(getID(record))
		},
		SetID: func(record T, id uuid.UUID) {
			if record == zero || strings.TrimSpace(getID(record)) != "" {
				return
			}
			setID(record, id.String())
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record T) string {
			if record == zero {
				return ""
			}
			return strings.TrimSpace(getID(record))
		},
	}
}

func attestationDefinitionHandlers() repository.ModelHandlers[*attestationDefinitionRecord] {
	return modelHandlers(
		func() *attestationDefinitionRecord { return &attestationDefinitionRecord{} },
		func(r *attestationDefinitionRecord) string { return r.ID },
		func(r *attestationDefinitionRecord, id string) { r.ID = id },
	)
}

func participantHandlers() repository.ModelHandlers[*participantRecord] {
	return modelHandlers(
		func() *participantRecord { return &participantRecord{} },
		func(r *participantRecord) string { return r.ID },
		func(r *participantRecord, id string) { r.ID = id },
	)
}

func credentialDefinitionHandlers() repository.ModelHandlers[*credentialDefinitionRecord] {
	return modelHandlers(
		func() *credentialDefinitionRecord { return &credentialDefinitionRecord{} },
		func(r *credentialDefinitionRecord) string { return r.ID },
		func(r *credentialDefinitionRecord, id string) { r.ID = id },
	)
}

func issuanceProcessHandlers() repository.ModelHandlers[*issuanceProcessRecord] {
	return modelHandlers(
		func() *issuanceProcessRecord { return &issuanceProcessRecord{} },
		func(r *issuanceProcessRecord) string { return r.ID },
		func(r *issuanceProcessRecord, id string) { r.ID = id },
	)
}

func credentialHandlers() repository.ModelHandlers[*verifiableCredentialRecord] {
	return modelHandlers(
		func() *verifiableCredentialRecord { return &verifiableCredentialRecord{} },
		func(r *verifiableCredentialRecord) string { return r.ID },
		func(r *verifiableCredentialRecord, id string) { r.ID = id },
	)
}

func parseUUID(value string) uuid.UUID {
	parsed, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil
	}
	return parsed
}
