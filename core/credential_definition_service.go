package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/xeipuuv/gojsonschema"
)

// CredentialDefinitionService guards writes of credential definitions: a
// definition is stored only when every attestation id it references exists.
type CredentialDefinitionService struct {
	attestations AttestationDefinitionStore
	definitions  CredentialDefinitionStore
	rules        RuleEngine
	tx           TransactionContext
	clock        func() time.Time
}

func NewCredentialDefinitionService(
	attestations AttestationDefinitionStore,
	definitions CredentialDefinitionStore,
	rules RuleEngine,
	tx TransactionContext,
) *CredentialDefinitionService {
	if tx == nil {
		tx = NoopTransactionContext{}
	}
	return &CredentialDefinitionService{
		attestations: attestations,
		definitions:  definitions,
		rules:        rules,
		tx:           tx,
		clock:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *CredentialDefinitionService) CreateCredentialDefinition(ctx context.Context, def CredentialDefinition) (CredentialDefinition, error) {
	if err := s.validateStructure(def); err != nil {
		return CredentialDefinition{}, err
	}
	var created CredentialDefinition
	err := s.tx.Execute(ctx, func(ctx context.Context) error {
		if err := s.validateAttestationReferences(ctx, def); err != nil {
			return err
		}
		now := s.clock()
		def.CreatedAt = now
		def.UpdatedAt = now
		stored, err := s.definitions.Create(ctx, def)
		if err != nil {
			return mapStoreError(err, "create credential definition")
		}
		created = stored
		return nil
	})
	if err != nil {
		return CredentialDefinition{}, err
	}
	return created, nil
}

func (s *CredentialDefinitionService) UpdateCredentialDefinition(ctx context.Context, def CredentialDefinition) (CredentialDefinition, error) {
	if err := s.validateStructure(def); err != nil {
		return CredentialDefinition{}, err
	}
	var updated CredentialDefinition
	err := s.tx.Execute(ctx, func(ctx context.Context) error {
		if err := s.validateAttestationReferences(ctx, def); err != nil {
			return err
		}
		def.UpdatedAt = s.clock()
		stored, err := s.definitions.Update(ctx, def)
		if err != nil {
			return mapStoreError(err, "update credential definition")
		}
		updated = stored
		return nil
	})
	if err != nil {
		return CredentialDefinition{}, err
	}
	return updated, nil
}

func (s *CredentialDefinitionService) DeleteCredentialDefinition(ctx context.Context, id string) error {
	if err := s.definitions.DeleteByID(ctx, strings.TrimSpace(id)); err != nil {
		return mapStoreError(err, "delete credential definition")
	}
	return nil
}

func (s *CredentialDefinitionService) FindCredentialDefinition(ctx context.Context, id string) (CredentialDefinition, error) {
	def, err := s.definitions.FindByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return CredentialDefinition{}, mapStoreError(err, "find credential definition")
	}
	return def, nil
}

func (s *CredentialDefinitionService) QueryCredentialDefinitions(ctx context.Context, spec QuerySpec) ([]CredentialDefinition, error) {
	defs, err := s.definitions.Query(ctx, spec)
	if err != nil {
		return nil, mapStoreError(err, "query credential definitions")
	}
	return defs, nil
}

// FindByCredentialType returns the first definition registered for the type.
func (s *CredentialDefinitionService) FindByCredentialType(ctx context.Context, credentialType string) (CredentialDefinition, bool, error) {
	defs, err := s.definitions.Query(ctx, NewQuerySpec(Equal("credentialType", strings.TrimSpace(credentialType))))
	if err != nil {
		return CredentialDefinition{}, false, mapStoreError(err, "query credential definitions")
	}
	if len(defs) == 0 {
		return CredentialDefinition{}, false, nil
	}
	return defs[0], true, nil
}

func (s *CredentialDefinitionService) validateStructure(def CredentialDefinition) error {
	if err := def.Validate(); err != nil {
		return validationError(err.Error())
	}
	if def.JSONSchema != "" {
		if _, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(def.JSONSchema)); err != nil {
			return validationError(
				fmt.Sprintf("core: credential definition %q has an invalid json schema: %v", def.ID, err),
				goerrors.FieldError{Field: "jsonSchema", Message: err.Error()},
			)
		}
	}
	if s.rules == nil {
		return nil
	}
	for index, rule := range def.Rules {
		if err := s.rules.Validate(rule); err != nil {
			return validationError(
				fmt.Sprintf("core: credential definition %q rule %d is invalid: %v", def.ID, index, err),
				goerrors.FieldError{Field: fmt.Sprintf("rules[%d]", index), Message: err.Error()},
			)
		}
	}
	return nil
}

func (s *CredentialDefinitionService) validateAttestationReferences(ctx context.Context, def CredentialDefinition) error {
	ids := dedupeStrings(def.Attestations)
	if len(ids) == 0 {
		return nil
	}
	found, err := s.attestations.Query(ctx, NewQuerySpec(In("id", ids)))
	if err != nil {
		return mapStoreError(err, "query attestation definitions")
	}
	if len(found) == len(ids) {
		return nil
	}

	present := make(map[string]struct{}, len(found))
	for _, attestation := range found {
		present[attestation.ID] = struct{}{}
	}
	missing := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := present[id]; !ok {
			missing = append(missing, id)
		}
	}
	sort.Strings(missing)
	return validationError(
		fmt.Sprintf("core: credential definition %q references unknown attestations [%s]", def.ID, strings.Join(missing, ", ")),
		goerrors.FieldError{Field: "attestations", Message: "unknown attestation definitions: " + strings.Join(missing, ", ")},
	)
}
