package sqlstore

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/goliatone/go-issuer/core"
)

func newAttestationDefinitionRecord(def core.AttestationDefinition, now time.Time) *attestationDefinitionRecord {
	return &attestationDefinitionRecord{
		ID:                   strings.TrimSpace(def.ID),
		AttestationType:      strings.TrimSpace(def.AttestationType),
		ParticipantContextID: strings.TrimSpace(def.ParticipantContextID),
		Configuration:        copyAnyMap(def.Configuration),
		CreatedAt:            createdAt(def.CreatedAt, now),
		UpdatedAt:            now,
	}
}

func (r *attestationDefinitionRecord) toDomain() core.AttestationDefinition {
	if r == nil {
		return core.AttestationDefinition{}
	}
	return core.AttestationDefinition{
		ID:                   r.ID,
		AttestationType:      r.AttestationType,
		ParticipantContextID: r.ParticipantContextID,
		Configuration:        copyAnyMap(r.Configuration),
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
	}
}

func newParticipantRecord(participant core.Participant, now time.Time) *participantRecord {
	return &participantRecord{
		ID:                 strings.TrimSpace(participant.ParticipantID),
		DID:                strings.TrimSpace(participant.DID),
		Name:               strings.TrimSpace(participant.Name),
		LinkedAttestations: cloneStrings(participant.LinkedAttestations),
		CreatedAt:          createdAt(participant.CreatedAt, now),
		UpdatedAt:          now,
	}
}

func (r *participantRecord) toDomain() core.Participant {
	if r == nil {
		return core.Participant{}
	}
	return core.Participant{
		ParticipantID:      r.ID,
		DID:                r.DID,
		Name:               r.Name,
		LinkedAttestations: cloneStrings(r.LinkedAttestations),
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}

func newCredentialDefinitionRecord(def core.CredentialDefinition, now time.Time) *credentialDefinitionRecord {
	rules := make([]ruleRecord, 0, len(def.Rules))
	for _, rule := range def.Rules {
		rules = append(rules, ruleRecord{Type: rule.Type, Configuration: copyAnyMap(rule.Configuration)})
	}
	mappings := make([]mappingRecord, 0, len(def.Mappings))
	for _, mapping := range def.Mappings {
		mappings = append(mappings, mappingRecord(mapping))
	}
	return &credentialDefinitionRecord{
		ID:                   strings.TrimSpace(def.ID),
		CredentialType:       strings.TrimSpace(def.CredentialType),
		ParticipantContextID: strings.TrimSpace(def.ParticipantContextID),
		JSONSchema:           def.JSONSchema,
		JSONSchemaURL:        def.JSONSchemaURL,
		DataModel:            string(def.DataModel),
		Validity:             def.Validity,
		Attestations:         cloneStrings(def.Attestations),
		Rules:                rules,
		Mappings:             mappings,
		Formats:              cloneStrings(def.Formats),
		CreatedAt:            createdAt(def.CreatedAt, now),
		UpdatedAt:            now,
	}
}

func (r *credentialDefinitionRecord) toDomain() core.CredentialDefinition {
	if r == nil {
		return core.CredentialDefinition{}
	}
	def := core.CredentialDefinition{
		ID:                   r.ID,
		CredentialType:       r.CredentialType,
		ParticipantContextID: r.ParticipantContextID,
		JSONSchema:           r.JSONSchema,
		JSONSchemaURL:        r.JSONSchemaURL,
		DataModel:            core.DataModel(r.DataModel),
		Validity:             r.Validity,
		Attestations:         cloneStrings(r.Attestations),
		Formats:              cloneStrings(r.Formats),
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
	}
	for _, rule := range r.Rules {
		def.Rules = append(def.Rules, core.RuleDefinition{Type: rule.Type, Configuration: copyAnyMap(rule.Configuration)})
	}
	for _, mapping := range r.Mappings {
		def.Mappings = append(def.Mappings, core.MappingDefinition(mapping))
	}
	return def
}

func newIssuanceProcessRecord(process core.IssuanceProcess, now time.Time) *issuanceProcessRecord {
	record := &issuanceProcessRecord{
		ID:                    strings.TrimSpace(process.ID),
		ParticipantID:         strings.TrimSpace(process.ParticipantID),
		IssuerContextID:       strings.TrimSpace(process.IssuerContextID),
		HolderPID:             strings.TrimSpace(process.HolderPID),
		Claims:                copyAnyMap(process.Claims),
		CredentialDefinitions: cloneStrings(process.CredentialDefinitions),
		CredentialFormats:     copyStringMap(process.CredentialFormats),
		State:                 string(process.State),
		StateCount:            process.StateCount,
		StateTimestamp:        createdAt(process.StateTimestamp, now),
		RetryCount:            process.RetryCount,
		NextAttemptAt:         utcPtr(process.NextAttemptAt),
		ErrorDetail:           process.ErrorDetail,
		CreatedAt:             createdAt(process.CreatedAt, now),
		UpdatedAt:             now,
	}
	return record
}

func (r *issuanceProcessRecord) toDomain() core.IssuanceProcess {
	if r == nil {
		return core.IssuanceProcess{}
	}
	return core.IssuanceProcess{
		ID:                    r.ID,
		ParticipantID:         r.ParticipantID,
		IssuerContextID:       r.IssuerContextID,
		HolderPID:             r.HolderPID,
		Claims:                copyAnyMap(r.Claims),
		CredentialDefinitions: cloneStrings(r.CredentialDefinitions),
		CredentialFormats:     copyStringMap(r.CredentialFormats),
		State:                 core.IssuanceProcessState(r.State),
		StateCount:            r.StateCount,
		StateTimestamp:        r.StateTimestamp,
		RetryCount:            r.RetryCount,
		NextAttemptAt:         utcPtr(r.NextAttemptAt),
		ErrorDetail:           r.ErrorDetail,
		CreatedAt:             r.CreatedAt,
		UpdatedAt:             r.UpdatedAt,
	}
}

func newCredentialRecord(resource core.VerifiableCredentialResource, now time.Time) (*verifiableCredentialRecord, error) {
	document := credentialDocumentRecord{
		ID:             resource.Credential.ID,
		Types:          cloneStrings(resource.Credential.Types),
		Issuer:         resource.Credential.Issuer,
		IssuanceDate:   resource.Credential.IssuanceDate.UTC(),
		ExpirationDate: utcPtr(resource.Credential.ExpirationDate),
		Subject:        copyAnyMap(resource.Credential.Subject),
	}
	for _, entry := range resource.Credential.Status {
		document.Status = append(document.Status, statusEntryRecord{
			ID:         entry.ID,
			Type:       entry.Type,
			Properties: copyAnyMap(entry.Properties),
		})
	}
	encoded, err := json.Marshal(document)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: encode credential %q: %w", resource.ID, err)
	}
	return &verifiableCredentialRecord{
		ID:                   strings.TrimSpace(resource.ID),
		ParticipantContextID: strings.TrimSpace(resource.ParticipantContextID),
		IssuerID:             resource.IssuerID,
		HolderID:             resource.HolderID,
		State:                string(resource.State),
		Format:               resource.Format,
		RawCredential:        resource.RawCredential,
		Document:             string(encoded),
		ExpiresAt:            utcPtr(resource.Credential.ExpirationDate),
		Version:              resource.Version,
		CreatedAt:            createdAt(resource.CreatedAt, now),
		UpdatedAt:            now,
	}, nil
}

func (r *verifiableCredentialRecord) toDomain() (core.VerifiableCredentialResource, error) {
	if r == nil {
		return core.VerifiableCredentialResource{}, nil
	}
	var document credentialDocumentRecord
	if strings.TrimSpace(r.Document) != "" {
		if err := json.Unmarshal([]byte(r.Document), &document); err != nil {
			return core.VerifiableCredentialResource{}, fmt.Errorf("sqlstore: decode credential %q: %w", r.ID, err)
		}
	}
	credential := core.VerifiableCredential{
		ID:             document.ID,
		Types:          document.Types,
		Issuer:         document.Issuer,
		IssuanceDate:   document.IssuanceDate,
		ExpirationDate: document.ExpirationDate,
		Subject:        copyAnyMap(document.Subject),
	}
	for _, entry := range document.Status {
		credential.Status = append(credential.Status, core.CredentialStatusEntry{
			ID:         entry.ID,
			Type:       entry.Type,
			Properties: copyAnyMap(entry.Properties),
		})
	}
	return core.VerifiableCredentialResource{
		ID:                   r.ID,
		ParticipantContextID: r.ParticipantContextID,
		IssuerID:             r.IssuerID,
		HolderID:             r.HolderID,
		State:                core.CredentialState(r.State),
		Format:               r.Format,
		RawCredential:        r.RawCredential,
		Credential:           credential,
		Version:              r.Version,
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
	}, nil
}

func createdAt(value time.Time, now time.Time) time.Time {
	if value.IsZero() {
		return now
	}
	return value.UTC()
}

func utcPtr(value *time.Time) *time.Time {
	if value == nil || value.IsZero() {
		return nil
	}
	out := value.UTC()
	return &out
}

func cloneStrings(in []string) []string {
	if len(in) == 0 {
		return []string{}
	}
	return slices.Clone(in)
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func copyStringMap(in map[string]string) map[string]string {
	if len(in) == 0 {
		return map[string]string{}
	}
	out := make(map[string]string, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
