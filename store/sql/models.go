package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type attestationDefinitionRecord struct {
	bun.BaseModel `bun:"table:issuer_attestation_definitions,alias:iad"`

	ID                   string         `bun:"id,pk"`
	AttestationType      string         `bun:"attestation_type,notnull"`
	ParticipantContextID string         `bun:"participant_context_id,notnull"`
	Configuration        map[string]any `bun:"configuration,type:jsonb,notnull"`
	CreatedAt            time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt            time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type participantRecord struct {
	bun.BaseModel `bun:"table:issuer_participants,alias:ip"`

	ID                 string    `bun:"id,pk"`
	DID                string    `bun:"did,notnull"`
	Name               string    `bun:"name,notnull"`
	LinkedAttestations []string  `bun:"linked_attestations,type:jsonb,notnull"`
	CreatedAt          time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt          time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type ruleRecord struct {
	Type          string         `json:"type"`
	Configuration map[string]any `json:"configuration,omitempty"`
}

type mappingRecord struct {
	Input    string `json:"input"`
	Output   string `json:"output"`
	Required bool   `json:"required"`
}

type credentialDefinitionRecord struct {
	bun.BaseModel `bun:"table:issuer_credential_definitions,alias:icd"`

	ID                   string          `bun:"id,pk"`
	CredentialType       string          `bun:"credential_type,notnull"`
	ParticipantContextID string          `bun:"participant_context_id,notnull"`
	JSONSchema           string          `bun:"json_schema,notnull"`
	JSONSchemaURL        string          `bun:"json_schema_url,notnull"`
	DataModel            string          `bun:"data_model,notnull"`
	Validity             int64           `bun:"validity,notnull"`
	Attestations         []string        `bun:"attestations,type:jsonb,notnull"`
	Rules                []ruleRecord    `bun:"rules,type:jsonb,notnull"`
	Mappings             []mappingRecord `bun:"mappings,type:jsonb,notnull"`
	Formats              []string        `bun:"formats,type:jsonb,notnull"`
	CreatedAt            time.Time       `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt            time.Time       `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// issuanceProcessRecord carries the lease columns that never reach the
// domain struct.
type issuanceProcessRecord struct {
	bun.BaseModel `bun:"table:issuer_issuance_processes,alias:iip"`

	ID                    string            `bun:"id,pk"`
	ParticipantID         string            `bun:"participant_id,notnull"`
	IssuerContextID       string            `bun:"issuer_context_id,notnull"`
	HolderPID             string            `bun:"holder_pid,notnull"`
	Claims                map[string]any    `bun:"claims,type:jsonb,notnull"`
	CredentialDefinitions []string          `bun:"credential_definitions,type:jsonb,notnull"`
	CredentialFormats     map[string]string `bun:"credential_formats,type:jsonb,notnull"`
	State                 string            `bun:"state,notnull"`
	StateCount            int               `bun:"state_count,notnull"`
	StateTimestamp        time.Time         `bun:"state_timestamp,notnull"`
	RetryCount            int               `bun:"retry_count,notnull"`
	NextAttemptAt         *time.Time        `bun:"next_attempt_at,nullzero"`
	ErrorDetail           string            `bun:"error_detail,notnull"`
	LeaseOwner            *string           `bun:"lease_owner"`
	LeaseExpiresAt        *time.Time        `bun:"lease_expires_at,nullzero"`
	CreatedAt             time.Time         `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt             time.Time         `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type statusEntryRecord struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties,omitempty"`
}

type credentialDocumentRecord struct {
	ID             string              `json:"id"`
	Types          []string            `json:"types"`
	Issuer         string              `json:"issuer"`
	IssuanceDate   time.Time           `json:"issuanceDate"`
	ExpirationDate *time.Time          `json:"expirationDate,omitempty"`
	Subject        map[string]any      `json:"subject"`
	Status         []statusEntryRecord `json:"status,omitempty"`
}

// verifiableCredentialRecord stores the parsed credential as JSON text so
// both dialects round-trip it the same way.
type verifiableCredentialRecord struct {
	bun.BaseModel `bun:"table:issuer_credentials,alias:ic"`

	ID                   string     `bun:"id,pk"`
	ParticipantContextID string     `bun:"participant_context_id,notnull"`
	IssuerID             string     `bun:"issuer_id,notnull"`
	HolderID             string     `bun:"holder_id,notnull"`
	State                string     `bun:"state,notnull"`
	Format               string     `bun:"format,notnull"`
	RawCredential        string     `bun:"raw_credential,notnull"`
	Document             string     `bun:"document,type:jsonb,notnull"`
	ExpiresAt            *time.Time `bun:"expires_at,nullzero"`
	Version              int        `bun:"version,notnull"`
	CreatedAt            time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt            time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
