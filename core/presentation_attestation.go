package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// AttestationTypePresentation sources claims from credentials the holder
// presented alongside its self-issued token.
const AttestationTypePresentation = "presentation"

type presentationConfig struct {
	CredentialType string `mapstructure:"credentialType"`
	OutputClaim    string `mapstructure:"outputClaim"`
	Required       *bool  `mapstructure:"required"`
}

func decodePresentationConfig(configuration map[string]any) (presentationConfig, error) {
	var cfg presentationConfig
	if err := mapstructure.Decode(configuration, &cfg); err != nil {
		return presentationConfig{}, fmt.Errorf("core: decode presentation configuration: %w", err)
	}
	cfg.CredentialType = strings.TrimSpace(cfg.CredentialType)
	cfg.OutputClaim = strings.TrimSpace(cfg.OutputClaim)
	var missing []string
	if cfg.CredentialType == "" {
		missing = append(missing, "credentialType")
	}
	if cfg.OutputClaim == "" {
		missing = append(missing, "outputClaim")
	}
	if len(missing) > 0 {
		return presentationConfig{}, fmt.Errorf("core: presentation configuration requires %s", strings.Join(missing, " and "))
	}
	return cfg, nil
}

func (c presentationConfig) required() bool {
	return c.Required == nil || *c.Required
}

// PresentationAttestationSourceFactory builds sources for the presentation
// attestation type. It is registered by default.
type PresentationAttestationSourceFactory struct{}

func (PresentationAttestationSourceFactory) ValidateDefinition(def AttestationDefinition) error {
	_, err := decodePresentationConfig(def.Configuration)
	return err
}

func (PresentationAttestationSourceFactory) CreateSource(def AttestationDefinition) (AttestationSource, error) {
	cfg, err := decodePresentationConfig(def.Configuration)
	if err != nil {
		return nil, err
	}
	return presentationSource{cfg: cfg}, nil
}

var errCredentialNotPresented = errors.New("core: required credential was not presented")

type presentationSource struct {
	cfg presentationConfig
}

// Execute copies the credential subject of every presented credential of the
// configured type into the output claim. One match yields the subject
// itself, several yield a list.
func (s presentationSource) Execute(_ context.Context, actx AttestationContext) (map[string]any, error) {
	var subjects []any
	for _, credential := range presentedCredentials(actx.TokenClaims) {
		if !hasCredentialType(credential["type"], s.cfg.CredentialType) {
			continue
		}
		if subject, ok := credential["credentialSubject"]; ok {
			subjects = append(subjects, subject)
		}
	}
	switch len(subjects) {
	case 0:
		if s.cfg.required() {
			return nil, fmt.Errorf("%w: %s", errCredentialNotPresented, s.cfg.CredentialType)
		}
		return map[string]any{}, nil
	case 1:
		return map[string]any{s.cfg.OutputClaim: subjects[0]}, nil
	default:
		return map[string]any{s.cfg.OutputClaim: subjects}, nil
	}
}

// presentedCredentials reads vp.verifiableCredential from the token claims.
// Entries that are not JSON objects, such as enveloped JWT credentials, are
// skipped.
func presentedCredentials(claims map[string]any) []map[string]any {
	vp, ok := claims["vp"].(map[string]any)
	if !ok {
		return nil
	}
	var entries []any
	switch value := vp["verifiableCredential"].(type) {
	case []any:
		entries = value
	case map[string]any:
		entries = []any{value}
	}
	out := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		if credential, ok := entry.(map[string]any); ok {
			out = append(out, credential)
		}
	}
	return out
}

func hasCredentialType(value any, credentialType string) bool {
	switch types := value.(type) {
	case string:
		return types == credentialType
	case []string:
		for _, t := range types {
			if t == credentialType {
				return true
			}
		}
	case []any:
		for _, t := range types {
			if s, ok := t.(string); ok && s == credentialType {
				return true
			}
		}
	}
	return false
}

var (
	_ AttestationSourceFactory       = PresentationAttestationSourceFactory{}
	_ AttestationDefinitionValidator = PresentationAttestationSourceFactory{}
)
