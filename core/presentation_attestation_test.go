package core

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func presentationDefinition(configuration map[string]any) AttestationDefinition {
	return AttestationDefinition{
		ID:              "att-presentation",
		AttestationType: AttestationTypePresentation,
		Configuration:   configuration,
	}
}

func TestPresentationAttestationSourceFactory_ValidateDefinition(t *testing.T) {
	factory := PresentationAttestationSourceFactory{}

	tests := []struct {
		name          string
		configuration map[string]any
		wantErr       string
	}{
		{
			name:          "valid",
			configuration: map[string]any{"credentialType": "MembershipCredential", "outputClaim": "membership"},
		},
		{
			name:          "missing credential type",
			configuration: map[string]any{"outputClaim": "membership"},
			wantErr:       "credentialType",
		},
		{
			name:          "missing output claim",
			configuration: map[string]any{"credentialType": "MembershipCredential"},
			wantErr:       "outputClaim",
		},
		{
			name:          "blank values",
			configuration: map[string]any{"credentialType": " ", "outputClaim": ""},
			wantErr:       "credentialType and outputClaim",
		},
		{
			name:          "nil configuration",
			configuration: nil,
			wantErr:       "credentialType and outputClaim",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := factory.ValidateDefinition(presentationDefinition(tt.configuration))
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("expected valid definition, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error mentioning %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error mentioning %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestPresentationAttestationSourceFactory_CreateSourceRejectsInvalidConfiguration(t *testing.T) {
	_, err := PresentationAttestationSourceFactory{}.CreateSource(presentationDefinition(map[string]any{
		"credentialType": "MembershipCredential",
	}))
	if err == nil {
		t.Fatalf("expected create source to fail without outputClaim")
	}
}

func presentedToken(credentials ...any) map[string]any {
	return map[string]any{
		"sub": "did:web:holder.example",
		"vp": map[string]any{
			"type":                 []any{"VerifiablePresentation"},
			"verifiableCredential": credentials,
		},
	}
}

func TestPresentationSource_Execute(t *testing.T) {
	membership := map[string]any{
		"type":              []any{"VerifiableCredential", "MembershipCredential"},
		"credentialSubject": map[string]any{"id": "did:web:holder.example", "level": "gold"},
	}
	secondMembership := map[string]any{
		"type":              []string{"VerifiableCredential", "MembershipCredential"},
		"credentialSubject": map[string]any{"id": "did:web:holder.example", "level": "silver"},
	}
	other := map[string]any{
		"type":              "DriverLicense",
		"credentialSubject": map[string]any{"id": "did:web:holder.example"},
	}

	tests := []struct {
		name          string
		configuration map[string]any
		claims        map[string]any
		want          map[string]any
		wantErr       error
	}{
		{
			name:          "single match",
			configuration: map[string]any{"credentialType": "MembershipCredential", "outputClaim": "membership"},
			claims:        presentedToken(other, membership, "eyJhbGciOiJFUzI1NiJ9.enveloped"),
			want:          map[string]any{"membership": membership["credentialSubject"]},
		},
		{
			name:          "single credential object",
			configuration: map[string]any{"credentialType": "MembershipCredential", "outputClaim": "membership"},
			claims: map[string]any{"vp": map[string]any{
				"verifiableCredential": membership,
			}},
			want: map[string]any{"membership": membership["credentialSubject"]},
		},
		{
			name:          "multiple matches",
			configuration: map[string]any{"credentialType": "MembershipCredential", "outputClaim": "membership"},
			claims:        presentedToken(membership, other, secondMembership),
			want: map[string]any{"membership": []any{
				membership["credentialSubject"],
				secondMembership["credentialSubject"],
			}},
		},
		{
			name:          "required credential missing",
			configuration: map[string]any{"credentialType": "MembershipCredential", "outputClaim": "membership"},
			claims:        presentedToken(other),
			wantErr:       errCredentialNotPresented,
		},
		{
			name:          "no presentation",
			configuration: map[string]any{"credentialType": "MembershipCredential", "outputClaim": "membership"},
			claims:        map[string]any{"sub": "did:web:holder.example"},
			wantErr:       errCredentialNotPresented,
		},
		{
			name: "optional credential missing",
			configuration: map[string]any{
				"credentialType": "MembershipCredential",
				"outputClaim":    "membership",
				"required":       false,
			},
			claims: presentedToken(other),
			want:   map[string]any{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source, err := PresentationAttestationSourceFactory{}.CreateSource(presentationDefinition(tt.configuration))
			if err != nil {
				t.Fatalf("create source: %v", err)
			}
			got, err := source.Execute(context.Background(), AttestationContext{
				ParticipantID: "participant-1",
				TokenClaims:   tt.claims,
			})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("execute: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("expected %#v, got %#v", tt.want, got)
			}
		})
	}
}

func TestService_RegistersPresentationSourceByDefault(t *testing.T) {
	fx := newServiceFixture(t, Config{IssuerDID: testIssuerDID})
	ctx := context.Background()

	factory, ok := fx.svc.Dependencies().AttestationRegistry.Factory(AttestationTypePresentation)
	if !ok {
		t.Fatalf("expected %q factory to be registered", AttestationTypePresentation)
	}
	if _, ok := factory.(AttestationDefinitionValidator); !ok {
		t.Fatalf("expected %q factory to validate definitions", AttestationTypePresentation)
	}

	_, err := fx.svc.CreateAttestationDefinition(ctx, presentationDefinition(map[string]any{
		"credentialType": "MembershipCredential",
	}))
	requireTextCode(t, err, IssuerErrorBadInput)

	created, err := fx.svc.CreateAttestationDefinition(ctx, presentationDefinition(map[string]any{
		"credentialType": "MembershipCredential",
		"outputClaim":    "membership",
	}))
	if err != nil {
		t.Fatalf("create presentation definition: %v", err)
	}
	if created.AttestationType != AttestationTypePresentation {
		t.Fatalf("expected presentation type, got %q", created.AttestationType)
	}
}
