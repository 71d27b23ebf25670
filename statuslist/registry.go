package statuslist

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/mitchellh/mapstructure"
)

const (
	TypeBitstringStatusListEntry = "BitstringStatusListEntry"
	TypeStatusList2021Entry      = "StatusList2021Entry"

	PurposeRevocation = "revocation"
	PurposeSuspension = "suspension"

	// ClaimEncodedList and ClaimStatusPurpose are status list credential subject claims.
	ClaimEncodedList   = "encodedList"
	ClaimStatusPurpose = "statusPurpose"
)

var (
	ErrUnsupportedType = errors.New("statuslist: unsupported status list type")
	ErrInvalidEntry    = errors.New("statuslist: invalid status entry")
)

// UnsupportedTypeError names a status entry type with no registered implementation.
type UnsupportedTypeError struct {
	Type string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("No StatusList implementation for type '%s' found.", e.Type)
}

func (e *UnsupportedTypeError) Unwrap() error {
	return ErrUnsupportedType
}

// Reference locates the status bit of a single credential.
type Reference struct {
	StatusListCredentialID string
	Index                  int
	Purpose                string
}

// Type parses the properties of one credential status entry type.
type Type interface {
	Name() string
	Parse(properties map[string]any) (Reference, error)
}

// Registry maps status entry type names to their implementations.
type Registry struct {
	mu    sync.RWMutex
	types map[string]Type
}

func NewRegistry(types ...Type) *Registry {
	registry := &Registry{types: map[string]Type{}}
	for _, t := range types {
		registry.Register(t)
	}
	return registry
}

// NewDefaultRegistry returns a registry with the bitstring and 2021 entry types.
func NewDefaultRegistry() *Registry {
	return NewRegistry(
		indexedEntryType{name: TypeBitstringStatusListEntry, credentialKey: "statusListCredential", indexKey: "statusListIndex"},
		indexedEntryType{name: TypeStatusList2021Entry, credentialKey: "statusListCredential", indexKey: "statusListIndex"},
	)
}

func (r *Registry) Register(t Type) {
	if r == nil || t == nil {
		return
	}
	name := strings.TrimSpace(t.Name())
	if name == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[name] = t
}

func (r *Registry) Resolve(name string) (Type, error) {
	if r == nil {
		return nil, &UnsupportedTypeError{Type: name}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[strings.TrimSpace(name)]
	if !ok {
		return nil, &UnsupportedTypeError{Type: name}
	}
	return t, nil
}

func (r *Registry) Types() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.types))
	for name := range r.types {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

type indexedEntryType struct {
	name          string
	credentialKey string
	indexKey      string
}

func (t indexedEntryType) Name() string {
	return t.name
}

func (t indexedEntryType) Parse(properties map[string]any) (Reference, error) {
	raw := map[string]any{
		"credential": properties[t.credentialKey],
		"index":      properties[t.indexKey],
		"purpose":    properties["statusPurpose"],
	}
	var decoded struct {
		Credential string `mapstructure:"credential"`
		Index      *int   `mapstructure:"index"`
		Purpose    string `mapstructure:"purpose"`
	}
	if err := mapstructure.WeakDecode(raw, &decoded); err != nil {
		return Reference{}, fmt.Errorf("%w: %s: %v", ErrInvalidEntry, t.name, err)
	}
	if strings.TrimSpace(decoded.Credential) == "" {
		return Reference{}, fmt.Errorf("%w: %s requires %s", ErrInvalidEntry, t.name, t.credentialKey)
	}
	if decoded.Index == nil || *decoded.Index < 0 {
		return Reference{}, fmt.Errorf("%w: %s requires a non-negative %s", ErrInvalidEntry, t.name, t.indexKey)
	}
	purpose := strings.TrimSpace(decoded.Purpose)
	if purpose == "" {
		purpose = PurposeRevocation
	}
	return Reference{
		StatusListCredentialID: strings.TrimSpace(decoded.Credential),
		Index:                  *decoded.Index,
		Purpose:                purpose,
	}, nil
}
