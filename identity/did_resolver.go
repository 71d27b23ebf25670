package identity

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/multiformats/go-multibase"
)

const (
	defaultRequestTimeout    = 10 * time.Second
	maxDocumentResponseBytes = 1 << 20 // 1 MiB

	wellKnownDocumentPath = "/.well-known/did.json"
	documentPath          = "/did.json"

	multicodecEd25519 = 0xed
	multicodecP256    = 0x1200
)

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type VerificationMethod struct {
	ID                 string           `json:"id"`
	Type               string           `json:"type"`
	Controller         string           `json:"controller"`
	PublicKeyJwk       *jose.JSONWebKey `json:"publicKeyJwk,omitempty"`
	PublicKeyMultibase string           `json:"publicKeyMultibase,omitempty"`

	key crypto.PublicKey
}

type Service struct {
	ID              string          `json:"id"`
	Type            json.RawMessage `json:"type"`
	ServiceEndpoint json.RawMessage `json:"serviceEndpoint"`
}

type Document struct {
	ID                 string               `json:"id"`
	VerificationMethod []VerificationMethod `json:"verificationMethod"`
	Service            []Service            `json:"service"`
}

type ResolverConfig struct {
	HTTPClient     HTTPDoer
	RequestTimeout time.Duration
	// UseHTTP fetches did:web documents over plain http. Tests only.
	UseHTTP bool
}

// DocumentResolver resolves did:web and did:key identifiers. It serves both
// the key lookups of the token verifier and the CredentialService lookups
// of the delivery step.
type DocumentResolver struct {
	httpClient     HTTPDoer
	requestTimeout time.Duration
	useHTTP        bool
}

func NewDocumentResolver(cfg ResolverConfig) *DocumentResolver {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	requestTimeout := cfg.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}
	return &DocumentResolver{
		httpClient:     httpClient,
		requestTimeout: requestTimeout,
		useHTTP:        cfg.UseHTTP,
	}
}

func (r *DocumentResolver) Resolve(ctx context.Context, did string) (Document, error) {
	did = strings.TrimSpace(did)
	switch {
	case strings.HasPrefix(did, "did:web:"):
		return r.resolveWeb(ctx, did)
	case strings.HasPrefix(did, "did:key:"):
		return resolveKeyDocument(did)
	default:
		return Document{}, fmt.Errorf("%w: %q", ErrUnsupportedDID, did)
	}
}

func (r *DocumentResolver) ResolveKey(ctx context.Context, keyID string) (crypto.PublicKey, error) {
	did, fragment, _ := strings.Cut(strings.TrimSpace(keyID), "#")
	doc, err := r.Resolve(ctx, did)
	if err != nil {
		return nil, err
	}
	for _, method := range doc.VerificationMethod {
		if fragment == "" || method.ID == keyID || method.ID == "#"+fragment {
			return method.PublicKey()
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, keyID)
}

func (r *DocumentResolver) ResolveServiceEndpoint(ctx context.Context, did string, serviceType string) (string, error) {
	doc, err := r.Resolve(ctx, did)
	if err != nil {
		return "", err
	}
	for _, service := range doc.Service {
		if !service.HasType(serviceType) {
			continue
		}
		if endpoint := service.Endpoint(); endpoint != "" {
			return endpoint, nil
		}
	}
	return "", fmt.Errorf("%w: %s has no %s", ErrServiceNotFound, did, serviceType)
}

// webDocumentURL maps did:web:example.com:users:alice to
// https://example.com/users/alice/did.json.
func webDocumentURL(did string, useHTTP bool) (string, error) {
	components := strings.Split(strings.TrimPrefix(did, "did:web:"), ":")
	host, err := url.PathUnescape(components[0])
	if err != nil || strings.TrimSpace(host) == "" {
		return "", fmt.Errorf("identity: invalid did:web %q", did)
	}
	scheme := "https://"
	if useHTTP {
		scheme = "http://"
	}
	if len(components) == 1 {
		return scheme + host + wellKnownDocumentPath, nil
	}
	return scheme + host + "/" + strings.Join(components[1:], "/") + documentPath, nil
}

func (r *DocumentResolver) resolveWeb(ctx context.Context, did string) (Document, error) {
	endpoint, err := webDocumentURL(did, r.useHTTP)
	if err != nil {
		return Document{}, err
	}
	requestCtx, cancel := context.WithTimeout(ctx, r.requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(requestCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Document{}, err
	}
	req.Header.Set("Accept", "application/did+json, application/json")

	res, err := r.httpClient.Do(req)
	if err != nil {
		return Document{}, err
	}
	defer res.Body.Close()
	body, readErr := io.ReadAll(io.LimitReader(res.Body, maxDocumentResponseBytes+1))
	if readErr != nil {
		return Document{}, fmt.Errorf("identity: read did document: %w", readErr)
	}
	if int64(len(body)) > maxDocumentResponseBytes {
		return Document{}, fmt.Errorf("identity: did document exceeds %d bytes", maxDocumentResponseBytes)
	}
	if res.StatusCode == http.StatusNotFound {
		return Document{}, fmt.Errorf("%w: %s", ErrDocumentNotFound, did)
	}
	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		return Document{}, fmt.Errorf("identity: did document endpoint returned status %d", res.StatusCode)
	}
	var doc Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return Document{}, fmt.Errorf("identity: decode did document: %w", err)
	}
	if doc.ID != did {
		return Document{}, fmt.Errorf("identity: did document id %q does not match %q", doc.ID, did)
	}
	return doc, nil
}

func resolveKeyDocument(did string) (Document, error) {
	fingerprint := strings.TrimPrefix(did, "did:key:")
	key, err := decodeMultikey(fingerprint)
	if err != nil {
		return Document{}, fmt.Errorf("identity: invalid did:key %q: %w", did, err)
	}
	return Document{
		ID: did,
		VerificationMethod: []VerificationMethod{{
			ID:                 did + "#" + fingerprint,
			Type:               "Multikey",
			Controller:         did,
			PublicKeyMultibase: fingerprint,
			key:                key,
		}},
	}, nil
}

func (m VerificationMethod) PublicKey() (crypto.PublicKey, error) {
	switch {
	case m.key != nil:
		return m.key, nil
	case m.PublicKeyJwk != nil:
		if !m.PublicKeyJwk.IsPublic() {
			return nil, fmt.Errorf("identity: verification method %s exposes a private key", m.ID)
		}
		return m.PublicKeyJwk.Key, nil
	case m.PublicKeyMultibase != "":
		return decodeMultikey(m.PublicKeyMultibase)
	default:
		return nil, fmt.Errorf("%w: %s carries no key material", ErrKeyNotFound, m.ID)
	}
}

func decodeMultikey(value string) (crypto.PublicKey, error) {
	_, decoded, err := multibase.Decode(value)
	if err != nil {
		return nil, err
	}
	codec, n := binary.Uvarint(decoded)
	if n <= 0 {
		return nil, fmt.Errorf("missing multicodec prefix")
	}
	raw := decoded[n:]
	switch codec {
	case multicodecEd25519:
		if len(raw) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("ed25519 key must be %d bytes", ed25519.PublicKeySize)
		}
		return ed25519.PublicKey(raw), nil
	case multicodecP256:
		x, y := elliptic.UnmarshalCompressed(elliptic.P256(), raw)
		if x == nil {
			return nil, fmt.Errorf("invalid compressed P-256 key")
		}
		return &ecdsa.PublicKey{Curve: elliptic.P256(), X: new(big.Int).Set(x), Y: new(big.Int).Set(y)}, nil
	default:
		return nil, fmt.Errorf("unsupported multicodec 0x%x", codec)
	}
}

// EncodeEd25519Multikey is the inverse of did:key decoding for ed25519.
func EncodeEd25519Multikey(key ed25519.PublicKey) (string, error) {
	prefix := binary.AppendUvarint(nil, multicodecEd25519)
	return multibase.Encode(multibase.Base58BTC, append(prefix, key...))
}

// HasType accepts the single string and string array forms of "type".
func (s Service) HasType(serviceType string) bool {
	var single string
	if err := json.Unmarshal(s.Type, &single); err == nil {
		return single == serviceType
	}
	var many []string
	if err := json.Unmarshal(s.Type, &many); err == nil {
		for _, candidate := range many {
			if candidate == serviceType {
				return true
			}
		}
	}
	return false
}

// Endpoint returns the first URI of a string, array or {"uri": ...} endpoint.
func (s Service) Endpoint() string {
	var single string
	if err := json.Unmarshal(s.ServiceEndpoint, &single); err == nil {
		return strings.TrimSpace(single)
	}
	var many []string
	if err := json.Unmarshal(s.ServiceEndpoint, &many); err == nil && len(many) > 0 {
		return strings.TrimSpace(many[0])
	}
	var object struct {
		URI string `json:"uri"`
	}
	if err := json.Unmarshal(s.ServiceEndpoint, &object); err == nil {
		return strings.TrimSpace(object.URI)
	}
	return ""
}
