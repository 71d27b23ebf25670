package identity

import (
	"context"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/goliatone/go-issuer/core"
)

const defaultLeeway = time.Minute

var defaultAlgorithms = []jose.SignatureAlgorithm{
	jose.EdDSA,
	jose.ES256,
	jose.ES384,
	jose.RS256,
	jose.PS256,
}

var registeredClaims = []string{"iss", "sub", "aud", "exp", "nbf", "iat", "jti"}

type VerifierConfig struct {
	Keys       core.KeyResolver
	Leeway     time.Duration
	Algorithms []jose.SignatureAlgorithm
	Clock      func() time.Time
}

// SelfIssuedTokenVerifier checks holder-signed JWTs: the issuer must equal
// the subject and the signing key must belong to that DID.
type SelfIssuedTokenVerifier struct {
	keys       core.KeyResolver
	leeway     time.Duration
	algorithms []jose.SignatureAlgorithm
	clock      func() time.Time
}

func NewSelfIssuedTokenVerifier(cfg VerifierConfig) *SelfIssuedTokenVerifier {
	leeway := cfg.Leeway
	if leeway <= 0 {
		leeway = defaultLeeway
	}
	algorithms := cfg.Algorithms
	if len(algorithms) == 0 {
		algorithms = defaultAlgorithms
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &SelfIssuedTokenVerifier{
		keys:       cfg.Keys,
		leeway:     leeway,
		algorithms: append([]jose.SignatureAlgorithm(nil), algorithms...),
		clock:      clock,
	}
}

func (v *SelfIssuedTokenVerifier) Verify(ctx context.Context, token string, audience string) (core.TokenClaims, error) {
	if v == nil || v.keys == nil {
		return core.TokenClaims{}, tokenRejected("key resolver is not configured", nil)
	}
	audience = strings.TrimSpace(audience)
	if audience == "" {
		return core.TokenClaims{}, tokenRejected("audience is required", nil)
	}

	parsed, err := jwt.ParseSigned(strings.TrimSpace(token), v.algorithms)
	if err != nil {
		return core.TokenClaims{}, tokenRejected("malformed token", err)
	}
	if len(parsed.Headers) != 1 {
		return core.TokenClaims{}, tokenRejected("expected a single signature", nil)
	}

	var unverified jwt.Claims
	if err := parsed.UnsafeClaimsWithoutVerification(&unverified); err != nil {
		return core.TokenClaims{}, tokenRejected("malformed claims", err)
	}
	issuer := strings.TrimSpace(unverified.Issuer)
	if issuer == "" {
		return core.TokenClaims{}, tokenRejected("iss is required", nil)
	}
	keyID := qualifyKeyID(issuer, parsed.Headers[0].KeyID)
	if !keyBelongsTo(issuer, keyID) {
		return core.TokenClaims{}, tokenRejected("key "+keyID+" is not controlled by "+issuer, nil)
	}

	key, err := v.keys.ResolveKey(ctx, keyID)
	if err != nil {
		return core.TokenClaims{}, tokenRejected("resolve key", err)
	}

	var claims jwt.Claims
	extra := map[string]any{}
	if err := parsed.Claims(key, &claims, &extra); err != nil {
		return core.TokenClaims{}, tokenRejected("invalid signature", err)
	}
	if claims.Issuer != claims.Subject {
		return core.TokenClaims{}, tokenRejected("token is not self-issued", nil)
	}
	if claims.Expiry == nil {
		return core.TokenClaims{}, tokenRejected("exp is required", nil)
	}
	expected := jwt.Expected{
		AnyAudience: jwt.Audience{audience},
		Time:        v.clock(),
	}
	if err := claims.ValidateWithLeeway(expected, v.leeway); err != nil {
		return core.TokenClaims{}, tokenRejected("claims rejected", err)
	}

	for _, name := range registeredClaims {
		delete(extra, name)
	}
	result := core.TokenClaims{
		ID:        claims.ID,
		Issuer:    claims.Issuer,
		Subject:   claims.Subject,
		Audience:  []string(claims.Audience),
		KeyID:     keyID,
		ExpiresAt: claims.Expiry.Time(),
		Extra:     extra,
	}
	if claims.IssuedAt != nil {
		result.IssuedAt = claims.IssuedAt.Time()
	}
	return result, nil
}

// qualifyKeyID turns relative key ids ("#key-1", "key-1") into DID URLs
// under the issuer. An empty kid names the issuer itself.
func qualifyKeyID(issuer string, kid string) string {
	kid = strings.TrimSpace(kid)
	switch {
	case kid == "":
		return issuer
	case strings.HasPrefix(kid, "#"):
		return issuer + kid
	case strings.HasPrefix(kid, "did:"):
		return kid
	default:
		return issuer + "#" + kid
	}
}

func keyBelongsTo(did string, keyID string) bool {
	return keyID == did || strings.HasPrefix(keyID, did+"#")
}
