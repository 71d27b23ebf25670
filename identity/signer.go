package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/google/uuid"
)

const defaultTokenTTL = 5 * time.Minute

type SignerConfig struct {
	IssuerDID string
	// KeyID is relative to IssuerDID ("#key-1") or a full DID URL.
	KeyID     string
	Key       any
	Algorithm jose.SignatureAlgorithm
	TTL       time.Duration
	Clock     func() time.Time
}

// TokenSigner mints self-issued tokens for the issuer, used as bearer
// credentials when pushing to a holder.
type TokenSigner struct {
	issuer string
	signer jose.Signer
	ttl    time.Duration
	clock  func() time.Time
}

func NewTokenSigner(cfg SignerConfig) (*TokenSigner, error) {
	issuer := strings.TrimSpace(cfg.IssuerDID)
	if issuer == "" {
		return nil, errors.New("identity: issuer did is required")
	}
	if cfg.Key == nil {
		return nil, errors.New("identity: signing key is required")
	}
	algorithm := cfg.Algorithm
	if algorithm == "" {
		algorithm = jose.EdDSA
	}
	opts := (&jose.SignerOptions{}).WithType("JWT")
	if kid := strings.TrimSpace(cfg.KeyID); kid != "" {
		opts = opts.WithHeader("kid", qualifyKeyID(issuer, kid))
	}
	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: algorithm, Key: cfg.Key}, opts)
	if err != nil {
		return nil, err
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &TokenSigner{issuer: issuer, signer: signer, ttl: ttl, clock: clock}, nil
}

func (s *TokenSigner) Token(_ context.Context, audience string) (string, error) {
	now := s.clock()
	claims := jwt.Claims{
		ID:       uuid.NewString(),
		Issuer:   s.issuer,
		Subject:  s.issuer,
		Audience: jwt.Audience{audience},
		IssuedAt: jwt.NewNumericDate(now),
		Expiry:   jwt.NewNumericDate(now.Add(s.ttl)),
	}
	return jwt.Signed(s.signer).Claims(claims).Serialize()
}
