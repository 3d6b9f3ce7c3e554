package auth

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/tripwell/tripgate/internal/config"
)

// assertionIssuer is the issuer claim stamped on minted assertions.
const assertionIssuer = "tripgate"

// AssertionSigner mints the short-lived signed identity assertion injected on
// forward. Backends verify this instead of trusting client-supplied identity
// headers.
type AssertionSigner struct {
	header string
	key    []byte
	ttl    time.Duration
}

// NewAssertionSigner creates an assertion signer from configuration.
func NewAssertionSigner(cfg config.AssertionConfig) (*AssertionSigner, error) {
	if cfg.SigningKey == "" {
		return nil, fmt.Errorf("assertion signing key is required")
	}

	ttl := cfg.TTL.Duration()
	if ttl <= 0 {
		ttl = config.DefaultAssertionTTL
	}

	header := cfg.Header
	if header == "" {
		header = config.DefaultAssertionHeader
	}

	return &AssertionSigner{
		header: header,
		key:    []byte(cfg.SigningKey),
		ttl:    ttl,
	}, nil
}

// Header returns the header name the assertion is carried in.
func (s *AssertionSigner) Header() string {
	return s.header
}

// Mint builds and signs an assertion for the given identity.
func (s *AssertionSigner) Mint(id *Identity) (string, error) {
	now := time.Now()

	builder := jwt.NewBuilder().
		Issuer(assertionIssuer).
		Subject(id.Subject).
		JwtID(uuid.New().String()).
		IssuedAt(now).
		Expiration(now.Add(s.ttl))

	if len(id.Roles) > 0 {
		builder = builder.Claim("roles", id.Roles)
	}

	tok, err := builder.Build()
	if err != nil {
		return "", fmt.Errorf("build assertion: %w", err)
	}

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, s.key))
	if err != nil {
		return "", fmt.Errorf("sign assertion: %w", err)
	}

	return string(signed), nil
}
