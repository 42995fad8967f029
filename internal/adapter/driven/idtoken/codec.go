// Package idtoken implements the CredentialCodec port with HS256-signed JWTs.
package idtoken

import (
	"errors"
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ericfisherdev/runpanel/internal/domain/port/driven"
)

// Validity is how long an issued credential stays valid. There is no renewal;
// once it lapses the user has to log in again.
const Validity = 7 * 24 * time.Hour

// Compile-time interface satisfaction check.
var _ driven.CredentialCodec = (*Codec)(nil)

// claims is the credential payload. The identity travels in "user".
type claims struct {
	User string `json:"user"`
	jwtlib.RegisteredClaims
}

// Codec signs and verifies session credentials with a symmetric key.
type Codec struct {
	key []byte
	now func() time.Time
}

// NewCodec creates a Codec for the given symmetric key.
func NewCodec(key []byte) *Codec {
	return &Codec{key: key, now: time.Now}
}

// NewCodecWithClock creates a Codec whose notion of "now" is supplied by the
// caller. Intended for tests.
func NewCodecWithClock(key []byte, now func() time.Time) *Codec {
	return &Codec{key: key, now: now}
}

// Issue returns a signed credential binding identity, valid for Validity.
func (c *Codec) Issue(identity string) (string, error) {
	if identity == "" {
		return "", errors.New("issue credential: empty identity")
	}

	issuedAt := c.now()
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims{
		User: identity,
		RegisteredClaims: jwtlib.RegisteredClaims{
			IssuedAt:  jwtlib.NewNumericDate(issuedAt),
			ExpiresAt: jwtlib.NewNumericDate(issuedAt.Add(Validity)),
			ID:        uuid.New().String(),
		},
	})

	signed, err := token.SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("sign credential: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and expiry of credential and returns the
// embedded identity. All failures wrap driven.ErrInvalidCredential.
func (c *Codec) Verify(credential string) (string, error) {
	var parsed claims
	_, err := jwtlib.ParseWithClaims(credential, &parsed, c.verificationKey,
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithTimeFunc(c.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", driven.ErrInvalidCredential, err)
	}

	if parsed.User == "" {
		return "", fmt.Errorf("%w: missing user claim", driven.ErrInvalidCredential)
	}

	return parsed.User, nil
}

func (c *Codec) verificationKey(token *jwtlib.Token) (any, error) {
	if _, ok := token.Method.(*jwtlib.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return c.key, nil
}
