package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	defaultIssuer    = "landing-builder"
	defaultAccessTTL = 15 * time.Minute
)

// Claims is the identity carried by an access token.
type Claims struct {
	PrincipalID string
	TenantID    string
	Email       string
	Role        Role
	SessionID   string
}

type accessClaims struct {
	TenantID  string `json:"tid"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// errInvalidAccess is the single outcome of every verification failure.
var errInvalidAccess = fmt.Errorf("%w: invalid or expired token", ErrUnauthenticated)

// Codec signs access tokens and hashes secrets.
type Codec struct {
	secret    []byte
	issuer    string
	accessTTL time.Duration
	argon     argonParams
	now       func() time.Time
}

// CodecOption customises a Codec.
type CodecOption func(*Codec) error

// WithIssuer overrides the token issuer.
func WithIssuer(issuer string) CodecOption {
	return func(c *Codec) error {
		issuer = strings.TrimSpace(issuer)
		if issuer == "" {
			return errors.New("issuer must not be empty")
		}
		c.issuer = issuer
		return nil
	}
}

// WithAccessTTL overrides the access token lifetime.
func WithAccessTTL(ttl time.Duration) CodecOption {
	return func(c *Codec) error {
		if ttl <= 0 {
			return errors.New("access ttl must be positive")
		}
		c.accessTTL = ttl
		return nil
	}
}

// WithCodecClock injects the time source used for issuing and verifying.
func WithCodecClock(now func() time.Time) CodecOption {
	return func(c *Codec) error {
		if now == nil {
			return errors.New("clock must not be nil")
		}
		c.now = now
		return nil
	}
}

// WithArgon2Params tunes the refresh secret hash cost. memoryKiB is in kibibytes.
func WithArgon2Params(memoryKiB, iterations uint32, parallelism uint8) CodecOption {
	return func(c *Codec) error {
		if memoryKiB < 8*uint32(parallelism) || iterations == 0 || parallelism == 0 {
			return errors.New("argon2 parameters out of range")
		}
		c.argon.memory = memoryKiB
		c.argon.iterations = iterations
		c.argon.parallelism = parallelism
		return nil
	}
}

// NewCodec builds a codec signing with an HMAC secret.
func NewCodec(secret []byte, opts ...CodecOption) (*Codec, error) {
	c := &Codec{
		secret:    append([]byte(nil), secret...),
		issuer:    defaultIssuer,
		accessTTL: defaultAccessTTL,
		argon:     defaultArgonParams,
		now:       time.Now,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if len(c.secret) == 0 {
		return nil, ErrSigning
	}
	return c, nil
}

// Issuer returns the configured issuer.
func (c *Codec) Issuer() string { return c.issuer }

// AccessTTL returns the access token lifetime.
func (c *Codec) AccessTTL() time.Duration { return c.accessTTL }

// SignAccess issues an HS256 access token for claims.
func (c *Codec) SignAccess(claims Claims) (string, time.Time, error) {
	if c == nil || len(c.secret) == 0 {
		return "", time.Time{}, ErrSigning
	}
	if claims.PrincipalID == "" || claims.TenantID == "" || claims.SessionID == "" {
		return "", time.Time{}, fmt.Errorf("%w: principal, tenant and session are required", ErrInvalid)
	}
	if !claims.Role.Valid() {
		return "", time.Time{}, fmt.Errorf("%w: unknown role %q", ErrInvalid, claims.Role)
	}
	now := c.now().UTC()
	expiresAt := now.Add(c.accessTTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims{
		TenantID:  claims.TenantID,
		Email:     claims.Email,
		Role:      claims.Role,
		SessionID: claims.SessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   claims.PrincipalID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	})
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return signed, expiresAt, nil
}

// VerifyAccess validates signature, issuer and expiry. Every failure yields the same error.
func (c *Codec) VerifyAccess(token string) (Claims, error) {
	if c == nil || len(c.secret) == 0 || strings.TrimSpace(token) == "" {
		return Claims{}, errInvalidAccess
	}
	parsed, err := jwt.ParseWithClaims(token, &accessClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errInvalidAccess
		}
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil || !parsed.Valid {
		return Claims{}, errInvalidAccess
	}
	ac, ok := parsed.Claims.(*accessClaims)
	if !ok || ac.Subject == "" || ac.TenantID == "" || ac.SessionID == "" || !ac.Role.Valid() {
		return Claims{}, errInvalidAccess
	}
	return Claims{
		PrincipalID: ac.Subject,
		TenantID:    ac.TenantID,
		Email:       ac.Email,
		Role:        ac.Role,
		SessionID:   ac.SessionID,
	}, nil
}
