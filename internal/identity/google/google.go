// Package google verifies Google Sign-In ID tokens against Google's JWKS.
package google

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"

	"landingbuilder.io/internal/auth"
)

var issuers = map[string]bool{
	"accounts.google.com":         true,
	"https://accounts.google.com": true,
}

var errRejected = fmt.Errorf("%w: google credential rejected", auth.ErrInvalid)

type idTokenClaims struct {
	Email         string `json:"email"`
	EmailVerified any    `json:"email_verified"`
	Name          string `json:"name"`
	jwt.RegisteredClaims
}

// Verifier implements auth.IdentityVerifier for Google ID tokens.
type Verifier struct {
	clientID string
	logger   *slog.Logger
	keyfunc  jwt.Keyfunc
	now      func() time.Time
	stop     func()
}

var _ auth.IdentityVerifier = (*Verifier)(nil)

// Option customises a Verifier.
type Option func(*Verifier)

// WithKeyfunc replaces the remote JWKS, e.g. with static keys.
func WithKeyfunc(kf jwt.Keyfunc) Option {
	return func(v *Verifier) { v.keyfunc = kf }
}

// WithClock injects the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) {
		if now != nil {
			v.now = now
		}
	}
}

// New builds a verifier for clientID. Keys are fetched from jwksURL and
// refreshed in the background until Close.
func New(ctx context.Context, clientID, jwksURL string, logger *slog.Logger, opts ...Option) (*Verifier, error) {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return nil, fmt.Errorf("%w: google client id", auth.ErrNotConfigured)
	}
	if logger == nil {
		logger = slog.Default()
	}
	v := &Verifier{clientID: clientID, logger: logger, now: time.Now, stop: func() {}}
	for _, opt := range opts {
		opt(v)
	}
	if v.keyfunc != nil {
		return v, nil
	}
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		Ctx: ctx,
		RefreshErrorHandler: func(err error) {
			logger.Warn("google jwks refresh failed", "error", err)
		},
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  5 * time.Minute,
		RefreshTimeout:    10 * time.Second,
		RefreshUnknownKID: true,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch google jwks: %w", err)
	}
	v.keyfunc = jwks.Keyfunc
	v.stop = jwks.EndBackground
	return v, nil
}

// Close stops the background key refresh.
func (v *Verifier) Close() { v.stop() }

// Verify validates signature, audience, issuer, expiry and email verification.
// Every rejection returns the same error; the reason only goes to the log.
func (v *Verifier) Verify(ctx context.Context, credential string) (auth.ExternalIdentity, error) {
	claims := &idTokenClaims{}
	token, err := jwt.ParseWithClaims(credential, claims, v.keyfunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithAudience(v.clientID),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	switch {
	case err != nil:
		return v.reject(ctx, "parse", "error", err.Error())
	case !token.Valid:
		return v.reject(ctx, "invalid token")
	case !issuers[claims.Issuer]:
		return v.reject(ctx, "unexpected issuer", "issuer", claims.Issuer)
	case claims.Subject == "" || claims.Email == "":
		return v.reject(ctx, "missing subject or email")
	case !verified(claims.EmailVerified):
		return v.reject(ctx, "email not verified", "subject", claims.Subject)
	}
	return auth.ExternalIdentity{Subject: claims.Subject, Email: claims.Email, Name: claims.Name}, nil
}

func (v *Verifier) reject(ctx context.Context, reason string, attrs ...any) (auth.ExternalIdentity, error) {
	v.logger.InfoContext(ctx, "google credential rejected", append([]any{"reason", reason}, attrs...)...)
	return auth.ExternalIdentity{}, errRejected
}

// verified accepts both the boolean and the legacy string encoding.
func verified(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return strings.EqualFold(t, "true")
	default:
		return false
	}
}
