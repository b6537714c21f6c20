package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestCodec(t *testing.T, now func() time.Time, opts ...CodecOption) *Codec {
	t.Helper()
	base := []CodecOption{
		WithIssuer("test-issuer"),
		WithAccessTTL(15 * time.Minute),
		WithCodecClock(now),
		WithArgon2Params(1024, 1, 1),
	}
	c, err := NewCodec(testSecret, append(base, opts...)...)
	require.NoError(t, err)
	return c
}

func sampleClaims() Claims {
	return Claims{PrincipalID: "p-1", TenantID: "t-1", Email: "alice@example.com", Role: RoleAdmin, SessionID: "s-1"}
}

func TestCodecSignAndVerifyRoundTrip(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	c := newTestCodec(t, func() time.Time { return now })

	token, exp, err := c.SignAccess(sampleClaims())
	require.NoError(t, err)
	assert.Equal(t, now.Add(15*time.Minute), exp)

	got, err := c.VerifyAccess(token)
	require.NoError(t, err)
	assert.Equal(t, sampleClaims(), got)
}

func TestCodecVerifyCollapsesFailures(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	clock := now
	c := newTestCodec(t, func() time.Time { return clock })
	token, _, err := c.SignAccess(sampleClaims())
	require.NoError(t, err)

	otherIssuer := newTestCodec(t, func() time.Time { return now }, WithIssuer("someone-else"))
	foreign, _, err := otherIssuer.SignAccess(sampleClaims())
	require.NoError(t, err)

	otherKey, err := NewCodec([]byte("another-secret-another-secret-xx"), WithIssuer("test-issuer"), WithCodecClock(func() time.Time { return now }))
	require.NoError(t, err)
	forged, _, err := otherKey.SignAccess(sampleClaims())
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "p-1", "iss": "test-issuer"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	cases := map[string]string{
		"wrong issuer":  foreign,
		"wrong key":     forged,
		"alg none":      unsigned,
		"garbage":       "not-a-token",
		"empty":         "",
		"tampered body": token[:strings.LastIndex(token, ".")-2] + "xx" + token[strings.LastIndex(token, "."):],
	}
	var messages []string
	for name, raw := range cases {
		_, err := c.VerifyAccess(raw)
		require.Error(t, err, name)
		assert.True(t, errors.Is(err, ErrUnauthenticated), name)
		messages = append(messages, err.Error())
	}

	clock = now.Add(16 * time.Minute)
	_, err = c.VerifyAccess(token)
	require.Error(t, err)
	messages = append(messages, err.Error())

	for _, msg := range messages {
		assert.Equal(t, messages[0], msg, "failures must be indistinguishable")
	}
}

func TestCodecRejectsIncompleteClaims(t *testing.T) {
	c := newTestCodec(t, time.Now)
	claims := sampleClaims()
	claims.Role = "superuser"
	_, _, err := c.SignAccess(claims)
	assert.ErrorIs(t, err, ErrInvalid)

	claims = sampleClaims()
	claims.SessionID = ""
	_, _, err = c.SignAccess(claims)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestNewCodecRequiresSecret(t *testing.T) {
	_, err := NewCodec(nil)
	require.ErrorIs(t, err, ErrSigning)
	assert.Equal(t, KindNotConfigured, KindOf(err))

	var nilCodec *Codec
	_, _, err = nilCodec.SignAccess(sampleClaims())
	assert.ErrorIs(t, err, ErrSigning)
}

func TestSecretHashing(t *testing.T) {
	c := newTestCodec(t, time.Now)

	h1, err := c.HashSecret("s3cret")
	require.NoError(t, err)
	h2, err := c.HashSecret("s3cret")
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2, "salted hashes must differ")
	assert.True(t, strings.HasPrefix(h1, "$argon2id$v=19$m=1024,t=1,p=1$"))
	assert.True(t, c.VerifySecretHash("s3cret", h1))
	assert.True(t, c.VerifySecretHash("s3cret", h2))
	assert.False(t, c.VerifySecretHash("S3cret", h1))
	assert.False(t, c.VerifySecretHash("s3cret", "$argon2id$broken"))
	assert.False(t, c.VerifySecretHash("s3cret", ""))

	_, err = c.HashSecret("")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestHashOneTimeIsStableSha256(t *testing.T) {
	assert.Equal(t, "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08", HashOneTime("test"))
	raw, err := newOneTimeToken()
	require.NoError(t, err)
	assert.Len(t, raw, 64)
}

func TestRefreshTokenWireForm(t *testing.T) {
	secret, err := newRefreshSecret()
	require.NoError(t, err)
	raw := JoinRefreshToken("3f1c-sess", secret)

	id, got, err := SplitRefreshToken(raw)
	require.NoError(t, err)
	assert.Equal(t, "3f1c-sess", id)
	assert.Equal(t, secret, got)

	for _, bad := range []string{"", "nodot", ".secret", "id.", "a.b.c"} {
		_, _, err := SplitRefreshToken(bad)
		assert.ErrorIs(t, err, ErrInvalid, bad)
	}
}
