package auth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"landingbuilder.io/internal/auth"
	"landingbuilder.io/internal/store/memory"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type auditCapture struct {
	mu      sync.Mutex
	entries []auth.AuditEntry
}

func (a *auditCapture) Record(_ context.Context, e auth.AuditEntry) {
	a.mu.Lock()
	a.entries = append(a.entries, e)
	a.mu.Unlock()
}

func (a *auditCapture) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e.Action)
	}
	return out
}

type harness struct {
	t     *testing.T
	mem   *memory.Store
	clock *fakeClock
	audit *auditCapture
	svc   *auth.Service
}

func newHarness(t *testing.T, opts ...auth.ServiceOption) *harness {
	mem := memory.New()
	return newHarnessOn(t, mem, mem, opts...)
}

// newHarnessOn builds a service over st. mem is the backing store used for direct assertions.
func newHarnessOn(t *testing.T, st auth.Store, mem *memory.Store, opts ...auth.ServiceOption) *harness {
	t.Helper()
	clock := newClock()
	codec, err := auth.NewCodec([]byte("0123456789abcdef0123456789abcdef"),
		auth.WithIssuer("test-issuer"),
		auth.WithCodecClock(clock.Now),
		auth.WithArgon2Params(1024, 1, 1),
	)
	require.NoError(t, err)
	sink := &auditCapture{}
	base := []auth.ServiceOption{auth.WithClock(clock.Now), auth.WithAuditSink(sink)}
	svc, err := auth.NewService(st, codec, append(base, opts...)...)
	require.NoError(t, err)
	return &harness{t: t, mem: mem, clock: clock, audit: sink, svc: svc}
}

// login signs email in through a magic link.
func (h *harness) login(email string, req auth.MagicLinkRequest) auth.LoginResult {
	h.t.Helper()
	ctx := context.Background()
	req.Email = email
	ticket, err := h.svc.RequestMagicLink(ctx, req)
	require.NoError(h.t, err)
	res, err := h.svc.VerifyMagicLink(ctx, auth.VerifyMagicLinkRequest{Token: ticket.Token})
	require.NoError(h.t, err)
	return res
}

func (h *harness) authenticate(res auth.LoginResult) (auth.AuthContext, error) {
	return h.svc.Authenticate(context.Background(), "Bearer "+res.Tokens.AccessToken)
}

func (h *harness) mustAuth(res auth.LoginResult) auth.AuthContext {
	h.t.Helper()
	ac, err := h.authenticate(res)
	require.NoError(h.t, err)
	return ac
}

// join invites email into owner's tenant with role and logs them in through the invite.
func (h *harness) join(owner auth.AuthContext, email string, role auth.Role) auth.LoginResult {
	h.t.Helper()
	invite, err := h.svc.CreateInvite(context.Background(), owner, email, role)
	require.NoError(h.t, err)
	return h.login(email, auth.MagicLinkRequest{InviteToken: invite.Raw})
}

func (h *harness) token(kind auth.TokenKind, raw string) auth.OneTimeToken {
	h.t.Helper()
	tok, err := h.mem.GetOneTimeTokenByHash(context.Background(), kind, auth.HashOneTime(raw))
	require.NoError(h.t, err)
	return tok
}
