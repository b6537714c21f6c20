package auth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"landingbuilder.io/internal/auth"
	"landingbuilder.io/internal/store/memory"
)

func TestRefreshRotatesAndDetectsReuse(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	first := h.login("alice@example.com", auth.MagicLinkRequest{})

	h.clock.Advance(time.Minute)
	second, err := h.svc.Refresh(ctx, first.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.Tokens.RefreshToken, second.Tokens.RefreshToken)
	assert.Equal(t, first.Tokens.SessionID, second.Tokens.SessionID)
	assert.Equal(t, auth.RoleOwner, second.Role)
	assert.Equal(t, "alice@example.com", second.Principal.Email)

	_, err = h.svc.Refresh(ctx, first.Tokens.RefreshToken)
	require.ErrorIs(t, err, auth.ErrInvalid)
	assert.Contains(t, h.audit.actions(), auth.ActionSessionReuse)

	_, err = h.svc.Refresh(ctx, second.Tokens.RefreshToken)
	assert.ErrorIs(t, err, auth.ErrInvalid, "reuse must end the session")
	_, err = h.authenticate(second)
	assert.ErrorIs(t, err, auth.ErrUnauthenticated)
}

func TestReuseKeepsSessionWhenRevocationDisabled(t *testing.T) {
	h := newHarness(t, auth.WithReuseRevocation(false))
	ctx := context.Background()
	first := h.login("alice@example.com", auth.MagicLinkRequest{})

	second, err := h.svc.Refresh(ctx, first.Tokens.RefreshToken)
	require.NoError(t, err)
	_, err = h.svc.Refresh(ctx, first.Tokens.RefreshToken)
	require.ErrorIs(t, err, auth.ErrInvalid)

	_, err = h.svc.Refresh(ctx, second.Tokens.RefreshToken)
	assert.NoError(t, err)
	assert.NotContains(t, h.audit.actions(), auth.ActionSessionReuse)
}

func TestRefreshRejectsMalformedAndUnknownTokens(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for _, raw := range []string{"", "garbage", "a.b.c", "00000000-0000-0000-0000-000000000000.secret"} {
		_, err := h.svc.Refresh(ctx, raw)
		assert.ErrorIs(t, err, auth.ErrInvalid, raw)
	}
}

func TestRefreshFailsAfterSessionExpiry(t *testing.T) {
	h := newHarness(t, auth.WithRefreshTTL(time.Hour))
	res := h.login("alice@example.com", auth.MagicLinkRequest{})

	h.clock.Advance(time.Hour)
	_, err := h.svc.Refresh(context.Background(), res.Tokens.RefreshToken)
	assert.ErrorIs(t, err, auth.ErrInvalid)
}

func TestRefreshRederivesRoleFromMembership(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := h.mustAuth(h.login("owner@example.com", auth.MagicLinkRequest{}))
	bob := h.join(owner, "bob@example.com", auth.RoleEditor)
	require.Equal(t, auth.RoleEditor, bob.Role)

	_, err := h.svc.ChangeMemberRole(ctx, owner, bob.Principal.ID, auth.RoleAdmin)
	require.NoError(t, err)

	refreshed, err := h.svc.Refresh(ctx, bob.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, refreshed.Role)
	claims, err := h.svc.Codec().VerifyAccess(refreshed.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, claims.Role)
	assert.Equal(t, owner.TenantID, claims.TenantID)

	require.NoError(t, h.svc.RemoveMember(ctx, owner, bob.Principal.ID))
	_, err = h.svc.Refresh(ctx, refreshed.Tokens.RefreshToken)
	assert.ErrorIs(t, err, auth.ErrInvalid)
}

func TestLogoutIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := h.login("alice@example.com", auth.MagicLinkRequest{})
	ac := h.mustAuth(res)

	require.NoError(t, h.svc.Logout(ctx, ac))
	require.NoError(t, h.svc.Logout(ctx, ac))
	require.NoError(t, h.svc.Sessions().Revoke(ctx, "never-issued"))

	_, err := h.authenticate(res)
	assert.ErrorIs(t, err, auth.ErrUnauthenticated)
	_, err = h.svc.Refresh(ctx, res.Tokens.RefreshToken)
	assert.ErrorIs(t, err, auth.ErrInvalid)

	ended := 0
	for _, a := range h.audit.actions() {
		if a == auth.ActionSessionEnded {
			ended++
		}
	}
	assert.Equal(t, 1, ended)
}

func TestIssueValidatesParams(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Sessions().Issue(context.Background(), auth.IssueParams{PrincipalID: "p"})
	assert.ErrorIs(t, err, auth.ErrInvalid)
	_, err = h.svc.Sessions().Issue(context.Background(), auth.IssueParams{PrincipalID: "p", TenantID: "t", Role: "root"})
	assert.ErrorIs(t, err, auth.ErrInvalid)
}

// rendezvousStore holds every GetSession caller until all of them have read,
// so concurrent rotations observe the same secret hash.
type rendezvousStore struct {
	*memory.Store
	arrived sync.WaitGroup
}

func (r *rendezvousStore) GetSession(ctx context.Context, id string) (auth.Session, error) {
	s, err := r.Store.GetSession(ctx, id)
	r.arrived.Done()
	r.arrived.Wait()
	return s, err
}

func TestConcurrentRotationHasSingleWinner(t *testing.T) {
	mem := memory.New()
	rs := &rendezvousStore{Store: mem}
	h := newHarnessOn(t, rs, mem)
	res := h.login("alice@example.com", auth.MagicLinkRequest{})

	const callers = 2
	rs.arrived.Add(callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = h.svc.Sessions().Rotate(context.Background(), res.Tokens.RefreshToken)
		}(i)
	}
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case auth.KindOf(err) == auth.KindConflict:
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, conflicts)
	assert.NotContains(t, h.audit.actions(), auth.ActionSessionReuse)
}
