package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"landingbuilder.io/internal/auth"
)

const tokenColumns = `id, kind, token_hash, email, tenant_id, role, invite_id, created_by, account_name,
	status, expires_at, created_at, consumed_at, revoked_at`

func scanToken(row rowScanner) (auth.OneTimeToken, error) {
	var (
		t                        auth.OneTimeToken
		kind, status             string
		tenant, role, invite, by sql.NullString
		consumedAt, revokedAt    sql.NullTime
	)
	if err := row.Scan(&t.ID, &kind, &t.TokenHash, &t.Email, &tenant, &role, &invite, &by, &t.AccountName,
		&status, &t.ExpiresAt, &t.CreatedAt, &consumedAt, &revokedAt); err != nil {
		return auth.OneTimeToken{}, err
	}
	t.Kind = auth.TokenKind(kind)
	t.Status = auth.TokenStatus(status)
	t.TenantID = tenant.String
	t.Role = auth.Role(role.String)
	t.InviteID = invite.String
	t.CreatedBy = by.String
	if consumedAt.Valid {
		at := consumedAt.Time
		t.ConsumedAt = &at
	}
	if revokedAt.Valid {
		at := revokedAt.Time
		t.RevokedAt = &at
	}
	return t, nil
}

func (s *Store) CreateOneTimeToken(ctx context.Context, t auth.OneTimeToken) error {
	status := t.Status
	if status == "" {
		status = auth.StatusPending
	}
	_, err := s.q.ExecContext(ctx, `
		insert into one_time_tokens (id, kind, token_hash, email, tenant_id, role, invite_id, created_by, account_name,
			status, expires_at, created_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, t.ID, string(t.Kind), t.TokenHash, t.Email, nullIfEmpty(t.TenantID), nullIfEmpty(string(t.Role)),
		nullIfEmpty(t.InviteID), nullIfEmpty(t.CreatedBy), t.AccountName, string(status), t.ExpiresAt, t.CreatedAt)
	return mapWriteErr(err)
}

func (s *Store) GetOneTimeTokenByHash(ctx context.Context, kind auth.TokenKind, hash string) (auth.OneTimeToken, error) {
	t, err := scanToken(s.q.QueryRowContext(ctx, `
		select `+tokenColumns+`
		from one_time_tokens
		where kind = $1 and token_hash = $2
	`, string(kind), hash))
	if err != nil {
		return auth.OneTimeToken{}, mapReadErr(err)
	}
	return t, nil
}

// ConsumeOneTimeToken is a single conditional update: the row changes only while
// pending, unexpired and bound to the presented email.
func (s *Store) ConsumeOneTimeToken(ctx context.Context, p auth.ConsumeParams) (auth.OneTimeToken, error) {
	key, value := "id", p.ID
	if p.TokenHash != "" {
		key, value = "token_hash", p.TokenHash
	}
	t, err := scanToken(s.q.QueryRowContext(ctx, fmt.Sprintf(`
		update one_time_tokens
		set status = $1, consumed_at = $2
		where kind = $3 and %s = $4 and status = 'pending' and expires_at > $2
			and ($5 = '' or email = $5)
		returning `+tokenColumns, key),
		string(auth.ConsumedStatus(p.Kind)), p.Now, string(p.Kind), value, p.Email))
	if err != nil {
		return auth.OneTimeToken{}, mapReadErr(err)
	}
	return t, nil
}

func (s *Store) ExpireOneTimeToken(ctx context.Context, id string, now time.Time) error {
	res, err := s.q.ExecContext(ctx, `
		update one_time_tokens
		set status = 'expired'
		where id = $1 and status = 'pending' and expires_at <= $2
	`, id, now)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func (s *Store) RevokeOneTimeToken(ctx context.Context, kind auth.TokenKind, tenantID, id string, now time.Time) (auth.OneTimeToken, error) {
	t, err := scanToken(s.q.QueryRowContext(ctx, `
		update one_time_tokens
		set status = 'revoked', revoked_at = $4
		where id = $1 and kind = $2 and tenant_id = $3 and status = 'pending'
		returning `+tokenColumns, id, string(kind), tenantID, now))
	if err != nil {
		return auth.OneTimeToken{}, mapReadErr(err)
	}
	return t, nil
}

func (s *Store) ListPendingInvites(ctx context.Context, tenantID string, now time.Time) ([]auth.OneTimeToken, error) {
	rows, err := s.q.QueryContext(ctx, `
		select `+tokenColumns+`
		from one_time_tokens
		where kind = 'invite' and tenant_id = $1 and status = 'pending' and expires_at > $2
		order by created_at desc, id desc
	`, tenantID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []auth.OneTimeToken
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) InsertAudit(ctx context.Context, e auth.AuditEntry) error {
	meta := []byte("{}")
	if len(e.Metadata) > 0 {
		b, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		meta = b
	}
	_, err := s.q.ExecContext(ctx, `
		insert into audit_log (id, tenant_id, principal_id, action, metadata, created_at)
		values ($1, $2, $3, $4, $5, $6)
	`, e.ID, nullIfEmpty(e.TenantID), nullIfEmpty(e.PrincipalID), e.Action, meta, e.CreatedAt)
	return mapWriteErr(err)
}
