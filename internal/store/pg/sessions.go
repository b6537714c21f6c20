package pg

import (
	"context"
	"time"

	"landingbuilder.io/internal/auth"
)

const sessionColumns = `id, principal_id, tenant_id, refresh_hash, expires_at, created_at, updated_at`

func scanSession(row rowScanner) (auth.Session, error) {
	var s auth.Session
	err := row.Scan(&s.ID, &s.PrincipalID, &s.TenantID, &s.RefreshHash, &s.ExpiresAt, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func (s *Store) CreateSession(ctx context.Context, sess auth.Session) error {
	_, err := s.q.ExecContext(ctx, `
		insert into sessions (`+sessionColumns+`)
		values ($1, $2, $3, $4, $5, $6, $7)
	`, sess.ID, sess.PrincipalID, sess.TenantID, sess.RefreshHash, sess.ExpiresAt, sess.CreatedAt, sess.UpdatedAt)
	return mapWriteErr(err)
}

func (s *Store) GetSession(ctx context.Context, id string) (auth.Session, error) {
	sess, err := scanSession(s.q.QueryRowContext(ctx, `
		select `+sessionColumns+`
		from sessions
		where id = $1
	`, id))
	if err != nil {
		return auth.Session{}, mapReadErr(err)
	}
	return sess, nil
}

// SwapSessionSecret replaces the refresh hash only while it still equals oldHash.
// A missing session is ErrNotFound; a session whose hash moved on is ErrConflict.
func (s *Store) SwapSessionSecret(ctx context.Context, id, oldHash, newHash string, expiresAt, now time.Time) error {
	res, err := s.q.ExecContext(ctx, `
		update sessions
		set refresh_hash = $3, expires_at = $4, updated_at = $5
		where id = $1 and refresh_hash = $2
	`, id, oldHash, newHash, expiresAt, now)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	var exists bool
	if err := s.q.QueryRowContext(ctx, `select exists(select 1 from sessions where id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return auth.ErrNotFound
	}
	return auth.ErrConflict
}

func (s *Store) DeleteSession(ctx context.Context, id string) (auth.Session, error) {
	sess, err := scanSession(s.q.QueryRowContext(ctx, `
		delete from sessions
		where id = $1
		returning `+sessionColumns, id))
	if err != nil {
		return auth.Session{}, mapReadErr(err)
	}
	return sess, nil
}
