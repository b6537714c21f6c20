package pg

import (
	"context"

	"landingbuilder.io/internal/auth"
)

func (s *Store) UpsertPrincipal(ctx context.Context, p auth.Principal) (auth.Principal, error) {
	var out auth.Principal
	err := s.q.QueryRowContext(ctx, `
		insert into principals (id, email, name, created_at)
		values ($1, $2, $3, $4)
		on conflict (email) do update
		set name = case when excluded.name <> '' then excluded.name else principals.name end
		returning id, email, name, created_at
	`, p.ID, auth.NormalizeEmail(p.Email), p.Name, p.CreatedAt).Scan(&out.ID, &out.Email, &out.Name, &out.CreatedAt)
	if err != nil {
		return auth.Principal{}, mapWriteErr(err)
	}
	return out, nil
}

func (s *Store) GetPrincipal(ctx context.Context, id string) (auth.Principal, error) {
	var out auth.Principal
	err := s.q.QueryRowContext(ctx, `
		select id, email, name, created_at
		from principals
		where id = $1
	`, id).Scan(&out.ID, &out.Email, &out.Name, &out.CreatedAt)
	if err != nil {
		return auth.Principal{}, mapReadErr(err)
	}
	return out, nil
}

func (s *Store) CreateTenant(ctx context.Context, t auth.Tenant) error {
	plan := t.Plan
	if plan == "" {
		plan = auth.DefaultPlan
	}
	_, err := s.q.ExecContext(ctx, `
		insert into tenants (id, name, plan, created_at)
		values ($1, $2, $3, $4)
	`, t.ID, t.Name, plan, t.CreatedAt)
	return mapWriteErr(err)
}

func (s *Store) GetTenant(ctx context.Context, id string) (auth.Tenant, error) {
	var out auth.Tenant
	err := s.q.QueryRowContext(ctx, `
		select id, name, plan, created_at
		from tenants
		where id = $1
	`, id).Scan(&out.ID, &out.Name, &out.Plan, &out.CreatedAt)
	if err != nil {
		return auth.Tenant{}, mapReadErr(err)
	}
	return out, nil
}

func scanMembership(row rowScanner) (auth.Membership, error) {
	var (
		m    auth.Membership
		role string
	)
	if err := row.Scan(&m.PrincipalID, &m.TenantID, &role, &m.CreatedAt); err != nil {
		return auth.Membership{}, err
	}
	m.Role = auth.Role(role)
	return m, nil
}

func (s *Store) GetMembership(ctx context.Context, principalID, tenantID string) (auth.Membership, error) {
	m, err := scanMembership(s.q.QueryRowContext(ctx, `
		select principal_id, tenant_id, role, created_at
		from memberships
		where principal_id = $1 and tenant_id = $2
	`, principalID, tenantID))
	if err != nil {
		return auth.Membership{}, mapReadErr(err)
	}
	return m, nil
}

func (s *Store) EarliestMembership(ctx context.Context, principalID string) (auth.Membership, error) {
	m, err := scanMembership(s.q.QueryRowContext(ctx, `
		select m.principal_id, m.tenant_id, m.role, m.created_at
		from memberships m
		join tenants t on t.id = m.tenant_id
		where m.principal_id = $1
		order by t.created_at, t.id
		limit 1
	`, principalID))
	if err != nil {
		return auth.Membership{}, mapReadErr(err)
	}
	return m, nil
}

// CreateMembership reports an existing pair as ErrConflict without raising a
// unique violation, so an enclosing transaction stays usable for a re-read.
func (s *Store) CreateMembership(ctx context.Context, m auth.Membership) error {
	res, err := s.q.ExecContext(ctx, `
		insert into memberships (principal_id, tenant_id, role, created_at)
		values ($1, $2, $3, $4)
		on conflict (principal_id, tenant_id) do nothing
	`, m.PrincipalID, m.TenantID, string(m.Role), m.CreatedAt)
	if err != nil {
		return mapWriteErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return auth.ErrConflict
	}
	return nil
}

// UpdateMembershipRole only applies while the stored role still equals from.
func (s *Store) UpdateMembershipRole(ctx context.Context, principalID, tenantID string, from, to auth.Role) error {
	res, err := s.q.ExecContext(ctx, `
		update memberships
		set role = $4
		where principal_id = $1 and tenant_id = $2 and role = $3
	`, principalID, tenantID, string(from), string(to))
	if err != nil {
		return err
	}
	return expectOne(res)
}

func (s *Store) DeleteMembership(ctx context.Context, principalID, tenantID string) error {
	res, err := s.q.ExecContext(ctx, `
		delete from memberships
		where principal_id = $1 and tenant_id = $2
	`, principalID, tenantID)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func (s *Store) ListMemberships(ctx context.Context, principalID string) ([]auth.TenantMembership, error) {
	rows, err := s.q.QueryContext(ctx, `
		select t.id, t.name, t.plan, t.created_at, m.role, m.created_at
		from memberships m
		join tenants t on t.id = m.tenant_id
		where m.principal_id = $1
		order by t.created_at, t.id
	`, principalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []auth.TenantMembership
	for rows.Next() {
		var (
			tm   auth.TenantMembership
			role string
		)
		if err := rows.Scan(&tm.Tenant.ID, &tm.Tenant.Name, &tm.Tenant.Plan, &tm.Tenant.CreatedAt, &role, &tm.JoinedAt); err != nil {
			return nil, err
		}
		tm.Role = auth.Role(role)
		result = append(result, tm)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) ListMembers(ctx context.Context, tenantID string) ([]auth.Member, error) {
	rows, err := s.q.QueryContext(ctx, `
		select p.id, p.email, p.name, p.created_at, m.role, m.created_at
		from memberships m
		join principals p on p.id = m.principal_id
		where m.tenant_id = $1
		order by p.email
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []auth.Member
	for rows.Next() {
		var (
			mem  auth.Member
			role string
		)
		if err := rows.Scan(&mem.Principal.ID, &mem.Principal.Email, &mem.Principal.Name, &mem.Principal.CreatedAt, &role, &mem.JoinedAt); err != nil {
			return nil, err
		}
		mem.Role = auth.Role(role)
		result = append(result, mem)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) FindMemberByEmail(ctx context.Context, tenantID, email string) (auth.Membership, error) {
	m, err := scanMembership(s.q.QueryRowContext(ctx, `
		select m.principal_id, m.tenant_id, m.role, m.created_at
		from memberships m
		join principals p on p.id = m.principal_id
		where m.tenant_id = $1 and p.email = $2
	`, tenantID, auth.NormalizeEmail(email)))
	if err != nil {
		return auth.Membership{}, mapReadErr(err)
	}
	return m, nil
}
