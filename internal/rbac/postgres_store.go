package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const rolesForUserQuery = `
		SELECT r.name
		FROM user_roles ur
		JOIN roles r ON r.id = ur.role_id
		WHERE ur.user_id = $1
		UNION
		SELECT unnest(m.roles)
		FROM project_members m
		WHERE m.user_id = $1 AND m.project_id = $2`

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) Store {
	return &PostgresStore{pool: pool}
}

// ListRolesForUser returns global role names plus the role set held on the
// project's membership row, sorted by name.
func (s *PostgresStore) ListRolesForUser(ctx context.Context, userID, projectID int64) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT name FROM (`+rolesForUserQuery+`) AS held(name) ORDER BY name`, userID, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing roles for user: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scanning role names: %w", err)
	}
	return names, nil
}

// HasAnyRole reports whether the user holds any of the required names.
func (s *PostgresStore) HasAnyRole(ctx context.Context, userID, projectID int64, required []string) (bool, error) {
	if len(required) == 0 {
		return false, nil
	}
	var ok bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM (`+rolesForUserQuery+`) AS held(name) WHERE name = ANY($3))`,
		userID, projectID, required,
	).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("checking roles: %w", err)
	}
	return ok, nil
}

// ListPermissions returns a role's permissions ordered by entity, action, id.
func (s *PostgresStore) ListPermissions(ctx context.Context, roleID int64) ([]Permission, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, role_id, entity, action, project_id
		FROM permissions
		WHERE role_id = $1
		ORDER BY entity, action, id`, roleID)
	if err != nil {
		return nil, fmt.Errorf("listing permissions: %w", err)
	}
	defer rows.Close()

	perms := []Permission{}
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.RoleID, &p.Entity, &p.Action, &p.ProjectID); err != nil {
			return nil, fmt.Errorf("scanning permission row: %w", err)
		}
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating permission rows: %w", err)
	}
	return perms, nil
}

// Grants loads the held roles and expands them into capabilities. Permission
// rows limited to another project are ignored.
func (s *PostgresStore) Grants(ctx context.Context, userID, projectID int64) (*Grants, error) {
	roles, err := s.ListRolesForUser(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}

	g := &Grants{Roles: roles, Capabilities: []Capability{}}
	if len(roles) == 0 {
		return g, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT p.entity, p.action
		FROM permissions p
		JOIN roles r ON r.id = p.role_id
		WHERE r.name = ANY($1)
		  AND (p.project_id IS NULL OR p.project_id = $2)
		ORDER BY p.entity, p.action`, roles, projectID)
	if err != nil {
		return nil, fmt.Errorf("expanding capabilities: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c Capability
		if err := rows.Scan(&c.Entity, &c.Action); err != nil {
			return nil, fmt.Errorf("scanning capability row: %w", err)
		}
		g.Capabilities = append(g.Capabilities, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating capability rows: %w", err)
	}
	return g, nil
}

// ListRoles returns the catalog ordered by name.
func (s *PostgresStore) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, description FROM roles ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing roles: %w", err)
	}
	roles, err := pgx.CollectRows(rows, pgx.RowToStructByPos[Role])
	if err != nil {
		return nil, fmt.Errorf("scanning role rows: %w", err)
	}
	return roles, nil
}

// GetRoleByName looks a role up by exact name.
func (s *PostgresStore) GetRoleByName(ctx context.Context, name string) (*Role, error) {
	var r Role
	err := s.pool.QueryRow(ctx, `SELECT id, name, description FROM roles WHERE name = $1`, name).
		Scan(&r.ID, &r.Name, &r.Description)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRoleNotFound
		}
		return nil, fmt.Errorf("querying role: %w", err)
	}
	return &r, nil
}

// InsertRoleIfAbsent inserts a role unless one with the same name exists.
// The existing row is returned untouched in that case and inserted is false.
func (s *PostgresStore) InsertRoleIfAbsent(ctx context.Context, name, description string) (*Role, bool, error) {
	var r Role
	err := s.pool.QueryRow(ctx, `
		INSERT INTO roles (name, description)
		VALUES ($1, $2)
		ON CONFLICT (name) DO NOTHING
		RETURNING id, name, description`, name, description,
	).Scan(&r.ID, &r.Name, &r.Description)
	if err == nil {
		return &r, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("inserting role: %w", err)
	}

	existing, err := s.GetRoleByName(ctx, name)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// InsertPermissionIfAbsent inserts a permission row unless an identical one exists.
func (s *PostgresStore) InsertPermissionIfAbsent(ctx context.Context, p *Permission) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO permissions (role_id, entity, action, project_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (role_id, entity, action, project_id) DO NOTHING
		RETURNING id`, p.RoleID, p.Entity, p.Action, p.ProjectID,
	).Scan(&p.ID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("inserting permission: %w", err)
	}
	return nil
}

// SeedRole inserts a missing role and its permissions in one transaction.
func (s *PostgresStore) SeedRole(ctx context.Context, name, description string, perms []Capability) (*Role, bool, error) {
	var (
		r        Role
		inserted bool
	)
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO roles (name, description)
			VALUES ($1, $2)
			ON CONFLICT (name) DO NOTHING
			RETURNING id, name, description`, name, description,
		).Scan(&r.ID, &r.Name, &r.Description)
		if errors.Is(err, pgx.ErrNoRows) {
			return tx.QueryRow(ctx, `SELECT id, name, description FROM roles WHERE name = $1`, name).
				Scan(&r.ID, &r.Name, &r.Description)
		}
		if err != nil {
			return fmt.Errorf("inserting role: %w", err)
		}
		inserted = true

		for _, c := range perms {
			_, err := tx.Exec(ctx, `
				INSERT INTO permissions (role_id, entity, action)
				VALUES ($1, $2, $3)
				ON CONFLICT (role_id, entity, action, project_id) DO NOTHING`, r.ID, c.Entity, c.Action)
			if err != nil {
				return fmt.Errorf("inserting permission %s: %w", c, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &r, inserted, nil
}

// AssignGlobalRole grants a role outside any project. Assigning twice is a no-op.
func (s *PostgresStore) AssignGlobalRole(ctx context.Context, userID, roleID int64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO user_roles (user_id, role_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, userID, roleID)
	if err != nil {
		return fmt.Errorf("assigning role: %w", err)
	}
	return nil
}

// RevokeGlobalRole removes a global assignment.
func (s *PostgresStore) RevokeGlobalRole(ctx context.Context, userID, roleID int64) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2`, userID, roleID)
	if err != nil {
		return fmt.Errorf("revoking role: %w", err)
	}
	return nil
}
