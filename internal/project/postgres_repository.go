package project

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository implements Repository using pgxpool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new Repository backed by the given connection pool.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &PostgresRepository{pool: pool}
}

// Create inserts the project and the owner's membership row in one transaction.
func (r *PostgresRepository) Create(ctx context.Context, p *Project, ownerRoles []string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO projects (name, owner_id)
		VALUES ($1, $2)
		RETURNING id, created_at`,
		p.Name, p.OwnerID,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return mapWriteErr("inserting project", err)
	}

	owner := Member{UserID: p.OwnerID, Active: true, Roles: ownerRoles}
	err = tx.QueryRow(ctx, `
		INSERT INTO project_members (project_id, user_id, active, roles)
		VALUES ($1, $2, TRUE, $3)
		RETURNING created_at`,
		p.ID, p.OwnerID, nonNilRoles(ownerRoles),
	).Scan(&owner.CreatedAt)
	if err != nil {
		return mapWriteErr("inserting owner membership", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing project: %w", err)
	}

	p.Members = []Member{owner}
	return nil
}

// GetWithMembers retrieves a project and all of its membership rows,
// active or not.
func (r *PostgresRepository) GetWithMembers(ctx context.Context, id int64) (*Project, error) {
	var p Project
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, owner_id, created_at
		FROM projects
		WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.OwnerID, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("querying project: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT user_id, active, roles, created_at
		FROM project_members
		WHERE project_id = $1
		ORDER BY created_at ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("querying members: %w", err)
	}
	defer rows.Close()

	p.Members = []Member{}
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.UserID, &m.Active, &m.Roles, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning member row: %w", err)
		}
		p.Members = append(p.Members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating member rows: %w", err)
	}

	return &p, nil
}

// ListForUser returns projects the user owns or is a member of, without members.
func (r *PostgresRepository) ListForUser(ctx context.Context, userID int64) ([]Project, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.id, p.name, p.owner_id, p.created_at
		FROM projects p
		WHERE p.owner_id = $1
		   OR EXISTS (SELECT 1 FROM project_members m WHERE m.project_id = p.id AND m.user_id = $1)
		ORDER BY p.created_at ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	defer rows.Close()

	projects := []Project{}
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.Name, &p.OwnerID, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning project row: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating project rows: %w", err)
	}

	return projects, nil
}

// Delete removes a project and its membership rows.
func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM project_members WHERE project_id = $1`, id); err != nil {
		return fmt.Errorf("deleting members: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM permissions WHERE project_id = $1`, id); err != nil {
		return fmt.Errorf("deleting project permissions: %w", err)
	}

	result, err := tx.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting project: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrProjectNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing delete: %w", err)
	}
	return nil
}

// AddMember inserts a membership row.
func (r *PostgresRepository) AddMember(ctx context.Context, projectID int64, m *Member) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO project_members (project_id, user_id, active, roles)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		projectID, m.UserID, m.Active, nonNilRoles(m.Roles),
	).Scan(&m.CreatedAt)
	if err != nil {
		return mapWriteErr("inserting member", err)
	}
	return nil
}

// SetMemberRoles replaces the role set of a member.
func (r *PostgresRepository) SetMemberRoles(ctx context.Context, projectID, userID int64, roles []string) error {
	return r.updateMember(ctx, `UPDATE project_members SET roles = $3 WHERE project_id = $1 AND user_id = $2`,
		projectID, userID, nonNilRoles(roles))
}

// SetMemberActive flips the active flag of a member.
func (r *PostgresRepository) SetMemberActive(ctx context.Context, projectID, userID int64, active bool) error {
	return r.updateMember(ctx, `UPDATE project_members SET active = $3 WHERE project_id = $1 AND user_id = $2`,
		projectID, userID, active)
}

// RemoveMember deletes a membership row.
func (r *PostgresRepository) RemoveMember(ctx context.Context, projectID, userID int64) error {
	return r.updateMember(ctx, `DELETE FROM project_members WHERE project_id = $1 AND user_id = $2`,
		projectID, userID)
}

func (r *PostgresRepository) updateMember(ctx context.Context, query string, args ...any) error {
	result, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating member: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrMemberNotFound
	}
	return nil
}

func mapWriteErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return ErrDuplicateMember
		case "23503":
			if pgErr.ConstraintName == "project_members_project_id_fkey" {
				return ErrProjectNotFound
			}
			return ErrUnknownUser
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func nonNilRoles(roles []string) []string {
	if roles == nil {
		return []string{}
	}
	return roles
}
