package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/errdefs"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/types"
)

const projectColumns = `id, owner_id, name, entrypoint, autostart, created_at, updated_at`

func scanProject(row interface{ Scan(...interface{}) error }) (*types.Project, error) {
	var p types.Project
	var createdAt, updatedAt string
	if err := row.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Entrypoint, &p.Autostart, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}

// CreateProject inserts a project row and returns its assigned id
func (s *Store) CreateProject(ctx context.Context, actor int64, ownerID int64, name, entrypoint string, autostart bool) (int64, error) {
	var id int64
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			INSERT INTO projects (owner_id, name, entrypoint, autostart, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			ownerID, name, entrypoint, autostart, now(), now())
		if err != nil {
			return fmt.Errorf("create project: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("project id: %w", err)
		}
		return auditTx(tx, actor, "project.create", fmt.Sprintf("project:%d", id), name)
	})
	return id, err
}

// GetProject returns a project by id
func (s *Store) GetProject(ctx context.Context, id int64) (*types.Project, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errdefs.New(errdefs.KindNotFound, "project %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get project %d: %w", id, err)
	}
	return p, nil
}

// ListProjectsByOwner returns all projects owned by a user, oldest first
func (s *Store) ListProjectsByOwner(ctx context.Context, ownerID int64) ([]*types.Project, error) {
	return s.listProjects(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE owner_id = ? ORDER BY id`, ownerID)
}

// ListAutostart returns all projects flagged for boot-time start
func (s *Store) ListAutostart(ctx context.Context) ([]*types.Project, error) {
	return s.listProjects(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE autostart = 1 ORDER BY id`)
}

func (s *Store) listProjects(ctx context.Context, query string, args ...interface{}) ([]*types.Project, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []*types.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// CountProjectsByOwner returns the number of projects a user owns
func (s *Store) CountProjectsByOwner(ctx context.Context, ownerID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM projects WHERE owner_id = ?`, ownerID).Scan(&n)
	return n, err
}

// CountProjects returns the total number of projects
func (s *Store) CountProjects(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects`).Scan(&n)
	return n, err
}

// RenameProject changes a project's display name
func (s *Store) RenameProject(ctx context.Context, actor, id int64, name string) error {
	return s.updateProject(ctx, actor, id, "project.rename", name,
		`UPDATE projects SET name = ?, updated_at = ? WHERE id = ?`, name, now(), id)
}

// SetEntrypoint changes a project's entrypoint
func (s *Store) SetEntrypoint(ctx context.Context, actor, id int64, entrypoint string) error {
	return s.updateProject(ctx, actor, id, "project.set-entrypoint", entrypoint,
		`UPDATE projects SET entrypoint = ?, updated_at = ? WHERE id = ?`, entrypoint, now(), id)
}

// SetAutostart changes a project's autostart flag
func (s *Store) SetAutostart(ctx context.Context, actor, id int64, autostart bool) error {
	return s.updateProject(ctx, actor, id, "project.set-autostart", fmt.Sprintf("%t", autostart),
		`UPDATE projects SET autostart = ?, updated_at = ? WHERE id = ?`, autostart, now(), id)
}

func (s *Store) updateProject(ctx context.Context, actor, id int64, action, details, query string, args ...interface{}) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.Exec(query, args...)
		if err != nil {
			return fmt.Errorf("%s: %w", action, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return errdefs.New(errdefs.KindNotFound, "project %d not found", id)
		}
		return auditTx(tx, actor, action, fmt.Sprintf("project:%d", id), details)
	})
}

// DeleteProject removes a project row; env vars and runs cascade with it.
// Filesystem cleanup belongs to the caller, which owns the project tree.
func (s *Store) DeleteProject(ctx context.Context, actor, id int64) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.Exec(`DELETE FROM projects WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete project %d: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return errdefs.New(errdefs.KindNotFound, "project %d not found", id)
		}
		return auditTx(tx, actor, "project.delete", fmt.Sprintf("project:%d", id), "")
	})
}
