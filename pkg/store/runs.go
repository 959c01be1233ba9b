package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/log"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/types"
)

const runColumns = `id, project_id, pid, started_at, stopped_at, exit_code, reason`

func scanRun(row interface{ Scan(...interface{}) error }) (*types.Run, error) {
	var r types.Run
	var startedAt string
	var stoppedAt sql.NullString
	if err := row.Scan(&r.ID, &r.ProjectID, &r.PID, &startedAt, &stoppedAt, &r.ExitCode, &r.Reason); err != nil {
		return nil, err
	}
	r.StartedAt = parseTime(startedAt)
	if stoppedAt.Valid {
		t := parseTime(stoppedAt.String)
		r.StoppedAt = &t
	}
	return &r, nil
}

// StartRun opens a run row for a freshly spawned child. At most one open run
// may exist per project; a leftover open row is closed first so the invariant
// holds even after an unclean service exit.
func (s *Store) StartRun(ctx context.Context, projectID int64, childPID int) (int64, error) {
	var id int64
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			UPDATE runs SET stopped_at = ?, exit_code = -1, reason = ?
			WHERE project_id = ? AND stopped_at IS NULL`,
			now(), types.RunReasonShutdown, projectID)
		if err != nil {
			return fmt.Errorf("close stale runs: %w", err)
		}

		res, err := tx.Exec(`
			INSERT INTO runs (project_id, pid, started_at) VALUES (?, ?, ?)`,
			projectID, childPID, now())
		if err != nil {
			return fmt.Errorf("start run: %w", err)
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

// StopRun closes a run row with the observed exit code and reason.
// Closing an already-closed run is a no-op.
func (s *Store) StopRun(ctx context.Context, runID int64, exitCode int, reason types.RunReason) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE runs SET stopped_at = ?, exit_code = ?, reason = ?
		WHERE id = ? AND stopped_at IS NULL`,
		now(), exitCode, reason, runID)
	if err != nil {
		return fmt.Errorf("stop run %d: %w", runID, err)
	}
	return nil
}

// OpenRun returns the project's open run, or nil when none exists
func (s *Store) OpenRun(ctx context.Context, projectID int64) (*types.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE project_id = ? AND stopped_at IS NULL`, projectID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open run for project %d: %w", projectID, err)
	}
	return r, nil
}

// ListRuns returns a project's most recent runs, newest first
func (s *Store) ListRuns(ctx context.Context, projectID int64, limit int) ([]*types.Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE project_id = ? ORDER BY id DESC LIMIT ?`,
		projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*types.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// CloseStaleRuns closes every run row left open by a previous service
// process. Called once at bootstrap, before autostart.
func (s *Store) CloseStaleRuns(ctx context.Context) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET stopped_at = ?, exit_code = -1, reason = ?
		WHERE stopped_at IS NULL`,
		now(), types.RunReasonShutdown)
	if err != nil {
		return fmt.Errorf("close stale runs: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		logger := log.WithComponent("store")
		logger.Warn().Int64("count", n).Msg("Closed run rows left open by previous process")
	}
	return nil
}

// CountOpenRuns returns the number of open run rows
func (s *Store) CountOpenRuns(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM runs WHERE stopped_at IS NULL`).Scan(&n)
	return n, err
}
