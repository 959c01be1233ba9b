package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/errdefs"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/types"
)

// UpsertUser records a user on first contact and refreshes handle and
// last-seen on every subsequent one. Users are never deleted.
func (s *Store) UpsertUser(ctx context.Context, id int64, handle string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, handle, premium, created_at, last_seen)
		VALUES (?, ?, 0, ?, ?)
		ON CONFLICT(id) DO UPDATE SET handle = excluded.handle, last_seen = excluded.last_seen`,
		id, handle, now(), now())
	if err != nil {
		return fmt.Errorf("upsert user %d: %w", id, err)
	}
	return nil
}

// GetUser returns a user by id
func (s *Store) GetUser(ctx context.Context, id int64) (*types.User, error) {
	var u types.User
	var createdAt, lastSeen string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, handle, premium, created_at, last_seen FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Handle, &u.Premium, &createdAt, &lastSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errdefs.New(errdefs.KindNotFound, "user %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	u.CreatedAt = parseTime(createdAt)
	u.LastSeen = parseTime(lastSeen)
	return &u, nil
}

// SetPremium toggles a user's premium flag
func (s *Store) SetPremium(ctx context.Context, actor, id int64, premium bool) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.Exec(`UPDATE users SET premium = ? WHERE id = ?`, premium, id)
		if err != nil {
			return fmt.Errorf("set premium for %d: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return errdefs.New(errdefs.KindNotFound, "user %d not found", id)
		}
		return auditTx(tx, actor, "user.set-premium", fmt.Sprintf("user:%d", id), fmt.Sprintf("premium=%t", premium))
	})
}

// CountUsers returns the number of known users
func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

// Ban bans a user. Banning is idempotent; the latest reason wins.
func (s *Store) Ban(ctx context.Context, actor, userID int64, reason string) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO bans (user_id, reason, banned_by, banned_at) VALUES (?, ?, ?, ?)
			ON CONFLICT(user_id) DO UPDATE SET reason = excluded.reason,
				banned_by = excluded.banned_by, banned_at = excluded.banned_at`,
			userID, reason, actor, now())
		if err != nil {
			return fmt.Errorf("ban user %d: %w", userID, err)
		}
		return auditTx(tx, actor, "user.ban", fmt.Sprintf("user:%d", userID), reason)
	})
}

// Unban removes a user's ban
func (s *Store) Unban(ctx context.Context, actor, userID int64) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM bans WHERE user_id = ?`, userID); err != nil {
			return fmt.Errorf("unban user %d: %w", userID, err)
		}
		return auditTx(tx, actor, "user.unban", fmt.Sprintf("user:%d", userID), "")
	})
}

// GetBan returns the user's ban, or nil when not banned
func (s *Store) GetBan(ctx context.Context, userID int64) (*types.Ban, error) {
	var b types.Ban
	var bannedAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, reason, banned_by, banned_at FROM bans WHERE user_id = ?`, userID).
		Scan(&b.UserID, &b.Reason, &b.BannedBy, &bannedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get ban for %d: %w", userID, err)
	}
	b.BannedAt = parseTime(bannedAt)
	return &b, nil
}

// IsBanned reports whether the user is currently banned
func (s *Store) IsBanned(ctx context.Context, userID int64) (bool, error) {
	ban, err := s.GetBan(ctx, userID)
	return ban != nil, err
}

// GetUserState returns the admission-gate state for a user, zero-valued when
// the user has not progressed through the gate yet
func (s *Store) GetUserState(ctx context.Context, userID int64) (*types.UserState, error) {
	st := &types.UserState{UserID: userID}
	var verifiedAt sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT tos_accepted, verified, verified_at FROM user_state WHERE user_id = ?`, userID).
		Scan(&st.TOSAccepted, &st.Verified, &verifiedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return st, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user state for %d: %w", userID, err)
	}
	if verifiedAt.Valid {
		st.VerifiedAt = parseTime(verifiedAt.String)
	}
	return st, nil
}

// SetTOSAccepted records terms acknowledgement
func (s *Store) SetTOSAccepted(ctx context.Context, userID int64, accepted bool) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_state (user_id, tos_accepted) VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET tos_accepted = excluded.tos_accepted`,
		userID, accepted)
	if err != nil {
		return fmt.Errorf("set tos for %d: %w", userID, err)
	}
	return nil
}

// SetVerified records membership verification
func (s *Store) SetVerified(ctx context.Context, userID int64, verified bool) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_state (user_id, verified, verified_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET verified = excluded.verified, verified_at = excluded.verified_at`,
		userID, verified, now())
	if err != nil {
		return fmt.Errorf("set verified for %d: %w", userID, err)
	}
	return nil
}

// GetDailyUsage returns a user's usage counters for the given day key
func (s *Store) GetDailyUsage(ctx context.Context, userID int64, day string) (*types.DailyUsage, error) {
	u := &types.DailyUsage{UserID: userID, Day: day}
	err := s.db.QueryRowContext(ctx,
		`SELECT uploads, installs FROM daily_usage WHERE user_id = ? AND day = ?`, userID, day).
		Scan(&u.Uploads, &u.Installs)
	if errors.Is(err, sql.ErrNoRows) {
		return u, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get daily usage for %d: %w", userID, err)
	}
	return u, nil
}

// IncUploads increments today's upload counter for a user
func (s *Store) IncUploads(ctx context.Context, userID int64, day string) error {
	return s.incUsage(ctx, userID, day, "uploads")
}

// IncInstalls increments today's install counter for a user
func (s *Store) IncInstalls(ctx context.Context, userID int64, day string) error {
	return s.incUsage(ctx, userID, day, "installs")
}

func (s *Store) incUsage(ctx context.Context, userID int64, day, column string) error {
	// column is one of two compile-time constants, never user input
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO daily_usage (user_id, day, %[1]s) VALUES (?, ?, 1)
		ON CONFLICT(user_id, day) DO UPDATE SET %[1]s = %[1]s + 1`, column),
		userID, day)
	if err != nil {
		return fmt.Errorf("increment %s for %d: %w", column, userID, err)
	}
	return nil
}
