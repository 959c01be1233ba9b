package store

import (
	"context"
	"fmt"

	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/types"
)

// ListAudit returns the newest audit records, most recent first
func (s *Store) ListAudit(ctx context.Context, limit int) ([]*types.AuditRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, ts, actor, action, target, details FROM audit_log ORDER BY id DESC LIMIT ?`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	defer rows.Close()

	var records []*types.AuditRecord
	for rows.Next() {
		var r types.AuditRecord
		var ts string
		if err := rows.Scan(&r.ID, &ts, &r.Actor, &r.Action, &r.Target, &r.Details); err != nil {
			return nil, err
		}
		r.TS = parseTime(ts)
		records = append(records, &r)
	}
	return records, rows.Err()
}
