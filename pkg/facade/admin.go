package facade

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/shirou/gopsutil/v3/mem"

	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/errdefs"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/events"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/janitor"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/layout"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/types"
)

// AdminSetPremium toggles a user's premium plan
func (f *Facade) AdminSetPremium(ctx context.Context, actor, userID int64, premium bool) error {
	if err := f.requireAdmin(actor); err != nil {
		return err
	}
	return f.store.SetPremium(ctx, actor, userID, premium)
}

// AdminBan bans a user and stops all of their live projects
func (f *Facade) AdminBan(ctx context.Context, actor, userID int64, reason string) error {
	if err := f.requireAdmin(actor); err != nil {
		return err
	}
	if f.cfg.IsAdmin(userID) {
		return errdefs.New(errdefs.KindInvalid, "cannot ban an admin")
	}

	if err := f.store.Ban(ctx, actor, userID, reason); err != nil {
		return errdefs.Internal(err)
	}

	stopped := f.supervisor.StopAllFor(ctx, actor, userID, types.RunReasonBan)
	f.logger.Info().
		Int64("user_id", userID).
		Int("stopped", stopped).
		Msg("User banned")

	f.events.Publish(&events.Event{
		Type:    events.EventUserBanned,
		UserID:  userID,
		Message: fmt.Sprintf("you were banned: %s", reason),
	})
	return nil
}

// AdminUnban lifts a user's ban
func (f *Facade) AdminUnban(ctx context.Context, actor, userID int64) error {
	if err := f.requireAdmin(actor); err != nil {
		return err
	}
	if err := f.store.Unban(ctx, actor, userID); err != nil {
		return errdefs.Internal(err)
	}
	return nil
}

// AdminStop stops any project regardless of ownership
func (f *Facade) AdminStop(ctx context.Context, actor, projectID int64) error {
	if err := f.requireAdmin(actor); err != nil {
		return err
	}
	return f.supervisor.Stop(ctx, actor, projectID, types.RunReasonAdmin)
}

// AdminCleanupLogs trims every oversized project log. Returns how many files
// were trimmed.
func (f *Facade) AdminCleanupLogs(ctx context.Context, actor int64) (int, error) {
	if err := f.requireAdmin(actor); err != nil {
		return 0, err
	}

	trimmed, err := janitor.TrimLogs(f.layout)
	if err != nil {
		return 0, errdefs.Internal(err)
	}
	f.store.AppendAudit(ctx, actor, "admin.cleanup-logs", "", fmt.Sprintf("trimmed=%d", trimmed))
	return trimmed, nil
}

// AdminBroadcast pushes a message event to every subscriber
func (f *Facade) AdminBroadcast(ctx context.Context, actor int64, text string) error {
	if err := f.requireAdmin(actor); err != nil {
		return err
	}
	f.events.Publish(&events.Event{
		Type:    events.EventBroadcast,
		Message: text,
	})
	f.store.AppendAudit(ctx, actor, "admin.broadcast", "", "")
	return nil
}

// SystemStats is the admin overview of the service
type SystemStats struct {
	Users           int
	Projects        int
	RunningProjects int
	OpenRuns        int
	DiskUsedBytes   int64
	HostMemTotal    uint64
	HostMemUsed     uint64
}

// AdminSystemStats reports catalog, registry and host figures
func (f *Facade) AdminSystemStats(ctx context.Context, actor int64) (*SystemStats, error) {
	if err := f.requireAdmin(actor); err != nil {
		return nil, err
	}

	stats := &SystemStats{
		RunningProjects: f.supervisor.LiveCount(),
		DiskUsedBytes:   layout.DirSize(filepath.Join(f.layout.DataRoot(), "projects")),
	}

	var err error
	if stats.Users, err = f.store.CountUsers(ctx); err != nil {
		return nil, errdefs.Internal(err)
	}
	if stats.Projects, err = f.store.CountProjects(ctx); err != nil {
		return nil, errdefs.Internal(err)
	}
	if stats.OpenRuns, err = f.store.CountOpenRuns(ctx); err != nil {
		return nil, errdefs.Internal(err)
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		stats.HostMemTotal = vm.Total
		stats.HostMemUsed = vm.Used
	}
	return stats, nil
}
