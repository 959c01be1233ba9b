package quota

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/config"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/errdefs"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/layout"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/store"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/types"
)

// Gate performs the admission checks that precede every state-mutating
// operation: ban, rate limit, gate state, daily counters, slots, disk.
type Gate struct {
	cfg    *config.Config
	store  *store.Store
	layout *layout.Manager

	mu       sync.Mutex
	limiters map[int64]*rate.Limiter
}

// NewGate creates an admission gate
func NewGate(cfg *config.Config, st *store.Store, lm *layout.Manager) *Gate {
	return &Gate{
		cfg:      cfg,
		store:    st,
		layout:   lm,
		limiters: make(map[int64]*rate.Limiter),
	}
}

// limiterFor returns the per-user flood limiter, creating it on first use.
// Five actions per second with a burst of ten absorbs normal command
// sequences while rejecting sub-second floods.
func (g *Gate) limiterFor(userID int64) *rate.Limiter {
	g.mu.Lock()
	defer g.mu.Unlock()

	l, ok := g.limiters[userID]
	if !ok {
		l = rate.NewLimiter(rate.Limit(5), 10)
		g.limiters[userID] = l
	}
	return l
}

// CheckRate rejects sub-second action floods from a user
func (g *Gate) CheckRate(userID int64) error {
	if !g.limiterFor(userID).AllowN(time.Now(), 1) {
		return errdefs.New(errdefs.KindRateLimited, "too many actions, slow down")
	}
	return nil
}

// CheckBanned rejects banned users uniformly
func (g *Gate) CheckBanned(ctx context.Context, userID int64) error {
	ban, err := g.store.GetBan(ctx, userID)
	if err != nil {
		return errdefs.Internal(err)
	}
	if ban != nil {
		return errdefs.New(errdefs.KindBanned, "you are banned: %s", ban.Reason)
	}
	return nil
}

// CheckGate rejects users who have not satisfied the admission gate
func (g *Gate) CheckGate(ctx context.Context, userID int64) error {
	st, err := g.store.GetUserState(ctx, userID)
	if err != nil {
		return errdefs.Internal(err)
	}
	if !st.TOSAccepted || !st.Verified {
		return errdefs.New(errdefs.KindGateRequired, "terms acknowledgement or verification missing")
	}
	return nil
}

// PlanFor returns the plan limits for a user, free on lookup failure
func (g *Gate) PlanFor(ctx context.Context, userID int64) types.PlanLimits {
	u, err := g.store.GetUser(ctx, userID)
	if err != nil {
		return g.cfg.PlanFor(false)
	}
	return g.cfg.PlanFor(u.Premium)
}

// CheckDailyUploads rejects a user who exhausted today's upload quota
func (g *Gate) CheckDailyUploads(ctx context.Context, userID int64) error {
	limits := g.PlanFor(ctx, userID)
	usage, err := g.store.GetDailyUsage(ctx, userID, store.DayKey(time.Now()))
	if err != nil {
		return errdefs.Internal(err)
	}
	if usage.Uploads >= limits.DailyUploads {
		return errdefs.New(errdefs.KindQuotaExceeded,
			"daily upload limit reached (%d per day)", limits.DailyUploads)
	}
	return nil
}

// CheckDailyInstalls rejects a user who exhausted today's install quota
func (g *Gate) CheckDailyInstalls(ctx context.Context, userID int64) error {
	limits := g.PlanFor(ctx, userID)
	usage, err := g.store.GetDailyUsage(ctx, userID, store.DayKey(time.Now()))
	if err != nil {
		return errdefs.Internal(err)
	}
	if usage.Installs >= limits.DailyInstalls {
		return errdefs.New(errdefs.KindQuotaExceeded,
			"daily install limit reached (%d per day)", limits.DailyInstalls)
	}
	return nil
}

// CheckProjectSlots rejects a user who already owns the plan's maximum
// number of projects
func (g *Gate) CheckProjectSlots(ctx context.Context, userID int64) error {
	limits := g.PlanFor(ctx, userID)
	n, err := g.store.CountProjectsByOwner(ctx, userID)
	if err != nil {
		return errdefs.Internal(err)
	}
	if n >= limits.Projects {
		return errdefs.New(errdefs.KindQuotaExceeded,
			"project limit reached (%d)", limits.Projects)
	}
	return nil
}

// CheckDisk rejects a commit that would push the user's tree past the plan
// disk cap. extra is the projected growth in bytes; pass a negative delta
// for updates that replace existing source.
func (g *Gate) CheckDisk(ctx context.Context, userID int64, extra int64) error {
	limits := g.PlanFor(ctx, userID)
	if !g.layout.WithinQuota(userID, extra, limits.DiskBytes) {
		return errdefs.New(errdefs.KindQuotaExceeded,
			"disk quota exceeded (%d MiB)", limits.DiskBytes/(1024*1024))
	}
	return nil
}

// CheckConcurrentRuns rejects a start when the user is already at the plan's
// concurrent-run limit. liveCount is the caller's point-in-time registry scan.
func (g *Gate) CheckConcurrentRuns(ctx context.Context, userID int64, liveCount int) error {
	limits := g.PlanFor(ctx, userID)
	if liveCount >= limits.ConcurrentRuns {
		return errdefs.New(errdefs.KindQuotaExceeded,
			"concurrent run limit reached (%d)", limits.ConcurrentRuns)
	}
	return nil
}

// RAMLimit returns the plan RAM cap in bytes for a user
func (g *Gate) RAMLimit(ctx context.Context, userID int64) int64 {
	return g.PlanFor(ctx, userID).RAMBytes
}
