package watchdog

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/config"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/log"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/quota"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/supervisor"
)

// Watchdog periodically sweeps live runtimes and kills any whose resident
// memory exceeds the owner's plan limit
type Watchdog struct {
	cfg        *config.Config
	supervisor *supervisor.Supervisor
	gate       *quota.Gate
	logger     zerolog.Logger
	stopCh     chan struct{}
}

// New creates a resource watchdog
func New(cfg *config.Config, sup *supervisor.Supervisor, gate *quota.Gate) *Watchdog {
	return &Watchdog{
		cfg:        cfg,
		supervisor: sup,
		gate:       gate,
		logger:     log.WithComponent("watchdog"),
		stopCh:     make(chan struct{}),
	}
}

// Start begins the sweep loop
func (w *Watchdog) Start() {
	go w.run()
}

// Stop stops the watchdog
func (w *Watchdog) Stop() {
	close(w.stopCh)
}

func (w *Watchdog) run() {
	ticker := time.NewTicker(w.cfg.WatchdogInterval)
	defer ticker.Stop()

	w.logger.Info().Dur("interval", w.cfg.WatchdogInterval).Msg("Watchdog started")

	for {
		select {
		case <-ticker.C:
			w.sweep()
		case <-w.stopCh:
			w.logger.Info().Msg("Watchdog stopped")
			return
		}
	}
}

// sweep samples every live runtime once. Sampling errors are logged and
// swallowed; a failed sample never kills a project.
func (w *Watchdog) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.WatchdogInterval)
	defer cancel()

	for _, info := range w.supervisor.ListRunning() {
		rss, err := supervisor.TreeRSS(info.PID)
		if err != nil {
			// The child may have exited between the snapshot and the
			// sample
			w.logger.Debug().Err(err).Int64("project_id", info.ProjectID).Msg("RSS sample failed")
			continue
		}

		limit := w.gate.RAMLimit(ctx, info.OwnerID)
		if rss <= limit {
			continue
		}

		w.logger.Warn().
			Int64("project_id", info.ProjectID).
			Int64("rss_bytes", rss).
			Int64("limit_bytes", limit).
			Msg("RAM limit exceeded, killing process tree")

		w.supervisor.KillForRAM(info.ProjectID, rss, limit)
	}
}
