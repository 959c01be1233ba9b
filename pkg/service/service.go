package service

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/config"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/events"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/facade"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/ingest"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/janitor"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/layout"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/log"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/metrics"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/quota"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/sandbox"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/secretbox"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/store"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/supervisor"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/watchdog"
)

// Service is the fully wired hosting supervisor. The transport front end
// drives Facade and consumes Events; everything else runs on its own.
type Service struct {
	Config     *config.Config
	Store      *store.Store
	Layout     *layout.Manager
	Gate       *quota.Gate
	Sandbox    *sandbox.Provisioner
	Supervisor *supervisor.Supervisor
	Ingestor   *ingest.Ingestor
	Facade     *facade.Facade
	Events     *events.Broker

	watchdog  *watchdog.Watchdog
	janitor   *janitor.Janitor
	collector *metrics.Collector
	logger    zerolog.Logger
}

// Bootstrap assembles every component from configuration. Process-scoped
// singletons (catalog, encryption key, registry) are initialized here, once,
// rather than lazily at first use.
func Bootstrap(cfg *config.Config) (*Service, error) {
	box, err := secretbox.NewFromKeyMaterial(cfg.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("encryption key: %w", err)
	}

	st, err := store.Open(cfg.DBPath, box)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}

	// Run rows left open by an unclean exit violate the one-open-run
	// invariant; repair before anything spawns
	if err := st.CloseStaleRuns(context.Background()); err != nil {
		st.Close()
		return nil, fmt.Errorf("repair catalog: %w", err)
	}

	lm := layout.NewManager(cfg.DataRoot)
	gate := quota.NewGate(cfg, st, lm)
	sb := sandbox.NewProvisioner(cfg, st, lm, gate)
	broker := events.NewBroker()
	sup := supervisor.New(cfg, st, lm, gate, sb, broker)
	ing := ingest.NewIngestor(cfg, st, lm, gate, nil)
	fc := facade.New(cfg, st, lm, gate, sb, sup, ing, broker)

	jan, err := janitor.New(ing, lm)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("janitor: %w", err)
	}

	return &Service{
		Config:     cfg,
		Store:      st,
		Layout:     lm,
		Gate:       gate,
		Sandbox:    sb,
		Supervisor: sup,
		Ingestor:   ing,
		Facade:     fc,
		Events:     broker,
		watchdog:   watchdog.New(cfg, sup, gate),
		janitor:    jan,
		collector:  metrics.NewCollector(sup, st),
		logger:     log.WithComponent("service"),
	}, nil
}

// Start launches the background tasks and the boot-time autostart pass
func (s *Service) Start(ctx context.Context) {
	s.Events.Start()
	s.watchdog.Start()
	s.janitor.Start()
	s.collector.Start()

	if s.Config.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			if err := http.ListenAndServe(s.Config.MetricsAddr, mux); err != nil {
				s.logger.Error().Err(err).Msg("Metrics endpoint failed")
			}
		}()
	}

	go s.Supervisor.AutostartAll(ctx)

	s.logger.Info().
		Str("data_root", s.Config.DataRoot).
		Int("admins", len(s.Config.AdminIDs)).
		Msg("Hosting supervisor started")
}

// Shutdown winds the service down. Children keep running unless
// stopChildren is set; once spawned they are externally owned.
func (s *Service) Shutdown(ctx context.Context, stopChildren bool) {
	s.Supervisor.Shutdown(ctx, stopChildren)
	s.watchdog.Stop()
	s.janitor.Stop()
	s.collector.Stop()
	s.Events.Stop()

	if err := s.Store.Close(); err != nil {
		s.logger.Error().Err(err).Msg("Catalog close failed")
	}
}
