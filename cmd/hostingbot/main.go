package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/config"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/log"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/service"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "hostingbot",
	Short: "Hostingbot - multi-tenant hosting supervisor for user programs",
	Long: `Hostingbot hosts user-supplied programs: it isolates each project on
disk, provisions a per-project dependency sandbox, runs the program as a
supervised long-lived process, streams its output to a persistent log,
enforces per-user quotas, and restarts crashed processes with exponential
backoff.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Hostingbot version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	serveCmd.Flags().Bool("stop-on-exit", false, "Stop every live project before exiting instead of leaving children running")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the hosting supervisor",
	Long: `Run the hosting supervisor: open the catalog, start every
autostart-flagged project, and supervise until interrupted.

All configuration comes from HOSTING_* environment variables; the only hard
requirement is HOSTING_SECRET_KEY, the key sealing environment variables at
rest.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		stopOnExit, _ := cmd.Flags().GetBool("stop-on-exit")

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		log.Init(log.Config{
			Level:      log.Level(cfg.LogLevel),
			JSONOutput: cfg.LogJSON,
		})

		svc, err := service.Bootstrap(cfg)
		if err != nil {
			return err
		}

		ctx := context.Background()
		svc.Start(ctx)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		log.Logger.Info().Str("signal", sig.String()).Msg("Shutting down")

		svc.Shutdown(ctx, stopOnExit)
		return nil
	},
}
