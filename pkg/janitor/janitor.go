package janitor

import (
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/ingest"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/layout"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/log"
)

// stagingTTL is how long a parked upload may wait for an entrypoint pick
// before its staging directory is reaped
const stagingTTL = 30 * time.Minute

// Janitor runs the periodic housekeeping jobs: stale staging cleanup and
// oversized log trimming
type Janitor struct {
	cron     *cron.Cron
	ingestor *ingest.Ingestor
	layout   *layout.Manager
	logger   zerolog.Logger
}

// New creates a janitor with its jobs registered but not yet running
func New(ing *ingest.Ingestor, lm *layout.Manager) (*Janitor, error) {
	j := &Janitor{
		cron:     cron.New(),
		ingestor: ing,
		layout:   lm,
		logger:   log.WithComponent("janitor"),
	}

	if _, err := j.cron.AddFunc("@every 5m", j.sweepStagings); err != nil {
		return nil, err
	}
	if _, err := j.cron.AddFunc("@daily", j.trimLogs); err != nil {
		return nil, err
	}
	return j, nil
}

// Start begins the schedule
func (j *Janitor) Start() {
	j.cron.Start()
}

// Stop halts the schedule; running jobs finish
func (j *Janitor) Stop() {
	j.cron.Stop()
}

func (j *Janitor) sweepStagings() {
	j.ingestor.SweepStaleStagings(stagingTTL)
}

func (j *Janitor) trimLogs() {
	trimmed, err := TrimLogs(j.layout)
	if err != nil {
		j.logger.Error().Err(err).Msg("Log trim sweep failed")
		return
	}
	if trimmed > 0 {
		j.logger.Info().Int("trimmed", trimmed).Msg("Trimmed oversized log files")
	}
}
