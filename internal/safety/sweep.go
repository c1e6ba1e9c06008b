package safety

import (
	"github.com/robfig/cron/v3"

	"github.com/harrison/orchestrator/internal/logger"
)

// Sweeper runs Limits.PruneExpired on a cron schedule, replacing a
// hand-rolled time.Ticker loop with a cron-expression configuration knob
// (Config.SweepInterval, e.g. "@every 10s") so deployments can tune sweep
// cadence the same way they'd schedule any other recurring background job.
type Sweeper struct {
	cron *cron.Cron
	log  logger.Logger
}

// NewSweeper builds (but does not start) a Sweeper that prunes limits on
// cfg.SweepInterval.
func NewSweeper(limits *Limits, cfg Config, log logger.Logger) (*Sweeper, error) {
	c := cron.New()
	_, err := c.AddFunc(cfg.SweepInterval, func() {
		limits.PruneExpired()
	})
	if err != nil {
		return nil, err
	}
	return &Sweeper{cron: c, log: log}, nil
}

// Start begins the cron scheduler in its own goroutine.
func (s *Sweeper) Start() {
	s.cron.Start()
	if s.log != nil {
		s.log.Debug("safety sweep started")
	}
}

// Stop halts the scheduler, waiting for any in-flight sweep to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
