package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"feedimport/internal/domain"
	"feedimport/internal/ingest"

	"github.com/robfig/cron/v3"
)

const (
	Timezone              = "UTC"
	TimezoneOffsetSeconds = 0
	defaultRunTimeout     = 15 * time.Minute
)

type Runner interface {
	RunSync(ctx context.Context) (domain.SyncResult, error)
}

type Scheduler struct {
	ctx        context.Context
	cron       *cron.Cron
	runner     Runner
	spec       string
	runTimeout time.Duration
	log        *slog.Logger
}

func New(
	ctx context.Context,
	runner Runner,
	spec string,
	runTimeout time.Duration,
	log *slog.Logger,
) *Scheduler {
	c := cron.New(cron.WithLocation(time.FixedZone(Timezone, TimezoneOffsetSeconds)))

	if runTimeout <= 0 {
		runTimeout = defaultRunTimeout
	}

	return &Scheduler{
		ctx:        ctx,
		cron:       c,
		runner:     runner,
		spec:       spec,
		runTimeout: runTimeout,
		log:        log,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.runSync); err != nil {
		return err
	}

	s.cron.Start()

	return nil
}

// Stop waits for a running sync to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) runSync() {
	ctx, cancel := context.WithTimeout(s.ctx, s.runTimeout)
	defer cancel()

	select {
	case <-ctx.Done():
		s.log.InfoContext(ctx, "Scheduler context is done",
			"error", ctx.Err())
		return
	default:
	}

	result, err := s.runner.RunSync(ctx)
	if errors.Is(err, ingest.ErrSyncRunning) {
		s.log.WarnContext(ctx, "Previous sync is still running",
			"spec", s.spec)
		return
	}
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to run sync",
			"error", err,
			"spec", s.spec)
		return
	}

	s.log.InfoContext(ctx, "Scheduled sync is finished",
		"spec", s.spec,
		"sourcesProcessed", result.SourcesProcessed,
		"itemsImported", result.ItemsImported)
}
