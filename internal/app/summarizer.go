package app

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/multiversa/cortex/internal/core"
	"github.com/multiversa/cortex/internal/services"
)

// Summarizer periodically sweeps all users and archives any context backlog
// that has crossed the summarization threshold. The sweep uses the
// non-forced transition, so users below the threshold are untouched.
type Summarizer struct {
	db        core.DbClient
	memory    *services.MemoryService
	scheduler gocron.Scheduler
	logger    *zap.Logger
}

func NewSummarizer(db core.DbClient, memory *services.MemoryService, interval time.Duration, logger *zap.Logger) (*Summarizer, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	s := &Summarizer{
		db:        db,
		memory:    memory,
		scheduler: scheduler,
		logger:    logger,
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(s.sweep),
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Summarizer) Start() {
	s.scheduler.Start()
}

func (s *Summarizer) Stop() {
	_ = s.scheduler.Shutdown()
}

func (s *Summarizer) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	userIDs, err := s.db.ListProfileIDs(ctx)
	if err != nil {
		s.logger.Error("summarizer sweep: list profiles failed", zap.Error(err))
		return
	}

	archived := 0
	for _, userID := range userIDs {
		mem, err := s.memory.SummarizeAndArchive(ctx, userID, false)
		if err != nil {
			s.logger.Warn("summarizer sweep: archive failed",
				zap.String("user_id", userID), zap.Error(err))
			continue
		}
		if mem != nil {
			archived++
		}
	}
	s.logger.Info("summarizer sweep done",
		zap.Int("users", len(userIDs)), zap.Int("archived", archived))
}
