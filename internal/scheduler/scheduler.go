// Package scheduler runs periodic housekeeping tasks.
package scheduler

import (
	"fmt"

	"github.com/amirphl/chart-exerciser/internal/utils"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// BarStore is the part of the bar store the stats task reads.
type BarStore interface {
	Symbols() []string
	CachedSeries() int
}

// SessionCounter reports live sessions.
type SessionCounter interface {
	ActiveSessions() int
}

// Stats is one snapshot of serving state.
type Stats struct {
	Tickers      int
	CachedSeries int
	Sessions     int
}

// Scheduler manages the cron tasks.
type Scheduler struct {
	Cron     *cron.Cron
	store    BarStore
	sessions SessionCounter
	logger   zerolog.Logger
}

func NewScheduler(store BarStore, sessions SessionCounter) *Scheduler {
	return &Scheduler{
		Cron:     cron.New(),
		store:    store,
		sessions: sessions,
		logger:   utils.GetLogger("scheduler"),
	}
}

// RegisterStats logs a Stats snapshot on spec, a standard cron expression
// or a descriptor such as "@every 1m".
func (s *Scheduler) RegisterStats(spec string) error {
	if _, err := s.Cron.AddFunc(spec, s.reportStats); err != nil {
		return fmt.Errorf("register stats task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.logger.Info().Int("tasks", len(s.Cron.Entries())).Msg("Scheduler started")
}

// Stop stops the cron scheduler and waits for running tasks.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.logger.Info().Msg("Scheduler stopped")
}

// Collect takes a Stats snapshot.
func (s *Scheduler) Collect() Stats {
	return Stats{
		Tickers:      len(s.store.Symbols()),
		CachedSeries: s.store.CachedSeries(),
		Sessions:     s.sessions.ActiveSessions(),
	}
}

func (s *Scheduler) reportStats() {
	st := s.Collect()
	s.logger.Info().
		Int("tickers", st.Tickers).
		Int("cached_series", st.CachedSeries).
		Int("sessions", st.Sessions).
		Msg("Serving stats")
}
