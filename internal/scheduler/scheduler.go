// Package scheduler periodically refreshes watchlist snapshots.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"chanlens/internal/logger"
	"chanlens/internal/provider"
	"chanlens/internal/scanner"
	"chanlens/internal/snapshot"
	"chanlens/pkg/model"
)

// Saver persists refreshed series
type Saver interface {
	Save(ctx context.Context, snap snapshot.Snapshot) (snapshot.Snapshot, error)
}

// Scheduler runs the refresh job on a cron spec (seconds field included)
type Scheduler struct {
	cron    *cron.Cron
	scanner *scanner.Scanner
	store   Saver
	source  snapshot.Source
	symbols []string
	log     logger.Logger
	ctx     context.Context

	mu   sync.Mutex
	last *model.ScanResult
}

// New wires the scanner's fetches into the snapshot store
func New(ctx context.Context, sc *scanner.Scanner, store Saver, source snapshot.Source, symbols []string, log logger.Logger) *Scheduler {
	if log == nil {
		log = logger.Nop{}
	}
	s := &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		scanner: sc,
		store:   store,
		source:  source,
		symbols: symbols,
		log:     log,
		ctx:     ctx,
	}
	sc.SetFetchHook(s.save)
	return s
}

func (s *Scheduler) save(ctx context.Context, q provider.Query, bars []model.Bar) {
	snap := snapshot.NewRemote(s.source, q.Symbol, q.Interval, q.Limit, bars)
	if _, err := s.store.Save(ctx, snap); err != nil {
		s.log.Error(ctx, err, "saving refreshed snapshot", map[string]interface{}{"id": snap.ID})
	}
}

// Register schedules the refresh job
func (s *Scheduler) Register(spec string) error {
	if _, err := s.cron.AddFunc(spec, func() { s.RunNow() }); err != nil {
		return fmt.Errorf("register refresh task: %w", err)
	}
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info(s.ctx, "scheduler started", map[string]interface{}{"symbols": len(s.symbols)})
}

// Stop stops the cron and waits for a running refresh to finish
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info(s.ctx, "scheduler stopped")
}

// RunNow executes the refresh immediately
func (s *Scheduler) RunNow() *model.ScanResult {
	s.log.Info(s.ctx, "running refresh task", map[string]interface{}{"symbols": len(s.symbols)})

	res, err := s.scanner.Scan(s.ctx, s.symbols)
	if err != nil {
		s.log.Error(s.ctx, err, "refresh task failed")
		return nil
	}

	s.mu.Lock()
	s.last = res
	s.mu.Unlock()
	return res
}

// LastResult returns the most recent refresh, nil before the first run
func (s *Scheduler) LastResult() *model.ScanResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}
