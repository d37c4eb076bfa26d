package scheduler

import (
	"fmt"
	"log"
	"strings"

	"CandleLedger/internal/notifier"
	"CandleLedger/internal/portfolio"

	"github.com/robfig/cron/v3"
)

// Ingestor is the one capability the scheduler needs from the ingestion
// side: run one full update pass and report inserted rows plus per-symbol
// failures.
type Ingestor interface {
	RunOnce() (inserted int, failures []string)
}

// Scheduler runs the periodic update-and-snapshot cycle.
type Scheduler struct {
	Cron        *cron.Cron
	Ingestor    Ingestor
	Snapshotter *portfolio.Snapshotter
	Notifier    notifier.Notifier
}

// NewScheduler creates a Scheduler.
func NewScheduler(ing Ingestor, snap *portfolio.Snapshotter, n notifier.Notifier) *Scheduler {
	return &Scheduler{
		Cron:        cron.New(cron.WithSeconds()),
		Ingestor:    ing,
		Snapshotter: snap,
		Notifier:    n,
	}
}

// Register registers the update cycle on the given cron spec.
func (s *Scheduler) Register(updateCron string) error {
	if _, err := s.Cron.AddFunc(updateCron, s.Cycle); err != nil {
		return fmt.Errorf("register update cycle: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop stops the cron scheduler gracefully.
func (s *Scheduler) Stop() {
	s.Cron.Stop()
	log.Println("[INFO] scheduler stopped")
}

// Cycle runs one ingestion pass over all symbols, writes a portfolio
// snapshot, and reports the drawdown so far. Any failure is logged and
// reported; the cycle itself always completes.
func (s *Scheduler) Cycle() {
	log.Println("[INFO] running update cycle")

	inserted, failures := s.Ingestor.RunOnce()
	if len(failures) > 0 {
		s.trySend("ingestion failures:\n" + strings.Join(failures, "\n"))
	}

	snap, err := s.Snapshotter.Take()
	if err != nil {
		log.Printf("[ERROR] snapshot: %v", err)
		s.trySend(fmt.Sprintf("snapshot failed: %v", err))
		return
	}
	log.Printf("[INFO] cycle done: +%d bars | equity=%.2f unreal=%.2f exposure=%.2f",
		inserted, snap.Equity, snap.Unrealized, snap.Exposure)

	dd, points, err := s.Snapshotter.DrawdownReport()
	if err != nil {
		log.Printf("[ERROR] drawdown report: %v", err)
		return
	}
	if points >= 2 {
		log.Printf("[INFO] max drawdown: %.2f (%.2f%%) from %d to %d",
			dd.Abs, dd.Pct*100, dd.PeakTS, dd.TroughTS)
	}

	s.trySend(fmt.Sprintf("cycle done: +%d bars, equity %.2f, exposure %.2f", inserted, snap.Equity, snap.Exposure))
}

func (s *Scheduler) trySend(text string) {
	if err := s.Notifier.Send(text); err != nil {
		log.Printf("[ERROR] send notification: %v", err)
	}
}
