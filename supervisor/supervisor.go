package supervisor

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hetzpvp/Mt2-Fishbot/domain/fishing"
)

// MaxSessions bounds how many windows one supervisor drives at once.
const MaxSessions = 8

// Runner is one drivable session. *fishing.Session satisfies it.
type Runner interface {
	Run(interval time.Duration) fishing.Report
}

// Supervisor owns the session goroutines and the shared control switch.
// Each session runs on its own goroutine with its own polling loop; the
// supervisor never serializes their ticks.
type Supervisor struct {
	control  *Control
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	started bool
	wg      sync.WaitGroup
	reports []fishing.Report
}

// New builds a supervisor around a shared control switch.
func New(control *Control, interval time.Duration, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &Supervisor{control: control, interval: interval, logger: logger}
}

// Control returns the shared switch, for wiring hotkeys and signals.
func (s *Supervisor) Control() *Control { return s.control }

// StartAll launches one goroutine per session. It may be called once; the
// session count is capped at MaxSessions.
func (s *Supervisor) StartAll(sessions []Runner) error {
	if len(sessions) == 0 {
		return fmt.Errorf("supervisor: no sessions to run")
	}
	if len(sessions) > MaxSessions {
		return fmt.Errorf("supervisor: %d sessions exceeds limit of %d", len(sessions), MaxSessions)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("supervisor: already started")
	}
	s.started = true
	s.reports = make([]fishing.Report, len(sessions))
	for i, sess := range sessions {
		s.wg.Add(1)
		go func(idx int, r Runner) {
			defer s.wg.Done()
			report := r.Run(s.interval)
			s.mu.Lock()
			s.reports[idx] = report
			s.mu.Unlock()
			s.logger.Info("session finished",
				"session", idx,
				"reason", report.Reason.String(),
				"rounds", report.Stats.Rounds,
				"catches", report.Stats.Catches,
				"bait_remaining", report.BaitRemaining)
		}(i, sess)
	}
	s.logger.Info("sessions started", "count", len(sessions))
	return nil
}

// Wait blocks until every session has stopped on its own and returns their
// reports in start order.
func (s *Supervisor) Wait() []fishing.Report {
	s.wg.Wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reports
}

// StopAll requests a stop and waits for all sessions to drain. Safe to call
// more than once.
func (s *Supervisor) StopAll() []fishing.Report {
	s.control.RequestStop()
	return s.Wait()
}
