package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/itgoblin-develop/five-minute-brief-sub000/internal/delivery"
	"github.com/itgoblin-develop/five-minute-brief-sub000/internal/domain"
)

var (
	// ErrRunInFlight is returned when a run is requested while another is still going.
	ErrRunInFlight = errors.New("digest run already in progress")
	// ErrStopped is returned by Start after Stop.
	ErrStopped = errors.New("scheduler stopped")
)

// ContentSource supplies the newest news items.
type ContentSource interface {
	LatestNews(ctx context.Context, n int) ([]domain.NewsItem, error)
}

// Deliverer fans a notification out to users.
type Deliverer interface {
	Deliver(ctx context.Context, userIDs []string, n domain.Notification) delivery.Report
}

// Alerter notifies operators about runs that need attention.
type Alerter interface {
	Alert(ctx context.Context, text string) error
}

// Config holds the scheduling parameters.
type Config struct {
	Zone        domain.Zone
	DigestSize  int
	MatchWindow int
	// Enabled is false when push is not configured; every firing is then a no-op.
	Enabled bool
}

// Scheduler fires a digest run at every minute boundary of its clock.
type Scheduler struct {
	matcher   *Matcher
	content   ContentSource
	deliverer Deliverer
	alerter   Alerter
	clock     Clock
	log       *zap.Logger
	cfg       Config

	running atomic.Bool

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	loopEnd chan struct{}
	runs    sync.WaitGroup
}

// New creates a Scheduler. A nil clock means the system clock; a nil alerter disables alerts.
func New(matcher *Matcher, content ContentSource, deliverer Deliverer, alerter Alerter, clock Clock, log *zap.Logger, cfg Config) *Scheduler {
	if clock == nil {
		clock = SystemClock{}
	}
	if cfg.DigestSize <= 0 {
		cfg.DigestSize = 3
	}
	return &Scheduler{
		matcher:   matcher,
		content:   content,
		deliverer: deliverer,
		alerter:   alerter,
		clock:     clock,
		log:       log,
		cfg:       cfg,
	}
}

// Start launches the trigger loop. It returns immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrStopped
	}
	if s.started {
		return nil
	}
	s.started = true

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.loopEnd = make(chan struct{})
	go s.loop(loopCtx)

	s.log.Info("scheduler started",
		zap.String("zone", s.cfg.Zone.String()),
		zap.Int("matchWindow", s.cfg.MatchWindow),
		zap.Bool("pushEnabled", s.cfg.Enabled),
	)
	return nil
}

// Stop prevents new runs and waits for the loop and any in-flight run to finish.
// An in-flight run is not cancelled, so pushes it already issued complete normally.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	cancel, loopEnd := s.cancel, s.loopEnd
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-loopEnd
	}
	s.runs.Wait()
	s.log.Info("scheduler stopped")
}

// loop waits for each minute boundary and fires once per boundary.
// Boundaries that pass while the process is not waiting are not replayed, and a
// slot equal to the previous firing's (wall clock stepped back) is not fired again.
func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.loopEnd)
	var last domain.Slot
	for {
		now := s.clock.Now()
		wait := domain.NextMinute(now).Sub(now)
		select {
		case <-ctx.Done():
			return
		case t := <-s.clock.After(wait):
			slot := s.cfg.Zone.SlotAt(t)
			if slot == last {
				s.log.Warn("clock moved back into an already fired minute, skipping",
					zap.Stringer("slot", slot), zap.Time("at", t))
				continue
			}
			last = slot
			s.fire(ctx, t)
		}
	}
}

func (s *Scheduler) fire(ctx context.Context, at time.Time) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.runs.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.runs.Done()
		// Shutdown stops new runs only; this one finishes with its own deadlines.
		if _, err := s.RunAt(context.WithoutCancel(ctx), at); errors.Is(err, ErrRunInFlight) {
			s.log.Warn("previous digest run still in progress, skipping firing",
				zap.Time("at", at))
		}
	}()
}

// RunReport summarizes one run.
type RunReport struct {
	Slot     domain.Slot
	Matched  int
	Skip     SkipReason
	Delivery delivery.Report
	Duration time.Duration
}

// SkipReason explains why a run ended before dispatching.
type SkipReason string

const (
	SkipNone          SkipReason = ""
	SkipNotConfigured SkipReason = "push not configured"
	SkipNoRecipients  SkipReason = "no recipients"
	SkipNoContent     SkipReason = "no content"
	SkipFailed        SkipReason = "failed"
)

// RunAt executes one run for the instant at. It returns ErrRunInFlight when
// another run has not finished yet. Failures inside the run, panics included,
// are logged and reported as SkipFailed rather than returned.
func (s *Scheduler) RunAt(ctx context.Context, at time.Time) (RunReport, error) {
	if !s.running.CompareAndSwap(false, true) {
		return RunReport{}, ErrRunInFlight
	}
	defer s.running.Store(false)
	return s.run(ctx, at), nil
}

func (s *Scheduler) run(ctx context.Context, at time.Time) (rep RunReport) {
	start := time.Now()
	rep.Slot = s.cfg.Zone.SlotAt(at)
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("digest run panicked", zap.Any("panic", r), zap.Stringer("slot", rep.Slot))
			rep.Skip = SkipFailed
		}
		rep.Duration = time.Since(start)
	}()

	if !s.cfg.Enabled {
		rep.Skip = SkipNotConfigured
		s.log.Debug("push not configured, skipping run", zap.Stringer("slot", rep.Slot))
		return rep
	}

	users, err := s.matcher.Match(ctx, rep.Slot, at)
	if err != nil {
		rep.Skip = SkipFailed
		s.log.Error("match recipients failed", zap.Error(err), zap.Stringer("slot", rep.Slot))
		return rep
	}
	rep.Matched = len(users)
	if len(users) == 0 {
		rep.Skip = SkipNoRecipients
		s.log.Debug("no recipients", zap.Stringer("slot", rep.Slot))
		return rep
	}

	items, err := s.content.LatestNews(ctx, s.cfg.DigestSize)
	if err != nil {
		rep.Skip = SkipFailed
		s.log.Error("fetch digest content failed", zap.Error(err), zap.Stringer("slot", rep.Slot))
		return rep
	}
	digest := domain.NewDigest(items)
	if digest == nil {
		rep.Skip = SkipNoContent
		s.log.Info("no news to deliver, skipping run",
			zap.Stringer("slot", rep.Slot), zap.Int("matched", len(users)))
		return rep
	}

	rep.Delivery = s.deliverer.Deliver(ctx, users, digest.Notification())
	s.log.Info("digest run finished",
		zap.Stringer("slot", rep.Slot),
		zap.Int("matched", rep.Matched),
		zap.Int("delivered", rep.Delivery.Delivered),
		zap.Int("skipped", rep.Delivery.Skipped),
		zap.Int("sent", rep.Delivery.Sent),
		zap.Int("gone", rep.Delivery.Gone),
		zap.Int("transient", rep.Delivery.Transient),
		zap.Int("errors", rep.Delivery.Errors),
	)
	s.alert(ctx, rep)
	return rep
}

func (s *Scheduler) alert(ctx context.Context, rep RunReport) {
	if s.alerter == nil || (rep.Delivery.Transient == 0 && rep.Delivery.Errors == 0) {
		return
	}
	if err := s.alerter.Alert(ctx, FormatAlert(rep)); err != nil {
		s.log.Warn("operator alert failed", zap.Error(err))
	}
}

// FormatAlert renders a run report for operators.
func FormatAlert(rep RunReport) string {
	d := rep.Delivery
	return fmt.Sprintf("digest run %s: %d matched, %d delivered, %d sent, %d gone, %d transient failures, %d store errors",
		rep.Slot, rep.Matched, d.Delivered, d.Sent, d.Gone, d.Transient, d.Errors)
}
