// Package delivery fans a notification out to every active device of a set of
// users, reconciles expired endpoints and writes one history entry per user.
package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/itgoblin-develop/five-minute-brief-sub000/internal/domain"
	"github.com/itgoblin-develop/five-minute-brief-sub000/internal/push"
)

// Subscriptions is the part of the subscription store the dispatcher reads and writes.
type Subscriptions interface {
	Deactivator
	ListActiveByUser(ctx context.Context, userID string) ([]domain.Subscription, error)
}

// LogWriter appends delivery history.
type LogWriter interface {
	AppendLog(ctx context.Context, e *domain.LogEntry) error
}

// Options tunes fan-out and the payload appearance.
type Options struct {
	Appearance        push.Appearance
	AttemptTimeout    time.Duration
	UserConcurrency   int
	DeviceConcurrency int
}

func (o Options) withDefaults() Options {
	if o.AttemptTimeout <= 0 {
		o.AttemptTimeout = 10 * time.Second
	}
	if o.UserConcurrency <= 0 {
		o.UserConcurrency = 4
	}
	if o.DeviceConcurrency <= 0 {
		o.DeviceConcurrency = 4
	}
	return o
}

// Dispatcher delivers notifications through a push transport.
type Dispatcher struct {
	subs       Subscriptions
	logs       LogWriter
	transport  push.Transport
	reconciler *Reconciler
	opts       Options
	log        *zap.Logger
}

func NewDispatcher(subs Subscriptions, logs LogWriter, transport push.Transport, log *zap.Logger, opts Options) *Dispatcher {
	return &Dispatcher{
		subs:       subs,
		logs:       logs,
		transport:  transport,
		reconciler: NewReconciler(subs, log),
		opts:       opts.withDefaults(),
		log:        log,
	}
}

// UserResult describes what happened for one user.
type UserResult struct {
	UserID    string
	Skipped   bool // no active subscription, nothing attempted
	Attempts  int
	Sent      int
	Gone      int
	Transient int
	Entry     *domain.LogEntry // nil unless the history entry was written
	Err       error            // store failure; push failures are counted, not returned
}

// Report aggregates a delivery over many users.
type Report struct {
	Users     int
	Skipped   int
	Delivered int // users that received a history entry
	Attempts  int
	Sent      int
	Gone      int
	Transient int
	Errors    int
}

func (r *Report) add(u UserResult) {
	if u.Skipped {
		r.Skipped++
	}
	if u.Entry != nil {
		r.Delivered++
	}
	if u.Err != nil {
		r.Errors++
	}
	r.Attempts += u.Attempts
	r.Sent += u.Sent
	r.Gone += u.Gone
	r.Transient += u.Transient
}

// Deliver sends n to every user in userIDs. Users are independent: a failure for one
// never stops the others. The notification is shared read-only by all workers.
func (d *Dispatcher) Deliver(ctx context.Context, userIDs []string, n domain.Notification) Report {
	var (
		mu  sync.Mutex
		rep = Report{Users: len(userIDs)}
		g   errgroup.Group
	)
	g.SetLimit(d.opts.UserConcurrency)
	for _, id := range userIDs {
		g.Go(func() error {
			res := d.DeliverToUser(ctx, id, n)
			mu.Lock()
			rep.add(res)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return rep
}

// DeliverToUser attempts every active subscription of the user and, when at least one
// existed, writes exactly one history entry regardless of the individual outcomes.
func (d *Dispatcher) DeliverToUser(ctx context.Context, userID string, n domain.Notification) UserResult {
	res := UserResult{UserID: userID}

	subs, err := d.subs.ListActiveByUser(ctx, userID)
	if err != nil {
		res.Err = fmt.Errorf("list subscriptions of %s: %w", userID, err)
		d.log.Error("list subscriptions failed", zap.Error(err), zap.String("userID", userID))
		return res
	}
	if len(subs) == 0 {
		res.Skipped = true
		return res
	}

	payload := push.NewPayload(n, d.opts.Appearance)
	raw, err := payload.Encode()
	if err != nil {
		res.Err = fmt.Errorf("encode payload: %w", err)
		return res
	}

	outcomes := make([]push.Outcome, len(subs))
	var g errgroup.Group
	g.SetLimit(d.opts.DeviceConcurrency)
	for i, sub := range subs {
		g.Go(func() error {
			outcomes[i] = d.attempt(ctx, sub, raw)
			return nil
		})
	}
	_ = g.Wait()

	for _, o := range outcomes {
		res.Attempts++
		switch o {
		case push.OutcomeSuccess:
			res.Sent++
		case push.OutcomeGone:
			res.Gone++
		default:
			res.Transient++
		}
	}

	data, _ := json.Marshal(payload.Data)
	entry := &domain.LogEntry{
		UserID:   userID,
		Title:    n.Title,
		Body:     n.Body,
		Category: n.Category,
		Payload:  data,
	}
	if err := d.logs.AppendLog(ctx, entry); err != nil {
		res.Err = fmt.Errorf("append delivery log for %s: %w", userID, err)
		d.log.Error("append delivery log failed", zap.Error(err), zap.String("userID", userID))
		return res
	}
	res.Entry = entry
	return res
}

// attempt performs one bounded push and applies its consequence to the subscription.
func (d *Dispatcher) attempt(ctx context.Context, sub domain.Subscription, payload []byte) (outcome push.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("push attempt panicked",
				zap.Any("panic", r),
				zap.String("subscriptionID", sub.ID),
			)
			outcome = push.OutcomeTransient
		}
	}()

	actx, cancel := context.WithTimeout(ctx, d.opts.AttemptTimeout)
	err := d.transport.Send(actx, sub, payload)
	cancel()

	outcome = push.Classify(err)
	switch outcome {
	case push.OutcomeGone:
		d.reconciler.Reconcile(ctx, sub, outcome)
	case push.OutcomeTransient:
		d.log.Warn("push attempt failed",
			zap.Error(err),
			zap.String("userID", sub.UserID),
			zap.String("subscriptionID", sub.ID),
		)
	}
	return outcome
}
