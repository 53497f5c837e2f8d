package delivery

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/itgoblin-develop/five-minute-brief-sub000/internal/domain"
	"github.com/itgoblin-develop/five-minute-brief-sub000/internal/push"
	"github.com/itgoblin-develop/five-minute-brief-sub000/internal/store"
)

// Deactivator is the part of the subscription store the reconciler writes to.
type Deactivator interface {
	Deactivate(ctx context.Context, id string) error
}

// Reconciler turns delivery outcomes into subscription state.
// Only a gone outcome changes anything; transient failures leave the row alone.
type Reconciler struct {
	subs Deactivator
	log  *zap.Logger
}

func NewReconciler(subs Deactivator, log *zap.Logger) *Reconciler {
	return &Reconciler{subs: subs, log: log}
}

// Reconcile reports whether the subscription was deactivated.
func (r *Reconciler) Reconcile(ctx context.Context, sub domain.Subscription, outcome push.Outcome) bool {
	if outcome != push.OutcomeGone {
		return false
	}
	err := r.subs.Deactivate(ctx, sub.ID)
	switch {
	case err == nil:
		r.log.Info("subscription expired, deactivated",
			zap.String("userID", sub.UserID),
			zap.String("subscriptionID", sub.ID),
		)
		return true
	case errors.Is(err, store.ErrNotFound):
		return false
	default:
		r.log.Error("deactivate expired subscription failed",
			zap.Error(err),
			zap.String("subscriptionID", sub.ID),
		)
		return false
	}
}
