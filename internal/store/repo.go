package store

import (
	"context"
	"errors"
	"time"

	"github.com/itgoblin-develop/five-minute-brief-sub000/internal/domain"
)

// ErrNotFound is returned when a row addressed by id (and owner) does not exist.
var ErrNotFound = errors.New("not found")

// PreferenceRepo stores per-user digest preferences.
type PreferenceRepo interface {
	GetPreference(ctx context.Context, userID string) (*domain.Preference, error)
	UpsertPreference(ctx context.Context, p *domain.Preference) error
	// ListEnabledAt returns enabled preferences whose time of day is one of minutes.
	ListEnabledAt(ctx context.Context, minutes []string) ([]domain.Preference, error)
}

// SubscriptionRepo stores push endpoints. Rows are deactivated, never deleted.
type SubscriptionRepo interface {
	// UpsertSubscription inserts by endpoint or rebinds and reactivates an existing row.
	UpsertSubscription(ctx context.Context, s *domain.Subscription) (*domain.Subscription, error)
	ListActiveByUser(ctx context.Context, userID string) ([]domain.Subscription, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Subscription, error)
	Deactivate(ctx context.Context, id string) error
	DeactivateEndpoint(ctx context.Context, userID, endpoint string) (int64, error)
	DeactivateAllForUser(ctx context.Context, userID string) (int64, error)
}

// DeliveryLogRepo is the append-only delivery history with read state.
type DeliveryLogRepo interface {
	AppendLog(ctx context.Context, e *domain.LogEntry) error
	ListLog(ctx context.Context, userID string, limit, offset int) ([]domain.LogEntry, int, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, userID, id string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	HasCategorySince(ctx context.Context, userID, category string, since time.Time) (bool, error)
}

// ContentRepo is the read side of the news store.
type ContentRepo interface {
	LatestNews(ctx context.Context, n int) ([]domain.NewsItem, error)
}

// Repo bundles every store the service needs.
type Repo interface {
	PreferenceRepo
	SubscriptionRepo
	DeliveryLogRepo
	ContentRepo
	Close() error
}
