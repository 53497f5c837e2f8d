package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/itgoblin-develop/five-minute-brief-sub000/internal/domain"
)

// PreferenceSource finds enabled preferences by time of day.
type PreferenceSource interface {
	ListEnabledAt(ctx context.Context, minutes []string) ([]domain.Preference, error)
}

// DeliveryHistory answers whether a user already got a digest recently.
type DeliveryHistory interface {
	HasCategorySince(ctx context.Context, userID, category string, since time.Time) (bool, error)
}

// Matcher selects the users whose digest is due at a slot.
//
// With a zero window only preferences whose time equals the slot minute match, so a
// lost firing means that slot is not delivered that day. A positive window also
// accepts the preceding minutes of the same day and skips users that already
// received a digest inside the window.
type Matcher struct {
	prefs   PreferenceSource
	history DeliveryHistory
	window  int
	log     *zap.Logger
}

func NewMatcher(prefs PreferenceSource, history DeliveryHistory, window int, log *zap.Logger) *Matcher {
	if window < 0 {
		window = 0
	}
	return &Matcher{prefs: prefs, history: history, window: window, log: log}
}

// Match returns the due user ids for the slot computed from at.
func (m *Matcher) Match(ctx context.Context, slot domain.Slot, at time.Time) ([]string, error) {
	prefs, err := m.prefs.ListEnabledAt(ctx, slot.Lookback(m.window))
	if err != nil {
		return nil, fmt.Errorf("list preferences at %s: %w", slot.Minute, err)
	}

	users := make([]string, 0, len(prefs))
	for _, p := range prefs {
		if !p.MatchesWithin(slot, m.window) {
			continue
		}
		if m.window > 0 && m.history != nil {
			since := at.Add(-time.Duration(m.window+1) * time.Minute)
			sent, err := m.history.HasCategorySince(ctx, p.UserID, domain.CategoryDigest, since)
			if err != nil {
				// Unknown history: prefer a missed digest over a duplicate one.
				m.log.Warn("delivery history lookup failed, skipping user",
					zap.Error(err), zap.String("userID", p.UserID))
				continue
			}
			if sent {
				continue
			}
		}
		users = append(users, p.UserID)
	}
	return users, nil
}
