package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/itgoblin-develop/five-minute-brief-sub000/internal/domain"
)

// newTestRepo opens a fresh database in a temp dir and closes it when the test ends.
func newTestRepo(t *testing.T) *SQLiteRepo {
	t.Helper()
	r, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test repo: %v", err)
	}
	t.Cleanup(func() {
		if err := r.Close(); err != nil {
			t.Errorf("close test repo: %v", err)
		}
	})
	return r
}

func subFor(user, endpoint string) *domain.Subscription {
	return &domain.Subscription{UserID: user, Endpoint: endpoint, AuthSecret: "auth-" + user, EncryptionKey: "p256-" + user}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twice.db")
	ctx := context.Background()
	first, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	_ = first.Close()

	second, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	_ = second.Close()
}

func TestUpsertSubscription_SameEndpointRebinds(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	first, err := r.UpsertSubscription(ctx, subFor("alice", "https://push.example.com/ep1"))
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if err := r.Deactivate(ctx, first.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	second, err := r.UpsertSubscription(ctx, subFor("bob", "https://push.example.com/ep1"))
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("endpoint produced a second row: %s vs %s", second.ID, first.ID)
	}
	if second.UserID != "bob" || !second.IsActive || second.AuthSecret != "auth-bob" {
		t.Fatalf("row not rebound/reactivated: %+v", second)
	}

	aliceRows, _ := r.ListByUser(ctx, "alice")
	bobRows, _ := r.ListByUser(ctx, "bob")
	if len(aliceRows) != 0 || len(bobRows) != 1 {
		t.Fatalf("want 0 alice rows and 1 bob row, got %d and %d", len(aliceRows), len(bobRows))
	}
}

func TestDeactivateFiltersActiveList(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	a, _ := r.UpsertSubscription(ctx, subFor("u1", "https://push.example.com/a"))
	_, _ = r.UpsertSubscription(ctx, subFor("u1", "https://push.example.com/b"))

	if err := r.Deactivate(ctx, a.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	active, err := r.ListActiveByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(active) != 1 || active[0].Endpoint != "https://push.example.com/b" {
		t.Fatalf("unexpected active set %+v", active)
	}
	all, _ := r.ListByUser(ctx, "u1")
	if len(all) != 2 {
		t.Fatalf("inactive rows must be retained, got %d", len(all))
	}

	if err := r.Deactivate(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestDeactivateEndpointAndAll(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	_, _ = r.UpsertSubscription(ctx, subFor("u1", "https://push.example.com/a"))
	_, _ = r.UpsertSubscription(ctx, subFor("u1", "https://push.example.com/b"))
	_, _ = r.UpsertSubscription(ctx, subFor("u2", "https://push.example.com/c"))

	// other users' endpoints are out of reach
	if n, err := r.DeactivateEndpoint(ctx, "u1", "https://push.example.com/c"); err != nil || n != 0 {
		t.Fatalf("cross-user deactivate: n=%d err=%v", n, err)
	}
	if n, err := r.DeactivateEndpoint(ctx, "u1", "https://push.example.com/a"); err != nil || n != 1 {
		t.Fatalf("deactivate endpoint: n=%d err=%v", n, err)
	}
	if n, err := r.DeactivateAllForUser(ctx, "u1"); err != nil || n != 1 {
		t.Fatalf("deactivate all: n=%d err=%v", n, err)
	}
	if active, _ := r.ListActiveByUser(ctx, "u1"); len(active) != 0 {
		t.Fatalf("u1 still has %d active", len(active))
	}
	if active, _ := r.ListActiveByUser(ctx, "u2"); len(active) != 1 {
		t.Fatalf("u2 lost its subscription")
	}
}

func TestListEnabledAt(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	mon := domain.WeekdaySet(0).With(domain.Monday)

	prefs := []domain.Preference{
		{UserID: "early", Enabled: true, TimeOfDay: "07:00", Weekdays: mon},
		{UserID: "late", Enabled: true, TimeOfDay: "08:00", Weekdays: mon},
		{UserID: "off", Enabled: false, TimeOfDay: "07:00", Weekdays: mon},
		{UserID: "prev", Enabled: true, TimeOfDay: "06:59", Weekdays: domain.AllWeekdays},
	}
	for i := range prefs {
		if err := r.UpsertPreference(ctx, &prefs[i]); err != nil {
			t.Fatalf("upsert %s: %v", prefs[i].UserID, err)
		}
	}

	got, err := r.ListEnabledAt(ctx, []string{"07:00"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].UserID != "early" || !got[0].Weekdays.Contains(domain.Monday) {
		t.Fatalf("unexpected match %+v", got)
	}

	got, _ = r.ListEnabledAt(ctx, []string{"07:00", "06:59"})
	if len(got) != 2 {
		t.Fatalf("want 2 for a two-minute lookback, got %d", len(got))
	}

	if got, _ := r.ListEnabledAt(ctx, nil); got != nil {
		t.Fatalf("no minutes should yield nothing, got %+v", got)
	}
}

func TestPreferenceRoundTrip(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	if _, err := r.GetPreference(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	p := &domain.Preference{UserID: "u1", Enabled: true, TimeOfDay: "21:30",
		Weekdays: domain.WeekdaySet(0).With(domain.Saturday).With(domain.Sunday)}
	if err := r.UpsertPreference(ctx, p); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	p.Enabled = false
	if err := r.UpsertPreference(ctx, p); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := r.GetPreference(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Enabled || got.TimeOfDay != "21:30" || got.Weekdays.String() != "sat,sun" {
		t.Fatalf("unexpected preference %+v", got)
	}
}

func TestDeliveryLog(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2025, time.May, 5, 7, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		e := &domain.LogEntry{UserID: "u1", Title: "t", Body: "b", Category: domain.CategoryDigest,
			CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := r.AppendLog(ctx, e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	other := &domain.LogEntry{UserID: "u2", Title: "x", Body: "y", Category: domain.CategoryTest}
	if err := r.AppendLog(ctx, other); err != nil {
		t.Fatalf("append other: %v", err)
	}

	page, total, err := r.ListLog(ctx, "u1", 2, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 3 || len(page) != 2 {
		t.Fatalf("want total 3 page 2, got %d/%d", total, len(page))
	}
	if !page[0].CreatedAt.After(page[1].CreatedAt) {
		t.Fatal("history must be newest first")
	}
	if string(page[0].Payload) != "{}" {
		t.Fatalf("empty payload should be stored as {}, got %s", page[0].Payload)
	}

	if err := r.MarkRead(ctx, "u2", page[0].ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign entry: want ErrNotFound, got %v", err)
	}
	if err := r.MarkRead(ctx, "u1", page[0].ID); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if n, _ := r.CountUnread(ctx, "u1"); n != 2 {
		t.Fatalf("want 2 unread, got %d", n)
	}
	if n, err := r.MarkAllRead(ctx, "u1"); err != nil || n != 2 {
		t.Fatalf("mark all: n=%d err=%v", n, err)
	}
	if n, _ := r.CountUnread(ctx, "u2"); n != 1 {
		t.Fatalf("mark all leaked into u2: unread=%d", n)
	}

	recent, err := r.HasCategorySince(ctx, "u1", domain.CategoryDigest, base.Add(2*time.Minute))
	if err != nil || !recent {
		t.Fatalf("want recent digest, got %v (%v)", recent, err)
	}
	recent, _ = r.HasCategorySince(ctx, "u1", domain.CategoryDigest, base.Add(3*time.Minute))
	if recent {
		t.Fatal("no digest after the last entry")
	}
}

func TestLatestNews(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	if items, err := r.LatestNews(ctx, 3); err != nil || len(items) != 0 {
		t.Fatalf("empty store: %v %v", items, err)
	}

	base := time.Date(2025, time.May, 5, 0, 0, 0, 0, time.UTC)
	for i, title := range []string{"a", "b", "c", "d"} {
		if err := r.InsertNews(ctx, domain.NewsItem{ID: title, Title: title, Category: "tech",
			PublishedAt: base.Add(time.Duration(i) * time.Hour)}); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	items, err := r.LatestNews(ctx, 3)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if len(items) != 3 || items[0].Title != "d" || items[2].Title != "b" {
		t.Fatalf("unexpected order %+v", items)
	}
}
