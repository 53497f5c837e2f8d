package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	// Registers the "sqlite" driver (pure Go).
	_ "modernc.org/sqlite"

	"github.com/itgoblin-develop/five-minute-brief-sub000/internal/domain"
)

// SQLiteRepo implements Repo using an embedded SQLite database.
type SQLiteRepo struct {
	db  *sqlx.DB
	now func() time.Time
}

var _ Repo = (*SQLiteRepo)(nil)

// OpenSQLite opens (or creates) the SQLite database at the given path,
// applies recommended PRAGMAs, runs SQL migrations, and returns a repository.
func OpenSQLite(ctx context.Context, path string) (*SQLiteRepo, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite is a single-writer engine; one connection also keeps ":memory:" databases coherent.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	return &SQLiteRepo{db: db, now: time.Now}, nil
}

// applyPragmas configures the SQLite connection for durability and concurrency.
func applyPragmas(ctx context.Context, db *sqlx.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying database resources.
func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepo) nowUnix() int64 {
	return r.now().UTC().Unix()
}

// --- Preferences ---

// GetPreference returns ErrNotFound when the user never saved a preference.
func (r *SQLiteRepo) GetPreference(ctx context.Context, userID string) (*domain.Preference, error) {
	var row preferenceRow
	err := r.db.GetContext(ctx, &row, `
		SELECT user_id, enabled, time_of_day, weekdays, updated_at
		FROM preferences
		WHERE user_id = ?`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get preference: %w", err)
	}
	p, err := row.toDomain()
	if err != nil {
		return nil, fmt.Errorf("decode preference %s: %w", userID, err)
	}
	return &p, nil
}

// UpsertPreference inserts or replaces the user's preference row.
func (r *SQLiteRepo) UpsertPreference(ctx context.Context, p *domain.Preference) error {
	if p == nil {
		return errors.New("nil preference")
	}
	now := r.nowUnix()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO preferences (user_id, enabled, time_of_day, weekdays, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			enabled     = excluded.enabled,
			time_of_day = excluded.time_of_day,
			weekdays    = excluded.weekdays,
			updated_at  = excluded.updated_at`,
		p.UserID, boolToInt(p.Enabled), p.TimeOfDay, p.Weekdays.String(), now,
	)
	if err != nil {
		return fmt.Errorf("upsert preference: %w", err)
	}
	p.UpdatedAt = fromUnix(now)
	return nil
}

// ListEnabledAt returns enabled preferences scheduled at any of the given HH:MM labels.
// Weekday filtering is left to domain.Preference.
func (r *SQLiteRepo) ListEnabledAt(ctx context.Context, minutes []string) ([]domain.Preference, error) {
	if len(minutes) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`
		SELECT user_id, enabled, time_of_day, weekdays, updated_at
		FROM preferences
		WHERE enabled = 1 AND time_of_day IN (?)
		ORDER BY user_id`, minutes)
	if err != nil {
		return nil, err
	}

	var rows []preferenceRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list enabled preferences: %w", err)
	}
	res := make([]domain.Preference, 0, len(rows))
	for _, row := range rows {
		p, err := row.toDomain()
		if err != nil {
			// One malformed row must not hide everyone else's digest.
			continue
		}
		res = append(res, p)
	}
	return res, nil
}

// --- Subscriptions ---

const subscriptionColumns = `id, user_id, endpoint, auth_secret, encryption_key, is_active, created_at, updated_at`

// UpsertSubscription registers an endpoint. An existing endpoint is rebound to the
// registering user, gets the new keys and becomes active again.
func (r *SQLiteRepo) UpsertSubscription(ctx context.Context, s *domain.Subscription) (*domain.Subscription, error) {
	if s == nil {
		return nil, errors.New("nil subscription")
	}
	now := r.nowUnix()
	var row subscriptionRow
	err := r.db.GetContext(ctx, &row, `
		INSERT INTO push_subscriptions (`+subscriptionColumns+`)
		VALUES (?, ?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT(endpoint) DO UPDATE SET
			user_id        = excluded.user_id,
			auth_secret    = excluded.auth_secret,
			encryption_key = excluded.encryption_key,
			is_active      = 1,
			updated_at     = excluded.updated_at
		RETURNING `+subscriptionColumns,
		uuid.NewString(), s.UserID, s.Endpoint, s.AuthSecret, s.EncryptionKey, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert subscription: %w", err)
	}
	out := row.toDomain()
	return &out, nil
}

// ListActiveByUser returns the user's active subscriptions, oldest first.
func (r *SQLiteRepo) ListActiveByUser(ctx context.Context, userID string) ([]domain.Subscription, error) {
	return r.listSubscriptions(ctx, `WHERE user_id = ? AND is_active = 1`, userID)
}

// ListByUser returns every subscription row of the user, active or not.
func (r *SQLiteRepo) ListByUser(ctx context.Context, userID string) ([]domain.Subscription, error) {
	return r.listSubscriptions(ctx, `WHERE user_id = ?`, userID)
}

func (r *SQLiteRepo) listSubscriptions(ctx context.Context, where string, args ...any) ([]domain.Subscription, error) {
	var rows []subscriptionRow
	q := `SELECT ` + subscriptionColumns + ` FROM push_subscriptions ` + where + ` ORDER BY created_at, id`
	if err := r.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	res := make([]domain.Subscription, 0, len(rows))
	for _, row := range rows {
		res = append(res, row.toDomain())
	}
	return res, nil
}

// Deactivate flips one subscription to inactive and stamps updated_at.
func (r *SQLiteRepo) Deactivate(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE push_subscriptions
		SET is_active = 0, updated_at = ?
		WHERE id = ?`,
		r.nowUnix(), id,
	)
	if err != nil {
		return fmt.Errorf("deactivate subscription: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeactivateEndpoint deactivates the caller's subscription for endpoint.
func (r *SQLiteRepo) DeactivateEndpoint(ctx context.Context, userID, endpoint string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE push_subscriptions
		SET is_active = 0, updated_at = ?
		WHERE user_id = ? AND endpoint = ? AND is_active = 1`,
		r.nowUnix(), userID, endpoint,
	)
	if err != nil {
		return 0, fmt.Errorf("deactivate endpoint: %w", err)
	}
	return res.RowsAffected()
}

// DeactivateAllForUser deactivates every active subscription of the user.
func (r *SQLiteRepo) DeactivateAllForUser(ctx context.Context, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE push_subscriptions
		SET is_active = 0, updated_at = ?
		WHERE user_id = ? AND is_active = 1`,
		r.nowUnix(), userID,
	)
	if err != nil {
		return 0, fmt.Errorf("deactivate subscriptions: %w", err)
	}
	return res.RowsAffected()
}

// --- Delivery log ---

// AppendLog writes a new entry; ID and CreatedAt are filled in when empty.
func (r *SQLiteRepo) AppendLog(ctx context.Context, e *domain.LogEntry) error {
	if e == nil {
		return errors.New("nil log entry")
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = fromUnix(r.nowUnix())
	}
	payload := string(e.Payload)
	if payload == "" {
		payload = "{}"
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO delivery_log (id, user_id, title, body, category, payload, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.Title, e.Body, e.Category, payload, boolToInt(e.IsRead), e.CreatedAt.UTC().Unix(),
	)
	if err != nil {
		return fmt.Errorf("append delivery log: %w", err)
	}
	return nil
}

// ListLog returns one page of the user's history, newest first, and the total row count.
func (r *SQLiteRepo) ListLog(ctx context.Context, userID string, limit, offset int) ([]domain.LogEntry, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM delivery_log WHERE user_id = ?`, userID); err != nil {
		return nil, 0, fmt.Errorf("count delivery log: %w", err)
	}

	var rows []logRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, user_id, title, body, category, payload, is_read, created_at
		FROM delivery_log
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list delivery log: %w", err)
	}
	res := make([]domain.LogEntry, 0, len(rows))
	for _, row := range rows {
		res = append(res, row.toDomain())
	}
	return res, total, nil
}

// CountUnread returns the number of unread entries of the user.
func (r *SQLiteRepo) CountUnread(ctx context.Context, userID string) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM delivery_log WHERE user_id = ? AND is_read = 0`, userID); err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return n, nil
}

// MarkRead marks one entry read. It returns ErrNotFound when the entry does not belong to userID.
func (r *SQLiteRepo) MarkRead(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE delivery_log SET is_read = 1 WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkAllRead marks every unread entry of the user read and reports how many changed.
func (r *SQLiteRepo) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE delivery_log SET is_read = 1 WHERE user_id = ? AND is_read = 0`, userID)
	if err != nil {
		return 0, fmt.Errorf("mark all read: %w", err)
	}
	return res.RowsAffected()
}

// HasCategorySince reports whether the user has an entry of category created at or after since.
func (r *SQLiteRepo) HasCategorySince(ctx context.Context, userID, category string, since time.Time) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM delivery_log
			WHERE user_id = ? AND category = ? AND created_at >= ?
		)`,
		userID, category, since.UTC().Unix(),
	)
	if err != nil {
		return false, fmt.Errorf("check recent delivery: %w", err)
	}
	return exists, nil
}

// --- News ---

// LatestNews returns up to n items, newest first.
func (r *SQLiteRepo) LatestNews(ctx context.Context, n int) ([]domain.NewsItem, error) {
	if n <= 0 {
		return nil, nil
	}
	var rows []newsRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, title, category, published_at
		FROM news
		ORDER BY published_at DESC, id DESC
		LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("latest news: %w", err)
	}
	res := make([]domain.NewsItem, 0, len(rows))
	for _, row := range rows {
		res = append(res, domain.NewsItem{
			ID:          row.ID,
			Title:       row.Title,
			Category:    row.Category,
			PublishedAt: fromUnix(row.PublishedAt),
		})
	}
	return res, nil
}

// InsertNews upserts a news item. The service only reads news; the news CRUD surface owns writes,
// so this is the write path for tests that fill the content store.
func (r *SQLiteRepo) InsertNews(ctx context.Context, it domain.NewsItem) error {
	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	if it.PublishedAt.IsZero() {
		it.PublishedAt = r.now()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO news (id, title, category, published_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title        = excluded.title,
			category     = excluded.category,
			published_at = excluded.published_at`,
		it.ID, it.Title, it.Category, it.PublishedAt.UTC().Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert news: %w", err)
	}
	return nil
}
