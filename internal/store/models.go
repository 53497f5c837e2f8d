package store

import (
	"encoding/json"
	"time"

	"github.com/itgoblin-develop/five-minute-brief-sub000/internal/domain"
)

// Row types mirror the tables; timestamps are Unix seconds (UTC).

type preferenceRow struct {
	UserID    string `db:"user_id"`
	Enabled   bool   `db:"enabled"`
	TimeOfDay string `db:"time_of_day"`
	Weekdays  string `db:"weekdays"`
	UpdatedAt int64  `db:"updated_at"`
}

func (r preferenceRow) toDomain() (domain.Preference, error) {
	days, err := domain.ParseWeekdaySet(r.Weekdays)
	if err != nil {
		return domain.Preference{}, err
	}
	return domain.Preference{
		UserID:    r.UserID,
		Enabled:   r.Enabled,
		TimeOfDay: r.TimeOfDay,
		Weekdays:  days,
		UpdatedAt: fromUnix(r.UpdatedAt),
	}, nil
}

type subscriptionRow struct {
	ID            string `db:"id"`
	UserID        string `db:"user_id"`
	Endpoint      string `db:"endpoint"`
	AuthSecret    string `db:"auth_secret"`
	EncryptionKey string `db:"encryption_key"`
	IsActive      bool   `db:"is_active"`
	CreatedAt     int64  `db:"created_at"`
	UpdatedAt     int64  `db:"updated_at"`
}

func (r subscriptionRow) toDomain() domain.Subscription {
	return domain.Subscription{
		ID:            r.ID,
		UserID:        r.UserID,
		Endpoint:      r.Endpoint,
		AuthSecret:    r.AuthSecret,
		EncryptionKey: r.EncryptionKey,
		IsActive:      r.IsActive,
		CreatedAt:     fromUnix(r.CreatedAt),
		UpdatedAt:     fromUnix(r.UpdatedAt),
	}
}

type logRow struct {
	ID        string `db:"id"`
	UserID    string `db:"user_id"`
	Title     string `db:"title"`
	Body      string `db:"body"`
	Category  string `db:"category"`
	Payload   string `db:"payload"`
	IsRead    bool   `db:"is_read"`
	CreatedAt int64  `db:"created_at"`
}

func (r logRow) toDomain() domain.LogEntry {
	return domain.LogEntry{
		ID:        r.ID,
		UserID:    r.UserID,
		Title:     r.Title,
		Body:      r.Body,
		Category:  r.Category,
		Payload:   json.RawMessage(r.Payload),
		IsRead:    r.IsRead,
		CreatedAt: fromUnix(r.CreatedAt),
	}
}

type newsRow struct {
	ID          string `db:"id"`
	Title       string `db:"title"`
	Category    string `db:"category"`
	PublishedAt int64  `db:"published_at"`
}

func fromUnix(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

// boolToInt converts a boolean to 1/0 for SQLite.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
