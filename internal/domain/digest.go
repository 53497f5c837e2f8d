package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// CategoryDigest marks delivery log entries produced by the scheduled digest.
const (
	CategoryDigest = "news_digest"
	CategoryTest   = "test"
)

// NewsItem is the slice of a news article the digest needs.
type NewsItem struct {
	ID          string
	Title       string
	Category    string
	PublishedAt time.Time
}

// Digest is the per-run snapshot of recent news shared by every recipient of the run.
// It is never mutated after NewDigest returns.
type Digest struct {
	Items    []NewsItem
	Headline string
	Body     string
}

// NewDigest builds the digest text from items ordered newest first.
// It returns nil when there is nothing to deliver.
func NewDigest(items []NewsItem) *Digest {
	if len(items) == 0 {
		return nil
	}
	first := items[0].Title
	body := first
	if len(items) > 1 {
		body = fmt.Sprintf("%s and %d more items arrived", first, len(items)-1)
	}
	cp := make([]NewsItem, len(items))
	copy(cp, items)
	return &Digest{Items: cp, Headline: first, Body: body}
}

// IDs returns the news ids in digest order.
func (d *Digest) IDs() []string {
	ids := make([]string, 0, len(d.Items))
	for _, it := range d.Items {
		ids = append(ids, it.ID)
	}
	return ids
}

// Notification converts the digest into the message delivered to each recipient.
func (d *Digest) Notification() Notification {
	return Notification{
		Title:    d.Headline,
		Body:     d.Body,
		Category: CategoryDigest,
		NewsIDs:  d.IDs(),
	}
}

// Notification is the user-facing message of one delivery, independent of device.
type Notification struct {
	Title    string
	Body     string
	Category string
	NewsIDs  []string
}

// LogEntry is the delivery log row written once per user per delivery.
type LogEntry struct {
	ID        string
	UserID    string
	Title     string
	Body      string
	Category  string
	Payload   json.RawMessage
	IsRead    bool
	CreatedAt time.Time
}
