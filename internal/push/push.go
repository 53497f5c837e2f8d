// Package push delivers notification payloads to browser push endpoints and
// classifies what each attempt means for the subscription that was used.
package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/itgoblin-develop/five-minute-brief-sub000/internal/domain"
)

// ErrGone marks an endpoint the push service will never accept again.
var ErrGone = errors.New("push endpoint gone")

// ErrNotConfigured is returned when no VAPID key pair is configured.
var ErrNotConfigured = errors.New("push notifications are not configured")

// Transport sends one encrypted payload to one subscription.
type Transport interface {
	Send(ctx context.Context, sub domain.Subscription, payload []byte) error
}

// StatusError is a non-2xx answer from a push service.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("push service responded %d", e.Code)
	}
	return fmt.Sprintf("push service responded %d: %s", e.Code, e.Body)
}

// Is lets errors.Is(err, ErrGone) match 404 and 410 answers.
func (e *StatusError) Is(target error) bool {
	return target == ErrGone && (e.Code == http.StatusGone || e.Code == http.StatusNotFound)
}

// Outcome is the classified result of one delivery attempt.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeGone
	OutcomeTransient
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeGone:
		return "gone"
	default:
		return "transient"
	}
}

// Classify maps a Send error to an outcome. Anything that is not success or gone,
// timeouts included, is transient.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, ErrGone):
		return OutcomeGone
	default:
		return OutcomeTransient
	}
}

// Payload is the JSON document the service worker receives.
type Payload struct {
	Title    string      `json:"title"`
	Body     string      `json:"body"`
	Icon     string      `json:"icon,omitempty"`
	Badge    string      `json:"badge,omitempty"`
	Category string      `json:"category"`
	Data     PayloadData `json:"data"`
}

// PayloadData is the navigation block used when the notification is clicked.
type PayloadData struct {
	URL     string   `json:"url,omitempty"`
	NewsIDs []string `json:"newsIds,omitempty"`
}

// Appearance holds the static parts of every payload.
type Appearance struct {
	Icon  string
	Badge string
	URL   string
}

// NewPayload builds the payload for a notification.
func NewPayload(n domain.Notification, a Appearance) Payload {
	return Payload{
		Title:    n.Title,
		Body:     n.Body,
		Icon:     a.Icon,
		Badge:    a.Badge,
		Category: n.Category,
		Data:     PayloadData{URL: a.URL, NewsIDs: n.NewsIDs},
	}
}

// Encode marshals the payload for the wire.
func (p Payload) Encode() ([]byte, error) {
	return json.Marshal(p)
}
