package domain

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

var ErrInvalidSubscription = errors.New("invalid subscription")

// Subscription is one registered push endpoint (browser or device) of a user.
type Subscription struct {
	ID            string
	UserID        string
	Endpoint      string
	AuthSecret    string // "auth" key from the browser subscription
	EncryptionKey string // "p256dh" key from the browser subscription
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Validate checks the fields a transport needs before the row is stored.
func (s Subscription) Validate() error {
	if strings.TrimSpace(s.UserID) == "" {
		return errors.Join(ErrInvalidSubscription, errors.New("user id is required"))
	}
	u, err := url.Parse(s.Endpoint)
	if err != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
		return errors.Join(ErrInvalidSubscription, errors.New("endpoint must be an absolute http(s) URL"))
	}
	if strings.TrimSpace(s.AuthSecret) == "" || strings.TrimSpace(s.EncryptionKey) == "" {
		return errors.Join(ErrInvalidSubscription, errors.New("keys.p256dh and keys.auth are required"))
	}
	return nil
}
