package push

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/itgoblin-develop/five-minute-brief-sub000/internal/domain"
)

// VAPID is the application server identity used to sign push requests.
type VAPID struct {
	PublicKey  string
	PrivateKey string
	Subject    string // mailto: address or https URL of the operator
}

// Configured reports whether both keys are present.
func (v VAPID) Configured() bool {
	return strings.TrimSpace(v.PublicKey) != "" && strings.TrimSpace(v.PrivateKey) != ""
}

// WebPush implements Transport with the Web Push protocol (RFC 8030/8291/8292).
type WebPush struct {
	vapid  VAPID
	ttl    int
	client webpush.HTTPClient
}

// NewWebPush returns ErrNotConfigured when the key pair is incomplete.
// A nil client means http.DefaultClient; callers bound each attempt via ctx.
func NewWebPush(v VAPID, ttlSeconds int, client *http.Client) (*WebPush, error) {
	if !v.Configured() {
		return nil, ErrNotConfigured
	}
	if ttlSeconds <= 0 {
		ttlSeconds = 3600
	}
	// webpush-go adds mailto: to every subject that is not an https: URL.
	v.Subject = strings.TrimPrefix(strings.TrimSpace(v.Subject), "mailto:")
	w := &WebPush{vapid: v, ttl: ttlSeconds}
	if client != nil {
		w.client = client
	}
	return w, nil
}

// PublicKey is handed to browsers as applicationServerKey.
func (w *WebPush) PublicKey() string {
	return w.vapid.PublicKey
}

// Send encrypts payload for sub and posts it to the subscription endpoint.
// 404 and 410 answers come back as a *StatusError matching ErrGone.
func (w *WebPush) Send(ctx context.Context, sub domain.Subscription, payload []byte) error {
	s := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			Auth:   sub.AuthSecret,
			P256dh: sub.EncryptionKey,
		},
	}
	resp, err := webpush.SendNotificationWithContext(ctx, payload, s, &webpush.Options{
		HTTPClient:      w.client,
		Subscriber:      w.vapid.Subject,
		VAPIDPublicKey:  w.vapid.PublicKey,
		VAPIDPrivateKey: w.vapid.PrivateKey,
		TTL:             w.ttl,
		Urgency:         webpush.UrgencyNormal,
	})
	if err != nil {
		return fmt.Errorf("send to %s: %w", endpointHost(sub.Endpoint), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}

// GenerateVAPID creates a fresh key pair.
func GenerateVAPID(subject string) (VAPID, error) {
	priv, pub, err := webpush.GenerateVAPIDKeys()
	if err != nil {
		return VAPID{}, fmt.Errorf("generate vapid keys: %w", err)
	}
	return VAPID{PublicKey: pub, PrivateKey: priv, Subject: subject}, nil
}

// endpointHost keeps capability URLs out of logs and errors.
func endpointHost(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return "invalid-endpoint"
	}
	return u.Host
}
