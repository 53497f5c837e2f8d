package push

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/itgoblin-develop/five-minute-brief-sub000/internal/domain"
)

// browserSubscription fabricates the key material a browser would hand out.
func browserSubscription(t *testing.T, endpoint string) domain.Subscription {
	t.Helper()
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate p256 key: %v", err)
	}
	auth := make([]byte, 16)
	if _, err := rand.Read(auth); err != nil {
		t.Fatalf("generate auth: %v", err)
	}
	return domain.Subscription{
		ID:            "s1",
		UserID:        "u1",
		Endpoint:      endpoint,
		EncryptionKey: base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes()),
		AuthSecret:    base64.RawURLEncoding.EncodeToString(auth),
		IsActive:      true,
	}
}

func newTestWebPush(t *testing.T) *WebPush {
	t.Helper()
	v, err := GenerateVAPID("mailto:ops@example.com")
	if err != nil {
		t.Fatalf("vapid: %v", err)
	}
	w, err := NewWebPush(v, 60, nil)
	if err != nil {
		t.Fatalf("new webpush: %v", err)
	}
	return w
}

func TestNewWebPush_RequiresKeys(t *testing.T) {
	if _, err := NewWebPush(VAPID{PublicKey: "pub"}, 0, nil); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("want ErrNotConfigured, got %v", err)
	}
}

func TestWebPushSend_StatusClassification(t *testing.T) {
	cases := []struct {
		status int
		want   Outcome
	}{
		{http.StatusCreated, OutcomeSuccess},
		{http.StatusGone, OutcomeGone},
		{http.StatusNotFound, OutcomeGone},
		{http.StatusTooManyRequests, OutcomeTransient},
		{http.StatusInternalServerError, OutcomeTransient},
	}
	w := newTestWebPush(t)

	for _, tc := range cases {
		t.Run(fmt.Sprint(tc.status), func(t *testing.T) {
			var gotAuth, gotEncoding string
			srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
				gotAuth = r.Header.Get("Authorization")
				gotEncoding = r.Header.Get("Content-Encoding")
				rw.WriteHeader(tc.status)
			}))
			defer srv.Close()

			err := w.Send(context.Background(), browserSubscription(t, srv.URL+"/push/abc"), []byte(`{"title":"hi"}`))
			if got := Classify(err); got != tc.want {
				t.Fatalf("want %s, got %s (err=%v)", tc.want, got, err)
			}
			if !strings.HasPrefix(gotAuth, "vapid ") {
				t.Fatalf("missing VAPID authorization header, got %q", gotAuth)
			}
			if gotEncoding != "aes128gcm" {
				t.Fatalf("want aes128gcm content encoding, got %q", gotEncoding)
			}
		})
	}
}

func TestWebPushSend_TimeoutIsTransient(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
		rw.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()
	defer close(release)

	w := newTestWebPush(t)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := w.Send(ctx, browserSubscription(t, srv.URL+"/slow"), []byte(`{}`))
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if Classify(err) != OutcomeTransient {
		t.Fatalf("timeout must be transient, got %s", Classify(err))
	}
	if strings.Contains(err.Error(), "/slow") {
		t.Fatalf("error leaks the endpoint path: %v", err)
	}
}

func TestStatusErrorIs(t *testing.T) {
	wrapped := fmt.Errorf("user u1: %w", &StatusError{Code: http.StatusGone})
	if !errors.Is(wrapped, ErrGone) {
		t.Fatal("wrapped 410 should match ErrGone")
	}
	if errors.Is(&StatusError{Code: http.StatusBadRequest}, ErrGone) {
		t.Fatal("400 must not match ErrGone")
	}
}

func TestNewPayload(t *testing.T) {
	p := NewPayload(domain.Notification{Title: "T", Body: "B", Category: domain.CategoryDigest, NewsIDs: []string{"n1"}},
		Appearance{Icon: "/icon.png", URL: "/news"})
	raw, err := p.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	for _, want := range []string{`"title":"T"`, `"icon":"/icon.png"`, `"newsIds":["n1"]`, `"url":"/news"`} {
		if !strings.Contains(string(raw), want) {
			t.Fatalf("payload %s lacks %s", raw, want)
		}
	}
	if strings.Contains(string(raw), "badge") {
		t.Fatalf("empty badge should be omitted: %s", raw)
	}
}

// subjectClaim sends one push and returns the sub claim of the VAPID token.
func subjectClaim(t *testing.T, subject string) string {
	t.Helper()
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		rw.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	v, err := GenerateVAPID(subject)
	if err != nil {
		t.Fatalf("vapid: %v", err)
	}
	w, err := NewWebPush(v, 60, nil)
	if err != nil {
		t.Fatalf("new webpush: %v", err)
	}
	if err := w.Send(context.Background(), browserSubscription(t, srv.URL+"/push/abc"), []byte(`{}`)); err != nil {
		t.Fatalf("send: %v", err)
	}

	// header form: vapid t=<jwt>, k=<public key>
	tok, ok := strings.CutPrefix(gotAuth, "vapid t=")
	if !ok {
		t.Fatalf("unexpected authorization header %q", gotAuth)
	}
	tok, _, _ = strings.Cut(tok, ",")
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok, claims); err != nil {
		t.Fatalf("parse vapid token: %v", err)
	}
	sub, _ := claims["sub"].(string)
	return sub
}

func TestWebPushSend_SubjectClaim(t *testing.T) {
	cases := map[string]string{
		"mailto:ops@example.com":    "mailto:ops@example.com",
		"ops@example.com":           "mailto:ops@example.com",
		"https://ops.example.com/c": "https://ops.example.com/c",
	}
	for in, want := range cases {
		if got := subjectClaim(t, in); got != want {
			t.Fatalf("subject %q: sub claim = %q, want %q", in, got, want)
		}
	}
}
