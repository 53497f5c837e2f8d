package domain

import (
	"errors"
	"testing"
)

func TestNewDigest_Empty(t *testing.T) {
	if d := NewDigest(nil); d != nil {
		t.Fatalf("want nil digest, got %+v", d)
	}
}

func TestNewDigest_SingleItemHasNoSuffix(t *testing.T) {
	d := NewDigest([]NewsItem{{ID: "n1", Title: "Rates hold"}})
	if d.Headline != "Rates hold" || d.Body != "Rates hold" {
		t.Fatalf("unexpected digest %+v", d)
	}
}

func TestNewDigest_SeveralItems(t *testing.T) {
	d := NewDigest([]NewsItem{
		{ID: "n3", Title: "Newest"},
		{ID: "n2", Title: "Older"},
		{ID: "n1", Title: "Oldest"},
	})
	if d.Headline != "Newest" {
		t.Fatalf("headline: %q", d.Headline)
	}
	if want := "Newest and 2 more items arrived"; d.Body != want {
		t.Fatalf("want %q, got %q", want, d.Body)
	}

	n := d.Notification()
	if n.Category != CategoryDigest || len(n.NewsIDs) != 3 || n.NewsIDs[0] != "n3" {
		t.Fatalf("unexpected notification %+v", n)
	}
}

func TestSubscriptionValidate(t *testing.T) {
	ok := Subscription{UserID: "u1", Endpoint: "https://push.example.com/x", AuthSecret: "a", EncryptionKey: "k"}
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid subscription rejected: %v", err)
	}

	bad := []Subscription{
		{Endpoint: ok.Endpoint, AuthSecret: "a", EncryptionKey: "k"},
		{UserID: "u1", Endpoint: "not a url", AuthSecret: "a", EncryptionKey: "k"},
		{UserID: "u1", Endpoint: ok.Endpoint, EncryptionKey: "k"},
		{UserID: "u1", Endpoint: ok.Endpoint, AuthSecret: "a"},
	}
	for i, s := range bad {
		if err := s.Validate(); !errors.Is(err, ErrInvalidSubscription) {
			t.Fatalf("case %d: want ErrInvalidSubscription, got %v", i, err)
		}
	}
}
