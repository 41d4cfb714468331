package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestNotifyIfNeeded_NoContactIsNoop(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	n := NewNotifier(Config{EndpointURL: srv.URL}, Contact{}, NewMemStateStore(), nil)
	if n.NotifyIfNeeded(context.Background(), "Dana") {
		t.Error("notifier without a contact reported a delivery")
	}

	if got := calls.Load(); got != 0 {
		t.Errorf("endpoint called %d times, want 0", got)
	}
}

func TestNotifyIfNeeded_SendsOncePerCooldown(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	n := NewNotifier(Config{EndpointURL: srv.URL}, Contact{Email: "ec@example.com"}, NewMemStateStore(), nil)

	delivered := 0
	for i := 0; i < 5; i++ {
		if n.NotifyIfNeeded(context.Background(), "Dana") {
			delivered++
		}
	}

	if got := calls.Load(); got != 1 {
		t.Errorf("endpoint called %d times, want 1", got)
	}
	if delivered != 1 {
		t.Errorf("reported %d deliveries, want 1", delivered)
	}
}

func TestNotifyIfNeeded_SendsAgainAfterCooldown(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	n := NewNotifier(Config{EndpointURL: srv.URL}, Contact{Email: "ec@example.com"}, NewMemStateStore(), nil)

	base := time.Now()
	n.now = func() time.Time { return base }
	n.NotifyIfNeeded(context.Background(), "Dana")

	n.now = func() time.Time { return base.Add(23 * time.Hour) }
	n.NotifyIfNeeded(context.Background(), "Dana")
	if got := calls.Load(); got != 1 {
		t.Fatalf("endpoint called %d times before cooldown expiry, want 1", got)
	}

	n.now = func() time.Time { return base.Add(25 * time.Hour) }
	n.NotifyIfNeeded(context.Background(), "Dana")
	if got := calls.Load(); got != 2 {
		t.Errorf("endpoint called %d times after cooldown expiry, want 2", got)
	}
}

func TestNotifyIfNeeded_FailureDoesNotStartCooldown(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := NewNotifier(Config{EndpointURL: srv.URL}, Contact{Email: "ec@example.com"}, NewMemStateStore(), nil)

	if n.NotifyIfNeeded(context.Background(), "Dana") {
		t.Error("failed send reported as delivered")
	}
	n.NotifyIfNeeded(context.Background(), "Dana")

	// Failed sends must not record state, so every attempt reaches the wire.
	if got := calls.Load(); got != 2 {
		t.Errorf("endpoint called %d times, want 2", got)
	}
}

func TestNotifyIfNeeded_ExplicitFailureFlagCountsAsFailure(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"success":false}`))
	}))
	defer srv.Close()

	n := NewNotifier(Config{EndpointURL: srv.URL}, Contact{Email: "ec@example.com"}, NewMemStateStore(), nil)

	n.NotifyIfNeeded(context.Background(), "Dana")
	n.NotifyIfNeeded(context.Background(), "Dana")

	if got := calls.Load(); got != 2 {
		t.Errorf("endpoint called %d times, want 2", got)
	}
}

func TestNotifyIfNeeded_PayloadShape(t *testing.T) {
	t.Parallel()

	var gotBody string
	var gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 1024)
		nr, _ := r.Body.Read(buf)
		gotBody = string(buf[:nr])
		gotContentType = r.Header.Get("Content-Type")
	}))
	defer srv.Close()

	n := NewNotifier(Config{EndpointURL: srv.URL}, Contact{Email: "ec@example.com"}, NewMemStateStore(), nil)
	n.NotifyIfNeeded(context.Background(), "Dana")

	want := `{"toEmail":"ec@example.com","userName":"Dana"}`
	if gotBody != want {
		t.Errorf("payload = %s, want %s", gotBody, want)
	}
	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q", gotContentType)
	}
}
