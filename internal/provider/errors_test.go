package provider

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestHTTPError_Error(t *testing.T) {
	t.Parallel()

	e := &HTTPError{Provider: "openai", Status: 500, Body: []byte(`{"error":"boom"}`)}
	msg := e.Error()
	if !strings.Contains(msg, "HTTP 500") {
		t.Errorf("message %q missing status", msg)
	}
	if !strings.Contains(msg, "boom") {
		t.Errorf("message %q missing body detail", msg)
	}
}

func TestHTTPError_TruncatesLongBody(t *testing.T) {
	t.Parallel()

	e := &HTTPError{Provider: "openai", Status: 502, Body: []byte(strings.Repeat("x", 1000))}
	if len(e.Error()) > 400 {
		t.Errorf("error message not truncated: %d chars", len(e.Error()))
	}
}

func TestIsHTTPStatus(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("call failed: %w", &HTTPError{Provider: "p", Status: 429})
	if !IsHTTPStatus(wrapped, 429) {
		t.Error("IsHTTPStatus should unwrap")
	}
	if IsHTTPStatus(wrapped, 500) {
		t.Error("IsHTTPStatus matched wrong status")
	}
	if IsHTTPStatus(errors.New("plain"), 429) {
		t.Error("IsHTTPStatus matched non-HTTPError")
	}
}

func TestDiagnostics_RecordAndLast(t *testing.T) {
	t.Parallel()

	d := NewDiagnostics()
	if _, ok := d.Last(); ok {
		t.Error("fresh diagnostics should be empty")
	}

	d.Record("openai", "gpt-4o", `{"error":"rate limited"}`)
	rec, ok := d.Last()
	if !ok {
		t.Fatal("expected a record")
	}
	if rec.Provider != "openai" || rec.Model != "gpt-4o" {
		t.Errorf("record = %+v", rec)
	}

	// Later records replace earlier ones.
	d.Record("anthropic", "claude", "overloaded")
	rec, _ = d.Last()
	if rec.Provider != "anthropic" {
		t.Errorf("provider = %q, want anthropic", rec.Provider)
	}
}

func TestDiagnostics_NilSafe(t *testing.T) {
	t.Parallel()

	var d *Diagnostics
	d.Record("p", "m", "detail") // must not panic
	if _, ok := d.Last(); ok {
		t.Error("nil diagnostics should report empty")
	}
}
