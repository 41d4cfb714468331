package provider

import (
	"sync"
	"time"
)

// DiagnosticRecord is the last raw provider failure, retained for
// developer-facing inspection only.
type DiagnosticRecord struct {
	Provider string    `json:"provider"`
	Model    string    `json:"model"`
	Detail   string    `json:"detail"`
	At       time.Time `json:"at"`
}

// Diagnostics is a single-slot store for the most recent raw provider error.
// Safe for concurrent use. Raw error bodies are recorded here and never
// surfaced to end users.
type Diagnostics struct {
	mu   sync.Mutex
	last DiagnosticRecord
	set  bool
}

// NewDiagnostics creates an empty diagnostics slot.
func NewDiagnostics() *Diagnostics {
	return &Diagnostics{}
}

// Record stores the raw detail of a provider failure, replacing any
// previous record.
func (d *Diagnostics) Record(providerName, model, detail string) {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.last = DiagnosticRecord{
		Provider: providerName,
		Model:    model,
		Detail:   detail,
		At:       time.Now(),
	}
	d.set = true
}

// Last returns the most recent record, or false if nothing was recorded.
func (d *Diagnostics) Last() (DiagnosticRecord, bool) {
	if d == nil {
		return DiagnosticRecord{}, false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last, d.set
}
