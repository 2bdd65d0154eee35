package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
)

func TestWithContextAddsRequestAndSession(t *testing.T) {
	var buf bytes.Buffer
	log := &Logger{Logger: slog.New(slog.NewJSONHandler(&buf, nil))}

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-1")
	ctx = context.WithValue(ctx, SessionIDKey, "sess-1")
	log.WithContext(ctx).StepTransition("sess-1", "address", "contact", 2)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry["msg"] != "funnel_transition" || entry["request_id"] != "req-1" || entry["session_id"] != "sess-1" {
		t.Fatalf("unexpected entry %v", entry)
	}
	if entry["from"] != "address" || entry["to"] != "contact" || entry["generation"] != float64(2) {
		t.Fatalf("unexpected transition fields %v", entry)
	}
}

func TestWithContextWithoutValues(t *testing.T) {
	log := New("production")
	if got := log.WithContext(context.Background()); got != log {
		t.Fatal("expected the same logger when context carries nothing")
	}
}

func TestUnsavedCharge(t *testing.T) {
	var buf bytes.Buffer
	log := &Logger{Logger: slog.New(slog.NewJSONHandler(&buf, nil))}

	log.UnsavedCharge("sess-1", "lead-1", "pi_123", errors.New("stale"))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry["level"] != "ERROR" || entry["msg"] != "unsaved_charge" {
		t.Fatalf("unexpected entry %v", entry)
	}
	if entry["lead_id"] != "lead-1" || entry["payment_reference"] != "pi_123" || entry["error"] != "stale" {
		t.Fatalf("unexpected charge fields %v", entry)
	}
}
