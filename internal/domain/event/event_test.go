package event

import (
	"testing"
	"time"
)

func TestTypeString(t *testing.T) {
	tests := []struct {
		typ  Type
		want string
	}{
		{TypeRequestCreated, "request.created"},
		{TypeStatusChanged, "request.status_changed"},
		{TypeRequestExpired, "request.expired"},
		{TypeEvaluationReady, "request.evaluation_ready"},
		{TypeOfferSubmitted, "offer.submitted"},
		{TypeOrderPlaced, "order.placed"},
	}
	for _, tt := range tests {
		if got := tt.typ.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestTypeIsValid(t *testing.T) {
	for _, typ := range []Type{
		TypeRequestCreated,
		TypeStatusChanged,
		TypeRequestExpired,
		TypeEvaluationReady,
		TypeOfferSubmitted,
		TypeOrderPlaced,
	} {
		if !typ.IsValid() {
			t.Errorf("IsValid() = false for declared type %q", typ)
		}
	}

	for _, typ := range []Type{"", "request.deleted", "REQUEST.CREATED"} {
		if typ.IsValid() {
			t.Errorf("IsValid() = true for unknown type %q", typ)
		}
	}
}

func TestNew(t *testing.T) {
	before := time.Now()
	evt := New(TypeOfferSubmitted, "req-42", "vendor-a", map[string]interface{}{
		"provider": "vendor-a",
	})
	after := time.Now()

	if evt.ID == "" {
		t.Error("New() left ID empty")
	}
	if evt.Type != TypeOfferSubmitted {
		t.Errorf("Type = %q, want %q", evt.Type, TypeOfferSubmitted)
	}
	if evt.RequestID != "req-42" {
		t.Errorf("RequestID = %q, want req-42", evt.RequestID)
	}
	if evt.Actor != "vendor-a" {
		t.Errorf("Actor = %q, want vendor-a", evt.Actor)
	}
	if evt.OccurredAt.Before(before) || evt.OccurredAt.After(after) {
		t.Errorf("OccurredAt = %v outside [%v, %v]", evt.OccurredAt, before, after)
	}
	if evt.PayloadString("provider") != "vendor-a" {
		t.Errorf("payload provider = %q, want vendor-a", evt.PayloadString("provider"))
	}
}

func TestNewGeneratesUniqueIDs(t *testing.T) {
	a := New(TypeRequestCreated, "req-1", "alice", nil)
	b := New(TypeRequestCreated, "req-1", "alice", nil)
	if a.ID == b.ID {
		t.Errorf("two events share ID %q", a.ID)
	}
}

func TestNewNilPayload(t *testing.T) {
	evt := New(TypeRequestExpired, "req-9", "system", nil)
	if got := evt.PayloadString("anything"); got != "" {
		t.Errorf("PayloadString on nil payload = %q, want empty", got)
	}
	if got := evt.PayloadInt("anything"); got != 0 {
		t.Errorf("PayloadInt on nil payload = %d, want 0", got)
	}
}

func TestPayloadString(t *testing.T) {
	evt := New(TypeStatusChanged, "req-1", "rhonda", map[string]interface{}{
		"trigger": "approve",
		"count":   3,
	})

	if got := evt.PayloadString("trigger"); got != "approve" {
		t.Errorf("PayloadString(trigger) = %q, want approve", got)
	}
	if got := evt.PayloadString("missing"); got != "" {
		t.Errorf("PayloadString(missing) = %q, want empty", got)
	}
	if got := evt.PayloadString("count"); got != "" {
		t.Errorf("PayloadString on int value = %q, want empty", got)
	}
}

func TestPayloadInt(t *testing.T) {
	evt := New(TypeEvaluationReady, "req-1", "system", map[string]interface{}{
		"as_int":     5,
		"as_int64":   int64(7),
		"as_float64": float64(9),
		"as_string":  "11",
	})

	tests := []struct {
		key  string
		want int64
	}{
		{"as_int", 5},
		{"as_int64", 7},
		{"as_float64", 9},
		{"as_string", 0},
		{"missing", 0},
	}
	for _, tt := range tests {
		if got := evt.PayloadInt(tt.key); got != tt.want {
			t.Errorf("PayloadInt(%s) = %d, want %d", tt.key, got, tt.want)
		}
	}
}
