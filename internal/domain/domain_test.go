package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr error
	}{
		{raw: "  Ann ", want: "Ann"},
		{raw: "Bartholomew the Great", want: "Bartholome"},
		{raw: "   ", wantErr: ErrNameEmpty},
		{raw: "", wantErr: ErrNameEmpty},
		{raw: "Жанна-Мария-Луиза", want: "Жанна-Мари"},
	}
	for _, tt := range tests {
		got, err := NormalizeName(tt.raw)
		if !errors.Is(err, tt.wantErr) {
			t.Fatalf("NormalizeName(%q) err = %v, want %v", tt.raw, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("NormalizeName(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestPresenceValidate(t *testing.T) {
	tests := []struct {
		name string
		p    Presence
		ok   bool
	}{
		{"upper corner", Presence{PlayerNumber: 1, Name: "Ann", X: 2047, Y: 0}, true},
		{"x past grid", Presence{PlayerNumber: 1, Name: "Ann", X: 2048, Y: 0}, false},
		{"negative y", Presence{PlayerNumber: 1, Name: "Ann", X: 0, Y: -1}, false},
		{"no number", Presence{Name: "Ann", X: 1, Y: 1}, false},
		{"blank name", Presence{PlayerNumber: 2, Name: " ", X: 1, Y: 1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestRoomIDs(t *testing.T) {
	id := NewRoomID()
	if len(id) != 32 || strings.Contains(string(id), "-") {
		t.Fatalf("unexpected room id %q", id)
	}
	if _, err := ParseRoomID(string(id)); err != nil {
		t.Fatalf("generated id rejected: %v", err)
	}
	if _, err := ParseRoomID("../etc"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if got := RoomGroup("abc123"); got != "room:abc123" {
		t.Fatalf("RoomGroup = %q", got)
	}
}
