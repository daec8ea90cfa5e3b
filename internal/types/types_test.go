package types

import (
	"testing"
	"time"
)

func TestPhaseIsValid(t *testing.T) {
	tests := []struct {
		phase Phase
		want  bool
	}{
		{PhaseRequirements, true},
		{PhaseDesign, true},
		{PhaseTasks, true},
		{PhaseImplementation, true},
		{PhaseCompleted, true},
		{Phase("review"), false},
		{Phase(""), false},
		{Phase("Requirements"), false}, // case-sensitive
	}

	for _, tt := range tests {
		if got := tt.phase.IsValid(); got != tt.want {
			t.Errorf("Phase(%q).IsValid() = %v, want %v", tt.phase, got, tt.want)
		}
	}
}

func TestPhaseOrdinal(t *testing.T) {
	for i, p := range AllPhases {
		if got := p.Ordinal(); got != i {
			t.Errorf("Phase(%q).Ordinal() = %d, want %d", p, got, i)
		}
	}
	if got := Phase("bogus").Ordinal(); got != -1 {
		t.Errorf("unknown phase Ordinal() = %d, want -1", got)
	}
}

func TestParsePhase(t *testing.T) {
	p, err := ParsePhase("design")
	if err != nil {
		t.Fatalf("ParsePhase(design) error: %v", err)
	}
	if p != PhaseDesign {
		t.Errorf("ParsePhase(design) = %q, want %q", p, PhaseDesign)
	}

	if _, err := ParsePhase("done"); err == nil {
		t.Error("ParsePhase(done) expected error, got nil")
	}
}

func TestRecordValidate(t *testing.T) {
	valid := &Record{
		ID:        "sp-a1b2",
		Name:      "auth flow",
		Phase:     PhaseRequirements,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("valid record: unexpected error %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Record)
	}{
		{"missing ID", func(r *Record) { r.ID = "" }},
		{"missing name", func(r *Record) { r.Name = "" }},
		{"bad phase", func(r *Record) { r.Phase = "shipping" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := *valid
			tt.mutate(&r)
			if err := r.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestSyncMappingValidate(t *testing.T) {
	valid := &SyncMapping{
		EntityType:   EntityRecord,
		LocalID:      "sp-a1b2",
		RemoteID:     "123456",
		RemoteNumber: 42,
		Status:       SyncSuccess,
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("valid mapping: unexpected error %v", err)
	}

	bad := *valid
	bad.EntityType = "milestone"
	if err := bad.Validate(); err == nil {
		t.Error("invalid entity type: expected error")
	}

	bad = *valid
	bad.LocalID = ""
	if err := bad.Validate(); err == nil {
		t.Error("missing local ID: expected error")
	}
}
