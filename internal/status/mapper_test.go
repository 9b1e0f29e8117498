package status

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/trackwire/trackwire/internal/types"
)

func TestNormalizeDefaults(t *testing.T) {
	mapper := NewMapper(nil)

	tests := []struct {
		native string
		want   types.Status
	}{
		// Canonical passthrough.
		{"open", types.StatusOpen},
		{"in_progress", types.StatusInProgress},
		{"blocked", types.StatusBlocked},
		{"on_hold", types.StatusOnHold},
		{"closed", types.StatusClosed},

		// Pattern families.
		{"To Do", types.StatusOpen},
		{"Backlog", types.StatusOpen},
		{"New", types.StatusOpen},
		{"In Progress", types.StatusInProgress},
		{"Actively Working", types.StatusInProgress},
		{"Doing", types.StatusInProgress},
		{"Waiting for review", types.StatusBlocked},
		{"On Hold", types.StatusBlocked},
		{"Done", types.StatusClosed},
		{"Resolved", types.StatusClosed},
		{"Won't Fix... Completed", types.StatusClosed},

		// Lossy fallback for unknown vocabulary.
		{"Weird Custom State", "weird_custom_state"},
		{"QA-Review", types.Status("qa_review")},
	}

	for _, tt := range tests {
		t.Run(tt.native, func(t *testing.T) {
			if got := mapper.Normalize(tt.native, GlobalContext); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.native, got, tt.want)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	mapper := NewMapper(nil)
	for _, s := range types.CanonicalStatuses() {
		if got := mapper.Normalize(string(s), GlobalContext); got != s {
			t.Errorf("Normalize(%q) = %q, canonical input must pass through", s, got)
		}
	}
}

func TestNormalizeCustomMappings(t *testing.T) {
	mapper := NewMapper(map[string]map[string]string{
		GlobalContext: {
			"Parked": "on_hold",
		},
		"PROJ-1": {
			"Ready for QA": "in_progress",
			"Parked":       "blocked",
		},
	})

	tests := []struct {
		name    string
		native  string
		context string
		want    types.Status
	}{
		{"context mapping", "Ready for QA", "PROJ-1", types.StatusInProgress},
		{"context shadows global", "Parked", "PROJ-1", types.StatusBlocked},
		{"global applies elsewhere", "Parked", "PROJ-2", types.StatusOnHold},
		{"global applies unscoped", "Parked", GlobalContext, types.StatusOnHold},
		{"family fallback still works", "Done", "PROJ-1", types.StatusClosed},
		{"custom beats family", "Ready for QA", "PROJ-1", types.StatusInProgress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mapper.Normalize(tt.native, tt.context); got != tt.want {
				t.Errorf("Normalize(%q, %q) = %q, want %q", tt.native, tt.context, got, tt.want)
			}
		})
	}
}

func TestDenormalize(t *testing.T) {
	mapper := NewMapper(map[string]map[string]string{
		GlobalContext: {
			"Done":      "closed",
			"Abandoned": "closed",
		},
		"PROJ-1": {
			"Shipped": "closed",
		},
	})

	tests := []struct {
		name      string
		canonical types.Status
		context   string
		want      string
	}{
		{"context scope wins", types.StatusClosed, "PROJ-1", "Shipped"},
		{"global sorted-first token", types.StatusClosed, GlobalContext, "Abandoned"},
		{"no mapping returns canonical", types.StatusOpen, GlobalContext, "open"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mapper.Denormalize(tt.canonical, tt.context); got != tt.want {
				t.Errorf("Denormalize(%q, %q) = %q, want %q", tt.canonical, tt.context, got, tt.want)
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	mapper := NewMapper(map[string]map[string]string{
		"BOARD-7": {"Ready for QA": "in_progress"},
	})

	canonical := mapper.Normalize("Ready for QA", "BOARD-7")
	if canonical != types.StatusInProgress {
		t.Fatalf("Normalize = %q", canonical)
	}
	if native := mapper.Denormalize(canonical, "BOARD-7"); native != "Ready for QA" {
		t.Errorf("round trip lost the native token: %q", native)
	}
}

func TestIsKnown(t *testing.T) {
	mapper := NewMapper(map[string]map[string]string{
		GlobalContext: {"Parked": "on_hold"},
	})

	tests := []struct {
		status string
		want   bool
	}{
		{"open", true},
		{"Parked", true},
		{"In Progress", true},
		{"Totally Unknown", false},
	}

	for _, tt := range tests {
		if got := mapper.IsKnown(tt.status, GlobalContext); got != tt.want {
			t.Errorf("IsKnown(%q) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestValidStatuses(t *testing.T) {
	mapper := NewMapper(map[string]map[string]string{
		GlobalContext: {"Parked": "on_hold"},
		"PROJ-1":      {"Shipped": "closed"},
	})

	got := mapper.ValidStatuses("PROJ-1")
	want := []string{"Parked", "Shipped", "blocked", "closed", "in_progress", "on_hold", "open"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ValidStatuses = %v, want %v", got, want)
	}

	// Other contexts must not see PROJ-1's vocabulary.
	got = mapper.ValidStatuses(GlobalContext)
	for _, s := range got {
		if s == "Shipped" {
			t.Error("context-scoped token leaked into global scope")
		}
	}
}

func TestFallback(t *testing.T) {
	tests := []struct {
		native string
		want   string
	}{
		{"Weird State", "weird_state"},
		{"QA-Review", "qa_review"},
		{"  padded  ", "padded"},
		{"UPPER", "upper"},
	}
	for _, tt := range tests {
		if got := Fallback(tt.native); got != tt.want {
			t.Errorf("Fallback(%q) = %q, want %q", tt.native, got, tt.want)
		}
	}
}

func TestParseMappingFile(t *testing.T) {
	data := []byte(`
global:
  "Won't Fix": closed
contexts:
  PROJ-1:
    "Ready for QA": in_progress
`)
	mapper, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := mapper.Normalize("Won't Fix", "PROJ-2"); got != types.StatusClosed {
		t.Errorf("global mapping = %q", got)
	}
	if got := mapper.Normalize("Ready for QA", "PROJ-1"); got != types.StatusInProgress {
		t.Errorf("context mapping = %q", got)
	}
}

func TestParseRejectsNonCanonicalTargets(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"bad global target", "global:\n  Foo: not_a_status\n"},
		{"bad context target", "contexts:\n  P1:\n    Foo: nope\n"},
		{"not yaml", "{{{{"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.data)); err == nil {
				t.Error("Parse accepted invalid input")
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "statuses.yaml")
	if err := os.WriteFile(path, []byte("global:\n  Done: closed\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	mapper, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if got := mapper.Normalize("Done", GlobalContext); got != types.StatusClosed {
		t.Errorf("Normalize = %q", got)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadFile accepted a missing file")
	}
}
