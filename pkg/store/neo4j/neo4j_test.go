package neo4j

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/opsgraph/opsgraph/pkg/store"
)

func TestNewStoreRejectsMissingParams(t *testing.T) {
	ctx := context.Background()

	if _, err := NewStore(ctx, NewStoreParams{Username: "neo4j"}); err == nil {
		t.Fatal("expected error for missing uri")
	}
	if _, err := NewStore(ctx, NewStoreParams{URI: "bolt://localhost:7687"}); err == nil {
		t.Fatal("expected error for missing username")
	}
}

func TestNewStoreRefusesBackupBeforeClear(t *testing.T) {
	_, err := NewStore(context.Background(), NewStoreParams{
		URI:               "bolt://localhost:7687",
		Username:          "neo4j",
		ClearOnStartup:    true,
		BackupBeforeClear: true,
	})
	if !errors.Is(err, store.ErrBackupUnsupported) {
		t.Fatalf("expected ErrBackupUnsupported, got %v", err)
	}
}

func TestSanitizeLabel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Service", "Service"},
		{"log_file", "log_file"},
		{"Weird Label!", "WeirdLabel"},
		{"DROP ALL;--", "DROPALL"},
		{"", "Entity"},
		{"!!!", "Entity"},
	}

	for _, tt := range tests {
		if got := sanitizeLabel(tt.in); got != tt.want {
			t.Errorf("sanitizeLabel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeProps(t *testing.T) {
	now := time.Date(2024, 1, 15, 3, 21, 7, 0, time.UTC)
	props := sanitizeProps(map[string]any{
		"count":   3,
		"name":    "sshd",
		"active":  true,
		"when":    now,
		"skipped": nil,
		"nested":  map[string]any{"a": 1},
	})

	if _, ok := props["skipped"]; ok {
		t.Fatal("nil values must be dropped")
	}
	if props["when"] != "2024-01-15T03:21:07Z" {
		t.Fatalf("timestamps must be RFC3339 strings, got %v", props["when"])
	}
	if _, ok := props["nested"].(string); !ok {
		t.Fatalf("unsupported values must be stringified, got %T", props["nested"])
	}
	if props["count"] != 3 || props["name"] != "sshd" || props["active"] != true {
		t.Fatalf("primitive values must pass through: %v", props)
	}
}
