package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newTestAdapter(t *testing.T, basePath string) *FilesystemAdapter {
	t.Helper()
	adapter, err := NewFilesystemAdapter(NewFilesystemAdapterParams{
		BasePath: basePath,
		FilePatterns: map[string][]string{
			"logs":    {"var/log/*.log"},
			"release": {"etc/redhat-release"},
			"config":  {"etc/*.conf"},
		},
	})
	if err != nil {
		t.Fatalf("failed to create adapter: %v", err)
	}
	return adapter
}

func TestNewFilesystemAdapterMissingPath(t *testing.T) {
	_, err := NewFilesystemAdapter(NewFilesystemAdapterParams{
		BasePath: filepath.Join(t.TempDir(), "does-not-exist"),
	})
	if err == nil {
		t.Fatal("expected error for missing base path")
	}
}

func TestListAvailableSystemsEmptyStore(t *testing.T) {
	adapter := newTestAdapter(t, t.TempDir())

	systems, err := adapter.ListAvailableSystems(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(systems) != 0 {
		t.Fatalf("expected no systems, got %v", systems)
	}
}

func TestListAvailableSystemsSorted(t *testing.T) {
	base := t.TempDir()
	for _, name := range []string{"web-prod-02", "db-prod-01", "app-dev-01"} {
		if err := os.MkdirAll(filepath.Join(base, name), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	writeFile(t, filepath.Join(base, "stray-file"), "not a system")

	adapter := newTestAdapter(t, base)
	systems, err := adapter.ListAvailableSystems(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"app-dev-01", "db-prod-01", "web-prod-02"}
	if len(systems) != len(want) {
		t.Fatalf("expected %v, got %v", want, systems)
	}
	for i := range want {
		if systems[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, systems)
		}
	}
}

func TestReadSystemFilesNotFound(t *testing.T) {
	adapter := newTestAdapter(t, t.TempDir())

	_, err := adapter.ReadSystemFiles(context.Background(), "missing-system")
	if !errors.Is(err, ErrSystemNotFound) {
		t.Fatalf("expected ErrSystemNotFound, got %v", err)
	}
}

func TestReadSystemFilesGlobAndLiteral(t *testing.T) {
	base := t.TempDir()
	sys := filepath.Join(base, "web-prod-01")
	writeFile(t, filepath.Join(sys, "var/log/messages.log"), "log line")
	writeFile(t, filepath.Join(sys, "var/log/secure.log"), "auth line")
	writeFile(t, filepath.Join(sys, "etc/redhat-release"), "Red Hat Enterprise Linux release 9.2 (Plow)")
	writeFile(t, filepath.Join(sys, "etc/unmatched.txt"), "ignored")

	adapter := newTestAdapter(t, base)
	files, err := adapter.ReadSystemFiles(context.Background(), "web-prod-01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(files) != 3 {
		t.Fatalf("expected 3 files, got %d: %v", len(files), files)
	}
	if files["var/log/messages.log"] != "log line" {
		t.Fatalf("unexpected content: %q", files["var/log/messages.log"])
	}
	if _, ok := files["etc/unmatched.txt"]; ok {
		t.Fatal("unmatched file should not be read")
	}
}

func TestReadSystemFilesUnreadableIsolation(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("permission bits are not enforced for root")
	}

	base := t.TempDir()
	sys := filepath.Join(base, "web-prod-01")
	writeFile(t, filepath.Join(sys, "etc/a.conf"), "a=1")
	writeFile(t, filepath.Join(sys, "etc/b.conf"), "b=2")
	locked := filepath.Join(sys, "etc/locked.conf")
	writeFile(t, locked, "secret=1")
	if err := os.Chmod(locked, 0o000); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chmod(locked, 0o644) })

	adapter := newTestAdapter(t, base)
	files, err := adapter.ReadSystemFiles(context.Background(), "web-prod-01")
	if err != nil {
		t.Fatalf("read must not fail on one unreadable file: %v", err)
	}

	if len(files) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(files))
	}
	if !IsErrorMarker(files["etc/locked.conf"]) {
		t.Fatalf("expected error marker, got %q", files["etc/locked.conf"])
	}
	if IsErrorMarker(files["etc/a.conf"]) || IsErrorMarker(files["etc/b.conf"]) {
		t.Fatal("readable files must carry real content")
	}
}
