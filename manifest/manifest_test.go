package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "demo"
version = "0.1.0"

[source]
dirs = ["src", "lib"]
entry = "main.sel"

[runtime]
max-call-depth = 500

[server]
port = 9000

[journal]
path = "evals.db"

[dependencies]
helper = { path = "../helper" }
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Project.Name != "demo" {
		t.Errorf("project name = %q, want demo", m.Project.Name)
	}
	if m.Project.Version != "0.1.0" {
		t.Errorf("project version = %q, want 0.1.0", m.Project.Version)
	}
	if len(m.Source.Dirs) != 2 {
		t.Errorf("source dirs count = %d, want 2", len(m.Source.Dirs))
	}
	if m.Source.Entry != "main.sel" {
		t.Errorf("source entry = %q, want main.sel", m.Source.Entry)
	}
	if m.Runtime.MaxCallDepth != 500 {
		t.Errorf("max-call-depth = %d, want 500", m.Runtime.MaxCallDepth)
	}
	if m.Server.Port != 9000 {
		t.Errorf("port = %d, want 9000", m.Server.Port)
	}
	if got, want := m.JournalPath(), filepath.Join(m.Dir, "evals.db"); got != want {
		t.Errorf("JournalPath() = %q, want %q", got, want)
	}
	if got, want := m.EntryPath(), filepath.Join(m.Dir, "main.sel"); got != want {
		t.Errorf("EntryPath() = %q, want %q", got, want)
	}
	if dep, ok := m.Dependencies["helper"]; !ok || dep.Path != "../helper" {
		t.Errorf("helper dep = %v, want path ../helper", m.Dependencies["helper"])
	}
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "minimal"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(m.Source.Dirs) != 1 || m.Source.Dirs[0] != "." {
		t.Errorf("default source dirs = %v, want [.]", m.Source.Dirs)
	}
	if m.Server.Port != DefaultPort {
		t.Errorf("default port = %d, want %d", m.Server.Port, DefaultPort)
	}
	if m.Runtime.MaxCallDepth != 0 {
		t.Errorf("default max-call-depth = %d, want 0", m.Runtime.MaxCallDepth)
	}
	if m.JournalPath() != "" || m.EntryPath() != "" {
		t.Errorf("journal %q, entry %q; want both empty", m.JournalPath(), m.EntryPath())
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errText string
	}{
		{"negative depth", "[runtime]\nmax-call-depth = -1\n", "max-call-depth"},
		{"port too large", "[server]\nport = 70000\n", "port"},
		{"negative port", "[server]\nport = -2\n", "port"},
		{"entry extension", "[source]\nentry = \"main.txt\"\n", "entry"},
		{"wrong type", "[server]\nport = \"http\"\n", ""},
		{"dependency without source", "[dependencies]\nx = { tag = \"v1\" }\n", "exactly one of git or path"},
		{"dependency with both sources", "[dependencies]\nx = { git = \"u\", path = \"p\" }\n", "exactly one of git or path"},
		{"bad toml", "[project\n", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.content), t.TempDir())
			if err == nil {
				t.Fatalf("Parse(%q) succeeded, want error", tc.content)
			}
			if !strings.Contains(err.Error(), tc.errText) {
				t.Errorf("Parse(%q) error = %v, want it to mention %q", tc.content, err, tc.errText)
			}
		})
	}
}

func TestFindAndLoad(t *testing.T) {
	dir := t.TempDir()
	subDir := filepath.Join(dir, "a", "b", "c")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatal(err)
	}
	writeManifest(t, dir, "[project]\nname = \"found-project\"\n")

	m, err := FindAndLoad(subDir)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil {
		t.Fatal("FindAndLoad returned nil")
	}
	if m.Project.Name != "found-project" {
		t.Errorf("project name = %q, want found-project", m.Project.Name)
	}
}

func TestFindAndLoadNotFound(t *testing.T) {
	m, err := FindAndLoad(t.TempDir())
	if err != nil {
		t.Fatalf("FindAndLoad error: %v", err)
	}
	if m != nil {
		t.Error("expected nil manifest when no sel.toml exists")
	}
}

func TestSourceDirPaths(t *testing.T) {
	m := &Manifest{
		Dir:    "/app",
		Source: Source{Dirs: []string{"src", "/abs/lib"}},
	}

	paths := m.SourceDirPaths()
	if len(paths) != 2 {
		t.Fatalf("expected 2 paths, got %d", len(paths))
	}
	if paths[0] != filepath.Join("/app", "src") {
		t.Errorf("paths[0] = %q, want /app/src", paths[0])
	}
	if paths[1] != "/abs/lib" {
		t.Errorf("paths[1] = %q, want /abs/lib", paths[1])
	}
}

func TestLockFileRoundTrip(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "lock.toml")

	lf := &LockFile{
		Deps: []LockedDep{
			{Name: "mathlib", Git: "https://example.com/mathlib.git", Commit: "abc123", Tag: "v0.5.0"},
			{Name: "helper", Path: "../helper"},
		},
	}
	if err := WriteLock(lockPath, lf); err != nil {
		t.Fatalf("WriteLock failed: %v", err)
	}

	loaded, err := ReadLock(lockPath)
	if err != nil {
		t.Fatalf("ReadLock failed: %v", err)
	}
	if len(loaded.Deps) != 2 {
		t.Fatalf("expected 2 deps, got %d", len(loaded.Deps))
	}
	// Entries are written sorted by name.
	if loaded.Deps[0].Name != "helper" || loaded.Deps[1].Commit != "abc123" {
		t.Errorf("deps = %+v", loaded.Deps)
	}

	if found := loaded.FindLockedDep("helper"); found == nil || found.Path != "../helper" {
		t.Errorf("FindLockedDep(helper) = %v, want path ../helper", found)
	}
	if notFound := loaded.FindLockedDep("nonexistent"); notFound != nil {
		t.Errorf("FindLockedDep(nonexistent) = %v, want nil", notFound)
	}
}

func TestReadLockNotFound(t *testing.T) {
	lf, err := ReadLock(filepath.Join(t.TempDir(), "lock.toml"))
	if err != nil {
		t.Fatalf("ReadLock on a missing file: %v", err)
	}
	if len(lf.Deps) != 0 {
		t.Errorf("missing lock has deps: %v", lf.Deps)
	}
}
