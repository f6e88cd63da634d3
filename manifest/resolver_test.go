package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestResolvePathDependencies(t *testing.T) {
	root := t.TempDir()
	app := filepath.Join(root, "app")
	writeManifest(t, app, `
[project]
name = "app"

[source]
dirs = ["src"]

[dependencies]
shapes = { path = "../shapes" }
`)
	// shapes has a manifest and depends on core; core is a bare directory.
	writeManifest(t, filepath.Join(root, "shapes"), `
[source]
dirs = ["lib"]

[dependencies]
core = { path = "../core" }
`)
	if err := os.MkdirAll(filepath.Join(root, "core"), 0755); err != nil {
		t.Fatal(err)
	}

	m, err := Load(app)
	if err != nil {
		t.Fatal(err)
	}
	deps, err := NewResolver(m).Resolve()
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	var names []string
	for _, d := range deps {
		names = append(names, d.Name)
	}
	if got := strings.Join(names, ","); got != "core,shapes" {
		t.Errorf("load order = %s, want core,shapes", got)
	}

	want := []string{
		filepath.Join(app, "src"),
		filepath.Join(root, "core"),
		filepath.Join(root, "shapes", "lib"),
	}
	got := m.SearchPath(deps)
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("SearchPath() = %v, want %v", got, want)
	}

	lf, err := ReadLock(m.LockFilePath())
	if err != nil {
		t.Fatal(err)
	}
	if d := lf.FindLockedDep("core"); d == nil || d.Path != "../core" {
		t.Errorf("locked core = %+v, want path ../core", d)
	}
	if d := lf.FindLockedDep("shapes"); d == nil || d.Path != "../shapes" {
		t.Errorf("locked shapes = %+v, want path ../shapes", d)
	}
}

func TestResolveMissingPathDependency(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "[dependencies]\nghost = { path = \"nowhere\" }\n")

	m, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewResolver(m).Resolve(); err == nil || !strings.Contains(err.Error(), "ghost") {
		t.Errorf("Resolve() error = %v, want it to name ghost", err)
	}
}

func TestResolveNoDependencies(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "[project]\nname = \"solo\"\n")

	m, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	deps, err := NewResolver(m).Resolve()
	if err != nil || deps != nil {
		t.Errorf("Resolve() = %v, %v; want nil, nil", deps, err)
	}
	if _, err := os.Stat(m.LockFilePath()); !os.IsNotExist(err) {
		t.Errorf("lock file written for a project without dependencies")
	}
}
