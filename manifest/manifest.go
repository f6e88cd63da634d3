// Package manifest handles sel.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the manifest file looked up in a project directory.
const FileName = "sel.toml"

// DefaultPort is the evaluation service port used when none is configured.
const DefaultPort = 4680

// Manifest represents a sel.toml project configuration.
type Manifest struct {
	Project      Project               `toml:"project" json:"project"`
	Source       Source                `toml:"source" json:"source"`
	Runtime      Runtime               `toml:"runtime" json:"runtime"`
	Server       Server                `toml:"server" json:"server"`
	Journal      Journal               `toml:"journal" json:"journal"`
	Dependencies map[string]Dependency `toml:"dependencies" json:"dependencies,omitempty"`

	// Dir is the directory containing the sel.toml file (set at load time).
	Dir string `toml:"-" json:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name" json:"name"`
	Version string `toml:"version" json:"version"`
}

// Source configures source file locations.
type Source struct {
	Dirs  []string `toml:"dirs" json:"dirs,omitempty"`
	Entry string   `toml:"entry" json:"entry"`
}

// Runtime configures the evaluator.
type Runtime struct {
	MaxCallDepth int `toml:"max-call-depth" json:"max-call-depth"`
}

// Server configures the evaluation service.
type Server struct {
	Port int `toml:"port" json:"port"`
}

// Journal configures the evaluation journal. An empty path disables it.
type Journal struct {
	Path string `toml:"path" json:"path"`
}

// Dependency is a library of SEL modules, either a local directory or a
// git repository checked out under .sel/deps.
type Dependency struct {
	Git  string `toml:"git" json:"git"`
	Tag  string `toml:"tag" json:"tag"`
	Path string `toml:"path" json:"path"`
}

// Parse decodes and validates manifest text. dir becomes the manifest's Dir.
func Parse(data []byte, dir string) (*Manifest, error) {
	var m Manifest
	if _, err := toml.Decode(string(data), &m); err != nil {
		return nil, err
	}

	// Defaults
	if len(m.Source.Dirs) == 0 {
		m.Source.Dirs = []string{"."}
	}
	if m.Server.Port == 0 {
		m.Server.Port = DefaultPort
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	m.Dir = abs
	return &m, nil
}

// Load parses a sel.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m, err := Parse(data, dir)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// FindAndLoad walks up from startDir to find a sel.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, FileName)); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// SourceDirPaths returns absolute paths for the configured source directories.
func (m *Manifest) SourceDirPaths() []string {
	var paths []string
	for _, d := range m.Source.Dirs {
		paths = append(paths, m.resolve(d))
	}
	return paths
}

// EntryPath returns the absolute path of the entry file, or "" if none is set.
func (m *Manifest) EntryPath() string {
	if m.Source.Entry == "" {
		return ""
	}
	return m.resolve(m.Source.Entry)
}

// JournalPath returns the absolute journal path, or "" if journaling is off.
func (m *Manifest) JournalPath() string {
	if m.Journal.Path == "" {
		return ""
	}
	return m.resolve(m.Journal.Path)
}

// DepsDir returns the path to the .sel/deps directory.
func (m *Manifest) DepsDir() string {
	return filepath.Join(m.Dir, ".sel", "deps")
}

// LockFilePath returns the path to .sel/lock.toml.
func (m *Manifest) LockFilePath() string {
	return filepath.Join(m.Dir, ".sel", "lock.toml")
}

func (m *Manifest) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}
