package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("sel.manifest")

// ResolvedDep is a dependency resolved to a local directory.
type ResolvedDep struct {
	Name      string     // dependency name
	Dep       Dependency // declaration it was resolved from
	LocalPath string     // local filesystem path
	Manifest  *Manifest // the dependency's own manifest (may be nil)
}

// ImportDirs returns the directories the dependency contributes to the
// import search path: its source dirs if it has a manifest, else its root.
func (d ResolvedDep) ImportDirs() []string {
	if d.Manifest != nil {
		return d.Manifest.SourceDirPaths()
	}
	return []string{d.LocalPath}
}

// Resolver manages dependency resolution.
type Resolver struct {
	manifest *Manifest
	lock     *LockFile
}

// NewResolver creates a new dependency resolver.
func NewResolver(m *Manifest) *Resolver {
	return &Resolver{manifest: m}
}

// Resolve resolves all dependencies and returns them in load order
// (dependencies before dependents), then rewrites the lock file.
func (r *Resolver) Resolve() ([]ResolvedDep, error) {
	if len(r.manifest.Dependencies) == 0 {
		return nil, nil
	}

	lock, err := ReadLock(r.manifest.LockFilePath())
	if err != nil {
		return nil, fmt.Errorf("reading lock file: %w", err)
	}
	r.lock = lock

	if err := os.MkdirAll(r.manifest.DepsDir(), 0755); err != nil {
		return nil, fmt.Errorf("creating deps dir: %w", err)
	}

	resolved := make(map[string]*ResolvedDep)
	order, err := r.resolveAll(r.manifest, resolved)
	if err != nil {
		return nil, err
	}

	if err := r.writeLock(resolved); err != nil {
		return nil, fmt.Errorf("writing lock file: %w", err)
	}
	return order, nil
}

// resolveAll resolves the dependencies of owner recursively. Names are
// visited in sorted order so the load order is stable.
func (r *Resolver) resolveAll(owner *Manifest, resolved map[string]*ResolvedDep) ([]ResolvedDep, error) {
	names := make([]string, 0, len(owner.Dependencies))
	for name := range owner.Dependencies {
		names = append(names, name)
	}
	sort.Strings(names)

	var order []ResolvedDep
	for _, name := range names {
		if _, ok := resolved[name]; ok {
			continue
		}

		rd, err := r.resolveOne(owner, name, owner.Dependencies[name])
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", name, err)
		}
		resolved[name] = rd

		if rd.Manifest != nil && len(rd.Manifest.Dependencies) > 0 {
			transitive, err := r.resolveAll(rd.Manifest, resolved)
			if err != nil {
				return nil, err
			}
			order = append(order, transitive...)
		}
		order = append(order, *rd)
	}
	return order, nil
}

// resolveOne resolves a single dependency declared by owner. Relative
// paths are taken from the owner's directory.
func (r *Resolver) resolveOne(owner *Manifest, name string, dep Dependency) (*ResolvedDep, error) {
	switch {
	case dep.Path != "":
		localPath, err := filepath.Abs(owner.resolve(dep.Path))
		if err != nil {
			return nil, fmt.Errorf("invalid path %q: %w", dep.Path, err)
		}
		if _, err := os.Stat(localPath); err != nil {
			return nil, fmt.Errorf("local dependency %q not found at %s: %w", name, localPath, err)
		}
		return &ResolvedDep{Name: name, Dep: dep, LocalPath: localPath, Manifest: loadOptional(localPath)}, nil

	case dep.Git != "":
		depDir := filepath.Join(r.manifest.DepsDir(), name)

		if _, err := os.Stat(depDir); os.IsNotExist(err) {
			log.Infof("cloning %s from %s", name, dep.Git)
			if err := gitClone(dep.Git, depDir); err != nil {
				return nil, err
			}
		} else if locked := r.lock.FindLockedDep(name); locked == nil || locked.Tag != dep.Tag {
			log.Infof("fetching %s", name)
			if err := gitFetch(depDir); err != nil {
				return nil, err
			}
		}

		if dep.Tag != "" {
			if err := gitCheckout(depDir, dep.Tag); err != nil {
				return nil, err
			}
		}
		return &ResolvedDep{Name: name, Dep: dep, LocalPath: depDir, Manifest: loadOptional(depDir)}, nil
	}

	return nil, fmt.Errorf("dependency %q has no git or path specified", name)
}

// loadOptional loads the manifest in dir if there is a valid one.
func loadOptional(dir string) *Manifest {
	m, err := Load(dir)
	if err != nil {
		log.Debugf("no usable manifest in %s: %s", dir, err)
		return nil
	}
	return m
}

// writeLock writes the resolved dependencies to the lock file.
func (r *Resolver) writeLock(resolved map[string]*ResolvedDep) error {
	lf := &LockFile{}
	for _, rd := range resolved {
		ld := LockedDep{Name: rd.Name}
		if rd.Dep.Git != "" {
			ld.Git = rd.Dep.Git
			ld.Tag = rd.Dep.Tag
			if commit, err := gitCurrentCommit(rd.LocalPath); err == nil {
				ld.Commit = commit
			}
		} else {
			ld.Path = rd.Dep.Path
		}
		lf.Deps = append(lf.Deps, ld)
	}

	if err := os.MkdirAll(filepath.Dir(r.manifest.LockFilePath()), 0755); err != nil {
		return err
	}
	return WriteLock(r.manifest.LockFilePath(), lf)
}

// SearchPath returns the import search path for the project: its own
// source directories followed by those of every dependency in load order.
func (m *Manifest) SearchPath(deps []ResolvedDep) []string {
	dirs := m.SourceDirPaths()
	for _, d := range deps {
		dirs = append(dirs, d.ImportDirs()...)
	}
	return dirs
}
