/*
 * Copyright (c) 2024-present unTill Pro, Ltd.
 * @author Alisher Nurmanov
 */

package resolve

import (
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/solidkit/buildcore/pkg/source"
	"github.com/solidkit/buildcore/pkg/srcname"
)

// Resolver maps SourceNames to Files, recursively, caching per-source-name
// lookups within a single build so a diamond of imports resolves each
// dependency exactly once.
type Resolver struct {
	projectRoot string
	locator     PackageLocator

	mu       sync.Mutex
	cache    map[srcname.Name]*File
	inflight map[srcname.Name]chan struct{}
	// packageRoots memoizes package-name -> root dir lookups so a package
	// imported by many files only pays PackageLocator.Locate once.
	packageRoots map[string]string
}

// New builds a Resolver rooted at projectRoot. locator may be nil if the
// project never imports third-party packages.
func New(projectRoot string, locator PackageLocator) *Resolver {
	return &Resolver{
		projectRoot:  projectRoot,
		locator:      locator,
		cache:        make(map[srcname.Name]*File),
		inflight:     make(map[srcname.Name]chan struct{}),
		packageRoots: make(map[string]string),
	}
}

// Resolve maps a single SourceName to its File, recursing into imports only
// far enough to canonicalize them (full transitive closure is the job of
// ResolveMany plus the dependency graph builder).
func (r *Resolver) Resolve(name srcname.Name) (*File, error) {
	if f, ok := r.take(name); ok {
		return f, nil
	}
	defer r.release(name)

	absPath, pkgName, err := r.locate(name)
	if err != nil {
		return nil, err
	}
	if _, statErr := os.Stat(absPath); statErr != nil {
		return nil, errFileNotFound(name, absPath)
	}
	read, err := source.ReadFile(absPath)
	if err != nil {
		return nil, err
	}

	isProjectFile := pkgName == ""
	imports := make([]srcname.Name, 0, len(read.Imports))
	for _, spec := range read.Imports {
		imported := srcname.Canonicalize(name, spec)
		if isProjectFile && srcname.IsRelative(spec) && srcname.EscapesRoot(imported) {
			return nil, errIllegalImport(name, imported)
		}
		imports = append(imports, imported)
	}

	f := &File{
		SourceName:           name,
		AbsolutePath:         absPath,
		ContentText:          read.Text,
		ContentHash:          read.ContentHash,
		LastModificationTime: read.LastModificationTime,
		Imports:              imports,
		VersionPragmas:       read.VersionPragmas,
		PackageName:          pkgName,
	}
	r.store(name, f)
	return f, nil
}

// ResolveMany is the top-level entry point: it resolves every root and,
// together with the dependency graph builder (which calls back into
// Resolve for each newly discovered import), performs the transitive
// traversal until the file set is closed under imports.
func (r *Resolver) ResolveMany(names []srcname.Name) ([]*File, error) {
	type result struct {
		file *File
		err  error
	}
	results := make([]result, len(names))
	var wg sync.WaitGroup
	for i, n := range names {
		wg.Add(1)
		go func(i int, n srcname.Name) {
			defer wg.Done()
			f, err := r.Resolve(n)
			results[i] = result{f, err}
		}(i, n)
	}
	wg.Wait()

	files := make([]*File, 0, len(names))
	var errs []error
	for _, res := range results {
		if res.err != nil {
			errs = append(errs, res.err)
			continue
		}
		files = append(files, res.file)
	}
	return files, errors.Join(errs...)
}

// locate turns a SourceName into an absolute path and, if it came from a
// third-party tree, the owning package's name.
func (r *Resolver) locate(name srcname.Name) (absPath, pkgName string, err error) {
	projectPath := filepath.Join(r.projectRoot, filepath.FromSlash(string(name)))
	if _, statErr := os.Stat(projectPath); statErr == nil {
		return projectPath, "", nil
	}
	head, rest, ok := name.SplitPackageRoot()
	if !ok || r.locator == nil {
		return projectPath, "", nil
	}
	root, err := r.packageRootFor(head)
	if err != nil {
		return "", "", err
	}
	return filepath.Join(root, filepath.FromSlash(rest)), head, nil
}

func (r *Resolver) packageRootFor(pkg string) (string, error) {
	r.mu.Lock()
	if root, ok := r.packageRoots[pkg]; ok {
		r.mu.Unlock()
		return root, nil
	}
	r.mu.Unlock()

	if r.locator == nil {
		return "", errPackageNotInstalled(pkg, nil)
	}
	root, err := r.locator.Locate(pkg)
	if err != nil {
		return "", errPackageNotInstalled(pkg, err)
	}

	r.mu.Lock()
	r.packageRoots[pkg] = root
	r.mu.Unlock()
	return root, nil
}

// take returns a cached File if present, otherwise reserves the slot for
// the caller (subsequent concurrent resolvers of the same name block on
// release via the inflight channel) so a diamond-shaped import graph never
// reads the same file twice.
func (r *Resolver) take(name srcname.Name) (*File, bool) {
	r.mu.Lock()
	if f, ok := r.cache[name]; ok {
		r.mu.Unlock()
		return f, true
	}
	ch, inflight := r.inflight[name]
	if !inflight {
		r.inflight[name] = make(chan struct{})
		r.mu.Unlock()
		return nil, false
	}
	r.mu.Unlock()
	<-ch
	r.mu.Lock()
	f := r.cache[name]
	r.mu.Unlock()
	return f, f != nil
}

func (r *Resolver) store(name srcname.Name, f *File) {
	r.mu.Lock()
	r.cache[name] = f
	r.mu.Unlock()
}

func (r *Resolver) release(name srcname.Name) {
	r.mu.Lock()
	ch, ok := r.inflight[name]
	delete(r.inflight, name)
	r.mu.Unlock()
	if ok {
		close(ch)
	}
}
