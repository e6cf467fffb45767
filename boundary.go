package editforge

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideBoundary is returned by Boundary.Resolve for paths that escape
// the project root, whether by lexical traversal or through a symlink.
var ErrOutsideBoundary = errors.New("path outside project boundary")

// Boundary confines file mutation to a single root directory. The root is
// resolved once at construction; Resolve never consults ambient state.
type Boundary struct {
	root string
}

// NewBoundary resolves root to an absolute, symlink-free path. An empty
// root defaults to the current working directory.
func NewBoundary(root string) (*Boundary, error) {
	if root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		root = cwd
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("invalid project root: %w", err)
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("invalid project root %s: %w", root, err)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return nil, fmt.Errorf("invalid project root %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("project root %s is not a directory", root)
	}

	return &Boundary{root: resolved}, nil
}

func (b *Boundary) Root() string {
	return b.root
}

// Resolve turns name into an absolute path and verifies it lies at or under
// the root. Relative names are joined to the root. Symlinks on the existing
// portion of the path are followed so a link cannot smuggle a write outside
// the boundary.
func (b *Boundary) Resolve(name string) (string, error) {
	p := name
	if !filepath.IsAbs(p) {
		p = filepath.Join(b.root, p)
	}
	p = filepath.Clean(p)

	dir := filepath.Dir(p)
	resolvedDir, err := filepath.EvalSymlinks(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			return "", err
		}
		// Parent does not exist yet; the lexical path is all there is.
		resolvedDir = dir
	}

	full := filepath.Join(resolvedDir, filepath.Base(p))
	if !b.contains(full) {
		return "", ErrOutsideBoundary
	}

	// The target itself may be a symlink escaping the root.
	if fi, err := os.Lstat(full); err == nil && fi.Mode()&os.ModeSymlink != 0 {
		target, err := filepath.EvalSymlinks(full)
		if err != nil {
			return "", err
		}
		if !b.contains(target) {
			return "", ErrOutsideBoundary
		}
	}

	return full, nil
}

func (b *Boundary) contains(path string) bool {
	if path == b.root {
		return true
	}
	return strings.HasPrefix(path, b.root+string(os.PathSeparator))
}
