// Package assets serves extension files from a root directory. Every lookup
// is confined to the root: traversal, absolute paths and symlinks that escape
// the root are refused, as are files matching the deny patterns.
package assets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

var (
	// ErrOutsideRoot is returned for paths that resolve outside the root.
	ErrOutsideRoot = errors.New("path is outside the extension root")
	// ErrDenied is returned for paths matching a deny pattern.
	ErrDenied = errors.New("path is denied")
)

// DefaultDeny keeps secrets and VCS metadata out of pages.
var DefaultDeny = []string{
	"**/.git/**",
	"**/.env",
	"**/*.pem",
	"**/*.key",
}

// Guard is an fs.FS rooted at an extension directory.
type Guard struct {
	root string // absolute, symlinks evaluated
	deny []string
}

// Option configures a Guard.
type Option func(*Guard) error

// WithDeny adds doublestar deny patterns, relative to the root.
func WithDeny(patterns ...string) Option {
	return func(g *Guard) error {
		for _, p := range patterns {
			if !doublestar.ValidatePattern(p) {
				return fmt.Errorf("invalid deny pattern %q", p)
			}
			g.deny = append(g.deny, p)
		}
		return nil
	}
}

// NewGuard creates a guard for root. The directory must exist.
func NewGuard(root string, opts ...Option) (*Guard, error) {
	if root == "" {
		return nil, fmt.Errorf("extension root cannot be empty")
	}

	absPath, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve extension root: %w", err)
	}

	// Evaluate any symlinks in the root itself
	evalPath, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate extension root symlinks: %w", err)
	}
	info, err := os.Stat(evalPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat extension root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("extension root %s is not a directory", root)
	}

	g := &Guard{root: evalPath, deny: append([]string(nil), DefaultDeny...)}
	for _, opt := range opts {
		if err := opt(g); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// Root returns the absolute path of the extension root.
func (g *Guard) Root() string {
	return g.root
}

// ResolvePath maps an extension path such as "/js/app.js" to an absolute
// file path inside the root.
func (g *Guard) ResolvePath(name string) (string, error) {
	clean := strings.TrimPrefix(filepath.ToSlash(name), "/")
	if clean == "" {
		clean = "."
	}
	if !fs.ValidPath(clean) {
		return "", &fs.PathError{Op: "resolve", Path: name, Err: fs.ErrInvalid}
	}
	if g.Denied(clean) {
		return "", &fs.PathError{Op: "resolve", Path: name, Err: ErrDenied}
	}

	absPath := filepath.Join(g.root, filepath.FromSlash(clean))
	evalPath, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", &fs.PathError{Op: "resolve", Path: name, Err: fs.ErrNotExist}
		}
		return "", &fs.PathError{Op: "resolve", Path: name, Err: err}
	}
	if !g.IsWithinRoot(evalPath) {
		return "", &fs.PathError{Op: "resolve", Path: name, Err: ErrOutsideRoot}
	}
	return evalPath, nil
}

// IsWithinRoot reports whether an absolute path is the root or below it.
func (g *Guard) IsWithinRoot(absPath string) bool {
	return absPath == g.root || strings.HasPrefix(absPath+string(filepath.Separator), g.root+string(filepath.Separator))
}

// MakeRelative converts an absolute path to a slash-separated path relative
// to the root.
func (g *Guard) MakeRelative(absPath string) (string, error) {
	if !g.IsWithinRoot(absPath) {
		return "", fmt.Errorf("path '%s' is not within the extension root", absPath)
	}
	relPath, err := filepath.Rel(g.root, absPath)
	if err != nil {
		return "", fmt.Errorf("failed to make path relative: %w", err)
	}
	return filepath.ToSlash(relPath), nil
}

// Denied reports whether a root-relative slash path matches a deny pattern.
func (g *Guard) Denied(name string) bool {
	for _, p := range g.deny {
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
	}
	return false
}

// Open implements fs.FS.
func (g *Guard) Open(name string) (fs.File, error) {
	path, err := g.ResolvePath(name)
	if err != nil {
		return nil, retag(err, "open")
	}
	return os.Open(path)
}

// ReadFile implements fs.ReadFileFS.
func (g *Guard) ReadFile(name string) ([]byte, error) {
	path, err := g.ResolvePath(name)
	if err != nil {
		return nil, retag(err, "read")
	}
	return os.ReadFile(path)
}

// Glob expands a doublestar pattern against the root and returns the
// matching files in lexical order. Directories and denied files are omitted.
func (g *Guard) Glob(pattern string) ([]string, error) {
	pattern = strings.TrimPrefix(pattern, "/")
	matches, err := doublestar.Glob(g, pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", pattern, err)
	}
	out := matches[:0]
	for _, m := range matches {
		if !g.Denied(m) {
			out = append(out, m)
		}
	}
	return out, nil
}

func retag(err error, op string) error {
	var pe *fs.PathError
	if errors.As(err, &pe) {
		return &fs.PathError{Op: op, Path: pe.Path, Err: pe.Err}
	}
	return err
}

var (
	_ fs.FS         = (*Guard)(nil)
	_ fs.ReadFileFS = (*Guard)(nil)
)
