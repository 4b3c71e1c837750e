// Package pathutil confines file paths supplied by untrusted callers (MCP
// tool arguments) to a set of directories.
package pathutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Sandbox resolves caller-supplied paths against a fixed set of root
// directories. Symlinks are followed before the containment check.
type Sandbox struct {
	roots []string
}

// NewSandbox returns a sandbox over roots. Roots need not exist yet; the
// first one is the base for relative paths.
func NewSandbox(roots ...string) (*Sandbox, error) {
	if len(roots) == 0 {
		return nil, fmt.Errorf("sandbox needs at least one directory")
	}
	sb := &Sandbox{}
	for _, root := range roots {
		if root == "" {
			return nil, fmt.Errorf("sandbox directory is empty")
		}
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", RedactPath(root), err)
		}
		resolved, err := resolveExisting(abs)
		if err != nil {
			return nil, err
		}
		sb.roots = append(sb.roots, resolved)
	}
	return sb, nil
}

// Base is the directory relative paths are joined to.
func (sb *Sandbox) Base() string { return sb.roots[0] }

// Resolve returns the absolute, symlink-free form of path, or an error when
// it falls outside every root. Relative paths are taken relative to Base.
func (sb *Sandbox) Resolve(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.ContainsRune(path, '\x00') {
		return "", fmt.Errorf("path contains null byte")
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(sb.Base(), path)
	}
	abs := filepath.Clean(path)

	// The file itself may not exist yet, so only its directory is resolved.
	dir, err := resolveExisting(filepath.Dir(abs))
	if err != nil {
		return "", err
	}
	resolved := filepath.Join(dir, filepath.Base(abs))

	for _, root := range sb.roots {
		if within(resolved, root) {
			return resolved, nil
		}
	}
	return "", fmt.Errorf("%q is outside the allowed directories", RedactPath(abs))
}

// RedactPath shortens a path to .../<parent>/<base> for error messages sent
// back to a client.
func RedactPath(path string) string {
	if path == "" {
		return ""
	}
	cleaned := filepath.Clean(path)
	parent := filepath.Base(filepath.Dir(cleaned))
	if parent == "." || parent == string(filepath.Separator) {
		return filepath.Base(cleaned)
	}
	return ".../" + parent + "/" + filepath.Base(cleaned)
}

// resolveExisting evaluates symlinks on the deepest existing ancestor of
// path and re-appends the missing tail.
func resolveExisting(path string) (string, error) {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved, nil
	}
	parent := filepath.Dir(path)
	if parent == path {
		return "", fmt.Errorf("cannot resolve %s", RedactPath(path))
	}
	resolvedParent, err := resolveExisting(parent)
	if err != nil {
		return "", err
	}
	return filepath.Join(resolvedParent, filepath.Base(path)), nil
}

func within(path, root string) bool {
	if path == root {
		return true
	}
	return strings.HasPrefix(path, strings.TrimSuffix(root, string(os.PathSeparator))+string(os.PathSeparator))
}
