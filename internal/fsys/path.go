package fsys

import (
	"os"
	"path/filepath"
	"strings"
)

// Path is an immutable filesystem path value.
type Path struct {
	raw string
}

// NewPath wraps s without touching the filesystem.
func NewPath(s string) Path {
	return Path{raw: s}
}

// String returns the path as given.
func (p Path) String() string { return p.raw }

// Native returns the path with OS-specific separators.
func (p Path) Native() string { return filepath.FromSlash(p.raw) }

// Generic returns the path with forward slashes.
func (p Path) Generic() string { return filepath.ToSlash(p.raw) }

// Filename returns the last element of the path.
func (p Path) Filename() string {
	if p.raw == "" {
		return ""
	}
	if strings.HasSuffix(p.raw, string(filepath.Separator)) || strings.HasSuffix(p.raw, "/") {
		return ""
	}
	return filepath.Base(p.raw)
}

// Extension returns the extension of the filename including the dot.
// Dot-files such as ".bashrc" have no extension.
func (p Path) Extension() string {
	name := p.Filename()
	if name == "" || name == "." || name == ".." {
		return ""
	}
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		return name[i:]
	}
	return ""
}

// Stem returns the filename without its extension.
func (p Path) Stem() string {
	name := p.Filename()
	return strings.TrimSuffix(name, p.Extension())
}

// Parent returns the containing directory.
func (p Path) Parent() Path {
	if p.raw == "" {
		return Path{}
	}
	return NewPath(filepath.Dir(p.raw))
}

// IsAbsolute reports whether the path is absolute.
func (p Path) IsAbsolute() bool { return filepath.IsAbs(p.raw) }

// IsRelative reports whether the path is relative.
func (p Path) IsRelative() bool { return !p.IsAbsolute() }

// Join appends elements to the path.
func (p Path) Join(elem ...string) Path {
	return NewPath(filepath.Join(append([]string{p.raw}, elem...)...))
}

// Type classifies the path on disk.
func (p Path) Type() string { return Type(p.raw) }

// Canonical resolves the path; see Canonical.
func (p Path) Canonical() (Path, error) { return Canonical(p.raw, false) }

// Absolute makes the path absolute; see Absolute.
func (p Path) Absolute() (Path, error) { return Absolute(p.raw) }

// Children lists the direct entries of a directory path.
func (p Path) Children() ([]Path, error) { return Subpaths(p.raw, false) }

// Equal reports lexical equality after cleaning.
func (p Path) Equal(o Path) bool {
	return filepath.Clean(p.raw) == filepath.Clean(o.raw)
}

// Exists reports whether the path exists on disk.
func (p Path) Exists() bool {
	_, err := os.Lstat(p.raw)
	return err == nil
}
