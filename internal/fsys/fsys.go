// Package fsys implements the filesystem operations exposed to scripts.
// Every function returns plain Go values so that any script runtime can
// marshal them.
package fsys

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Entry types reported by Type.
const (
	TypeDirectory = "directory"
	TypeSymlink   = "symlink"
	TypeFile      = "file"
	TypeUnknown   = "unknown"
)

// CopyOption controls Copy. Options combine as bit flags.
type CopyOption uint

// CopyNone copies a single file and the top level of a directory.
const CopyNone CopyOption = 0

const (
	CopyRecursive CopyOption = 1 << iota
	CopyUpdateExisting
	CopySkipExisting
	CopyOverwriteExisting
	CopyCreateSymlinks
	CopyCopySymlinks
	CopySkipSymlinks
	CopyDirectoriesOnly
	CopyCreateHardLinks
)

var copyOptionNames = map[string]CopyOption{
	"recursive":          CopyRecursive,
	"update existing":    CopyUpdateExisting,
	"skip existing":      CopySkipExisting,
	"overwrite existing": CopyOverwriteExisting,
	"create symlinks":    CopyCreateSymlinks,
	"copy symlinks":      CopyCopySymlinks,
	"skip symlinks":      CopySkipSymlinks,
	"directories only":   CopyDirectoriesOnly,
	"create hard links":  CopyCreateHardLinks,
}

// ParseCopyOption converts a script-facing option string. Unknown strings
// map to CopyNone.
func ParseCopyOption(s string) CopyOption {
	return copyOptionNames[strings.ToLower(strings.TrimSpace(s))]
}

// ErrNotDirectory is returned by Subpaths for non-directory roots.
var ErrNotDirectory = errors.New("not a directory")

// Remove deletes path. With recursive it removes the whole tree. It returns
// the number of entries removed.
func Remove(path string, recursive bool) (int, error) {
	if !recursive {
		if _, err := os.Lstat(path); errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		if err := os.Remove(path); err != nil {
			return 0, err
		}
		return 1, nil
	}

	count := 0
	err := filepath.WalkDir(path, func(string, fs.DirEntry, error) error {
		count++
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err := os.RemoveAll(path); err != nil {
		return 0, err
	}
	return count, nil
}

// Rename moves from to to.
func Rename(from, to string) error {
	return os.Rename(from, to)
}

// Mkdir creates path. It reports false when the directory already existed.
func Mkdir(path string, recursive bool) (bool, error) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return false, nil
	}
	var err error
	if recursive {
		err = os.MkdirAll(path, 0o755)
	} else {
		err = os.Mkdir(path, 0o755)
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Subpaths lists the entries below dir. With recursive, the listing walks
// the whole tree in lexical order.
func Subpaths(dir string, recursive bool) ([]Path, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("path '%s' must be a directory: %w", dir, ErrNotDirectory)
	}

	var out []Path
	if !recursive {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			out = append(out, NewPath(filepath.Join(dir, e.Name())))
		}
		return out, nil
	}

	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p != dir {
			out = append(out, NewPath(p))
		}
		return nil
	})
	return out, err
}

// Exists reports whether path exists.
func Exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// CurrentDir returns the working directory.
func CurrentDir() (Path, error) {
	wd, err := os.Getwd()
	if err != nil {
		return Path{}, err
	}
	return NewPath(wd), nil
}

// Type classifies path as directory, symlink, file or unknown.
func Type(path string) string {
	info, err := os.Lstat(path)
	if err != nil {
		return TypeUnknown
	}
	switch mode := info.Mode(); {
	case mode&fs.ModeSymlink != 0:
		return TypeSymlink
	case mode.IsDir():
		return TypeDirectory
	case mode.IsRegular():
		return TypeFile
	}
	return TypeUnknown
}

// TempDir returns the system temporary directory.
func TempDir() Path {
	return NewPath(os.TempDir())
}

// Equivalent reports whether a and b resolve to the same file.
func Equivalent(a, b string) (bool, error) {
	ia, err := os.Stat(a)
	if err != nil {
		return false, err
	}
	ib, err := os.Stat(b)
	if err != nil {
		return false, err
	}
	return os.SameFile(ia, ib), nil
}

// Canonical resolves path to an absolute path with symlinks evaluated.
// With weak, a missing tail is allowed and appended unresolved.
func Canonical(path string, weak bool) (Path, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Path{}, err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err == nil {
		return NewPath(resolved), nil
	}
	if !weak {
		return Path{}, err
	}

	// Resolve the longest existing prefix and keep the rest lexically.
	head, tail := abs, ""
	for {
		parent := filepath.Dir(head)
		tail = filepath.Join(filepath.Base(head), tail)
		head = parent
		if r, err := filepath.EvalSymlinks(head); err == nil {
			return NewPath(filepath.Join(r, tail)), nil
		}
		if parent == filepath.Dir(parent) {
			return NewPath(abs), nil
		}
	}
}

// Absolute makes path absolute against the working directory.
func Absolute(path string) (Path, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Path{}, err
	}
	return NewPath(abs), nil
}

// Symlink creates link pointing at target.
func Symlink(target, link string) error {
	return os.Symlink(target, link)
}

// ReadLink returns the target of the symlink at path.
func ReadLink(path string) (Path, error) {
	target, err := os.Readlink(path)
	if err != nil {
		return Path{}, err
	}
	return NewPath(target), nil
}

// Getenv returns the value of key, and false when it is unset.
func Getenv(key string) (Path, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return Path{}, false
	}
	return NewPath(v), true
}

// HomeDir returns the user's home directory.
func HomeDir() (Path, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Path{}, fmt.Errorf("failed to get HOME directory: %w", err)
	}
	return NewPath(home), nil
}

// Copy copies a file, symlink or directory from from to to.
func Copy(from, to string, opts CopyOption) error {
	info, err := os.Lstat(from)
	if err != nil {
		return err
	}
	switch {
	case info.Mode()&fs.ModeSymlink != 0:
		target, err := os.Readlink(from)
		if err != nil {
			return err
		}
		return os.Symlink(target, to)
	case info.Mode().IsRegular():
		return copyFile(from, to, info, opts)
	case info.IsDir():
		return copyDir(from, to, opts)
	}
	return fmt.Errorf("copy %s: unsupported file type", from)
}

func copyDir(from, to string, opts CopyOption) error {
	if err := os.MkdirAll(to, 0o755); err != nil {
		return err
	}
	entries, err := os.ReadDir(from)
	if err != nil {
		return err
	}
	for _, e := range entries {
		src := filepath.Join(from, e.Name())
		dst := filepath.Join(to, e.Name())
		info, err := os.Lstat(src)
		if err != nil {
			return err
		}
		switch {
		case info.IsDir():
			if opts&(CopyRecursive|CopyDirectoriesOnly) == 0 {
				continue
			}
			if opts&CopyRecursive == 0 {
				if err := os.MkdirAll(dst, 0o755); err != nil {
					return err
				}
				continue
			}
			if err := copyDir(src, dst, opts); err != nil {
				return err
			}
		case info.Mode()&fs.ModeSymlink != 0:
			if opts&CopySkipSymlinks != 0 || opts&CopyDirectoriesOnly != 0 {
				continue
			}
			if opts&CopyCopySymlinks != 0 {
				target, err := os.Readlink(src)
				if err != nil {
					return err
				}
				if err := os.Symlink(target, dst); err != nil {
					return err
				}
				continue
			}
			resolved, err := os.Stat(src)
			if err != nil {
				return err
			}
			if err := copyFile(src, dst, resolved, opts); err != nil {
				return err
			}
		default:
			if opts&CopyDirectoriesOnly != 0 {
				continue
			}
			if err := copyFile(src, dst, info, opts); err != nil {
				return err
			}
		}
	}
	return nil
}

func copyFile(from, to string, info fs.FileInfo, opts CopyOption) error {
	if existing, err := os.Stat(to); err == nil {
		switch {
		case opts&CopySkipExisting != 0:
			return nil
		case opts&CopyUpdateExisting != 0:
			if !info.ModTime().After(existing.ModTime()) {
				return nil
			}
		case opts&CopyOverwriteExisting == 0:
			return fmt.Errorf("copy %s: %w", to, fs.ErrExist)
		}
	}

	switch {
	case opts&CopyCreateSymlinks != 0:
		abs, err := filepath.Abs(from)
		if err != nil {
			return err
		}
		os.Remove(to)
		return os.Symlink(abs, to)
	case opts&CopyCreateHardLinks != 0:
		os.Remove(to)
		return os.Link(from, to)
	}

	src, err := os.Open(from)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(to, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}
