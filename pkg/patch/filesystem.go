package patch

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// FS is the file-system surface the engine touches. Names passed to FS
// methods are root-joined paths built by the engine; Files returns paths
// relative to root with forward slashes.
type FS interface {
	Open(name string) (io.ReadCloser, error)
	ReadFile(name string) ([]byte, error)
	// Create truncates or creates name, creating parent directories first.
	Create(name string) (io.WriteCloser, error)
	Remove(name string) error
	Files(root string) ([]string, error)
}

// OSFS implements FS on the local file system.
type OSFS struct{}

// NewOSFS returns an FS backed by the operating system.
func NewOSFS() *OSFS {
	return &OSFS{}
}

func (OSFS) Open(name string) (io.ReadCloser, error) {
	return os.Open(name)
}

func (OSFS) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}

func (OSFS) Create(name string) (io.WriteCloser, error) {
	if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory for %s: %w", name, err)
	}
	return os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
}

func (OSFS) Remove(name string) error {
	info, err := os.Lstat(name)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return &fs.PathError{Op: "remove", Path: name, Err: errors.New("is a directory")}
	}
	return os.Remove(name)
}

// Files walks root depth-first and returns every non-directory entry. Symlinks
// to files are listed; symlinked directories are not descended.
func (OSFS) Files(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			info, statErr := os.Stat(p)
			if statErr != nil || info.IsDir() {
				return nil
			}
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
