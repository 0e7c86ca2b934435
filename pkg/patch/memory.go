package patch

import (
	"bytes"
	"io"
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// MemoryFS is an in-memory FS keyed by slash-separated paths. It is useful for
// tests and for embedding the engine where a real directory is not wanted.
// Directories are implicit.
type MemoryFS struct {
	mu    sync.Mutex
	files map[string][]byte
}

// NewMemoryFS returns a MemoryFS seeded with a copy of files.
func NewMemoryFS(files map[string][]byte) *MemoryFS {
	m := &MemoryFS{files: make(map[string][]byte, len(files))}
	for k, v := range files {
		m.files[clean(k)] = append([]byte(nil), v...)
	}
	return m
}

func clean(p string) string {
	if p == "" {
		return "."
	}
	return filepath.ToSlash(filepath.Clean(p))
}

// Snapshot returns a copy of every file currently stored.
func (m *MemoryFS) Snapshot() map[string][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string][]byte, len(m.files))
	for k, v := range m.files {
		out[k] = append([]byte(nil), v...)
	}
	return out
}

func (m *MemoryFS) Open(name string) (io.ReadCloser, error) {
	data, err := m.ReadFile(name)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *MemoryFS) ReadFile(name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[clean(name)]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryFS) Create(name string) (io.WriteCloser, error) {
	key := clean(name)
	m.mu.Lock()
	m.files[key] = nil
	m.mu.Unlock()
	return &memoryFile{fs: m, key: key}, nil
}

func (m *MemoryFS) Remove(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := clean(name)
	if _, ok := m.files[key]; !ok {
		return &fs.PathError{Op: "remove", Path: name, Err: fs.ErrNotExist}
	}
	delete(m.files, key)
	return nil
}

func (m *MemoryFS) Files(root string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := clean(root)
	var files []string
	for key := range m.files {
		rel, ok := relativeTo(prefix, key)
		if ok {
			files = append(files, rel)
		}
	}
	if len(files) == 0 && !m.hasDir(prefix) {
		return nil, &fs.PathError{Op: "walk", Path: root, Err: fs.ErrNotExist}
	}
	sort.Strings(files)
	return files, nil
}

func (m *MemoryFS) hasDir(dir string) bool {
	if dir == "." || dir == "/" {
		return true
	}
	for key := range m.files {
		if strings.HasPrefix(key, dir+"/") {
			return true
		}
	}
	return false
}

func relativeTo(root, key string) (string, bool) {
	if root == "." {
		return key, !path.IsAbs(key)
	}
	if root == "/" {
		return strings.TrimPrefix(key, "/"), strings.HasPrefix(key, "/")
	}
	rest, ok := strings.CutPrefix(key, root+"/")
	return rest, ok && rest != ""
}

type memoryFile struct {
	fs  *MemoryFS
	key string
	buf bytes.Buffer
}

func (f *memoryFile) Write(p []byte) (int, error) {
	return f.buf.Write(p)
}

func (f *memoryFile) Close() error {
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()
	f.fs.files[f.key] = append([]byte(nil), f.buf.Bytes()...)
	return nil
}
