package patch

import (
	"errors"
	"io"
	"io/fs"
	"reflect"
	"testing"
)

func TestMemoryFSReadWrite(t *testing.T) {
	t.Parallel()

	seed := map[string][]byte{"root/a.txt": []byte("a")}
	m := NewMemoryFS(seed)
	seed["root/a.txt"][0] = 'z'

	got, err := m.ReadFile("root/a.txt")
	if err != nil {
		t.Fatalf("ReadFile returned error: %v", err)
	}
	if string(got) != "a" {
		t.Fatalf("seed map must be copied, got %q", got)
	}

	w, err := m.Create("root/sub/b.txt")
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if _, err := io.WriteString(w, "bee"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	r, err := m.Open("root/sub/b.txt")
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	data, _ := io.ReadAll(r)
	if string(data) != "bee" {
		t.Fatalf("unexpected content: %q", data)
	}
	if _, err := m.ReadFile("root/none"); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected not-exist, got %v", err)
	}
}

func TestMemoryFSFilesAndRemove(t *testing.T) {
	t.Parallel()

	m := NewMemoryFS(map[string][]byte{
		"root/a.txt":     nil,
		"root/b/c.txt":   nil,
		"rootless/d.txt": nil,
		"e.txt":          nil,
	})

	files, err := m.Files("root")
	if err != nil {
		t.Fatalf("Files returned error: %v", err)
	}
	if want := []string{"a.txt", "b/c.txt"}; !reflect.DeepEqual(files, want) {
		t.Fatalf("Files(root) = %#v, want %#v", files, want)
	}
	if all, _ := m.Files("."); len(all) != 4 {
		t.Fatalf("Files(.) = %#v", all)
	}
	if _, err := m.Files("nowhere"); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected not-exist for unknown root, got %v", err)
	}

	if err := m.Remove("root/a.txt"); err != nil {
		t.Fatalf("Remove returned error: %v", err)
	}
	if err := m.Remove("root/a.txt"); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected not-exist, got %v", err)
	}
}
