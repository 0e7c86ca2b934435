package patch

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"path"
	"strings"
	"sync"
)

// Section and file tags as they appear on the wire.
const (
	Magic        = "TSOp"
	TagPatches   = "IPS_"
	TagAdditions = "ADD_"
	TagDeletions = "DEL_"
)

// Record references one payload inside a container. It describes both binary
// deltas (patches) and whole new files (additions).
type Record struct {
	// Path is relative to the tree root and always uses forward slashes.
	Path string
	// Length is the payload size in bytes.
	Length int32
	// Offset is the absolute stream position where the payload begins.
	Offset int64
}

// Manifest is the parsed description of a container. The record slices keep
// container order, which is also application order.
//
// A Manifest borrows the stream it was parsed from; payloads are read lazily
// by offset, so the stream must outlive any Apply call.
type Manifest struct {
	Version   int32
	Patches   []Record
	Additions []Record
	Deletions []string

	mu     sync.Mutex
	stream io.ReadSeeker
}

// Parse reads a container from r, starting at its current position. No
// payload is read into memory; only offsets are recorded. Any structural
// problem yields an *Error with CodeFormat and no manifest.
func Parse(r io.ReadSeeker) (*Manifest, error) {
	if r == nil {
		return nil, formatError("nil container stream", nil)
	}
	cr, err := newContainerReader(r)
	if err != nil {
		return nil, err
	}

	magic, err := cr.tag()
	if err != nil {
		return nil, err
	}
	if magic != Magic {
		return nil, formatError("not a recognized patch container", nil)
	}
	version, err := cr.int32LE()
	if err != nil {
		return nil, err
	}

	m := &Manifest{Version: version, stream: r}
	if m.Patches, err = cr.records(TagPatches); err != nil {
		return nil, err
	}
	if m.Additions, err = cr.records(TagAdditions); err != nil {
		return nil, err
	}
	if err := cr.expect(TagDeletions); err != nil {
		return nil, err
	}
	count, err := cr.count(TagDeletions, minDeletionSize)
	if err != nil {
		return nil, err
	}
	m.Deletions = make([]string, 0, count)
	for i := 0; i < count; i++ {
		p, err := cr.path()
		if err != nil {
			return nil, err
		}
		m.Deletions = append(m.Deletions, p)
	}
	return m, nil
}

// Payload returns the bytes referenced by rec. Each call seeks to rec.Offset
// before reading, so results never depend on which payloads were read before.
func (m *Manifest) Payload(rec Record) ([]byte, error) {
	if m == nil || m.stream == nil {
		return nil, ioError(rec.Path, "manifest has no container stream", nil)
	}
	if rec.Length < 0 {
		return nil, formatError(fmt.Sprintf("negative payload length %d for %s", rec.Length, rec.Path), nil)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.stream.Seek(rec.Offset, io.SeekStart); err != nil {
		return nil, ioError(rec.Path, "seek to payload", err)
	}
	buf := make([]byte, rec.Length)
	if _, err := io.ReadFull(m.stream, buf); err != nil {
		return nil, ioError(rec.Path, "read payload", err)
	}
	return buf, nil
}

// Smallest encodings of a record: a one-byte path prefix, plus the int32
// payload length for patches and additions.
const (
	minDeletionSize = 1
	minRecordSize   = 1 + 4
)

// containerReader decodes the little-endian primitives of the container
// format while tracking the stream size for truncation checks.
type containerReader struct {
	r    io.ReadSeeker
	size int64
	one  [1]byte
}

func newContainerReader(r io.ReadSeeker) (*containerReader, error) {
	start, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, formatError("container stream is not seekable", err)
	}
	size, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, formatError("container stream is not seekable", err)
	}
	if _, err := r.Seek(start, io.SeekStart); err != nil {
		return nil, formatError("container stream is not seekable", err)
	}
	return &containerReader{r: r, size: size}, nil
}

func (cr *containerReader) read(n int, what string) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(cr.r, buf); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, formatError("truncated container reading "+what, err)
	}
	return buf, nil
}

func (cr *containerReader) tag() (string, error) {
	b, err := cr.read(4, "section tag")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (cr *containerReader) expect(want string) error {
	got, err := cr.tag()
	if err != nil {
		return err
	}
	if got != want {
		return formatError(fmt.Sprintf("expected section %q, found %q", want, got), nil)
	}
	return nil
}

func (cr *containerReader) int32LE() (int32, error) {
	b, err := cr.read(4, "integer")
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(b)), nil
}

// remaining reports how many bytes are left between the current position and
// the end of the stream.
func (cr *containerReader) remaining() (int64, error) {
	pos, err := cr.r.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, formatError("locate read position", err)
	}
	return cr.size - pos, nil
}

// count reads a record count and rejects one that the rest of the stream
// cannot hold, given the smallest possible record of minSize bytes.
func (cr *containerReader) count(section string, minSize int64) (int, error) {
	n, err := cr.int32LE()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, formatError(fmt.Sprintf("negative record count %d in %s", n, section), nil)
	}
	left, err := cr.remaining()
	if err != nil {
		return 0, err
	}
	if int64(n) > left/minSize {
		return 0, formatError(fmt.Sprintf("record count %d in %s exceeds container size", n, section), io.ErrUnexpectedEOF)
	}
	return int(n), nil
}

func (cr *containerReader) ReadByte() (byte, error) {
	if _, err := io.ReadFull(cr.r, cr.one[:]); err != nil {
		return 0, err
	}
	return cr.one[0], nil
}

// path reads a 7-bit variable-length prefixed string and normalizes it.
func (cr *containerReader) path() (string, error) {
	n, err := binary.ReadUvarint(cr)
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return "", formatError("truncated container reading path length", err)
	}
	if n > math.MaxInt32 {
		return "", formatError(fmt.Sprintf("path length %d out of range", n), nil)
	}
	left, err := cr.remaining()
	if err != nil {
		return "", err
	}
	if int64(n) > left {
		return "", formatError(fmt.Sprintf("path length %d runs past end of container", n), io.ErrUnexpectedEOF)
	}
	b, err := cr.read(int(n), "path")
	if err != nil {
		return "", err
	}
	return NormalizePath(string(b))
}

func (cr *containerReader) records(section string) ([]Record, error) {
	if err := cr.expect(section); err != nil {
		return nil, err
	}
	count, err := cr.count(section, minRecordSize)
	if err != nil {
		return nil, err
	}
	records := make([]Record, 0, count)
	for i := 0; i < count; i++ {
		p, err := cr.path()
		if err != nil {
			return nil, err
		}
		length, err := cr.int32LE()
		if err != nil {
			return nil, err
		}
		if length < 0 {
			return nil, formatError(fmt.Sprintf("negative payload length %d for %s", length, p), nil)
		}
		offset, err := cr.r.Seek(0, io.SeekCurrent)
		if err != nil {
			return nil, formatError("locate payload", err)
		}
		if offset+int64(length) > cr.size {
			return nil, formatError(fmt.Sprintf("payload for %s runs past end of container", p), io.ErrUnexpectedEOF)
		}
		if _, err := cr.r.Seek(int64(length), io.SeekCurrent); err != nil {
			return nil, formatError("skip payload", err)
		}
		records = append(records, Record{Path: p, Length: length, Offset: offset})
	}
	return records, nil
}

// NormalizePath converts a container path to the canonical relative form
// used for every comparison: forward slashes, cleaned, never absolute and
// never escaping the tree root.
func NormalizePath(raw string) (string, error) {
	p := strings.ReplaceAll(raw, "\\", "/")
	if strings.TrimSpace(p) == "" {
		return "", formatError("empty path", nil)
	}
	if strings.HasPrefix(p, "/") || hasDriveLetter(p) {
		return "", formatError(fmt.Sprintf("absolute path %q", raw), nil)
	}
	cleaned := path.Clean(p)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", formatError(fmt.Sprintf("path %q escapes the tree root", raw), nil)
	}
	return cleaned, nil
}

// hasDriveLetter reports whether p starts with a Windows volume such as "C:"
// or "c:/".
func hasDriveLetter(p string) bool {
	if len(p) < 2 || p[1] != ':' {
		return false
	}
	c := p[0]
	if !('a' <= c && c <= 'z' || 'A' <= c && c <= 'Z') {
		return false
	}
	return len(p) == 2 || p[2] == '/'
}
