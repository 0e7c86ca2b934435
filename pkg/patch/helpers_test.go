package patch

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"
)

type entry struct {
	path    string
	payload []byte
}

// containerBytes encodes a container the same way the update builder does.
func containerBytes(t testing.TB, version int32, patches, additions []entry, deletions []string) []byte {
	t.Helper()

	var buf bytes.Buffer
	buf.WriteString(Magic)
	writeInt32(&buf, version)

	writeSection := func(tag string, entries []entry) {
		buf.WriteString(tag)
		writeInt32(&buf, int32(len(entries)))
		for _, e := range entries {
			writeString(&buf, e.path)
			writeInt32(&buf, int32(len(e.payload)))
			buf.Write(e.payload)
		}
	}
	writeSection(TagPatches, patches)
	writeSection(TagAdditions, additions)

	buf.WriteString(TagDeletions)
	writeInt32(&buf, int32(len(deletions)))
	for _, d := range deletions {
		writeString(&buf, d)
	}
	return buf.Bytes()
}

func writeInt32(buf *bytes.Buffer, v int32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	buf.Write(b[:])
}

func writeString(buf *bytes.Buffer, s string) {
	buf.Write(binary.AppendUvarint(nil, uint64(len(s))))
	buf.WriteString(s)
}

func mustParse(t testing.TB, data []byte) *Manifest {
	t.Helper()
	m, err := Parse(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	return m
}

// appendPatcher is a stand-in diff-patch capability: the new content is the
// old content followed by the delta.
var appendPatcher = PatcherFunc(func(old io.Reader, new io.Writer, delta io.Reader) error {
	if _, err := io.Copy(new, old); err != nil {
		return err
	}
	_, err := io.Copy(new, delta)
	return err
})
