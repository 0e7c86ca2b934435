package source

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	s3v2 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	objects map[string]string
	gotKey  string
}

func (f *fakeS3) GetObject(_ context.Context, in *s3v2.GetObjectInput, _ ...func(*s3v2.Options)) (*s3v2.GetObjectOutput, error) {
	key := awsv2.ToString(in.Bucket) + "/" + awsv2.ToString(in.Key)
	f.gotKey = key
	body, ok := f.objects[key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3v2.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func TestOpenLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "update.pkg")
	require.NoError(t, os.WriteFile(path, []byte("TSOp-data"), 0o644))

	h, err := Open(context.Background(), path, Options{})
	require.NoError(t, err)
	defer h.Close()

	require.Equal(t, int64(9), h.Size)
	data, err := io.ReadAll(h)
	require.NoError(t, err)
	require.Equal(t, "TSOp-data", string(data))
}

func TestOpenRejectsDirectoriesAndMissingFiles(t *testing.T) {
	_, err := Open(context.Background(), t.TempDir(), Options{})
	require.Error(t, err)

	_, err = Open(context.Background(), filepath.Join(t.TempDir(), "absent.pkg"), Options{})
	require.ErrorIs(t, err, os.ErrNotExist)

	_, err = Open(context.Background(), "  ", Options{})
	require.Error(t, err)
}

func TestOpenS3SpoolsToSeekableFile(t *testing.T) {
	tmp := t.TempDir()
	client := &fakeS3{objects: map[string]string{"updates/v2/patch.pkg": "remote-container"}}

	h, err := Open(context.Background(), "s3://updates/v2/patch.pkg", Options{Client: client, TempDir: tmp})
	require.NoError(t, err)
	require.Equal(t, "updates/v2/patch.pkg", client.gotKey)
	require.Equal(t, int64(len("remote-container")), h.Size)

	_, err = h.Seek(7, io.SeekStart)
	require.NoError(t, err)
	rest, err := io.ReadAll(h)
	require.NoError(t, err)
	require.Equal(t, "container", string(rest))

	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	require.NoError(t, h.Close())
	entries, err = os.ReadDir(tmp)
	require.NoError(t, err)
	require.Empty(t, entries, "spool file should be removed on close")
}

func TestOpenS3PropagatesErrors(t *testing.T) {
	tmp := t.TempDir()
	_, err := Open(context.Background(), "s3://updates/missing.pkg", Options{Client: &fakeS3{}, TempDir: tmp})
	require.ErrorContains(t, err, "NoSuchKey")

	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestOpenStdin(t *testing.T) {
	h, err := Open(context.Background(), Stdin, Options{Stdin: strings.NewReader("piped"), TempDir: t.TempDir()})
	require.NoError(t, err)
	defer h.Close()

	data, err := io.ReadAll(h)
	require.NoError(t, err)
	require.Equal(t, "piped", string(data))
}

func TestParseS3URL(t *testing.T) {
	bucket, key, err := ParseS3URL("s3://my-bucket/releases/1.2/update.pkg")
	require.NoError(t, err)
	require.Equal(t, "my-bucket", bucket)
	require.Equal(t, "releases/1.2/update.pkg", key)

	for _, bad := range []string{"s3://bucket-only", "s3:///key", "https://bucket/key"} {
		_, _, err := ParseS3URL(bad)
		require.Error(t, err, bad)
	}
}
