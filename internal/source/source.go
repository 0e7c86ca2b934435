// Package source opens update containers from wherever they are stored and
// hands them over as seekable, single-owner handles.
//
// Local files are opened directly. Containers on S3 or on standard input are
// spooled to a temporary file first because payloads are read lazily by
// offset and need a seekable stream.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
)

// Stdin is the location that reads a container from standard input.
const Stdin = "-"

// Handle is an open container. Close releases the file and removes any
// temporary spool.
type Handle struct {
	*os.File
	// Location is what the caller asked for.
	Location string
	// Size is the container size in bytes.
	Size int64

	spool string
}

// Close closes the file and deletes the spool file, if any.
func (h *Handle) Close() error {
	err := h.File.Close()
	if h.spool != "" {
		if rmErr := os.Remove(h.spool); rmErr != nil && err == nil {
			err = rmErr
		}
	}
	return err
}

// Options configure Open.
type Options struct {
	// Client fetches S3 objects. When nil, one is built from S3Config.
	Client ObjectGetter
	// S3Config is used to build a client on demand.
	S3Config S3Config
	// Stdin is read when the location is "-". Defaults to os.Stdin.
	Stdin io.Reader
	// TempDir holds spool files. Defaults to os.TempDir.
	TempDir string
}

// Open returns a handle for location: a local path, "-" for standard input,
// or an s3://bucket/key URL.
func Open(ctx context.Context, location string, opts Options) (*Handle, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, errors.New("source: empty container location")
	}

	switch {
	case location == Stdin:
		in := opts.Stdin
		if in == nil {
			in = os.Stdin
		}
		return spool(location, in, opts.TempDir)
	case strings.HasPrefix(location, "s3://"):
		bucket, key, err := ParseS3URL(location)
		if err != nil {
			return nil, err
		}
		client := opts.Client
		if client == nil {
			client, err = NewS3Client(ctx, opts.S3Config)
			if err != nil {
				return nil, err
			}
		}
		body, err := getObject(ctx, client, bucket, key)
		if err != nil {
			return nil, err
		}
		defer body.Close()
		return spool(location, body, opts.TempDir)
	default:
		f, err := os.Open(location)
		if err != nil {
			return nil, fmt.Errorf("source: open %s: %w", location, err)
		}
		info, err := f.Stat()
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("source: stat %s: %w", location, err)
		}
		if info.IsDir() {
			_ = f.Close()
			return nil, fmt.Errorf("source: %s is a directory", location)
		}
		return &Handle{File: f, Location: location, Size: info.Size()}, nil
	}
}

// ParseS3URL splits s3://bucket/key into its parts.
func ParseS3URL(raw string) (bucket, key string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("source: parse %s: %w", raw, err)
	}
	if u.Scheme != "s3" {
		return "", "", fmt.Errorf("source: %s is not an s3:// URL", raw)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return "", "", fmt.Errorf("source: %s must name a bucket and a key", raw)
	}
	return u.Host, key, nil
}

func spool(location string, r io.Reader, dir string) (*Handle, error) {
	f, err := os.CreateTemp(dir, "versionpatcher-*.pkg")
	if err != nil {
		return nil, fmt.Errorf("source: create spool for %s: %w", location, err)
	}
	fail := func(op string, err error) (*Handle, error) {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return nil, fmt.Errorf("source: %s %s: %w", op, location, err)
	}
	n, err := io.Copy(f, r)
	if err != nil {
		return fail("download", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fail("rewind", err)
	}
	return &Handle{File: f, Location: location, Size: n, spool: f.Name()}, nil
}
