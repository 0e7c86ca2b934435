package patch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"sort"
)

// Result statuses.
const (
	StatusCopied  = "C"
	StatusPatched = "M"
	StatusAdded   = "A"
	StatusDeleted = "D"
)

// Result describes the outcome for a single file.
type Result struct {
	Status string
	Path   string
}

// Options configure Apply and Plan. The zero value applies BSDiff deltas to
// the local file system without logging.
type Options struct {
	FS      FS
	Patcher Patcher
	Logger  Logger
	// StrictDeletions surfaces deletion failures other than "not found" as
	// CodeIO errors. By default they are logged and ignored.
	StrictDeletions bool
}

func (o Options) withDefaults() Options {
	if o.FS == nil {
		o.FS = NewOSFS()
	}
	if o.Patcher == nil {
		o.Patcher = BSDiff
	}
	if o.Logger == nil {
		o.Logger = NoOpLogger{}
	}
	return o
}

// Apply updates destDir to the version described by m, reading unchanged and
// patched files from sourceDir. sourceDir and destDir may be the same
// directory for an in-place update; they are compared as given, not
// canonicalized.
//
// Phases run strictly in order: baseline copy (only when the directories
// differ), patches, additions, deletions. The first unrecoverable error stops
// all remaining work and is returned together with the results completed so
// far. Nothing is rolled back.
func Apply(ctx context.Context, m *Manifest, sourceDir, destDir string, opts Options) ([]Result, error) {
	if m == nil {
		return nil, errors.New("nil manifest")
	}
	opts = opts.withDefaults()
	e := &engine{m: m, src: sourceDir, dst: destDir, opts: opts, log: opts.Logger}
	return e.run(ctx)
}

// Plan reports the actions Apply would take without touching the
// destination. Patches whose source file is absent yield CodeSourceMissing,
// just as Apply would. Deletions of paths that will not exist are omitted.
func Plan(m *Manifest, sourceDir, destDir string, opts Options) ([]Result, error) {
	if m == nil {
		return nil, errors.New("nil manifest")
	}
	opts = opts.withDefaults()

	present, err := sourceSet(opts.FS, sourceDir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, ioError("", fmt.Sprintf("scan %s", sourceDir), err)
	}

	var results []Result
	if sourceDir != destDir {
		for _, rel := range unchanged(present, m) {
			results = append(results, Result{Status: StatusCopied, Path: rel})
		}
	}
	for _, rec := range m.Patches {
		if _, ok := present[rec.Path]; !ok {
			return results, &Error{Code: CodeSourceMissing, Path: rec.Path, Message: "source file not found"}
		}
		results = append(results, Result{Status: StatusPatched, Path: rec.Path})
	}
	for _, rec := range m.Additions {
		results = append(results, Result{Status: StatusAdded, Path: rec.Path})
	}

	// Apply only reports deletions of files that exist once additions land.
	existing := present
	if sourceDir != destDir {
		existing, err = sourceSet(opts.FS, destDir)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return results, ioError("", fmt.Sprintf("scan %s", destDir), err)
		}
	}
	written := make(map[string]struct{}, len(m.Patches)+len(m.Additions))
	for _, rec := range m.Patches {
		written[rec.Path] = struct{}{}
	}
	for _, rec := range m.Additions {
		written[rec.Path] = struct{}{}
	}
	for _, rel := range m.Deletions {
		_, onDisk := existing[rel]
		_, added := written[rel]
		if onDisk || added {
			results = append(results, Result{Status: StatusDeleted, Path: rel})
		}
	}
	return results, nil
}

type engine struct {
	m        *Manifest
	src, dst string
	opts     Options
	log      Logger
	results  []Result
}

func (e *engine) run(ctx context.Context) ([]Result, error) {
	if e.src != e.dst {
		if err := e.copyUnchanged(ctx); err != nil {
			return e.results, err
		}
	}
	if err := e.applyPatches(ctx); err != nil {
		return e.results, err
	}
	if err := e.applyAdditions(ctx); err != nil {
		return e.results, err
	}
	if err := e.applyDeletions(ctx); err != nil {
		return e.results, err
	}
	return e.results, nil
}

func (e *engine) record(status, rel string) {
	e.results = append(e.results, Result{Status: status, Path: rel})
}

func (e *engine) copyUnchanged(ctx context.Context) error {
	e.log.Info(ctx, "copying unchanged files", F("source", e.src), F("dest", e.dst))
	present, err := sourceSet(e.opts.FS, e.src)
	if err != nil {
		return ioError("", fmt.Sprintf("scan %s", e.src), err)
	}
	files := unchanged(present, e.m)
	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.copyFile(rel); err != nil {
			return err
		}
		e.log.Debug(ctx, "copied", F("path", rel))
		e.record(StatusCopied, rel)
	}
	e.log.Info(ctx, "unchanged files copied", F("count", len(files)))
	return nil
}

func (e *engine) copyFile(rel string) error {
	in, err := e.opts.FS.Open(join(e.src, rel))
	if err != nil {
		return ioError(rel, "open source", err)
	}
	defer in.Close()

	out, err := e.opts.FS.Create(join(e.dst, rel))
	if err != nil {
		return ioError(rel, "create destination", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return ioError(rel, "copy", err)
	}
	if err := out.Close(); err != nil {
		return ioError(rel, "close destination", err)
	}
	return nil
}

func (e *engine) applyPatches(ctx context.Context) error {
	for _, rec := range e.m.Patches {
		if err := ctx.Err(); err != nil {
			return err
		}
		e.log.Info(ctx, "patching", F("path", rec.Path), F("delta_bytes", rec.Length))

		old, err := e.opts.FS.ReadFile(join(e.src, rec.Path))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return &Error{Code: CodeSourceMissing, Path: rec.Path, Message: "source file not found", Err: err}
			}
			return ioError(rec.Path, "read source", err)
		}
		delta, err := e.m.Payload(rec)
		if err != nil {
			return err
		}

		var updated bytes.Buffer
		if err := e.opts.Patcher.Patch(bytes.NewReader(old), &updated, bytes.NewReader(delta)); err != nil {
			return &Error{Code: CodeDiffApply, Path: rec.Path, Message: "apply delta", Err: err}
		}
		if err := e.write(rec.Path, updated.Bytes()); err != nil {
			return err
		}
		e.record(StatusPatched, rec.Path)
	}
	e.log.Info(ctx, "patching complete", F("count", len(e.m.Patches)))
	return nil
}

func (e *engine) applyAdditions(ctx context.Context) error {
	for _, rec := range e.m.Additions {
		if err := ctx.Err(); err != nil {
			return err
		}
		e.log.Info(ctx, "adding file", F("path", rec.Path), F("bytes", rec.Length))

		data, err := e.m.Payload(rec)
		if err != nil {
			return err
		}
		if err := e.write(rec.Path, data); err != nil {
			return err
		}
		e.record(StatusAdded, rec.Path)
	}
	return nil
}

func (e *engine) applyDeletions(ctx context.Context) error {
	for _, rel := range e.m.Deletions {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := e.opts.FS.Remove(join(e.dst, rel))
		switch {
		case err == nil:
			e.log.Info(ctx, "deleted", F("path", rel))
			e.record(StatusDeleted, rel)
		case errors.Is(err, fs.ErrNotExist):
			e.log.Debug(ctx, "already absent", F("path", rel))
		case e.opts.StrictDeletions:
			return ioError(rel, "delete", err)
		default:
			e.log.Warn(ctx, "delete failed, ignoring", F("path", rel), F("error", err.Error()))
		}
	}
	return nil
}

func (e *engine) write(rel string, data []byte) error {
	w, err := e.opts.FS.Create(join(e.dst, rel))
	if err != nil {
		return ioError(rel, "create destination", err)
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return ioError(rel, "write destination", err)
	}
	if err := w.Close(); err != nil {
		return ioError(rel, "close destination", err)
	}
	return nil
}

// sourceSet lists every file under root as a set of relative slash paths.
// Duplicate listings collapse.
func sourceSet(fsys FS, root string) (map[string]struct{}, error) {
	files, err := fsys.Files(root)
	set := make(map[string]struct{}, len(files))
	for _, f := range files {
		set[f] = struct{}{}
	}
	return set, err
}

// unchanged subtracts patched and deleted paths from present and returns the
// remainder in a stable order.
func unchanged(present map[string]struct{}, m *Manifest) []string {
	remaining := make(map[string]struct{}, len(present))
	for p := range present {
		remaining[p] = struct{}{}
	}
	for _, rec := range m.Patches {
		delete(remaining, rec.Path)
	}
	for _, rel := range m.Deletions {
		delete(remaining, rel)
	}
	out := make([]string, 0, len(remaining))
	for p := range remaining {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func join(root, rel string) string {
	return filepath.Join(root, filepath.FromSlash(rel))
}
