// Package patch reads versioned update containers and applies them to a
// directory tree.
//
// A container holds binary deltas for files that changed, whole payloads for
// files that were added and a list of paths to remove. Parse builds a Manifest
// that references payloads by offset, so the underlying stream must stay open
// and seekable until Apply returns. Apply runs four strictly ordered phases:
// baseline copy (only when source and destination differ), patches, additions
// and deletions.
//
// Application is not atomic. A failure part way through leaves the
// destination partially updated; callers that need rollback must snapshot the
// destination before calling Apply.
package patch
