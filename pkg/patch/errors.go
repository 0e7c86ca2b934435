package patch

import (
	"errors"
	"fmt"
	"strings"
)

// Code classifies an Error.
type Code string

const (
	// CodeFormat marks a malformed or truncated container.
	CodeFormat Code = "FORMAT"
	// CodeSourceMissing marks a patch whose source file is absent.
	CodeSourceMissing Code = "SOURCE_MISSING"
	// CodeDiffApply marks a delta the diff-patch capability rejected.
	CodeDiffApply Code = "DIFF_APPLY"
	// CodeIO marks a read, write, copy or delete failure.
	CodeIO Code = "IO"
)

// Sentinels for errors.Is. They match any *Error carrying the same Code.
var (
	ErrFormat        = &Error{Code: CodeFormat}
	ErrSourceMissing = &Error{Code: CodeSourceMissing}
	ErrDiffApply     = &Error{Code: CodeDiffApply}
	ErrIO            = &Error{Code: CodeIO}
)

// Error represents a structured failure while parsing or applying a
// container. It satisfies the error interface so it can be returned directly
// from Parse and Apply.
type Error struct {
	Code    Code
	Path    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" {
		msg = "patch error"
	}
	if e.Path != "" {
		msg = fmt.Sprintf("%s: %s", e.Path, msg)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return t.Code != "" && e.Code == t.Code
}

func formatError(msg string, err error) *Error {
	return &Error{Code: CodeFormat, Message: msg, Err: err}
}

func ioError(path, msg string, err error) *Error {
	return &Error{Code: CodeIO, Path: path, Message: msg, Err: err}
}

// Describe renders err into a human readable message suitable for surfacing
// to end users. Errors that are not *Error are returned as-is.
func Describe(err error) string {
	if err == nil {
		return "Unknown error occurred."
	}
	var pe *Error
	if !errors.As(err, &pe) {
		return err.Error()
	}

	var parts []string
	switch pe.Code {
	case CodeFormat:
		parts = append(parts, "The update package is malformed.")
	case CodeSourceMissing:
		parts = append(parts, "A file required by the update is missing from the source directory.")
	case CodeDiffApply:
		parts = append(parts, "A binary patch could not be applied; the source file does not match the expected version.")
	case CodeIO:
		parts = append(parts, "A file operation failed.")
	}
	if pe.Path != "" {
		display := pe.Path
		if !strings.HasPrefix(display, "./") {
			display = "./" + display
		}
		parts = append(parts, fmt.Sprintf("File: %s", display))
	}
	detail := pe.Message
	if pe.Err != nil {
		if detail != "" {
			detail += ": "
		}
		detail += pe.Err.Error()
	}
	if detail != "" {
		parts = append(parts, fmt.Sprintf("Details: %s", detail))
	}
	if pe.Code != CodeFormat {
		parts = append(parts, "", "The destination may be partially updated.")
	}
	return strings.Join(parts, "\n")
}
