package editor

import (
	"errors"
	"fmt"
)

// Kind classifies the failures a user can see.
type Kind string

const (
	KindEngineLoad Kind = "engine_load"
	KindNoFile     Kind = "no_file"
	KindThumbnails Kind = "thumbnails"
	KindExport     Kind = "export"
)

var kindMessages = map[Kind]string{
	KindEngineLoad: "Failed to load FFmpeg",
	KindNoFile:     "No selected file",
	KindThumbnails: "Failed to generate thumbnails",
	KindExport:     "Failed to export video",
}

// Message returns the user-visible text for k.
func (k Kind) Message() string {
	if m, ok := kindMessages[k]; ok {
		return m
	}
	return string(k)
}

// Error is a user-visible editor failure. It ends the current operation and
// leaves the session usable; nothing is retried automatically.
type Error struct {
	Kind Kind
	Err  error
}

func newError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.Message()
	}
	return fmt.Sprintf("%s: %v", e.Kind.Message(), e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Message returns the text shown to the user.
func (e *Error) Message() string {
	return e.Kind.Message()
}

// KindOf returns the kind of an editor error anywhere in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

var (
	ErrNoDuration   = errors.New("media duration unknown")
	ErrInvalidTrim  = errors.New("invalid trim range")
	ErrNoThumbnails = errors.New("engine produced no thumbnails")
)
