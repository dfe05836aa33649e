package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openmined/fabsync/internal/fabricsdk"
)

var (
	ErrCancelled     = errors.New("sync cancelled")
	ErrNoWorkspaceID = errors.New("workspace id is required")
	ErrNoCredentials = errors.New("credential source is required")
	ErrNoClient      = errors.New("remote client is required")
)

// ErrorKind tags a per item failure
type ErrorKind string

const (
	KindRemote     ErrorKind = "Remote"
	KindJobFailed  ErrorKind = "JobFailed"
	KindTimeout    ErrorKind = "Timeout"
	KindFilesystem ErrorKind = "Filesystem"
	KindCancelled  ErrorKind = "Cancelled"
	KindUnknown    ErrorKind = "Unknown"
)

// JobFailedError is returned when the remote export job reached the Failed state
type JobFailedError struct {
	ItemID  string
	Code    string
	Message string
}

func (e *JobFailedError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("export job for item %s failed: %s - %s", e.ItemID, e.Code, e.Message)
	}
	return fmt.Sprintf("export job for item %s failed", e.ItemID)
}

// TimeoutError is returned when polling ran past its attempt or time ceiling
type TimeoutError struct {
	ItemID   string
	Attempts int
	Elapsed  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("export job for item %s did not finish after %d polls (%s)", e.ItemID, e.Attempts, e.Elapsed.Round(time.Millisecond))
}

// FilesystemError is returned when a definition part could not be placed on disk
type FilesystemError struct {
	Op   string
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FilesystemError) Unwrap() error {
	return e.Err
}

// ItemFailure wraps the error that stopped a single item
type ItemFailure struct {
	ItemID string
	Kind   ErrorKind
	Err    error
}

func (e *ItemFailure) Error() string {
	return fmt.Sprintf("item %s: %s: %v", e.ItemID, e.Kind, e.Err)
}

func (e *ItemFailure) Unwrap() error {
	return e.Err
}

func newItemFailure(itemID string, err error) *ItemFailure {
	return &ItemFailure{ItemID: itemID, Kind: KindOf(err), Err: err}
}

// KindOf maps an item error onto its failure kind
func KindOf(err error) ErrorKind {
	var (
		jobErr     *JobFailedError
		timeoutErr *TimeoutError
		fsErr      *FilesystemError
		remoteErr  *fabricsdk.RemoteError
	)

	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.As(err, &jobErr):
		return KindJobFailed
	case errors.As(err, &timeoutErr):
		return KindTimeout
	case errors.As(err, &fsErr):
		return KindFilesystem
	case errors.As(err, &remoteErr):
		return KindRemote
	default:
		return KindUnknown
	}
}
