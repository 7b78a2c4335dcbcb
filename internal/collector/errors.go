package collector

import (
	"errors"
	"fmt"
	"os"

	"github.com/shirou/gopsutil/v3/process"
)

// CollectionError reports that system-wide metrics could not be read at all.
// It aborts the current cycle's snapshot; the next cycle proceeds independently.
type CollectionError struct {
	Op  string
	Err error
}

func (e *CollectionError) Error() string {
	return fmt.Sprintf("collect %s: %v", e.Op, e.Err)
}

func (e *CollectionError) Unwrap() error { return e.Err }

// IsCollectionError reports whether err is (or wraps) a CollectionError.
func IsCollectionError(err error) bool {
	var ce *CollectionError
	return errors.As(err, &ce)
}

// skipReason classifies why a process could not be read. It is only used
// for debug logging; every reason leads to the process being skipped.
func skipReason(err error) string {
	switch {
	case errors.Is(err, process.ErrorProcessNotRunning), errors.Is(err, os.ErrNotExist):
		return "exited"
	case errors.Is(err, os.ErrPermission):
		return "denied"
	default:
		return "unreadable"
	}
}
