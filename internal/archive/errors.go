package archive

import (
	"errors"
	"fmt"
)

// Sentinel errors for archive operations.
var (
	// ErrCorrupt indicates a collection file exists but cannot be parsed.
	ErrCorrupt = errors.New("archive: data corrupt")
	// ErrLockTimeout indicates a timeout acquiring the archive lock.
	ErrLockTimeout = errors.New("archive: lock timeout")
)

// StoreError wraps errors from archive persistence operations with the
// operation and file involved.
type StoreError struct {
	Op   string // "read", "write", "backup", "lock"
	File string
	Err  error
}

func (e *StoreError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("archive: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("archive: %s %s: %v", e.Op, e.File, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
