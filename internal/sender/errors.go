package sender

import (
	"errors"
	"fmt"
)

// Class tells the caller what a failed send means for the snapshot.
type Class int

const (
	// Transient failures (refused, DNS, timeout, dropped connection) may
	// succeed later. The snapshot is written to the fallback store.
	Transient Class = iota + 1
	// Permanent failures (the snapshot cannot be encoded) can never succeed
	// for that snapshot. It is dropped and not retried.
	Permanent
)

func (c Class) String() string {
	switch c {
	case Transient:
		return "transient"
	case Permanent:
		return "permanent"
	default:
		return fmt.Sprintf("class(%d)", int(c))
	}
}

// Error is returned by Send for every failed delivery.
type Error struct {
	Class Class
	// Op is the step that failed: encode, connect or write.
	Op  string
	Err error
	// FallbackSaved reports whether the snapshot reached the fallback store.
	FallbackSaved bool
}

func (e *Error) Error() string {
	return fmt.Sprintf("transmit %s (%s): %v", e.Op, e.Class, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsTransient reports whether err is a transient transmit error.
func IsTransient(err error) bool {
	var te *Error
	return errors.As(err, &te) && te.Class == Transient
}

// IsPermanent reports whether err is a permanent transmit error.
func IsPermanent(err error) bool {
	var te *Error
	return errors.As(err, &te) && te.Class == Permanent
}
