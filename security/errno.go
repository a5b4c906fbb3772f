package security

import (
	"errors"
	"syscall"
)

// hasErrno reports whether a recorded system error code rides in the
// chain, which routes the outcome to the caller's raw-I/O policy
// instead of the protocol fault path.
func hasErrno(err error) bool {
	var errno syscall.Errno
	return errors.As(err, &errno)
}
