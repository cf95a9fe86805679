// Package retry implements the Retry Policy (component E, spec §4.E/§7):
// transient-error classification plus exponential-backoff-with-jitter
// execution around a storage operation.
package retry

import (
	"context"
	"errors"
	"net"
	"os"
	"strings"
	"syscall"
)

// sqliteResultCoder is satisfied by modernc.org/sqlite's error type without
// importing it directly, keeping the classifier dialect-agnostic at compile
// time. The numeric codes below are SQLite's own primary result codes, part
// of SQLite's stable C API, not specific to any Go driver.
type sqliteResultCoder interface {
	Code() int
}

const (
	sqliteBusy     = 5
	sqliteLocked   = 6
	sqliteIOErr    = 10
	sqliteCantOpen = 14
	sqliteProtocol = 15
)

// messageSubstrings is the fallback classifier (spec §7 "(d) known message
// substrings") for transient conditions that don't surface through a typed
// result code — cross-driver, cross-OS wording observed for busy/lock/IO
// conditions.
var messageSubstrings = []string{
	"database is locked",
	"disk i/o error",
	"sharing violation",
	"the semaphore timeout period has expired",
	"connection reset",
	"broken pipe",
	"network name",
}

// IsTransient reports whether err is expected to succeed on retry: a
// storage-engine busy/locked/IO condition, an OS-level I/O error, a
// deadline expiring, or one of a known set of message substrings. It
// recurses through wrapped inner errors (spec §7: "Recurse through wrapped
// inner errors"). A context cancelled by the caller's own token is never
// transient, even though a deadline on the same context is (spec §7:
// "Cancellation requested by the caller's token is not transient").
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var coder sqliteResultCoder
	if errors.As(err, &coder) {
		switch coder.Code() &^ 0xff00 { // mask off SQLite's extended-code byte
		case sqliteBusy, sqliteLocked, sqliteIOErr, sqliteCantOpen, sqliteProtocol:
			return true
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var errnoErr syscall.Errno
	if errors.As(err, &errnoErr) {
		switch errnoErr {
		case syscall.EBUSY, syscall.EAGAIN, syscall.ETIMEDOUT, syscall.ECONNRESET:
			return true
		}
	}

	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return IsTransient(pathErr.Err)
	}

	msg := strings.ToLower(err.Error())
	for _, s := range messageSubstrings {
		if strings.Contains(msg, s) {
			return true
		}
	}

	if u := errors.Unwrap(err); u != nil {
		return IsTransient(u)
	}
	return false
}
