package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"
)

// Cause names why a write failed in a way that may clear on its own.
type Cause string

const (
	CauseNone       Cause = ""
	CauseMarked     Cause = "marked"
	CauseContention Cause = "contention"
	CauseCapacity   Cause = "capacity"
	CauseConnection Cause = "connection"
	CauseTimeout    Cause = "timeout"
)

// TransientError marks err as retryable regardless of its concrete type.
type TransientError struct {
	Err  error
	Code string // SQLSTATE when known
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// NewTransientError wraps err as retryable. code may be empty.
func NewTransientError(err error, code string) *TransientError {
	return &TransientError{Err: err, Code: code}
}

// sqlStates maps retryable Postgres SQLSTATE codes to their cause.
var sqlStates = map[string]Cause{
	"40001": CauseContention, // serialization_failure
	"40P01": CauseContention, // deadlock_detected
	"55P03": CauseContention, // lock_not_available
	"53300": CauseCapacity,   // too_many_connections
	"57P01": CauseConnection, // admin_shutdown
	"08000": CauseConnection,
	"08003": CauseConnection,
	"08006": CauseConnection,
}

// Driver errors with no typed cause. Matched against the lowercased message.
var messageCauses = []struct {
	substr string
	cause  Cause
}{
	{"database is locked", CauseContention},
	{"sqlite_busy", CauseContention},
	{"connection reset by peer", CauseConnection},
	{"broken pipe", CauseConnection},
	{"conn closed", CauseConnection},
	{"i/o timeout", CauseTimeout},
}

// Classify returns the transient cause of err, or CauseNone when retrying
// would not help. A Postgres error is judged by its SQLSTATE alone.
func Classify(err error) Cause {
	if err == nil {
		return CauseNone
	}

	var te *TransientError
	if errors.As(err, &te) {
		return CauseMarked
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return sqlStates[pgErr.Code]
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CauseTimeout
	}
	for _, errno := range []syscall.Errno{syscall.ECONNRESET, syscall.ECONNREFUSED, syscall.ECONNABORTED} {
		if errors.Is(err, errno) {
			return CauseConnection
		}
	}

	msg := strings.ToLower(err.Error())
	for _, mc := range messageCauses {
		if strings.Contains(msg, mc.substr) {
			return mc.cause
		}
	}
	return CauseNone
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return Classify(err) != CauseNone
}

// IsTransientSQLState reports whether a Postgres SQLSTATE clears on retry.
func IsTransientSQLState(code string) bool {
	_, ok := sqlStates[code]
	return ok
}
