package resilience

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Cause
	}{
		{"nil", nil, CauseNone},
		{"plain", errors.New("profile: missing name"), CauseNone},
		{"marked", NewTransientError(errors.New("pool exhausted"), "53300"), CauseMarked},
		{"marked wrapped", eris.Wrap(NewTransientError(errors.New("deadlock"), ""), "store: upsert match"), CauseMarked},
		{"serialization", fmt.Errorf("exec: %w", &pgconn.PgError{Code: "40001"}), CauseContention},
		{"too many connections", &pgconn.PgError{Code: "53300"}, CauseCapacity},
		{"connection failure", &pgconn.PgError{Code: "08006"}, CauseConnection},
		{"unique violation", &pgconn.PgError{Code: "23505", Message: "broken pipe"}, CauseNone},
		{"undefined table", &pgconn.PgError{Code: "42P01"}, CauseNone},
		{"reset", fmt.Errorf("write tcp: %w", syscall.ECONNRESET), CauseConnection},
		{"refused", fmt.Errorf("dial tcp: %w", syscall.ECONNREFUSED), CauseConnection},
		{"dns timeout", &net.DNSError{IsTimeout: true, Err: "timeout"}, CauseTimeout},
		{"sqlite busy", errors.New("database is locked (5) (SQLITE_BUSY)"), CauseContention},
		{"io timeout text", errors.New("read: i/o timeout"), CauseTimeout},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.err); got != tc.want {
				t.Errorf("Classify = %q, want %q", got, tc.want)
			}
			if got := IsTransient(tc.err); got != (tc.want != CauseNone) {
				t.Errorf("IsTransient = %v", got)
			}
		})
	}
}

func TestIsTransientSQLState(t *testing.T) {
	if !IsTransientSQLState("40P01") {
		t.Error("deadlock should be retryable")
	}
	if IsTransientSQLState("22P02") {
		t.Error("invalid_text_representation should not be retryable")
	}
}

func TestTransientError_Unwrap(t *testing.T) {
	inner := errors.New("root cause")
	te := NewTransientError(inner, "40001")
	if !errors.Is(te, inner) {
		t.Fatal("errors.Is should reach the wrapped error")
	}
	if te.Error() != "root cause" || te.Code != "40001" {
		t.Errorf("unexpected TransientError %q code %q", te.Error(), te.Code)
	}
}
