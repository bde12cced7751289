package adbcj

import "github.com/cockroachdb/errors"

// The closed error-kind catalog of spec §7. Every error raised by this
// module is, or wraps, one of these sentinels so callers can match with
// errors.Is/errors.As regardless of which protocol produced it.
var (
	// ErrTransport covers a lost socket or unexpected EOF.
	ErrTransport = errors.New("adbcj: transport error")
	// ErrProtocol covers a malformed frame, unknown message type, or
	// decoder invariant violation.
	ErrProtocol = errors.New("adbcj: protocol error")
	// ErrAuth covers a wire-level authentication failure.
	ErrAuth = errors.New("adbcj: authentication error")
	// ErrSessionClosed is returned for any operation attempted on a
	// session whose closeRequest slot is non-nil.
	ErrSessionClosed = errors.New("adbcj: session is closed")
	// ErrTransactionFailed is returned immediately when a new operation
	// is enqueued against a cancelled transaction.
	ErrTransactionFailed = errors.New("adbcj: transaction is in a failed state")
)

// The remaining three error kinds from spec §7 — AlreadySettled, Timeout,
// and Cancelled — are primitive to the future itself rather than to a
// session or protocol, so they live as future.ErrAlreadySettled,
// future.ErrTimeout, and future.ErrCancelled in package future.

// ServerError is a backend-reported error carrying a vendor code, SQL
// state, and message (spec §7).
type ServerError struct {
	Code    string
	SQLState string
	Message string
}

func (e *ServerError) Error() string {
	if e.SQLState != "" {
		return "adbcj: server error [" + e.SQLState + "] " + e.Message
	}
	return "adbcj: server error " + e.Message
}

// Is reports whether target is a *ServerError, so errors.Is(err,
// &ServerError{}) matches any ServerError in err's chain whatever its fields,
// without requiring every ServerError to come from a single sentinel instance.
func (e *ServerError) Is(target error) bool {
	_, ok := target.(*ServerError)
	return ok
}

// NewServerError constructs a ServerError.
func NewServerError(code, sqlState, message string) *ServerError {
	return &ServerError{Code: code, SQLState: sqlState, Message: message}
}

// WrapTransport wraps err as ErrTransport, formatting a message the way
// errors.Wrapf does (msg then "%s: %s"-joined chain via errors.Is).
func WrapTransport(err error, format string, args ...any) error {
	return errors.Wrapf(mark(err, ErrTransport), format, args...)
}

// WrapProtocol wraps err as ErrProtocol.
func WrapProtocol(err error, format string, args ...any) error {
	return errors.Wrapf(mark(err, ErrProtocol), format, args...)
}

// NewProtocolError builds a new ErrProtocol-marked error from a message,
// with no underlying cause to wrap.
func NewProtocolError(format string, args ...any) error {
	return mark(errors.Newf(format, args...), ErrProtocol)
}

// WrapAuth wraps err as ErrAuth.
func WrapAuth(err error, format string, args ...any) error {
	return errors.Wrapf(mark(err, ErrAuth), format, args...)
}

// kindMark carries the kind sentinel attached by errors.Mark so that the
// standard library's errors.Is matches it as well; the mark alone is only
// seen by cockroachdb's errors.Is.
type kindMark struct {
	error
	kind error
}

func (e *kindMark) Unwrap() error        { return e.error }
func (e *kindMark) Is(target error) bool { return target == e.kind }

func mark(err, kind error) error {
	return &kindMark{error: errors.Mark(err, kind), kind: kind}
}
