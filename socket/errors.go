package socket

import "fmt"

// Error is a protocol-level failure reported back to the originating
// connection as an `error` event or a negative ack. The code is stable and
// machine-readable; the message is for humans.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Protocol errors. Every rejected action maps to exactly one of these;
// only StoreFailure is worth retrying.
var (
	ErrNotAuthenticated  = &Error{Code: "notAuthenticated", Message: "please authenticate first"}
	ErrAuthFailed        = &Error{Code: "authFailed", Message: "invalid authentication data"}
	ErrAccessDenied      = &Error{Code: "accessDenied", Message: "access denied to this ticket"}
	ErrNotInRoom         = &Error{Code: "notInRoom", Message: "join the ticket room first"}
	ErrTicketNotFound    = &Error{Code: "ticketNotFound", Message: "ticket not found"}
	ErrInvalidTransition = &Error{Code: "invalidTransition", Message: "status transition not allowed"}
	ErrClosurePending    = &Error{Code: "closurePending", Message: "resolve the pending closure request first"}
	ErrTicketClosed      = &Error{Code: "ticketClosed", Message: "ticket is closed"}
	ErrEmptyContent      = &Error{Code: "emptyContent", Message: "message content is required"}
	ErrBusy              = &Error{Code: "busy", Message: "ticket is busy, try again"}
)

// StoreFailure wraps a persistence error so the client can tell a retryable
// backend fault apart from its own protocol mistakes.
func StoreFailure(err error) *Error {
	return &Error{Code: "storeFailure", Message: err.Error()}
}

// AsError normalizes any error into a protocol *Error, wrapping unknown
// errors as store failures.
func AsError(err error) *Error {
	if e, ok := err.(*Error); ok {
		return e
	}
	return StoreFailure(err)
}
