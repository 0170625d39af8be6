// Package raerr defines the fixed error-kind vocabulary shared by every
// SafRetL module, mirroring radef_RaStaReturnCode in the reference
// implementation.
package raerr

import "fmt"

// Kind is one of the fixed result codes a SafRetL contract can return.
// The same values are passed to a FatalHandler when an invariant
// is violated.
type Kind int

const (
	NoError Kind = iota
	NoMessageReceived
	NoMessageToSend
	NotInitialized
	AlreadyInitialized
	InvalidConfiguration
	InvalidParameter
	InvalidMessageType
	InvalidMessageSize
	InvalidBufferSize
	InvalidMessageCrc
	InvalidMessageMd4
	ReceiveBufferFull
	DeferQueueEmpty
	SendBufferFull
	InvalidSequenceNumber
	InternalError
	InvalidOperationInCurrentState
)

var names = map[Kind]string{
	NoError:                        "no_error",
	NoMessageReceived:              "no_message_received",
	NoMessageToSend:                "no_message_to_send",
	NotInitialized:                 "not_initialized",
	AlreadyInitialized:             "already_initialized",
	InvalidConfiguration:           "invalid_configuration",
	InvalidParameter:               "invalid_parameter",
	InvalidMessageType:             "invalid_message_type",
	InvalidMessageSize:             "invalid_message_size",
	InvalidBufferSize:              "invalid_buffer_size",
	InvalidMessageCrc:              "invalid_message_crc",
	InvalidMessageMd4:              "invalid_message_md4",
	ReceiveBufferFull:              "receive_buffer_full",
	DeferQueueEmpty:                "defer_queue_empty",
	SendBufferFull:                 "send_buffer_full",
	InvalidSequenceNumber:          "invalid_sequence_number",
	InternalError:                  "internal_error",
	InvalidOperationInCurrentState: "invalid_operation_in_current_state",
}

func (k Kind) String() string {
	if s, ok := names[k]; ok {
		return s
	}
	return fmt.Sprintf("raerr.Kind(%d)", int(k))
}

// Error wraps a Kind with a human-readable cause, returned to callers
// for the application-facing (non-fatal) paths.
type Error struct {
	Kind  Kind
	Cause error
}

func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Cause: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether err carries the given Kind, so callers can use
// errors.Is(err, raerr.SendBufferFull) style checks against a sentinel
// built with just a Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinel builds a bare *Error carrying only a Kind, for use with
// errors.Is.
func Sentinel(kind Kind) *Error { return &Error{Kind: kind} }

// FatalHandler is called on invariant violations: assertion failures,
// out-of-range internal ids, broken ring-buffer bookkeeping. It must
// not return in production, but the indirection lets tests install a
// handler that records the call and panics instead of calling os.Exit,
// mirroring rasys_FatalError in the reference adapter.
type FatalHandler func(kind Kind, err error)

// DefaultFatalHandler panics, which is the appropriate non-returning
// behaviour for a library in the absence of a host-supplied hook.
func DefaultFatalHandler(kind Kind, err error) {
	panic(fmt.Sprintf("rasta: fatal error %s: %v", kind, err))
}
