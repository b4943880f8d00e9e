// Package errkind gives the engine a small, closed error taxonomy so
// bridges and the HTTP shell can map a failure to the right external
// behavior (4xx, 503, a dropped-with-warning counter bump) without the
// engine importing net/http.
package errkind

import "fmt"

// Kind classifies an error for the purposes of propagation policy.
type Kind int

const (
	// Internal is the zero value: a programming invariant was violated.
	// The affected subsystem fails fast; the tick loop itself never
	// crashes — see sim.Engine's per-component recover wrapper.
	Internal Kind = iota
	// InvalidRequest is a malformed or out-of-FSM-state command.
	InvalidRequest
	// ResourceUnavailable names a missing dependency (MQTT/TAK/LLM host).
	ResourceUnavailable
	// TransientIO is a network blip a bridge should retry with backoff.
	TransientIO
	// ProtocolError is bad inbound XML/JSON; drop with one warning.
	ProtocolError
)

func (k Kind) String() string {
	switch k {
	case InvalidRequest:
		return "invalid_request"
	case ResourceUnavailable:
		return "resource_unavailable"
	case TransientIO:
		return "transient_io"
	case ProtocolError:
		return "protocol_error"
	default:
		return "internal"
	}
}

// Error wraps an underlying cause with a Kind so callers can type-switch
// (via As) instead of string-matching error messages.
type Error struct {
	kind Kind
	op   string
	err  error
}

// New returns an *Error of the given kind, wrapping err with op as
// context in the usual fmt.Errorf("...: %w", err) shape.
func New(kind Kind, op string, err error) *Error {
	return &Error{kind: kind, op: op, err: err}
}

func (e *Error) Error() string {
	if e.err == nil {
		return fmt.Sprintf("%s: %s", e.op, e.kind)
	}
	return fmt.Sprintf("%s: %v", e.op, e.err)
}

func (e *Error) Unwrap() error { return e.err }

// Kind returns the error's classification.
func (e *Error) Kind() Kind { return e.kind }

// KindOf extracts the Kind from err if it (or something it wraps) is an
// *Error, defaulting to Internal otherwise.
func KindOf(err error) Kind {
	var e *Error
	if asError(err, &e) {
		return e.kind
	}
	return Internal
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
