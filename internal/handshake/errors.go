package handshake

import (
	"fmt"

	"github.com/go-hitls/tlscore/internal/collab"
)

// ErrorKind is the taxonomy spec.md §7 names: protocol errors are
// always fatal and carry a specific alert; crypto errors are fatal;
// config errors are fatal before any record is sent or map to
// handshake_failure; internal errors indicate a bug.
type ErrorKind int

const (
	KindProtocol ErrorKind = iota
	KindCrypto
	KindConfig
	KindInternal
)

// Error is the single error type the state machine produces. It
// always carries the alert the caller must send (InternalError's
// default is internal_error); a bare Go error from a collaborator is
// wrapped with KindInternal before it leaves this package.
type Error struct {
	Kind  ErrorKind
	Alert collab.AlertDescription
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("handshake: %s: %v", e.Msg, e.Cause)
	}
	return fmt.Sprintf("handshake: %s", e.Msg)
}

func (e *Error) Unwrap() error { return e.Cause }

func protocolErr(alert collab.AlertDescription, format string, args ...any) *Error {
	return &Error{Kind: KindProtocol, Alert: alert, Msg: fmt.Sprintf(format, args...)}
}

func cryptoErr(format string, args ...any) *Error {
	return &Error{Kind: KindCrypto, Alert: collab.AlertDecryptError, Msg: fmt.Sprintf(format, args...)}
}

func configErr(format string, args ...any) *Error {
	return &Error{Kind: KindConfig, Alert: collab.AlertHandshakeFailure, Msg: fmt.Sprintf(format, args...)}
}

func internalErr(cause error, format string, args ...any) *Error {
	return &Error{Kind: KindInternal, Alert: collab.AlertInternalError, Msg: fmt.Sprintf(format, args...), Cause: cause}
}

// StepResult is what Step returns: either a request for more I/O, a
// completion signal, or a fatal error already reported to the peer (the
// alert has been sent by the time Step returns it).
type StepResult int

const (
	WantRead StepResult = iota
	WantWrite
	Done
	Failed
)
