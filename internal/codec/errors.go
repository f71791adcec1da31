package codec

import (
	"fmt"

	"github.com/go-hitls/tlscore/internal/collab"
)

// ErrorKind classifies why decode/encode failed, each bound to a
// recommended TLS alert per spec.md §4.1's error taxonomy table.
type ErrorKind int

const (
	KindTruncated ErrorKind = iota
	KindLengthOverflow
	KindIllegalTag
	KindDuplicateExtension
	KindEmptyRequiredField
	KindVersionMismatch
	KindInconsistentMessage
	KindBufferTooSmall
)

var kindAlert = map[ErrorKind]collab.AlertDescription{
	KindTruncated:           collab.AlertDecodeError,
	KindLengthOverflow:      collab.AlertDecodeError,
	KindIllegalTag:          collab.AlertIllegalParameter,
	KindDuplicateExtension:  collab.AlertIllegalParameter,
	KindEmptyRequiredField:  collab.AlertIllegalParameter,
	KindVersionMismatch:     collab.AlertProtocolVersion,
	KindInconsistentMessage: collab.AlertInternalError,
	KindBufferTooSmall:      collab.AlertInternalError,
}

// DecodeError is returned by every decode function in this package.
type DecodeError struct {
	Kind   ErrorKind
	Detail string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("codec: decode error (%s): %s", e.Kind, e.Detail)
}

// RecommendedAlert is the alert the caller should send upon seeing e.
func (e *DecodeError) RecommendedAlert() collab.AlertDescription {
	return kindAlert[e.Kind]
}

func newDecodeErr(kind ErrorKind, format string, args ...any) *DecodeError {
	return &DecodeError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// EncodeError is returned by every encode function in this package.
type EncodeError struct {
	Kind   ErrorKind
	Detail string
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("codec: encode error (%s): %s", e.Kind, e.Detail)
}

func newEncodeErr(kind ErrorKind, format string, args ...any) *EncodeError {
	return &EncodeError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

func (k ErrorKind) String() string {
	switch k {
	case KindTruncated:
		return "truncated"
	case KindLengthOverflow:
		return "length-overflow"
	case KindIllegalTag:
		return "illegal-tag"
	case KindDuplicateExtension:
		return "duplicate-extension"
	case KindEmptyRequiredField:
		return "empty-required-field"
	case KindVersionMismatch:
		return "version-mismatch"
	case KindInconsistentMessage:
		return "inconsistent-message"
	case KindBufferTooSmall:
		return "buffer-too-small"
	default:
		return "unknown"
	}
}
