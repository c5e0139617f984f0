// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ombus

import (
	"fmt"

	"code.hybscloud.com/iox"
)

// ErrWouldBlock indicates an operation cannot proceed immediately: the SHM
// ring is empty, an in-process seqspin queue is full or empty, or a TCP
// poll has nothing ready yet. Publishing on a full SHM ring spins rather
// than returning it.
//
// ErrWouldBlock is a control flow signal, not a failure; callers retry later
// rather than propagating it. This is an alias for [iox.ErrWouldBlock] for
// ecosystem consistency with [code.hybscloud.com/ombus's] other dependents.
var ErrWouldBlock = iox.ErrWouldBlock

// IsWouldBlock reports whether err indicates the operation would block.
func IsWouldBlock(err error) bool {
	return iox.IsWouldBlock(err)
}

// Kind classifies an error returned by shmring, tcpserver, or tcpclient per
// the error taxonomy in SPEC_FULL.md §6-7.
type Kind uint8

const (
	// KindNone means no error (never set on a returned *Error).
	KindNone Kind = iota
	// KindGap means a delivered record's sequence exceeded the expected value.
	KindGap
	// KindReorder means a delivered record's sequence was less than the
	// expected value, and the caller opted into detecting that.
	KindReorder
	// KindCRCMismatch means the payload CRC did not match the stored checksum.
	KindCRCMismatch
	// KindEpochChanged means the producer restarted; the endpoint must reopen.
	KindEpochChanged
	// KindMagicMismatch means a SHM header had the wrong magic (a bad wire
	// frame magic is reported as KindTCPProtocol).
	KindMagicMismatch
	// KindVersionMismatch means a SHM header's version field is unsupported.
	KindVersionMismatch
	// KindRecordTooLarge means a payload exceeded slot_size-24.
	KindRecordTooLarge
	// KindConsumerIndexInvalid means a consumer index was out of range at open time.
	KindConsumerIndexInvalid
	// KindTCPBind means the TCP server failed to bind its listen address.
	KindTCPBind
	// KindTCPConnect means the TCP client failed to connect.
	KindTCPConnect
	// KindTCPSend means a socket write failed.
	KindTCPSend
	// KindTCPRecv means a socket read failed.
	KindTCPRecv
	// KindTCPDisconnected means the remote peer closed the connection.
	KindTCPDisconnected
	// KindTCPProtocol means a wire frame failed to parse (bad magic).
	KindTCPProtocol
	// KindTCPMaxClients means the server is at its configured client cap.
	KindTCPMaxClients
	// KindSlowWarning means the server warned the client that frames were or
	// will be dropped for it.
	KindSlowWarning
	// KindCursorInvalid means a cursor file had a bad magic or CRC.
	KindCursorInvalid
)

func (k Kind) String() string {
	switch k {
	case KindGap:
		return "gap-detected"
	case KindReorder:
		return "reorder-detected"
	case KindCRCMismatch:
		return "crc-mismatch"
	case KindEpochChanged:
		return "epoch-changed"
	case KindMagicMismatch:
		return "magic-mismatch"
	case KindVersionMismatch:
		return "version-mismatch"
	case KindRecordTooLarge:
		return "record-too-large"
	case KindConsumerIndexInvalid:
		return "consumer-index-invalid"
	case KindTCPBind:
		return "tcp-bind"
	case KindTCPConnect:
		return "tcp-connect"
	case KindTCPSend:
		return "tcp-send"
	case KindTCPRecv:
		return "tcp-recv"
	case KindTCPDisconnected:
		return "tcp-disconnected"
	case KindTCPProtocol:
		return "tcp-protocol"
	case KindTCPMaxClients:
		return "tcp-max-clients"
	case KindSlowWarning:
		return "slow-warning"
	case KindCursorInvalid:
		return "cursor-invalid"
	default:
		return "none"
	}
}

// Error is a typed error carrying a [Kind] so callers can switch on it
// instead of comparing against a list of package-level sentinels.
//
// For gap/reorder/slow-warning kinds, Seq carries the sequence number the
// classification was made against.
type Error struct {
	Kind Kind
	Seq  uint64
	Err  error // wrapped cause, nil for pure classification errors
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ombus: %s (seq=%d): %v", e.Kind, e.Seq, e.Err)
	}
	return fmt.Sprintf("ombus: %s (seq=%d)", e.Kind, e.Seq)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same Kind, so callers can
// use errors.Is(err, ombus.ErrKind(ombus.KindGap)) as a convenience.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	return ok && other.Kind == e.Kind
}

// ErrKind builds a sentinel *Error for use with errors.Is.
func ErrKind(k Kind) *Error { return &Error{Kind: k} }

// NewError constructs an *Error with the given kind and sequence number.
func NewError(k Kind, seq uint64) *Error { return &Error{Kind: k, Seq: seq} }

// WrapError constructs an *Error wrapping a lower-level cause.
func WrapError(k Kind, seq uint64, cause error) *Error {
	return &Error{Kind: k, Seq: seq, Err: cause}
}

// Recoverable reports whether the error is recoverable at the caller: the
// caller decides whether to ignore, repair, or log, without closing the handle.
func Recoverable(err error) bool {
	if IsWouldBlock(err) {
		return true
	}
	var e *Error
	if ok := asError(err, &e); ok {
		switch e.Kind {
		case KindGap, KindReorder, KindSlowWarning:
			return true
		}
	}
	return false
}

// Fatal reports whether the error means the handle must be closed (and,
// for TCP, typically recreated by a higher layer such as the auto-reconnect
// wrapper).
func Fatal(err error) bool {
	var e *Error
	if ok := asError(err, &e); ok {
		switch e.Kind {
		case KindCRCMismatch, KindEpochChanged, KindMagicMismatch,
			KindVersionMismatch, KindTCPDisconnected, KindTCPProtocol:
			return true
		}
	}
	return false
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
