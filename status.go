// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package erpc

import "strconv"

// Status is the stable error taxonomy every eRPC operation reports through.
// It implements the error interface directly (no wrapping type) so callers
// can compare with == or errors.Is — there is no exception machinery here,
// generated stubs propagate a Status by value like any other return.
//
// The sticky-status idiom used throughout the codec and client packages
// relies on Status's zero value, StatusSuccess, meaning "no error yet".
type Status uint32

// The taxonomy is stable across versions; numeric values are this
// implementation's own. A server's error reply carries the numeric value
// as its single uint32 body (see Server.sendErrorReply in package server),
// so both peers must build against the same table.
const (
	StatusSuccess Status = iota
	StatusFail
	StatusInvalidArgument
	StatusTimeout
	StatusInvalidMessageVersion
	StatusExpectedReply
	StatusCrcCheckFailed
	StatusBufferOverrun
	StatusUnknownName
	StatusConnectionFailure
	StatusConnectionClosed
	StatusMemoryError
	StatusServerIsDown
	StatusInitFailed
	StatusReceiveFailed
	StatusSendFailed
	StatusBadAddressScale
	StatusNestedCallFailure
	StatusUnknownCallback
)

var statusNames = [...]string{
	"Success",
	"Fail",
	"InvalidArgument",
	"Timeout",
	"InvalidMessageVersion",
	"ExpectedReply",
	"CrcCheckFailed",
	"BufferOverrun",
	"UnknownName",
	"ConnectionFailure",
	"ConnectionClosed",
	"MemoryError",
	"ServerIsDown",
	"InitFailed",
	"ReceiveFailed",
	"SendFailed",
	"BadAddressScale",
	"NestedCallFailure",
	"UnknownCallback",
}

// Error implements the error interface.
func (s Status) Error() string {
	if int(s) < len(statusNames) {
		return "erpc: " + statusNames[s]
	}
	return "erpc: status(" + strconv.FormatUint(uint64(s), 10) + ")"
}

// Ok reports whether s is StatusSuccess.
func (s Status) Ok() bool { return s == StatusSuccess }

// StatusOf unwraps a Status out of an arbitrary error value, for call sites
// that receive a plain `error` (e.g. from an io.Reader) and need to fold it
// into the sticky-status accumulator. Errors that are not a Status collapse
// to StatusFail; nil collapses to StatusSuccess.
func StatusOf(err error) Status {
	if err == nil {
		return StatusSuccess
	}
	if s, ok := err.(Status); ok {
		return s
	}
	return StatusFail
}
