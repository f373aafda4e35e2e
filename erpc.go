// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package erpc provides the wire-level types shared by every layer of the
// eRPC core: the message header, the message-type codes, and the stable
// Status taxonomy that every codec, transport, client, and server operation
// reports through.
//
// Generated stubs (out of scope for this module, see the IDL compiler
// front end) are the only intended caller of the lower layers; this package
// and its siblings (buffer, crc16, codec, transport, client, server,
// arbitrator) are the runtime those stubs drive.
package erpc

import "encoding/binary"

// Version is the fixed message-header version byte. A peer sending any
// other value is rejected with InvalidMessageVersion.
const Version uint8 = 1

// MessageType identifies the four kinds of message on the wire.
type MessageType uint8

const (
	// Invocation requests a method call and expects a Reply.
	Invocation MessageType = 0
	// Oneway requests a method call and expects no reply.
	Oneway MessageType = 1
	// Reply carries a method's return value and out-parameters.
	Reply MessageType = 2
	// Notification is a server-to-client push with no reply expected.
	Notification MessageType = 3
)

// String renders a MessageType for logging and test failure messages.
func (t MessageType) String() string {
	switch t {
	case Invocation:
		return "Invocation"
	case Oneway:
		return "Oneway"
	case Reply:
		return "Reply"
	case Notification:
		return "Notification"
	default:
		return "Unknown"
	}
}

// Valid reports whether t is one of the four defined message types. Values
// 4..255 are reserved by spec and must be treated as InvalidArgument by a
// receiver.
func (t MessageType) Valid() bool {
	return t <= Notification
}

// Header is the logical content of the 64-bit message preamble: a 32-bit
// packed word (version, service, request, type) followed by a 32-bit
// sequence number. Codec.StartWriteMessage/StartReadMessage are the only
// intended producers/consumers of this type; it is exported so transports
// and servers can inspect a decoded header without re-parsing bytes.
type Header struct {
	Type     MessageType
	Service  uint8
	Request  uint8
	Sequence uint32
}

// Pack combines the header fields into the 32-bit word eRPC puts on the
// wire first: (version<<24) | (service<<16) | (request<<8) | type.
func (h Header) Pack() uint32 {
	return uint32(Version)<<24 | uint32(h.Service)<<16 | uint32(h.Request)<<8 | uint32(h.Type)
}

// Unpack populates h from a packed 32-bit header word, returning the version
// byte actually observed on the wire so the caller can compare it against
// Version itself (StartReadMessage does this to produce
// InvalidMessageVersion).
func (h *Header) Unpack(word uint32) (version uint8) {
	version = uint8(word >> 24)
	h.Service = uint8(word >> 16)
	h.Request = uint8(word >> 8)
	h.Type = MessageType(word & 0xff)
	return version
}

// WireByteOrder is the default byte order for primitive encoding: eRPC's
// wire format is little-endian unless a deployment's two peers agree
// otherwise at build time.
var WireByteOrder binary.ByteOrder = binary.LittleEndian
