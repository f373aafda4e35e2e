// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package transport

import (
	"encoding/binary"
	"time"

	"code.hybscloud.com/erpc/crc16"
	"code.hybscloud.com/erpc/internal/bo"
)

// Options configures a stream-based transport (FramedTransport,
// ReadyMarkerTransport), built with the functional-options pattern.
type Options struct {
	ByteOrder  binary.ByteOrder
	ReadLimit  int
	RetryDelay time.Duration
	CRCSeed    uint16
}

var defaultOptions = Options{
	ByteOrder:  binary.LittleEndian,
	ReadLimit:  0,
	RetryDelay: 0, // default: cooperative block (yield and retry)
	CRCSeed:    crc16.DefaultSeed,
}

// Option mutates an Options value during construction.
type Option func(*Options)

// WithByteOrder sets the frame header's length/CRC field byte order. This
// is independent of the codec's payload byte order (set separately via
// codec.NewWithByteOrder); the two only need to agree with whatever the
// two peers compiled in.
func WithByteOrder(order binary.ByteOrder) Option {
	return func(o *Options) { o.ByteOrder = order }
}

// WithReadLimit caps the maximum payload length a Receive will accept.
// Zero means no additional limit beyond the destination buffer's capacity.
func WithReadLimit(limit int) Option {
	return func(o *Options) { o.ReadLimit = limit }
}

// WithRetryDelay controls how Send/Receive handle iox.ErrWouldBlock from
// the underlying link: negative returns StatusTimeout immediately
// (cooperative nonblocking mode, no internal scheduler); zero yields and
// retries; positive sleeps that long and retries.
func WithRetryDelay(d time.Duration) Option {
	return func(o *Options) { o.RetryDelay = d }
}

// WithNonblock is shorthand for WithRetryDelay(-1).
func WithNonblock() Option {
	return func(o *Options) { o.RetryDelay = -1 }
}

// WithNativeByteOrder sets the frame header's length/CRC fields to this
// build's native byte order instead of the portable little-endian default,
// for deployments where both peers are known to share an architecture
// family (e.g. two cores of one MCU over the inter-thread transport) and
// prefer to skip the conversion.
func WithNativeByteOrder() Option {
	return func(o *Options) { o.ByteOrder = bo.Native() }
}

// WithCRCSeed overrides the default CRC-16 starting value. A deployment may
// exchange a seed once at connection start to harden against framing
// drift; both peers must agree on the value passed here.
func WithCRCSeed(seed uint16) Option {
	return func(o *Options) { o.CRCSeed = seed }
}
