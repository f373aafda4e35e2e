// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package transport

import (
	"io"

	"code.hybscloud.com/erpc"
	"code.hybscloud.com/erpc/buffer"
)

// ReadyMarkerTransport implements the ready-marker protocol used over SPI
// and similar links where the slave cannot initiate a transfer: the slave
// prepends a two-byte marker to every frame it sends,
// and the master busy-reads single bytes until it observes that marker
// before parsing the frame that follows. Framing after the marker is
// identical to FramedTransport's 4-byte length+CRC header.
type ReadyMarkerTransport struct {
	framed *FramedTransport
	rd     io.Reader
	wr     io.Writer
	marker [2]byte
	r      retrier
}

// DefaultMarker is the ready marker this protocol standardizes on: 0xAB 0xCD.
var DefaultMarker = [2]byte{0xAB, 0xCD}

// NewReadyMarkerTransport returns a ReadyMarkerTransport using
// DefaultMarker. Use WithMarker-style construction only if a deployment
// has already agreed on a different pair out of band; this module exposes
// no such option because the protocol names one fixed value.
func NewReadyMarkerTransport(rd io.Reader, wr io.Writer, opts ...Option) *ReadyMarkerTransport {
	o := defaultOptions
	for _, fn := range opts {
		fn(&o)
	}
	return &ReadyMarkerTransport{
		framed: NewFramedTransport(rd, wr, opts...),
		rd:     rd,
		wr:     wr,
		marker: DefaultMarker,
		r:      retrier{retryDelay: o.RetryDelay},
	}
}

// HeaderReserveSize implements Transport: same 4-byte reservation as
// FramedTransport; the 2-byte marker precedes the frame on the wire but is
// never codec-visible space.
func (t *ReadyMarkerTransport) HeaderReserveSize() int { return t.framed.HeaderReserveSize() }

// Send writes the marker followed by one framed message.
func (t *ReadyMarkerTransport) Send(buf *buffer.MessageBuffer) erpc.Status {
	if st := t.r.writeFull(t.wr, t.marker[:]); !st.Ok() {
		return st
	}
	return t.framed.Send(buf)
}

// Receive busy-reads single bytes until the last two bytes read match the
// marker, then delegates to FramedTransport's header+payload+CRC logic.
func (t *ReadyMarkerTransport) Receive(buf *buffer.MessageBuffer) erpc.Status {
	var window [2]byte
	seen := 0
	for {
		var b [1]byte
		if st := t.r.readFull(t.rd, b[:]); !st.Ok() {
			return st
		}
		window[0], window[1] = window[1], b[0]
		seen++
		if seen >= 2 && window == t.marker {
			break
		}
	}
	return t.framed.Receive(buf)
}
