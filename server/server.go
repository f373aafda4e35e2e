// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package server implements the Service/Server receive loop and dispatch
// runtime: a linear-scan service table plus the per-message
// decode/lookup/invoke/reply algorithm every transport mode shares.
package server

import (
	"code.hybscloud.com/erpc"
	"code.hybscloud.com/erpc/buffer"
	"code.hybscloud.com/erpc/codec"
	"code.hybscloud.com/erpc/transport"
)

// Handler is a generated service's entry point: handleInvocation in spec
// §4.6 step 4. It reads the remaining arguments from cd, calls user code,
// and — when reply is true — writes the return value and out-parameters
// onto replyCd before returning. reply is false for a Oneway call; the
// handler must not write anything through replyCd in that case.
type Handler func(methodID uint8, sequence uint32, cd *codec.Codec, reply bool, replyCd *codec.Codec) erpc.Status

// Service pairs a stable service_id with its Handler. Generated stubs
// construct one Service per IDL service interface.
type Service struct {
	ID      uint8
	Handler Handler
}

// Logger is the optional hook a Server reports otherwise-silent failures
// through (decode errors, unknown services). The zero Server has no
// logger and drops these reports. An Invocation caller is also told
// through an error reply; for a malformed header, an unknown service
// reached by a Oneway, or a failed Oneway handler, the log is the only
// report.
type Logger interface {
	Printf(format string, args ...any)
}

// Server holds the service table and a transport, and runs the receive
// loop shared by every transport mode: receive, decode, look up the
// target service, invoke it, and reply.
type Server struct {
	transport   transport.Transport
	factory     buffer.Factory
	services    []*Service
	logger      Logger
	dispatching bool
}

// Option configures a Server at construction time.
type Option func(*Server)

// WithFactory overrides the default DynamicFactory(1024) buffer source.
func WithFactory(f buffer.Factory) Option {
	return func(s *Server) { s.factory = f }
}

// WithLogger attaches a Logger for otherwise-silent failures.
func WithLogger(l Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New returns a Server receiving from tr.
func New(tr transport.Transport, opts ...Option) *Server {
	s := &Server{transport: tr, factory: buffer.NewDynamicFactory(1024)}
	for _, fn := range opts {
		fn(s)
	}
	return s
}

// AddService appends svc to the service table. Register only before the
// server starts, or from a quiescent thread; the table carries no locking
// of its own.
func (s *Server) AddService(svc *Service) {
	s.services = append(s.services, svc)
}

// RemoveService unlinks svc by identity. A no-op if svc is not currently
// registered.
func (s *Server) RemoveService(svc *Service) {
	for i, v := range s.services {
		if v == svc {
			s.services = append(s.services[:i], s.services[i+1:]...)
			return
		}
	}
}

func (s *Server) lookup(id uint8) *Service {
	for _, v := range s.services {
		if v.ID == id {
			return v
		}
	}
	return nil
}

func (s *Server) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}

// Poll runs one receive/dispatch iteration. It returns StatusConnectionClosed
// when the transport reports the peer exited gracefully, the signal a
// caller's run loop should treat as a clean exit rather than an error.
func (s *Server) Poll() erpc.Status {
	inBuf, st := s.factory.Create()
	if !st.Ok() {
		return st
	}
	defer s.factory.Dispose(inBuf)

	if st := s.transport.Receive(inBuf); !st.Ok() {
		return st
	}
	return s.Dispatch(inBuf)
}

// Dispatch runs the decode/lookup/invoke/reply steps against an
// already-received message buffer. An ArbitratedClient's reader loop calls
// this directly for messages it has already pulled off the shared
// transport, since only the arbitrator is allowed to call transport.Receive
// in that mode.
func (s *Server) Dispatch(inBuf *buffer.MessageBuffer) erpc.Status {
	cd := codec.New(inBuf.Cursor(0))
	hdr, seq := cd.StartReadMessage()
	if st := cd.Status(); !st.Ok() {
		// Bad version or truncated preamble: send no reply and continue.
		s.logf("erpc: server: malformed message header: %v", st)
		return erpc.StatusSuccess
	}

	wantsReply := hdr.Type == erpc.Invocation
	svc := s.lookup(hdr.Service)
	if svc == nil {
		s.logf("erpc: server: unknown service %d", hdr.Service)
		if wantsReply {
			return s.sendErrorReply(hdr, seq, erpc.StatusInvalidArgument)
		}
		return erpc.StatusSuccess
	}

	var replyCd *codec.Codec
	var outBuf *buffer.MessageBuffer
	if wantsReply {
		b, st := s.factory.Create()
		if !st.Ok() {
			return st
		}
		outBuf = b
		defer s.factory.Dispose(outBuf)
		replyCd = codec.New(outBuf.Cursor(s.transport.HeaderReserveSize()))
		replyCd.StartWriteMessage(erpc.Reply, hdr.Service, hdr.Request, seq)
	}

	// A handler that calls back into this same Server (directly, not
	// through a separate ArbitratedClient round trip) would deadlock
	// Poll's single-threaded, non-reentrant dispatch; detect it instead of
	// hanging.
	if s.dispatching {
		if wantsReply {
			return s.sendErrorReply(hdr, seq, erpc.StatusNestedCallFailure)
		}
		return erpc.StatusNestedCallFailure
	}
	s.dispatching = true
	hst := svc.Handler(hdr.Request, seq, cd, wantsReply, replyCd)
	s.dispatching = false
	if !wantsReply {
		// A Oneway call never gets a reply regardless of outcome.
		if !hst.Ok() {
			s.logf("erpc: server: oneway handler failed: %v", hst)
		}
		return erpc.StatusSuccess
	}
	if !hst.Ok() || !cd.Status().Ok() {
		errSt := hst
		if errSt.Ok() {
			errSt = cd.Status()
		}
		return s.sendErrorReply(hdr, seq, errSt)
	}
	if !replyCd.Status().Ok() {
		return s.sendErrorReply(hdr, seq, replyCd.Status())
	}
	return s.transport.Send(outBuf)
}

// sendErrorReply writes a Reply carrying only an error-coded body — the
// status as a single uint32 — so a blocked caller is unblocked instead of
// timing out, even when decoding or dispatch failed before a normal reply
// could be assembled.
func (s *Server) sendErrorReply(hdr erpc.Header, seq uint32, errSt erpc.Status) erpc.Status {
	outBuf, st := s.factory.Create()
	if !st.Ok() {
		return st
	}
	defer s.factory.Dispose(outBuf)
	cd := codec.New(outBuf.Cursor(s.transport.HeaderReserveSize()))
	cd.StartWriteMessage(erpc.Reply, hdr.Service, hdr.Request, seq)
	cd.WriteUint32(uint32(errSt))
	if !cd.Status().Ok() {
		return cd.Status()
	}
	return s.transport.Send(outBuf)
}

// Run calls Poll in a loop until it reports StatusConnectionClosed, which
// Run treats as a clean exit and reports as StatusSuccess. Any other
// non-ok status from Poll stops the loop and is returned as-is.
func (s *Server) Run() erpc.Status {
	for {
		st := s.Poll()
		if st == erpc.StatusConnectionClosed {
			return erpc.StatusSuccess
		}
		if !st.Ok() {
			return st
		}
	}
}
