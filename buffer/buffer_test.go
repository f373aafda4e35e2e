// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package buffer_test

import (
	"testing"

	"code.hybscloud.com/erpc"
	"code.hybscloud.com/erpc/buffer"
)

func TestCursorWriteReadRoundTrip(t *testing.T) {
	t.Parallel()

	b := buffer.New(16)
	w := b.Cursor(0)
	if st := w.Write([]byte{1, 2, 3, 4}); !st.Ok() {
		t.Fatalf("write: %v", st)
	}
	if got, want := b.Used(), 4; got != want {
		t.Fatalf("used=%d want=%d", got, want)
	}

	r := b.Cursor(0)
	dst := make([]byte, 4)
	if st := r.Read(dst); !st.Ok() {
		t.Fatalf("read: %v", st)
	}
	if string(dst) != "\x01\x02\x03\x04" {
		t.Fatalf("unexpected payload: %v", dst)
	}
}

func TestCursorWriteOverrun(t *testing.T) {
	t.Parallel()

	b := buffer.New(4)
	c := b.Cursor(0)
	if st := c.Write([]byte{1, 2, 3, 4, 5}); st != erpc.StatusBufferOverrun {
		t.Fatalf("st=%v want=%v", st, erpc.StatusBufferOverrun)
	}
	if b.Used() != 0 {
		t.Fatalf("used should be unchanged on overrun, got %d", b.Used())
	}
}

func TestCursorReadBeyondUsedFails(t *testing.T) {
	t.Parallel()

	b := buffer.New(8)
	_ = b.Cursor(0).Write([]byte{1, 2})

	r := b.Cursor(0)
	if st := r.Read(make([]byte, 4)); st != erpc.StatusFail {
		t.Fatalf("st=%v want=%v", st, erpc.StatusFail)
	}
}

func TestCursorPeekZeroCopy(t *testing.T) {
	t.Parallel()

	b := buffer.New(8)
	_ = b.Cursor(0).Write([]byte("hi"))

	r := b.Cursor(0)
	got, st := r.Peek(2)
	if !st.Ok() {
		t.Fatalf("peek: %v", st)
	}
	if string(got) != "hi" {
		t.Fatalf("peek=%q want=hi", got)
	}
	if r.Position() != 0 {
		t.Fatalf("peek must not advance position, got %d", r.Position())
	}
	if st := r.Skip(2); !st.Ok() {
		t.Fatalf("skip: %v", st)
	}
	if r.Position() != 2 {
		t.Fatalf("position after skip=%d want=2", r.Position())
	}
}

func TestDynamicFactoryNeverExhausts(t *testing.T) {
	t.Parallel()

	f := buffer.NewDynamicFactory(32)
	for i := 0; i < 100; i++ {
		buf, st := f.Create()
		if !st.Ok() {
			t.Fatalf("create[%d]: %v", i, st)
		}
		f.Dispose(buf)
	}
}

func TestStaticPoolExhaustion(t *testing.T) {
	t.Parallel()

	p := buffer.NewStaticPool(2, 16)

	a, st := p.Create()
	if !st.Ok() {
		t.Fatalf("create a: %v", st)
	}
	b, st := p.Create()
	if !st.Ok() {
		t.Fatalf("create b: %v", st)
	}
	if _, st := p.Create(); st != erpc.StatusMemoryError {
		t.Fatalf("st=%v want=%v", st, erpc.StatusMemoryError)
	}

	p.Dispose(a)
	c, st := p.Create()
	if !st.Ok() {
		t.Fatalf("create after dispose: %v", st)
	}
	_ = b
	_ = c
}
