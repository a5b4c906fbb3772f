package bytebuffers

import (
	"errors"
	"io"
)

type Buffer interface {
	Len() (n int)
	Cap() (n int)
	Peek(n int) (p []byte)
	Next(n int) (p []byte, err error)
	Discard(n int)
	Read(p []byte) (n int, err error)
	Write(p []byte) (n int, err error)
	Allocate(size int) (p []byte, err error)
	AllocatedWrote(n int) (err error)
	WritePending() bool
	Reset()
}

var (
	ErrWriteBeforeAllocatedWrote = errors.New("bytebuffers: cannot write before AllocatedWrote(), prev Allocate() was not finished")
	ErrAllocateZero              = errors.New("bytebuffers: cannot allocate zero")
)

func NewBuffer() Buffer {
	return NewBufferWithSize(0)
}

func NewBufferWithSize(size int) Buffer {
	if size < 1 {
		size = 64
	}
	return &buffer{
		b: make([]byte, size),
	}
}

// buffer is a linear grow-and-slide byte queue.
// r..w is readable, w..a is allocated but not yet wrote.
type buffer struct {
	b []byte
	r int
	w int
	a int
}

func (buf *buffer) Len() int { return buf.w - buf.r }

func (buf *buffer) Cap() int { return cap(buf.b) }

func (buf *buffer) Peek(n int) (p []byte) {
	bLen := buf.Len()
	if n < 1 || bLen == 0 {
		return
	}
	if n > bLen {
		n = bLen
	}
	p = buf.b[buf.r : buf.r+n]
	return
}

func (buf *buffer) Next(n int) (p []byte, err error) {
	if n < 1 {
		return
	}
	bLen := buf.Len()
	if bLen == 0 {
		err = io.EOF
		return
	}
	if n > bLen {
		n = bLen
	}
	p = make([]byte, n)
	copy(p, buf.b[buf.r:buf.r+n])
	buf.r += n
	buf.tryReset()
	return
}

func (buf *buffer) Discard(n int) {
	if n < 1 {
		return
	}
	if bLen := buf.Len(); n > bLen {
		n = bLen
	}
	buf.r += n
	buf.tryReset()
}

func (buf *buffer) Read(p []byte) (n int, err error) {
	if buf.Len() == 0 {
		err = io.EOF
		return
	}
	if len(p) == 0 {
		return
	}
	n = copy(p, buf.b[buf.r:buf.w])
	buf.r += n
	buf.tryReset()
	return
}

func (buf *buffer) Write(p []byte) (n int, err error) {
	if buf.WritePending() {
		err = ErrWriteBeforeAllocatedWrote
		return
	}
	pLen := len(p)
	if pLen == 0 {
		return
	}
	buf.grow(pLen)
	n = copy(buf.b[buf.w:], p)
	buf.w += n
	buf.a = buf.w
	return
}

func (buf *buffer) Allocate(size int) (p []byte, err error) {
	if buf.WritePending() {
		err = ErrWriteBeforeAllocatedWrote
		return
	}
	if size < 1 {
		err = ErrAllocateZero
		return
	}
	buf.grow(size)
	buf.a = buf.w + size
	p = buf.b[buf.w:buf.a]
	return
}

func (buf *buffer) AllocatedWrote(n int) (err error) {
	if !buf.WritePending() {
		return
	}
	if n < 0 || buf.w+n > buf.a {
		n = 0
	}
	buf.w += n
	buf.a = buf.w
	return
}

func (buf *buffer) WritePending() bool {
	return buf.a != buf.w
}

func (buf *buffer) Reset() {
	buf.r = 0
	buf.w = 0
	buf.a = 0
}

func (buf *buffer) tryReset() {
	if buf.r == buf.w && !buf.WritePending() {
		buf.r = 0
		buf.w = 0
		buf.a = 0
	}
}

// grow makes room for n more bytes behind the write index,
// sliding pending bytes to the front before reallocating.
func (buf *buffer) grow(n int) {
	if cap(buf.b)-buf.a >= n {
		return
	}
	if buf.r > 0 {
		copy(buf.b, buf.b[buf.r:buf.a])
		buf.a -= buf.r
		buf.w -= buf.r
		buf.r = 0
		if cap(buf.b)-buf.a >= n {
			return
		}
	}
	size := cap(buf.b) * 2
	for size-buf.a < n {
		size *= 2
	}
	nb := make([]byte, size)
	copy(nb, buf.b[:buf.a])
	buf.b = nb
}
