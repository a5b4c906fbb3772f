package bytebuffers_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/brickingsoft/tlstream/pkg/bytebuffers"
)

func TestBuffer(t *testing.T) {
	buf := bytebuffers.NewBuffer()
	n, err := buf.Write([]byte("0123456789"))
	if err != nil {
		t.Fatal(err)
	}
	if n != 10 || buf.Len() != 10 {
		t.Fatalf("wrote %d, len %d", n, buf.Len())
	}
	if p := buf.Peek(5); !bytes.Equal(p, []byte("01234")) {
		t.Fatalf("peek = %q", p)
	}
	buf.Discard(5)
	p, nextErr := buf.Next(5)
	if nextErr != nil {
		t.Fatal(nextErr)
	}
	if !bytes.Equal(p, []byte("56789")) {
		t.Fatalf("next = %q", p)
	}
	if buf.Len() != 0 {
		t.Fatalf("len = %d", buf.Len())
	}
	if _, err = buf.Next(1); err != io.EOF {
		t.Fatalf("next on empty = %v", err)
	}
}

func TestBufferAllocate(t *testing.T) {
	buf := bytebuffers.NewBuffer()
	area, err := buf.Allocate(8)
	if err != nil {
		t.Fatal(err)
	}
	if !buf.WritePending() {
		t.Fatal("expected write pending")
	}
	if _, err = buf.Write([]byte("x")); err == nil {
		t.Fatal("expected write rejected while allocation pending")
	}
	copy(area, "abcd")
	if err = buf.AllocatedWrote(4); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 4 {
		t.Fatalf("len = %d", buf.Len())
	}
	p := make([]byte, 8)
	n, readErr := buf.Read(p)
	if readErr != nil {
		t.Fatal(readErr)
	}
	if !bytes.Equal(p[:n], []byte("abcd")) {
		t.Fatalf("read = %q", p[:n])
	}
}

func TestBufferGrowKeepsPending(t *testing.T) {
	buf := bytebuffers.NewBufferWithSize(8)
	if _, err := buf.Write(bytes.Repeat([]byte("a"), 6)); err != nil {
		t.Fatal(err)
	}
	buf.Discard(4)
	if _, err := buf.Write(bytes.Repeat([]byte("b"), 64)); err != nil {
		t.Fatal(err)
	}
	p := make([]byte, 128)
	n, _ := buf.Read(p)
	if n != 66 {
		t.Fatalf("len after grow = %d", n)
	}
	if !bytes.Equal(p[:2], []byte("aa")) {
		t.Fatalf("head = %q", p[:2])
	}
}
