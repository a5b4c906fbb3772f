package bytebuffers

import (
	"os"
	"sync"
)

var (
	pagesize = os.Getpagesize()
	pool     = sync.Pool{
		New: func() interface{} {
			return NewBuffer()
		},
	}
)

func Get() Buffer {
	return pool.Get().(Buffer)
}

// Put returns a buffer to the pool. Oversized buffers are dropped
// so one large burst does not pin memory for the process lifetime.
func Put(b Buffer) {
	if b == nil || b.Cap() > pagesize*4 {
		return
	}
	b.Reset()
	pool.Put(b)
}
