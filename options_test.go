package tlstream_test

import (
	"testing"
	"time"

	"github.com/brickingsoft/tlstream"
)

func TestOptionsRxpPlumbing(t *testing.T) {
	opt := tlstream.Options{}
	if err := tlstream.WithCloseTimeout(3 * time.Second)(&opt); err != nil {
		t.Fatal(err)
	}
	if opt.RxpOptions.CloseTimeout != 3*time.Second {
		t.Fatalf("close timeout = %v", opt.RxpOptions.CloseTimeout)
	}
	// Executor construction consumes exactly what the options carry.
	if n := len(opt.AsRxpOptions()); n != 1 {
		t.Fatalf("rxp options = %d", n)
	}
}

func TestOptionsDefaults(t *testing.T) {
	opt := tlstream.Options{}
	if err := tlstream.WithParallelLoops(0)(&opt); err != nil {
		t.Fatal(err)
	}
	if opt.ParallelLoops < 1 {
		t.Fatalf("parallel loops = %d", opt.ParallelLoops)
	}
	if err := tlstream.WithBacklog(-1)(&opt); err != nil {
		t.Fatal(err)
	}
	if opt.Backlog != 0 {
		t.Fatalf("negative backlog accepted: %d", opt.Backlog)
	}
	if n := len(opt.AsRxpOptions()); n != 0 {
		t.Fatalf("empty options produced %d rxp options", n)
	}
}
