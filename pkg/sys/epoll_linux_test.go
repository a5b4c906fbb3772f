//go:build linux

package sys_test

import (
	"testing"
	"time"

	"github.com/brickingsoft/tlstream/pkg/sys"
	"golang.org/x/sys/unix"
)

func TestEPollReadiness(t *testing.T) {
	poller, err := sys.OpenEPoll()
	if err != nil {
		t.Fatal(err)
	}
	defer poller.Close()

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	if err = poller.Add(fds[0], true, false); err != nil {
		t.Fatal(err)
	}

	type event struct {
		fd       int
		readable bool
		hup      bool
	}
	events := make(chan event, 8)
	go func() {
		_ = poller.Wait(func(fd int, readable bool, writable bool, hup bool) {
			events <- event{fd: fd, readable: readable, hup: hup}
		})
	}()

	if _, err = unix.Write(fds[1], []byte("ping")); err != nil {
		t.Fatal(err)
	}
	select {
	case ev := <-events:
		if ev.fd != fds[0] || !ev.readable {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no readiness event")
	}

	// Readable again until drained, edge cases aside we use level
	// triggering, so re-raise after a Mod.
	if err = poller.Mod(fds[0], true, true); err != nil {
		t.Fatal(err)
	}
	select {
	case <-events:
	case <-time.After(2 * time.Second):
		t.Fatal("no event after mod")
	}

	if err = poller.Del(fds[0]); err != nil {
		t.Fatal(err)
	}
	if err = poller.Close(); err != nil {
		t.Fatal(err)
	}
	// Wait returns once the poller is closed.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case <-events:
		case <-deadline:
			t.Fatal("wait did not return after close")
		case <-time.After(100 * time.Millisecond):
			return
		}
	}
}

func TestEPollWakeup(t *testing.T) {
	poller, err := sys.OpenEPoll()
	if err != nil {
		t.Fatal(err)
	}
	done := make(chan error, 1)
	go func() {
		done <- poller.Wait(func(int, bool, bool, bool) {})
	}()
	time.Sleep(50 * time.Millisecond)
	if err = poller.Close(); err != nil {
		t.Fatal(err)
	}
	select {
	case waitErr := <-done:
		if waitErr != nil {
			t.Fatalf("wait after close = %v", waitErr)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("close did not wake the waiter")
	}
}

func TestEPollWaitOnClosedPollerStopsCleanly(t *testing.T) {
	poller, err := sys.OpenEPoll()
	if err != nil {
		t.Fatal(err)
	}
	if err = poller.Close(); err != nil {
		t.Fatal(err)
	}
	// The wait syscall hits the dead fd straight away, which must
	// read as a stop, not an error.
	if err = poller.Wait(func(int, bool, bool, bool) {}); err != nil {
		t.Fatalf("wait on closed poller = %v", err)
	}
}
