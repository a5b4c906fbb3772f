//go:build linux

package sys

import (
	"bufio"
	"os"
	"strconv"
	"strings"
	"sync"
	"syscall"
)

var (
	somaxconn   = syscall.SOMAXCONN
	backlogOnce = sync.Once{}
)

func MaxListenerBacklog() int {
	backlogOnce.Do(func() {
		fd, err := os.Open("/proc/sys/net/core/somaxconn")
		if err != nil {
			return
		}
		defer func() {
			_ = fd.Close()
		}()
		rd := bufio.NewReader(fd)
		l, readLineErr := rd.ReadString('\n')
		if readLineErr != nil {
			return
		}
		n, parseErr := strconv.Atoi(strings.TrimSpace(l))
		if parseErr != nil || n == 0 {
			return
		}
		if n > 1<<16-1 {
			n = 1<<16 - 1
		}
		somaxconn = n
	})
	return somaxconn
}
