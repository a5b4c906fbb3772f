package tlstream

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/brickingsoft/errors"
	"github.com/brickingsoft/rxp"
)

var (
	executors     rxp.Executors = nil
	executorsOnce sync.Once
)

// Startup configures the process-wide executors that run event loops.
// A single default is created lazily, call Startup at program start
// when customization is needed.
func Startup(options ...rxp.Option) (err error) {
	defer func() {
		if r := recover(); r != nil {
			switch e := r.(type) {
			case error:
				err = e
			case string:
				err = errors.New(e)
			default:
				err = errors.New(fmt.Sprintf("%+v", r))
			}
		}
	}()
	executors, err = rxp.New(options...)
	return
}

// Shutdown closes the executors without waiting for running loops.
func Shutdown() error {
	runtime.SetFinalizer(executors, nil)
	return Executors().Close()
}

// ShutdownGracefully closes the executors after running loops finish.
func ShutdownGracefully() error {
	runtime.SetFinalizer(executors, nil)
	return Executors().Close()
}

// Executors returns the process-wide executors.
func Executors() rxp.Executors {
	return startupWith(nil)
}

// startupWith creates the executors with the given settings when
// they have not been created yet, otherwise the settings are ignored
// in favor of the existing instance.
func startupWith(options []rxp.Option) rxp.Executors {
	executorsOnce.Do(func() {
		if executors == nil {
			exec, newErr := rxp.New(options...)
			if newErr != nil {
				panic(newErr)
			}
			executors = exec
			runtime.SetFinalizer(executors, rxp.Executors.Close)
		}
	})
	return executors
}
