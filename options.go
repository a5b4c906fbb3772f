package tlstream

import (
	"runtime"
	"time"

	"github.com/apex/log"
	"github.com/brickingsoft/rxp"
	"github.com/brickingsoft/tlstream/security"
)

type Options struct {
	RxpOptions      rxp.Options
	ParallelLoops   int
	Backlog         int
	Security        security.Context
	Log             log.Interface
	KeepAlivePeriod time.Duration
	NoDelay         bool
}

func (options *Options) AsRxpOptions() []rxp.Option {
	opts := make([]rxp.Option, 0, 1)
	if n := options.RxpOptions.MaxprocsOptions.MinGOMAXPROCS; n > 0 {
		opts = append(opts, rxp.WithMinGOMAXPROCS(n))
	}
	if fn := options.RxpOptions.MaxprocsOptions.Procs; fn != nil {
		opts = append(opts, rxp.WithProcs(fn))
	}
	if fn := options.RxpOptions.MaxprocsOptions.RoundQuotaFunc; fn != nil {
		opts = append(opts, rxp.WithRoundQuotaFunc(fn))
	}
	if n := options.RxpOptions.MaxGoroutines; n > 0 {
		opts = append(opts, rxp.WithMaxGoroutines(n))
	}
	if n := options.RxpOptions.MaxReadyGoroutinesIdleDuration; n > 0 {
		opts = append(opts, rxp.WithMaxReadyGoroutinesIdleDuration(n))
	}
	if n := options.RxpOptions.CloseTimeout; n > 0 {
		opts = append(opts, rxp.WithCloseTimeout(n))
	}
	return opts
}

type Option func(options *Options) (err error)

// WithParallelLoops sets how many event loops share the accepted
// connections. Defaults to runtime.NumCPU().
func WithParallelLoops(parallelLoops int) Option {
	return func(options *Options) (err error) {
		cpuNum := runtime.NumCPU()
		if parallelLoops < 1 || cpuNum*2 < parallelLoops {
			parallelLoops = cpuNum
		}
		options.ParallelLoops = parallelLoops
		return
	}
}

// WithBacklog sets the listen backlog. Defaults to the system value.
func WithBacklog(backlog int) Option {
	return func(options *Options) (err error) {
		if backlog > 0 {
			options.Backlog = backlog
		}
		return
	}
}

// WithSecurity wraps every connection in a session bound to an engine
// from the context. Without it connections stay plain streams.
func WithSecurity(sc security.Context) Option {
	return func(options *Options) (err error) {
		options.Security = sc
		return
	}
}

// WithLogger sets the logger for accept and teardown events.
func WithLogger(logger log.Interface) Option {
	return func(options *Options) (err error) {
		options.Log = logger
		return
	}
}

// WithKeepAlive enables TCP keep-alive with the given period.
func WithKeepAlive(period time.Duration) Option {
	return func(options *Options) (err error) {
		if period > 0 {
			options.KeepAlivePeriod = period
		}
		return
	}
}

// WithNoDelay disables Nagle on accepted TCP connections.
func WithNoDelay() Option {
	return func(options *Options) (err error) {
		options.NoDelay = true
		return
	}
}

// WithCloseTimeout bounds the graceful executors shutdown.
func WithCloseTimeout(timeout time.Duration) Option {
	return func(options *Options) error {
		return rxp.WithCloseTimeout(timeout)(&options.RxpOptions)
	}
}
