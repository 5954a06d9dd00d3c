// Package run hosts the top-level task of a quarry binary
package run

import (
	"context"
	"errors"
	"os"

	"github.com/ridge/parallel"
	"github.com/ridge/quarry/tlog"
	"go.uber.org/zap"
)

// Tool runs the top-level task of a program until it returns or a
// termination signal arrives. The context passed to the task carries a logger
// built from config.
//
// Tool does not return. It exits with code 0 if the task returns nil, with the
// code of a WithExitCode error, or with code 1 otherwise.
//
//	func main() {
//	    config := tlog.Config{}
//	    tlog.AddFlags(pflag.CommandLine, &config)
//	    pflag.Parse()
//	    run.Tool(config, func(ctx context.Context) error {
//	        ...
//	    })
//	}
func Tool(config tlog.Config, task func(ctx context.Context) error) {
	// os.Exit skips deferred functions, so it goes into the first defer
	var err error
	defer func() {
		os.Exit(exitCode(err))
	}()

	ctx := tlog.WithLogger(context.Background(), tlog.New(config))
	defer func() {
		_ = tlog.Get(ctx).Sync()
	}()

	err = parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		spawn("main", parallel.Exit, task)
		spawn("signals", parallel.Exit, handleSignals)
		return nil
	})
	if err != nil {
		tlog.Get(ctx).Error("Error", zap.Error(err))
	}
}

// WithExitCode is an optional interface that can be implemented by an error.
//
// When a (possibly wrapped) error implementing WithExitCode reaches the top
// level, the value returned by the ExitCode method becomes the exit code of the
// process.
type WithExitCode interface {
	ExitCode() int
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var wec WithExitCode
	if errors.As(err, &wec) {
		return wec.ExitCode()
	}
	return 1
}

// Server is Tool for long-running tasks: if the task exits with the context
// error after a termination signal, the program exits with code 0
func Server(config tlog.Config, task func(ctx context.Context) error) {
	Tool(config, func(ctx context.Context) error {
		err := task(ctx)
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return nil
		}
		return err
	})
}
