// quarry-demo runs the reference scenario against a chosen backend:
// five users are inserted, looked up by index, one is renamed and another
// deleted.
//
//	quarry-demo --backend sqlite --dsn /tmp/demo.db --codec msgpack+zstd -v
//
// With --listen the store stays up afterwards, served over HTTP together with
// its metrics at /metrics, until the process is terminated.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/ridge/quarry/run"
	"github.com/ridge/quarry/tlog"
	"github.com/spf13/pflag"
)

type usageError struct {
	err error
}

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }
func (usageError) ExitCode() int   { return 2 }

func main() {
	logConfig := tlog.Config{Name: "quarry-demo"}
	tlog.AddFlags(pflag.CommandLine, &logConfig)
	var cfg config
	cfg.addFlags(pflag.CommandLine)
	pflag.Parse()

	run.Server(logConfig, func(ctx context.Context) error {
		if err := cfg.validate(); err != nil {
			return usageError{err: err}
		}
		return demo(ctx, cfg, os.Stdout)
	})
}

func demo(ctx context.Context, cfg config, out io.Writer) error {
	env, err := open(ctx, cfg)
	if err != nil {
		return err
	}
	defer env.close()

	report, err := scenario(ctx, env.store)
	if err != nil {
		return err
	}
	fmt.Fprint(out, report)

	if cfg.metrics {
		if err := dumpMetrics(out, env.registry); err != nil {
			return err
		}
	}
	if cfg.listen != "" {
		return serve(ctx, cfg.listen, env)
	}
	return nil
}
