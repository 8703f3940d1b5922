// Command venuscv cross-validates a regressor over run files, leaving one
// run out at a time, and appends the scores to a results store.
//
//	venuscv -files watch_data_1_processed.parquet,watch_data_2_processed.parquet \
//	    -predict fcv1_i knn -num_neighbors 5 -weight heater_a=1
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/venus-lab/venusml/experiment"
	"github.com/venus-lab/venusml/pkg/errors"
	"github.com/venus-lab/venusml/pkg/log"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cfg, err := experiment.Parse(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "venuscv: %v\n", err)
		return 1
	}
	if err := log.SetupLogger(cfg.LogLevel, stderr, true); err != nil {
		fmt.Fprintf(stderr, "venuscv: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err = errors.SafeExecute("venuscv", func() error {
		return experiment.Run(ctx, cfg, stdout)
	})
	if err != nil {
		log.GetLoggerWithName("venuscv").Error("Experiment failed", err)
		fmt.Fprintf(stderr, "venuscv: %v\n", err)
		return 1
	}
	return 0
}
