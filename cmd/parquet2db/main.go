// parquet2db converts all parquet files matching a glob pattern into a
// single table of an SQLite database, so the result is browsable in
// the dashboard server. Rows can optionally be rewritten or dropped by
// a lua transform script on the way through.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/nimh-dsst/dataset-browser/convert"
	"github.com/nimh-dsst/dataset-browser/storage"
)

func main() {
	logger := slog.New(
		tint.NewHandler(os.Stdout, &tint.Options{
			Level:      slog.LevelInfo,
			TimeFormat: time.Kitchen,
		}),
	)

	output := flag.String("o", "", "path for the output SQLite file (required, must end in .sqlite)")
	table := flag.String("table", "data", "name of the table to write")
	script := flag.String("script", "", "optional lua transform script (must define transform_row)")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] PARQUET_GLOB\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}
	pattern := flag.Arg(0)

	if !strings.HasSuffix(*output, ".sqlite") {
		logger.Error("output file must have a .sqlite extension.", "output", *output)
		os.Exit(1)
	}

	if info, err := os.Stat(*output); err == nil && info.Mode().Perm()&0o222 == 0 {
		logger.Error("output file already exists, but permissions are locking you out.", "output", *output)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received signal. shutting down.", "signal", sig)
		cancel()
	}()

	result, err := convert.ReadParquetGlob(ctx, pattern)
	if err != nil {
		logger.Error("conversion error.", "error", err)
		os.Exit(1)
	}
	logger.Info("read parquet files.", "rows", len(result.Rows), "columns", len(result.Columns))

	if *script != "" {
		transformer, err := convert.NewLuaTransformer(*script)
		if err != nil {
			logger.Error("transform error.", "error", err)
			os.Exit(1)
		}

		before := len(result.Rows)
		result, err = transformer.Apply(result)
		if err != nil {
			logger.Error("transform error.", "error", err)
			os.Exit(1)
		}
		logger.Info("applied transform script.", "script", *script, "rows", len(result.Rows), "dropped", before-len(result.Rows))
	}

	if err := storage.WriteTable(ctx, *output, *table, result.Columns, result.Rows, true); err != nil {
		logger.Error("cannot write database.", "error", err)
		os.Exit(1)
	}

	logger.Info("successfully converted.", "pattern", pattern, "output", *output, "table", *table, "rows", len(result.Rows))
}
