// parquet2tsv converts a single parquet file to a TSV file written
// next to it.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/nimh-dsst/dataset-browser/convert"
)

func main() {
	logger := slog.New(
		tint.NewHandler(os.Stdout, &tint.Options{
			Level:      slog.LevelInfo,
			TimeFormat: time.Kitchen,
		}),
	)

	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s PARQUET_FILE\n", os.Args[0])
		os.Exit(2)
	}

	parquetPath := flag.Arg(0)
	tsvPath := strings.TrimSuffix(parquetPath, ".parquet") + ".tsv"

	if _, err := os.Stat(parquetPath); err != nil {
		logger.Error("input file does not exist.", "path", parquetPath)
		os.Exit(1)
	}

	result, err := convert.ReadParquet(context.Background(), parquetPath)
	if err != nil {
		logger.Error("conversion error.", "error", err)
		os.Exit(1)
	}

	if err := convert.WriteTSV(tsvPath, result); err != nil {
		logger.Error("cannot write TSV.", "error", err)
		os.Exit(1)
	}

	logger.Info("successfully converted.", "input", parquetPath, "output", tsvPath, "rows", len(result.Rows))
}
