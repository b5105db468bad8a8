// dbjoin joins a CSV or TSV file into a table of an SQLite database.
// The joined result is written back to the database as a new or
// replaced table.
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

	table := flag.String("table", "data", "name of the table in the database to join with")
	dbKey := flag.String("db-key", "", "column in the database table to use as the join key (required)")
	csvKey := flag.String("csv-key", "", "column in the CSV/TSV file to use as the join key (required)")
	joinType := flag.String("join-type", "outer", "type of join to perform: left, right, inner, or outer")
	outputTable := flag.String("output-table", "data", "name of the output table in the database")
	replace := flag.Bool("replace", false, "replace the output table if it already exists")
	separator := flag.String("separator", "", "delimiter for the input file; auto-detected from the extension if empty")
	flag.Parse()

	if flag.NArg() != 2 || *dbKey == "" || *csvKey == "" {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] DATABASE CSV_FILE\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}

	dbPath := flag.Arg(0)
	csvPath := flag.Arg(1)

	if !strings.HasSuffix(dbPath, ".sqlite") {
		logger.Warn("database file does not have a .sqlite extension.", "path", dbPath)
	}

	how, err := convert.ParseJoinType(*joinType)
	if err != nil {
		logger.Error("invalid join type.", "error", err)
		os.Exit(1)
	}

	sep := convert.SeparatorFor(csvPath)
	if r, ok := convert.ParseSeparator(*separator); ok {
		sep = r
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received signal. shutting down.", "signal", sig)
		cancel()
	}()

	st, err := storage.NewSQLiteStorage(storage.SQLiteStorageConfig{Path: dbPath})
	if err != nil {
		logger.Error("storage error.", "error", err)
		os.Exit(1)
	}

	if err := st.Connect(ctx); err != nil {
		logger.Error("cannot connect to database.", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	// limit 0: the whole table takes part in the join.
	dbResult, _, err := st.QueryTable(ctx, *table, nil, nil, 0)
	if err != nil {
		logger.Error("cannot read database table.", "table", *table, "error", err)
		os.Exit(1)
	}
	logger.Info("read database table.", "table", *table, "rows", len(dbResult.Rows), "columns", len(dbResult.Columns))

	csvResult, err := convert.ReadDelimited(csvPath, sep)
	if err != nil {
		logger.Error("cannot read input file.", "path", csvPath, "error", err)
		os.Exit(1)
	}
	logger.Info("read input file.", "path", csvPath, "rows", len(csvResult.Rows), "columns", len(csvResult.Columns))

	joined, err := convert.Join(dbResult, csvResult, *dbKey, *csvKey, how)
	if err != nil {
		logger.Error("join error.", "error", err)
		os.Exit(1)
	}
	logger.Info("performed join.", "type", how, "rows", len(joined.Rows), "columns", len(joined.Columns))

	st.Close()

	if err := storage.WriteTable(ctx, dbPath, *outputTable, joined.Columns, joined.Rows, *replace); err != nil {
		logger.Error("cannot write output table.", "table", *outputTable, "error", err)
		os.Exit(1)
	}

	logger.Info("joined data written.", "table", *outputTable, "database", dbPath)
}
