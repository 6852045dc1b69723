package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"algotemplate/internal/config"
	"algotemplate/internal/gather/us"
	"algotemplate/internal/store"
	"algotemplate/internal/util"
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: algo-data <command> [options]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  import     Load a CSV history into the parquet or SQLite store\n")
	fmt.Fprintf(os.Stderr, "  fetch      Download US daily bars from Alpaca into the store\n")
	fmt.Fprintf(os.Stderr, "\nThe configuration is read from $ALGO_CONFIG (default config/algo.yaml).\n")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cfgPath := "config/algo.yaml"
	if p := os.Getenv("ALGO_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Read(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLoggerTo(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch os.Args[1] {
	case "import":
		err = runImport(ctx, cfg, os.Args[2:])
	case "fetch":
		err = runFetch(ctx, cfg, os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		usage()
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("%s: %v", os.Args[1], err)
	}
}

// openStore returns the configured bar store and a release func.
func openStore(cfg *config.Config, kind string) (store.BarStore, func() error, error) {
	switch kind {
	case config.SourceParquet:
		if cfg.Storage.DataDir == "" {
			return nil, nil, fmt.Errorf("storage.data_dir is required for parquet")
		}
		return store.NewParquetStore(cfg.Storage.DataDir), func() error { return nil }, nil
	case config.SourceSQLite:
		if cfg.Storage.SQLitePath == "" {
			return nil, nil, fmt.Errorf("storage.sqlite_path is required for sqlite")
		}
		s, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}
	return nil, nil, fmt.Errorf("unsupported store %q", kind)
}

func runImport(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	csvPath := fs.String("csv", cfg.Feed.CSVPath, "CSV file to import")
	symbol := fs.String("symbol", cfg.Feed.Symbol, "symbol for rows without one")
	kind := fs.String("store", config.SourceParquet, "target store: parquet or sqlite")
	market := fs.String("market", cfg.Feed.Market, "market partition")
	fs.Parse(args)

	if *csvPath == "" {
		return fmt.Errorf("-csv is required")
	}
	bars, err := store.ReadCSVFile(*csvPath, *symbol)
	if err != nil {
		return err
	}

	s, release, err := openStore(cfg, *kind)
	if err != nil {
		return err
	}
	defer release()

	switch st := s.(type) {
	case *store.ParquetStore:
		err = st.WriteBarsForMarket(bars, *market)
	case *store.SQLiteStore:
		err = st.WriteBarsForMarket(ctx, bars, *market)
	default:
		err = s.WriteBars(ctx, bars)
	}
	if err != nil {
		return err
	}
	slog.Info("imported bars", "csv", *csvPath, "count", len(bars), "store", *kind, "market", *market)
	return nil
}

func runFetch(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	symbols := fs.String("symbols", cfg.Feed.Symbol, "comma-separated symbols")
	start := fs.String("start", cfg.Feed.StartDate, "first date, YYYY-MM-DD")
	end := fs.String("end", "", "last date, YYYY-MM-DD (default: latest finished trading day)")
	kind := fs.String("store", config.SourceParquet, "target store: parquet or sqlite")
	workers := fs.Int("workers", 4, "concurrent batches")
	batch := fs.Int("batch", 100, "symbols per request")
	progress := fs.String("progress-dir", "", "directory for resume markers (default: none)")
	fs.Parse(args)

	var list []string
	for _, s := range strings.Split(*symbols, ",") {
		if s = strings.TrimSpace(s); s != "" {
			list = append(list, strings.ToUpper(s))
		}
	}
	if len(list) == 0 {
		return fmt.Errorf("-symbols is required")
	}
	startDate, err := config.ParseDate(*start)
	if err != nil {
		return err
	}
	if startDate.IsZero() {
		return fmt.Errorf("-start is required")
	}
	endDate, err := config.ParseDate(*end)
	if err != nil {
		return err
	}

	s, release, err := openStore(cfg, *kind)
	if err != nil {
		return err
	}
	defer release()

	g := us.NewDailyBarGatherer(us.DailyBarConfig{
		APIKey:      cfg.Alpaca.APIKey,
		APISecret:   cfg.Alpaca.APISecret,
		DataURL:     cfg.Alpaca.DataURL,
		BaseURL:     cfg.Alpaca.BaseURL,
		Feed:        cfg.Alpaca.Feed,
		Symbols:     list,
		Start:       startDate,
		End:         endDate,
		BatchSize:   *batch,
		MaxWorkers:  *workers,
		ProgressDir: *progress,
	}, s)

	slog.Info("starting daily bar fetch", "symbols", len(list), "store", *kind)
	return g.Run(ctx)
}
