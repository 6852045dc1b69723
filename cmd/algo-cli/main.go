package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"algotemplate/internal/config"
	"algotemplate/internal/httpapi"
	"algotemplate/internal/live"
	"algotemplate/internal/runner"
	"algotemplate/internal/strategy/builtins"
	"algotemplate/internal/util"
)

const version = "0.1.0"

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: algo-cli <command> [options]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  version      Print the CLI version\n")
		fmt.Fprintf(os.Stderr, "  strategies   List registered strategies\n")
		fmt.Fprintf(os.Stderr, "  validate     Check a run configuration file\n")
		fmt.Fprintf(os.Stderr, "  serve-feed   Serve a stored history as a live market-data endpoint\n")
		fmt.Fprintf(os.Stderr, "\n")
	}

	if len(os.Args) < 2 {
		flag.Usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "version":
		fmt.Printf("algo-cli %s\n", version)

	case "strategies":
		for _, name := range builtins.NewRegistry().List() {
			fmt.Println(name)
		}

	case "validate":
		if len(os.Args) < 3 {
			log.Fatal("usage: algo-cli validate <config>")
		}
		cfg, err := config.Load(os.Args[2])
		if err != nil {
			log.Fatal(err)
		}
		if _, err := builtins.NewRegistry().New(cfg.Run.Strategy); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("%s: ok (mode=%s strategy=%s)\n", os.Args[2], cfg.Feed.Mode, cfg.Run.Strategy)

	case "serve-feed":
		if err := serveFeed(os.Args[2:]); err != nil {
			log.Fatalf("serve-feed: %v", err)
		}

	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		flag.Usage()
		os.Exit(1)
	}
}

// serveFeed replays the configured history one bar per poll over gRPC and
// HTTP, so that live runs can be exercised without a market-data provider.
func serveFeed(args []string) error {
	fs := flag.NewFlagSet("serve-feed", flag.ExitOnError)
	cfgPath := fs.String("config", "config/algo.yaml", "configuration naming the history source")
	grpcAddr := fs.String("grpc", ":50051", "gRPC listen address (empty disables)")
	httpAddr := fs.String("http", "", "HTTP listen address (empty disables)")
	fs.Parse(args)

	cfg, err := config.Read(*cfgPath)
	if err != nil {
		return err
	}
	logger := util.NewLoggerTo(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	bars, err := runner.LoadHistory(ctx, cfg)
	if err != nil {
		return err
	}
	source := live.NewReplayProvider(bars)

	errc := make(chan error, 2)
	if *grpcAddr != "" {
		lis, err := net.Listen("tcp", *grpcAddr)
		if err != nil {
			return err
		}
		gs := grpc.NewServer()
		live.NewServer(source, logger).RegisterGRPC(gs)
		go func() { errc <- gs.Serve(lis) }()
		defer gs.GracefulStop()
		logger.Info("serving gRPC market data", "addr", *grpcAddr, "method", live.DefaultMethod, "bars", len(bars))
	}
	if *httpAddr != "" {
		hs := &http.Server{Addr: *httpAddr, Handler: httpapi.NewMarketDataServer(source, logger).Handler()}
		go func() {
			if err := hs.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				errc <- err
			}
		}()
		defer func() {
			sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer scancel()
			hs.Shutdown(sctx)
		}()
		logger.Info("serving HTTP market data", "addr", *httpAddr, "path", "/market-data", "bars", len(bars))
	}
	if *grpcAddr == "" && *httpAddr == "" {
		return errors.New("one of -grpc or -http is required")
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		return nil
	case err := <-errc:
		return err
	}
}
