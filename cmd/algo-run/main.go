package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"algotemplate/internal/config"
	"algotemplate/internal/runner"
	"algotemplate/internal/util"
)

func main() {
	cfgFlag := flag.String("config", "", "path to the run configuration (default $ALGO_CONFIG or config/algo.yaml)")
	hyperFlag := flag.String("hyperparameters", "", "optional flat hyperparameters file (JSON or YAML) replacing the run section")
	flag.Parse()

	cfgPath := "config/algo.yaml"
	if p := os.Getenv("ALGO_CONFIG"); p != "" {
		cfgPath = p
	}
	if *cfgFlag != "" {
		cfgPath = *cfgFlag
	}

	cfg, err := config.Read(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *hyperFlag != "" {
		rc, err := config.LoadRunConfig(*hyperFlag)
		if err != nil {
			log.Fatalf("failed to load hyperparameters: %v", err)
		}
		cfg.Run = *rc
	}

	logger := util.NewLoggerTo(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	run, err := runner.Build(ctx, cfg, runner.Options{Logger: logger})
	if err != nil {
		log.Fatalf("failed to build run: %v", err)
	}
	defer run.Close()

	logger.Info("starting run", "algo", cfg.Run.AlgoName, "strategy", cfg.Run.Strategy, "mode", cfg.Feed.Mode)
	if _, err := run.Execute(ctx, os.Stdout); err != nil {
		run.Close()
		log.Fatalf("run failed: %v", err)
	}
}
