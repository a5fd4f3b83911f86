package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opsgraph/opsgraph/internal/app"
	"github.com/opsgraph/opsgraph/internal/config"
	"github.com/opsgraph/opsgraph/internal/util"
	"github.com/opsgraph/opsgraph/pkg/logger"
	"github.com/opsgraph/opsgraph/pkg/logger/console"
	"github.com/opsgraph/opsgraph/pkg/pipeline"
	"github.com/opsgraph/opsgraph/pkg/source"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	systemID := flag.String("system", "", "load a single system by id")
	all := flag.Bool("all", false, "load every system the data source lists")
	sourceName := flag.String("source", "", "data source name from the configuration (default: first)")
	flag.Parse()

	util.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(1)
	}

	consoleLogger := console.NewConsoleBackend(console.ConsoleBackendParams{
		Debug: cfg.Debug || util.GetEnvBool("DEBUG", false),
	})
	logger.Init(consoleLogger)

	if *systemID == "" && !*all {
		fmt.Fprintln(os.Stderr, "nothing to do: pass -system <id> or -all")
		flag.Usage()
		os.Exit(2)
	}

	components, err := app.Build(ctx, cfg, *sourceName)
	if err != nil {
		logger.Fatal("Failed to assemble pipeline", "err", err)
	}
	defer components.Close(context.Background())

	if *all {
		batch, err := components.Loader.LoadAllSystems(ctx)
		if err != nil {
			logger.Fatal("Batch load aborted", "err", err)
		}
		printBatch(batch)
		if batch.Failed > 0 {
			os.Exit(1)
		}
		return
	}

	result, err := components.Loader.LoadSystemData(ctx, *systemID)
	printResult(result)
	if err != nil {
		if errors.Is(err, source.ErrSystemNotFound) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func printBatch(batch *pipeline.BatchResult) {
	for _, result := range batch.Results {
		printResult(result)
	}
	fmt.Printf("done: %d succeeded, %d failed in %s\n",
		batch.Succeeded, batch.Failed, batch.Duration.Round(time.Millisecond))
}

func printResult(result *pipeline.Result) {
	if result == nil {
		return
	}
	switch result.Status {
	case pipeline.StatusSuccess:
		env, version := "unknown", "unknown"
		if result.Summary != nil {
			env, version = result.Summary.Environment, result.Summary.Version
		}
		fmt.Printf("%-20s ok     files=%d chunks=%d env=%s version=%s\n",
			result.SystemID, result.FilesProcessed, result.ChunksCreated, env, version)
	case pipeline.StatusSkipped:
		fmt.Printf("%-20s skipped\n", result.SystemID)
	default:
		fmt.Printf("%-20s failed %v\n", result.SystemID, result.Err)
	}
}
