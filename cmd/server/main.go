package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/opsgraph/opsgraph/internal/config"
	"github.com/opsgraph/opsgraph/internal/server"
	"github.com/opsgraph/opsgraph/internal/util"
	"github.com/opsgraph/opsgraph/pkg/logger"
	"github.com/opsgraph/opsgraph/pkg/logger/console"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	sourceName := flag.String("source", "", "data source name from the configuration (default: first)")
	flag.Parse()

	util.LoadEnv()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(1)
	}

	consoleLogger := console.NewConsoleBackend(console.ConsoleBackendParams{
		Debug: cfg.Debug || util.GetEnvBool("DEBUG", false),
	})
	logger.Init(consoleLogger)

	server.Init(cfg, *sourceName)
}
