package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ternarybob/recondo/internal/app"
	"github.com/ternarybob/recondo/internal/common"
	"github.com/ternarybob/recondo/internal/signals"
)

var (
	configFile   = flag.String("config", "", "Configuration file path")
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")
)

func main() {
	flag.Parse()

	if *showVersion || *showVersionV {
		fmt.Printf("Recondo version %s\n", common.GetVersion())
		os.Exit(0)
	}

	// Auto-discover config file if not specified
	configPath := *configFile
	if configPath == "" {
		if _, err := os.Stat("recondo.toml"); err == nil {
			configPath = "recondo.toml"
		}
	}

	config, err := common.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := common.InitLogger(config)

	common.PrintBanner(common.GetVersion())

	application, err := app.New(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
	}

	ctx := context.Background()
	if err := application.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start application")
	}

	sig := <-signals.Notify()
	logger.Info().Str("signal", sig.String()).Msg("Signal received")

	application.Shutdown(2 * time.Minute)
}
