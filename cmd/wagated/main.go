package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/fx"

	"github.com/mementolab/wagate/internal/config"
	"github.com/mementolab/wagate/internal/daemon"
	"github.com/mementolab/wagate/internal/paths"
)

func main() {
	configFlag := flag.String("config", "", "config file path (default ~/.wagate/config.toml)")
	flag.Parse()

	configPath := *configFlag
	if configPath == "" {
		configPath = paths.ConfigPath()
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	app := fx.New(
		daemon.Module(cfg),
	)

	app.Run()
}
