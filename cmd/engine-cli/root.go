package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/atmx/predengine/internal/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "engine-cli",
	Short: "Reference harness for the LMSR and CLOB prediction-market engines",
	Long: `engine-cli drives the LMSR automated market maker and the CLOB
matching engine from the command line: quote and execute LMSR trades,
place and inspect CLOB orders, replay deterministic scenarios, or run
the optional HTTP/WebSocket reference server.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "configs/config.yaml", "path to config file")
}

func loadConfig() *config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}
