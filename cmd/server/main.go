package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"laurels/pkg/config"
	"laurels/pkg/logger"
)

var (
	// Global flags
	configFile string
	logLevel   string
	showCaller bool
	envFile    string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "laurels",
	Short: "Achievement tracking and reward dispatch engine",
	Long: `laurels evaluates game events against an achievement catalog,
tracks progress, dispatches rewards and pushes notifications.

Commands:
  serve    - Run the HTTP API and websocket notification hub
  validate - Check a catalog file and report rejected definitions
  replay   - Feed a JSON-lines event log through the engine`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "config.yml", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&showCaller, "show-caller", false, "Show caller information in logs")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file loaded before the config")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(replayCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig loads the env file and config, then initializes logging.
// A missing config file falls back to defaults with environment overrides.
func loadConfig() (*config.Config, error) {
	envErr := godotenv.Load(envFile)

	cfg, err := config.LoadConfig(configFile)
	fallback := err
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		if cfg, err = config.FromEnvironment(); err != nil {
			return nil, err
		}
	}

	level := cfg.Logging.Level
	if logLevel != "" {
		level = logLevel
	}
	logger.InitLoggers(logger.ParseLevel(level), cfg.Logging.Format, showCaller || cfg.Logging.ShowCaller)

	log := logger.New("SERVER")
	if envErr != nil && !errors.Is(envErr, os.ErrNotExist) {
		log.Warn("Could not load env file %s: %v", envFile, envErr)
	}
	if fallback != nil {
		log.Warn("Could not load config file %s: %v", configFile, fallback)
		log.Info("Using default configuration")
	} else {
		log.Info("Loaded configuration from %s", configFile)
	}
	return cfg, nil
}
