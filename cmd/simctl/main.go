package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/nomis52/instrumentsim/clients/simclient"
	"github.com/nomis52/instrumentsim/logging"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "simctl",
	Short:        "simctl - instrument simulator client",
	Long:         `simctl drives an instrument simulator over its HTTP API: perform actions, run activities and watch the event stream.`,
	SilenceUsage: true,
	// No RunE - defaults to showing help when no subcommand is provided
}

var (
	serverAddr     string
	requestTimeout time.Duration
	verbose        bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", "http://127.0.0.1:8080", "Simulator address")
	rootCmd.PersistentFlags().DurationVar(&requestTimeout, "timeout", 10*time.Second, "Request timeout")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log requests to stderr")

	rootCmd.AddCommand(actionsCmd, performCmd)
	rootCmd.AddCommand(activitiesCmd, startCmd, cancelCmd, statusCmd, dataCmd, logsCmd)
	rootCmd.AddCommand(watchCmd, configCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// newClient builds a client for --server.
func newClient() (*simclient.Client, error) {
	level := "warn"
	if verbose {
		level = "debug"
	}
	logger, err := logging.New(logging.Config{Level: level, Format: "text", Output: "stderr"})
	if err != nil {
		return nil, err
	}
	return simclient.New(strings.TrimSuffix(serverAddr, "/"), simclient.WithLogger(logger.Logger))
}

// parseOptions turns key=value arguments into options.
func parseOptions(pairs []string) ([]simclient.Option, error) {
	options := make([]simclient.Option, 0, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid option %q: expected key=value", pair)
		}
		options = append(options, simclient.Option{Key: key, Value: value})
	}
	return options, nil
}
