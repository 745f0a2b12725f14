package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/nomis52/instrumentsim/buildinfo"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print events from the event stream",
	Long:  `Watch consumes the simulator's event stream and prints one line per event. Events printed here are no longer delivered to other subscribers.`,
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the simulator's effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfig,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "simctl %s\n", buildinfo.Get())
	},
}

var watchCount int

func init() {
	watchCmd.Flags().IntVarP(&watchCount, "count", "n", 0, "Exit after this many events (0 = run until interrupted)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stream, err := client.Subscribe(ctx)
	if err != nil {
		return err
	}
	defer stream.Close()

	for seen := 0; watchCount == 0 || seen < watchCount; seen++ {
		ev, err := stream.Next()
		switch {
		case errors.Is(err, io.EOF):
			return nil
		case err != nil && ctx.Err() != nil:
			return nil
		case err != nil:
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", ev.Name, ev.Data)
	}
	return nil
}

func runConfig(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
	defer cancel()

	cfg, err := client.Config(ctx)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), cfg)
	return nil
}
