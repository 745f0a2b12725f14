package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/nomis52/instrumentsim/clients/simclient"
	"github.com/spf13/cobra"
)

var activitiesCmd = &cobra.Command{
	Use:   "activities",
	Short: "List advertised activities",
	Args:  cobra.NoArgs,
	RunE:  runActivities,
}

var startCmd = &cobra.Command{
	Use:   "start [activity-name]",
	Short: "Start an activity",
	Args:  cobra.ExactArgs(1),
	RunE:  runStart,
}

var cancelCmd = &cobra.Command{
	Use:   "cancel [activity-id]",
	Short: "Cancel an activity",
	Args:  cobra.ExactArgs(1),
	RunE:  runCancel,
}

var statusCmd = &cobra.Command{
	Use:   "status [activity-id]",
	Short: "Show activity status",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

var dataCmd = &cobra.Command{
	Use:   "data [activity-id]",
	Short: "Show data products of a completed activity",
	Args:  cobra.ExactArgs(1),
	RunE:  runData,
}

var logsCmd = &cobra.Command{
	Use:   "logs [activity-id]",
	Short: "Show captured activity logs",
	Args:  cobra.ExactArgs(1),
	RunE:  runLogs,
}

var (
	startOptions  []string
	startDeadline string
	startWithin   time.Duration
	startWait     bool
	cancelReason  string
)

func init() {
	startCmd.Flags().StringArrayVarP(&startOptions, "option", "o", nil, "Activity option as key=value (repeatable)")
	startCmd.Flags().StringVar(&startDeadline, "deadline", "", "Deadline as an RFC3339 timestamp")
	startCmd.Flags().DurationVar(&startWithin, "within", 0, "Deadline relative to now (alternative to --deadline)")
	startCmd.Flags().BoolVar(&startWait, "wait", false, "Wait for the activity to finish")
	startCmd.MarkFlagsMutuallyExclusive("deadline", "within")

	cancelCmd.Flags().StringVar(&cancelReason, "reason", "Canceled by operator", "Cancellation reason")
}

func runActivities(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
	defer cancel()

	names, err := client.Activities(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), strings.Join(names, "\n"))
	return nil
}

func runStart(cmd *cobra.Command, args []string) error {
	options, err := parseOptions(startOptions)
	if err != nil {
		return err
	}
	deadline := startDeadline
	if startWithin > 0 {
		deadline = time.Now().Add(startWithin).UTC().Format(time.RFC3339)
	}

	client, err := newClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
	defer cancel()

	id, err := client.Start(ctx, args[0], options, deadline)
	if err != nil {
		var startErr *simclient.StartError
		if errors.As(err, &startErr) {
			return fmt.Errorf("start rejected: %s", startErr.Msg)
		}
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Started activity: %s\n", id)

	if !startWait {
		return nil
	}
	status, err := client.WaitFinished(ctx, id, 50*time.Millisecond)
	if err != nil {
		return err
	}
	printStatus(cmd, id, status)
	return nil
}

func runCancel(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
	defer cancel()

	if err := client.Cancel(ctx, args[0], cancelReason); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Canceled activity: %s\n", args[0])
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
	defer cancel()

	status, err := client.Status(ctx, args[0])
	if err != nil {
		return err
	}
	printStatus(cmd, args[0], status)
	return nil
}

func printStatus(cmd *cobra.Command, id string, status simclient.ActivityStatus) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID:\t%s\n", id)
	fmt.Fprintf(w, "Status:\t%s\n", status.ActivityStatus)
	fmt.Fprintf(w, "Began:\t%s\n", status.TimeBegin)
	if status.TimeEnd != "" {
		fmt.Fprintf(w, "Ended:\t%s\n", status.TimeEnd)
	}
	if status.StatusMsg != "" {
		fmt.Fprintf(w, "Message:\t%s\n", status.StatusMsg)
	}
	w.Flush()
}

func runData(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
	defer cancel()

	products, err := client.Data(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), strings.Join(products, "\n"))
	return nil
}

func runLogs(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
	defer cancel()

	logs, err := client.Logs(ctx, args[0])
	if err != nil {
		return err
	}
	if len(logs) == 0 {
		fmt.Fprintln(os.Stderr, "No logs captured")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	for _, entry := range logs {
		keys := make([]string, 0, len(entry.Attributes))
		for k := range entry.Attributes {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		attrs := make([]string, 0, len(keys))
		for _, k := range keys {
			attrs = append(attrs, fmt.Sprintf("%s=%v", k, entry.Attributes[k]))
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			entry.Time.UTC().Format(time.RFC3339), entry.Level, entry.Message, strings.Join(attrs, " "))
	}
	return w.Flush()
}
