package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var actionsCmd = &cobra.Command{
	Use:   "actions",
	Short: "List advertised actions",
	Args:  cobra.NoArgs,
	RunE:  runActions,
}

var performCmd = &cobra.Command{
	Use:   "perform [action-name]",
	Short: "Perform an action",
	Long:  `Perform submits an action. The outcome is published later as an InstrumentActionCompletion event; use "simctl watch" to see it.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runPerform,
}

var performOptions []string

func init() {
	performCmd.Flags().StringArrayVarP(&performOptions, "option", "o", nil, "Action option as key=value (repeatable)")
}

func runActions(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
	defer cancel()

	names, err := client.Actions(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), strings.Join(names, "\n"))
	return nil
}

func runPerform(cmd *cobra.Command, args []string) error {
	options, err := parseOptions(performOptions)
	if err != nil {
		return err
	}
	client, err := newClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
	defer cancel()

	if err := client.Perform(ctx, args[0], options); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Accepted action: %s\n", args[0])
	return nil
}
