package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nomis52/instrumentsim/buildinfo"
	"github.com/nomis52/instrumentsim/config"
	"github.com/nomis52/instrumentsim/server"
)

type Args struct {
	ConfigPath  string
	Addr        string
	Schedule    string
	ShowVersion bool
	Validate    bool
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	args := parseArgs()

	if args.ShowVersion {
		showVersion()
		return nil
	}

	cfg, err := loadConfig(args.ConfigPath)
	if err != nil {
		return err
	}
	if args.Addr != "" {
		cfg.Listener.Addr = args.Addr
	}

	var opts []server.Option
	if args.Schedule != "" {
		opts = append(opts, server.WithSchedule(args.Schedule))
	}

	srv, err := server.New(cfg, opts...)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	// Validation covers the schedule flag too, so it runs after New.
	if args.Validate {
		fmt.Printf("Configuration validation successful: %s\n", describe(args.ConfigPath))
		return nil
	}

	props := buildinfo.Get()
	srv.Logger().Info("instrument simulator started",
		"version", props.Version,
		"git_commit", props.GitCommit,
		"config_path", describe(args.ConfigPath),
	)

	// Set up signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		srv.Logger().Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	return srv.Run(ctx)
}

// loadConfig reads path, or returns the built-in defaults when path is empty.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func describe(path string) string {
	if path == "" {
		return "(defaults)"
	}
	return path
}

func showVersion() {
	props := buildinfo.Get()
	fmt.Printf("instrument simulator\n")
	fmt.Printf("Version: %s (API v%s)\n", props.Version, props.APIVersion)
	fmt.Printf("Built: %s\n", props.BuildTime)
	fmt.Printf("Commit: %s\n", props.GitCommit)
}

func parseArgs() Args {
	configPath := flag.String("config", "", "Path to config file (defaults apply when omitted)")
	configPathShort := flag.String("c", "", "Path to config file (shorthand)")
	addr := flag.String("addr", "", "Listen address, overrides listener.addr")
	schedule := flag.String("schedule", "", "Cron triggers as ACTIVITY[,ACTIVITY]:cron[;...]")
	showVersion := flag.Bool("version", false, "Show version information")
	versionShort := flag.Bool("v", false, "Show version information (shorthand)")
	validate := flag.Bool("validate", false, "Validate configuration and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nInstrument Controller Simulator\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --config /etc/instrumentsim/config.yaml\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -addr :9090 -schedule 'SCAN:*/5 * * * *'\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --config config.yaml --validate\n", os.Args[0])
	}

	flag.Parse()

	path := *configPath
	if path == "" && *configPathShort != "" {
		path = *configPathShort
	}

	return Args{
		ConfigPath:  path,
		Addr:        *addr,
		Schedule:    *schedule,
		ShowVersion: *showVersion || *versionShort,
		Validate:    *validate,
	}
}
