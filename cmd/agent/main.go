// Package main is the entry point for the DevTrack host telemetry agent.
// It loads configuration, builds the agent and runs it as either a Windows
// service or a foreground process.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/Guliveer/devtrack-agent/internal/agent"
	"github.com/Guliveer/devtrack-agent/internal/autostart"
	"github.com/Guliveer/devtrack-agent/internal/config"
	"github.com/Guliveer/devtrack-agent/internal/logging"
	"github.com/Guliveer/devtrack-agent/internal/service"
)

var (
	// version is set at build time via -ldflags.
	version = "dev"

	configPath  = flag.String("config", "", "Path to configuration file (default: search standard locations)")
	initConfig  = flag.String("init-config", "", "Write the default configuration to this path and exit")
	showVersion = flag.Bool("version", false, "Show version and exit")
	host        = flag.String("host", "", "Collector host[:port], overrides configuration")
	logLevel    = flag.String("log-level", "", "Log level (debug, info, warn, error)")
	interval    = flag.Duration("interval", 0, "Collection interval, overrides configuration")
	install     = flag.Bool("install", false, "Register the agent with the system service manager and exit")
	uninstall   = flag.Bool("uninstall", false, "Remove the agent from the system service manager and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("devtrack-agent %s\n", version)
		os.Exit(0)
	}

	if *initConfig != "" {
		if err := config.WriteConfig(config.DefaultConfig(), *initConfig); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote default configuration to %s\n", *initConfig)
		os.Exit(0)
	}

	if *install || *uninstall {
		if err := manageService(*install); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	cli := config.CLIOverrides{Host: *host, LogLevel: *logLevel, Interval: *interval}
	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadLayered(cli, *configPath)
	} else {
		cfg, err = config.LoadLayered(cli)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, closeLogs := logging.New(cfg.Logging)
	defer func() { _ = closeLogs() }()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	logger.Info("Starting DevTrack Agent",
		zap.String("version", version),
		zap.String("host", cfg.Server.Host),
		zap.Duration("interval", cfg.Collection.Interval.Duration))

	a, err := agent.New(cfg, version, logger)
	if err != nil {
		logger.Fatal("Failed to initialize agent", zap.Error(err))
	}

	if service.IsWindowsService() {
		logger.Info("Running as Windows service")
	}
	svc := service.New(logger, a.Start, a.Stop)
	if err := svc.Run(); err != nil {
		logger.Error("Agent stopped with error", zap.Error(err))
		_ = closeLogs()
		os.Exit(1)
	}
	logger.Info("Agent stopped", zap.String("status", a.Status()))
}

// manageService installs or removes the autostart service.
func manageService(installing bool) error {
	m := autostart.New()
	if !installing {
		if err := m.Uninstall(); err != nil {
			return fmt.Errorf("uninstall %s: %w", m.ServiceName(), err)
		}
		fmt.Printf("Removed service %s\n", m.ServiceName())
		return nil
	}

	if ok, err := m.IsInstalled(); err != nil {
		return err
	} else if ok {
		return fmt.Errorf("service %s is already installed", m.ServiceName())
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}
	opts := autostart.Options{ExecPath: exe, ConfigPath: *configPath}
	if opts.ConfigPath == "" {
		opts.ConfigPath = config.Locate()
	}
	if opts.ConfigPath != "" {
		if opts.ConfigPath, err = filepath.Abs(opts.ConfigPath); err != nil {
			return err
		}
	}
	if err := m.Install(opts); err != nil {
		return fmt.Errorf("install %s: %w", m.ServiceName(), err)
	}
	fmt.Printf("Installed and started service %s\n", m.ServiceName())
	return nil
}
