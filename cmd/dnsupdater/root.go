package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Travis-Britz/dnsupdater"
	"github.com/Travis-Britz/dnsupdater/internal/config"
	"github.com/Travis-Britz/dnsupdater/internal/logger"
)

var (
	configPath string
	verbose    bool

	rootCmd = &cobra.Command{
		Use:          "dnsupdater",
		Short:        "Keep a DNS record pointed at this host's public IP address",
		SilenceUsage: true,
		RunE:         runLoop,
	}

	onceCmd = &cobra.Command{
		Use:   "once",
		Short: "Run a single check and update, then exit",
		RunE:  runOnce,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the configuration file (default: search for "+config.AppName+".yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(onceCmd)
	rootCmd.AddCommand(setupCmd)
}

// app is everything needed to start the loop.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	service *dnsupdater.Service
}

func newApp(options ...dnsupdater.ServiceOption) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	log, err := logger.New(&cfg.Log, logger.Verbose(verbose))
	if err != nil {
		return nil, err
	}

	scopes, err := newScopeFunc(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	options = append([]dnsupdater.ServiceOption{dnsupdater.WithLogger(log)}, options...)
	svc, err := dnsupdater.New(cfg.Host, scopes, options...)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, logger: log, service: svc}, nil
}

func runLoop(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return a.service.Run(ctx)
}

func runOnce(cmd *cobra.Command, _ []string) error {
	var updateErr error
	a, err := newApp(dnsupdater.WithObserver(dnsupdater.ObserverFunc(func(e dnsupdater.Event) {
		if e.Kind == dnsupdater.EventUpdateFailed {
			updateErr = e.Err
		}
	})))
	if err != nil {
		return err
	}
	defer a.logger.Sync() //nolint:errcheck

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	outcome := a.service.RunCycle(ctx)
	cmd.Println(outcome)
	if outcome == dnsupdater.OutcomeResolveFailed || outcome == dnsupdater.OutcomeNoAddress {
		return fmt.Errorf("no address could be resolved")
	}
	if updateErr != nil {
		return fmt.Errorf("update failed: %w", updateErr)
	}
	return nil
}
