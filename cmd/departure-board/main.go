package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"departure-board/internal/config"
	"departure-board/internal/departure"
	"departure-board/internal/logging"
	"departure-board/internal/server"
	"departure-board/internal/shell"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	v := viper.New()
	var cfgFile string

	cmd := &cobra.Command{
		Use:           "departure-board",
		Short:         "Departure board for a single train station",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v, cfgFile)
			if err != nil {
				return err
			}
			if err := run(cmd.Context(), cfg); err != nil {
				logging.Error(cmd.Context(), fmt.Sprintf("departure board stopped: %v", err))
				return err
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfgFile, "config", "", "config file (default ./departure-board.yaml)")
	flags.String("mode", "cli", "Mode to run: cli, server, or both")
	flags.String("port", "8080", "Port for the operations HTTP server")
	flags.String("station", "Kristiansand", "Name of the station")
	flags.Bool("seed", true, "Load the demo timetable at startup")
	flags.String("time", "00:00", "Station clock at startup (HH:MM)")

	_ = v.BindPFlag("mode", flags.Lookup("mode"))
	_ = v.BindPFlag("port", flags.Lookup("port"))
	_ = v.BindPFlag("station", flags.Lookup("station"))
	_ = v.BindPFlag("seed", flags.Lookup("seed"))
	_ = v.BindPFlag("start_time", flags.Lookup("time"))

	return cmd
}

func run(ctx context.Context, cfg config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := logging.Setup(cfg.Telemetry.ServiceName, cfg.Log.Level, cfg.Log.Format, os.Stderr); err != nil {
		return err
	}

	start, err := departure.ParseClock(cfg.StartTime)
	if err != nil {
		return fmt.Errorf("start time: %w", err)
	}

	telemetryProvider, err := departure.NewTelemetryProvider(ctx, departure.TelemetryOptions{
		Enabled:     cfg.Telemetry.Enabled,
		ServiceName: cfg.Telemetry.ServiceName,
		Endpoint:    cfg.Telemetry.Endpoint,
	})
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer shutdownTelemetry(telemetryProvider)

	register, err := departure.NewInstrumentedRegister(telemetryProvider)
	if err != nil {
		return fmt.Errorf("creating register: %w", err)
	}
	if cfg.Seed {
		if err := shell.Seed(ctx, register); err != nil {
			return err
		}
	}
	session := shell.NewSession(cfg.Station, start, register)

	logging.WithFields(ctx, map[string]interface{}{
		"mode":       cfg.Mode,
		"station":    cfg.Station,
		"session_id": session.ID,
		"departures": register.Count(ctx),
	}).Info("departure board starting")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	srvOpts := server.Options{
		Port:        cfg.Port,
		ServiceName: cfg.Telemetry.ServiceName,
		Station:     cfg.Station,
	}

	switch cfg.Mode {
	case "cli":
		return runCLI(ctx, cancel, session, telemetryProvider, sigChan)
	case "server":
		return runServer(ctx, cancel, server.NewServer(srvOpts, register), sigChan)
	case "both":
		return runBoth(ctx, cancel, session, telemetryProvider, server.NewServer(srvOpts, register), sigChan)
	default:
		return fmt.Errorf("invalid mode: %s. Must be cli, server, or both", cfg.Mode)
	}
}

func runCLI(ctx context.Context, cancel context.CancelFunc, session *shell.Session, telemetryProvider *departure.TelemetryProvider, sigChan chan os.Signal) error {
	go func() {
		select {
		case <-sigChan:
			logging.Logger().Info("Shutting down...")
			cancel()
		case <-ctx.Done():
		}
	}()

	shell.NewShell(session, telemetryProvider, os.Stdin, os.Stdout).Run(ctx)
	return nil
}

func runServer(ctx context.Context, cancel context.CancelFunc, srv *server.Server, sigChan chan os.Signal) error {
	go func() {
		select {
		case <-sigChan:
			logging.Logger().Info("Received shutdown signal...")
		case <-ctx.Done():
		}
		shutdownServer(srv)
		cancel()
	}()

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

func runBoth(ctx context.Context, cancel context.CancelFunc, session *shell.Session, telemetryProvider *departure.TelemetryProvider, srv *server.Server, sigChan chan os.Signal) error {
	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.Start()
	}()

	cliDone := make(chan struct{})
	go func() {
		shell.NewShell(session, telemetryProvider, os.Stdin, os.Stdout).Run(ctx)
		close(cliDone)
	}()

	var runErr error
	select {
	case err := <-serverDone:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("server: %w", err)
		}
	case <-cliDone:
		logging.Logger().Info("CLI exited")
	case <-sigChan:
		logging.Logger().Info("Received shutdown signal...")
	case <-ctx.Done():
		logging.Logger().Info("Context cancelled")
	}

	cancel()
	shutdownServer(srv)
	return runErr
}

func shutdownServer(srv *server.Server) {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Logger().WithError(err).Error("Server shutdown error")
	}
}

func shutdownTelemetry(telemetryProvider *departure.TelemetryProvider) {
	logging.Infof(context.Background(), "Shutting down telemetry...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := telemetryProvider.Shutdown(shutdownCtx); err != nil {
		logging.Logger().WithError(err).Error("Error shutting down telemetry")
	}
}
