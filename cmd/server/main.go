package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/iliamunaev/invoice-emission/internal/app"
	"github.com/iliamunaev/invoice-emission/internal/config"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:           "invoice-server",
		Short:         "Serve the invoice emission GraphQL API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "dotenv file to read before the environment")
	cmd.Flags().Int("port", 0, "listen port (overrides PORT)")

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		v, err := config.NewViper(envFile)
		if err != nil {
			return err
		}
		if err := bindFlags(v, cmd); err != nil {
			return err
		}
		cfg, err := config.Load(v)
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}

		logger := newLogger(cfg.LogLevel, cfg.LogFormat, os.Stderr)
		slog.SetDefault(logger)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return run(ctx, cfg, logger, nil)
	}
	return cmd
}

// bindFlags lets flags set on the command line win over env and file values.
func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	if f := cmd.Flags().Lookup("port"); f != nil && f.Changed {
		if err := v.BindPFlag(config.KeyPort, f); err != nil {
			return fmt.Errorf("bind --port: %w", err)
		}
	}
	return nil
}

func newLogger(level, format string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// run serves until ctx is done, then shuts the server down gracefully.
// If ready is non-nil it receives the bound address once listening.
func run(ctx context.Context, cfg config.Config, logger *slog.Logger, ready chan<- string) error {
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.Close(closeCtx); err != nil {
			logger.Error("close", "err", err)
		}
	}()

	// Write timeout leaves room for a full emission after the handler's own deadline.
	srv := &http.Server{
		Handler:           a.Handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 10*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ln, err := net.Listen("tcp", net.JoinHostPort("", strconv.Itoa(cfg.Port)))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	logger.Info("listening", "addr", ln.Addr().String(), "graphql", "/graphql")
	if ready != nil {
		ready <- ln.Addr().String()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
