package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/nnnkkk7/snowflake-gateway/pkg/config"
	"github.com/nnnkkk7/snowflake-gateway/pkg/connection"
	"github.com/nnnkkk7/snowflake-gateway/pkg/gateway"
	"github.com/nnnkkk7/snowflake-gateway/pkg/query"
	"github.com/nnnkkk7/snowflake-gateway/server/handlers"
	"github.com/nnnkkk7/snowflake-gateway/server/mcpserver"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type options struct {
	transport string
	addr      string
	driver    string
	logLevel  string
	envFiles  []string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "snowflake-gateway",
		Short:         "Execute SQL on Snowflake through a single managed session",
		Long:          `snowflake-gateway exposes one tool, execute_query, over MCP stdio or HTTP and runs each statement on a lazily established, self-healing Snowflake session.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, opts, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.transport, "transport", config.TransportStdio, "Tool transport: stdio or http")
	flags.StringVar(&opts.addr, "addr", config.DefaultHTTPAddr, "Listen address for the http transport")
	flags.StringVar(&opts.driver, "driver", "", "Backend driver: snowflake, duckdb or postgres (overrides "+config.EnvDriver+")")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level (overrides "+config.EnvLogLevel+")")
	flags.StringSliceVar(&opts.envFiles, "env-file", []string{".env"}, "Dotenv files to load before reading the environment")

	return cmd
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run loads configuration, wires the service and serves the chosen transport
// until ctx is done. Configuration errors return before any connection is
// attempted.
func run(ctx context.Context, opts *options, in io.Reader, out, logOut io.Writer) error {
	if err := config.LoadDotEnv(opts.envFiles...); err != nil {
		return err
	}

	logger, err := newLogger(opts.logLevel, logOut)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Error("Invalid configuration")
		return err
	}
	if opts.driver != "" {
		if cfg.Driver, err = config.ParseDriver(opts.driver); err != nil {
			return err
		}
	}

	svc, err := newService(cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	switch opts.transport {
	case config.TransportStdio:
		return mcpserver.NewServer(svc, logger).Serve(ctx, in, out)
	case config.TransportHTTP:
		return serveHTTP(ctx, opts.addr, handlers.NewRouter(svc, logger), logger)
	default:
		return fmt.Errorf("unknown transport %q (want %s or %s)", opts.transport, config.TransportStdio, config.TransportHTTP)
	}
}

// newService wires manager, executor and statement history for cfg.
func newService(cfg config.ConnectionConfig, logger logrus.FieldLogger) (*gateway.Service, error) {
	dialect, err := connection.NewDialect(cfg.Driver)
	if err != nil {
		return nil, err
	}
	mgr := connection.NewManager(cfg, dialect, logger)

	var execOpts []query.Option
	if cfg.Driver == config.DriverDuckDB {
		execOpts = append(execOpts, query.WithRewriter(query.NewDuckDBRewriter()))
	}
	executor := query.NewExecutor(mgr, logger, execOpts...)

	return gateway.NewService(mgr, executor, query.NewStatementManager(config.DefaultStatementTTL), logger), nil
}

func serveHTTP(ctx context.Context, addr string, handler http.Handler, logger logrus.FieldLogger) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  config.DefaultReadTimeout,
		WriteTimeout: config.DefaultWriteTimeout,
		IdleTimeout:  config.DefaultIdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", addr).Info("Starting HTTP server")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.DefaultShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// newLogger builds the process logger. Logs go to w, never to the stdio
// transport stream.
func newLogger(level string, w io.Writer) (*logrus.Logger, error) {
	if level == "" {
		level = os.Getenv(config.EnvLogLevel)
	}
	if level == "" {
		level = logrus.InfoLevel.String()
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetLevel(lvl)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: true})
	return logger, nil
}
