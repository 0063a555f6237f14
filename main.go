package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/vainnor/session-stats/analyzer"
	"github.com/vainnor/session-stats/api"
	"github.com/vainnor/session-stats/config"
	"github.com/vainnor/session-stats/db"
	"github.com/vainnor/session-stats/logger"
	"github.com/vainnor/session-stats/tracing"
	"github.com/vainnor/session-stats/types"
)

const (
	serviceName     = "session-stats"
	shutdownTimeout = 15 * time.Second
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "session-stats",
	Short: "Per-user session duration statistics",
	Long: `session-stats reads user session records from a document store and
reports how many sessions a user had and their mean and longest duration.`,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve session statistics over HTTP",
	RunE:  runServe,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <user_id>",
	Short: "Print session statistics for one user",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyze,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to a YAML config file")
	analyzeCmd.Flags().String("uri", "", "connection target (overrides SESSION_STORE_URI)")

	rootCmd.AddCommand(serveCmd, analyzeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, errs := config.Load(configFile)
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	logger.Init(os.Stderr, cfg.LogLevel)
	return cfg, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.RequireStore(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := db.Open(ctx, cfg.StoreURI, db.Options{ConnectTimeout: cfg.ConnectTimeout})
	if err != nil {
		return fmt.Errorf("error connecting to session store: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			logger.Warn("error closing session store", "error", err)
		}
	}()

	provider, err := tracing.NewProvider(tracing.Config{
		ServiceName:  serviceName,
		Enabled:      cfg.TracingEnabled,
		ExporterType: cfg.TracingExporter,
		OTLPEndpoint: cfg.TracingEndpoint,
		SamplingRate: cfg.TracingSampleRate,
		Insecure:     cfg.TracingInsecure,
	})
	if err != nil {
		return fmt.Errorf("error setting up tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(flushCtx); err != nil {
			logger.Error("error flushing traces", "error", err)
		}
	}()

	metrics := analyzer.NewMetrics()
	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg); err != nil {
		return fmt.Errorf("error registering metrics: %w", err)
	}

	a := analyzer.New(store,
		analyzer.WithQueryTimeout(cfg.QueryTimeout),
		analyzer.WithMetrics(metrics),
		analyzer.WithTracerProvider(provider.TracerProvider()),
	)

	routerCfg := api.RouterConfig{
		Analyzer: a,
		Health:   store,
		Limiter:  api.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		Metrics:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}
	if provider.IsEnabled() {
		routerCfg.TracerProvider = provider.TracerProvider()
	}
	router := api.NewRouter(routerCfg)

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting API server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start API server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	target, _ := cmd.Flags().GetString("uri")
	if target == "" {
		target = cfg.StoreURI
	}
	if target == "" {
		return config.ErrMissingStoreURI
	}

	result := analyzer.Analyze(cmd.Context(), args[0], target,
		analyzer.WithConnectTimeout(cfg.ConnectTimeout),
		analyzer.WithQueryTimeout(cfg.QueryTimeout),
	)

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return err
	}

	if result.Status() == types.StatusFailure {
		return fmt.Errorf("analysis failed: %s", result.Error)
	}
	return nil
}
