package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/techop/httpmetrics/pkg/config"
	"github.com/techop/httpmetrics/pkg/logging"
	"github.com/techop/httpmetrics/pkg/metricsjson"
	"github.com/techop/httpmetrics/pkg/server"
	"github.com/techop/httpmetrics/pkg/vitals"
)

var serveFlags struct {
	bind        string
	port        int
	fullSamples bool
	prometheus  bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve metrics and goroutine dumps over HTTP (foreground)",
	Long: `Start the metrics endpoint and serve until SIGINT or SIGTERM.

Routes:
  /          index page
  /metrics   JSON metrics (?pretty=true, ?full-samples=true, ?filter=<glob>)
  /threads   goroutine dump`,
	Example: `  # Serve on the default port 8080
  httpmetrics serve

  # Serve on loopback only, with Prometheus client metrics included
  httpmetrics serve --bind 127.0.0.1 --port 9404 --prometheus`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		flags := cmd.Flags()
		if flags.Changed("bind") {
			cfg.Server.BindAddress = serveFlags.bind
		}
		if flags.Changed("port") {
			cfg.Server.Port = serveFlags.port
		}
		if flags.Changed("full-samples") {
			cfg.Metrics.FullSamples = serveFlags.fullSamples
		}
		if flags.Changed("prometheus") {
			cfg.Metrics.Prometheus = serveFlags.prometheus
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		log, closeLog, err := newLogger(cfg.Logging, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer func() { _ = closeLog() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runServe(ctx, cfg, log, nil)
	},
}

// runServe serves until ctx is done. ready, when non-nil, receives the
// running server once it is bound.
func runServe(ctx context.Context, cfg *config.Config, log *slog.Logger, ready func(*server.Server)) error {
	serializer := metricsjson.New(
		metricsjson.WithVitals(vitals.NewRuntimeProvider(vitals.WithLogger(logging.WithComponent(log, "vitals")))),
		metricsjson.WithExclude(cfg.Metrics.Exclude...),
		metricsjson.WithLogger(logging.WithComponent(log, "serializer")),
	)

	srv := server.New(cfg.Server.BindAddress, cfg.Server.Port, registryFor(cfg.Metrics),
		server.WithLogger(log),
		server.WithSerializer(serializer),
		server.WithFullSamples(cfg.Metrics.FullSamples),
		server.WithReadTimeout(cfg.Server.ReadTimeout),
		server.WithWriteTimeout(cfg.Server.WriteTimeout),
		server.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		server.WithThreadDumpLimit(cfg.Server.ThreadDumpRate, cfg.Server.ThreadDumpBurst),
		server.WithMaxConnections(cfg.Server.MaxConnections),
	)

	srv.Start()
	if !srv.Running() {
		return fmt.Errorf("metrics server did not start: %w", srv.Err())
	}
	if ready != nil {
		ready(srv)
	}

	<-ctx.Done()
	log.Info("shutting down metrics server")
	srv.Stop()
	return nil
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.bind, "bind", "", "Address to bind (default all interfaces)")
	serveCmd.Flags().IntVarP(&serveFlags.port, "port", "p", config.DefaultPort, "Port to listen on (0 picks a free port)")
	serveCmd.Flags().BoolVar(&serveFlags.fullSamples, "full-samples", false, "Include raw samples in /metrics by default")
	serveCmd.Flags().BoolVar(&serveFlags.prometheus, "prometheus", false, "Also report the default Prometheus registry")
	rootCmd.AddCommand(serveCmd)
}
