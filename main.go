// main.go
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

	"github.com/dustin/go-humanize"
	"github.com/phuslu/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"hsa_tracer/internal/config"
	"hsa_tracer/internal/logger"
	"hsa_tracer/internal/simrt"
	"hsa_tracer/internal/tracer/session"
)

var (
	version = "0.1.0"
)

type rootOptions struct {
	configPath string
	outputDir  string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "hsa_tracer",
		Short:         "HSA API tracer runtime core",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to configuration file (optional).")
	root.PersistentFlags().StringVar(&opts.outputDir, "output-dir", "", "Directory for trace files, overrides trace.output_dir.")

	root.AddCommand(newRunCmd(opts), newSimulateCmd(opts), newGenerateConfigCmd())
	return root
}

// loadConfig loads, overrides and validates the configuration, then
// configures logging from it.
func loadConfig(opts *rootOptions) (*config.AppConfig, error) {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if opts.outputDir != "" {
		cfg.Trace.OutputDir = opts.outputDir
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := logger.ConfigureLogging(cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to configure loggers: %w", err)
	}
	return cfg, nil
}

// newSimulatedSession builds a session against the in-process runtime.
func newSimulatedSession(cfg *config.AppConfig) (*session.Manager, *workload, error) {
	rt := simrt.New()
	pool := simrt.NewPool(rt, 0)
	prof := simrt.NewProfiler(true)

	m, err := session.NewManager(cfg.Trace, session.Options{
		Runtime:  rt,
		Pool:     pool,
		Profiler: prof,
	})
	if err != nil {
		return nil, nil, err
	}
	return m, newWorkload(m, rt, pool), nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	var rate time.Duration
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Trace a synthetic workload until interrupted, flushing periodically",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			m, wl, err := newSimulatedSession(cfg)
			if err != nil {
				return err
			}

			log.Info().
				Str("version", version).
				Str("output_dir", cfg.Trace.OutputDir).
				Uint64("max_api_calls", cfg.Trace.MaxAPICalls).
				Dur("flush_interval", cfg.Trace.FlushInterval.Duration).
				Bool("metrics", cfg.Server.MetricsEnabled).
				Msg("Starting HSA tracer")

			ctx, cancel := signalContext()
			defer cancel()
			g, ctx := errgroup.WithContext(ctx)

			g.Go(func() error {
				return m.Run(ctx, cfg.Trace.FlushInterval.Duration)
			})
			g.Go(func() error {
				wl.runUntil(ctx, rate)
				return nil
			})

			if cfg.Server.MetricsEnabled {
				srv := newMetricsServer(cfg.Server, m)
				g.Go(func() error {
					log.Info().Str("address", cfg.Server.ListenAddress).Msg("🌐 Starting HTTP server")
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						return fmt.Errorf("metrics server: %w", err)
					}
					return nil
				})
				g.Go(func() error {
					<-ctx.Done()
					shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
					defer shutdownCancel()
					return srv.Shutdown(shutdownCtx)
				})
			}

			err = g.Wait()
			log.Info().Msg("🛑 Shutting down")
			if cerr := m.Close(); cerr != nil {
				err = errors.Join(err, cerr)
			}
			logSummary(m)
			return err
		},
	}
	cmd.Flags().DurationVar(&rate, "call-interval", 10*time.Millisecond, "Interval between synthetic call bursts.")
	return cmd
}

func newSimulateCmd(opts *rootOptions) *cobra.Command {
	var iterations, threads int
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Trace a fixed synthetic workload and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			m, wl, err := newSimulatedSession(cfg)
			if err != nil {
				return err
			}
			m.Start()

			ctx, cancel := signalContext()
			defer cancel()
			if err := wl.run(ctx, iterations, threads); err != nil {
				return err
			}
			if err := m.Close(); err != nil {
				return fmt.Errorf("final flush: %w", err)
			}
			logSummary(m)
			return nil
		},
	}
	cmd.Flags().IntVarP(&iterations, "iterations", "n", 1000, "Call bursts per thread.")
	cmd.Flags().IntVarP(&threads, "threads", "t", 4, "Concurrent application threads.")
	return cmd
}

func newGenerateConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate-config [path]",
		Short: "Write an example configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "config.example.toml"
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.GenerateExampleConfig(path); err != nil {
				return fmt.Errorf("failed to generate config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Example configuration written to %s\n", path)
			return nil
		},
	}
}

func newMetricsServer(cfg config.ServerConfig, m *session.Manager) *http.Server {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		session.NewCollector(m),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	mux := http.NewServeMux()
	mux.Handle(cfg.MetricsPath, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>
            <head><title>HSA Tracer</title></head>
            <body>
            <h1>HSA Tracer v` + version + ` </h1>
            <p><a href="` + cfg.MetricsPath + `">Metrics</a></p>
            </body>
            </html>`))
	})
	return &http.Server{Addr: cfg.ListenAddress, Handler: mux}
}

func logSummary(m *session.Manager) {
	st := m.Stats()
	var written uint64
	for _, n := range st.FlushedBytes {
		written += n
	}
	log.Info().
		Str("admitted", humanize.Comma(int64(st.Admitted))).
		Str("filtered", humanize.Comma(int64(st.Filtered))).
		Str("capped", humanize.Comma(int64(st.Capped))).
		Str("async_copies", humanize.Comma(int64(st.Copies.Completed))).
		Str("packets", humanize.Comma(int64(st.Packets.Flushed))).
		Str("written", humanize.Bytes(written)).
		Msg("Trace summary")
}
