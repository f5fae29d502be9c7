package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-fbmarketing/pkg/compression"
	"github.com/ajitpratap0/nebula-fbmarketing/pkg/config"
	"github.com/ajitpratap0/nebula-fbmarketing/pkg/connector/core"
	jsondest "github.com/ajitpratap0/nebula-fbmarketing/pkg/connector/destinations/json"
	"github.com/ajitpratap0/nebula-fbmarketing/pkg/connector/registry"
	"github.com/ajitpratap0/nebula-fbmarketing/pkg/errors"
	jsonpool "github.com/ajitpratap0/nebula-fbmarketing/pkg/json"
	"github.com/ajitpratap0/nebula-fbmarketing/pkg/logger"
	"github.com/ajitpratap0/nebula-fbmarketing/pkg/observability"

	// Register connectors
	_ "github.com/ajitpratap0/nebula-fbmarketing/pkg/connector/sources/facebook_marketing"
)

var version = "0.1.0"

// globalFlags are shared by every command
type globalFlags struct {
	logLevel    string
	logFormat   string
	traceFile   string
	metricsAddr string
}

// readFlags configure the read command
type readFlags struct {
	configFile  string
	stateFile   string
	output      string
	stateOutput string
	compression string
}

func main() {
	_ = godotenv.Load() // .env is optional

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	var flags globalFlags
	var shutdown []func(context.Context) error

	root := &cobra.Command{
		Use:   "nebula",
		Short: "Nebula - Facebook Marketing extraction",
		Long: `Nebula extracts ad creatives, ads, ad sets, campaigns and videos from the
Facebook Marketing API as JSON lines, resuming incrementally from saved state.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := logger.Init(logger.Config{Level: flags.logLevel, Encoding: flags.logFormat}); err != nil {
				return err
			}
			if flags.traceFile != "" {
				fn, err := startTracing(flags.traceFile)
				if err != nil {
					return err
				}
				shutdown = append(shutdown, fn)
			}
			if flags.metricsAddr != "" {
				shutdown = append(shutdown, serveMetrics(flags.metricsAddr))
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			for _, fn := range shutdown {
				if err := fn(ctx); err != nil {
					logger.Get().Warn("shutdown failed", zap.Error(err))
				}
			}
			_ = logger.Sync()
			return nil
		},
	}
	root.SetOut(out)

	pf := root.PersistentFlags()
	pf.StringVar(&flags.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	pf.StringVar(&flags.logFormat, "log-format", "json", "Log encoding (json, console)")
	pf.StringVar(&flags.traceFile, "trace", "", "Write OpenTelemetry spans as JSON to this file")
	pf.StringVar(&flags.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Nebula v%s\n", version)
			fmt.Fprintf(w, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(w, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List available connectors",
		Run: func(cmd *cobra.Command, _ []string) {
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, "Available Source Connectors:")
			for _, name := range registry.ListSources() {
				fmt.Fprintf(w, "  - %s\n", name)
			}
			fmt.Fprintln(w, "\nAvailable Destination Connectors:")
			for _, name := range registry.ListDestinations() {
				fmt.Fprintf(w, "  - %s\n", name)
			}
		},
	})

	var discoverConfig string
	discoverCmd := &cobra.Command{
		Use:   "discover",
		Short: "Print the stream catalog as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDiscover(cmd.Context(), discoverConfig, cmd.OutOrStdout())
		},
	}
	discoverCmd.Flags().StringVarP(&discoverConfig, "config", "c", "", "Path to source configuration YAML (required)")
	_ = discoverCmd.MarkFlagRequired("config")
	root.AddCommand(discoverCmd)

	var rf readFlags
	readCmd := &cobra.Command{
		Use:   "read",
		Short: "Extract records as JSON lines",
		Long: `Read every configured stream and write RECORD and STATE messages as JSON lines.

Example:
  nebula read --config fb.yaml --state state.json --state-output state.json --output out.jsonl.zst --compression zstd`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRead(cmd.Context(), rf, cmd.OutOrStdout())
		},
	}
	readCmd.Flags().StringVarP(&rf.configFile, "config", "c", "", "Path to source configuration YAML (required)")
	readCmd.Flags().StringVar(&rf.stateFile, "state", "", "State JSON from a previous run")
	readCmd.Flags().StringVarP(&rf.output, "output", "o", jsondest.StdoutPath, "Output file, - for stdout")
	readCmd.Flags().StringVar(&rf.stateOutput, "state-output", "", "Write the final state JSON to this file")
	readCmd.Flags().StringVar(&rf.compression, "compression", "none", "Output compression (none, gzip, snappy, s2, lz4, zstd)")
	_ = readCmd.MarkFlagRequired("config")
	root.AddCommand(readCmd)

	return root
}

func runDiscover(ctx context.Context, configFile string, out io.Writer) error {
	src, err := openSource(ctx, configFile)
	if err != nil {
		return err
	}
	defer src.Close(ctx)

	catalog, err := src.Discover(ctx)
	if err != nil {
		return err
	}
	data, err := jsonpool.Marshal(catalog)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to encode catalog")
	}
	_, err = fmt.Fprintf(out, "%s\n", data)
	return err
}

func runRead(ctx context.Context, flags readFlags, out io.Writer) error {
	log := logger.Get()
	runID := logger.NewRunID()
	ctx = logger.WithRun(ctx, "cli", runID)

	destCfg, err := destinationConfig(flags)
	if err != nil {
		return err
	}

	state, err := loadState(flags.stateFile)
	if err != nil {
		return err
	}

	src, err := openSource(ctx, flags.configFile)
	if err != nil {
		return err
	}
	defer src.Close(ctx)
	if err := src.SetState(state); err != nil {
		return err
	}

	dest, err := registry.CreateDestination(jsondest.ConnectorName, destCfg)
	if err != nil {
		return err
	}
	if d, ok := dest.(*jsondest.JSONDestination); ok && flags.output == jsondest.StdoutPath {
		d.SetStdout(out)
	}
	if err := dest.Initialize(ctx, destCfg); err != nil {
		return err
	}

	start := time.Now()
	log.Info("starting read", zap.String("run_id", runID), zap.String("config", flags.configFile))

	stream, err := src.Read(ctx)
	if err != nil {
		_ = dest.Close(ctx)
		return err
	}
	writeErr := dest.Write(ctx, stream)
	if err := dest.Close(ctx); err != nil && writeErr == nil {
		writeErr = err
	}
	if writeErr != nil {
		return writeErr
	}

	log.Info("read completed",
		zap.String("run_id", runID),
		zap.Duration("duration", time.Since(start)),
		zap.Any("source", src.Metrics()),
		zap.Any("destination", dest.Metrics()))
	return nil
}

// openSource loads the source configuration and initializes the connector
// named by its type.
func openSource(ctx context.Context, configFile string) (core.Source, error) {
	cfg, err := config.LoadBase(configFile)
	if err != nil {
		return nil, err
	}
	src, err := registry.CreateSource(cfg.Type, cfg)
	if err != nil {
		return nil, err
	}
	if err := src.Initialize(ctx, cfg); err != nil {
		return nil, err
	}
	return src, nil
}

func destinationConfig(flags readFlags) (*config.BaseConfig, error) {
	cfg := config.NewBaseConfig("output", jsondest.ConnectorName)
	cfg.Security.Credentials[jsondest.KeyPath] = flags.output
	if flags.stateOutput != "" {
		cfg.Security.Credentials[jsondest.KeyStatePath] = flags.stateOutput
	}

	alg, err := compression.ParseAlgorithm(flags.compression)
	if err != nil {
		return nil, err
	}
	cfg.Advanced.EnableCompression = alg != compression.None
	cfg.Advanced.CompressionAlgorithm = string(alg)
	if alg != compression.None && flags.output == jsondest.StdoutPath {
		return nil, errors.New(errors.ErrorTypeConfig, "compression requires --output")
	}
	return cfg, nil
}

// loadState reads a state file. A missing file is an empty state so that
// the same path can be passed as --state and --state-output on every run.
func loadState(path string) (core.State, error) {
	state := core.State{}
	if path == "" {
		return state, nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the CLI flag
	if os.IsNotExist(err) {
		logger.Get().Info("state file not found, starting from start_date", zap.String("path", path))
		return state, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read state file")
	}
	if len(data) == 0 {
		return state, nil
	}
	if err := jsonpool.Unmarshal(data, &state); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to parse state file").
			WithDetail("path", path)
	}
	return state, nil
}

func startTracing(path string) (func(context.Context) error, error) {
	f, err := os.Create(path) //nolint:gosec // path comes from the CLI flag
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create trace file")
	}
	shutdown, err := observability.InitTracing(observability.TracingConfig{
		ServiceName:    "nebula-fbmarketing",
		ServiceVersion: version,
		SamplingRate:   1,
		Output:         f,
	})
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return func(ctx context.Context) error {
		err := shutdown(ctx)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		return err
	}, nil
}

func serveMetrics(addr string) func(context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Get().Error("metrics server failed", zap.Error(err))
		}
	}()
	return srv.Shutdown
}
