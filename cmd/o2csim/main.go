// o2csim - Order-to-cash process KPI simulator.
// Predicts how edits to the standard order-to-cash process change on-time
// delivery, days sales outstanding, order and invoice accuracy and the
// average cost of delivery.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/o2csim/o2csim/pkg/config"
	"github.com/o2csim/o2csim/pkg/engine"
	"github.com/o2csim/o2csim/pkg/telemetry"
	"github.com/o2csim/o2csim/pkg/tui"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

// Global flags
var (
	configFile  string
	artifactURI string
	verbose     bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "o2csim",
	Short: "o2csim - Order-to-cash process KPI simulator",
	Long: `o2csim predicts the KPIs of an edited order-to-cash process and compares
them with the standard baseline.

Run without arguments to launch the interactive scenario builder.`,
	Version:       fmt.Sprintf("%s (%s)", version, commit),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runWizard,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file (default: /etc/o2csim, ~/.o2csim, ./.o2csim.yaml)")
	rootCmd.PersistentFlags().StringVar(&artifactURI, "artifact", "", "Model artifact URI (file path, s3://bucket/key or redis://host/key)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	tui.Version = version
}

// loadConfig reads configuration files and applies command-line overrides.
func loadConfig() (*config.Config, error) {
	m := config.NewManager()
	var err error
	if configFile != "" {
		err = m.LoadFiles(configFile)
		if err == nil && len(m.GetPaths()) == 0 {
			err = fmt.Errorf("config file %s not found", configFile)
		}
	} else {
		err = m.Load()
	}
	if err != nil {
		return nil, err
	}
	cfg := m.Get()
	if artifactURI != "" {
		cfg.Engine.ArtifactURI = artifactURI
	}
	return cfg, nil
}

func newLogger(component string) *log.Logger {
	return log.New(os.Stderr, "["+component+"] ", log.LstdFlags)
}

// quietLogger logs only with --verbose.
func quietLogger(component string) *log.Logger {
	if verbose {
		return newLogger(component)
	}
	return log.New(io.Discard, "", 0)
}

// setup loads configuration, starts tracing when enabled and builds the
// engine. The returned cleanup flushes spans.
func setup(ctx context.Context, logger *log.Logger) (*config.Config, *engine.Engine, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}

	cleanup := func() {}
	if cfg.Telemetry.Enabled {
		otlp := telemetry.DefaultOTLPConfig("o2csim")
		otlp.Endpoint = cfg.Telemetry.Endpoint
		otlp.ServiceVersion = version
		otlp.Environment = cfg.Telemetry.Environment
		otlp.SamplingRatio = cfg.Telemetry.SamplingRatio
		shutdown, err := telemetry.InitOTLP(ctx, otlp)
		if err != nil {
			logger.Printf("tracing disabled: %v", err)
		} else {
			cleanup = func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Printf("trace shutdown: %v", err)
				}
			}
		}
	}

	e := engine.FromConfig(ctx, cfg, logger, engine.WithVerbose(verbose))
	return cfg, e, cleanup, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runWizard(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	res, err := tui.RunWizard(os.Stdin, os.Stdout)
	if err != nil || res == nil {
		return err
	}

	_, e, cleanup, err := setup(ctx, quietLogger("engine"))
	if err != nil {
		return err
	}
	defer cleanup()

	ents, err := entitiesFromFlags()
	if err != nil {
		return err
	}
	out, err := e.Simulate(ctx, requestFor(res.Graph, ents))
	if err != nil {
		return err
	}
	tui.PrintResult(os.Stdout, out)
	return nil
}
