package main

import (
	"github.com/spf13/cobra"

	"github.com/pzverkov/quantum-vault/internal/config"
	"github.com/pzverkov/quantum-vault/pkg/metrics"
	"github.com/pzverkov/quantum-vault/pkg/version"
)

const serviceName = "quantum-vault"

// app holds the state shared by every subcommand once the root command's
// PersistentPreRunE has loaded the configuration.
type app struct {
	cfg       *config.Config
	logger    *metrics.Logger
	collector *metrics.Collector
	tracer    metrics.Tracer
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   serviceName,
		Short: "Compare ML-KEM-768 and RSA-2048 key exchange",
		Long: `quantum-vault generates key pairs, runs key exchanges and encrypts
messages with both the post-quantum ML-KEM-768 (Kyber) mechanism and the
classical RSA-2048 key transport, and reports how they compare.

Configuration is read from quantum-vault.yaml, QVAULT_* environment
variables and flags, in increasing order of precedence.`,
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	config.AddFlags(cmd.PersistentFlags())

	cmd.AddCommand(
		newServeCmd(a),
		newDemoCmd(a),
		newBenchCmd(a),
		newSelftestCmd(a),
		newConfigCmd(a),
		newVersionCmd(),
	)
	return cmd
}

// init loads the configuration and installs the process-wide logger, tracer
// and collector.
func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}
	a.cfg = cfg

	a.logger = cfg.NewLogger().With(metrics.Fields{"app": serviceName})
	metrics.SetLogger(a.logger)

	a.tracer = newTracer(cfg.Tracing)
	metrics.SetTracer(a.tracer)

	a.collector = metrics.NewCollector(metrics.Labels{"service": serviceName})
	metrics.SetGlobal(a.collector)
	return nil
}

// newTracer prefers OpenTelemetry when the binary was built with -tags otel.
func newTracer(enabled bool) metrics.Tracer {
	switch {
	case !enabled:
		return metrics.NoOpTracer{}
	case metrics.OTelEnabled():
		return metrics.NewOTelTracer(serviceName)
	default:
		return metrics.NewSimpleTracer()
	}
}
