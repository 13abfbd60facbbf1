package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pzverkov/quantum-vault/pkg/api"
	"github.com/pzverkov/quantum-vault/pkg/metrics"
	"github.com/pzverkov/quantum-vault/pkg/version"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the key exchange API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	opts := api.OptionsFromConfig(a.cfg)
	opts.Logger = a.logger
	opts.Collector = a.collector

	srv := api.NewServer(opts)
	a.logger.Info("starting", metrics.Fields{
		"version":      version.String(),
		"cipher_suite": a.cfg.CipherSuite,
		"rsa_bits":     a.cfg.RSA.Bits,
		"tracing":      a.cfg.Tracing,
	})

	err := srv.ListenAndServe(ctx, a.cfg.ListenAddr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
