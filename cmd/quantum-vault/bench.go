package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pzverkov/quantum-vault/pkg/kex"
	"github.com/pzverkov/quantum-vault/pkg/metrics"
)

func newBenchCmd(a *app) *cobra.Command {
	var (
		runs      int
		algorithm string
	)
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Benchmark full key exchanges per algorithm",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if runs <= 0 {
				return fmt.Errorf("--runs must be positive, got %d", runs)
			}
			algs, err := parseAlgorithms(algorithm)
			if err != nil {
				return err
			}
			return a.bench(cmd.Context(), cmd.OutOrStdout(), algs, runs)
		},
	}
	cmd.Flags().IntVarP(&runs, "runs", "n", 10, "full exchanges per algorithm")
	cmd.Flags().StringVarP(&algorithm, "algorithm", "a", "all", "algorithm to benchmark: kyber, rsa or all")
	return cmd
}

// benchResult holds per-phase latency histograms in milliseconds.
type benchResult struct {
	alg      kex.Algorithm
	keyGen   *metrics.Histogram
	exchange *metrics.Histogram
	decap    *metrics.Histogram
	failed   int
	total    time.Duration
}

func (a *app) bench(ctx context.Context, w io.Writer, algs []kex.Algorithm, runs int) error {
	printBanner(w, "Quantum-Vault Benchmark", fmt.Sprintf("%d full exchanges per algorithm", runs))

	results := make(map[kex.Algorithm]*benchResult, len(algs))
	for _, alg := range algs {
		res, err := a.benchAlgorithm(ctx, w, alg, runs)
		if err != nil {
			return err
		}
		results[alg] = res
		printBenchResults(w, res, runs)
	}

	kyber, rsa := results[kex.Kyber], results[kex.RSA]
	if kyber != nil && rsa != nil && kyber.keyGen.Mean() > 0 {
		fmt.Fprintln(w, "Summary")
		fmt.Fprintln(w, strings.Repeat("─", 60))
		fmt.Fprintf(w, "  Key generation: %s is %.1fx faster than %s\n",
			kex.Kyber.DisplayName(), rsa.keyGen.Mean()/kyber.keyGen.Mean(), kex.RSA.DisplayName())
		if kyber.decap.Mean() > 0 {
			fmt.Fprintf(w, "  Decapsulation:  %s is %.1fx faster than %s\n",
				kex.Kyber.DisplayName(), rsa.decap.Mean()/kyber.decap.Mean(), kex.RSA.DisplayName())
		}
	}
	return nil
}

func (a *app) benchAlgorithm(ctx context.Context, w io.Writer, alg kex.Algorithm, runs int) (*benchResult, error) {
	fmt.Fprintf(w, "Benchmarking %s (%d iterations)\n", alg.DisplayName(), runs)
	fmt.Fprintln(w, strings.Repeat("─", 60))

	sess, err := a.newSession()
	if err != nil {
		return nil, err
	}
	defer func() { _ = sess.Close() }()

	res := &benchResult{
		alg:      alg,
		keyGen:   metrics.NewHistogram(metrics.KeyGenLatencyBuckets),
		exchange: metrics.NewHistogram(metrics.ExchangeLatencyBuckets),
		decap:    metrics.NewHistogram(metrics.ExchangeLatencyBuckets),
	}

	step := runs / 10
	if step == 0 {
		step = 1
	}

	start := time.Now()
	for i := 0; i < runs; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		_, exch, err := sess.RunFullExchange(ctx, alg)
		if err != nil {
			res.failed++
			a.logger.Warn("exchange failed", metrics.Fields{"algorithm": alg.String(), "error": err.Error()})
		} else {
			res.keyGen.Observe(exch.Metrics.KeyGenTimeMs)
			res.exchange.Observe(exch.Metrics.ExchangeTimeMs)
			res.decap.Observe(exch.Metrics.DecapsulationTimeMs)
		}
		if (i+1)%step == 0 || i == runs-1 {
			fmt.Fprintf(w, "Progress: %d/%d (%.0f%%)\r", i+1, runs, float64(i+1)/float64(runs)*100)
		}
	}
	fmt.Fprintln(w)
	res.total = time.Since(start)

	if res.failed == runs {
		return nil, fmt.Errorf("all %s exchanges failed", alg)
	}
	return res, nil
}

func printBenchResults(w io.Writer, res *benchResult, runs int) {
	ok := runs - res.failed

	fmt.Fprintln(w, "\nResults:")
	fmt.Fprintf(w, "  Total exchanges: %d\n", runs)
	fmt.Fprintf(w, "  Successful: %d\n", ok)
	fmt.Fprintf(w, "  Failed: %d\n", res.failed)
	fmt.Fprintf(w, "  Total time: %v\n", res.total.Round(time.Microsecond))
	fmt.Fprintf(w, "  Throughput: %.2f exchanges/sec\n", float64(ok)/res.total.Seconds())
	fmt.Fprintln(w)

	fmt.Fprintf(w, "  %-14s %10s %10s %10s %10s %10s\n", "Phase (ms)", "Mean", "Min", "p50", "p95", "Max")
	printPhase(w, "Key gen", res.keyGen.Summary())
	printPhase(w, "Exchange", res.exchange.Summary())
	printPhase(w, "Decapsulation", res.decap.Summary())
	fmt.Fprintln(w)

	printExchangeRating(w, res.keyGen.Mean()+res.exchange.Mean())
	fmt.Fprintln(w)
}

func printPhase(w io.Writer, name string, s metrics.HistogramSummary) {
	fmt.Fprintf(w, "  %-14s %10.3f %10.3f %10.3f %10.3f %10.3f\n",
		name, s.Mean, s.Min, s.Percentiles[0.5], s.Percentiles[0.95], s.Max)
}

// printExchangeRating grades the mean time from key generation to a
// verified shared secret.
func printExchangeRating(w io.Writer, avgMs float64) {
	switch {
	case avgMs < 1:
		fmt.Fprintln(w, "✓ Performance: Excellent (< 1ms avg)")
	case avgMs < 10:
		fmt.Fprintln(w, "✓ Performance: Good (< 10ms avg)")
	case avgMs < 250:
		fmt.Fprintln(w, "⚠ Performance: Acceptable (< 250ms avg)")
	default:
		fmt.Fprintln(w, "⚠ Performance: Slow (> 250ms avg)")
	}
}
