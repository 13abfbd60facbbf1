package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pzverkov/quantum-vault/pkg/kex"
	"github.com/pzverkov/quantum-vault/pkg/session"
)

const defaultMessage = "hello quantum world"

func newDemoCmd(a *app) *cobra.Command {
	var (
		message   string
		algorithm string
	)
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run a full exchange with each algorithm and encrypt a message",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			algs, err := parseAlgorithms(algorithm)
			if err != nil {
				return err
			}
			return a.demo(cmd.Context(), cmd.OutOrStdout(), algs, message)
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", defaultMessage, "message to encrypt with each shared secret")
	cmd.Flags().StringVarP(&algorithm, "algorithm", "a", "all", "algorithm to run: kyber, rsa or all")
	return cmd
}

// parseAlgorithms expands "all" to every supported algorithm.
func parseAlgorithms(s string) ([]kex.Algorithm, error) {
	if strings.EqualFold(s, "all") || s == "" {
		return kex.Algorithms, nil
	}
	alg, err := kex.ParseAlgorithm(s)
	if err != nil {
		return nil, err
	}
	return []kex.Algorithm{alg}, nil
}

// algorithmNames joins display names for the banner, e.g.
// "CRYSTALS-Kyber-768 (ML-KEM-768) vs RSA-2048".
func algorithmNames(algs []kex.Algorithm) string {
	names := make([]string, len(algs))
	for i, alg := range algs {
		names[i] = alg.DisplayName()
	}
	return strings.Join(names, " vs ")
}

// newSession builds a session over the configured mechanisms.
func (a *app) newSession() (*session.Session, error) {
	return session.New(
		session.WithRegistry(kex.NewRegistry(kex.NewKyber(nil), kex.NewRSA(nil, a.cfg.RSAOptions()))),
		session.WithCipherSuite(a.cfg.Suite()),
		session.WithLogger(a.logger),
		session.WithCollector(a.collector),
	)
}

func (a *app) demo(ctx context.Context, w io.Writer, algs []kex.Algorithm, message string) error {
	printBanner(w, "Quantum-Vault Key Exchange Demo", algorithmNames(algs))

	sess, err := a.newSession()
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	fmt.Fprintf(w, "Session: %s\n", sess.ID())
	fmt.Fprintf(w, "Cipher:  %s\n\n", sess.Suite())

	for _, alg := range algs {
		if err := demoAlgorithm(ctx, w, sess, alg, message); err != nil {
			return fmt.Errorf("%s: %w", alg, err)
		}
	}

	if len(algs) > 1 {
		printComparison(w, sess.Compare())
	}
	return nil
}

func demoAlgorithm(ctx context.Context, w io.Writer, sess *session.Session, alg kex.Algorithm, message string) error {
	fmt.Fprintln(w, alg.DisplayName())
	fmt.Fprintln(w, strings.Repeat("─", 60))

	keys, exch, err := sess.RunFullExchange(ctx, alg)
	if err != nil {
		return err
	}

	m := exch.Metrics
	fmt.Fprintf(w, "  Public key:    %s\n", formatSize(int64(m.KeySizeBytes)))
	fmt.Fprintf(w, "  Private key:   %s\n", formatSize(int64(m.PrivateKeySizeBytes)))
	fmt.Fprintf(w, "  Ciphertext:    %s\n", formatSize(int64(m.CiphertextSizeBytes)))
	fmt.Fprintf(w, "  Shared secret: %s\n", formatSize(int64(m.SharedSecretBytes)))
	fmt.Fprintf(w, "  Key (hex):     %s\n", abbreviate(keys.PublicKeyHex(), 32))
	fmt.Fprintf(w, "  Secret:        %x\n", exch.SharedSecret)
	fmt.Fprintf(w, "  Key gen:       %.3f ms\n", m.KeyGenTimeMs)
	fmt.Fprintf(w, "  Exchange:      %.3f ms\n", m.ExchangeTimeMs)
	fmt.Fprintf(w, "  Decapsulation: %.3f ms\n", m.DecapsulationTimeMs)
	fmt.Fprintf(w, "  Verified:      %s\n", checkMark(exch.Verified))

	enc, err := sess.EncryptMessage(ctx, alg, message)
	if err != nil {
		return err
	}
	dec, err := sess.DecryptMessage(ctx, alg, enc.Text)
	if err != nil {
		return err
	}
	if dec.Text != message {
		return fmt.Errorf("round trip mismatch: got %q", dec.Text)
	}

	fmt.Fprintf(w, "  Message:       %q\n", message)
	fmt.Fprintf(w, "  Encrypted:     %s\n", abbreviate(enc.Text, 48))
	fmt.Fprintf(w, "  Decrypted:     %q %s\n", dec.Text, checkMark(true))
	fmt.Fprintln(w)
	return nil
}

func printComparison(w io.Writer, cmp session.Comparison) {
	fmt.Fprintln(w, "Comparison")
	fmt.Fprintln(w, strings.Repeat("─", 60))
	fmt.Fprintf(w, "  %-24s %10s %10s %10s %8s\n", "Algorithm", "Public", "Cipher", "KeyGen", "Quantum")
	for _, r := range cmp.Algorithms {
		keyGen := "-"
		if r.Metrics != nil {
			keyGen = fmt.Sprintf("%.2fms", r.Metrics.KeyGenTimeMs)
		}
		fmt.Fprintf(w, "  %-24s %10s %10s %10s %8s\n",
			r.DisplayName,
			formatSize(int64(r.Sizes.PublicKey)),
			formatSize(int64(r.Sizes.Ciphertext)),
			keyGen,
			yesNo(r.QuantumResistant),
		)
	}
	fmt.Fprintln(w)
}

func printBanner(w io.Writer, title, subtitle string) {
	const width = 59
	fmt.Fprintln(w, "╔"+strings.Repeat("═", width)+"╗")
	fmt.Fprintf(w, "║      %-*s║\n", width-6, title)
	fmt.Fprintf(w, "║      %-*s║\n", width-6, subtitle)
	fmt.Fprintln(w, "╚"+strings.Repeat("═", width)+"╝")
	fmt.Fprintln(w)
}

func abbreviate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func checkMark(ok bool) string {
	if ok {
		return "✓"
	}
	return "✗"
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func formatSize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
	)
	switch {
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
