package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/pzverkov/quantum-vault/pkg/selftest"
)

func newSelftestCmd(_ *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "selftest",
		Short: "Run the known-answer tests for every primitive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSelftest(cmd.OutOrStdout(), asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

func runSelftest(w io.Writer, asJSON bool) error {
	res := selftest.Execute()

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(w, "Cryptographic self-test")
		for _, c := range res.Checks {
			line := fmt.Sprintf("  %s %-14s %v", checkMark(c.Passed), c.Name, c.Duration.Round(time.Microsecond))
			if !c.Passed {
				line += "  " + c.Error
			}
			fmt.Fprintln(w, line)
		}
	}

	if !res.Passed {
		return fmt.Errorf("self-test failed: %w", res.Err)
	}
	return nil
}
