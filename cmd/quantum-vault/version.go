package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	pkgversion "github.com/pzverkov/quantum-vault/pkg/version"
)

// buildInfo extends the package version with the ldflags build variables.
type buildInfo struct {
	pkgversion.Info `yaml:",inline"`
	BuildTime       string `json:"build_time" yaml:"build_time"`
}

func getBuildInfo() buildInfo {
	info := pkgversion.Get()
	if gitCommit != "" {
		info.Commit = gitCommit
	}
	return buildInfo{Info: info, BuildTime: buildTime}
}

func newVersionCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		// Skips configuration loading in the root command.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printVersion(cmd.OutOrStdout(), output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text, json or yaml")
	return cmd
}

func printVersion(w io.Writer, output string) error {
	info := getBuildInfo()
	switch output {
	case "text":
		fmt.Fprintf(w, "%s %s\n", info.Name, info.Version)
		fmt.Fprintf(w, "  Commit:     %s\n", info.Commit)
		fmt.Fprintf(w, "  Built:      %s\n", info.BuildTime)
		fmt.Fprintf(w, "  Go version: %s\n", info.GoVersion)
		fmt.Fprintf(w, "  Platform:   %s\n", info.Platform)
		return nil
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	case "yaml":
		out, err := yaml.Marshal(info)
		if err != nil {
			return err
		}
		_, err = w.Write(out)
		return err
	default:
		return fmt.Errorf("unknown output format %q (use text, json or yaml)", output)
	}
}
