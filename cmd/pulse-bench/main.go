package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "pulse-bench",
		Short: "Stress driver for the pulse reactive runtime",
		Long: `pulse-bench builds synthetic signal graphs and drives them with
concurrent writers, reporting latency, throughput, flush, and GC
statistics.

Workload shape is controlled by a profile (fast, standard, stress)
whose parameters can each be overridden with flags.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		runCmd(),
		profilesCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("pulse-bench %s\n", version)
			fmt.Printf("  commit: %s\n", commit)
			fmt.Printf("  built:  %s\n", date)
			fmt.Printf("  go:     %s\n", runtime.Version())
		},
	}
}

func profilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List available workload profiles",
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range profileNames() {
				p := profiles[name]
				fmt.Printf("%-10s writers=%d depth=%d width=%d duration=%s rps=%.0f\n",
					p.Name, p.Writers, p.Depth, p.Width, p.Duration, p.RPS)
			}
		},
	}
}
