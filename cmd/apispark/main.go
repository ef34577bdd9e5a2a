// Package main is the entry point for the apispark CLI.
//
// apispark can be embedded as a library or run as a standalone binary
// driven by a YAML configuration file. This CLI provides the binary.
//
// Usage:
//
//	apispark run -c config.yaml      # Poll APIs and forward to LogScale
//	apispark validate -c config.yaml # Validate configuration
//	apispark version                 # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "apispark",
	Short: "Poll JSON APIs and ship the responses to LogScale",
	Long: `apispark polls HTTP APIs on fixed intervals and forwards each JSON
response as a structured event to a LogScale repository.

Quick start:
  1. Create a config file (config.yaml)
  2. Run: apispark run -c config.yaml

Example config:
  logscale_url: https://cloud.community.humio.com
  repository:
    main:
      token: ${MAIN_INGEST_TOKEN}
  api:
    ping:
      url: https://api.example.com/status
      to_repository: main
      interval:
        min: 1`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this apispark binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("apispark %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
