package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/apispark/apispark/config"
	"github.com/apispark/apispark/internal/poller"
)

// validateCmd validates a config file without polling anything.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate an apispark configuration file without starting any job.

This command parses the YAML, expands environment variables and resolves
every job's repository, token and interval exactly as "run" does. It's
useful for CI/CD pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  apispark validate -c config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", config.DefaultPath, "path to config file")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	jobs, err := config.BuildJobs(cfg)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	fmt.Printf("Config is valid!\n")
	fmt.Printf("  LogScale:     %s\n", cfg.LogScaleURL)
	fmt.Printf("  Repositories: %d\n", len(cfg.Repository))
	fmt.Printf("  Jobs:         %d\n", len(jobs))
	for _, j := range jobs {
		fmt.Printf("    - %s -> %s (%s)\n", j.Name(), j.Repository(), poller.DescribeInterval(j.Interval()))
	}
	return nil
}
