package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := buildRoot().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// RunFlags holds flags for the run command. Set flags override the config file.
type RunFlags struct {
	ConfigPath  string
	MetricsAddr string
	DSN         string
	ExpKey      string
	MaxEvals    int
}

// TrialsFlags holds flags for the trials command
type TrialsFlags struct {
	DSN    string
	ExpKey string
	Best   bool
}

// buildRoot creates the root command and its subcommands
func buildRoot() *cobra.Command {
	root := &cobra.Command{
		Use:   "hyperopt",
		Short: "Black-box minimization of an objective over a search space",
		Long: `hyperopt proposes parameter sets with a search strategy, evaluates an
objective on each of them and records every trial, optionally in a database
so an experiment can be resumed or inspected later.

Examples:
  hyperopt run --config=experiment.yaml
  hyperopt run --config=experiment.yaml --dsn=sqlite://trials.db --exp-key=demo
  hyperopt trials --dsn=sqlite://trials.db --exp-key=demo --best`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		createRunCommand(&RunFlags{}),
		createTrialsCommand(&TrialsFlags{}),
	)

	return root
}

// createRunCommand creates the run subcommand
func createRunCommand(flags *RunFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run an experiment described by a config file",
		Long: `Run loads an experiment (TOML, YAML or JSON), then minimizes its objective
until max_evals trials are recorded, the strategy is exhausted or the process
is interrupted. A summary with the best trial is printed as YAML.

Any key can be overridden with a HYPEROPT_* environment variable, e.g.
HYPEROPT_MAX_EVALS=50 or HYPEROPT_STORE_DSN=postgres://...`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCommand(cmd, flags)
		},
	}

	cmd.Flags().StringVar(&flags.ConfigPath, "config", "", "path to experiment config file (required)")
	cmd.Flags().StringVar(&flags.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")
	cmd.Flags().StringVar(&flags.DSN, "dsn", "", "trial store DSN (sqlite path, sqlite:// or postgres://)")
	cmd.Flags().StringVar(&flags.ExpKey, "exp-key", "", "experiment key in the trial store")
	cmd.Flags().IntVar(&flags.MaxEvals, "max-evals", 0, "total number of trials")

	if err := cmd.MarkFlagRequired("config"); err != nil {
		panic(err)
	}

	return cmd
}

// createTrialsCommand creates the trials subcommand
func createTrialsCommand(flags *TrialsFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trials",
		Short: "Print the trials of a stored experiment as YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return trialsCommand(cmd, flags)
		},
	}

	cmd.Flags().StringVar(&flags.DSN, "dsn", "", "trial store DSN (required)")
	cmd.Flags().StringVar(&flags.ExpKey, "exp-key", "", "experiment key (required)")
	cmd.Flags().BoolVar(&flags.Best, "best", false, "print only the best trial")

	if err := cmd.MarkFlagRequired("dsn"); err != nil {
		panic(err)
	}
	if err := cmd.MarkFlagRequired("exp-key"); err != nil {
		panic(err)
	}

	return cmd
}
