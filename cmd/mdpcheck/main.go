package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rfielding/kripke-mdp/internal/config"
	"github.com/rfielding/kripke-mdp/internal/logging"
	"github.com/rfielding/kripke-mdp/models"
)

var version = "0.1.0-dev"

// app is the state shared by all subcommands, set up before each run.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *models.Registry
	json     bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{registry: models.Default()}

	rootCmd := &cobra.Command{
		Use:   "mdpcheck",
		Short: "Bounded reachability for large Markov decision processes",
		Long: `mdpcheck computes lower and upper bounds on reachability probabilities of
Markov decision processes by sampling trajectories through a model that is
explored on demand. End components are collapsed as they are found, so the
bounds converge even when the scheduler can loop forever.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.mdpcheck/config.yaml if present)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: info, debug or trace")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: text or json")
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")

	rootCmd.AddCommand(
		newVersionCmd(a),
		newRunCmd(a),
		newBatchCmd(a),
		newModelsCmd(a),
	)
	return rootCmd
}

// setup loads the config and builds the logger. Flags win over the config
// file and the environment.
func (a *app) setup(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.Logging.Level = v
	}
	if v, _ := cmd.Flags().GetString("log-format"); v != "" {
		cfg.Logging.Format = v
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	a.cfg = cfg
	a.json, _ = cmd.Flags().GetBool("json")
	a.logger = logging.New(cfg.Logging.Level, cfg.Logging.Format, cmd.ErrOrStderr())
	return nil
}

func (a *app) writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.json {
				return a.writeJSON(cmd.OutOrStdout(), map[string]string{"version": version})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "mdpcheck version %s\n", version)
			return nil
		},
	}
}
