package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/rfielding/kripke-mdp/check"
	"github.com/rfielding/kripke-mdp/export"
	"github.com/rfielding/kripke-mdp/internal/config"
)

func newRunCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Compute bounds for one model",
		Long: `Run samples a registered model (--model) or a YAML model file (--file) until
the bounds of its initial states are within precision, the trial budget is
spent or the command is interrupted.

Examples:
  mdpcheck run --model retry
  mdpcheck run --model mm1 --param capacity=8 --objective max
  mdpcheck run --file coin.yaml --target heads --dot coin.dot`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pc, err := problemFromFlags(cmd)
			if err != nil {
				return err
			}
			j, err := a.buildJob(pc)
			if err != nil {
				return err
			}
			applySamplerFlags(cmd, j)

			addr, _ := cmd.Flags().GetString("metrics-addr")
			if addr == "" {
				addr = a.cfg.Metrics.Addr
			}
			ms, err := startMetrics(addr, a.logger)
			if err != nil {
				return err
			}
			defer ms.stop()

			out, s, runErr := a.runJob(cmd.Context(), j, ms.registerer())
			if out == nil {
				return runErr
			}
			if runErr != nil {
				a.logger.Warn("run stopped early, reporting partial bounds", slog.Any("error", runErr))
			}

			if path, _ := cmd.Flags().GetString("dot"); path != "" && s != nil {
				if err := writeDiagram(path, func(w io.Writer) error {
					return export.WriteDOT(w, s, diagramOptions(j.problem)...)
				}); err != nil {
					return errors.Join(runErr, err)
				}
			}
			if path, _ := cmd.Flags().GetString("mermaid"); path != "" && s != nil {
				if err := writeDiagram(path, func(w io.Writer) error {
					return export.WriteMermaid(w, s, diagramOptions(j.problem)...)
				}); err != nil {
					return errors.Join(runErr, err)
				}
			}

			if err := a.report(cmd.OutOrStdout(), []*outcome{out}, []*job{j}); err != nil {
				return errors.Join(runErr, err)
			}
			return runErr
		},
	}

	cmd.Flags().String("model", "", "Registered model name (see 'mdpcheck models')")
	cmd.Flags().String("file", "", "YAML model file")
	cmd.Flags().String("objective", "", "max, min or core (default: the model's own)")
	cmd.Flags().String("target", "", "Target state label of a model file")
	cmd.Flags().StringArray("param", nil, "Model parameter as name=value (repeatable)")
	cmd.Flags().String("dot", "", "Write the explored model as Graphviz DOT to this file")
	cmd.Flags().String("mermaid", "", "Write the explored model as a Mermaid diagram to this file")
	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address while running")
	cmd.Flags().Float64("precision", 0, "Override the sampler precision")
	cmd.Flags().Uint64("seed", 0, "Override the random seed")
	cmd.Flags().Int64("max-trials", 0, "Stop after this many trials (0: no limit)")
	cmd.MarkFlagsMutuallyExclusive("model", "file")
	cmd.MarkFlagsOneRequired("model", "file")
	return cmd
}

func problemFromFlags(cmd *cobra.Command) (config.ProblemConfig, error) {
	var pc config.ProblemConfig
	pc.Model, _ = cmd.Flags().GetString("model")
	pc.File, _ = cmd.Flags().GetString("file")
	pc.Target, _ = cmd.Flags().GetString("target")
	if v, _ := cmd.Flags().GetString("objective"); v != "" {
		if err := pc.Objective.UnmarshalText([]byte(v)); err != nil {
			return pc, err
		}
	}
	pairs, _ := cmd.Flags().GetStringArray("param")
	params, err := check.ParseParams(pairs)
	if err != nil {
		return pc, err
	}
	if len(params) > 0 {
		pc.Params = params
	}
	return pc, nil
}

// applySamplerFlags overrides the config with flags the user actually set.
func applySamplerFlags(cmd *cobra.Command, j *job) {
	if cmd.Flags().Changed("precision") {
		j.cfg.Precision, _ = cmd.Flags().GetFloat64("precision")
	}
	if cmd.Flags().Changed("seed") {
		j.cfg.Seed, _ = cmd.Flags().GetUint64("seed")
	}
	if cmd.Flags().Changed("max-trials") {
		j.cfg.MaxTrials, _ = cmd.Flags().GetInt64("max-trials")
	}
}

// report prints outcomes as JSON or as markdown tables.
func (a *app) report(w io.Writer, outs []*outcome, jobs []*job) error {
	if a.json {
		if len(outs) == 1 {
			return a.writeJSON(w, outs[0])
		}
		return a.writeJSON(w, outs)
	}
	for i, out := range outs {
		if i > 0 {
			fmt.Fprintln(w)
		}
		status := "solved"
		if !out.Solved {
			status = "unsolved"
		}
		fmt.Fprintf(w, "## %s (%s, %s)\n\n", out.Problem, out.Objective, status)
		fmt.Fprintln(w, export.BoundsTable(out.Result, jobs[i].problem.Describe))
		fmt.Fprint(w, export.StatsTable(out.Stats))
	}
	return nil
}
