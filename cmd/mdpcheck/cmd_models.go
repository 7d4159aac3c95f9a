package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rfielding/kripke-mdp/check"
)

type modelInfo struct {
	Name        string          `json:"name"`
	Objective   check.Objective `json:"objective"`
	Target      string          `json:"target"`
	Description string          `json:"description"`
	Params      []check.Param   `json:"params"`
}

func newModelsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "models [name]",
		Short: "List the built-in models, or describe one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			specs := a.registry.All()
			if len(args) == 1 {
				spec, err := a.registry.Lookup(args[0])
				if err != nil {
					return err
				}
				specs = []check.Spec{spec}
			}

			infos := make([]modelInfo, 0, len(specs))
			for _, s := range specs {
				infos = append(infos, modelInfo{
					Name:        s.Name(),
					Objective:   s.Objective(),
					Target:      s.Target(),
					Description: s.Description(),
					Params:      s.Params(),
				})
			}
			if a.json {
				return a.writeJSON(cmd.OutOrStdout(), infos)
			}

			w := cmd.OutOrStdout()
			if len(args) == 0 {
				for _, m := range infos {
					fmt.Fprintf(w, "%-8s %-4s %s\n", m.Name, m.Objective, firstLine(m.Description))
				}
				return nil
			}
			m := infos[0]
			fmt.Fprintf(w, "%s: %s probability of reaching %s\n\n%s\n\n", m.Name, m.Objective, m.Target, m.Description)
			fmt.Fprintln(w, "Parameters:")
			for _, p := range m.Params {
				fmt.Fprintf(w, "  %-14s %s (default %d, range %d..%d)\n", p.Name, p.Description, p.Default, p.Min, p.Max)
			}
			return nil
		},
	}
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
