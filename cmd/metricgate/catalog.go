package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"metricgate/internal/app"
	"metricgate/internal/domain"
	"metricgate/internal/registry"
)

func newCheckCatalogCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "check-catalog",
		Short: "Load and validate the metric catalog",
		Long:  "Loads every metric definition, reports all problems at once, and exits non-zero if any definition is invalid.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			reg, err := app.LoadRegistry(dir)
			if err != nil {
				var loadErr *domain.RegistryLoadError
				if errors.As(err, &loadErr) {
					for _, p := range loadErr.Problems {
						fmt.Fprintf(out, "  - %s\n", p)
					}
					return fmt.Errorf("catalog has %d problem(s)", len(loadErr.Problems))
				}
				return err
			}

			for _, m := range reg.All() {
				marker := ""
				if def, err := registry.DefaultVersion(m.Name); err == nil && def == m.Version {
					marker = " (default)"
				}
				fmt.Fprintf(out, "%-24s %s(%s)%s\n", m.Key(), strings.ToUpper(string(m.Measure.Aggregation)), m.Measure.Expression, marker)
			}
			fmt.Fprintf(out, "ok: %d definition(s)\n", reg.Len())
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "catalog-dir", "", "Metric catalog directory (default: embedded catalog)")
	return cmd
}
