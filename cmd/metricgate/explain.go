package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"metricgate/internal/app"
	"metricgate/internal/domain"
	"metricgate/internal/gateway"
	"metricgate/internal/sqlgen"
)

func newExplainCmd() *cobra.Command {
	var (
		dir     string
		showSQL bool
	)
	cmd := &cobra.Command{
		Use:   "explain [intent.json | -]",
		Short: "Show the plan and explanation for an intent without running it",
		Long: "Reads a structured intent (from a file, or stdin when the argument is '-' or omitted), " +
			"validates it against the catalog, and prints the query plan, cache key and explanation.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := readPayload(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			reg, err := app.LoadRegistry(dir)
			if err != nil {
				return err
			}

			gen := sqlgen.NewTemplateGenerator(nil, 0)
			logger := slog.New(slog.NewTextHandler(io.Discard, nil))
			svc := gateway.NewService(reg, gen, nil, nil, logger)

			resp, err := svc.Explain(cmd.Context(), payload)
			if err != nil {
				return fmt.Errorf("%s: %w", domain.ErrorKind(err), err)
			}

			out := struct {
				*domain.ExplainResponse
				SQL string `json:"sql,omitempty"`
			}{ExplainResponse: resp}
			if showSQL {
				out.SQL, err = gen.GenerateSQL(cmd.Context(), sqlgen.Project(resp.Plan))
				if err != nil {
					return err
				}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().StringVar(&dir, "catalog-dir", "", "Metric catalog directory (default: embedded catalog)")
	cmd.Flags().BoolVar(&showSQL, "sql", false, "Also render the SQL the template generator would produce")
	return cmd
}

func readPayload(stdin io.Reader, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("read intent: %w", err)
	}
	return data, nil
}
