package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Personaz1/openclaw-council/internal/council"
	"github.com/Personaz1/openclaw-council/internal/report"
)

// NewReportCmd renders a saved run document as Markdown.
func NewReportCmd() *cobra.Command {
	var in, out string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render a saved council run as a Markdown report",
		RunE: func(cmd *cobra.Command, args []string) error {
			run, err := council.LoadRun(in)
			if err != nil {
				return err
			}
			if err := writeReport(out, run); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved: %s\n", out)
			return nil
		},
	}

	cmd.Flags().StringVar(&in, "in", "", "Run document produced by `council run`")
	cmd.Flags().StringVar(&out, "out", "council-report.md", "Markdown output path")
	_ = cmd.MarkFlagRequired("in")
	return cmd
}

func writeReport(path string, run *council.Run) error {
	if err := os.WriteFile(path, []byte(report.Render(run)), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
