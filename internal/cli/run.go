package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Personaz1/openclaw-council/internal/council"
	"github.com/Personaz1/openclaw-council/internal/llm/configbuilder"
	"github.com/Personaz1/openclaw-council/internal/logging"
)

type runFlags struct {
	query     string
	out       string
	report    string
	remote    string
	transport string
}

// NewRunCmd runs the council for one query, locally or against a daemon, and saves the run document.
func NewRunCmd(opts *Options) *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the council on a query and save the run document",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(flags.query) == "" {
				return fmt.Errorf("query cannot be empty")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var (
				run *council.Run
				err error
			)
			if flags.remote != "" {
				run, err = runRemote(ctx, cmd, flags)
			} else {
				run, err = runLocal(ctx, cmd, opts, flags)
			}
			if err != nil {
				return err
			}

			if err := council.SaveRun(flags.out, run); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved: %s\n", flags.out)

			if flags.report != "" {
				if err := writeReport(flags.report, run); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved: %s\n", flags.report)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&flags.query, "query", "", "Question to put to the council")
	cmd.Flags().StringVar(&flags.out, "out", "council-run.json", "Run document output path")
	cmd.Flags().StringVar(&flags.report, "report", "", "Also render the Markdown report to this path")
	cmd.Flags().StringVar(&flags.remote, "remote", "", "Daemon address; runs locally when empty")
	cmd.Flags().StringVar(&flags.transport, "transport", "connect", "Daemon transport: connect or ndjson")
	_ = cmd.MarkFlagRequired("query")
	return cmd
}

func runLocal(ctx context.Context, cmd *cobra.Command, opts *Options, flags *runFlags) (*council.Run, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	defer logger.Sync() //nolint:errcheck // best-effort

	factory, err := configbuilder.NewFactory(cfg.Runtime.CAFile)
	if err != nil {
		return nil, fmt.Errorf("build provider factory: %w", err)
	}

	coord := council.New(cfg, factory, logger, nil)
	coord.Observer = func(stage council.Stage, results []council.RoleResult) {
		printStage(cmd.ErrOrStderr(), string(stage), results)
	}

	run, err := coord.Run(ctx, flags.query)
	if err != nil {
		return nil, err
	}
	if n := run.Degraded(); n > 0 {
		logger.Warn("council run degraded", zap.Int("failed_results", n))
	}
	return run, nil
}

func printStage(w io.Writer, stage string, results []council.RoleResult) {
	failed := 0
	for _, r := range results {
		if r.Failed() {
			failed++
		}
	}
	fmt.Fprintf(w, "[%s] %d result(s), %d failed\n", stage, len(results), failed)
}
