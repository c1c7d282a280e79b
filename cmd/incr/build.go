package incr

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/arthur-debert/incr/pkg/compiler"
	"github.com/arthur-debert/incr/pkg/diagnostics"
	"github.com/arthur-debert/incr/pkg/errors"
	"github.com/arthur-debert/incr/pkg/metrics"
	"github.com/arthur-debert/incr/pkg/ui"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newBuildCmd(opts *rootOptions) *cobra.Command {
	var (
		rebuild     bool
		metricsFile string
	)

	cmd := &cobra.Command{
		Use:     "build",
		Short:   MsgBuildShort,
		Example: MsgBuildExample,
		GroupID: "core",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := opts.loadTarget()
			if err != nil {
				return err
			}
			format, err := opts.outputFormat(cmd)
			if err != nil {
				return err
			}
			if rebuild {
				t.manifest.Rebuild = true
			}

			printer := ui.NewDiagnosticPrinter(cmd.OutOrStdout(), format)
			reporter := diagnostics.NewReporter(printer.Print)
			reg := prometheus.NewRegistry()
			b, bc, err := t.prepare(metrics.New(reg), reporter)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			code := b.Build(ctx, bc)

			if metricsFile != "" {
				if err := metrics.WriteTextfile(metricsFile, reg); err != nil {
					log.Warn().Err(err).Str("path", metricsFile).Msg("Failed to write metrics")
				}
			}
			if format != ui.FormatJSON {
				fmt.Fprintf(cmd.ErrOrStderr(), MsgBuildSummary+"\n",
					bc.Target, code,
					reporter.Count(diagnostics.Error), reporter.Count(diagnostics.Warning))
			}
			return exitError(bc.Target, code)
		},
	}

	cmd.Flags().BoolVar(&rebuild, "rebuild", false, MsgFlagRebuild)
	cmd.Flags().StringVar(&metricsFile, "metrics-file", "", MsgFlagMetricsFile)

	return cmd
}

// exitError maps a build result to the error main turns into an exit code
func exitError(target string, code compiler.ExitCode) error {
	switch code {
	case compiler.OK:
		return nil
	case compiler.Cancel:
		return &ExitCodeError{Code: ExitCancel, Err: errors.Newf(errors.ErrCanceled, MsgErrBuildFailed, target, code)}
	default:
		return &ExitCodeError{Code: ExitError, Err: errors.Newf(errors.ErrCompile, MsgErrBuildFailed, target, code)}
	}
}
