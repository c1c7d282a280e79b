package incr

import (
	"github.com/arthur-debert/incr/pkg/diagnostics"
	"github.com/arthur-debert/incr/pkg/metrics"
	"github.com/arthur-debert/incr/pkg/ui"
	"github.com/spf13/cobra"
)

func newPlanCmd(opts *rootOptions) *cobra.Command {
	var rebuild bool

	cmd := &cobra.Command{
		Use:     "plan",
		Short:   MsgPlanShort,
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

			printer := ui.NewDiagnosticPrinter(cmd.ErrOrStderr(), ui.FormatText)
			b, bc, err := t.prepare(metrics.New(nil), diagnostics.NewReporter(printer.Print))
			if err != nil {
				return err
			}
			plan, err := b.Plan(cmd.Context(), bc)
			if err != nil {
				return err
			}
			return ui.RenderPlan(cmd.OutOrStdout(), plan, format)
		},
	}

	cmd.Flags().BoolVar(&rebuild, "rebuild", false, MsgFlagRebuild)

	return cmd
}
