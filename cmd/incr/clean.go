package incr

import (
	"github.com/arthur-debert/incr/pkg/metrics"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newCleanCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "clean",
		Short:   MsgCleanShort,
		GroupID: "core",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := opts.loadTarget()
			if err != nil {
				return err
			}
			b, bc, err := t.prepare(metrics.New(nil), nil)
			if err != nil {
				return err
			}
			if err := b.Clean(bc); err != nil {
				return err
			}
			log.Info().Str("target", bc.Target).Msg("Clean complete")
			return nil
		},
	}
}
