package incr

import (
	"fmt"

	"github.com/arthur-debert/incr/pkg/config"
	"github.com/spf13/cobra"
)

func newConfigCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "config",
		Short:   MsgConfigShort,
		GroupID: "misc",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides, err := opts.overrides()
			if err != nil {
				return err
			}
			baseDir := ""
			if t, err := opts.loadTarget(); err == nil {
				baseDir = t.manifest.BaseDir
			}
			cfg, err := config.Load(baseDir, overrides)
			if err != nil {
				return err
			}
			out, err := config.Render(cfg)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}
}
