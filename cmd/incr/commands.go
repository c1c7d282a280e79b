package incr

import (
	"os"
	"strings"

	"github.com/arthur-debert/incr/internal/version"
	"github.com/arthur-debert/incr/pkg/builder"
	"github.com/arthur-debert/incr/pkg/config"
	"github.com/arthur-debert/incr/pkg/diagnostics"
	"github.com/arthur-debert/incr/pkg/errors"
	"github.com/arthur-debert/incr/pkg/filesystem"
	"github.com/arthur-debert/incr/pkg/logging"
	"github.com/arthur-debert/incr/pkg/manifest"
	"github.com/arthur-debert/incr/pkg/metrics"
	"github.com/arthur-debert/incr/pkg/types"
	"github.com/arthur-debert/incr/pkg/ui"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// DefaultManifest is the manifest read when -m is not given
const DefaultManifest = "incr.yaml"

// Process exit codes for the build results
const (
	ExitError  = 1
	ExitCancel = 130
)

// ExitCodeError carries the process exit code of a failed command
type ExitCodeError struct {
	Code int
	Err  error
}

func (e *ExitCodeError) Error() string { return e.Err.Error() }

func (e *ExitCodeError) Unwrap() error { return e.Err }

// rootOptions are the flags shared by every command
type rootOptions struct {
	verbosity    int
	manifestPath string
	format       string
	sets         []string
}

// NewRootCmd creates and returns the root command
func NewRootCmd() *cobra.Command {
	initTemplateFormatting()

	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:     "incr",
		Short:   MsgRootShort,
		Long:    MsgRootLong,
		Version: version.Version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.SetupLogger(opts.verbosity)
			log.Debug().Str("command", cmd.Name()).Msg("Command started")
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Help()
			return errors.New(errors.ErrInvalidInput, MsgErrNoCommand)
		},
		SilenceUsage:      true,
		SilenceErrors:     true,
		DisableAutoGenTag: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.CountVarP(&opts.verbosity, "verbose", "v", MsgFlagVerbose)
	flags.StringVarP(&opts.manifestPath, "manifest", "m", DefaultManifest, MsgFlagManifest)
	flags.StringVar(&opts.format, "format", ui.FormatAuto.String(), MsgFlagFormat)
	flags.StringArrayVar(&opts.sets, "set", nil, MsgFlagSet)

	rootCmd.AddGroup(&cobra.Group{
		ID:    "core",
		Title: "COMMANDS:",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "misc",
		Title: "MISC:",
	})
	rootCmd.SetUsageTemplate(MsgUsageTemplate)

	rootCmd.AddCommand(newBuildCmd(opts))
	rootCmd.AddCommand(newPlanCmd(opts))
	rootCmd.AddCommand(newCleanCmd(opts))
	rootCmd.AddCommand(newConfigCmd(opts))
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.SetHelpCommandGroupID("misc")
	rootCmd.SetCompletionCommandGroupID("misc")

	return rootCmd
}

// overrides turns the --set flags into dotted configuration keys
func (o *rootOptions) overrides() (map[string]interface{}, error) {
	if len(o.sets) == 0 {
		return nil, nil
	}
	result := make(map[string]interface{}, len(o.sets))
	for _, set := range o.sets {
		key, value, ok := strings.Cut(set, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, errors.Newf(errors.ErrInvalidInput, MsgErrBadOverride, set)
		}
		result[key] = value
	}
	return result, nil
}

// outputFormat parses --format, resolving auto against the command's output
func (o *rootOptions) outputFormat(cmd *cobra.Command) (ui.Format, error) {
	format, err := ui.ParseFormat(o.format)
	if err != nil {
		return format, err
	}
	if file, ok := cmd.OutOrStdout().(*os.File); ok {
		return ui.Resolve(format, file), nil
	}
	if format == ui.FormatAuto {
		return ui.FormatText, nil
	}
	return format, nil
}

// target is a loaded manifest with its effective configuration
type target struct {
	manifest *manifest.Manifest
	cfg      *config.Config
	fs       types.FS
}

// loadTarget reads the manifest and layers the configuration for its base
// directory
func (o *rootOptions) loadTarget() (*target, error) {
	fs := filesystem.NewOS()
	m, err := manifest.Load(fs, o.manifestPath)
	if err != nil {
		return nil, err
	}
	overrides, err := o.overrides()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(m.BaseDir, overrides)
	if err != nil {
		return nil, err
	}
	config.Initialize(cfg)
	log.Debug().
		Str("manifest", m.Path).
		Str("target", m.Target).
		Int("compilers", len(m.Compilers)).
		Msg("Target loaded")
	return &target{manifest: m, cfg: cfg, fs: fs}, nil
}

// prepare creates the builder and the build context of the target
func (t *target) prepare(m *metrics.Metrics, sink diagnostics.Sink) (*builder.Builder, *builder.BuildContext, error) {
	registry := t.manifest.Registry(t.fs)
	b := builder.New(builder.Options{
		Config:   t.cfg,
		Registry: registry,
		FS:       t.fs,
		Metrics:  m,
	})
	bc, err := t.manifest.Context(t.fs, registry, sink, nil)
	if err != nil {
		return nil, nil, err
	}
	return b, bc, nil
}
