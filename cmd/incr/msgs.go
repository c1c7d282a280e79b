package incr

import (
	_ "embed"
	"strings"
)

// Short descriptions and flag help
const (
	MsgRootShort    = "An incremental compilation orchestrator"
	MsgBuildShort   = "Build a target, recompiling only what changed"
	MsgPlanShort    = "Show what the next build would compile"
	MsgCleanShort   = "Remove a target's outputs and build data"
	MsgConfigShort  = "Print the effective configuration"
	MsgVersionShort = "Print version information"

	MsgFlagVerbose     = "Increase verbosity (-v INFO, -vv DEBUG, -vvv TRACE)"
	MsgFlagManifest    = "Path to the target manifest"
	MsgFlagFormat      = "Output format: auto, terminal, text or json"
	MsgFlagSet         = "Override a configuration key (key=value), may be repeated"
	MsgFlagRebuild     = "Recompile the whole target"
	MsgFlagMetricsFile = "Write build metrics to this file in the Prometheus text format"

	MsgBuildSummary = "%s %s: %d error(s), %d warning(s)"
	MsgVersionLine  = "incr %s (commit %s, built %s)"
)

// Error messages
const (
	MsgErrNoCommand   = "no command specified"
	MsgErrBadOverride = "invalid --set value %q, expected key=value"
	MsgErrBuildFailed = "build of %s finished with %s"
)

var (
	//go:embed msgs/root-long.txt
	msgRootLongRaw string
	MsgRootLong    = strings.TrimSpace(msgRootLongRaw)

	//go:embed msgs/build-example.txt
	msgBuildExampleRaw string
	MsgBuildExample    = strings.TrimRight(msgBuildExampleRaw, "\n")

	//go:embed msgs/usage-template.txt
	msgUsageTemplateRaw string
	MsgUsageTemplate    = strings.TrimSpace(msgUsageTemplateRaw)
)
