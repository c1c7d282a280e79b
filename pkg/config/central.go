package config

import (
	"github.com/arthur-debert/incr/pkg/paths"
)

// Build holds the knobs of the build orchestrator and graph updater
type Build struct {
	// RecompileThreshold is the percentage of changed sources above which
	// the target is recompiled from scratch
	RecompileThreshold float64 `koanf:"recompile_threshold" toml:"recompile_threshold"`
	// ModuleDescriptor is the reserved module descriptor file name
	ModuleDescriptor string `koanf:"module_descriptor" toml:"module_descriptor"`
	// ABISuffixes select the tracked binary dependencies
	ABISuffixes                   []string `koanf:"abi_suffixes" toml:"abi_suffixes"`
	CycleDetection                bool     `koanf:"cycle_detection" toml:"cycle_detection"`
	ProcessConstantsIncrementally bool     `koanf:"process_constants_incrementally" toml:"process_constants_incrementally"`
}

// Storage holds data directory file names and resolver settings
type Storage struct {
	StateFile   string `koanf:"state_file" toml:"state_file"`
	GraphFile   string `koanf:"graph_file" toml:"graph_file"`
	BackupDir   string `koanf:"backup_dir" toml:"backup_dir"`
	TrashDir    string `koanf:"trash_dir" toml:"trash_dir"`
	ScratchFile string `koanf:"scratch_file" toml:"scratch_file"`
	// PlatformArchives are consulted last by the class resolver
	PlatformArchives []string `koanf:"platform_archives" toml:"platform_archives"`
}

// Cache holds in-memory cache sizes
type Cache struct {
	LibraryGraphs int `koanf:"library_graphs" toml:"library_graphs"`
}

// Config is the complete incr configuration
type Config struct {
	Build   Build   `koanf:"build" toml:"build"`
	Storage Storage `koanf:"storage" toml:"storage"`
	Cache   Cache   `koanf:"cache" toml:"cache"`
}

// Default returns the configuration made of the embedded defaults only
func Default() *Config {
	cfg, err := loadDefaults()
	if err != nil {
		// The embedded file is part of the binary; failing to parse it is a
		// programming error.
		panic(err)
	}
	return cfg
}

// Layout converts the storage section into a data directory layout
func (c *Config) Layout() paths.Layout {
	return paths.Layout{
		StateFile:   c.Storage.StateFile,
		GraphFile:   c.Storage.GraphFile,
		BackupDir:   c.Storage.BackupDir,
		TrashDir:    c.Storage.TrashDir,
		ScratchFile: c.Storage.ScratchFile,
	}
}
