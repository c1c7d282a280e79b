package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/arthur-debert/incr/pkg/errors"
	"github.com/arthur-debert/incr/pkg/paths"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override, e.g.
// INCR_BUILD_RECOMPILE_THRESHOLD=50
const EnvPrefix = "INCR_"

// ConfigFileNames are tried, in order, in the user config dir and the base dir
var ConfigFileNames = []string{"incr.toml", ".incr.toml"}

// sections are the top-level keys, used to split env var names
var sections = []string{"build", "storage", "cache"}

// Load builds the effective configuration for a target rooted at baseDir.
// baseDir may be empty. overrides use dotted keys ("build.recompile_threshold").
func Load(baseDir string, overrides map[string]interface{}) (*Config, error) {
	k := koanf.New(".")

	// 1. Embedded defaults
	if err := k.Load(&rawBytesProvider{bytes: defaultConfig}, toml.Parser()); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigParse, "failed to load defaults")
	}

	// 2. User config, then 3. base directory config
	dirs := []string{paths.ConfigDir()}
	if baseDir != "" {
		dirs = append(dirs, baseDir)
	}
	for _, dir := range dirs {
		if err := loadFirstFile(k, dir); err != nil {
			return nil, err
		}
	}

	// 4. Environment
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigLoad, "failed to load environment overrides")
	}

	// 5. Explicit overrides
	if len(overrides) > 0 {
		if err := k.Load(confmap.Provider(overrides, "."), nil); err != nil {
			return nil, errors.Wrap(err, errors.ErrConfigLoad, "failed to load overrides")
		}
	}

	cfg, err := unmarshal(k)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadDefaults() (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(&rawBytesProvider{bytes: defaultConfig}, toml.Parser()); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigParse, "failed to load defaults")
	}
	return unmarshal(k)
}

func loadFirstFile(k *koanf.Koanf, dir string) error {
	for _, name := range ConfigFileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return errors.Wrapf(err, errors.ErrConfigParse, "failed to load config from %s", path)
		}
		return nil
	}
	return nil
}

// envKey maps INCR_BUILD_RECOMPILE_THRESHOLD to build.recompile_threshold.
// Only the section separator becomes a dot; the rest of the key keeps its
// underscores. Unknown sections are dropped.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	for _, section := range sections {
		if strings.HasPrefix(key, section+"_") {
			return section + "." + strings.TrimPrefix(key, section+"_")
		}
	}
	return ""
}

func unmarshal(k *koanf.Koanf) (*Config, error) {
	var cfg Config
	unmarshalConf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	}
	if err := k.UnmarshalWithConf("", &cfg, unmarshalConf); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigParse, "failed to unmarshal configuration")
	}
	return &cfg, nil
}

// Validate checks value ranges
func (c *Config) Validate() error {
	if c.Build.RecompileThreshold < 0 || c.Build.RecompileThreshold > 100 {
		return errors.Newf(errors.ErrConfigValid, "build.recompile_threshold must be within [0, 100], got %v", c.Build.RecompileThreshold)
	}
	if strings.TrimSpace(c.Build.ModuleDescriptor) == "" {
		return errors.New(errors.ErrConfigValid, "build.module_descriptor must not be empty")
	}
	if c.Cache.LibraryGraphs <= 0 {
		return errors.Newf(errors.ErrConfigValid, "cache.library_graphs must be positive, got %d", c.Cache.LibraryGraphs)
	}
	return nil
}
