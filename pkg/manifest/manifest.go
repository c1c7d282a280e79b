package manifest

import (
	"path/filepath"
	"strings"

	"github.com/arthur-debert/incr/pkg/errors"
	"github.com/arthur-debert/incr/pkg/paths"
	"github.com/arthur-debert/incr/pkg/types"
	"gopkg.in/yaml.v3"
)

// Compiler kinds
const (
	KindExec     = "exec"
	KindResource = "resource"
)

// Compiler declares one runner of the target
type Compiler struct {
	Name       string   `yaml:"name"`
	Kind       string   `yaml:"kind"`
	Extensions []string `yaml:"extensions"`
	// Command is used by exec compilers
	Command []string `yaml:"command"`
	// StripPrefix is used by resource compilers
	StripPrefix  string   `yaml:"strip_prefix"`
	StaleOutputs []string `yaml:"stale_outputs"`
}

// Manifest describes one target
type Manifest struct {
	Target    string   `yaml:"target"`
	BaseDir   string   `yaml:"base_dir"`
	DataDir   string   `yaml:"data_dir"`
	Output    string   `yaml:"output"`
	ABIOutput string   `yaml:"abi_output"`
	Sources   []string `yaml:"sources"`
	Exclude   []string `yaml:"exclude"`
	Deps      []string `yaml:"deps"`
	Args      []string `yaml:"args"`
	Rebuild   bool     `yaml:"rebuild"`

	Compilers []Compiler `yaml:"compilers"`

	// Path is the file the manifest was read from
	Path string `yaml:"-"`
}

// Load reads and validates the manifest at path, resolving its relative
// paths
func Load(fs types.FS, path string) (*Manifest, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrManifestLoad, "failed to resolve %s", path)
	}
	data, err := fs.ReadFile(abs)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrManifestLoad, "failed to read manifest %s", abs)
	}
	return Parse(data, abs)
}

// Parse decodes a manifest. Relative paths are resolved against the
// directory of path.
func Parse(data []byte, path string) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrapf(err, errors.ErrManifestInvalid, "failed to parse manifest %s", path)
	}
	m.Path = path
	if err := m.validate(); err != nil {
		return nil, err
	}
	m.resolve(filepath.Dir(path))
	return &m, nil
}

func (m *Manifest) validate() error {
	invalid := func(format string, args ...interface{}) error {
		return errors.Newf(errors.ErrManifestInvalid, format, args...).WithDetail("manifest", m.Path)
	}
	if strings.TrimSpace(m.Target) == "" {
		return invalid("manifest %s names no target", m.Path)
	}
	if m.Output == "" {
		return invalid("target %s has no output", m.Target)
	}
	if len(m.Compilers) == 0 {
		return invalid("target %s declares no compiler", m.Target)
	}
	names := make(map[string]bool, len(m.Compilers))
	for i, c := range m.Compilers {
		if c.Name == "" {
			return invalid("compiler #%d of %s has no name", i+1, m.Target)
		}
		if names[c.Name] {
			return invalid("compiler %s is declared twice", c.Name)
		}
		names[c.Name] = true
		if len(c.Extensions) == 0 {
			return invalid("compiler %s lists no extensions", c.Name)
		}
		switch c.Kind {
		case KindExec:
			if len(c.Command) == 0 {
				return invalid("exec compiler %s has no command", c.Name)
			}
		case KindResource:
		default:
			return invalid("compiler %s has unknown kind %q", c.Name, c.Kind)
		}
	}
	for _, pattern := range m.Exclude {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return invalid("bad exclude pattern %q", pattern)
		}
	}
	return nil
}

func (m *Manifest) resolve(dir string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, filepath.FromSlash(p))
	}
	if m.BaseDir == "" {
		m.BaseDir = dir
	}
	m.BaseDir = abs(m.BaseDir)
	m.Output = abs(m.Output)
	m.ABIOutput = abs(m.ABIOutput)
	if m.DataDir == "" {
		m.DataDir = paths.DefaultDataDir(m.Target)
	} else {
		m.DataDir = abs(m.DataDir)
	}
	for i, dep := range m.Deps {
		m.Deps[i] = abs(dep)
	}
	for i := range m.Compilers {
		c := &m.Compilers[i]
		// a relative command path is relative to the manifest; bare names
		// are looked up on PATH
		if len(c.Command) > 0 && strings.ContainsRune(c.Command[0], '/') {
			c.Command[0] = abs(c.Command[0])
		}
	}
	if len(m.Sources) == 0 {
		m.Sources = []string{"."}
	}
}
