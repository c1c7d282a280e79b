// Package config handles configuration management for incr.
// It loads the embedded defaults and layers the user config file, the
// target's base-directory config file, INCR_* environment variables and
// explicit overrides on top, in that order.
package config
