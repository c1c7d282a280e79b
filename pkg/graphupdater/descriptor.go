package graphupdater

import (
	"strings"

	"github.com/arthur-debert/incr/pkg/types"
)

// IsModuleDescriptor reports whether the last path segment of src is name.
// "a/module-info.java" matches "module-info.java", "a/my-module-info.java"
// doesn't.
func IsModuleDescriptor(src types.NodeSource, name string) bool {
	s := string(src)
	if name == "" || !strings.HasSuffix(s, name) {
		return false
	}
	prefix := s[:len(s)-len(name)]
	return prefix == "" || strings.HasSuffix(prefix, "/")
}
