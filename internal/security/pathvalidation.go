package security

import (
	"fmt"
	"strings"
)

// ValidateName checks a single path component used as a stored-entity
// directory name. It rejects empty and dot names and anything containing a
// path separator, so a crafted name cannot address files outside its own
// directory.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("name is empty")
	}
	if name == "." || name == ".." {
		return fmt.Errorf("invalid name %q", name)
	}
	if strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("name %q must not contain path separators", name)
	}
	return nil
}
