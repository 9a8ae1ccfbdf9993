package engine

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidName  = errors.New("invalid virtual file name")
	ErrFileNotFound = errors.New("virtual file not found")
)

// ValidateName checks that name is a flat file name inside the engine
// workspace.
func ValidateName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("%w: empty", ErrInvalidName)
	case name == "." || name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, name)
	case strings.ContainsRune(name, 0):
		return fmt.Errorf("%w: %q contains NUL", ErrInvalidName, name)
	}
	return nil
}
