package namespace

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrImportCycle is returned when a scope imports itself, directly or
	// through other scopes.
	ErrImportCycle = errors.New("namespace import cycle")

	// ErrUnknownName is returned for a scope or container name that was
	// never declared.
	ErrUnknownName = errors.New("unknown name")

	ErrNilImport     = errors.New("namespace import is nil")
	ErrNilDefinition = errors.New("container definition is nil")
	ErrInvalidPort   = errors.New("port must be positive")
)

// DuplicateNameError reports a container name declared more than once across
// a namespace and everything it imports.
type DuplicateNameError struct {
	Name   string
	Scopes []string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("container %q is declared more than once (scopes: %s)", e.Name, strings.Join(e.Scopes, ", "))
}

// MissingDefinitionError reports a definition with no registered ports in the
// namespace or any of its imports.
type MissingDefinitionError struct {
	Name  string // empty when the definition is not declared anywhere reachable
	Image string
}

func (e *MissingDefinitionError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("container definition for image %s is not part of this namespace", e.Image)
	}
	return fmt.Sprintf("container %q (%s) has no registered ports, was it started?", e.Name, e.Image)
}

// PortNotRegisteredError reports a container port that was never published.
type PortNotRegisteredError struct {
	Name string
	Port int
}

func (e *PortNotRegisteredError) Error() string {
	return fmt.Sprintf("port %d of container %q is not published", e.Port, e.Name)
}

// ForeignDefinitionError reports ports registered on a namespace that does not
// declare the definition locally.
type ForeignDefinitionError struct {
	Scope string
	Image string
}

func (e *ForeignDefinitionError) Error() string {
	return fmt.Sprintf("container definition for image %s is not declared in namespace %q", e.Image, e.Scope)
}
