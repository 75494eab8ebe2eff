package namespace

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jakenelson/dockerfixture/internal/container"
)

// PortRef names a container port of a definition, e.g. a parameter a
// post-start callback expects to receive as a host port.
type PortRef struct {
	Definition *container.Definition
	Port       int
}

// NewPortRef validates and returns a reference.
func NewPortRef(def *container.Definition, port int) (PortRef, error) {
	if def == nil {
		return PortRef{}, ErrNilDefinition
	}
	if port <= 0 {
		return PortRef{}, fmt.Errorf("%w: %d", ErrInvalidPort, port)
	}
	return PortRef{Definition: def, Port: port}, nil
}

// ResolvePorts maps refs, in order, to the host ports registered in ns.
func ResolvePorts(ns *Namespace, refs []PortRef) ([]int, error) {
	ports := make([]int, len(refs))
	for i, ref := range refs {
		hostPort, err := ns.LookupHostPort(ref.Definition, ref.Port)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		ports[i] = hostPort
	}
	return ports, nil
}

// ParsePortRef resolves "name:port" against the definitions visible from ns.
func ParsePortRef(ns *Namespace, ref string) (PortRef, error) {
	name, portStr, ok := strings.Cut(ref, ":")
	if !ok || name == "" {
		return PortRef{}, fmt.Errorf("invalid port reference %q, want name:port", ref)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return PortRef{}, fmt.Errorf("invalid port in reference %q: %w", ref, err)
	}
	def, ok := ns.Definition(name)
	if !ok {
		return PortRef{}, fmt.Errorf("%w: container %q in scope %q", ErrUnknownName, name, ns.Scope())
	}
	return NewPortRef(def, port)
}
