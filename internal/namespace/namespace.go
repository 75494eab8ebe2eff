// Package namespace resolves named container definitions, possibly shared
// between scopes through imports, to the host ports they were published on.
package namespace

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/jakenelson/dockerfixture/internal/container"
)

// Namespace maps names to container definitions for one scope. Imported
// namespaces form a DAG; no name may appear twice in the whole closure.
//
// Definitions are fixed at construction. Published ports are registered once
// per local definition after its container starts; lookups after that are
// pure reads.
type Namespace struct {
	scope   string
	defs    map[string]*container.Definition
	names   map[*container.Definition]string
	imports []*Namespace

	mu    sync.RWMutex
	ports map[*container.Definition]map[int]int
}

// New builds a namespace for scope from its local definitions and the
// already built namespaces it imports, in declaration order. Name collisions
// anywhere in the import closure fail here rather than at lookup time.
func New(scope string, defs map[string]*container.Definition, imports ...*Namespace) (*Namespace, error) {
	n := &Namespace{
		scope:   scope,
		defs:    make(map[string]*container.Definition, len(defs)),
		names:   make(map[*container.Definition]string, len(defs)),
		imports: slices.Clone(imports),
		ports:   make(map[*container.Definition]map[int]int),
	}
	for name, def := range defs {
		if def == nil {
			return nil, fmt.Errorf("%w: %q in scope %q", ErrNilDefinition, name, scope)
		}
		n.defs[name] = def
		n.names[def] = name
	}
	for _, imp := range imports {
		if imp == nil {
			return nil, fmt.Errorf("%w in scope %q", ErrNilImport, scope)
		}
	}
	if err := n.checkDuplicates(); err != nil {
		return nil, err
	}
	return n, nil
}

func (n *Namespace) checkDuplicates() error {
	owners := make(map[string]*Namespace)
	for _, ns := range n.Closure() {
		for _, name := range ns.Names() {
			if prev, ok := owners[name]; ok && prev != ns {
				return &DuplicateNameError{Name: name, Scopes: []string{prev.scope, ns.scope}}
			}
			owners[name] = ns
		}
	}
	return nil
}

// Closure returns n and every namespace reachable through imports, depth
// first in declaration order, each exactly once.
func (n *Namespace) Closure() []*Namespace {
	var order []*Namespace
	seen := make(map[*Namespace]bool)
	stack := []*Namespace{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[cur] {
			continue
		}
		seen[cur] = true
		order = append(order, cur)
		for i := len(cur.imports) - 1; i >= 0; i-- {
			stack = append(stack, cur.imports[i])
		}
	}
	return order
}

// Scope returns the scope name given at construction.
func (n *Namespace) Scope() string { return n.scope }

// Imports returns the imported namespaces in declaration order.
func (n *Namespace) Imports() []*Namespace { return slices.Clone(n.imports) }

// Size counts the local definitions plus the Size of every import. A
// namespace reached through two imports is counted once per path.
func (n *Namespace) Size() int {
	size := len(n.defs)
	for _, imp := range n.imports {
		size += imp.Size()
	}
	return size
}

// Definition finds name locally, then in the imports in declaration order.
func (n *Namespace) Definition(name string) (*container.Definition, bool) {
	for _, ns := range n.Closure() {
		if def, ok := ns.defs[name]; ok {
			return def, true
		}
	}
	return nil, false
}

// Names returns the local definition names, sorted.
func (n *Namespace) Names() []string {
	return slices.Sorted(maps.Keys(n.defs))
}

// Definitions returns the local definitions ordered by name.
func (n *Namespace) Definitions() []*container.Definition {
	names := n.Names()
	defs := make([]*container.Definition, len(names))
	for i, name := range names {
		defs[i] = n.defs[name]
	}
	return defs
}

// NameOf returns the name def is declared under in n or its imports.
func (n *Namespace) NameOf(def *container.Definition) (string, bool) {
	for _, ns := range n.Closure() {
		if name, ok := ns.names[def]; ok {
			return name, true
		}
	}
	return "", false
}

// RegisterPublishedTCPPorts records the container-to-host port mapping of a
// started local definition. Imported definitions must be registered on the
// namespace that declares them.
func (n *Namespace) RegisterPublishedTCPPorts(def *container.Definition, ports map[int]int) error {
	if _, ok := n.names[def]; !ok {
		image := ""
		if def != nil {
			image = def.Image()
		}
		return &ForeignDefinitionError{Scope: n.scope, Image: image}
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ports[def] = maps.Clone(ports)
	return nil
}

// LookupHostPort returns the host port containerPort of def was published on.
func (n *Namespace) LookupHostPort(def *container.Definition, containerPort int) (int, error) {
	if def == nil {
		return 0, ErrNilDefinition
	}
	for _, ns := range n.Closure() {
		ports, ok := ns.registered(def)
		if !ok {
			continue
		}
		hostPort, ok := ports[containerPort]
		if !ok {
			return 0, &PortNotRegisteredError{Name: ns.names[def], Port: containerPort}
		}
		return hostPort, nil
	}
	name, _ := n.NameOf(def)
	return 0, &MissingDefinitionError{Name: name, Image: def.Image()}
}

func (n *Namespace) registered(def *container.Definition) (map[int]int, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	ports, ok := n.ports[def]
	return ports, ok
}
