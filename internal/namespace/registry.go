package namespace

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/jakenelson/dockerfixture/internal/container"
)

// Scope declares the definitions and imports of one namespace.
type Scope struct {
	Imports     []string
	Definitions map[string]*container.Definition
}

// Registry builds namespaces from declared scopes. Each scope is built at most
// once; later requests return the same *Namespace.
type Registry struct {
	mu     sync.Mutex
	scopes map[string]Scope
	built  map[string]*Namespace
	order  []*Namespace
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		scopes: make(map[string]Scope),
		built:  make(map[string]*Namespace),
	}
}

// Declare adds a scope. Declaring the same name twice is an error.
func (r *Registry) Declare(name string, scope Scope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.scopes[name]; ok {
		return fmt.Errorf("scope %q is already declared", name)
	}
	r.scopes[name] = scope
	return nil
}

// Scopes returns the declared scope names, sorted.
func (r *Registry) Scopes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Sorted(maps.Keys(r.scopes))
}

// Build returns the namespace of scope name, building its imports first.
func (r *Registry) Build(name string) (*Namespace, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.build(name, nil)
}

// BuildAll builds every declared scope in name order.
func (r *Registry) BuildAll() ([]*Namespace, error) {
	var all []*Namespace
	for _, name := range r.Scopes() {
		ns, err := r.Build(name)
		if err != nil {
			return nil, err
		}
		all = append(all, ns)
	}
	return all, nil
}

// All returns every namespace built so far, in build order.
func (r *Registry) All() []*Namespace {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.order)
}

// build must be called with r.mu held. path holds the scopes currently being
// built, outermost first.
func (r *Registry) build(name string, path []string) (*Namespace, error) {
	if ns, ok := r.built[name]; ok {
		return ns, nil
	}
	if slices.Contains(path, name) {
		return nil, fmt.Errorf("%w: %s", ErrImportCycle, strings.Join(append(path, name), " -> "))
	}
	scope, ok := r.scopes[name]
	if !ok {
		return nil, fmt.Errorf("%w: scope %q", ErrUnknownName, name)
	}

	path = append(path, name)
	imports := make([]*Namespace, 0, len(scope.Imports))
	for _, imp := range scope.Imports {
		ns, err := r.build(imp, path)
		if err != nil {
			return nil, err
		}
		imports = append(imports, ns)
	}

	ns, err := New(name, scope.Definitions, imports...)
	if err != nil {
		return nil, err
	}
	r.built[name] = ns
	r.order = append(r.order, ns)
	return ns, nil
}
