// Package fixture starts the containers of one or more namespaces together,
// publishes their ports back into the namespaces and guarantees teardown.
package fixture

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jakenelson/dockerfixture/internal/container"
	"github.com/jakenelson/dockerfixture/internal/logger"
	"github.com/jakenelson/dockerfixture/internal/namespace"
)

// CloseTimeout bounds the teardown done by Run.
const CloseTimeout = time.Minute

// Runtime starts and removes containers. *container.Docker implements it.
type Runtime interface {
	Start(ctx context.Context, def *container.Definition) (string, error)
	PublishedPorts(ctx context.Context, id string) (map[int]int, error)
	Close(ctx context.Context) error
}

// Container describes a started fixture container.
type Container struct {
	Scope string
	Name  string
	Image string
	ID    string
	Ports map[int]int
}

// Session tracks the containers started for a set of namespaces.
type Session struct {
	runtime  Runtime
	registry *namespace.Registry

	mu         sync.Mutex
	started    map[*container.Definition]bool
	containers []Container
}

// New creates a session that resolves scopes through registry.
func New(runtime Runtime, registry *namespace.Registry) *Session {
	return &Session{
		runtime:  runtime,
		registry: registry,
		started:  make(map[*container.Definition]bool),
	}
}

// StartAll starts every definition reachable from namespaces concurrently,
// one goroutine per definition, and registers the published ports on the
// namespace that declares each one. Scopes shared through imports are started
// once. All starts run to completion before the first error is returned, so
// no start is abandoned halfway.
func (s *Session) StartAll(ctx context.Context, namespaces []*namespace.Namespace) error {
	var g errgroup.Group
	seen := make(map[*namespace.Namespace]bool)
	for _, root := range namespaces {
		for _, ns := range root.Closure() {
			if seen[ns] {
				continue
			}
			seen[ns] = true
			for _, name := range ns.Names() {
				def, _ := ns.Definition(name)
				if !s.claim(def) {
					continue
				}
				g.Go(func() error {
					return s.start(ctx, ns, name, def)
				})
			}
		}
	}
	return g.Wait()
}

func (s *Session) claim(def *container.Definition) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started[def] {
		return false
	}
	s.started[def] = true
	return true
}

func (s *Session) start(ctx context.Context, ns *namespace.Namespace, name string, def *container.Definition) error {
	started := time.Now()
	id, err := s.runtime.Start(ctx, def)
	if err != nil {
		return fmt.Errorf("failed to start %s/%s: %w", ns.Scope(), name, err)
	}
	ports, err := s.runtime.PublishedPorts(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to read ports of %s/%s: %w", ns.Scope(), name, err)
	}
	if err := ns.RegisterPublishedTCPPorts(def, ports); err != nil {
		return err
	}

	s.mu.Lock()
	s.containers = append(s.containers, Container{
		Scope: ns.Scope(),
		Name:  name,
		Image: def.Image(),
		ID:    id,
		Ports: ports,
	})
	s.mu.Unlock()

	logger.Info().
		Str("scope", ns.Scope()).
		Str("name", name).
		Str("container", id).
		Dur("took", time.Since(started)).
		Msg("fixture ready")
	return nil
}

// Containers returns the started containers ordered by scope and name.
func (s *Session) Containers() []Container {
	s.mu.Lock()
	out := slices.Clone(s.containers)
	s.mu.Unlock()
	slices.SortFunc(out, func(a, b Container) int {
		return cmp.Or(cmp.Compare(a.Scope, b.Scope), cmp.Compare(a.Name, b.Name))
	})
	return out
}

// Ports returns the host port that containerPort of container name, as seen
// from scope, was published on.
func (s *Session) Ports(scope, name string, containerPort int) (int, error) {
	ns, err := s.registry.Build(scope)
	if err != nil {
		return 0, err
	}
	def, ok := ns.Definition(name)
	if !ok {
		return 0, fmt.Errorf("%w: container %q in scope %q", namespace.ErrUnknownName, name, scope)
	}
	return ns.LookupHostPort(def, containerPort)
}

// Callback resolves "name:port" references against scope into the ordered
// host port arguments of a post-start callback.
func (s *Session) Callback(scope string, refs []string) ([]int, error) {
	ns, err := s.registry.Build(scope)
	if err != nil {
		return nil, err
	}
	portRefs := make([]namespace.PortRef, 0, len(refs))
	for _, ref := range refs {
		portRef, err := namespace.ParsePortRef(ns, ref)
		if err != nil {
			return nil, err
		}
		portRefs = append(portRefs, portRef)
	}
	return namespace.ResolvePorts(ns, portRefs)
}

// Run builds scopes (every declared scope when empty), starts them, calls fn
// and then closes runtime. Close runs on every path, including a failed or
// cancelled start, and its error is joined with the one returned.
func Run(ctx context.Context, runtime Runtime, registry *namespace.Registry, scopes []string, fn func(*Session) error) (err error) {
	s := New(runtime, registry)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), CloseTimeout)
		defer cancel()
		if closeErr := runtime.Close(closeCtx); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("cleanup: %w", closeErr))
		}
	}()

	namespaces, err := build(registry, scopes)
	if err != nil {
		return err
	}
	if err := s.StartAll(ctx, namespaces); err != nil {
		return err
	}
	return fn(s)
}

func build(registry *namespace.Registry, scopes []string) ([]*namespace.Namespace, error) {
	if len(scopes) == 0 {
		return registry.BuildAll()
	}
	namespaces := make([]*namespace.Namespace, 0, len(scopes))
	for _, scope := range scopes {
		ns, err := registry.Build(scope)
		if err != nil {
			return nil, err
		}
		namespaces = append(namespaces, ns)
	}
	return namespaces, nil
}
