package fixture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jakenelson/dockerfixture/internal/container"
	"github.com/jakenelson/dockerfixture/internal/namespace"
)

type fakeRuntime struct {
	mu      sync.Mutex
	next    int
	ports   map[string]map[int]int
	starts  map[string]int
	fail    map[string]error
	closed  int
	closeFn func(ctx context.Context) error
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{
		ports:  make(map[string]map[int]int),
		starts: make(map[string]int),
		fail:   make(map[string]error),
	}
}

func (f *fakeRuntime) Start(_ context.Context, def *container.Definition) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts[def.Image()]++
	if err := f.fail[def.Image()]; err != nil {
		return "", err
	}
	f.next++
	id := fmt.Sprintf("c%d", f.next)
	ports := make(map[int]int)
	for _, p := range def.ContainerPorts() {
		ports[p] = 30000 + p
	}
	f.ports[id] = ports
	return id, nil
}

func (f *fakeRuntime) PublishedPorts(_ context.Context, id string) (map[int]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ports[id], nil
}

func (f *fakeRuntime) Close(ctx context.Context) error {
	f.mu.Lock()
	f.closed++
	fn := f.closeFn
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx)
	}
	return nil
}

func def(image string, ports ...int) *container.Definition {
	d := container.NewDefinition(image)
	for _, p := range ports {
		d.Publish(p, 0)
	}
	return d
}

func newRegistry(t *testing.T) *namespace.Registry {
	t.Helper()
	r := namespace.NewRegistry()
	require.NoError(t, r.Declare("base", namespace.Scope{
		Definitions: map[string]*container.Definition{"db": def("postgres", 5432)},
	}))
	require.NoError(t, r.Declare("api", namespace.Scope{
		Imports:     []string{"base"},
		Definitions: map[string]*container.Definition{"web": def("nginx", 80, 443)},
	}))
	require.NoError(t, r.Declare("worker", namespace.Scope{
		Imports:     []string{"base"},
		Definitions: map[string]*container.Definition{"queue": def("redis", 6379)},
	}))
	return r
}

func TestRunStartsSharedScopeOnce(t *testing.T) {
	rt := newFakeRuntime()
	reg := newRegistry(t)

	err := Run(context.Background(), rt, reg, []string{"api", "worker"}, func(s *Session) error {
		port, err := s.Ports("api", "db", 5432)
		require.NoError(t, err)
		assert.Equal(t, 35432, port)

		port, err = s.Ports("worker", "queue", 6379)
		require.NoError(t, err)
		assert.Equal(t, 36379, port)

		args, err := s.Callback("api", []string{"web:443", "db:5432", "web:80"})
		require.NoError(t, err)
		assert.Equal(t, []int{30443, 35432, 30080}, args)

		containers := s.Containers()
		require.Len(t, containers, 3)
		assert.Equal(t, "api", containers[0].Scope)
		assert.Equal(t, "web", containers[0].Name)
		assert.Equal(t, "base", containers[1].Scope)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, 1, rt.starts["postgres"])
	assert.Equal(t, 1, rt.closed)
}

func TestRunAllScopesWhenNoneGiven(t *testing.T) {
	rt := newFakeRuntime()

	err := Run(context.Background(), rt, newRegistry(t), nil, func(s *Session) error {
		assert.Len(t, s.Containers(), 3)
		return nil
	})
	require.NoError(t, err)
}

func TestRunClosesAfterStartFailure(t *testing.T) {
	rt := newFakeRuntime()
	boom := errors.New("boom")
	rt.fail["redis"] = boom
	called := false

	err := Run(context.Background(), rt, newRegistry(t), nil, func(*Session) error {
		called = true
		return nil
	})

	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "worker/queue")
	assert.False(t, called)
	assert.Equal(t, 1, rt.closed)
	assert.Equal(t, 1, rt.starts["postgres"], "every start is drained despite the failure")
	assert.Equal(t, 1, rt.starts["nginx"])
}

func TestRunJoinsCloseError(t *testing.T) {
	rt := newFakeRuntime()
	closeErr := errors.New("close failed")
	rt.closeFn = func(context.Context) error { return closeErr }
	fnErr := errors.New("test failed")

	err := Run(context.Background(), rt, newRegistry(t), []string{"base"}, func(*Session) error {
		return fnErr
	})

	assert.ErrorIs(t, err, fnErr)
	assert.ErrorIs(t, err, closeErr)
}

func TestRunClosesWithLiveContextAfterCancel(t *testing.T) {
	rt := newFakeRuntime()
	var closeCtxErr error
	rt.closeFn = func(ctx context.Context) error {
		closeCtxErr = ctx.Err()
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())

	err := Run(ctx, rt, newRegistry(t), []string{"base"}, func(*Session) error {
		cancel()
		return nil
	})

	require.NoError(t, err)
	assert.NoError(t, closeCtxErr)
}

func TestRunUnknownScope(t *testing.T) {
	rt := newFakeRuntime()

	err := Run(context.Background(), rt, newRegistry(t), []string{"missing"}, func(*Session) error { return nil })

	assert.ErrorIs(t, err, namespace.ErrUnknownName)
	assert.Equal(t, 1, rt.closed)
}

func TestSessionLookupErrors(t *testing.T) {
	rt := newFakeRuntime()
	reg := newRegistry(t)

	err := Run(context.Background(), rt, reg, []string{"base"}, func(s *Session) error {
		_, err := s.Ports("base", "nope", 1)
		assert.ErrorIs(t, err, namespace.ErrUnknownName)

		_, err = s.Ports("base", "db", 1)
		var notRegistered *namespace.PortNotRegisteredError
		assert.ErrorAs(t, err, &notRegistered)

		_, err = s.Callback("base", []string{"db"})
		assert.Error(t, err)
		return nil
	})
	require.NoError(t, err)
}

func TestStartAllSkipsAlreadyStarted(t *testing.T) {
	rt := newFakeRuntime()
	reg := newRegistry(t)
	s := New(rt, reg)
	base, err := reg.Build("base")
	require.NoError(t, err)

	require.NoError(t, s.StartAll(context.Background(), []*namespace.Namespace{base}))
	require.NoError(t, s.StartAll(context.Background(), []*namespace.Namespace{base, base}))

	assert.Equal(t, 1, rt.starts["postgres"])
}
