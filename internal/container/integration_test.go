package container

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireRuntime(t *testing.T) *Docker {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container runtime test in short mode")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	bin, err := DetectRuntime(ctx, nil)
	if err != nil {
		t.Skipf("no container runtime: %v", err)
	}

	d := New(Options{Binary: bin})
	t.Cleanup(func() {
		assert.NoError(t, d.Close(context.Background()))
	})
	return d
}

func TestIntegrationStartServesPublishedPort(t *testing.T) {
	d := requireRuntime(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	def := NewDefinition("alpine:3", "nc", "-lk", "-p", "1234", "-s", "0.0.0.0", "-e", "echo", "fixture-payload")
	def.Publish(1234, 0)

	id, err := d.Start(ctx, def)
	require.NoError(t, err)

	ports, err := d.PublishedPorts(ctx, id)
	require.NoError(t, err)
	hostPort := ports[1234]
	require.Greater(t, hostPort, 1024)

	conn, err := net.DialTimeout("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(hostPort)), 5*time.Second)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	line, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "fixture-payload\n", line)
}

func TestIntegrationRunToCompletion(t *testing.T) {
	d := requireRuntime(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	out, err := d.RunToCompletion(ctx, NewDefinition("alpine:3", "echo", "hello"))
	require.NoError(t, err)
	assert.Equal(t, "hello\n", out)
}

func TestIntegrationCloseRemovesAnonymousVolumes(t *testing.T) {
	d := requireRuntime(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	before, err := d.VolumeCount(ctx)
	require.NoError(t, err)

	def := NewDefinition("alpine:3", "sleep", "300")
	def.AddVolume(Volume{MountPoint: "/data"})
	_, err = d.Start(ctx, def)
	require.NoError(t, err)

	require.NoError(t, d.Close(ctx))

	after, err := d.VolumeCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}
