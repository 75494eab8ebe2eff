package container

import (
	"context"
	"errors"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jakenelson/dockerfixture/internal/process"
	"github.com/jakenelson/dockerfixture/internal/process/processtest"
)

func stubLookPath(t *testing.T, available ...string) {
	t.Helper()
	orig := lookPath
	t.Cleanup(func() { lookPath = orig })
	lookPath = func(bin string) (string, error) {
		for _, a := range available {
			if a == bin {
				return "/usr/bin/" + bin, nil
			}
		}
		return "", exec.ErrNotFound
	}
}

func TestDetectRuntimePrefersDocker(t *testing.T) {
	stubLookPath(t, "docker", "podman")
	runner := processtest.NewRunner()
	runner.Reply("version", 0, "")

	bin, err := DetectRuntime(context.Background(), runner)
	require.NoError(t, err)
	assert.Equal(t, "docker", bin)
}

func TestDetectRuntimeFallsBackToPodman(t *testing.T) {
	stubLookPath(t, "docker", "podman")
	runner := processtest.NewRunner()
	runner.OnRun("version", func(argv []string) (*process.Result, error) {
		if argv[0] == "docker" {
			return &process.Result{ExitCode: 1, Stderr: "Cannot connect to the Docker daemon"}, nil
		}
		return &process.Result{}, nil
	})

	bin, err := DetectRuntime(context.Background(), runner)
	require.NoError(t, err)
	assert.Equal(t, "podman", bin)
}

func TestDetectRuntimeNone(t *testing.T) {
	stubLookPath(t)

	_, err := DetectRuntime(context.Background(), processtest.NewRunner())
	assert.True(t, errors.Is(err, ErrNoRuntime))
}
