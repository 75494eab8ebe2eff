package container

import (
	"context"
	"errors"
	"os/exec"

	"github.com/jakenelson/dockerfixture/internal/process"
)

// ErrNoRuntime is returned when no container runtime is found.
var ErrNoRuntime = errors.New("no container runtime found (need docker or podman)")

// lookPath is replaced in tests.
var lookPath = exec.LookPath

// DetectRuntime finds an available container runtime.
// Checks docker first, then podman. Verifies the binary actually works
// by running `<runtime> version`.
func DetectRuntime(ctx context.Context, runner process.Runner) (string, error) {
	if runner == nil {
		runner = process.ExecRunner{}
	}
	for _, bin := range []string{"docker", "podman"} {
		if _, err := lookPath(bin); err != nil {
			continue
		}
		res, err := runner.Run(ctx, []string{bin, "version"})
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			continue
		}
		if res.ExitCode != 0 {
			continue
		}
		return bin, nil
	}
	return "", ErrNoRuntime
}
