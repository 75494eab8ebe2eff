package container

import "fmt"

// StartError reports a run process that exited with a non-zero status
// before its container became usable.
type StartError struct {
	ContainerID string // empty when the id was never written
	ExitCode    int
	Stderr      string
}

func (e *StartError) Error() string {
	if e.ContainerID == "" {
		return fmt.Sprintf("unable to start container\nexit code: %d\nstderr: %s", e.ExitCode, e.Stderr)
	}
	return fmt.Sprintf("unable to start container %s\nexit code: %d\nstderr: %s", e.ContainerID, e.ExitCode, e.Stderr)
}

// UnexpectedStateError reports a container in a state other than created or
// running while it was being awaited.
type UnexpectedStateError struct {
	ContainerID string
	State       string
}

func (e *UnexpectedStateError) Error() string {
	return fmt.Sprintf("container %s failed to start, current state is %q", e.ContainerID, e.State)
}

// VolumeError reports a host path that cannot be mounted.
type VolumeError struct {
	Path string
	Err  error
}

func (e *VolumeError) Error() string {
	return fmt.Sprintf("volume %s cannot be mounted: %v", e.Path, e.Err)
}

func (e *VolumeError) Unwrap() error { return e.Err }
