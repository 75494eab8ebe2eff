package process

import "fmt"

// SpawnError reports that a process could not be created at all.
type SpawnError struct {
	Argv []string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to spawn %s: %v", Format(e.Argv), e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// CommandFailedError reports a command that ran but exited with an
// unacceptable code.
type CommandFailedError struct {
	Argv     []string
	ExitCode int
	Stdout   string
	Stderr   string
}

func (e *CommandFailedError) Error() string {
	return fmt.Sprintf("unable to execute: %s\nexit code: %d\nstderr: %s\nstdout: %s",
		Format(e.Argv), e.ExitCode, e.Stderr, e.Stdout)
}
