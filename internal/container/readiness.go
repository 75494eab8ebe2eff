package container

import (
	"bufio"
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/docker/go-units"

	"github.com/jakenelson/dockerfixture/internal/logger"
	"github.com/jakenelson/dockerfixture/internal/process"
)

// waitForCID polls cidFile until the runtime has written the container id.
// The run process failing first is reported as a *StartError.
func (d *Docker) waitForCID(ctx context.Context, proc process.Process, cidFile string) (string, error) {
	for {
		if id := readCID(cidFile); id != "" {
			return id, nil
		}
		if !proc.Alive() {
			// The file may have been written just before the process exited.
			if id := readCID(cidFile); id != "" && proc.ExitCode() == 0 {
				return id, nil
			}
			return "", &StartError{ExitCode: proc.ExitCode(), Stderr: proc.Stderr()}
		}
		if err := sleep(ctx, d.opts.CIDInterval); err != nil {
			return "", err
		}
	}
}

func readCID(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return ""
	}
	return strings.TrimSpace(scanner.Text())
}

// waitForRunning polls the container state until it is running. A container
// still in "created" is retried unless the run process has already failed.
func (d *Docker) waitForRunning(ctx context.Context, id string, proc process.Process) error {
	for {
		insp, err := d.inspect(ctx, id)
		if err != nil {
			return err
		}
		if insp.State == StateRunning {
			return nil
		}
		if !proc.Alive() && proc.ExitCode() != 0 {
			return &StartError{ContainerID: id, ExitCode: proc.ExitCode(), Stderr: proc.Stderr()}
		}
		if insp.State != StateCreated {
			return &UnexpectedStateError{ContainerID: id, State: insp.State}
		}
		if err := sleep(ctx, d.opts.StateInterval); err != nil {
			return err
		}
	}
}

// waitForPorts polls the kernel connection tables inside the container until
// every port in ports is listening. The container must stay running meanwhile.
func (d *Docker) waitForPorts(ctx context.Context, id string, ports []int) error {
	started := time.Now()
	warned := false
	for {
		listening, err := d.listeningPorts(ctx, id)
		if err != nil {
			return err
		}
		if listening.ContainsAll(ports) {
			logger.Debug().Str("container", id).Ints("ports", ports).Msg("ports are listening")
			return nil
		}

		insp, err := d.inspect(ctx, id)
		if err != nil {
			return err
		}
		if insp.State != StateRunning {
			return &UnexpectedStateError{ContainerID: id, State: insp.State}
		}

		if elapsed := time.Since(started); !warned && elapsed > d.opts.PortWarnAfter {
			warned = true
			logger.Warn().
				Str("container", id).
				Ints("ports", ports).
				Str("waited", units.HumanDuration(elapsed)).
				Msg("still waiting for container ports to open")
		}

		if err := sleep(ctx, d.opts.PortInterval); err != nil {
			return err
		}
	}
}

// listeningPorts reads every configured connection table inside the container.
func (d *Docker) listeningPorts(ctx context.Context, id string) (PortSet, error) {
	ports := PortSet{}
	for _, file := range d.opts.TCPFiles {
		res, err := process.RunToCompletion(ctx, d.opts.Runner, d.argv("exec", id, "sh", "-c", probeScript(file)))
		if err != nil {
			return nil, err
		}
		for p := range ParseListenPorts(res.Stdout) {
			ports[p] = struct{}{}
		}
	}
	return ports, nil
}

func (d *Docker) inspect(ctx context.Context, id string) (*Inspection, error) {
	res, err := process.RunToCompletion(ctx, d.opts.Runner, d.argv("inspect", id))
	if err != nil {
		return nil, err
	}
	return DecodeInspect([]byte(res.Stdout))
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
