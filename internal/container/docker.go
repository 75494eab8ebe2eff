// Package container drives a container runtime CLI to start fixture
// containers, wait until they are usable and tear them down again.
package container

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jakenelson/dockerfixture/internal/logger"
	"github.com/jakenelson/dockerfixture/internal/process"
)

// Defaults for Options.
const (
	DefaultBinary        = "docker"
	DefaultLabel         = "dockerfixture"
	DefaultCIDInterval   = 100 * time.Millisecond
	DefaultStateInterval = 100 * time.Millisecond
	DefaultPortInterval  = 200 * time.Millisecond
	DefaultPortWarnAfter = 5 * time.Second
)

// Options configures a Docker. Zero fields take the defaults above.
type Options struct {
	Binary string
	Label  string

	CIDInterval   time.Duration
	StateInterval time.Duration
	PortInterval  time.Duration
	PortWarnAfter time.Duration
	TCPFiles      []string

	Runner process.Runner
}

func (o *Options) applyDefaults() {
	if o.Binary == "" {
		o.Binary = DefaultBinary
	}
	if o.Label == "" {
		o.Label = DefaultLabel
	}
	if o.CIDInterval <= 0 {
		o.CIDInterval = DefaultCIDInterval
	}
	if o.StateInterval <= 0 {
		o.StateInterval = DefaultStateInterval
	}
	if o.PortInterval <= 0 {
		o.PortInterval = DefaultPortInterval
	}
	if o.PortWarnAfter <= 0 {
		o.PortWarnAfter = DefaultPortWarnAfter
	}
	if len(o.TCPFiles) == 0 {
		o.TCPFiles = DefaultTCPFiles
	}
	if o.Runner == nil {
		o.Runner = process.ExecRunner{}
	}
}

// Docker starts containers through the runtime CLI and remembers what it
// created so Close can remove it. It is safe for concurrent use.
type Docker struct {
	opts    Options
	session string
	labels  map[string]string

	mu         sync.Mutex
	containers []string
	tracked    map[string]struct{}
	networks   []string

	interrupted atomic.Bool
}

// New creates a Docker. Every container it starts carries the label
// "<label>=true" plus a per-instance session label.
func New(opts Options) *Docker {
	opts.applyDefaults()
	session := uuid.NewString()
	return &Docker{
		opts:    opts,
		session: session,
		labels: map[string]string{
			opts.Label:              "true",
			opts.Label + ".session": session,
		},
		tracked: make(map[string]struct{}),
	}
}

// Session returns the session label value of this instance.
func (d *Docker) Session() string { return d.session }

// Binary returns the runtime binary in use.
func (d *Docker) Binary() string { return d.opts.Binary }

// Start runs def in the background and blocks until it is ready: running and,
// when requested, listening on every published container port.
//
// The container id is returned even when readiness fails, and a container
// that asked for removal is tracked for Close as soon as its id is known.
// Cancelling ctx stops the wait but leaves the container running.
func (d *Docker) Start(ctx context.Context, def *Definition) (string, error) {
	if err := d.checkImage(ctx, def.Image()); err != nil {
		return "", err
	}
	if err := d.ensureNetwork(ctx, def.Network); err != nil {
		return "", err
	}

	dir, err := os.MkdirTemp("", "dockerfixture-")
	if err != nil {
		return "", fmt.Errorf("failed to create cid directory: %w", err)
	}
	defer os.RemoveAll(dir)
	cidFile := filepath.Join(dir, "cid")

	args, err := BuildRunArgs(def, d.labels, "--cidfile", cidFile)
	if err != nil {
		return "", err
	}
	proc, err := d.opts.Runner.Start(d.argv(args...))
	if err != nil {
		return "", err
	}

	id, err := d.waitForCID(ctx, proc, cidFile)
	if err != nil {
		return "", err
	}
	if def.RemoveAfterCompletion {
		d.track(id)
	}
	logger.Debug().Str("container", id).Str("image", def.Image()).Msg("container created")

	if err := d.waitForRunning(ctx, id, proc); err != nil {
		return id, err
	}
	if def.shouldWaitForPorts() {
		if err := d.waitForPorts(ctx, id, def.ContainerPorts()); err != nil {
			return id, err
		}
	}

	logger.Info().Str("container", id).Str("image", def.Image()).Msg("container ready")
	return id, nil
}

// RunToCompletion runs def in the foreground and returns its stdout.
// Output is buffered in memory, so def should produce bounded output.
func (d *Docker) RunToCompletion(ctx context.Context, def *Definition) (string, error) {
	if err := d.ensureNetwork(ctx, def.Network); err != nil {
		return "", err
	}
	args, err := BuildRunArgs(def, d.labels)
	if err != nil {
		return "", err
	}
	res, err := process.RunToCompletion(ctx, d.opts.Runner, d.argv(args...))
	if err != nil {
		return "", err
	}
	return res.Stdout, nil
}

// PublishedPorts returns the container-to-host TCP port mapping of id.
func (d *Docker) PublishedPorts(ctx context.Context, id string) (map[int]int, error) {
	insp, err := d.inspect(ctx, id)
	if err != nil {
		return nil, err
	}
	return insp.Ports, nil
}

// VolumeCount returns the number of volumes known to the runtime.
func (d *Docker) VolumeCount(ctx context.Context) (int, error) {
	res, err := process.RunToCompletion(ctx, d.opts.Runner, d.argv("volume", "ls", "-q"))
	if err != nil {
		return 0, err
	}
	count := 0
	for _, line := range strings.Split(res.Stdout, "\n") {
		if strings.TrimSpace(line) != "" {
			count++
		}
	}
	return count, nil
}

// Close removes every tracked container with a single forced removal that
// also drops their anonymous volumes, then removes every created network.
// Containers and networks leave the record only once their removal succeeds,
// so a Close that failed or was interrupted can be retried.
//
// Failed removals are logged and do not stop the rest. Only spawn failures
// are returned. A cancelled ctx is recorded (see Interrupted) and logged.
// Calling Close with nothing pending does nothing.
func (d *Docker) Close(ctx context.Context) error {
	d.mu.Lock()
	containers := slices.Clone(d.containers)
	networks := slices.Clone(d.networks)
	d.mu.Unlock()

	var errs []error
	if len(containers) > 0 {
		argv := d.argv(append([]string{"rm", "-f", "-v"}, containers...)...)
		_, err := process.RunToCompletion(ctx, d.opts.Runner, argv)
		if err != nil {
			errs = append(errs, d.cleanupFailure(err, "containers", strings.Join(containers, " ")))
		} else {
			d.untrack(containers)
			logger.Debug().Strs("containers", containers).Msg("containers removed")
		}
	}

	for _, network := range networks {
		_, err := process.RunToCompletion(ctx, d.opts.Runner, d.argv("network", "rm", network))
		if err != nil {
			errs = append(errs, d.cleanupFailure(err, "network", network))
			continue
		}
		d.forgetNetwork(network)
		logger.Debug().Str("network", network).Msg("network removed")
	}
	return errors.Join(errs...)
}

// cleanupFailure logs err and returns it only when it is a spawn failure.
func (d *Docker) cleanupFailure(err error, kind, target string) error {
	var spawnErr *process.SpawnError
	switch {
	case isCanceled(err):
		d.interrupted.Store(true)
		logger.Warn().Err(err).Str(kind, target).Msg("cleanup interrupted")
		return nil
	case errors.As(err, &spawnErr):
		return fmt.Errorf("failed to remove %s %s: %w", kind, target, err)
	default:
		logger.Warn().Err(err).Str(kind, target).Msg("failed to remove")
		return nil
	}
}

// Interrupted reports whether a Close was cut short by cancellation.
func (d *Docker) Interrupted() bool { return d.interrupted.Load() }

// Pending returns the ids tracked for removal, in start order.
func (d *Docker) Pending() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.containers)
}

func (d *Docker) track(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.tracked[id]; ok {
		return
	}
	d.tracked[id] = struct{}{}
	d.containers = append(d.containers, id)
}

// untrack drops removed ids. Containers tracked while Close ran stay.
func (d *Docker) untrack(ids []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, id := range ids {
		delete(d.tracked, id)
	}
	d.containers = slices.DeleteFunc(d.containers, func(id string) bool {
		return slices.Contains(ids, id)
	})
}

func (d *Docker) forgetNetwork(network string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.networks = slices.DeleteFunc(d.networks, func(n string) bool { return n == network })
}

// ensureNetwork creates network once per Docker. The lock is held across the
// create call so concurrent starts sharing a network do not race.
func (d *Docker) ensureNetwork(ctx context.Context, network string) error {
	if network == "" {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if slices.Contains(d.networks, network) {
		return nil
	}

	res, err := process.RunToCompletion(ctx, d.opts.Runner, d.argv("network", "create", network))
	if err != nil {
		if res != nil && strings.Contains(res.Stderr, "already exists") {
			logger.Debug().Str("network", network).Msg("network already exists, not tracking it")
			return nil
		}
		return fmt.Errorf("failed to create network %s: %w", network, err)
	}
	d.networks = append(d.networks, network)
	logger.Debug().Str("network", network).Msg("network created")
	return nil
}

// checkImage warns when image is not present locally. Only cancellation is
// fatal: a missing image just means the first run has to pull it.
func (d *Docker) checkImage(ctx context.Context, image string) error {
	res, err := process.RunToCompletion(ctx, d.opts.Runner, d.argv("image", "inspect", image), 0, 1)
	switch {
	case err != nil && isCanceled(err):
		return err
	case err != nil:
		logger.Warn().Err(err).Str("image", image).Msg("unable to check image")
	case res.ExitCode == 1:
		logger.Warn().Str("image", image).Msg("image not present locally, the first start will pull it")
	}
	return nil
}

func (d *Docker) argv(args ...string) []string {
	return append([]string{d.opts.Binary}, args...)
}
