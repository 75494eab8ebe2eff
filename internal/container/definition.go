package container

import (
	"errors"
	"maps"
	"slices"
)

// ErrEmptyMountPoint is returned for a volume without a container mount point.
var ErrEmptyMountPoint = errors.New("volume mount point must not be empty")

// Definition describes a container to run.
//
// Image and Command are fixed at construction. The remaining fields may be
// filled in until the definition is handed to a namespace; after that it must
// not be mutated. A *Definition is used as a map key, so identity is pointer
// identity. Equal compares by value.
type Definition struct {
	image   string
	command []string

	// PublishedPorts maps a container port to the requested host port.
	// A host port of 0 lets the runtime choose.
	PublishedPorts map[int]int

	Environment   map[string]string
	Volumes       []Volume
	CustomOptions []string
	WorkingDir    string
	Network       string
	NetworkAlias  string

	// RemoveAfterCompletion passes --rm and tracks the container for
	// removal on Close.
	RemoveAfterCompletion bool

	// WaitForAllExposedPorts makes Start block until every published
	// container port is listening.
	WaitForAllExposedPorts bool
}

// NewDefinition creates a definition with removal and port waiting enabled.
func NewDefinition(image string, command ...string) *Definition {
	return &Definition{
		image:                  image,
		command:                slices.Clone(command),
		PublishedPorts:         make(map[int]int),
		Environment:            make(map[string]string),
		RemoveAfterCompletion:  true,
		WaitForAllExposedPorts: true,
	}
}

// Image returns the image reference.
func (d *Definition) Image() string { return d.image }

// Command returns a copy of the command tokens.
func (d *Definition) Command() []string { return slices.Clone(d.command) }

// Publish maps containerPort to hostPort; hostPort <= 0 means any free port.
func (d *Definition) Publish(containerPort, hostPort int) {
	if hostPort < 0 {
		hostPort = 0
	}
	if d.PublishedPorts == nil {
		d.PublishedPorts = make(map[int]int)
	}
	d.PublishedPorts[containerPort] = hostPort
}

// SetEnv sets an environment variable, replacing any previous value.
func (d *Definition) SetEnv(key, value string) {
	if d.Environment == nil {
		d.Environment = make(map[string]string)
	}
	d.Environment[key] = value
}

// AddVolume appends a volume mount.
func (d *Definition) AddVolume(v Volume) {
	d.Volumes = append(d.Volumes, v)
}

// AddOption appends a raw runtime option passed through verbatim.
func (d *Definition) AddOption(option string) {
	d.CustomOptions = append(d.CustomOptions, option)
}

// ContainerPorts returns the published container ports in ascending order.
func (d *Definition) ContainerPorts() []int {
	return slices.Sorted(maps.Keys(d.PublishedPorts))
}

func (d *Definition) shouldWaitForPorts() bool {
	return len(d.PublishedPorts) > 0 && d.WaitForAllExposedPorts
}

// Equal reports whether d and o describe the same container. Network
// settings are not part of the comparison.
func (d *Definition) Equal(o *Definition) bool {
	if d == o {
		return true
	}
	if d == nil || o == nil {
		return false
	}
	return d.image == o.image &&
		slices.Equal(d.command, o.command) &&
		maps.Equal(d.PublishedPorts, o.PublishedPorts) &&
		maps.Equal(d.Environment, o.Environment) &&
		slices.Equal(d.Volumes, o.Volumes) &&
		slices.Equal(d.CustomOptions, o.CustomOptions) &&
		d.WorkingDir == o.WorkingDir &&
		d.RemoveAfterCompletion == o.RemoveAfterCompletion &&
		d.WaitForAllExposedPorts == o.WaitForAllExposedPorts
}

// Volume is a mount inside a container.
type Volume struct {
	// MountPoint is the path inside the container.
	MountPoint string

	// HostPath is the bind source on the host. Empty requests an anonymous volume.
	HostPath string

	// CreateIfMissing creates HostPath as a directory when it does not exist.
	CreateIfMissing bool
}

// NewVolume validates and returns a volume.
func NewVolume(mountPoint, hostPath string, createIfMissing bool) (Volume, error) {
	if mountPoint == "" {
		return Volume{}, ErrEmptyMountPoint
	}
	return Volume{MountPoint: mountPoint, HostPath: hostPath, CreateIfMissing: createIfMissing}, nil
}
