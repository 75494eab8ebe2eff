package config

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/docker/go-connections/nat"
	"github.com/docker/go-units"
	"github.com/google/shlex"
	"gopkg.in/yaml.v3"

	"github.com/jakenelson/dockerfixture/internal/container"
	"github.com/jakenelson/dockerfixture/internal/logger"
	"github.com/jakenelson/dockerfixture/internal/namespace"
	"github.com/jakenelson/dockerfixture/internal/security"
)

// FixtureFile is the declarative description of every fixture scope.
type FixtureFile struct {
	Namespaces map[string]NamespaceSpec `yaml:"namespaces"`

	// dir resolves relative volume host paths; set by LoadFixtures.
	dir string
}

// NamespaceSpec declares one scope.
type NamespaceSpec struct {
	Import     []string                 `yaml:"import"`
	Containers map[string]ContainerSpec `yaml:"containers"`
	// Callbacks map a callback name to "container:port" references whose
	// host ports form its argument list.
	Callbacks map[string][]string `yaml:"callbacks"`
}

// ContainerSpec declares one container.
type ContainerSpec struct {
	Image                  string       `yaml:"image"`
	Command                StringList   `yaml:"command"`
	Publish                []string     `yaml:"publish"`
	Environment            []string     `yaml:"environment"`
	Volumes                []VolumeSpec `yaml:"volumes"`
	Options                StringList   `yaml:"options"`
	Memory                 string       `yaml:"memory"`
	Network                string       `yaml:"network"`
	NetworkAlias           string       `yaml:"network_alias"`
	WorkingDir             string       `yaml:"working_dir"`
	RemoveAfterCompletion  *bool        `yaml:"remove_after_completion"`
	WaitForAllExposedPorts *bool        `yaml:"wait_for_all_exposed_ports"`
}

// VolumeSpec declares a volume. Without Host it is anonymous.
type VolumeSpec struct {
	Mount  string `yaml:"mount"`
	Host   string `yaml:"host"`
	Create bool   `yaml:"create"`
}

// StringList accepts a YAML sequence or a single shell-quoted string.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *StringList) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		parts, err := shlex.Split(value.Value)
		if err != nil {
			return fmt.Errorf("line %d: %w", value.Line, err)
		}
		*s = parts
		return nil
	}
	var parts []string
	if err := value.Decode(&parts); err != nil {
		return err
	}
	*s = parts
	return nil
}

// LoadFixtures reads and parses a fixture file. Relative volume host paths
// are resolved against the file's directory.
func LoadFixtures(path string) (*FixtureFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture file: %w", err)
	}
	f, err := ParseFixtures(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	f.dir = filepath.Dir(abs)
	return f, nil
}

// ParseFixtures parses fixture YAML. Duplicate keys are rejected by the
// decoder, so a name cannot be declared twice within one scope.
func ParseFixtures(data []byte) (*FixtureFile, error) {
	f := &FixtureFile{}
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("failed to parse fixtures: %w", err)
	}
	if len(f.Namespaces) == 0 {
		return nil, fmt.Errorf("no namespaces declared")
	}
	return f, nil
}

// Scopes returns the declared scope names, sorted.
func (f *FixtureFile) Scopes() []string {
	return slices.Sorted(maps.Keys(f.Namespaces))
}

// Callbacks returns the callbacks of scope ordered by name.
func (f *FixtureFile) Callbacks(scope string) []Callback {
	spec := f.Namespaces[scope]
	out := make([]Callback, 0, len(spec.Callbacks))
	for _, name := range slices.Sorted(maps.Keys(spec.Callbacks)) {
		out = append(out, Callback{Name: name, Refs: spec.Callbacks[name]})
	}
	return out
}

// Callback names the port references a post-start callback receives.
type Callback struct {
	Name string
	Refs []string
}

// Registry converts every scope into definitions and declares them on a new
// namespace registry. passthrough names host variables added to every
// container that does not set them.
func (f *FixtureFile) Registry(passthrough []string) (*namespace.Registry, error) {
	reg := namespace.NewRegistry()
	for _, scope := range f.Scopes() {
		spec := f.Namespaces[scope]
		defs := make(map[string]*container.Definition, len(spec.Containers))
		for _, name := range slices.Sorted(maps.Keys(spec.Containers)) {
			def, err := spec.Containers[name].Definition(f.dir, passthrough)
			if err != nil {
				return nil, fmt.Errorf("%s/%s: %w", scope, name, err)
			}
			defs[name] = def
		}
		if err := reg.Declare(scope, namespace.Scope{Imports: spec.Import, Definitions: defs}); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// Definition validates c and converts it. baseDir resolves relative host
// paths; empty means the working directory.
func (c ContainerSpec) Definition(baseDir string, passthrough []string) (*container.Definition, error) {
	if c.Image == "" {
		return nil, fmt.Errorf("image is required")
	}
	def := container.NewDefinition(c.Image, c.Command...)

	for _, spec := range c.Publish {
		if err := publish(def, spec); err != nil {
			return nil, err
		}
	}

	for _, entry := range c.Environment {
		key, value, ok := strings.Cut(entry, "=")
		if key == "" {
			return nil, fmt.Errorf("invalid environment entry %q, want KEY=VALUE", entry)
		}
		if !ok {
			// A bare KEY takes the host value, like `docker run -e KEY`.
			value, ok = os.LookupEnv(key)
			if !ok {
				logger.Debug().Str("env", key).Msg("host variable not set, skipping")
				continue
			}
		}
		def.SetEnv(key, value)
	}
	for _, key := range passthrough {
		if _, declared := def.Environment[key]; declared {
			continue
		}
		if value, ok := os.LookupEnv(key); ok {
			def.SetEnv(key, value)
		}
	}

	for _, v := range c.Volumes {
		vol, err := volume(v, baseDir)
		if err != nil {
			return nil, err
		}
		def.AddVolume(vol)
	}

	for _, opt := range c.Options {
		def.AddOption(opt)
	}
	if c.Memory != "" {
		limit, err := units.RAMInBytes(c.Memory)
		if err != nil {
			return nil, fmt.Errorf("invalid memory %q: %w", c.Memory, err)
		}
		def.AddOption("--memory=" + strconv.FormatInt(limit, 10))
	}

	def.Network = c.Network
	def.NetworkAlias = c.NetworkAlias
	def.WorkingDir = c.WorkingDir
	if c.RemoveAfterCompletion != nil {
		def.RemoveAfterCompletion = *c.RemoveAfterCompletion
	}
	if c.WaitForAllExposedPorts != nil {
		def.WaitForAllExposedPorts = *c.WaitForAllExposedPorts
	}
	return def, nil
}

// publish adds a "[hostPort:]containerPort[/tcp]" spec, ranges included.
func publish(def *container.Definition, spec string) error {
	mappings, err := nat.ParsePortSpec(spec)
	if err != nil {
		return fmt.Errorf("invalid publish %q: %w", spec, err)
	}
	for _, m := range mappings {
		if m.Port.Proto() != "tcp" {
			return fmt.Errorf("invalid publish %q: only tcp ports are supported", spec)
		}
		if m.Binding.HostIP != "" {
			return fmt.Errorf("invalid publish %q: a host ip cannot be set", spec)
		}
		hostPort := 0
		if m.Binding.HostPort != "" {
			hostPort, err = strconv.Atoi(m.Binding.HostPort)
			if err != nil {
				return fmt.Errorf("invalid publish %q: host port %q", spec, m.Binding.HostPort)
			}
		}
		def.Publish(m.Port.Int(), hostPort)
	}
	return nil
}

func volume(v VolumeSpec, baseDir string) (container.Volume, error) {
	host := ""
	if v.Host != "" {
		expanded, err := security.ExpandPath(v.Host, baseDir)
		if err != nil {
			return container.Volume{}, err
		}
		if err := security.ValidateHostPath(expanded); err != nil {
			return container.Volume{}, err
		}
		host = expanded
	}
	return container.NewVolume(v.Mount, host, v.Create)
}
