package config

// Runtime binaries
const (
	RuntimeAuto   = "auto"
	RuntimeDocker = "docker"
	RuntimePodman = "podman"
)

// DefaultFixturesFile is looked up in the working directory.
const DefaultFixturesFile = "fixtures.yaml"

// EnvPrefix prefixes environment overrides, e.g. DOCKERFIXTURE_RUNTIME_BINARY.
const EnvPrefix = "DOCKERFIXTURE"
