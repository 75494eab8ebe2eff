package container

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRunArgs(t *testing.T) {
	def := NewDefinition("alpine", "echo", "hi")
	def.Publish(1234, 0)
	def.Publish(80, 8080)
	def.SetEnv("B", "2")
	def.SetEnv("A", "1")
	def.AddVolume(Volume{MountPoint: "/data"})
	def.AddOption("-m50m")
	def.WorkingDir = "/srv"
	def.Network = "testnet"
	def.NetworkAlias = "web"

	args, err := BuildRunArgs(def, map[string]string{"x": "true"}, "--cidfile", "/tmp/c")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"run",
		"--label", "x=true",
		"--cidfile", "/tmp/c",
		"-p", "8080:80",
		"-p", "1234",
		"-v", "/data",
		"-e", "A=1",
		"-e", "B=2",
		"--rm",
		"-w", "/srv",
		"--network=testnet",
		"--network-alias=web",
		"-m50m",
		"alpine", "echo", "hi",
	}, args)
}

func TestBuildRunArgsMinimal(t *testing.T) {
	def := NewDefinition("alpine")
	def.RemoveAfterCompletion = false

	args, err := BuildRunArgs(def, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"run", "alpine"}, args)
}

func TestBuildRunArgsHostVolume(t *testing.T) {
	dir := t.TempDir()
	def := NewDefinition("alpine")
	def.RemoveAfterCompletion = false
	def.AddVolume(Volume{MountPoint: "/data", HostPath: dir})

	args, err := BuildRunArgs(def, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"run", "-v", dir + ":/data", "alpine"}, args)
}

func TestBuildRunArgsCreatesMissingHostPath(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "a", "b")
	def := NewDefinition("alpine")
	def.AddVolume(Volume{MountPoint: "/data", HostPath: missing, CreateIfMissing: true})

	_, err := BuildRunArgs(def, nil)
	require.NoError(t, err)

	info, err := os.Stat(missing)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestBuildRunArgsMissingHostPath(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope")
	def := NewDefinition("alpine")
	def.AddVolume(Volume{MountPoint: "/data", HostPath: missing})

	_, err := BuildRunArgs(def, nil)

	var volErr *VolumeError
	require.ErrorAs(t, err, &volErr)
	assert.Equal(t, missing, volErr.Path)
	assert.NoDirExists(t, missing)
}

func TestBuildRunArgsEmptyMountPoint(t *testing.T) {
	def := NewDefinition("alpine")
	def.AddVolume(Volume{HostPath: "/tmp"})

	_, err := BuildRunArgs(def, nil)
	assert.ErrorIs(t, err, ErrEmptyMountPoint)
}
