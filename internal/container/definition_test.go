package container

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefinitionDefaults(t *testing.T) {
	def := NewDefinition("alpine", "sleep", "1")

	assert.Equal(t, "alpine", def.Image())
	assert.Equal(t, []string{"sleep", "1"}, def.Command())
	assert.True(t, def.RemoveAfterCompletion)
	assert.True(t, def.WaitForAllExposedPorts)
	assert.False(t, def.shouldWaitForPorts())
}

func TestDefinitionCommandIsCopied(t *testing.T) {
	cmd := []string{"echo", "a"}
	def := NewDefinition("alpine", cmd...)
	cmd[1] = "b"

	got := def.Command()
	got[0] = "printf"
	assert.Equal(t, []string{"echo", "a"}, def.Command())
}

func TestDefinitionPublish(t *testing.T) {
	def := &Definition{}
	def.Publish(8080, -1)
	def.Publish(22, 2222)

	assert.Equal(t, map[int]int{8080: 0, 22: 2222}, def.PublishedPorts)
	assert.Equal(t, []int{22, 8080}, def.ContainerPorts())
}

func TestDefinitionEqual(t *testing.T) {
	build := func() *Definition {
		d := NewDefinition("alpine", "nc", "-l")
		d.Publish(1234, 0)
		d.SetEnv("A", "1")
		return d
	}

	a, b := build(), build()
	assert.True(t, a.Equal(b))
	assert.NotSame(t, a, b)

	b.Network = "other"
	assert.True(t, a.Equal(b), "network settings are not compared")

	b.SetEnv("A", "2")
	assert.False(t, a.Equal(b))
	assert.False(t, a.Equal(nil))
}

func TestNewVolume(t *testing.T) {
	v, err := NewVolume("/data", "", false)
	require.NoError(t, err)
	assert.Equal(t, Volume{MountPoint: "/data"}, v)

	_, err = NewVolume("", "/tmp", true)
	assert.ErrorIs(t, err, ErrEmptyMountPoint)
}
