package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jakenelson/dockerfixture/internal/namespace"
	"github.com/jakenelson/dockerfixture/internal/security"
)

const sampleFixtures = `
namespaces:
  base:
    containers:
      db:
        image: postgres:16
        publish: ["5432"]
        environment: ["POSTGRES_PASSWORD=secret=ish"]
  api:
    import: [base]
    containers:
      web:
        image: alpine
        command: nc -lk -p 1234 -e echo 'hello world'
        publish: ["1234", "18080:80"]
        volumes:
          - mount: /data
            host: data
            create: true
          - mount: /cache
        options: ["--init"]
        memory: 64m
        network: testnet
        network_alias: web
        working_dir: /srv
        remove_after_completion: false
        wait_for_all_exposed_ports: false
    callbacks:
      setup: ["web:1234", "db:5432"]
      ping: ["web:80"]
`

func TestLoadFixtures(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fixtures.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleFixtures), 0o644))

	f, err := LoadFixtures(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"api", "base"}, f.Scopes())
	assert.Equal(t, []Callback{
		{Name: "ping", Refs: []string{"web:80"}},
		{Name: "setup", Refs: []string{"web:1234", "db:5432"}},
	}, f.Callbacks("api"))
	assert.Empty(t, f.Callbacks("base"))

	reg, err := f.Registry(nil)
	require.NoError(t, err)
	api, err := reg.Build("api")
	require.NoError(t, err)
	assert.Equal(t, 2, api.Size())

	web, ok := api.Definition("web")
	require.True(t, ok)
	assert.Equal(t, "alpine", web.Image())
	assert.Equal(t, []string{"nc", "-lk", "-p", "1234", "-e", "echo", "hello world"}, web.Command())
	assert.Equal(t, map[int]int{1234: 0, 80: 18080}, web.PublishedPorts)
	assert.Equal(t, []string{"--init", "--memory=67108864"}, web.CustomOptions)
	assert.Equal(t, "testnet", web.Network)
	assert.Equal(t, "web", web.NetworkAlias)
	assert.Equal(t, "/srv", web.WorkingDir)
	assert.False(t, web.RemoveAfterCompletion)
	assert.False(t, web.WaitForAllExposedPorts)

	require.Len(t, web.Volumes, 2)
	assert.Equal(t, "/data", web.Volumes[0].MountPoint)
	assert.True(t, filepath.IsAbs(web.Volumes[0].HostPath))
	assert.Equal(t, "data", filepath.Base(web.Volumes[0].HostPath))
	assert.True(t, web.Volumes[0].CreateIfMissing)
	assert.Empty(t, web.Volumes[1].HostPath)

	db, ok := api.Definition("db")
	require.True(t, ok)
	assert.Equal(t, map[string]string{"POSTGRES_PASSWORD": "secret=ish"}, db.Environment)
	assert.True(t, db.RemoveAfterCompletion)
	assert.True(t, db.WaitForAllExposedPorts)
}

func TestParseFixturesRejectsDuplicateNames(t *testing.T) {
	_, err := ParseFixtures([]byte(`
namespaces:
  base:
    containers:
      db: {image: postgres}
      db: {image: mysql}
`))
	assert.Error(t, err)
}

func TestParseFixturesEmpty(t *testing.T) {
	_, err := ParseFixtures([]byte(`namespaces: {}`))
	assert.Error(t, err)
}

func TestRegistryRejectsCrossScopeDuplicates(t *testing.T) {
	f, err := ParseFixtures([]byte(`
namespaces:
  a:
    containers:
      db: {image: postgres}
  b:
    import: [a]
    containers:
      db: {image: mysql}
`))
	require.NoError(t, err)
	reg, err := f.Registry(nil)
	require.NoError(t, err)

	_, err = reg.Build("b")
	var dup *namespace.DuplicateNameError
	assert.ErrorAs(t, err, &dup)
}

func TestContainerSpecEnvironment(t *testing.T) {
	t.Setenv("DOCKERFIXTURE_TEST_TOKEN", "from-host")
	t.Setenv("HTTP_PROXY", "http://proxy:3128")

	spec := ContainerSpec{
		Image:       "alpine",
		Environment: []string{"DOCKERFIXTURE_TEST_TOKEN", "DOCKERFIXTURE_TEST_UNSET", "EMPTY=", "HTTP_PROXY=override"},
	}
	def, err := spec.Definition("", []string{"HTTP_PROXY", "DOCKERFIXTURE_TEST_TOKEN"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"DOCKERFIXTURE_TEST_TOKEN": "from-host",
		"EMPTY":                    "",
		"HTTP_PROXY":               "override",
	}, def.Environment)

	def, err = ContainerSpec{Image: "alpine"}.Definition("", []string{"HTTP_PROXY", "DOCKERFIXTURE_TEST_UNSET"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"HTTP_PROXY": "http://proxy:3128"}, def.Environment)
}

func TestContainerSpecErrors(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	tests := []struct {
		name string
		spec ContainerSpec
	}{
		{"missing image", ContainerSpec{}},
		{"udp port", ContainerSpec{Image: "a", Publish: []string{"53/udp"}}},
		{"host ip", ContainerSpec{Image: "a", Publish: []string{"127.0.0.1:8080:80"}}},
		{"bad port", ContainerSpec{Image: "a", Publish: []string{"http"}}},
		{"bad env", ContainerSpec{Image: "a", Environment: []string{"=x"}}},
		{"bad memory", ContainerSpec{Image: "a", Memory: "lots"}},
		{"empty mount", ContainerSpec{Image: "a", Volumes: []VolumeSpec{{Host: "/tmp"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.spec.Definition("", nil)
			assert.Error(t, err)
		})
	}

	_, err := ContainerSpec{Image: "a", Volumes: []VolumeSpec{{Mount: "/keys", Host: "~/.ssh"}}}.Definition("", nil)
	var denied *security.DeniedPathError
	assert.ErrorAs(t, err, &denied)
}

func TestPublishRange(t *testing.T) {
	def, err := ContainerSpec{Image: "a", Publish: []string{"9000-9002", "8000-8001:7000-7001/tcp"}}.Definition("", nil)
	require.NoError(t, err)
	assert.Equal(t, map[int]int{9000: 0, 9001: 0, 9002: 0, 7000: 8000, 7001: 8001}, def.PublishedPorts)
}
