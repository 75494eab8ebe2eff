package container

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeInspect(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantState string
		wantPorts map[int]int
	}{
		{
			name:      "published tcp port",
			input:     `[{"State":{"Status":"running"},"NetworkSettings":{"Ports":{"8888/tcp":[{"HostIp":"0.0.0.0","HostPort":"1500"}]}}}]`,
			wantState: "running",
			wantPorts: map[int]int{8888: 1500},
		},
		{
			name:      "null ports",
			input:     `[{"State":{"Status":"created"},"NetworkSettings":{"Ports":null}}]`,
			wantState: "created",
			wantPorts: map[int]int{},
		},
		{
			name:      "absent network settings",
			input:     `[{"State":{"Status":"exited"}}]`,
			wantState: "exited",
			wantPorts: map[int]int{},
		},
		{
			name: "udp and unbound ports ignored",
			input: `[{"State":{"Status":"running"},"NetworkSettings":{"Ports":{
				"53/udp":[{"HostPort":"5353"}],
				"80/tcp":null,
				"443/tcp":[],
				"8080/tcp":[{"HostIp":"0.0.0.0","HostPort":"32768"},{"HostIp":"::","HostPort":"32768"}]
			}}}]`,
			wantState: "running",
			wantPorts: map[int]int{8080: 32768},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			insp, err := DecodeInspect([]byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.wantState, insp.State)
			assert.Equal(t, tt.wantPorts, insp.Ports)
		})
	}
}

func TestDecodeInspectErrors(t *testing.T) {
	_, err := DecodeInspect([]byte(`[]`))
	assert.ErrorIs(t, err, ErrNoInspectData)

	_, err = DecodeInspect([]byte(`not json`))
	assert.Error(t, err)
}
