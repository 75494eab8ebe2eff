package container

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/docker/docker/api/types"
	"github.com/docker/go-connections/nat"
)

// Container states reported by inspect that matter while waiting.
const (
	StateCreated = "created"
	StateRunning = "running"
)

// ErrNoInspectData is returned when inspect output holds no container.
var ErrNoInspectData = errors.New("inspect output contains no container")

// Inspection holds the facts read from `inspect` output.
type Inspection struct {
	// State is State.Status, e.g. "running" or "exited".
	State string

	// Ports maps published container TCP ports to host ports.
	Ports map[int]int
}

// DecodeInspect parses the JSON array printed by `docker inspect <id>` and
// reads the first element. A missing or null port section yields an empty map.
func DecodeInspect(data []byte) (*Inspection, error) {
	var docs []types.ContainerJSON
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode inspect output: %w", err)
	}
	if len(docs) == 0 {
		return nil, ErrNoInspectData
	}

	doc := docs[0]
	insp := &Inspection{Ports: map[int]int{}}
	if doc.ContainerJSONBase != nil && doc.State != nil {
		insp.State = doc.State.Status
	}
	if doc.NetworkSettings != nil {
		insp.Ports = publishedTCPPorts(doc.NetworkSettings.Ports)
	}
	return insp, nil
}

// publishedTCPPorts keeps "<n>/tcp" entries whose first binding carries a
// numeric host port. Entries without bindings are exposed but not published.
func publishedTCPPorts(portMap nat.PortMap) map[int]int {
	ports := make(map[int]int, len(portMap))
	for port, bindings := range portMap {
		if port.Proto() != "tcp" || len(bindings) == 0 {
			continue
		}
		containerPort := port.Int()
		if containerPort <= 0 {
			continue
		}
		hostPort, err := strconv.Atoi(bindings[0].HostPort)
		if err != nil {
			continue
		}
		ports[containerPort] = hostPort
	}
	return ports
}
