package container

import (
	"bufio"
	"strconv"
	"strings"
)

// DefaultTCPFiles are the kernel connection tables probed inside a container.
var DefaultTCPFiles = []string{"/proc/self/net/tcp", "/proc/self/net/tcp6"}

// PortSet is a set of TCP port numbers.
type PortSet map[int]struct{}

// ContainsAll reports whether every port in ports is in s.
func (s PortSet) ContainsAll(ports []int) bool {
	for _, p := range ports {
		if _, ok := s[p]; !ok {
			return false
		}
	}
	return true
}

// ParseListenPorts reads a /proc/net/tcp style table and returns the local
// ports it mentions. The first line is a header. The second field of every
// other line is "<hex-address>:<hex-port>". Malformed lines are skipped.
func ParseListenPorts(table string) PortSet {
	ports := PortSet{}
	scanner := bufio.NewScanner(strings.NewReader(table))
	header := true
	for scanner.Scan() {
		if header {
			header = false
			continue
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		i := strings.LastIndexByte(fields[1], ':')
		if i < 0 {
			continue
		}
		port, err := strconv.ParseUint(fields[1][i+1:], 16, 16)
		if err != nil {
			continue
		}
		ports[int(port)] = struct{}{}
	}
	return ports
}

// probeScript prints file when it exists. A missing table contributes nothing.
func probeScript(file string) string {
	return "[ ! -f " + file + " ] || cat " + file
}
