package cli

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(portsCmd)
}

var portsCmd = &cobra.Command{
	Use:   "ports <container>",
	Short: "Print the published TCP ports of a container",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		docker, err := newDocker(cmd.Context())
		if err != nil {
			return err
		}
		ports, err := docker.PublishedPorts(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		for _, p := range slices.Sorted(maps.Keys(ports)) {
			fmt.Fprintf(cmd.OutOrStdout(), "%d/tcp -> %d\n", p, ports[p])
		}
		return nil
	},
}

// formatPorts renders a port map as "80->32768, 443->32769".
func formatPorts(ports map[int]int) string {
	parts := make([]string, 0, len(ports))
	for _, p := range slices.Sorted(maps.Keys(ports)) {
		parts = append(parts, fmt.Sprintf("%d->%d", p, ports[p]))
	}
	return strings.Join(parts, ", ")
}
