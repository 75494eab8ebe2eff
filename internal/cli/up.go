package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/jakenelson/dockerfixture/internal/config"
	"github.com/jakenelson/dockerfixture/internal/fixture"
	"github.com/jakenelson/dockerfixture/internal/logger"
)

func init() {
	rootCmd.AddCommand(upCmd)
	upCmd.Flags().Bool("no-wait", false, "remove the containers right after they are ready")
}

var upCmd = &cobra.Command{
	Use:   "up [scope...]",
	Short: "Start fixture scopes and keep them running until interrupted",
	Long: `Start the containers of the given scopes (all scopes when none are given),
including every scope they import. Once all are ready, print their host ports
and the arguments of each declared callback, then wait for Ctrl-C and remove
everything that was started.`,
	RunE: runUp,
}

func runUp(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	noWait, _ := cmd.Flags().GetBool("no-wait")

	fixtures, reg, err := loadFixtures()
	if err != nil {
		return err
	}
	docker, err := newDocker(ctx)
	if err != nil {
		return err
	}

	scopes := args
	if len(scopes) == 0 {
		scopes = fixtures.Scopes()
	}

	started := time.Now()
	err = fixture.Run(ctx, docker, reg, scopes, func(s *fixture.Session) error {
		out := cmd.OutOrStdout()
		printContainers(out, s.Containers())
		fmt.Fprintf(out, "\n%d containers ready in %s\n", len(s.Containers()), units.HumanDuration(time.Since(started)))

		if err := printCallbacks(out, s, fixtures, scopes); err != nil {
			return err
		}
		if noWait {
			return nil
		}

		fmt.Fprintln(out, "Press Ctrl-C to remove the containers")
		<-ctx.Done()
		return nil
	})
	if docker.Interrupted() {
		logger.Warn().Msg("cleanup was interrupted, some containers may still be running")
	}
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		logger.Info().Msg("interrupted before all containers were ready")
		return nil
	}
	return err
}

func printContainers(w io.Writer, containers []fixture.Container) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SCOPE\tNAME\tIMAGE\tCONTAINER\tPORTS")
	for _, c := range containers {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", c.Scope, c.Name, c.Image, shortID(c.ID), formatPorts(c.Ports))
	}
	tw.Flush()
}

func printCallbacks(w io.Writer, s *fixture.Session, fixtures *config.FixtureFile, scopes []string) error {
	for _, scope := range scopes {
		for _, cb := range fixtures.Callbacks(scope) {
			ports, err := s.Callback(scope, cb.Refs)
			if err != nil {
				return fmt.Errorf("callback %s/%s: %w", scope, cb.Name, err)
			}
			args := make([]string, len(ports))
			for i, p := range ports {
				args[i] = strconv.Itoa(p)
			}
			fmt.Fprintf(w, "callback %s/%s: %s\n", scope, cb.Name, strings.Join(args, " "))
		}
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
