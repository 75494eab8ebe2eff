package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jakenelson/dockerfixture/internal/logger"
	"github.com/jakenelson/dockerfixture/internal/namespace"
)

func init() {
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run <scope> <name>",
	Short: "Run a fixture container to completion and print its output",
	Long: `Run a container declared in the fixture file in the foreground, wait for it
to exit and print what it wrote to stdout. A non-zero exit status fails the
command and reports the container's stderr.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		_, reg, err := loadFixtures()
		if err != nil {
			return err
		}
		ns, err := reg.Build(args[0])
		if err != nil {
			return err
		}
		def, ok := ns.Definition(args[1])
		if !ok {
			return fmt.Errorf("%w: container %q in scope %q", namespace.ErrUnknownName, args[1], args[0])
		}

		docker, err := newDocker(ctx)
		if err != nil {
			return err
		}
		defer func() {
			if err := docker.Close(context.WithoutCancel(ctx)); err != nil {
				logger.Warn().Err(err).Msg("cleanup failed")
			}
		}()

		out, err := docker.RunToCompletion(ctx, def)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), out)
		return nil
	},
}
