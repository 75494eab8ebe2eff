package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jakenelson/dockerfixture/internal/config"
	"github.com/jakenelson/dockerfixture/internal/container"
	"github.com/jakenelson/dockerfixture/internal/logger"
	"github.com/jakenelson/dockerfixture/internal/namespace"
	"github.com/jakenelson/dockerfixture/internal/process"
)

var (
	cfgFile string
	cfg     *config.Config

	// newRunner creates the process runner behind every runtime call.
	newRunner = func() process.Runner { return process.ExecRunner{} }

	// closeLogger flushes the log file once a command finishes.
	closeLogger = logger.Close
)

var rootCmd = &cobra.Command{
	Use:   "dockerfixture",
	Short: "Start disposable containers as test fixtures",
	Long: `Dockerfixture starts the containers declared in a fixture file, waits until
they are running and listening on their published ports, reports the host
ports they were given and removes them again.

Examples:
  dockerfixture up                      # Start every scope in fixtures.yaml
  dockerfixture up api -f ci.yaml       # Start one scope from another file
  dockerfixture run tools migrate       # Run a container to completion
  dockerfixture ports 3f2a9c            # Show published ports of a container
  dockerfixture --runtime podman up     # Use podman instead of docker`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initLogger()
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if err := closeLogger(); err != nil {
			return fmt.Errorf("failed to close log file: %w", err)
		}
		return nil
	},
}

func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/dockerfixture/config.yaml)")
	rootCmd.PersistentFlags().StringP("fixtures", "f", "", "fixture file (default: fixtures.yaml)")
	rootCmd.PersistentFlags().String("runtime", "", "container runtime binary: docker, podman or auto (overrides config)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	// Bind flags to viper for config integration
	viper.BindPFlag("fixtures.file", rootCmd.PersistentFlags().Lookup("fixtures"))
	viper.BindPFlag("runtime.binary", rootCmd.PersistentFlags().Lookup("runtime"))
	viper.BindPFlag("log.debug", rootCmd.PersistentFlags().Lookup("debug"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, "Warning: could not find home directory:", err)
		} else {
			viper.AddConfigPath(home + "/.config/dockerfixture")
		}

		// Search for config in standard locations
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	// Environment variables, e.g. DOCKERFIXTURE_RUNTIME_BINARY
	viper.SetEnvPrefix(config.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintln(os.Stderr, "Warning: error reading config file:", err)
		}
	}

	// Load into config struct
	cfg = config.LoadConfig()
}

func initLogger() error {
	if cfg.Log.Dir == "" {
		logger.Init(cfg.Log.Debug)
		return nil
	}
	if err := logger.InitWithFile(cfg.Log.Debug, cfg.LogFile()); err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	return nil
}

// newDocker creates the runtime facade, detecting the binary when configured
// as "auto".
func newDocker(ctx context.Context) (*container.Docker, error) {
	runner := newRunner()
	opts := cfg.DockerOptions(runner)
	if opts.Binary == config.RuntimeAuto {
		bin, err := container.DetectRuntime(ctx, runner)
		if err != nil {
			return nil, err
		}
		opts.Binary = bin
	}
	logger.Debug().Str("runtime", opts.Binary).Msg("using container runtime")
	return container.New(opts), nil
}

// loadFixtures reads the configured fixture file and declares its scopes.
func loadFixtures() (*config.FixtureFile, *namespace.Registry, error) {
	f, err := config.LoadFixtures(cfg.Fixtures.File)
	if err != nil {
		return nil, nil, err
	}
	reg, err := f.Registry(cfg.Environment.Passthrough)
	if err != nil {
		return nil, nil, err
	}
	return f, reg, nil
}
