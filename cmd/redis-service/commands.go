package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/stone-age-io/redis-service/internal/config"
	"github.com/stone-age-io/redis-service/internal/launcher"
	"github.com/stone-age-io/redis-service/internal/logging"
	"github.com/stone-age-io/redis-service/internal/redisctl"
	"github.com/stone-age-io/redis-service/internal/service"
	"github.com/stone-age-io/redis-service/internal/supervisor"
	"go.uber.org/zap"
)

// Exit code for configuration errors found before the dispatcher is reached
const exitConfigError = 2

// GlobalFlags holds the persistent flags shared by all commands
type GlobalFlags struct {
	SettingsFile string
	LogLevel     string
	LogFile      string
}

func buildRoot(exitCode *int) *cobra.Command {
	flags := &GlobalFlags{}

	root := &cobra.Command{
		Use:   "redis-service [serviceName] [configFilePath]",
		Short: "Run redis-server as a supervised system service",
		Long: `Runs redis-server under the system service manager.

When started by the service manager the program launches
"redis-server <serviceName> <configFilePath>", stops it with the SHUTDOWN
command when the service is stopped, and reports its status back.
Defaults: serviceName "Redis", configFilePath "redis.conf".`,
		Args:          cobra.MaximumNArgs(2),
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			*exitCode = runService(cmd, args, flags)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&flags.SettingsFile, "settings", "", "optional settings file (yaml, json or toml)")
	root.PersistentFlags().StringVar(&flags.LogLevel, "log-level", "", "minimum log level: debug, verbose, notice, warning, error")
	root.PersistentFlags().StringVar(&flags.LogFile, "log-file", "", "service log file")

	root.AddCommand(
		installCommand(flags),
		uninstallCommand(),
		controlCommand("start", "Start the installed service"),
		controlCommand("stop", "Stop the installed service"),
		statusCommand(),
	)

	return root
}

// loadConfig builds the configuration from the flags and positional arguments
func loadConfig(args []string, flags *GlobalFlags) (*config.Config, error) {
	opts := config.Options{
		SettingsFile: flags.SettingsFile,
		LogLevel:     flags.LogLevel,
		LogFile:      flags.LogFile,
	}
	if len(args) > 0 {
		opts.ServiceName = args[0]
	}
	if len(args) > 1 {
		opts.ConfigPath = args[1]
	}
	return config.Load(opts)
}

// runService is the service entry point. The return value is the process
// exit code.
func runService(cmd *cobra.Command, args []string, flags *GlobalFlags) int {
	exe, err := os.Executable()
	if err != nil {
		exe = os.Args[0]
	}

	cfg, err := loadConfig(args, flags)
	if err != nil {
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(), err)
		return exitConfigError
	}

	// The service manager starts services in the system directory; relative
	// paths (redis-server, redis.conf, the log file) are resolved next to
	// this executable instead.
	launchDir := ""
	if cfg.ChangeDir {
		launchDir = filepath.Dir(exe)
		if err := os.Chdir(launchDir); err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "failed to change directory: %v\n", err)
		}
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "failed to initialize logger: %v\n", err)
		return exitConfigError
	}
	defer logger.Close()

	logger.Debug("Begin",
		zap.String("version", version),
		zap.String("service", cfg.ServiceName),
		zap.String("config_file", cfg.ConfigPath))

	l := launcher.New(logger, launchDir)
	sup := supervisor.New(cfg, logger,
		supervisor.LauncherFunc(func(name string, args []string) (supervisor.Child, error) {
			proc, err := l.Start(name, args)
			if err != nil {
				return nil, err
			}
			return proc, nil
		}),
		redisctl.New(cfg.Redis, logger),
	)

	err = service.Dispatch(cfg.ServiceName, logger, sup.Run)
	var exitErr *service.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		logger.Notice("Service stopped with a failure code", zap.Int32("exit_code", int32(exitErr.Code)))
	case errors.Is(err, service.ErrNotService):
		logger.Debug("Not started by the service dispatcher")
		service.PrintGuidance(cmd.OutOrStdout(), cfg.ServiceName, exe, cfg.ConfigPath)
	default:
		logger.Error("Failed to start the service dispatcher", zap.Error(err))
	}

	logger.Debug("End")
	return service.ExitCodeFor(err)
}

func installCommand(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "install [serviceName] [configFilePath]",
		Short: "Install the service with the system service manager",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(args, flags)
			if err != nil {
				return err
			}
			exe, err := os.Executable()
			if err != nil {
				return fmt.Errorf("failed to locate executable: %w", err)
			}

			arguments, err := serviceArguments(cfg, flags)
			if err != nil {
				return err
			}

			if err := service.Install(service.AdminConfig{
				Name:       cfg.ServiceName,
				Executable: exe,
				Arguments:  arguments,
			}); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Service %s installed\n", cfg.ServiceName)
			return nil
		},
	}
}

// serviceArguments returns the arguments the service manager passes back to
// the program. The settings file is made absolute since services do not
// start in the installer's working directory.
func serviceArguments(cfg *config.Config, flags *GlobalFlags) ([]string, error) {
	arguments := cfg.Args()
	if flags.SettingsFile != "" {
		settings, err := filepath.Abs(flags.SettingsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve settings file: %w", err)
		}
		arguments = append(arguments, "--settings", settings)
	}
	return arguments, nil
}

func uninstallCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall [serviceName]",
		Short: "Remove the service from the system service manager",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := serviceNameArg(args)
			if err := service.Uninstall(name); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Service %s removed\n", name)
			return nil
		},
	}
}

func controlCommand(action, short string) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   action + " [serviceName]",
		Short: short,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := serviceNameArg(args)
			if err := service.Control(name, action, timeout); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Service %s %s requested\n", name, action)
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "time to wait for the service to stop")
	return cmd
}

func statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status [serviceName]",
		Short: "Show the state of the installed service",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := serviceNameArg(args)
			state, err := service.Query(name)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", name, state)
			return nil
		},
	}
}

func serviceNameArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return config.DefaultServiceName
}
