package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/harshul/bbdev-cli/internal/catalog"
	"github.com/harshul/bbdev-cli/internal/config"
	"github.com/harshul/bbdev-cli/internal/executor"
	"github.com/harshul/bbdev-cli/internal/history"
	"github.com/harshul/bbdev-cli/internal/logging"
	"github.com/harshul/bbdev-cli/internal/orchestrator"
	"github.com/harshul/bbdev-cli/internal/ports"
	"github.com/harshul/bbdev-cli/internal/server"
	"github.com/harshul/bbdev-cli/internal/validator"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Version information (can be set at build time)
var (
	version = "0.1.0"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "bbx",
	Short: "Drive the bbdev hardware development toolchain",
	Long: `bbx runs bbdev operations (Verilator, VCS, FireSim, workload builds)
with validated arguments, streams their output, and manages local bbdev
agent servers.

Usage:
  bbx ops                      List the available operations
  bbx run verilator sim ...    Run one operation
  bbx serve                    Start agent servers and watch them
  bbx doctor                   Check the toolchain and this machine
  bbx init                     Write a .bbdev.yaml`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", config.DefaultFileName, "Path to the configuration file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(opsCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(doctorCmd)
}

// exitError carries a process exit code out of a command
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	var ee *exitError
	if errors.As(err, &ee) {
		os.Exit(ee.code)
	}
	os.Exit(1)
}

// app is everything a command needs, assembled from the configuration
type app struct {
	cfg       config.Config
	logger    *zap.Logger
	catalog   *catalog.Catalog
	executor  *executor.Executor
	env       map[string]string
	workspace string
}

func loadApp(cmd *cobra.Command) (*app, error) {
	configPath, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}

	logger, err := logging.New(cfg.LogLevel, verbose)
	if err != nil {
		return nil, err
	}

	cat, err := cfg.Catalog()
	if err != nil {
		return nil, fmt.Errorf("invalid operations in %s: %w", configPath, err)
	}

	env, err := cfg.Environment()
	if err != nil {
		return nil, fmt.Errorf("failed to build environment: %w", err)
	}

	workspace, err := cfg.WorkspaceDir()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace: %w", err)
	}

	logger.Debug("configuration loaded",
		zap.String("path", configPath),
		zap.String("bbdev", cfg.BbdevPath),
		zap.String("workspace", workspace),
		zap.Int("operations", len(cat.All())))

	return &app{
		cfg:       cfg,
		logger:    logger,
		catalog:   cat,
		executor:  newExecutor(cfg, logger),
		env:       env,
		workspace: workspace,
	}, nil
}

func newExecutor(cfg config.Config, logger *zap.Logger) *executor.Executor {
	return executor.New(logger, executor.WithKillGrace(cfg.Server.KillGraceDuration()))
}

func (a *app) orchestrator() *orchestrator.Orchestrator {
	return orchestrator.New(orchestrator.Options{
		BinaryPath: a.cfg.BbdevPath,
		Env:        a.env,
		Timeout:    a.cfg.TimeoutDuration(),
	}, a.catalog, validator.New(), a.executor, history.New(a.cfg.HistorySize), a.logger)
}

func (a *app) serverManager() *server.Manager {
	host := ports.NewHost()
	return server.NewManager(server.Config{
		BinaryPath:   a.cfg.BbdevPath,
		DefaultPort:  a.cfg.Server.DefaultPort,
		PortAttempts: a.cfg.Server.PortAttempts,
		StartTimeout: a.cfg.Server.StartTimeoutDuration(),
		StopTimeout:  a.cfg.Server.StopTimeoutDuration(),
		KillGrace:    a.cfg.Server.KillGraceDuration(),
		Env:          a.env,
	}, a.executor, host, host, a.logger)
}

func (a *app) close() {
	_ = a.logger.Sync()
}
