package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"github.com/harshul/bbdev-cli/internal/config"
	"github.com/harshul/bbdev-cli/internal/ui"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a .bbdev.yaml with default settings",
	Long: `The init command writes a configuration file with the default
settings: where bbdev lives, the workspace, the operation timeout, and
the agent server ports. With --interactive it asks for the main values.

Custom operations can be added to the file's "operations" list later.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolP("force", "f", false, "Overwrite an existing configuration file")
	initCmd.Flags().BoolP("interactive", "i", false, "Prompt for the main settings")
}

func runInit(cmd *cobra.Command, args []string) error {
	outputPath, _ := cmd.Flags().GetString("config")
	force, _ := cmd.Flags().GetBool("force")
	interactive, _ := cmd.Flags().GetBool("interactive")
	tty := isatty.IsTerminal(os.Stdin.Fd())

	if interactive && !tty {
		return fmt.Errorf("--interactive needs a terminal")
	}

	var prompter ui.Prompter = ui.TeaPrompter{}

	if _, err := os.Stat(outputPath); err == nil && !force {
		if !tty {
			return fmt.Errorf("configuration file already exists at %s. Use --force to overwrite", outputPath)
		}
		overwrite, err := prompter.Confirm("Overwrite "+outputPath+"?", "A configuration file already exists", false)
		if err != nil && !errors.Is(err, ui.ErrPromptCancelled) {
			return err
		}
		if !overwrite {
			ui.Std.Info("Left the existing configuration untouched")
			return nil
		}
	}

	cfg := config.Default()
	if path, err := exec.LookPath(cfg.BbdevPath); err == nil {
		cfg.BbdevPath = path
	}

	if interactive {
		if err := promptConfig(prompter, &cfg); err != nil {
			return err
		}
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.Write(outputPath, cfg); err != nil {
		return fmt.Errorf("failed to write configuration: %w", err)
	}

	ui.Std.Success(fmt.Sprintf("Configuration written to %s", outputPath))
	ui.Std.Field("bbdev", cfg.BbdevPath)
	ui.Std.Field("agent port", strconv.Itoa(cfg.Server.DefaultPort))
	ui.Std.Info("Run 'bbx doctor' to check the toolchain")
	return nil
}

func promptConfig(p ui.Prompter, cfg *config.Config) error {
	bbdev, err := p.Text("bbdev executable", "Path or name on PATH", "bbdev", cfg.BbdevPath)
	if err != nil {
		return err
	}
	cfg.BbdevPath = bbdev

	workspace, err := p.Text("Workspace", "Directory operations run in (empty = current directory)", ".", cfg.Workspace)
	if err != nil {
		return err
	}
	cfg.Workspace = workspace

	port, err := p.Text("Agent port", "First port tried by 'bbx serve'", "8080", strconv.Itoa(cfg.Server.DefaultPort))
	if err != nil {
		return err
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return fmt.Errorf("invalid port %q", port)
	}
	cfg.Server.DefaultPort = n
	return nil
}
