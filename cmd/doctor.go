package main

import (
	"fmt"

	"github.com/harshul/bbdev-cli/internal/doctor"
	"github.com/harshul/bbdev-cli/internal/ui"
	"github.com/spf13/cobra"
)

// doctorCmd checks the toolchain and host
var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the bbdev installation, simulators, and this machine",
	RunE:  runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	d := doctor.Diagnose(cmd.Context(), doctor.Options{
		BbdevPath:   a.cfg.BbdevPath,
		Workspace:   a.workspace,
		DefaultPort: a.cfg.Server.DefaultPort,
	})
	fmt.Print(ui.RenderDoctor(d))

	if !d.Healthy {
		return fmt.Errorf("found %d issue(s)", len(d.Issues))
	}
	fmt.Println()
	ui.Std.Success("Ready to run bbdev")
	return nil
}
