package main

import (
	"fmt"

	"github.com/harshul/bbdev-cli/internal/catalog"
	"github.com/harshul/bbdev-cli/internal/ui"
	"github.com/spf13/cobra"
)

// opsCmd lists the operation catalog
var opsCmd = &cobra.Command{
	Use:     "ops [command]",
	Aliases: []string{"list"},
	Short:   "List the available bbdev operations and their arguments",
	Args:    cobra.MaximumNArgs(1),
	RunE:    runOps,
}

func runOps(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	cat := a.catalog
	if len(args) == 1 {
		ops := cat.Operations(args[0])
		if len(ops) == 0 {
			return fmt.Errorf("unknown command %q (known: %v)", args[0], cat.Commands())
		}
		if cat, err = catalog.New(ops...); err != nil {
			return err
		}
	}

	fmt.Print(ui.RenderOperations(cat))
	return nil
}
