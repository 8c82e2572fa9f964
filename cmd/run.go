package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/harshul/bbdev-cli/internal/catalog"
	"github.com/harshul/bbdev-cli/internal/executor"
	"github.com/harshul/bbdev-cli/internal/orchestrator"
	"github.com/harshul/bbdev-cli/internal/thermal"
	"github.com/harshul/bbdev-cli/internal/ui"
	"github.com/harshul/bbdev-cli/internal/validator"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run <command> <operation>",
	Short: "Run one bbdev operation",
	Long: `The run command validates the arguments of a bbdev operation,
runs it in the workspace, and streams its output.

Arguments are passed as --arg name=value; a bare --arg name sets a
boolean. Operations with a "job" argument get a job count suited to
this machine when none is given.

Examples:
  bbx run verilator build --arg job=8
  bbx run verilator sim --arg binary=build/hello.elf --arg batch
  bbx run vcs sim -i`,
	Args: cobra.ExactArgs(2),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringArrayP("arg", "a", nil, "Operation argument as name=value (repeatable)")
	runCmd.Flags().DurationP("timeout", "t", 0, "Override the operation timeout (0 = use config)")
	runCmd.Flags().Bool("no-timeout", false, "Let the operation run until it exits")
	runCmd.Flags().BoolP("interactive", "i", false, "Prompt for arguments that were not given")
	runCmd.Flags().BoolP("quiet", "q", false, "Hide progress messages")
	runCmd.Flags().Bool("no-auto-jobs", false, "Do not pick a job count from the hardware")
}

func runRun(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	timeout, _ := cmd.Flags().GetDuration("timeout")
	noTimeout, _ := cmd.Flags().GetBool("no-timeout")
	interactive, _ := cmd.Flags().GetBool("interactive")
	quiet, _ := cmd.Flags().GetBool("quiet")
	noAutoJobs, _ := cmd.Flags().GetBool("no-auto-jobs")
	rawArgs, _ := cmd.Flags().GetStringArray("arg")

	if noTimeout {
		timeout = executor.NoTimeout
	}

	orch := a.orchestrator()
	def, err := orch.Definition(args[0], args[1])
	if err != nil {
		return fmt.Errorf("%w (see 'bbx ops %s')", err, args[0])
	}

	values, err := parseArgs(def, rawArgs)
	if err != nil {
		return err
	}

	if interactive {
		if !isatty.IsTerminal(os.Stdin.Fd()) {
			return fmt.Errorf("--interactive needs a terminal")
		}
		values, err = ui.PromptArguments(ui.TeaPrompter{}, def, values)
		if err != nil {
			return err
		}
	}

	ctx := cmd.Context()
	if !noAutoJobs {
		if jobs, ok := defaultJobs(def, values, func() int { return thermal.RecommendedJobs(ctx) }); ok {
			values["job"] = jobs
			a.logger.Info("using hardware job count", zap.Int64("job", jobs))
		}
	}

	sink := ui.NewConsoleSink(os.Stdout, os.Stderr, "", quiet)
	res, runErr := orch.Run(ctx, orchestrator.ExecutionContext{
		Command:          def.Command,
		Operation:        def.Name,
		Arguments:        values,
		WorkingDirectory: a.workspace,
		Timeout:          timeout,
		Sink:             sink,
	})

	if entry, ok := orch.History().Latest(); ok {
		fmt.Println()
		fmt.Print(ui.RenderSummary(entry))
	}

	if runErr != nil {
		if verrs, ok := validator.AsErrors(runErr); ok {
			for _, ve := range verrs {
				ui.Std.Error(ve.Error())
			}
		}
		return runErr
	}
	if !res.Success {
		return &exitError{
			code: exitCodeOf(res),
			err:  fmt.Errorf("%s %s exited with code %d", def.Command, def.Name, res.ExitCode),
		}
	}
	return nil
}

// parseArgs turns --arg values into typed argument values
func parseArgs(def catalog.OperationDefinition, raw []string) (map[string]any, error) {
	values := make(map[string]any, len(raw))
	for _, kv := range raw {
		name, value, hasValue := strings.Cut(kv, "=")
		name = strings.TrimPrefix(strings.TrimSpace(name), "--")
		if name == "" {
			return nil, fmt.Errorf("malformed --arg %q", kv)
		}

		arg, ok := def.Argument(name)
		if !ok {
			return nil, fmt.Errorf("%s %s has no argument %q (known: %s)",
				def.Command, def.Name, name, strings.Join(def.ArgumentNames(), ", "))
		}
		if !hasValue && arg.Type != catalog.TypeBoolean {
			return nil, fmt.Errorf("argument %q needs a value (--arg %s=...)", name, name)
		}

		v, err := arg.Parse(value)
		if err != nil {
			return nil, err
		}
		values[name] = v
	}
	return values, nil
}

// defaultJobs reports the job count to fill in when def takes a numeric
// "job" argument that was not given
func defaultJobs(def catalog.OperationDefinition, values map[string]any, recommend func() int) (int64, bool) {
	arg, ok := def.Argument("job")
	if !ok || arg.Type != catalog.TypeNumber {
		return 0, false
	}
	if _, given := values["job"]; given {
		return 0, false
	}
	return int64(recommend()), true
}

func exitCodeOf(res *executor.Result) int {
	if res.ExitCode > 0 && res.ExitCode < 256 {
		return res.ExitCode
	}
	return 1
}
