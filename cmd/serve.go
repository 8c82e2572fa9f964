package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/harshul/bbdev-cli/internal/executor"
	"github.com/harshul/bbdev-cli/internal/server"
	"github.com/harshul/bbdev-cli/internal/ui"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// serveCmd starts bbdev agent servers and keeps them under watch
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start bbdev agent servers and watch them",
	Long: `The serve command launches 'bbdev agent start' on each requested
port and shows a live table of the servers. Without --port one server is
started on the first free port from the configured default.

Keys: s stop selected, a stop all, r refresh, q quit.
Quitting stops every server.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntSliceP("port", "p", nil, "Port to start a server on (repeatable)")
	serveCmd.Flags().IntP("count", "n", 1, "Number of servers on automatic ports when --port is not given")
	serveCmd.Flags().Bool("no-tui", false, "Disable the live view (plain output until interrupted)")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	portList, _ := cmd.Flags().GetIntSlice("port")
	count, _ := cmd.Flags().GetInt("count")
	noTUI, _ := cmd.Flags().GetBool("no-tui")
	useTUI := !noTUI && isatty.IsTerminal(os.Stdout.Fd())

	if len(portList) == 0 {
		if count < 1 {
			return fmt.Errorf("--count must be at least 1")
		}
		portList = make([]int, count) // zeros pick free ports
	}

	if useTUI {
		// info logs on stderr would tear the alt screen
		a.logger = a.logger.WithOptions(zap.IncreaseLevel(zapcore.WarnLevel))
		a.executor = newExecutor(a.cfg, a.logger)
	}

	ctx := cmd.Context()
	mgr := a.serverManager()
	logs := make(chan string, 256)

	var console *ui.ConsoleSink
	if !useTUI {
		console = ui.NewConsoleSink(os.Stdout, os.Stderr, "", false)
	}
	sinkFor := portSinks(logs, console)

	var started int
	for _, port := range portList {
		inst, err := mgr.Start(ctx, port, a.workspace, server.WithSinkFunc(sinkFor))
		if err != nil {
			ui.Std.Error(err.Error())
			continue
		}
		started++
		ui.Std.Success(fmt.Sprintf("Server running at %s (pid %d)", inst.URL(), inst.PID))
	}

	stopTimeout := a.cfg.Server.StopTimeoutDuration() + a.cfg.Server.KillGraceDuration()
	if started == 0 {
		stopAll(mgr, stopTimeout, a.logger)
		return fmt.Errorf("no server could be started")
	}

	if useTUI {
		return ui.RunServe(ctx, mgr, logs, stopTimeout)
	}

	fmt.Print(ui.RenderServers(mgr.GetRunningServers(), -1))
	ui.Std.Info("Press Ctrl+C to stop")
	<-ctx.Done()
	fmt.Println()
	ui.Std.Info("Stopping servers...")
	if err := stopAll(mgr, stopTimeout, a.logger); err != nil {
		return err
	}
	fmt.Print(ui.RenderServers(mgr.GetAllServers(), -1))
	return nil
}

// portSinks labels each server's output with its port. The sink is built
// after registration so automatic ports are labelled too. A nil console
// sends lines to the live view.
func portSinks(logs chan<- string, console *ui.ConsoleSink) func(port int) executor.Sink {
	return func(port int) executor.Sink {
		prefix := fmt.Sprintf("[%d] ", port)
		if console == nil {
			return ui.ChannelSink{Prefix: prefix, C: logs}
		}
		return console.WithPrefix(prefix)
	}
}

func stopAll(mgr *server.Manager, timeout time.Duration, logger *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	err := mgr.StopAll(ctx)
	if err != nil {
		logger.Warn("some servers did not stop cleanly", zap.Error(err))
	}
	return err
}
