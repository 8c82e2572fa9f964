package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/harshul/bbdev-cli/internal/catalog"
	"github.com/harshul/bbdev-cli/internal/executor"
	"github.com/harshul/bbdev-cli/internal/history"
	"github.com/harshul/bbdev-cli/internal/logging"
	"github.com/harshul/bbdev-cli/internal/validator"
	"go.uber.org/zap"
)

// Runner executes external commands; *executor.Executor satisfies it
type Runner interface {
	Execute(ctx context.Context, command string, args []string, opts executor.Options) (*executor.Result, error)
}

// Options controls how operations are run
type Options struct {
	BinaryPath string            // bbdev executable
	Env        map[string]string // overlay passed to every run
	Timeout    time.Duration     // used when the ExecutionContext has none
}

// ExecutionContext is one operation request
type ExecutionContext struct {
	Command          string
	Operation        string
	Arguments        map[string]any
	WorkingDirectory string
	Timeout          time.Duration
	Sink             executor.Sink
}

type Orchestrator struct {
	opts      Options
	catalog   *catalog.Catalog
	validator *validator.Validator
	runner    Runner
	history   *history.Ring
	logger    *zap.Logger
}

func New(opts Options, cat *catalog.Catalog, v *validator.Validator, runner Runner, hist *history.Ring, logger *zap.Logger) *Orchestrator {
	if opts.BinaryPath == "" {
		opts.BinaryPath = "bbdev"
	}
	return &Orchestrator{
		opts:      opts,
		catalog:   cat,
		validator: v,
		runner:    runner,
		history:   hist,
		logger:    logging.OrNop(logger).Named("orchestrator"),
	}
}

// Run validates and executes one operation. A nonzero exit is a Result with
// Success=false, not an error. Every run that reaches the executor is
// recorded in history, including cancelled ones.
func (o *Orchestrator) Run(ctx context.Context, ec ExecutionContext) (*executor.Result, error) {
	if err := checkWorkspace(ec.WorkingDirectory); err != nil {
		return nil, o.fail(ec, WorkspaceMissing, err)
	}

	def, ok := o.catalog.Lookup(ec.Command, ec.Operation)
	if !ok {
		return nil, o.fail(ec, UnknownOperation, nil)
	}

	if err := o.validator.ValidateIn(ec.WorkingDirectory, def.Arguments, ec.Arguments); err != nil {
		return nil, o.fail(ec, InvalidArguments, err)
	}

	args := BuildCommandArguments(ec.Command, ec.Operation, ec.Arguments, def.ArgumentNames())
	timeout := ec.Timeout
	if timeout == 0 {
		timeout = o.opts.Timeout
	}

	id := uuid.NewString()
	log := o.logger.With(zap.String("run", id), zap.String("command", ec.Command), zap.String("operation", ec.Operation))
	log.Info("running operation", zap.Strings("args", args), zap.String("dir", ec.WorkingDirectory))

	res, err := o.runner.Execute(ctx, o.opts.BinaryPath, args, executor.Options{
		Dir:     ec.WorkingDirectory,
		Env:     o.opts.Env,
		Timeout: timeout,
		Sink:    ec.Sink,
	})
	o.record(id, ec, res, err)

	if err != nil {
		log.Warn("operation did not complete", zap.Error(err))
		return res, o.fail(ec, ExecutionFailed, err)
	}
	log.Info("operation finished",
		zap.Bool("success", res.Success),
		zap.Int("exitCode", res.ExitCode),
		zap.Duration("duration", res.Duration))
	return res, nil
}

// Definition returns the catalog entry for command/operation
func (o *Orchestrator) Definition(command, operation string) (catalog.OperationDefinition, error) {
	def, ok := o.catalog.Lookup(command, operation)
	if !ok {
		return catalog.OperationDefinition{}, &Error{Kind: UnknownOperation, Command: command, Operation: operation}
	}
	return def, nil
}

// History returns the ring runs are recorded in
func (o *Orchestrator) History() *history.Ring {
	return o.history
}

func (o *Orchestrator) record(id string, ec ExecutionContext, res *executor.Result, err error) {
	if o.history == nil {
		return
	}
	e := history.Entry{
		ID:        id,
		Command:   ec.Command,
		Operation: ec.Operation,
		ExitCode:  -1,
		Cancelled: errors.Is(err, executor.Cancelled),
	}
	if res != nil {
		e.Success = res.Success
		e.ExitCode = res.ExitCode
		e.StartTime = res.StartTime
		e.EndTime = res.EndTime
		e.Duration = res.Duration
		e.StderrTail = res.Stderr
	}
	if err != nil {
		e.Success = false
		e.Error = err.Error()
	}
	o.history.Append(e)
}

func (o *Orchestrator) fail(ec ExecutionContext, kind Kind, err error) error {
	e := &Error{Kind: kind, Command: ec.Command, Operation: ec.Operation, Err: err}
	if kind != ExecutionFailed {
		o.logger.Debug("operation rejected", zap.Error(e))
	}
	return e
}

func checkWorkspace(dir string) error {
	if dir == "" {
		return fmt.Errorf("no working directory")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	return nil
}

// BuildCommandArguments flattens values into the bbdev argument vector:
// command and operation first, then `--name` for true booleans and
// `--name value` for everything else. False booleans and empty values are
// dropped. Names listed in order come first; the rest follow sorted.
func BuildCommandArguments(command, operation string, values map[string]any, order []string) []string {
	args := []string{command, operation}

	seen := make(map[string]bool, len(values))
	names := make([]string, 0, len(values))
	for _, name := range order {
		if _, ok := values[name]; ok && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	var rest []string
	for name := range values {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	names = append(names, rest...)

	for _, name := range names {
		switch v := values[name].(type) {
		case nil:
		case bool:
			if v {
				args = append(args, "--"+name)
			}
		case string:
			if v != "" {
				args = append(args, "--"+name, v)
			}
		default:
			args = append(args, "--"+name, formatValue(v))
		}
	}
	return args
}

func formatValue(v any) string {
	switch n := v.(type) {
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(n), 'f', -1, 32)
	case int:
		return strconv.Itoa(n)
	case int64:
		return strconv.FormatInt(n, 10)
	default:
		return fmt.Sprint(v)
	}
}
