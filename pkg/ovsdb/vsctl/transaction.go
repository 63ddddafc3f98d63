package vsctl

import (
	"context"
	"fmt"
	"strings"
	"time"

	"k8s.io/klog/v2"

	"github.com/ovn-org/ovsdb-frontend/pkg/metrics"
	"github.com/ovn-org/ovsdb-frontend/pkg/ovsdb"
)

// Executor runs an argument vector, whose first element is the tool, as a
// subprocess and returns its trailing-whitespace-trimmed stdout
type Executor interface {
	Execute(ctx context.Context, args []string, runAsRoot, logFailAsError bool) (string, error)
}

// Runner holds what the commands of one CLI tool share: the executor, the
// tool, its timeout in seconds and global options such as --db
type Runner struct {
	exec    Executor
	tool    string
	timeout int
	opts    []string
}

// NewRunner returns a Runner for tool
func NewRunner(exec Executor, tool string, timeout int, opts ...string) *Runner {
	return &Runner{
		exec:    exec,
		tool:    tool,
		timeout: timeout,
		opts:    opts,
	}
}

// Transaction returns a new empty transaction
func (r *Runner) Transaction(opts ...ovsdb.TransactionOption) ovsdb.Transaction {
	return &Transaction{
		runner: r,
		opts:   ovsdb.NewTransactionOptions(opts...),
	}
}

func (r *Runner) baseArgs() []string {
	args := []string{r.tool, fmt.Sprintf("--timeout=%d", r.timeout), "--oneline", "--format=json"}
	return append(args, r.opts...)
}

// command is what a Transaction needs from the commands it runs
type command interface {
	ovsdb.Command
	InvocationArgs() []string
	setRawResult(raw *string) error
	records() int
	tool() string
}

// Transaction runs its commands as one invocation of the CLI, which applies
// them as a single database transaction
type Transaction struct {
	runner    *Runner
	opts      ovsdb.TransactionOptions
	commands  []command
	committed bool
}

// Add appends commands to the transaction
func (t *Transaction) Add(cmds ...ovsdb.Command) error {
	if t.committed {
		return ovsdb.ErrTransactionCommitted
	}
	for _, c := range cmds {
		cmd, ok := c.(command)
		if !ok || cmd.tool() != t.runner.tool {
			return ovsdb.NewUnsupportedOperationError("command %T cannot run in a %s transaction", c, t.runner.tool)
		}
		t.commands = append(t.commands, cmd)
	}
	return nil
}

// Commit runs every command in one invocation and returns their results in
// insertion order. When the invocation fails and CheckError is not set the
// results stay unset and nil is returned. Output with fewer lines than
// commands leaves the trailing commands with empty records, since the
// executor trims the empty lines they print. More lines than commands is a
// malformed result.
func (t *Transaction) Commit(ctx context.Context) (results []interface{}, err error) {
	if t.committed {
		return nil, ovsdb.ErrTransactionCommitted
	}
	t.committed = true

	start := time.Now()
	defer func() {
		metrics.RecordTransaction(t.runner.tool, len(t.commands), start, err)
	}()

	args := t.runner.baseArgs()
	total := 0
	for _, cmd := range t.commands {
		total += cmd.records()
		// reset to the unset result of each command
		if err := cmd.setRawResult(nil); err != nil {
			return nil, err
		}
		args = append(args, cmd.InvocationArgs()...)
	}

	output, execErr := t.runner.exec.Execute(ctx, args, true, false)
	if execErr != nil {
		if t.opts.LogErrors {
			klog.Errorf("Unable to execute %s: %v", strings.Join(args, " "), execErr)
		}
		if t.opts.CheckError {
			return nil, &ovsdb.InvocationError{Args: args, Err: execErr}
		}
		return nil, nil
	}

	records, err := splitRecords(output, total)
	if err != nil {
		klog.Errorf("Could not interpret result of %s: %v", strings.Join(args, " "), err)
		return nil, err
	}
	results = make([]interface{}, 0, len(t.commands))
	next := 0
	for _, cmd := range t.commands {
		// a command chaining further CLI commands owns their records too and
		// takes its result from the first one
		record := records[next]
		next += cmd.records()
		if err := cmd.setRawResult(&record); err != nil {
			klog.Errorf("Could not interpret result of %s: %v", strings.Join(cmd.InvocationArgs(), " "), err)
			return nil, err
		}
		results = append(results, cmd.Result())
	}
	return results, nil
}

// splitRecords unescapes the output and splits it into one record per
// CLI command, by position. The executor trims trailing whitespace, which drops
// the empty records of trailing commands without output, so fewer lines than
// commands are padded with empty records. More lines than commands cannot be
// attributed and are rejected.
func splitRecords(output string, commands int) ([]string, error) {
	output = strings.ReplaceAll(output, `\\`, `\`)
	var lines []string
	if output != "" {
		lines = strings.Split(strings.TrimSuffix(output, "\n"), "\n")
	}
	if len(lines) > commands {
		return nil, &ovsdb.MalformedResultError{
			Output: output,
			Reason: fmt.Sprintf("got %d result lines for %d commands", len(lines), commands),
		}
	}
	records := make([]string, commands)
	for i, line := range lines {
		records[i] = strings.TrimSuffix(line, "\r")
	}
	return records, nil
}
