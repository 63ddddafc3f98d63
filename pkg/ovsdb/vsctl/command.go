package vsctl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/ovn-org/ovsdb-frontend/pkg/ovsdb"
)

// decoder turns the raw output record of a command into its result. A nil raw
// record means the command produced no output. The returned bool reports
// whether the result is set.
type decoder[T any] func(raw *string) (T, bool, error)

// compose chains a decode step with a transformation of its result
func compose[A, B any](decode decoder[A], transform func(A, bool) (B, bool, error)) decoder[B] {
	return func(raw *string) (B, bool, error) {
		a, set, err := decode(raw)
		if err != nil {
			var zero B
			return zero, false, err
		}
		return transform(a, set)
	}
}

func decodePlain(raw *string) (string, bool, error) {
	if raw == nil {
		return "", false, nil
	}
	return *raw, true, nil
}

// decodeMultiLine splits on the escaped newline sequence the CLI emits
// inside a single --oneline record
func decodeMultiLine(raw *string) ([]string, bool, error) {
	if raw == nil || *raw == "" {
		return []string{}, true, nil
	}
	return strings.Split(*raw, `\n`), true, nil
}

// table is the JSON shape of --format=json query output
type table struct {
	Headings []string        `json:"headings"`
	Data     [][]interface{} `json:"data"`
	rows     []ovsdb.Row
}

func decodeTable(raw *string) (*table, bool, error) {
	if raw == nil || *raw == "" {
		return nil, false, nil
	}
	t := &table{}
	dec := json.NewDecoder(bytes.NewBufferString(*raw))
	dec.UseNumber()
	if err := dec.Decode(t); err != nil {
		return nil, false, &ovsdb.MalformedResultError{Output: *raw, Reason: "invalid JSON", Err: err}
	}
	// the record holds exactly one JSON value
	if _, err := dec.Token(); err != io.EOF {
		return nil, false, &ovsdb.MalformedResultError{Output: *raw, Reason: "trailing data after JSON"}
	}
	t.rows = make([]ovsdb.Row, 0, len(t.Data))
	for _, data := range t.Data {
		if len(data) != len(t.Headings) {
			return nil, false, &ovsdb.MalformedResultError{
				Output: *raw,
				Reason: fmt.Sprintf("row has %d values for %d headings", len(data), len(t.Headings)),
			}
		}
		row := make(ovsdb.Row, len(t.Headings))
		for i, heading := range t.Headings {
			v, err := ovsdb.Decode(data[i])
			if err != nil {
				return nil, false, &ovsdb.MalformedResultError{Output: *raw, Reason: "invalid value", Err: err}
			}
			row[heading] = v
		}
		t.rows = append(t.rows, row)
	}
	return t, true, nil
}

func tableRows(t *table, set bool) ([]ovsdb.Row, bool, error) {
	if !set {
		return nil, false, nil
	}
	return t.rows, true, nil
}

// tableValue unwraps the value of the first column of the first row. Without
// rows the empty row list is kept.
func tableValue(t *table, set bool) (interface{}, bool, error) {
	if !set {
		return nil, false, nil
	}
	if len(t.rows) == 0 || len(t.Headings) == 0 {
		return t.rows, true, nil
	}
	return t.rows[0][t.Headings[0]], true, nil
}

// decodePresence reports whether the record produced any output at all
func decodePresence(raw *string) (bool, bool, error) {
	return raw != nil && *raw != "", true, nil
}

// Command is one pending CLI command. Its result is decoded from the output
// record assigned to it by the transaction that runs it.
type Command[T any] struct {
	runner *Runner
	verb   string
	opts   []string
	args   []string
	decode decoder[T]
	// forced options override the caller's options on Execute
	forced []ovsdb.TransactionOption
	// extra CLI commands chained in args, each producing its own record
	chained int

	value T
	set   bool
}

var _ ovsdb.TypedCommand[string] = &Command[string]{}

func newCommand[T any](r *Runner, verb string, opts, args []string, decode decoder[T]) *Command[T] {
	return &Command[T]{
		runner: r,
		verb:   verb,
		opts:   opts,
		args:   args,
		decode: decode,
	}
}

// NewCommand returns a command whose result is its output record verbatim
func NewCommand(r *Runner, verb string, opts, args []string) *Command[string] {
	return newCommand(r, verb, opts, args, decodePlain)
}

// NewChainedCommand returns a plain command followed by further CLI commands
// that apply in the same transaction. The result is the output record of the
// first command.
func NewChainedCommand(r *Runner, verb string, opts, args []string, chained ...[]string) *Command[string] {
	all := append([]string{}, args...)
	for _, c := range chained {
		all = append(all, "--")
		all = append(all, c...)
	}
	cmd := newCommand(r, verb, opts, all, decodePlain)
	cmd.chained = len(chained)
	return cmd
}

// NewMultiLineCommand returns a command whose result is its output split into lines
func NewMultiLineCommand(r *Runner, verb string, opts, args []string) *Command[[]string] {
	return newCommand(r, verb, opts, args, decodeMultiLine)
}

// NewDbCommand returns a query command whose result is the decoded rows.
// A non-empty columns restricts the columns returned.
func NewDbCommand(r *Runner, verb string, opts, args, columns []string) *Command[[]ovsdb.Row] {
	return newCommand(r, verb, withColumns(opts, columns), args, compose(decodeTable, tableRows))
}

// NewDbGetCommand returns a query command for one column whose result is the
// value of that column in the first row
func NewDbGetCommand(r *Runner, verb string, opts, args []string, column string) *Command[interface{}] {
	return newCommand(r, verb, withColumns(opts, []string{column}), args, compose(decodeTable, tableValue))
}

// NewExistsCommand returns a query command whose result reports whether the
// queried record exists. It never returns or logs invocation failures since
// the query fails when the record is absent.
func NewExistsCommand(r *Runner, verb string, opts, args []string) *Command[bool] {
	cmd := newCommand(r, verb, opts, args, decodePresence)
	cmd.forced = []ovsdb.TransactionOption{ovsdb.CheckError(false), ovsdb.LogErrors(false)}
	return cmd
}

func withColumns(opts, columns []string) []string {
	if len(columns) == 0 {
		return opts
	}
	out := make([]string, 0, len(opts)+1)
	out = append(out, opts...)
	return append(out, "--columns="+strings.Join(columns, ","))
}

// InvocationArgs returns the tokens this command contributes to a combined
// invocation, starting with the "--" command separator
func (c *Command[T]) InvocationArgs() []string {
	args := make([]string, 0, len(c.opts)+len(c.args)+2)
	args = append(args, "--")
	args = append(args, c.opts...)
	args = append(args, c.verb)
	return append(args, c.args...)
}

// Execute runs the command in a transaction of its own
func (c *Command[T]) Execute(ctx context.Context, opts ...ovsdb.TransactionOption) error {
	txn := c.runner.Transaction(append(opts, c.forced...)...)
	if err := txn.Add(c); err != nil {
		return err
	}
	_, err := txn.Commit(ctx)
	return err
}

// Result returns the decoded result, nil while unset
func (c *Command[T]) Result() interface{} {
	if !c.set {
		return nil
	}
	return c.value
}

// Value returns the typed result
func (c *Command[T]) Value() T {
	return c.value
}

func (c *Command[T]) records() int {
	return 1 + c.chained
}

func (c *Command[T]) tool() string {
	return c.runner.tool
}

func (c *Command[T]) setRawResult(raw *string) error {
	value, set, err := c.decode(raw)
	if err != nil {
		return err
	}
	c.value = value
	c.set = set
	return nil
}
