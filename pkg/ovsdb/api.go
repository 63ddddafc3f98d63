package ovsdb

import (
	"context"
)

// Row is one decoded database row keyed by column name
type Row map[string]interface{}

// TransactionOptions control how invocation failures of a commit are reported
type TransactionOptions struct {
	// CheckError propagates invocation failures to the caller instead of
	// leaving the command results unset
	CheckError bool
	// LogErrors logs invocation failures
	LogErrors bool
}

// TransactionOption mutates TransactionOptions
type TransactionOption func(*TransactionOptions)

// CheckError sets whether invocation failures are returned
func CheckError(check bool) TransactionOption {
	return func(o *TransactionOptions) {
		o.CheckError = check
	}
}

// LogErrors sets whether invocation failures are logged
func LogErrors(log bool) TransactionOption {
	return func(o *TransactionOptions) {
		o.LogErrors = log
	}
}

// NewTransactionOptions applies opts over the defaults: failures are logged
// but not returned
func NewTransactionOptions(opts ...TransactionOption) TransactionOptions {
	o := TransactionOptions{CheckError: false, LogErrors: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Command is one pending database operation. Its result is set by the
// transaction that runs it.
type Command interface {
	// Execute runs the command on its own in a single command transaction
	Execute(ctx context.Context, opts ...TransactionOption) error
	// Result returns the decoded result or nil when unset
	Result() interface{}
}

// TypedCommand is a Command whose result has a static type
type TypedCommand[T any] interface {
	Command
	// Value returns the typed result, the zero value of T while unset
	Value() T
}

// Transaction batches commands into one database transaction. Commands run
// and report results in the order they were added. A transaction can be
// committed once.
type Transaction interface {
	Add(cmds ...Command) error
	Commit(ctx context.Context) ([]interface{}, error)
}

// TransactionFactory creates transactions of one backend
type TransactionFactory interface {
	Transaction(opts ...TransactionOption) Transaction
}

// WithTransaction creates a transaction, lets fn populate it and commits it
// when fn returns nil.
func WithTransaction(ctx context.Context, factory TransactionFactory, fn func(Transaction) error, opts ...TransactionOption) ([]interface{}, error) {
	txn := factory.Transaction(opts...)
	if err := fn(txn); err != nil {
		return nil, err
	}
	return txn.Commit(ctx)
}

// OVSAPI is the Open vSwitch database front end
type OVSAPI interface {
	TransactionFactory

	AddBr(name string, mayExist bool, datapathType string) TypedCommand[string]
	DelBr(name string, ifExists bool) TypedCommand[string]
	BrExists(name string) TypedCommand[bool]
	PortToBr(name string) TypedCommand[string]
	IfaceToBr(name string) TypedCommand[string]
	ListBr() TypedCommand[[]string]
	BrGetExternalID(name, field string) TypedCommand[string]
	BrSetExternalID(name, field, value string) TypedCommand[string]

	DbCreate(table string, cols ...ColumnValue) TypedCommand[string]
	DbDestroy(table, record string) TypedCommand[string]
	DbSet(table, record string, cols ...ColumnValue) TypedCommand[string]
	DbClear(table, record, column string) TypedCommand[string]
	DbGet(table, record, column string) TypedCommand[interface{}]
	DbList(table string, records, columns []string, ifExists bool) TypedCommand[[]Row]
	DbFind(table string, conditions []ColumnValue, columns []string) TypedCommand[[]Row]

	SetController(bridge string, targets []string) TypedCommand[string]
	DelController(bridge string) TypedCommand[string]
	GetController(bridge string) TypedCommand[[]string]
	SetFailMode(bridge, mode string) TypedCommand[string]
	SetManager(target string) TypedCommand[string]

	AddPort(bridge, port string, mayExist bool) TypedCommand[string]
	DelPort(port, bridge string, ifExists bool) TypedCommand[string]
	ListPorts(bridge string) TypedCommand[[]string]
	ListIfaces(bridge string) TypedCommand[[]string]
}

// ExecuteValue executes cmd on its own and returns its typed result
func ExecuteValue[T any](ctx context.Context, cmd TypedCommand[T], opts ...TransactionOption) (T, error) {
	if err := cmd.Execute(ctx, opts...); err != nil {
		var zero T
		return zero, err
	}
	return cmd.Value(), nil
}
