package native

import (
	"context"
	"fmt"
	"time"

	libovsdbclient "github.com/ovn-org/libovsdb/client"
	"github.com/ovn-org/libovsdb/model"
	libovsdb "github.com/ovn-org/libovsdb/ovsdb"
	"k8s.io/klog/v2"

	libovsdbops "github.com/ovn-org/ovsdb-frontend/pkg/libovsdb/ops"
	"github.com/ovn-org/ovsdb-frontend/pkg/metrics"
	"github.com/ovn-org/ovsdb-frontend/pkg/nbdb"
	"github.com/ovn-org/ovsdb-frontend/pkg/ovsdb"
)

const backendName = "native"

// buildFunc returns the operations of a command. It may set the command
// result, or the model the command inserts.
type buildFunc func(txn *txnContext, cmd *command) ([]libovsdb.Operation, error)

// command is one OVN operation run over the native connection
type command struct {
	api   *OvnNative
	desc  string
	build buildFunc

	// inserted is the row the command creates, its uuid becomes the result
	inserted model.Model
	result   interface{}
}

var _ ovsdb.Command = &command{}

func (c *command) Execute(ctx context.Context, opts ...ovsdb.TransactionOption) error {
	txn := c.api.Transaction(opts...)
	if err := txn.Add(c); err != nil {
		return err
	}
	_, err := txn.Commit(ctx)
	return err
}

func (c *command) Result() interface{} {
	return c.result
}

func (c *command) String() string {
	return c.desc
}

// txnContext is what the commands of one commit share. Rows inserted by a
// command are visible by name to the commands after it.
type txnContext struct {
	ctx    context.Context
	client libovsdbclient.Client

	switches    map[string]*nbdb.LogicalSwitch
	ports       map[string]*nbdb.LogicalSwitchPort
	routers     map[string]*nbdb.LogicalRouter
	routerPorts map[string]*nbdb.LogicalRouterPort
}

func newTxnContext(ctx context.Context, c libovsdbclient.Client) *txnContext {
	return &txnContext{
		ctx:         ctx,
		client:      c,
		switches:    map[string]*nbdb.LogicalSwitch{},
		ports:       map[string]*nbdb.LogicalSwitchPort{},
		routers:     map[string]*nbdb.LogicalRouter{},
		routerPorts: map[string]*nbdb.LogicalRouterPort{},
	}
}

func (t *txnContext) lookupSwitch(name string) (*nbdb.LogicalSwitch, error) {
	if sw, ok := t.switches[name]; ok {
		return sw, nil
	}
	return libovsdbops.LookupLogicalSwitch(t.ctx, t.client, name)
}

func (t *txnContext) lookupPort(name string) (*nbdb.LogicalSwitchPort, error) {
	if lsp, ok := t.ports[name]; ok {
		return lsp, nil
	}
	return libovsdbops.LookupLogicalSwitchPort(t.ctx, t.client, name)
}

func (t *txnContext) lookupRouter(name string) (*nbdb.LogicalRouter, error) {
	if lr, ok := t.routers[name]; ok {
		return lr, nil
	}
	return libovsdbops.LookupLogicalRouter(t.ctx, t.client, name)
}

func (t *txnContext) lookupRouterPort(name string) (*nbdb.LogicalRouterPort, error) {
	if lrp, ok := t.routerPorts[name]; ok {
		return lrp, nil
	}
	return libovsdbops.LookupLogicalRouterPort(t.ctx, t.client, name)
}

// Transaction runs its commands as a single OVSDB transaction
type Transaction struct {
	api       *OvnNative
	opts      ovsdb.TransactionOptions
	commands  []*command
	committed bool
}

// Add appends commands to the transaction
func (t *Transaction) Add(cmds ...ovsdb.Command) error {
	if t.committed {
		return ovsdb.ErrTransactionCommitted
	}
	for _, c := range cmds {
		cmd, ok := c.(*command)
		if !ok || cmd.api != t.api {
			return ovsdb.NewUnsupportedOperationError("command %T cannot run in a native OVN transaction", c)
		}
		t.commands = append(t.commands, cmd)
	}
	return nil
}

// Commit builds the operations of every command against the client cache and
// runs them in one transaction. When it fails and CheckError is not set the
// results stay unset and nil is returned.
func (t *Transaction) Commit(ctx context.Context) (results []interface{}, err error) {
	if t.committed {
		return nil, ovsdb.ErrTransactionCommitted
	}
	t.committed = true

	start := time.Now()
	defer func() {
		metrics.RecordTransaction(backendName, len(t.commands), start, err)
	}()

	for _, cmd := range t.commands {
		cmd.result = nil
		cmd.inserted = nil
	}

	c, err := t.api.conn.Client()
	if err != nil {
		return t.failed(fmt.Errorf("unable to connect to the OVN northbound database: %w", err))
	}

	txn := newTxnContext(ctx, c)
	ops := []libovsdb.Operation{}
	for _, cmd := range t.commands {
		cmdOps, err := cmd.build(txn, cmd)
		if err != nil {
			return t.failed(fmt.Errorf("%s: %w", cmd.desc, err))
		}
		ops = append(ops, cmdOps...)
	}

	opResults, err := t.api.transact(ctx, c, ops)
	if err != nil {
		return t.failed(err)
	}

	inserted := libovsdbops.InsertedUUIDs(ops, opResults)
	results = make([]interface{}, 0, len(t.commands))
	for _, cmd := range t.commands {
		if cmd.inserted != nil {
			if uuid, ok := inserted[libovsdbops.GetUUID(cmd.inserted)]; ok {
				libovsdbops.SetUUID(cmd.inserted, uuid)
				cmd.result = uuid
			}
		}
		results = append(results, cmd.result)
	}
	return results, nil
}

func (t *Transaction) failed(err error) ([]interface{}, error) {
	if t.opts.LogErrors {
		klog.Errorf("OVN northbound transaction of %d commands failed: %v", len(t.commands), err)
	}
	for _, cmd := range t.commands {
		cmd.result = nil
	}
	if t.opts.CheckError {
		return nil, err
	}
	return nil, nil
}
