// Package native implements the OVN northbound front end over a native OVSDB
// connection. Commands are built against the client cache at commit time and
// run as a single OVSDB transaction.
package native

import (
	"context"
	"errors"
	"fmt"

	libovsdbclient "github.com/ovn-org/libovsdb/client"
	"github.com/ovn-org/libovsdb/model"
	libovsdb "github.com/ovn-org/libovsdb/ovsdb"

	libovsdbops "github.com/ovn-org/ovsdb-frontend/pkg/libovsdb/ops"
	"github.com/ovn-org/ovsdb-frontend/pkg/nbdb"
	"github.com/ovn-org/ovsdb-frontend/pkg/ovn"
	"github.com/ovn-org/ovsdb-frontend/pkg/ovsdb"
	"github.com/ovn-org/ovsdb-frontend/pkg/types"
)

// ClientProvider hands out the northbound client, see libovsdb.Connection
type ClientProvider interface {
	Client() (libovsdbclient.Client, error)
}

type transactFunc func(ctx context.Context, c libovsdbclient.Client, ops []libovsdb.Operation) ([]libovsdb.OperationResult, error)

// OvnNative is the OVN northbound front end over a native connection
type OvnNative struct {
	conn     ClientProvider
	transact transactFunc
}

var _ ovn.API = &OvnNative{}

// NewOvnNative returns the native front end using the client of conn
func NewOvnNative(conn ClientProvider) *OvnNative {
	return &OvnNative{
		conn:     conn,
		transact: libovsdbops.TransactAndCheck,
	}
}

// Transaction returns a new empty transaction
func (n *OvnNative) Transaction(opts ...ovsdb.TransactionOption) ovsdb.Transaction {
	return &Transaction{
		api:  n,
		opts: ovsdb.NewTransactionOptions(opts...),
	}
}

func (n *OvnNative) newCommand(desc string, build buildFunc) *command {
	return &command{api: n, desc: desc, build: build}
}

func isNotFound(err error) bool {
	return errors.Is(err, libovsdbclient.ErrNotFound)
}

// notFound returns no error when ifExists is set
func notFound(err error, ifExists bool, kind, name string) error {
	if isNotFound(err) {
		if ifExists {
			return nil
		}
		return fmt.Errorf("%s %s does not exist", kind, name)
	}
	return err
}

func insertUUID(field interface{}, uuids ...string) model.Mutation {
	return model.Mutation{
		Field:   field,
		Mutator: libovsdb.MutateOperationInsert,
		Value:   uuids,
	}
}

func deleteUUID(field interface{}, uuids ...string) model.Mutation {
	return model.Mutation{
		Field:   field,
		Mutator: libovsdb.MutateOperationDelete,
		Value:   uuids,
	}
}

func (n *OvnNative) CreateLSwitch(name string, mayExist bool, extIDs map[string]string) ovsdb.Command {
	extIDs = libovsdbops.CopyExternalIDs(extIDs, nil)
	return n.newCommand("create logical switch "+name, func(txn *txnContext, cmd *command) ([]libovsdb.Operation, error) {
		if mayExist {
			sw, err := txn.lookupSwitch(name)
			if err == nil {
				cmd.result = sw.UUID
				return nil, nil
			}
			if !isNotFound(err) {
				return nil, err
			}
		}
		sw := &nbdb.LogicalSwitch{
			UUID:        libovsdbops.BuildNamedUUID(),
			Name:        name,
			ExternalIDs: libovsdbops.CopyExternalIDs(extIDs, nil),
		}
		ops, err := txn.client.Create(sw)
		if err != nil {
			return nil, err
		}
		txn.switches[name] = sw
		cmd.inserted = sw
		return ops, nil
	})
}

func (n *OvnNative) SetLSwitchExtID(name, key, value string) ovsdb.Command {
	return n.newCommand("set external id of logical switch "+name, func(txn *txnContext, cmd *command) ([]libovsdb.Operation, error) {
		sw, err := txn.lookupSwitch(name)
		if err != nil {
			return nil, notFound(err, false, "logical switch", name)
		}
		sw.ExternalIDs = libovsdbops.CopyExternalIDs(sw.ExternalIDs, map[string]string{key: value})
		return txn.client.Where(sw).Update(sw, &sw.ExternalIDs)
	})
}

func (n *OvnNative) DeleteLSwitch(name string, extID *ovn.ExternalID, ifExists bool) (ovsdb.Command, error) {
	if name == "" {
		return nil, ovsdb.NewUnsupportedOperationError("logical switches can only be deleted by name")
	}
	return n.newCommand("delete logical switch "+name, func(txn *txnContext, cmd *command) ([]libovsdb.Operation, error) {
		sw, err := txn.lookupSwitch(name)
		if err != nil {
			return nil, notFound(err, ifExists, "logical switch", name)
		}
		delete(txn.switches, name)
		return txn.client.Where(sw).Delete()
	}), nil
}

// applyLPortColumns sets the given columns on lsp and returns the fields to update
func applyLPortColumns(lsp *nbdb.LogicalSwitchPort, cols ovn.LPortColumns) []interface{} {
	var fields []interface{}
	if cols.Addresses != nil {
		lsp.Addresses = append([]string{}, cols.Addresses...)
		fields = append(fields, &lsp.Addresses)
	}
	if cols.PortSecurity != nil {
		lsp.PortSecurity = append([]string{}, cols.PortSecurity...)
		fields = append(fields, &lsp.PortSecurity)
	}
	if cols.Type != "" {
		lsp.Type = cols.Type
		fields = append(fields, &lsp.Type)
	}
	if cols.Options != nil {
		lsp.Options = libovsdbops.CopyExternalIDs(cols.Options, nil)
		fields = append(fields, &lsp.Options)
	}
	if cols.ExternalIDs != nil {
		lsp.ExternalIDs = libovsdbops.CopyExternalIDs(cols.ExternalIDs, nil)
		fields = append(fields, &lsp.ExternalIDs)
	}
	if cols.Enabled != nil {
		enabled := *cols.Enabled
		lsp.Enabled = &enabled
		fields = append(fields, &lsp.Enabled)
	}
	return fields
}

func (n *OvnNative) CreateLPort(name, lswitch string, mayExist bool, cols ovn.LPortColumns) ovsdb.Command {
	return n.newCommand("create logical port "+name, func(txn *txnContext, cmd *command) ([]libovsdb.Operation, error) {
		sw, err := txn.lookupSwitch(lswitch)
		if err != nil {
			return nil, notFound(err, false, "logical switch", lswitch)
		}
		if mayExist {
			lsp, err := txn.lookupPort(name)
			if err == nil {
				cmd.result = lsp.UUID
				return nil, nil
			}
			if !isNotFound(err) {
				return nil, err
			}
		}
		lsp := &nbdb.LogicalSwitchPort{
			UUID: libovsdbops.BuildNamedUUID(),
			Name: name,
		}
		applyLPortColumns(lsp, cols)
		ops, err := txn.client.Create(lsp)
		if err != nil {
			return nil, err
		}
		mutateOps, err := txn.client.Where(sw).Mutate(sw, insertUUID(&sw.Ports, lsp.UUID))
		if err != nil {
			return nil, err
		}
		txn.ports[name] = lsp
		cmd.inserted = lsp
		return append(ops, mutateOps...), nil
	})
}

func (n *OvnNative) updateLPort(desc, name string, ifExists bool, apply func(*nbdb.LogicalSwitchPort) []interface{}) ovsdb.Command {
	return n.newCommand(desc+" of logical port "+name, func(txn *txnContext, cmd *command) ([]libovsdb.Operation, error) {
		lsp, err := txn.lookupPort(name)
		if err != nil {
			return nil, notFound(err, ifExists, "logical port", name)
		}
		fields := apply(lsp)
		if len(fields) == 0 {
			return nil, nil
		}
		return txn.client.Where(lsp).Update(lsp, fields...)
	})
}

func (n *OvnNative) SetLPort(name string, ifExists bool, cols ovn.LPortColumns) ovsdb.Command {
	return n.updateLPort("set columns", name, ifExists, func(lsp *nbdb.LogicalSwitchPort) []interface{} {
		return applyLPortColumns(lsp, cols)
	})
}

func (n *OvnNative) SetLPortMAC(name string, macs []string) ovsdb.Command {
	return n.updateLPort("set addresses", name, false, func(lsp *nbdb.LogicalSwitchPort) []interface{} {
		lsp.Addresses = append([]string{}, macs...)
		return []interface{}{&lsp.Addresses}
	})
}

func (n *OvnNative) SetLPortExtID(name, key, value string) ovsdb.Command {
	return n.updateLPort("set external id", name, false, func(lsp *nbdb.LogicalSwitchPort) []interface{} {
		lsp.ExternalIDs = libovsdbops.CopyExternalIDs(lsp.ExternalIDs, map[string]string{key: value})
		return []interface{}{&lsp.ExternalIDs}
	})
}

func (n *OvnNative) SetLPortUpStatus(name string, up bool) ovsdb.Command {
	return n.updateLPort("set up status", name, false, func(lsp *nbdb.LogicalSwitchPort) []interface{} {
		lsp.Up = &up
		return []interface{}{&lsp.Up}
	})
}

func (n *OvnNative) DeleteLPort(name, lswitch string, extID *ovn.ExternalID, ifExists bool) (ovsdb.Command, error) {
	if name == "" {
		return nil, ovsdb.NewUnsupportedOperationError("logical ports can only be deleted by name")
	}
	return n.newCommand("delete logical port "+name, func(txn *txnContext, cmd *command) ([]libovsdb.Operation, error) {
		lsp, err := txn.lookupPort(name)
		if err != nil {
			return nil, notFound(err, ifExists, "logical port", name)
		}
		var sw *nbdb.LogicalSwitch
		if lswitch != "" {
			sw, err = txn.lookupSwitch(lswitch)
			if err != nil {
				return nil, notFound(err, false, "logical switch", lswitch)
			}
		} else {
			sw, err = txn.switchOfPort(lsp.UUID)
			if err != nil {
				return nil, err
			}
		}
		delete(txn.ports, name)
		// the port row is garbage collected once no switch refers to it
		return txn.client.Where(sw).Mutate(sw, deleteUUID(&sw.Ports, lsp.UUID))
	}), nil
}

func (t *txnContext) switchOfPort(uuid string) (*nbdb.LogicalSwitch, error) {
	for _, sw := range t.switches {
		if contains(sw.Ports, uuid) {
			return sw, nil
		}
	}
	switches, err := libovsdbops.FindLogicalSwitchesWithPredicate(t.ctx, t.client, func(item *nbdb.LogicalSwitch) bool {
		return contains(item.Ports, uuid)
	})
	if err != nil {
		return nil, err
	}
	if len(switches) != 1 {
		return nil, fmt.Errorf("expected one logical switch with port %s, found %d", uuid, len(switches))
	}
	return switches[0], nil
}

func contains(l []string, s string) bool {
	for _, v := range l {
		if v == s {
			return true
		}
	}
	return false
}

func applyLRouterColumns(lr *nbdb.LogicalRouter, cols ovn.LRouterColumns) []interface{} {
	var fields []interface{}
	if cols.Enabled != nil {
		enabled := *cols.Enabled
		lr.Enabled = &enabled
		fields = append(fields, &lr.Enabled)
	}
	if cols.ExternalIDs != nil {
		lr.ExternalIDs = libovsdbops.CopyExternalIDs(cols.ExternalIDs, nil)
		fields = append(fields, &lr.ExternalIDs)
	}
	return fields
}

func (n *OvnNative) CreateLRouter(name string, mayExist bool, cols ovn.LRouterColumns) ovsdb.Command {
	return n.newCommand("create logical router "+name, func(txn *txnContext, cmd *command) ([]libovsdb.Operation, error) {
		if mayExist {
			lr, err := txn.lookupRouter(name)
			if err == nil {
				cmd.result = lr.UUID
				return nil, nil
			}
			if !isNotFound(err) {
				return nil, err
			}
		}
		lr := &nbdb.LogicalRouter{
			UUID: libovsdbops.BuildNamedUUID(),
			Name: name,
		}
		applyLRouterColumns(lr, cols)
		ops, err := txn.client.Create(lr)
		if err != nil {
			return nil, err
		}
		txn.routers[name] = lr
		cmd.inserted = lr
		return ops, nil
	})
}

func (n *OvnNative) UpdateLRouter(name string, ifExists bool, cols ovn.LRouterColumns) ovsdb.Command {
	return n.newCommand("update logical router "+name, func(txn *txnContext, cmd *command) ([]libovsdb.Operation, error) {
		lr, err := txn.lookupRouter(name)
		if err != nil {
			return nil, notFound(err, ifExists, "logical router", name)
		}
		fields := applyLRouterColumns(lr, cols)
		if len(fields) == 0 {
			return nil, nil
		}
		return txn.client.Where(lr).Update(lr, fields...)
	})
}

func (n *OvnNative) DeleteLRouter(name string, ifExists bool) ovsdb.Command {
	return n.newCommand("delete logical router "+name, func(txn *txnContext, cmd *command) ([]libovsdb.Operation, error) {
		lr, err := txn.lookupRouter(name)
		if err != nil {
			return nil, notFound(err, ifExists, "logical router", name)
		}
		delete(txn.routers, name)
		return txn.client.Where(lr).Delete()
	})
}

func (n *OvnNative) AddLRouterPort(name, lrouter, mac string, networks []string, mayExist bool) ovsdb.Command {
	return n.newCommand("add logical router port "+name, func(txn *txnContext, cmd *command) ([]libovsdb.Operation, error) {
		lr, err := txn.lookupRouter(lrouter)
		if err != nil {
			return nil, notFound(err, false, "logical router", lrouter)
		}
		if mayExist {
			lrp, err := txn.lookupRouterPort(name)
			if err == nil {
				cmd.result = lrp.UUID
				return nil, nil
			}
			if !isNotFound(err) {
				return nil, err
			}
		}
		lrp := &nbdb.LogicalRouterPort{
			UUID:     libovsdbops.BuildNamedUUID(),
			Name:     name,
			MAC:      mac,
			Networks: append([]string{}, networks...),
		}
		ops, err := txn.client.Create(lrp)
		if err != nil {
			return nil, err
		}
		mutateOps, err := txn.client.Where(lr).Mutate(lr, insertUUID(&lr.Ports, lrp.UUID))
		if err != nil {
			return nil, err
		}
		txn.routerPorts[name] = lrp
		cmd.inserted = lrp
		return append(ops, mutateOps...), nil
	})
}

func (n *OvnNative) DeleteLRouterPort(name, lrouter string, ifExists bool) ovsdb.Command {
	return n.newCommand("delete logical router port "+name, func(txn *txnContext, cmd *command) ([]libovsdb.Operation, error) {
		lrp, err := txn.lookupRouterPort(name)
		if err != nil {
			return nil, notFound(err, ifExists, "logical router port", name)
		}
		lr, err := txn.lookupRouter(lrouter)
		if err != nil {
			return nil, notFound(err, false, "logical router", lrouter)
		}
		if !contains(lr.Ports, lrp.UUID) {
			return nil, fmt.Errorf("logical router port %s is not in logical router %s", name, lrouter)
		}
		delete(txn.routerPorts, name)
		return txn.client.Where(lr).Mutate(lr, deleteUUID(&lr.Ports, lrp.UUID))
	})
}

func (n *OvnNative) SetLRouterPortInLPort(lport, lrouterPort string) ovsdb.Command {
	return n.updateLPort("attach router port", lport, false, func(lsp *nbdb.LogicalSwitchPort) []interface{} {
		lsp.Type = types.OVNLSwitchPortTypeRouter
		lsp.Options = map[string]string{types.OVNLRouterPortOptionKey: lrouterPort}
		return []interface{}{&lsp.Type, &lsp.Options}
	})
}

// AddACL creates the ACL and appends it to the switch acls. The result is
// the uuid of the new ACL.
func (n *OvnNative) AddACL(acl ovn.ACL) ovsdb.Command {
	extIDs := libovsdbops.CopyExternalIDs(acl.ExternalIDs, map[string]string{types.OVNLPortExtIDKey: acl.LPort})
	return n.newCommand("add ACL to logical port "+acl.LPort, func(txn *txnContext, cmd *command) ([]libovsdb.Operation, error) {
		sw, err := txn.lookupSwitch(acl.LSwitch)
		if err != nil {
			return nil, notFound(err, false, "logical switch", acl.LSwitch)
		}
		row := &nbdb.ACL{
			UUID:        libovsdbops.BuildNamedUUID(),
			Action:      acl.Action,
			Direction:   acl.Direction,
			ExternalIDs: libovsdbops.CopyExternalIDs(extIDs, nil),
			Log:         acl.Log,
			Match:       acl.Match,
			Priority:    acl.Priority,
		}
		ops, err := txn.client.Create(row)
		if err != nil {
			return nil, err
		}
		mutateOps, err := txn.client.Where(sw).Mutate(sw, insertUUID(&sw.ACLs, row.UUID))
		if err != nil {
			return nil, err
		}
		sw.ACLs = append(sw.ACLs, row.UUID)
		cmd.inserted = row
		return append(ops, mutateOps...), nil
	})
}

// DeleteACL removes every ACL of lport from the switch
func (n *OvnNative) DeleteACL(lswitch, lport string, ifExists bool) (ovsdb.Command, error) {
	return n.newCommand("delete ACLs of logical port "+lport, func(txn *txnContext, cmd *command) ([]libovsdb.Operation, error) {
		sw, err := txn.lookupSwitch(lswitch)
		if err != nil {
			return nil, notFound(err, ifExists, "logical switch", lswitch)
		}
		acls, err := libovsdbops.FindACLsWithPredicate(txn.ctx, txn.client, func(item *nbdb.ACL) bool {
			return item.ExternalIDs[types.OVNLPortExtIDKey] == lport && contains(sw.ACLs, item.UUID)
		})
		if err != nil {
			return nil, err
		}
		if len(acls) == 0 {
			return nil, nil
		}
		uuids := make([]string, 0, len(acls))
		for _, acl := range acls {
			uuids = append(uuids, acl.UUID)
		}
		return txn.client.Where(sw).Mutate(sw, deleteUUID(&sw.ACLs, uuids...))
	}), nil
}
