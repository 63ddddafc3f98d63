package nbctl

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/ovn-org/ovsdb-frontend/pkg/ovn"
	"github.com/ovn-org/ovsdb-frontend/pkg/ovsdb"
	"github.com/ovn-org/ovsdb-frontend/pkg/ovsdb/vsctl"
	"github.com/ovn-org/ovsdb-frontend/pkg/types"
)

const (
	logicalSwitchTable     = "Logical_Switch"
	logicalSwitchPortTable = "Logical_Switch_Port"
	logicalRouterTable     = "Logical_Router"
	aclTable               = "ACL"
)

// OvnNbctl is the OVN northbound front end backed by ovn-nbctl. Commands
// added to one transaction run in a single ovn-nbctl invocation.
type OvnNbctl struct {
	*vsctl.Runner
}

var _ ovn.API = &OvnNbctl{}

// NewOvnNbctl returns the ovn-nbctl front end. timeout is in seconds and opts
// are the global options reaching the database, e.g. --db.
func NewOvnNbctl(exec vsctl.Executor, timeout int, opts ...string) *OvnNbctl {
	return &OvnNbctl{Runner: vsctl.NewRunner(exec, types.OVNNbctl, timeout, opts...)}
}

func boolOpt(set bool, opt string) []string {
	if set {
		return []string{opt}
	}
	return nil
}

// quoteAtom quotes strings the CLI would otherwise split or misparse
func quoteAtom(s string) string {
	if s == "" || strings.ContainsAny(s, " \t:=,{}[]\"\\@") {
		buf := &bytes.Buffer{}
		enc := json.NewEncoder(buf)
		enc.SetEscapeHTML(false)
		_ = enc.Encode(s)
		return strings.TrimSuffix(buf.String(), "\n")
	}
	return s
}

func quoteMap(m map[string]string) map[string]string {
	quoted := make(map[string]string, len(m))
	for k, v := range m {
		quoted[quoteAtom(k)] = quoteAtom(v)
	}
	return quoted
}

func quoteList(l []string) []string {
	quoted := make([]string, 0, len(l))
	for _, s := range l {
		quoted = append(quoted, quoteAtom(s))
	}
	return quoted
}

// setArgs returns the arguments of the set command for record
func setArgs(table, record string, cols []ovsdb.ColumnValue) []string {
	return append([]string{table, record}, ovsdb.BuildArgs(cols)...)
}

// chainedSet returns a set command to chain after another command
func chainedSet(table, record string, cols []ovsdb.ColumnValue) []string {
	return append([]string{"set"}, setArgs(table, record, cols)...)
}

func lportColumns(cols ovn.LPortColumns) []ovsdb.ColumnValue {
	var values []ovsdb.ColumnValue
	if cols.Addresses != nil {
		values = append(values, ovsdb.Col("addresses", quoteList(cols.Addresses)))
	}
	if cols.PortSecurity != nil {
		values = append(values, ovsdb.Col("port_security", quoteList(cols.PortSecurity)))
	}
	if cols.Type != "" {
		values = append(values, ovsdb.Col("type", cols.Type))
	}
	if cols.Options != nil {
		values = append(values, ovsdb.Col("options", quoteMap(cols.Options)))
	}
	if cols.ExternalIDs != nil {
		values = append(values, ovsdb.Col("external_ids", quoteMap(cols.ExternalIDs)))
	}
	if cols.Enabled != nil {
		values = append(values, ovsdb.Col("enabled", *cols.Enabled))
	}
	return values
}

func lrouterColumns(cols ovn.LRouterColumns) []ovsdb.ColumnValue {
	var values []ovsdb.ColumnValue
	if cols.Enabled != nil {
		values = append(values, ovsdb.Col("enabled", *cols.Enabled))
	}
	if cols.ExternalIDs != nil {
		values = append(values, ovsdb.Col("external_ids", quoteMap(cols.ExternalIDs)))
	}
	return values
}

func (n *OvnNbctl) CreateLSwitch(name string, mayExist bool, extIDs map[string]string) ovsdb.Command {
	opts := boolOpt(mayExist, "--may-exist")
	if len(extIDs) == 0 {
		return vsctl.NewCommand(n.Runner, "ls-add", opts, []string{name})
	}
	return vsctl.NewChainedCommand(n.Runner, "ls-add", opts, []string{name},
		chainedSet(logicalSwitchTable, name, []ovsdb.ColumnValue{ovsdb.Col("external_ids", quoteMap(extIDs))}))
}

func (n *OvnNbctl) SetLSwitchExtID(name, key, value string) ovsdb.Command {
	cols := []ovsdb.ColumnValue{ovsdb.Col("external_ids", quoteMap(map[string]string{key: value}))}
	return vsctl.NewCommand(n.Runner, "set", nil, setArgs(logicalSwitchTable, name, cols))
}

func (n *OvnNbctl) DeleteLSwitch(name string, extID *ovn.ExternalID, ifExists bool) (ovsdb.Command, error) {
	if name == "" {
		return nil, ovsdb.NewUnsupportedOperationError("logical switches can only be deleted by name")
	}
	return vsctl.NewCommand(n.Runner, "ls-del", boolOpt(ifExists, "--if-exists"), []string{name}), nil
}

func (n *OvnNbctl) CreateLPort(name, lswitch string, mayExist bool, cols ovn.LPortColumns) ovsdb.Command {
	opts := boolOpt(mayExist, "--may-exist")
	if cols.IsEmpty() {
		return vsctl.NewCommand(n.Runner, "lsp-add", opts, []string{lswitch, name})
	}
	return vsctl.NewChainedCommand(n.Runner, "lsp-add", opts, []string{lswitch, name},
		chainedSet(logicalSwitchPortTable, name, lportColumns(cols)))
}

func (n *OvnNbctl) SetLPort(name string, ifExists bool, cols ovn.LPortColumns) ovsdb.Command {
	return vsctl.NewCommand(n.Runner, "set", boolOpt(ifExists, "--if-exists"),
		setArgs(logicalSwitchPortTable, name, lportColumns(cols)))
}

func (n *OvnNbctl) SetLPortMAC(name string, macs []string) ovsdb.Command {
	return vsctl.NewCommand(n.Runner, "lsp-set-addresses", nil, append([]string{name}, macs...))
}

func (n *OvnNbctl) SetLPortExtID(name, key, value string) ovsdb.Command {
	cols := []ovsdb.ColumnValue{ovsdb.Col("external_ids", quoteMap(map[string]string{key: value}))}
	return vsctl.NewCommand(n.Runner, "set", nil, setArgs(logicalSwitchPortTable, name, cols))
}

func (n *OvnNbctl) SetLPortUpStatus(name string, up bool) ovsdb.Command {
	cols := []ovsdb.ColumnValue{ovsdb.Col("up", up)}
	return vsctl.NewCommand(n.Runner, "set", nil, setArgs(logicalSwitchPortTable, name, cols))
}

func (n *OvnNbctl) DeleteLPort(name, lswitch string, extID *ovn.ExternalID, ifExists bool) (ovsdb.Command, error) {
	if name == "" {
		return nil, ovsdb.NewUnsupportedOperationError("logical ports can only be deleted by name")
	}
	return vsctl.NewCommand(n.Runner, "lsp-del", boolOpt(ifExists, "--if-exists"), []string{name}), nil
}

func (n *OvnNbctl) CreateLRouter(name string, mayExist bool, cols ovn.LRouterColumns) ovsdb.Command {
	opts := boolOpt(mayExist, "--may-exist")
	if cols.IsEmpty() {
		return vsctl.NewCommand(n.Runner, "lr-add", opts, []string{name})
	}
	return vsctl.NewChainedCommand(n.Runner, "lr-add", opts, []string{name},
		chainedSet(logicalRouterTable, name, lrouterColumns(cols)))
}

func (n *OvnNbctl) UpdateLRouter(name string, ifExists bool, cols ovn.LRouterColumns) ovsdb.Command {
	return vsctl.NewCommand(n.Runner, "set", boolOpt(ifExists, "--if-exists"),
		setArgs(logicalRouterTable, name, lrouterColumns(cols)))
}

func (n *OvnNbctl) DeleteLRouter(name string, ifExists bool) ovsdb.Command {
	return vsctl.NewCommand(n.Runner, "lr-del", boolOpt(ifExists, "--if-exists"), []string{name})
}

func (n *OvnNbctl) AddLRouterPort(name, lrouter, mac string, networks []string, mayExist bool) ovsdb.Command {
	args := append([]string{lrouter, name, mac}, networks...)
	return vsctl.NewCommand(n.Runner, "lrp-add", boolOpt(mayExist, "--may-exist"), args)
}

func (n *OvnNbctl) DeleteLRouterPort(name, lrouter string, ifExists bool) ovsdb.Command {
	return vsctl.NewCommand(n.Runner, "lrp-del", boolOpt(ifExists, "--if-exists"), []string{name})
}

func (n *OvnNbctl) SetLRouterPortInLPort(lport, lrouterPort string) ovsdb.Command {
	return vsctl.NewChainedCommand(n.Runner, "lsp-set-type", nil, []string{lport, types.OVNLSwitchPortTypeRouter},
		[]string{"lsp-set-options", lport, types.OVNLRouterPortOptionKey + "=" + lrouterPort})
}

// AddACL creates the ACL and appends it to the switch acls in one transaction.
// The result is the uuid of the new ACL.
func (n *OvnNbctl) AddACL(acl ovn.ACL) ovsdb.Command {
	extIDs := map[string]string{}
	for k, v := range acl.ExternalIDs {
		extIDs[k] = v
	}
	extIDs[types.OVNLPortExtIDKey] = acl.LPort
	cols := []ovsdb.ColumnValue{
		ovsdb.Col("direction", acl.Direction),
		ovsdb.Col("priority", strconv.Itoa(acl.Priority)),
		ovsdb.Col("match", quoteAtom(acl.Match)),
		ovsdb.Col("action", acl.Action),
		ovsdb.Col("log", acl.Log),
		ovsdb.Col("external_ids", quoteMap(extIDs)),
	}
	args := append([]string{aclTable}, ovsdb.BuildArgs(cols)...)
	return vsctl.NewChainedCommand(n.Runner, "create", []string{"--id=@acl"}, args,
		[]string{"add", logicalSwitchTable, acl.LSwitch, "acls", "@acl"})
}

func (n *OvnNbctl) DeleteACL(lswitch, lport string, ifExists bool) (ovsdb.Command, error) {
	return nil, ovsdb.NewUnsupportedOperationError("ACLs of logical port %s cannot be selected by ovn-nbctl", lport)
}
