package vsctl

import (
	"github.com/ovn-org/ovsdb-frontend/pkg/ovsdb"
	"github.com/ovn-org/ovsdb-frontend/pkg/types"
)

// OvsdbVsctl is the Open vSwitch database front end backed by ovs-vsctl
type OvsdbVsctl struct {
	*Runner
}

var _ ovsdb.OVSAPI = &OvsdbVsctl{}

// NewOvsdbVsctl returns the ovs-vsctl front end. timeout is in seconds and
// opts are global options added to every invocation, for example --db.
func NewOvsdbVsctl(exec Executor, timeout int, opts ...string) *OvsdbVsctl {
	return &OvsdbVsctl{Runner: NewRunner(exec, types.OVSVsctl, timeout, opts...)}
}

func ifExistsOpts(ifExists bool) []string {
	if ifExists {
		return []string{"--if-exists"}
	}
	return nil
}

func mayExistOpts(mayExist bool) []string {
	if mayExist {
		return []string{"--may-exist"}
	}
	return nil
}

// AddBr adds a bridge. A non-empty datapathType is set on the bridge in the
// same command.
func (v *OvsdbVsctl) AddBr(name string, mayExist bool, datapathType string) ovsdb.TypedCommand[string] {
	if datapathType == "" {
		return NewCommand(v.Runner, "add-br", mayExistOpts(mayExist), []string{name})
	}
	return NewChainedCommand(v.Runner, "add-br", mayExistOpts(mayExist), []string{name},
		[]string{"set", "Bridge", name, "datapath_type=" + datapathType})
}

func (v *OvsdbVsctl) DelBr(name string, ifExists bool) ovsdb.TypedCommand[string] {
	return NewCommand(v.Runner, "del-br", ifExistsOpts(ifExists), []string{name})
}

func (v *OvsdbVsctl) BrExists(name string) ovsdb.TypedCommand[bool] {
	return NewExistsCommand(v.Runner, "list", nil, []string{"Bridge", name})
}

func (v *OvsdbVsctl) PortToBr(name string) ovsdb.TypedCommand[string] {
	return NewCommand(v.Runner, "port-to-br", nil, []string{name})
}

func (v *OvsdbVsctl) IfaceToBr(name string) ovsdb.TypedCommand[string] {
	return NewCommand(v.Runner, "iface-to-br", nil, []string{name})
}

func (v *OvsdbVsctl) ListBr() ovsdb.TypedCommand[[]string] {
	return NewMultiLineCommand(v.Runner, "list-br", nil, nil)
}

func (v *OvsdbVsctl) BrGetExternalID(name, field string) ovsdb.TypedCommand[string] {
	return NewCommand(v.Runner, "br-get-external-id", nil, []string{name, field})
}

func (v *OvsdbVsctl) BrSetExternalID(name, field, value string) ovsdb.TypedCommand[string] {
	return NewCommand(v.Runner, "br-set-external-id", nil, []string{name, field, value})
}

// DbCreate creates a row; the result is the uuid of the new row
func (v *OvsdbVsctl) DbCreate(table string, cols ...ovsdb.ColumnValue) ovsdb.TypedCommand[string] {
	args := append([]string{table}, ovsdb.BuildArgs(cols)...)
	return NewCommand(v.Runner, "create", nil, args)
}

func (v *OvsdbVsctl) DbDestroy(table, record string) ovsdb.TypedCommand[string] {
	return NewCommand(v.Runner, "destroy", nil, []string{table, record})
}

func (v *OvsdbVsctl) DbSet(table, record string, cols ...ovsdb.ColumnValue) ovsdb.TypedCommand[string] {
	args := append([]string{table, record}, ovsdb.BuildArgs(cols)...)
	return NewCommand(v.Runner, "set", nil, args)
}

func (v *OvsdbVsctl) DbClear(table, record, column string) ovsdb.TypedCommand[string] {
	return NewCommand(v.Runner, "clear", nil, []string{table, record, column})
}

// DbGet returns the value of column in record
func (v *OvsdbVsctl) DbGet(table, record, column string) ovsdb.TypedCommand[interface{}] {
	return NewDbGetCommand(v.Runner, "list", nil, []string{table, record}, column)
}

// DbList lists records of table, all of them when records is empty
func (v *OvsdbVsctl) DbList(table string, records, columns []string, ifExists bool) ovsdb.TypedCommand[[]ovsdb.Row] {
	args := append([]string{table}, records...)
	return NewDbCommand(v.Runner, "list", ifExistsOpts(ifExists), args, columns)
}

// DbFind lists the records of table matching every condition
func (v *OvsdbVsctl) DbFind(table string, conditions []ovsdb.ColumnValue, columns []string) ovsdb.TypedCommand[[]ovsdb.Row] {
	args := append([]string{table}, ovsdb.BuildArgs(conditions)...)
	return NewDbCommand(v.Runner, "find", nil, args, columns)
}

func (v *OvsdbVsctl) SetController(bridge string, targets []string) ovsdb.TypedCommand[string] {
	return NewCommand(v.Runner, "set-controller", nil, append([]string{bridge}, targets...))
}

func (v *OvsdbVsctl) DelController(bridge string) ovsdb.TypedCommand[string] {
	return NewCommand(v.Runner, "del-controller", nil, []string{bridge})
}

func (v *OvsdbVsctl) GetController(bridge string) ovsdb.TypedCommand[[]string] {
	return NewMultiLineCommand(v.Runner, "get-controller", nil, []string{bridge})
}

func (v *OvsdbVsctl) SetFailMode(bridge, mode string) ovsdb.TypedCommand[string] {
	return NewCommand(v.Runner, "set-fail-mode", nil, []string{bridge, mode})
}

// SetManager makes ovsdb-server listen on target, e.g. ptcp:6640:127.0.0.1
func (v *OvsdbVsctl) SetManager(target string) ovsdb.TypedCommand[string] {
	return NewCommand(v.Runner, "set-manager", nil, []string{target})
}

func (v *OvsdbVsctl) AddPort(bridge, port string, mayExist bool) ovsdb.TypedCommand[string] {
	return NewCommand(v.Runner, "add-port", mayExistOpts(mayExist), []string{bridge, port})
}

// DelPort deletes port, from bridge when it is not empty
func (v *OvsdbVsctl) DelPort(port, bridge string, ifExists bool) ovsdb.TypedCommand[string] {
	var args []string
	if bridge != "" {
		args = append(args, bridge)
	}
	return NewCommand(v.Runner, "del-port", ifExistsOpts(ifExists), append(args, port))
}

func (v *OvsdbVsctl) ListPorts(bridge string) ovsdb.TypedCommand[[]string] {
	return NewMultiLineCommand(v.Runner, "list-ports", nil, []string{bridge})
}

func (v *OvsdbVsctl) ListIfaces(bridge string) ovsdb.TypedCommand[[]string] {
	return NewMultiLineCommand(v.Runner, "list-ifaces", nil, []string{bridge})
}
