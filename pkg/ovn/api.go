package ovn

import (
	"context"

	"github.com/ovn-org/ovsdb-frontend/pkg/ovsdb"
)

// ExternalID is one external_ids entry identifying a neutron object
type ExternalID struct {
	Key   string
	Value string
}

// LPortColumns are the optional columns of a logical switch port. Unset
// fields are left untouched.
type LPortColumns struct {
	Addresses    []string
	PortSecurity []string
	Type         string
	Options      map[string]string
	ExternalIDs  map[string]string
	Enabled      *bool
}

// IsEmpty reports whether no column is set
func (c LPortColumns) IsEmpty() bool {
	return c.Addresses == nil && c.PortSecurity == nil && c.Type == "" &&
		c.Options == nil && c.ExternalIDs == nil && c.Enabled == nil
}

// LRouterColumns are the optional columns of a logical router
type LRouterColumns struct {
	Enabled     *bool
	ExternalIDs map[string]string
}

// IsEmpty reports whether no column is set
func (c LRouterColumns) IsEmpty() bool {
	return c.Enabled == nil && c.ExternalIDs == nil
}

// ACL is an access control rule applied to the traffic of a logical port
type ACL struct {
	LSwitch   string
	LPort     string
	Direction string
	Priority  int
	Match     string
	Action    string
	Log       bool
	// ExternalIDs are stored along with the neutron:lport key
	ExternalIDs map[string]string
}

// LSwitchPorts is a logical switch and the names of its ports
type LSwitchPorts struct {
	Name  string
	Ports []string
}

// API builds commands against the OVN northbound database. Commands run on
// their own with Execute or batched in a Transaction.
type API interface {
	ovsdb.TransactionFactory

	CreateLSwitch(name string, mayExist bool, extIDs map[string]string) ovsdb.Command
	SetLSwitchExtID(name, key, value string) ovsdb.Command
	// DeleteLSwitch deletes the switch by name. Deleting by extID alone is
	// not supported.
	DeleteLSwitch(name string, extID *ExternalID, ifExists bool) (ovsdb.Command, error)

	CreateLPort(name, lswitch string, mayExist bool, cols LPortColumns) ovsdb.Command
	SetLPort(name string, ifExists bool, cols LPortColumns) ovsdb.Command
	SetLPortMAC(name string, macs []string) ovsdb.Command
	SetLPortExtID(name, key, value string) ovsdb.Command
	SetLPortUpStatus(name string, up bool) ovsdb.Command
	// DeleteLPort deletes the port by name. Deleting by extID alone is not
	// supported.
	DeleteLPort(name, lswitch string, extID *ExternalID, ifExists bool) (ovsdb.Command, error)

	CreateLRouter(name string, mayExist bool, cols LRouterColumns) ovsdb.Command
	UpdateLRouter(name string, ifExists bool, cols LRouterColumns) ovsdb.Command
	DeleteLRouter(name string, ifExists bool) ovsdb.Command
	AddLRouterPort(name, lrouter, mac string, networks []string, mayExist bool) ovsdb.Command
	DeleteLRouterPort(name, lrouter string, ifExists bool) ovsdb.Command
	// SetLRouterPortInLPort turns lport into the switch side of lrouterPort
	SetLRouterPortInLPort(lport, lrouterPort string) ovsdb.Command

	AddACL(acl ACL) ovsdb.Command
	DeleteACL(lswitch, lport string, ifExists bool) (ovsdb.Command, error)
}

// Reader queries the OVN northbound database contents
type Reader interface {
	// GetAllLogicalSwitchesIDs returns the external ids of every switch by name
	GetAllLogicalSwitchesIDs(ctx context.Context) (map[string]map[string]string, error)
	// GetLogicalSwitchIDs returns the external ids of the named switch, empty if it does not exist
	GetLogicalSwitchIDs(ctx context.Context, name string) (map[string]string, error)
	// GetAllLogicalPortsIDs returns the external ids of every switch port by name
	GetAllLogicalPortsIDs(ctx context.Context) (map[string]map[string]string, error)
	// GetAllLogicalSwitchesWithPorts returns the switches whose external ids
	// hold lswitchKey with their ports whose external ids hold lportKey
	GetAllLogicalSwitchesWithPorts(ctx context.Context, lswitchKey, lportKey string) ([]LSwitchPorts, error)
	// GetACLsForLSwitches returns the ACLs of the named switches keyed by logical port
	GetACLsForLSwitches(ctx context.Context, lswitches []string) (map[string][]ACL, error)
}
