// Package nbdb holds the libovsdb models of the OVN_Northbound tables the
// front end reads and writes. Only the columns in use are mapped.
package nbdb

import "github.com/ovn-org/libovsdb/model"

const (
	DatabaseName           = "OVN_Northbound"
	ACLTable               = "ACL"
	LogicalRouterTable     = "Logical_Router"
	LogicalRouterPortTable = "Logical_Router_Port"
	LogicalSwitchTable     = "Logical_Switch"
	LogicalSwitchPortTable = "Logical_Switch_Port"
)

type (
	ACLAction    = string
	ACLDirection = string
)

var (
	ACLActionAllow        ACLAction    = "allow"
	ACLActionAllowRelated ACLAction    = "allow-related"
	ACLActionDrop         ACLAction    = "drop"
	ACLActionReject       ACLAction    = "reject"
	ACLDirectionFromLport ACLDirection = "from-lport"
	ACLDirectionToLport   ACLDirection = "to-lport"
)

// ACL defines an object in ACL table
type ACL struct {
	UUID        string            `ovsdb:"_uuid"`
	Action      ACLAction         `ovsdb:"action"`
	Direction   ACLDirection      `ovsdb:"direction"`
	ExternalIDs map[string]string `ovsdb:"external_ids"`
	Log         bool              `ovsdb:"log"`
	Match       string            `ovsdb:"match"`
	Name        *string           `ovsdb:"name"`
	Priority    int               `ovsdb:"priority"`
}

// LogicalRouter defines an object in Logical_Router table
type LogicalRouter struct {
	UUID        string            `ovsdb:"_uuid"`
	Enabled     *bool             `ovsdb:"enabled"`
	ExternalIDs map[string]string `ovsdb:"external_ids"`
	Name        string            `ovsdb:"name"`
	Ports       []string          `ovsdb:"ports"`
}

// LogicalRouterPort defines an object in Logical_Router_Port table
type LogicalRouterPort struct {
	UUID        string            `ovsdb:"_uuid"`
	Enabled     *bool             `ovsdb:"enabled"`
	ExternalIDs map[string]string `ovsdb:"external_ids"`
	MAC         string            `ovsdb:"mac"`
	Name        string            `ovsdb:"name"`
	Networks    []string          `ovsdb:"networks"`
}

// LogicalSwitch defines an object in Logical_Switch table
type LogicalSwitch struct {
	UUID        string            `ovsdb:"_uuid"`
	ACLs        []string          `ovsdb:"acls"`
	ExternalIDs map[string]string `ovsdb:"external_ids"`
	Name        string            `ovsdb:"name"`
	OtherConfig map[string]string `ovsdb:"other_config"`
	Ports       []string          `ovsdb:"ports"`
}

// LogicalSwitchPort defines an object in Logical_Switch_Port table
type LogicalSwitchPort struct {
	UUID         string            `ovsdb:"_uuid"`
	Addresses    []string          `ovsdb:"addresses"`
	Enabled      *bool             `ovsdb:"enabled"`
	ExternalIDs  map[string]string `ovsdb:"external_ids"`
	Name         string            `ovsdb:"name"`
	Options      map[string]string `ovsdb:"options"`
	PortSecurity []string          `ovsdb:"port_security"`
	Type         string            `ovsdb:"type"`
	Up           *bool             `ovsdb:"up"`
}

// FullDatabaseModel returns the DatabaseModel object to be used in libOVSDB
func FullDatabaseModel() (model.ClientDBModel, error) {
	return model.NewClientDBModel(DatabaseName, map[string]model.Model{
		ACLTable:               &ACL{},
		LogicalRouterTable:     &LogicalRouter{},
		LogicalRouterPortTable: &LogicalRouterPort{},
		LogicalSwitchTable:     &LogicalSwitch{},
		LogicalSwitchPortTable: &LogicalSwitchPort{},
	})
}
