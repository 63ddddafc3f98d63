package types

import "time"

const (
	// OVSVsctl is the Open vSwitch database CLI
	OVSVsctl = "ovs-vsctl"
	// OVNNbctl is the OVN northbound database CLI
	OVNNbctl = "ovn-nbctl"

	// OVSDBTimeout is the default timeout for a single native OVSDB transaction
	OVSDBTimeout = 10 * time.Second
	// OVSDBDefaultCLITimeout is the default --timeout value in seconds passed to the CLIs
	OVSDBDefaultCLITimeout = 10
	// OVSDBConnectionTimeout is the default native connection timeout in seconds
	OVSDBConnectionTimeout = 60

	// OVSDBInterfaceVsctl selects the ovs-vsctl backed OVS front end
	OVSDBInterfaceVsctl = "vsctl"
	// OVSDBInterfaceNative selects the native OVSDB connection
	OVSDBInterfaceNative = "native"
	// OVNInterfaceNbctl selects the ovn-nbctl backed OVN front end
	OVNInterfaceNbctl = "nbctl"

	// Neutron/OVN DB sync modes
	SyncModeOff    = "off"
	SyncModeLog    = "log"
	SyncModeRepair = "repair"

	// OVN object name prefixes
	OVNNamePrefix             = "neutron-"
	OVNLRouterPortNamePrefix  = "lrp-"
	OVNLRouterPortOptionKey   = "router-port"
	OVNLSwitchPortTypeRouter  = "router"
	OVNACLDirectionToLport    = "to-lport"
	OVNACLDirectionFromLport  = "from-lport"
	OVNACLActionAllowRelated  = "allow-related"
	OVNACLActionDrop          = "drop"
	OVNLogicalSwitchPortTable = "Logical_Switch_Port"

	// external_ids keys
	OVNNetworkNameExtIDKey = "neutron:network_name"
	OVNPortNameExtIDKey    = "neutron:port_name"
	OVNLPortExtIDKey       = "neutron:lport"
	OVNRouterNameExtIDKey  = "neutron:router_name"

	// OVNEventLockName is the name of the OVSDB lock taken by the port status monitor
	OVNEventLockName = "neutron_ovn_event_lock"
)
