package util

import (
	"fmt"
	"strings"

	"github.com/ovn-org/ovsdb-frontend/pkg/types"
)

// OVNName returns the OVN object name of the neutron object with id
func OVNName(id string) string {
	return types.OVNNamePrefix + id
}

// OVNLRouterPortName returns the OVN logical router port name of the neutron port with id
func OVNLRouterPortName(id string) string {
	return types.OVNLRouterPortNamePrefix + id
}

// ConnectionToManagerTarget converts an active OVSDB connection string into
// the passive target ovsdb-server must listen on for it:
// tcp:127.0.0.1:6640 becomes ptcp:6640:127.0.0.1 and unix:/path becomes punix:/path.
func ConnectionToManagerTarget(conn string) (string, error) {
	proto, addr, ok := strings.Cut(conn, ":")
	if !ok || proto == "" || addr == "" {
		return "", fmt.Errorf("invalid OVSDB connection %q", conn)
	}
	if ip, port, ok := strings.Cut(addr, ":"); ok {
		return fmt.Sprintf("p%s:%s:%s", proto, port, ip), nil
	}
	return fmt.Sprintf("p%s:%s", proto, addr), nil
}
