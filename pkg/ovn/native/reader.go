package native

import (
	"context"
	"sort"

	libovsdbclient "github.com/ovn-org/libovsdb/client"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/apimachinery/pkg/util/sets"

	libovsdbops "github.com/ovn-org/ovsdb-frontend/pkg/libovsdb/ops"
	"github.com/ovn-org/ovsdb-frontend/pkg/nbdb"
	"github.com/ovn-org/ovsdb-frontend/pkg/ovn"
	"github.com/ovn-org/ovsdb-frontend/pkg/types"
	"github.com/ovn-org/ovsdb-frontend/pkg/util"
)

var _ ovn.Reader = &OvnNative{}

func (n *OvnNative) client() (libovsdbclient.Client, error) {
	return n.conn.Client()
}

func (n *OvnNative) GetAllLogicalSwitchesIDs(ctx context.Context) (map[string]map[string]string, error) {
	c, err := n.client()
	if err != nil {
		return nil, err
	}
	switches, err := libovsdbops.FindLogicalSwitchesWithPredicate(ctx, c, func(*nbdb.LogicalSwitch) bool { return true })
	if err != nil {
		return nil, err
	}
	result := make(map[string]map[string]string, len(switches))
	for _, sw := range switches {
		result[sw.Name] = libovsdbops.CopyExternalIDs(sw.ExternalIDs, nil)
	}
	return result, nil
}

func (n *OvnNative) GetLogicalSwitchIDs(ctx context.Context, name string) (map[string]string, error) {
	c, err := n.client()
	if err != nil {
		return nil, err
	}
	sw, err := libovsdbops.LookupLogicalSwitch(ctx, c, name)
	if err != nil {
		if isNotFound(err) {
			return map[string]string{}, nil
		}
		return nil, err
	}
	ids := libovsdbops.CopyExternalIDs(sw.ExternalIDs, nil)
	if ids == nil {
		ids = map[string]string{}
	}
	return ids, nil
}

func (n *OvnNative) GetAllLogicalPortsIDs(ctx context.Context) (map[string]map[string]string, error) {
	c, err := n.client()
	if err != nil {
		return nil, err
	}
	ports, err := libovsdbops.FindLogicalSwitchPortsWithPredicate(ctx, c, func(*nbdb.LogicalSwitchPort) bool { return true })
	if err != nil {
		return nil, err
	}
	result := make(map[string]map[string]string, len(ports))
	for _, lsp := range ports {
		result[lsp.Name] = libovsdbops.CopyExternalIDs(lsp.ExternalIDs, nil)
	}
	return result, nil
}

func (n *OvnNative) GetAllLogicalSwitchesWithPorts(ctx context.Context, lswitchKey, lportKey string) ([]ovn.LSwitchPorts, error) {
	c, err := n.client()
	if err != nil {
		return nil, err
	}
	switches, err := libovsdbops.FindLogicalSwitchesWithPredicate(ctx, c, func(item *nbdb.LogicalSwitch) bool {
		_, ok := item.ExternalIDs[lswitchKey]
		return ok
	})
	if err != nil {
		return nil, err
	}
	portUUIDs := sets.New[string]()
	for _, sw := range switches {
		portUUIDs.Insert(sw.Ports...)
	}
	ports, err := libovsdbops.FindLogicalSwitchPortsWithPredicate(ctx, c, func(item *nbdb.LogicalSwitchPort) bool {
		_, ok := item.ExternalIDs[lportKey]
		return ok && portUUIDs.Has(item.UUID)
	})
	if err != nil {
		return nil, err
	}
	portNames := make(map[string]string, len(ports))
	for _, lsp := range ports {
		portNames[lsp.UUID] = lsp.Name
	}

	result := make([]ovn.LSwitchPorts, 0, len(switches))
	for _, sw := range switches {
		entry := ovn.LSwitchPorts{Name: sw.Name, Ports: []string{}}
		for _, uuid := range sw.Ports {
			if name, ok := portNames[uuid]; ok {
				entry.Ports = append(entry.Ports, name)
			}
		}
		sort.Strings(entry.Ports)
		result = append(result, entry)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// GetACLsForLSwitches takes neutron network ids. Switches deleted meanwhile
// are skipped.
func (n *OvnNative) GetACLsForLSwitches(ctx context.Context, lswitches []string) (map[string][]ovn.ACL, error) {
	c, err := n.client()
	if err != nil {
		return nil, err
	}
	result := map[string][]ovn.ACL{}
	var errs []error
	for _, id := range lswitches {
		name := util.OVNName(id)
		sw, err := libovsdbops.LookupLogicalSwitch(ctx, c, name)
		if err != nil {
			if !isNotFound(err) {
				errs = append(errs, err)
			}
			continue
		}
		aclUUIDs := sets.New[string](sw.ACLs...)
		acls, err := libovsdbops.FindACLsWithPredicate(ctx, c, func(item *nbdb.ACL) bool {
			return aclUUIDs.Has(item.UUID)
		})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, acl := range acls {
			lport := acl.ExternalIDs[types.OVNLPortExtIDKey]
			result[lport] = append(result[lport], ovn.ACL{
				LSwitch:     name,
				LPort:       lport,
				Direction:   acl.Direction,
				Priority:    acl.Priority,
				Match:       acl.Match,
				Action:      acl.Action,
				Log:         acl.Log,
				ExternalIDs: libovsdbops.CopyExternalIDs(acl.ExternalIDs, nil),
			})
		}
	}
	return result, utilerrors.NewAggregate(errs)
}
