package ops

import (
	"fmt"

	"github.com/mitchellh/copystructure"
	"github.com/ovn-org/libovsdb/model"

	"github.com/ovn-org/ovsdb-frontend/pkg/nbdb"
)

// GetUUID returns the uuid, real or named, of a northbound model
func GetUUID(m model.Model) string {
	switch t := m.(type) {
	case *nbdb.ACL:
		return t.UUID
	case *nbdb.LogicalRouter:
		return t.UUID
	case *nbdb.LogicalRouterPort:
		return t.UUID
	case *nbdb.LogicalSwitch:
		return t.UUID
	case *nbdb.LogicalSwitchPort:
		return t.UUID
	default:
		panic(fmt.Sprintf("GetUUID: unknown model %T", t))
	}
}

// SetUUID sets the uuid of a northbound model
func SetUUID(m model.Model, uuid string) {
	switch t := m.(type) {
	case *nbdb.ACL:
		t.UUID = uuid
	case *nbdb.LogicalRouter:
		t.UUID = uuid
	case *nbdb.LogicalRouterPort:
		t.UUID = uuid
	case *nbdb.LogicalSwitch:
		t.UUID = uuid
	case *nbdb.LogicalSwitchPort:
		t.UUID = uuid
	default:
		panic(fmt.Sprintf("SetUUID: unknown model %T", t))
	}
}

// CopyExternalIDs returns a deep copy of externalIDs with extra merged over
// it, nil if both are empty
func CopyExternalIDs(externalIDs map[string]string, extra map[string]string) map[string]string {
	if len(externalIDs) == 0 && len(extra) == 0 {
		return nil
	}
	copied := map[string]string{}
	if len(externalIDs) > 0 {
		copied = copystructure.Must(copystructure.Copy(externalIDs)).(map[string]string)
	}
	for k, v := range extra {
		copied[k] = v
	}
	return copied
}
