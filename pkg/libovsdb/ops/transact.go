package ops

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ovn-org/libovsdb/client"
	"github.com/ovn-org/libovsdb/ovsdb"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/klog/v2"

	"github.com/ovn-org/ovsdb-frontend/pkg/types"
)

const retryInterval = 200 * time.Millisecond

// TransactWithRetry sends ops in one transaction, retrying while the client
// is disconnected until ctx is done
func TransactWithRetry(ctx context.Context, c client.Client, ops []ovsdb.Operation) ([]ovsdb.OperationResult, error) {
	var results []ovsdb.OperationResult
	err := wait.PollUntilContextCancel(ctx, retryInterval, true, func(ctx context.Context) (bool, error) {
		var err error
		results, err = c.Transact(ctx, ops...)
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, client.ErrNotConnected):
			klog.V(5).Infof("Northbound database disconnected, retrying %d operations", len(ops))
			return false, nil
		default:
			return false, err
		}
	})
	return results, err
}

// TransactAndCheck sends ops in one transaction bounded by types.OVSDBTimeout
// and fails if the database rejected any of them. No transaction is sent for
// empty ops.
func TransactAndCheck(ctx context.Context, c client.Client, ops []ovsdb.Operation) ([]ovsdb.OperationResult, error) {
	if len(ops) == 0 {
		return nil, nil
	}
	klog.V(5).Infof("Northbound transaction: %+v", ops)

	ctx, cancel := context.WithTimeout(ctx, types.OVSDBTimeout)
	defer cancel()
	results, err := TransactWithRetry(ctx, c, ops)
	if err != nil {
		return nil, fmt.Errorf("northbound transaction failed: %w", err)
	}
	if opErrs, err := ovsdb.CheckOperationResults(results, ops); err != nil {
		return nil, fmt.Errorf("northbound transaction rejected (%v): %w", opErrs, err)
	}
	return results, nil
}

// InsertedUUIDs maps the named uuid of every insert operation to the uuid the
// database assigned to the new row
func InsertedUUIDs(ops []ovsdb.Operation, results []ovsdb.OperationResult) map[string]string {
	uuids := map[string]string{}
	for i, op := range ops {
		if i >= len(results) {
			break
		}
		if op.Op == ovsdb.OperationInsert && IsNamedUUID(op.UUIDName) {
			uuids[op.UUIDName] = results[i].UUID.GoUUID
		}
	}
	return uuids
}
