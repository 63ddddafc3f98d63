package ops

import (
	"context"
	"fmt"

	"github.com/ovn-org/libovsdb/client"

	"github.com/ovn-org/ovsdb-frontend/pkg/nbdb"
)

// findWithPredicate looks up the cached rows of the table of T matching p
func findWithPredicate[T any](ctx context.Context, c client.Client, p func(*T) bool) ([]*T, error) {
	found := []*T{}
	if err := c.WhereCache(p).List(ctx, &found); err != nil {
		return nil, err
	}
	return found, nil
}

// lookupByName returns the single cached row of the table of T named name,
// client.ErrNotFound if there is none
func lookupByName[T any](ctx context.Context, c client.Client, name string, nameOf func(*T) string) (*T, error) {
	found, err := findWithPredicate(ctx, c, func(item *T) bool {
		return nameOf(item) == name
	})
	if err != nil {
		return nil, fmt.Errorf("can't find %T %s: %w", *new(T), name, err)
	}
	switch len(found) {
	case 0:
		return nil, client.ErrNotFound
	case 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("unexpectedly found multiple %T with name %s", *new(T), name)
	}
}

// LookupLogicalSwitch returns the logical switch named name
func LookupLogicalSwitch(ctx context.Context, c client.Client, name string) (*nbdb.LogicalSwitch, error) {
	return lookupByName(ctx, c, name, func(item *nbdb.LogicalSwitch) string { return item.Name })
}

// LookupLogicalSwitchPort returns the logical switch port named name
func LookupLogicalSwitchPort(ctx context.Context, c client.Client, name string) (*nbdb.LogicalSwitchPort, error) {
	return lookupByName(ctx, c, name, func(item *nbdb.LogicalSwitchPort) string { return item.Name })
}

// LookupLogicalRouter returns the logical router named name
func LookupLogicalRouter(ctx context.Context, c client.Client, name string) (*nbdb.LogicalRouter, error) {
	return lookupByName(ctx, c, name, func(item *nbdb.LogicalRouter) string { return item.Name })
}

// LookupLogicalRouterPort returns the logical router port named name
func LookupLogicalRouterPort(ctx context.Context, c client.Client, name string) (*nbdb.LogicalRouterPort, error) {
	return lookupByName(ctx, c, name, func(item *nbdb.LogicalRouterPort) string { return item.Name })
}

// FindLogicalSwitchesWithPredicate looks up logical switches from the cache
func FindLogicalSwitchesWithPredicate(ctx context.Context, c client.Client, p func(*nbdb.LogicalSwitch) bool) ([]*nbdb.LogicalSwitch, error) {
	return findWithPredicate(ctx, c, p)
}

// FindLogicalSwitchPortsWithPredicate looks up logical switch ports from the cache
func FindLogicalSwitchPortsWithPredicate(ctx context.Context, c client.Client, p func(*nbdb.LogicalSwitchPort) bool) ([]*nbdb.LogicalSwitchPort, error) {
	return findWithPredicate(ctx, c, p)
}

// FindLogicalRoutersWithPredicate looks up logical routers from the cache
func FindLogicalRoutersWithPredicate(ctx context.Context, c client.Client, p func(*nbdb.LogicalRouter) bool) ([]*nbdb.LogicalRouter, error) {
	return findWithPredicate(ctx, c, p)
}

// FindACLsWithPredicate looks up ACLs from the cache
func FindACLsWithPredicate(ctx context.Context, c client.Client, p func(*nbdb.ACL) bool) ([]*nbdb.ACL, error) {
	return findWithPredicate(ctx, c, p)
}
