// Package frontend builds the Open vSwitch and OVN front ends selected in
// the configuration.
package frontend

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ovn-org/libovsdb/cache"
	"github.com/ovn-org/libovsdb/client"
	"k8s.io/klog/v2"

	"github.com/ovn-org/ovsdb-frontend/pkg/config"
	"github.com/ovn-org/ovsdb-frontend/pkg/libovsdb"
	"github.com/ovn-org/ovsdb-frontend/pkg/ovn"
	"github.com/ovn-org/ovsdb-frontend/pkg/ovn/native"
	"github.com/ovn-org/ovsdb-frontend/pkg/ovn/nbctl"
	"github.com/ovn-org/ovsdb-frontend/pkg/ovsdb"
	"github.com/ovn-org/ovsdb-frontend/pkg/ovsdb/vsctl"
	"github.com/ovn-org/ovsdb-frontend/pkg/types"
	"github.com/ovn-org/ovsdb-frontend/pkg/util"
)

// managerRetryTimeout bounds the reconnect attempts after enabling the
// manager target
const managerRetryTimeout = time.Second

// NewOVSAPI returns the Open vSwitch front end configured in config.OVS
func NewOVSAPI(exec vsctl.Executor) (ovsdb.OVSAPI, error) {
	switch config.OVS.OVSDBInterface {
	case types.OVSDBInterfaceVsctl:
		return vsctl.NewOvsdbVsctl(exec, config.OVS.VsctlTimeout, "--db="+config.OVS.OVSDBConnection), nil
	default:
		return nil, ovsdb.NewUnsupportedOperationError("OVS front end %q", config.OVS.OVSDBInterface)
	}
}

// NewOVNAPI returns the OVN northbound front end configured in
// config.OvnNorth. conn is only used by the native front end.
func NewOVNAPI(exec vsctl.Executor, conn native.ClientProvider) (ovn.API, error) {
	switch config.OvnNorth.Interface {
	case types.OVNInterfaceNbctl:
		return nbctl.NewOvnNbctl(exec, config.OvnNorth.NbctlTimeout, config.OvnNorth.GetNbctlArgs()...), nil
	case types.OVSDBInterfaceNative:
		if conn == nil {
			return nil, fmt.Errorf("the native OVN front end needs a northbound connection")
		}
		return native.NewOvnNative(conn), nil
	default:
		return nil, ovsdb.NewUnsupportedOperationError("OVN front end %q", config.OvnNorth.Interface)
	}
}

// EnableConnectionURI makes the local ovsdb-server listen for connections
// to conn
func EnableConnectionURI(ctx context.Context, ovsAPI ovsdb.OVSAPI, conn string) error {
	target, err := util.ConnectionToManagerTarget(conn)
	if err != nil {
		return err
	}
	return ovsAPI.SetManager(target).Execute(ctx, ovsdb.CheckError(true))
}

// connectWithManagerFallback wraps connect: when the first attempt fails the
// manager target of the first endpoint is enabled and connect is retried
func connectWithManagerFallback(connect libovsdb.ConnectFunc, ovsAPI ovsdb.OVSAPI) libovsdb.ConnectFunc {
	return func(cfg config.OvnAuthConfig, stopCh <-chan struct{}, handlers ...cache.EventHandler) (client.Client, error) {
		c, err := connect(cfg, stopCh, handlers...)
		if err == nil {
			return c, nil
		}
		klog.Warningf("Unable to connect to %s, enabling its manager target: %v", cfg.GetURL(), err)

		endpoint := strings.TrimSpace(strings.Split(cfg.GetURL(), ",")[0])
		if err := EnableConnectionURI(context.Background(), ovsAPI, endpoint); err != nil {
			return nil, fmt.Errorf("failed to enable manager target for %s: %w", endpoint, err)
		}

		b := backoff.NewExponentialBackOff()
		b.InitialInterval = 10 * time.Millisecond
		b.MaxElapsedTime = managerRetryTimeout
		err = backoff.Retry(func() error {
			var err error
			c, err = connect(cfg, stopCh, handlers...)
			return err
		}, b)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// NewNBConnection returns the lazily connected northbound handle of the
// native front end
func NewNBConnection(stopCh <-chan struct{}, ovsAPI ovsdb.OVSAPI, handlers ...cache.EventHandler) *libovsdb.Connection {
	return libovsdb.NewConnectionWithConnectFunc(config.OvnNorth, stopCh,
		connectWithManagerFallback(libovsdb.NewNBClientWithConfig, ovsAPI), handlers...)
}
