package libovsdb

import (
	"sync"

	"github.com/ovn-org/libovsdb/cache"
	"github.com/ovn-org/libovsdb/client"
	"k8s.io/klog/v2"

	"github.com/ovn-org/ovsdb-frontend/pkg/config"
)

// ConnectFunc creates a connected northbound client
type ConnectFunc func(cfg config.OvnAuthConfig, stopCh <-chan struct{}, handlers ...cache.EventHandler) (client.Client, error)

// Connection is a northbound client handle shared by every native command.
// The client is created on first use; a failed attempt is retried by the
// next caller.
type Connection struct {
	cfg      config.OvnAuthConfig
	stopCh   <-chan struct{}
	connect  ConnectFunc
	handlers []cache.EventHandler

	mu        sync.Mutex
	client    client.Client
	connected bool
}

// NewConnection returns a handle connecting with cfg when first used.
// handlers are registered on the client cache before the initial dump.
func NewConnection(cfg config.OvnAuthConfig, stopCh <-chan struct{}, handlers ...cache.EventHandler) *Connection {
	return NewConnectionWithConnectFunc(cfg, stopCh, NewNBClientWithConfig, handlers...)
}

// NewConnectionWithConnectFunc is NewConnection with a custom client factory
func NewConnectionWithConnectFunc(cfg config.OvnAuthConfig, stopCh <-chan struct{}, connect ConnectFunc, handlers ...cache.EventHandler) *Connection {
	return &Connection{
		cfg:      cfg,
		stopCh:   stopCh,
		connect:  connect,
		handlers: handlers,
	}
}

// Client returns the northbound client, connecting if needed
func (c *Connection) Client() (client.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connected {
		return c.client, nil
	}
	klog.Infof("Connecting to the OVN northbound database at %s", c.cfg.GetURL())
	nbClient, err := c.connect(c.cfg, c.stopCh, c.handlers...)
	if err != nil {
		return nil, err
	}
	c.client = nbClient
	c.connected = true
	return c.client, nil
}
