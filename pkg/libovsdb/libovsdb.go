package libovsdb

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ovn-org/libovsdb/cache"
	"github.com/ovn-org/libovsdb/client"
	"gopkg.in/fsnotify/fsnotify.v1"
	"k8s.io/klog/v2"
	"k8s.io/klog/v2/klogr"

	"github.com/ovn-org/ovsdb-frontend/pkg/config"
	"github.com/ovn-org/ovsdb-frontend/pkg/nbdb"
	"github.com/ovn-org/ovsdb-frontend/pkg/types"
)

// connectTimeout bounds the connection and each reconnection attempt
func connectTimeout(cfg config.OvnAuthConfig) time.Duration {
	if cfg.ConnectionTimeout > 0 {
		return time.Duration(cfg.ConnectionTimeout) * time.Second
	}
	return 2 * types.OVSDBTimeout
}

// clientOptions turns the northbound configuration into libovsdb client
// options. The returned watcher is nil unless the connection uses SSL.
func clientOptions(cfg config.OvnAuthConfig) ([]client.Option, *keyPairWatcher, error) {
	logger := klogr.New().WithName("nbdb")
	opts := []client.Option{
		client.WithReconnect(connectTimeout(cfg), &backoff.ZeroBackOff{}),
		client.WithLeaderOnly(true),
		client.WithLogger(&logger),
	}
	for _, endpoint := range strings.Split(cfg.GetURL(), ",") {
		if endpoint = strings.TrimSpace(endpoint); endpoint != "" {
			opts = append(opts, client.WithEndpoint(endpoint))
		}
	}
	if cfg.Scheme != config.OvnDBSchemeSSL {
		return opts, nil, nil
	}

	tlsConfig, err := loadTLSConfig(cfg.Cert, cfg.PrivKey, cfg.CACert, cfg.CertCommonName)
	if err != nil {
		return nil, nil, err
	}
	w, err := newKeyPairWatcher(cfg.Cert, cfg.PrivKey, tlsConfig)
	if err != nil {
		return nil, nil, err
	}
	return append(opts, client.WithTLSConfig(tlsConfig)), w, nil
}

// NewNBClientWithConfig connects to the OVN northbound database and monitors
// all the tables of the northbound model. handlers see the initial dump.
// Closing stopCh stops the key pair watcher and aborts a pending monitor
// request.
func NewNBClientWithConfig(cfg config.OvnAuthConfig, stopCh <-chan struct{}, handlers ...cache.EventHandler) (client.Client, error) {
	dbModel, err := nbdb.FullDatabaseModel()
	if err != nil {
		return nil, err
	}
	opts, watcher, err := clientOptions(cfg)
	if err != nil {
		return nil, err
	}
	c, err := client.NewOVSDBClient(dbModel, opts...)
	if err != nil {
		return nil, err
	}

	connectCtx, cancelConnect := context.WithTimeout(context.Background(), connectTimeout(cfg))
	defer cancelConnect()
	if err := c.Connect(connectCtx); err != nil {
		if watcher != nil {
			watcher.close()
		}
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.GetURL(), err)
	}
	if watcher != nil {
		go watcher.run(c, stopCh)
	}

	for _, h := range handlers {
		c.Cache().AddEventHandler(h)
	}

	monitorCtx, cancelMonitor := context.WithTimeout(context.Background(), types.OVSDBTimeout)
	defer cancelMonitor()
	go func() {
		select {
		case <-stopCh:
			cancelMonitor()
		case <-monitorCtx.Done():
		}
	}()
	if _, err := c.MonitorAll(monitorCtx); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to monitor the northbound database: %w", err)
	}
	klog.Infof("Connected to the OVN northbound database at %s", cfg.GetURL())
	return c, nil
}

func loadTLSConfig(certFile, privKeyFile, caCertFile, serverName string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certFile, privKeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load the northbound client key pair: %w", err)
	}
	pem, err := os.ReadFile(caCertFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read the northbound CA certificate: %w", err)
	}
	roots := x509.NewCertPool()
	if !roots.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificate found in %s", caCertFile)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      roots,
		ServerName:   serverName,
	}, nil
}

// keyPairWatcher reloads the client key pair when its files change and
// drops the connection so the client reconnects with it
type keyPairWatcher struct {
	certFile, keyFile string
	tlsConfig         *tls.Config
	watcher           *fsnotify.Watcher
}

func newKeyPairWatcher(certFile, keyFile string, tlsConfig *tls.Config) (*keyPairWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	for _, f := range []string{certFile, keyFile} {
		if err := watcher.Add(f); err != nil {
			watcher.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", f, err)
		}
	}
	return &keyPairWatcher{certFile: certFile, keyFile: keyFile, tlsConfig: tlsConfig, watcher: watcher}, nil
}

func (w *keyPairWatcher) close() {
	if err := w.watcher.Close(); err != nil {
		klog.Errorf("Failed to close the key pair watcher: %v", err)
	}
}

// reload swaps in the key pair on disk and reports whether it changed
func (w *keyPairWatcher) reload() (bool, error) {
	cert, err := tls.LoadX509KeyPair(w.certFile, w.keyFile)
	if err != nil {
		return false, err
	}
	if len(w.tlsConfig.Certificates) == 1 && certEqual(w.tlsConfig.Certificates[0], cert) {
		return false, nil
	}
	w.tlsConfig.Certificates = []tls.Certificate{cert}
	return true, nil
}

func certEqual(a, b tls.Certificate) bool {
	if len(a.Certificate) != len(b.Certificate) {
		return false
	}
	for i := range a.Certificate {
		if string(a.Certificate[i]) != string(b.Certificate[i]) {
			return false
		}
	}
	return true
}

func (w *keyPairWatcher) run(c client.Client, stopCh <-chan struct{}) {
	defer w.close()
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove) == 0 {
				continue
			}
			changed, err := w.reload()
			if err != nil {
				klog.Warningf("Cannot load key pair %s/%s: %v", w.certFile, w.keyFile, err)
				continue
			}
			if changed {
				klog.Infof("Northbound client key pair changed, reconnecting")
				c.Disconnect()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			klog.Errorf("Error watching the northbound key pair: %v", err)
		case <-stopCh:
			return
		}
	}
}
