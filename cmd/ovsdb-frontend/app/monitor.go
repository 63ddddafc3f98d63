package app

import (
	"fmt"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/ovn-org/ovsdb-frontend/pkg/config"
	"github.com/ovn-org/ovsdb-frontend/pkg/frontend"
	"github.com/ovn-org/ovsdb-frontend/pkg/metrics"
	"github.com/ovn-org/ovsdb-frontend/pkg/ovn/monitor"
)

// logNotifier reports port status changes in the log
type logNotifier struct{}

func (logNotifier) SetPortStatusUp(name string) {
	klog.Infof("Logical switch port %s is up", name)
}

func (logNotifier) SetPortStatusDown(name string) {
	klog.Infof("Logical switch port %s is down", name)
}

// MonitorCommand reports logical switch ports going up and down
var MonitorCommand = cli.Command{
	Name:  "monitor",
	Usage: "Watch the OVN northbound database and report logical switch port status changes",
	Action: func(ctx *cli.Context) error {
		ovsAPI, err := newOVSAPI()
		if err != nil {
			return err
		}

		g, gctx := errgroup.WithContext(ctx.Context)
		portMonitor := monitor.NewPortMonitor(logNotifier{})
		g.Go(func() error {
			portMonitor.Run(gctx)
			return nil
		})

		if config.Metrics.BindAddress != "" {
			metrics.RegisterFrontendMetrics()
			g.Go(func() error {
				metrics.StartMetricsServer(gctx, config.Metrics.BindAddress, config.Metrics.EnablePprof)
				return nil
			})
		}

		conn := frontend.NewNBConnection(gctx.Done(), ovsAPI, portMonitor.Handler)
		nbClient, err := conn.Client()
		if err != nil {
			return fmt.Errorf("failed to connect to the OVN northbound database: %w", err)
		}
		defer nbClient.Close()
		portMonitor.InitialDumpDone()

		return g.Wait()
	},
}
