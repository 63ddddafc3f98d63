package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"

	"github.com/ovn-org/ovsdb-frontend/cmd/ovsdb-frontend/app"
	"github.com/ovn-org/ovsdb-frontend/pkg/config"
)

// shutdownOnSignal cancels the returned context on the first termination
// signal. A second signal exits right away.
func shutdownOnSignal() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		s := <-sigCh
		klog.Infof("Received %s, shutting down", s)
		cancel()
		s = <-sigCh
		klog.Exitf("Received %s again, exiting", s)
	}()
	return ctx, func() {
		signal.Stop(sigCh)
		cancel()
	}
}

func main() {
	frontend := &cli.App{
		Name:    "ovsdb-frontend",
		Usage:   "run Open vSwitch and OVN northbound database commands through the configured front ends",
		Version: config.Version,
		Flags:   config.Flags,
		Before:  app.InitConfig,
		Commands: []*cli.Command{
			&app.OVSCommand,
			&app.OVNCommand,
			&app.MonitorCommand,
		},
	}

	ctx, stop := shutdownOnSignal()
	err := frontend.RunContext(ctx, os.Args)
	stop()
	klog.Flush()
	if err != nil {
		klog.Exit(err)
	}
}
