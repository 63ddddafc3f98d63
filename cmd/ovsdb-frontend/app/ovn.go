package app

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/ovn-org/ovsdb-frontend/pkg/config"
	"github.com/ovn-org/ovsdb-frontend/pkg/frontend"
	"github.com/ovn-org/ovsdb-frontend/pkg/ovn"
	"github.com/ovn-org/ovsdb-frontend/pkg/ovsdb"
	"github.com/ovn-org/ovsdb-frontend/pkg/types"
)

// newOVNAPI returns the configured OVN front end. The native connection is
// closed with the command context.
func newOVNAPI(ctx *cli.Context) (ovn.API, error) {
	if config.OvnNorth.Interface != types.OVSDBInterfaceNative {
		return frontend.NewOVNAPI(execHelper, nil)
	}
	ovsAPI, err := newOVSAPI()
	if err != nil {
		return nil, err
	}
	return frontend.NewOVNAPI(execHelper, frontend.NewNBConnection(ctx.Context.Done(), ovsAPI))
}

func newOVNReader(ctx *cli.Context) (ovn.Reader, error) {
	api, err := newOVNAPI(ctx)
	if err != nil {
		return nil, err
	}
	reader, ok := api.(ovn.Reader)
	if !ok {
		return nil, ovsdb.NewUnsupportedOperationError("the %s OVN front end cannot query the database", config.OvnNorth.Interface)
	}
	return reader, nil
}

func ovnAction(n int, usage string, build func(ctx *cli.Context, api ovn.API) (ovsdb.Command, error)) cli.ActionFunc {
	return func(ctx *cli.Context) error {
		if err := requireArgs(ctx, n, usage); err != nil {
			return err
		}
		api, err := newOVNAPI(ctx)
		if err != nil {
			return err
		}
		cmd, err := build(ctx, api)
		if err != nil {
			return err
		}
		return run(ctx, cmd)
	}
}

// externalIDs parses key=value arguments
func externalIDs(args []string) (map[string]string, error) {
	if len(args) == 0 {
		return nil, nil
	}
	ids := make(map[string]string, len(args))
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("invalid external id %q, expected key=value", arg)
		}
		ids[k] = v
	}
	return ids, nil
}

// OVNCommand runs OVN northbound database commands
var OVNCommand = cli.Command{
	Name:  "ovn",
	Usage: "Run OVN northbound database commands",
	Subcommands: []*cli.Command{
		{
			Name:  "ls-add",
			Usage: "ls-add NETWORK [KEY=VALUE...]",
			Flags: []cli.Flag{mayExistFlag},
			Action: ovnAction(1, "ls-add NETWORK [KEY=VALUE...]", func(ctx *cli.Context, api ovn.API) (ovsdb.Command, error) {
				args := ctx.Args().Slice()
				ids, err := externalIDs(args[1:])
				if err != nil {
					return nil, err
				}
				return api.CreateLSwitch(args[0], ctx.Bool("may-exist"), ids), nil
			}),
		},
		{
			Name:  "ls-del",
			Usage: "ls-del NAME",
			Flags: []cli.Flag{ifExistsFlag},
			Action: ovnAction(1, "ls-del NAME", func(ctx *cli.Context, api ovn.API) (ovsdb.Command, error) {
				return api.DeleteLSwitch(ctx.Args().First(), nil, ctx.Bool("if-exists"))
			}),
		},
		{
			Name:  "lsp-add",
			Usage: "lsp-add SWITCH PORT [ADDRESS...]",
			Flags: []cli.Flag{mayExistFlag},
			Action: ovnAction(2, "lsp-add SWITCH PORT [ADDRESS...]", func(ctx *cli.Context, api ovn.API) (ovsdb.Command, error) {
				args := ctx.Args().Slice()
				cols := ovn.LPortColumns{}
				if len(args) > 2 {
					cols.Addresses = args[2:]
				}
				return api.CreateLPort(args[1], args[0], ctx.Bool("may-exist"), cols), nil
			}),
		},
		{
			Name:  "lsp-del",
			Usage: "lsp-del PORT [SWITCH]",
			Flags: []cli.Flag{ifExistsFlag},
			Action: ovnAction(1, "lsp-del PORT [SWITCH]", func(ctx *cli.Context, api ovn.API) (ovsdb.Command, error) {
				return api.DeleteLPort(ctx.Args().Get(0), ctx.Args().Get(1), nil, ctx.Bool("if-exists"))
			}),
		},
		{
			Name:  "lr-add",
			Usage: "lr-add ROUTER [KEY=VALUE...]",
			Flags: []cli.Flag{mayExistFlag},
			Action: ovnAction(1, "lr-add ROUTER [KEY=VALUE...]", func(ctx *cli.Context, api ovn.API) (ovsdb.Command, error) {
				args := ctx.Args().Slice()
				ids, err := externalIDs(args[1:])
				if err != nil {
					return nil, err
				}
				return api.CreateLRouter(args[0], ctx.Bool("may-exist"), ovn.LRouterColumns{ExternalIDs: ids}), nil
			}),
		},
		{
			Name:  "lr-del",
			Usage: "lr-del ROUTER",
			Flags: []cli.Flag{ifExistsFlag},
			Action: ovnAction(1, "lr-del ROUTER", func(ctx *cli.Context, api ovn.API) (ovsdb.Command, error) {
				return api.DeleteLRouter(ctx.Args().First(), ctx.Bool("if-exists")), nil
			}),
		},
		{
			Name:  "lrp-add",
			Usage: "lrp-add ROUTER PORT MAC NETWORK...",
			Flags: []cli.Flag{mayExistFlag},
			Action: ovnAction(4, "lrp-add ROUTER PORT MAC NETWORK...", func(ctx *cli.Context, api ovn.API) (ovsdb.Command, error) {
				args := ctx.Args().Slice()
				return api.AddLRouterPort(args[1], args[0], args[2], args[3:], ctx.Bool("may-exist")), nil
			}),
		},
		{
			Name:  "lrp-del",
			Usage: "lrp-del ROUTER PORT",
			Flags: []cli.Flag{ifExistsFlag},
			Action: ovnAction(2, "lrp-del ROUTER PORT", func(ctx *cli.Context, api ovn.API) (ovsdb.Command, error) {
				return api.DeleteLRouterPort(ctx.Args().Get(1), ctx.Args().Get(0), ctx.Bool("if-exists")), nil
			}),
		},
		{
			Name:  "ls-list",
			Usage: "List the logical switches holding KEY and their ports holding PORT-KEY",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "key", Value: types.OVNNetworkNameExtIDKey, Usage: "external id key of the switches"},
				&cli.StringFlag{Name: "port-key", Value: types.OVNPortNameExtIDKey, Usage: "external id key of the ports"},
			},
			Action: func(ctx *cli.Context) error {
				reader, err := newOVNReader(ctx)
				if err != nil {
					return err
				}
				switches, err := reader.GetAllLogicalSwitchesWithPorts(ctx.Context, ctx.String("key"), ctx.String("port-key"))
				if err != nil {
					return err
				}
				return printResult(ctx, switches)
			},
		},
		{
			Name:  "acl-list",
			Usage: "acl-list NETWORK...",
			Action: func(ctx *cli.Context) error {
				if err := requireArgs(ctx, 1, "acl-list NETWORK..."); err != nil {
					return err
				}
				reader, err := newOVNReader(ctx)
				if err != nil {
					return err
				}
				acls, err := reader.GetACLsForLSwitches(ctx.Context, ctx.Args().Slice())
				if err != nil {
					return err
				}
				return printResult(ctx, acls)
			},
		},
	},
}
