package app

import (
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/ovn-org/ovsdb-frontend/pkg/config"
	"github.com/ovn-org/ovsdb-frontend/pkg/frontend"
	"github.com/ovn-org/ovsdb-frontend/pkg/ovsdb"
)

// ovsAction runs the command built by build against the OVS front end
func ovsAction(n int, usage string, build func(ctx *cli.Context, api ovsdb.OVSAPI) ovsdb.Command) cli.ActionFunc {
	return func(ctx *cli.Context) error {
		if err := requireArgs(ctx, n, usage); err != nil {
			return err
		}
		api, err := newOVSAPI()
		if err != nil {
			return err
		}
		return run(ctx, build(ctx, api))
	}
}

// columnValues parses column=value arguments
func columnValues(args []string) []ovsdb.ColumnValue {
	cols := make([]ovsdb.ColumnValue, 0, len(args))
	for _, arg := range args {
		col, value, _ := strings.Cut(arg, "=")
		cols = append(cols, ovsdb.Col(col, value))
	}
	return cols
}

func columnsFlag(ctx *cli.Context) []string {
	if c := ctx.String("columns"); c != "" {
		return strings.Split(c, ",")
	}
	return nil
}

var mayExistFlag = &cli.BoolFlag{Name: "may-exist", Usage: "do not fail if the record exists"}
var ifExistsFlag = &cli.BoolFlag{Name: "if-exists", Usage: "do not fail if the record does not exist"}
var columnsCLIFlag = &cli.StringFlag{Name: "columns", Usage: "comma separated columns to return"}

// OVSCommand runs Open vSwitch database commands
var OVSCommand = cli.Command{
	Name:  "ovs",
	Usage: "Run Open vSwitch database commands",
	Subcommands: []*cli.Command{
		{
			Name:  "add-br",
			Usage: "add-br BRIDGE",
			Flags: []cli.Flag{
				mayExistFlag,
				&cli.StringFlag{Name: "datapath-type", Usage: "datapath type of the bridge, e.g. netdev"},
			},
			Action: ovsAction(1, "add-br BRIDGE", func(ctx *cli.Context, api ovsdb.OVSAPI) ovsdb.Command {
				return api.AddBr(ctx.Args().First(), ctx.Bool("may-exist"), ctx.String("datapath-type"))
			}),
		},
		{
			Name:  "del-br",
			Usage: "del-br BRIDGE",
			Flags: []cli.Flag{ifExistsFlag},
			Action: ovsAction(1, "del-br BRIDGE", func(ctx *cli.Context, api ovsdb.OVSAPI) ovsdb.Command {
				return api.DelBr(ctx.Args().First(), ctx.Bool("if-exists"))
			}),
		},
		{
			Name:  "br-exists",
			Usage: "br-exists BRIDGE",
			Action: ovsAction(1, "br-exists BRIDGE", func(ctx *cli.Context, api ovsdb.OVSAPI) ovsdb.Command {
				return api.BrExists(ctx.Args().First())
			}),
		},
		{
			Name:  "list-br",
			Usage: "list-br",
			Action: ovsAction(0, "list-br", func(ctx *cli.Context, api ovsdb.OVSAPI) ovsdb.Command {
				return api.ListBr()
			}),
		},
		{
			Name:  "add-port",
			Usage: "add-port BRIDGE PORT",
			Flags: []cli.Flag{mayExistFlag},
			Action: ovsAction(2, "add-port BRIDGE PORT", func(ctx *cli.Context, api ovsdb.OVSAPI) ovsdb.Command {
				return api.AddPort(ctx.Args().Get(0), ctx.Args().Get(1), ctx.Bool("may-exist"))
			}),
		},
		{
			Name:  "del-port",
			Usage: "del-port PORT [BRIDGE]",
			Flags: []cli.Flag{ifExistsFlag},
			Action: ovsAction(1, "del-port PORT [BRIDGE]", func(ctx *cli.Context, api ovsdb.OVSAPI) ovsdb.Command {
				return api.DelPort(ctx.Args().Get(0), ctx.Args().Get(1), ctx.Bool("if-exists"))
			}),
		},
		{
			Name:  "list-ports",
			Usage: "list-ports BRIDGE",
			Action: ovsAction(1, "list-ports BRIDGE", func(ctx *cli.Context, api ovsdb.OVSAPI) ovsdb.Command {
				return api.ListPorts(ctx.Args().First())
			}),
		},
		{
			Name:  "db-set",
			Usage: "db-set TABLE RECORD COLUMN=VALUE...",
			Action: ovsAction(3, "db-set TABLE RECORD COLUMN=VALUE...", func(ctx *cli.Context, api ovsdb.OVSAPI) ovsdb.Command {
				args := ctx.Args().Slice()
				return api.DbSet(args[0], args[1], columnValues(args[2:])...)
			}),
		},
		{
			Name:  "db-get",
			Usage: "db-get TABLE RECORD COLUMN",
			Action: ovsAction(3, "db-get TABLE RECORD COLUMN", func(ctx *cli.Context, api ovsdb.OVSAPI) ovsdb.Command {
				return api.DbGet(ctx.Args().Get(0), ctx.Args().Get(1), ctx.Args().Get(2))
			}),
		},
		{
			Name:  "db-list",
			Usage: "db-list TABLE [RECORD...]",
			Flags: []cli.Flag{ifExistsFlag, columnsCLIFlag},
			Action: ovsAction(1, "db-list TABLE [RECORD...]", func(ctx *cli.Context, api ovsdb.OVSAPI) ovsdb.Command {
				args := ctx.Args().Slice()
				return api.DbList(args[0], args[1:], columnsFlag(ctx), ctx.Bool("if-exists"))
			}),
		},
		{
			Name:  "db-find",
			Usage: "db-find TABLE [COLUMN=VALUE...]",
			Flags: []cli.Flag{columnsCLIFlag},
			Action: ovsAction(1, "db-find TABLE [COLUMN=VALUE...]", func(ctx *cli.Context, api ovsdb.OVSAPI) ovsdb.Command {
				args := ctx.Args().Slice()
				return api.DbFind(args[0], columnValues(args[1:]), columnsFlag(ctx))
			}),
		},
		{
			Name:  "enable-connection-uri",
			Usage: "Make the local ovsdb-server listen for the OVN northbound connection",
			Action: func(ctx *cli.Context) error {
				api, err := newOVSAPI()
				if err != nil {
					return err
				}
				return frontend.EnableConnectionURI(ctx.Context, api, strings.Split(config.OvnNorth.GetURL(), ",")[0])
			},
		},
	},
}
