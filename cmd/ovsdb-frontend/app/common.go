package app

import (
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"
	kexec "k8s.io/utils/exec"

	"github.com/ovn-org/ovsdb-frontend/pkg/config"
	"github.com/ovn-org/ovsdb-frontend/pkg/frontend"
	"github.com/ovn-org/ovsdb-frontend/pkg/ovsdb"
	"github.com/ovn-org/ovsdb-frontend/pkg/util"
)

var execHelper *util.ExecHelper

// InitConfig loads the configuration before any command runs
func InitConfig(ctx *cli.Context) error {
	exec := kexec.New()
	configFile, err := config.InitConfig(ctx, exec, nil)
	if err != nil {
		return err
	}
	if configFile != "" {
		klog.Infof("Parsed config file %s", configFile)
	}
	execHelper = util.NewExecHelper(exec, config.Default.RootHelper)
	return nil
}

func newOVSAPI() (ovsdb.OVSAPI, error) {
	return frontend.NewOVSAPI(execHelper)
}

// printable converts decoded values into types encoding/json handles
func printable(v interface{}) interface{} {
	switch t := v.(type) {
	case ovsdb.Map:
		m := make(map[string]interface{}, len(t))
		for k, val := range t {
			m[fmt.Sprint(k)] = printable(val)
		}
		return m
	case ovsdb.Set:
		l := make([]interface{}, 0, len(t))
		for _, val := range t {
			l = append(l, printable(val))
		}
		return l
	case []interface{}:
		l := make([]interface{}, 0, len(t))
		for _, val := range t {
			l = append(l, printable(val))
		}
		return l
	case []ovsdb.Row:
		rows := make([]interface{}, 0, len(t))
		for _, row := range t {
			rows = append(rows, printable(row))
		}
		return rows
	case ovsdb.Row:
		m := make(map[string]interface{}, len(t))
		for k, val := range t {
			m[k] = printable(val)
		}
		return m
	default:
		return v
	}
}

func printResult(ctx *cli.Context, v interface{}) error {
	enc := json.NewEncoder(ctx.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(printable(v))
}

func requireArgs(ctx *cli.Context, n int, usage string) error {
	if ctx.NArg() < n {
		return fmt.Errorf("usage: %s", usage)
	}
	return nil
}

// run executes cmd on its own, failing on invocation errors, and prints its result
func run(ctx *cli.Context, cmd ovsdb.Command) error {
	if err := cmd.Execute(ctx.Context, ovsdb.CheckError(true)); err != nil {
		return err
	}
	return printResult(ctx, cmd.Result())
}
