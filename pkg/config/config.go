package config

import (
	"flag"
	"fmt"
	"reflect"
	"strings"

	"github.com/asaskevich/govalidator"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"
	gcfg "gopkg.in/gcfg.v1"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
	"k8s.io/klog/v2"
	kexec "k8s.io/utils/exec"

	"github.com/ovn-org/ovsdb-frontend/pkg/types"
)

// DefaultConfigFile is read when --config-file is not given and it exists
const DefaultConfigFile = "/etc/openvswitch/ovsdb-frontend.conf"

// OvnDBScheme describes the OVN database connection transport method
type OvnDBScheme string

const (
	// OvnDBSchemeSSL specifies SSL as the OVN database transport method
	OvnDBSchemeSSL OvnDBScheme = "ssl"
	// OvnDBSchemeTCP specifies TCP as the OVN database transport method
	OvnDBSchemeTCP OvnDBScheme = "tcp"
	// OvnDBSchemeUnix specifies Unix domains sockets as the OVN database transport method
	OvnDBSchemeUnix OvnDBScheme = "unix"
)

// Version is the version of the binaries, set at build time
var Version = "0.0.0"

// AppFs is the filesystem configuration files are read from
var AppFs = afero.NewOsFs()

var (
	// Default holds parsed config file parameters and command-line overrides
	Default = DefaultConfig{
		RootHelper: "",
	}

	// Logging holds logging-related parsed config file parameters and command-line overrides
	Logging = LoggingConfig{
		Level:             4,
		LogFileMaxSize:    100,
		LogFileMaxBackups: 5,
		LogFileMaxAge:     5,
	}

	// OVS holds the Open vSwitch database front end parameters
	OVS = OVSConfig{
		OVSDBInterface:  types.OVSDBInterfaceVsctl,
		OVSDBConnection: "tcp:127.0.0.1:6640",
		VsctlTimeout:    types.OVSDBDefaultCLITimeout,
	}

	// OvnNorth holds the OVN northbound database front end parameters
	OvnNorth = OvnAuthConfig{
		Interface:         types.OVNInterfaceNbctl,
		Address:           "tcp:127.0.0.1:6641",
		ConnectionTimeout: types.OVSDBConnectionTimeout,
		NbctlTimeout:      types.OVSDBDefaultCLITimeout,
		SyncMode:          types.SyncModeLog,
		VhostSockDir:      "/var/run/openvswitch",
	}

	// Metrics holds the metrics server parameters
	Metrics = MetricsConfig{
		BindAddress: "",
	}
)

// DefaultConfig holds parameters that do not belong to a specific database
type DefaultConfig struct {
	// RootHelper prefixes commands that must run as root, e.g. "sudo"
	RootHelper string `gcfg:"root-helper"`
}

// LoggingConfig holds logging configuration options
type LoggingConfig struct {
	// File is the path of the file to log to
	File string `gcfg:"logfile"`
	// Level is the klog verbosity level
	Level             int `gcfg:"loglevel"`
	LogFileMaxSize    int `gcfg:"logfile-maxsize"`
	LogFileMaxBackups int `gcfg:"logfile-maxbackups"`
	LogFileMaxAge     int `gcfg:"logfile-maxage"`
}

// OVSConfig holds the Open vSwitch database front end options
type OVSConfig struct {
	// OVSDBInterface selects the front end, only vsctl is available
	OVSDBInterface string `gcfg:"ovsdb-interface"`
	// OVSDBConnection is the connection string of the local ovsdb-server
	OVSDBConnection string `gcfg:"ovsdb-connection"`
	// VsctlTimeout is the ovs-vsctl --timeout in seconds
	VsctlTimeout int `gcfg:"vsctl-timeout"`
}

// OvnAuthConfig holds the OVN northbound database front end and client
// authentication options
type OvnAuthConfig struct {
	// Interface selects the front end: nbctl or native
	Interface string `gcfg:"ovsdb-interface"`
	// Address is a comma separated list of connection strings, e.g.
	// tcp:10.0.0.1:6641,tcp:10.0.0.2:6641
	Address           string `gcfg:"ovsdb-connection"`
	ConnectionTimeout int    `gcfg:"ovsdb-connection-timeout"`
	NbctlTimeout      int    `gcfg:"nbctl-timeout"`
	// SyncMode is the neutron/OVN database sync mode: off, log or repair
	SyncMode     string `gcfg:"neutron-sync-mode"`
	VhostSockDir string `gcfg:"vhost-sock-dir"`

	PrivKey        string `gcfg:"client-privkey"`
	Cert           string `gcfg:"client-cert"`
	CACert         string `gcfg:"client-cacert"`
	CertCommonName string `gcfg:"cert-common-name"`

	Scheme OvnDBScheme
}

// MetricsConfig holds the metrics server options
type MetricsConfig struct {
	BindAddress string `gcfg:"bind-address"`
	EnablePprof bool   `gcfg:"enable-pprof"`
}

// config is used to read the structured config file and to cache CLI arguments
type config struct {
	Default DefaultConfig
	Logging LoggingConfig
	OVS     OVSConfig
	OVN     OvnAuthConfig
	Metrics MetricsConfig
}

var (
	savedDefault  DefaultConfig
	savedLogging  LoggingConfig
	savedOVS      OVSConfig
	savedOvnNorth OvnAuthConfig
	savedMetrics  MetricsConfig
	// destination of the command-line flags
	cliConfig config
)

func init() {
	savedDefault = Default
	savedLogging = Logging
	savedOVS = OVS
	savedOvnNorth = OvnNorth
	savedMetrics = Metrics
	Flags = getFlags()
}

// PrepareTestConfig restores default config values. Used by testcases to
// provide a pristine environment between tests.
func PrepareTestConfig() {
	Default = savedDefault
	Logging = savedLogging
	OVS = savedOVS
	OvnNorth = savedOvnNorth
	Metrics = savedMetrics
	cliConfig = config{}
}

// CommonFlags capture general options
var CommonFlags = []cli.Flag{
	&cli.StringFlag{
		Name:  "config-file",
		Usage: "configuration file path (default: " + DefaultConfigFile + ")",
	},
	&cli.StringFlag{
		Name:        "root-helper",
		Usage:       "command prefix used to run the OVS/OVN tools as root, e.g. sudo",
		Destination: &cliConfig.Default.RootHelper,
	},
	&cli.IntFlag{
		Name:        "loglevel",
		Usage:       "log verbosity and level: info, warn, fatal, error are always printed no matter the log level. Use 5 for debug (default: 4)",
		Destination: &cliConfig.Logging.Level,
		Value:       Logging.Level,
	},
	&cli.StringFlag{
		Name:        "logfile",
		Usage:       "path of a file to direct log output to",
		Destination: &cliConfig.Logging.File,
	},
	&cli.IntFlag{
		Name:        "logfile-maxsize",
		Usage:       "Maximum size in bytes of the log file before it gets rolled",
		Destination: &cliConfig.Logging.LogFileMaxSize,
		Value:       Logging.LogFileMaxSize,
	},
	&cli.IntFlag{
		Name:        "logfile-maxbackups",
		Usage:       "Maximum number of old log files to retain",
		Destination: &cliConfig.Logging.LogFileMaxBackups,
		Value:       Logging.LogFileMaxBackups,
	},
	&cli.IntFlag{
		Name:        "logfile-maxage",
		Usage:       "Maximum number of days to retain old log files",
		Destination: &cliConfig.Logging.LogFileMaxAge,
		Value:       Logging.LogFileMaxAge,
	},
}

// OVSFlags capture the Open vSwitch database front end options
var OVSFlags = []cli.Flag{
	&cli.StringFlag{
		Name:        "ovsdb-interface",
		Usage:       "The interface for interacting with the OVS database: vsctl",
		Destination: &cliConfig.OVS.OVSDBInterface,
	},
	&cli.StringFlag{
		Name:        "ovsdb-connection",
		Usage:       "The connection string of the local ovsdb-server passed to ovs-vsctl as --db, e.g. tcp:127.0.0.1:6640",
		Destination: &cliConfig.OVS.OVSDBConnection,
	},
	&cli.IntFlag{
		Name:        "ovs-vsctl-timeout",
		Usage:       "Timeout in seconds for ovs-vsctl commands",
		Destination: &cliConfig.OVS.VsctlTimeout,
	},
}

// OvnNBFlags capture the OVN northbound database options
var OvnNBFlags = []cli.Flag{
	&cli.StringFlag{
		Name:        "nb-interface",
		Usage:       "The interface for interacting with the OVN northbound database: nbctl or native",
		Destination: &cliConfig.OVN.Interface,
	},
	&cli.StringFlag{
		Name: "nb-address",
		Usage: "IP address and port of the OVN northbound API " +
			"(eg, ssl:1.2.3.4:6641,ssl:1.2.3.5:6642).",
		Destination: &cliConfig.OVN.Address,
	},
	&cli.IntFlag{
		Name:        "nb-connection-timeout",
		Usage:       "Timeout in seconds for the native OVN northbound connection",
		Destination: &cliConfig.OVN.ConnectionTimeout,
	},
	&cli.IntFlag{
		Name:        "nbctl-timeout",
		Usage:       "Timeout in seconds for ovn-nbctl commands",
		Destination: &cliConfig.OVN.NbctlTimeout,
	},
	&cli.StringFlag{
		Name:        "neutron-sync-mode",
		Usage:       "The synchronization mode between neutron and the OVN database: off, log or repair",
		Destination: &cliConfig.OVN.SyncMode,
	},
	&cli.StringFlag{
		Name:        "vhost-sock-dir",
		Usage:       "The directory in which vhost virtio sockets are created",
		Destination: &cliConfig.OVN.VhostSockDir,
	},
	&cli.StringFlag{
		Name:        "nb-client-privkey",
		Usage:       "Private key that the client should use for talking to the OVN database (default when ssl address is used: /etc/openvswitch/ovnnb-privkey.pem).",
		Destination: &cliConfig.OVN.PrivKey,
	},
	&cli.StringFlag{
		Name:        "nb-client-cert",
		Usage:       "Client certificate that the client should use for talking to the OVN database (default when ssl address is used: /etc/openvswitch/ovnnb-cert.pem).",
		Destination: &cliConfig.OVN.Cert,
	},
	&cli.StringFlag{
		Name:        "nb-client-cacert",
		Usage:       "CA certificate that the client should use for talking to the OVN database (default when ssl address is used: /etc/openvswitch/ovnnb-ca.cert).",
		Destination: &cliConfig.OVN.CACert,
	},
	&cli.StringFlag{
		Name:        "nb-cert-common-name",
		Usage:       "Common Name of the certificate used for TLS server certificate verification.",
		Destination: &cliConfig.OVN.CertCommonName,
	},
}

// MetricsFlags capture the metrics server options
var MetricsFlags = []cli.Flag{
	&cli.StringFlag{
		Name:        "metrics-bind-address",
		Usage:       "The IP address and port for the metrics server to serve on (set to 0.0.0.0 for all IPv4 interfaces)",
		Destination: &cliConfig.Metrics.BindAddress,
	},
	&cli.BoolFlag{
		Name:        "metrics-enable-pprof",
		Usage:       "If true, then also accept pprof requests on the metrics port.",
		Destination: &cliConfig.Metrics.EnablePprof,
	},
}

// Flags are all command-line flags
var Flags []cli.Flag

func getFlags() []cli.Flag {
	var flags []cli.Flag
	flags = append(flags, CommonFlags...)
	flags = append(flags, OVSFlags...)
	flags = append(flags, OvnNBFlags...)
	flags = append(flags, MetricsFlags...)
	return flags
}

// Defaults are a set of flags to indicate which options should be read from
// ovs-vsctl and used as default values if option is not found via the config
// file or command-line
type Defaults struct {
	OvnNorthAddress bool
}

// overrideFields copies every field of src that differs from its value in
// defaults into dst. dst, src and defaults must be pointers to the same struct type.
func overrideFields(dst, src, defaults interface{}) error {
	dstStruct := reflect.ValueOf(dst).Elem()
	srcStruct := reflect.ValueOf(src).Elem()
	if dstStruct.Kind() != srcStruct.Kind() || dstStruct.Kind() != reflect.Struct {
		return fmt.Errorf("mismatched value types")
	}
	if dstStruct.NumField() != srcStruct.NumField() {
		return fmt.Errorf("mismatched struct types")
	}

	var defStruct reflect.Value
	if defaults != nil {
		defStruct = reflect.ValueOf(defaults).Elem()
	}
	// Iterate over each field in dst/src Type so we can get the tags,
	// and use the field name to retrieve the field's actual value from
	// the dst/src instance
	dstType := reflect.TypeOf(dst).Elem()
	for i := 0; i < dstType.NumField(); i++ {
		structField := dstType.Field(i)
		// Ignore private internal fields; we only care about overriding
		// 'gcfg' tagged fields read from CLI or the config file
		if _, ok := structField.Tag.Lookup("gcfg"); !ok {
			continue
		}

		dstField := dstStruct.FieldByName(structField.Name)
		srcField := srcStruct.FieldByName(structField.Name)
		var dv reflect.Value
		if defStruct.IsValid() {
			dv = defStruct.FieldByName(structField.Name)
		}
		if !dstField.IsValid() || !srcField.IsValid() {
			return fmt.Errorf("invalid struct %q field %q", dstType.Name(), structField.Name)
		}
		if dstField.Kind() != srcField.Kind() {
			return fmt.Errorf("mismatched struct %q fields %q", dstType.Name(), structField.Name)
		}
		if dv.IsValid() && reflect.DeepEqual(dv.Interface(), srcField.Interface()) {
			continue
		}
		if srcField.IsZero() {
			continue
		}
		dstField.Set(srcField)
	}
	return nil
}

func readConfigFile(configFile string, allowEmpty bool) (*config, error) {
	cfg := &config{}
	if configFile == "" {
		configFile = DefaultConfigFile
	}
	exists, err := afero.Exists(AppFs, configFile)
	if err != nil {
		return nil, err
	}
	if !exists {
		if allowEmpty {
			return cfg, nil
		}
		return nil, fmt.Errorf("config file %q does not exist", configFile)
	}
	data, err := afero.ReadFile(AppFs, configFile)
	if err != nil {
		return nil, err
	}
	if err := gcfg.ReadStringInto(cfg, string(data)); err != nil {
		return nil, fmt.Errorf("failed to parse config file %q: %v", configFile, err)
	}
	klog.Infof("Parsed config file %s", configFile)
	return cfg, nil
}

// InitConfig reads the config file and common command-line options and
// constructs the global config object from them. It returns the config file
// path (if explicitly specified) or an error
func InitConfig(ctx *cli.Context, exec kexec.Interface, defaults *Defaults) (string, error) {
	return initConfigWithPath(ctx, exec, ctx.String("config-file"), defaults)
}

func initConfigWithPath(ctx *cli.Context, exec kexec.Interface, configFile string, defaults *Defaults) (string, error) {
	if defaults == nil {
		defaults = &Defaults{}
	}

	// the default file is optional, an explicit one must exist
	cfg, err := readConfigFile(configFile, configFile == "")
	if err != nil {
		return "", err
	}

	// file values override the defaults, command-line values override both
	if err := overrideFields(&Default, &cfg.Default, &savedDefault); err != nil {
		return "", err
	}
	if err := overrideFields(&Default, &cliConfig.Default, &savedDefault); err != nil {
		return "", err
	}
	if err := overrideFields(&Logging, &cfg.Logging, &savedLogging); err != nil {
		return "", err
	}
	if err := overrideFields(&Logging, &cliConfig.Logging, &savedLogging); err != nil {
		return "", err
	}
	if err := overrideFields(&OVS, &cfg.OVS, &savedOVS); err != nil {
		return "", err
	}
	if err := overrideFields(&OVS, &cliConfig.OVS, &savedOVS); err != nil {
		return "", err
	}
	if err := overrideFields(&OvnNorth, &cfg.OVN, &savedOvnNorth); err != nil {
		return "", err
	}
	if err := overrideFields(&OvnNorth, &cliConfig.OVN, &savedOvnNorth); err != nil {
		return "", err
	}
	if err := overrideFields(&Metrics, &cfg.Metrics, &savedMetrics); err != nil {
		return "", err
	}
	if err := overrideFields(&Metrics, &cliConfig.Metrics, &savedMetrics); err != nil {
		return "", err
	}

	if err := initLogging(); err != nil {
		return "", err
	}

	if defaults.OvnNorthAddress && !ctx.IsSet("nb-address") && cfg.OVN.Address == "" {
		if addr := getOVSExternalID(exec, "ovn-nb"); addr != "" {
			OvnNorth.Address = addr
		}
	}

	if err := validateConfig(); err != nil {
		return "", err
	}
	klog.V(5).Infof("Default config: %+v", Default)
	klog.V(5).Infof("Logging config: %+v", Logging)
	klog.V(5).Infof("OVS config: %+v", OVS)
	klog.V(5).Infof("OVN North config: %+v", OvnNorth)
	klog.V(5).Infof("Metrics config: %+v", Metrics)

	return configFile, nil
}

func initLogging() error {
	var level klog.Level
	if err := level.Set(fmt.Sprintf("%d", Logging.Level)); err != nil {
		return fmt.Errorf("failed to set klog log level %v", err)
	}
	if Logging.File != "" {
		klogFlags := flag.NewFlagSet("klog", flag.ContinueOnError)
		klog.InitFlags(klogFlags)
		if err := klogFlags.Set("logtostderr", "false"); err != nil {
			return err
		}
		if err := klogFlags.Set("alsologtostderr", "true"); err != nil {
			return err
		}
		klog.SetOutput(&lumberjack.Logger{
			Filename:   Logging.File,
			MaxSize:    Logging.LogFileMaxSize,
			MaxBackups: Logging.LogFileMaxBackups,
			MaxAge:     Logging.LogFileMaxAge,
			Compress:   true,
		})
	}
	return nil
}

func getOVSExternalID(exec kexec.Interface, name string) string {
	out, err := exec.Command(types.OVSVsctl, "--timeout=15", "--if-exists", "get", "Open_vSwitch", ".",
		"external_ids:"+name).CombinedOutput()
	if err != nil {
		klog.V(5).Infof("Failed to get OVS external_id %s: %v\n\t%s", name, err, string(out))
		return ""
	}
	return strings.Trim(strings.TrimSpace(string(out)), "\"")
}

func validateConfig() error {
	if OVS.OVSDBInterface != types.OVSDBInterfaceVsctl {
		return fmt.Errorf("invalid ovsdb-interface %q: only %s is supported",
			OVS.OVSDBInterface, types.OVSDBInterfaceVsctl)
	}
	switch OvnNorth.Interface {
	case types.OVNInterfaceNbctl, types.OVSDBInterfaceNative:
	default:
		return fmt.Errorf("invalid nb-interface %q: must be %s or %s",
			OvnNorth.Interface, types.OVNInterfaceNbctl, types.OVSDBInterfaceNative)
	}
	switch OvnNorth.SyncMode {
	case types.SyncModeOff, types.SyncModeLog, types.SyncModeRepair:
	default:
		return fmt.Errorf("invalid neutron-sync-mode %q: must be one of %s, %s, %s",
			OvnNorth.SyncMode, types.SyncModeOff, types.SyncModeLog, types.SyncModeRepair)
	}
	if OVS.VsctlTimeout <= 0 || OvnNorth.NbctlTimeout <= 0 || OvnNorth.ConnectionTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	if _, _, err := ParseConnection(OVS.OVSDBConnection); err != nil {
		return err
	}
	return OvnNorth.init()
}

// ParseConnection splits an OVSDB connection string into its scheme and address
// and validates the address for the scheme
func ParseConnection(conn string) (OvnDBScheme, string, error) {
	scheme, addr, ok := strings.Cut(conn, ":")
	if !ok || addr == "" {
		return "", "", fmt.Errorf("invalid OVSDB connection %q", conn)
	}
	switch OvnDBScheme(scheme) {
	case OvnDBSchemeUnix:
		if !govalidator.IsUnixFilePath(addr) {
			return "", "", fmt.Errorf("invalid unix socket path in OVSDB connection %q", conn)
		}
	case OvnDBSchemeTCP, OvnDBSchemeSSL:
		host, port, ok := cutLast(addr, ":")
		if !ok || !govalidator.IsHost(strings.Trim(host, "[]")) || !govalidator.IsPort(port) {
			return "", "", fmt.Errorf("invalid host:port in OVSDB connection %q", conn)
		}
	default:
		return "", "", fmt.Errorf("unknown OVSDB connection scheme %q in %q", scheme, conn)
	}
	return OvnDBScheme(scheme), addr, nil
}

func cutLast(s, sep string) (string, string, bool) {
	i := strings.LastIndex(s, sep)
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+len(sep):], true
}

// init validates the northbound addresses, which must all use the same
// scheme, and fills in the scheme and the default SSL credentials
func (a *OvnAuthConfig) init() error {
	var scheme OvnDBScheme
	for _, conn := range strings.Split(a.Address, ",") {
		s, _, err := ParseConnection(strings.TrimSpace(conn))
		if err != nil {
			return err
		}
		if scheme != "" && s != scheme {
			return fmt.Errorf("all OVN northbound addresses must use the same scheme, got %q", a.Address)
		}
		scheme = s
	}
	a.Scheme = scheme
	if a.Scheme == OvnDBSchemeSSL {
		if a.PrivKey == "" {
			a.PrivKey = "/etc/openvswitch/ovnnb-privkey.pem"
		}
		if a.Cert == "" {
			a.Cert = "/etc/openvswitch/ovnnb-cert.pem"
		}
		if a.CACert == "" {
			a.CACert = "/etc/openvswitch/ovnnb-ca.cert"
		}
		if a.CertCommonName == "" {
			a.CertCommonName = "ovnnb"
		}
	}
	return nil
}

// GetURL returns the comma separated connection strings of the database
func (a *OvnAuthConfig) GetURL() string {
	return a.Address
}

// GetNbctlArgs returns the ovn-nbctl global options to reach the database
func (a *OvnAuthConfig) GetNbctlArgs() []string {
	args := []string{"--db=" + a.Address}
	if a.Scheme == OvnDBSchemeSSL {
		args = append(args,
			"--private-key="+a.PrivKey,
			"--certificate="+a.Cert,
			"--bootstrap-ca-cert="+a.CACert)
	}
	return args
}
