package util

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
	kexec "k8s.io/utils/exec"
)

var runCounter uint64

// ExecError is returned when a command could not be started or exited non-zero
type ExecError struct {
	Cmd    string
	Stderr string
	Err    error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("failed to run %q: %v (stderr: %q)", e.Cmd, e.Err, e.Stderr)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// ExecHelper runs the OVS and OVN command line tools
type ExecHelper struct {
	exec       kexec.Interface
	rootHelper []string

	sync.Mutex
	paths map[string]string
}

// NewExecHelper returns an ExecHelper running commands through exec.
// rootHelper, e.g. "sudo", prefixes commands that must run as root.
func NewExecHelper(exec kexec.Interface, rootHelper string) *ExecHelper {
	return &ExecHelper{
		exec:       exec,
		rootHelper: strings.Fields(rootHelper),
		paths:      map[string]string{},
	}
}

func (e *ExecHelper) lookPath(file string) (string, error) {
	e.Lock()
	defer e.Unlock()
	if path, ok := e.paths[file]; ok {
		return path, nil
	}
	path, err := e.exec.LookPath(file)
	if err != nil {
		return "", errors.Wrapf(err, "failed to find %s", file)
	}
	e.paths[file] = path
	return path, nil
}

// RunCmd runs cmdPath with args and returns its stdout and stderr
func (e *ExecHelper) RunCmd(ctx context.Context, cmdPath string, args ...string) (*bytes.Buffer, *bytes.Buffer, error) {
	cmd := e.exec.CommandContext(ctx, cmdPath, args...)
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	cmd.SetStdout(stdout)
	cmd.SetStderr(stderr)

	counter := atomic.AddUint64(&runCounter, 1)
	logCmd := fmt.Sprintf("%s %s", cmdPath, strings.Join(args, " "))
	klog.V(5).Infof("exec(%d): %s", counter, logCmd)

	err := cmd.Run()
	klog.V(5).Infof("exec(%d): stdout: %q", counter, stdout)
	klog.V(5).Infof("exec(%d): stderr: %q", counter, stderr)
	if err != nil {
		klog.V(5).Infof("exec(%d): err: %v", counter, err)
	}
	return stdout, stderr, err
}

// Execute runs args, whose first element is the tool to run, and returns its
// stdout with trailing whitespace removed. With runAsRoot the command runs
// through the root helper. Failures are logged as errors only with
// logFailAsError.
func (e *ExecHelper) Execute(ctx context.Context, args []string, runAsRoot, logFailAsError bool) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("no command to execute")
	}
	toolPath, err := e.lookPath(args[0])
	if err != nil {
		return "", err
	}
	cmdPath, cmdArgs := toolPath, args[1:]
	if runAsRoot && len(e.rootHelper) > 0 {
		cmdPath, err = e.lookPath(e.rootHelper[0])
		if err != nil {
			return "", err
		}
		cmdArgs = append(append(append([]string{}, e.rootHelper[1:]...), toolPath), args[1:]...)
	}

	stdout, stderr, err := e.RunCmd(ctx, cmdPath, cmdArgs...)
	if err != nil {
		execErr := &ExecError{
			Cmd:    strings.Join(append([]string{cmdPath}, cmdArgs...), " "),
			Stderr: strings.TrimSpace(stderr.String()),
			Err:    err,
		}
		if logFailAsError {
			klog.Errorf("%v", execErr)
		} else {
			klog.V(5).Infof("%v", execErr)
		}
		return "", execErr
	}
	return strings.TrimRight(stdout.String(), " \t\r\n"), nil
}
