package testing

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/onsi/gomega/format"
	kexec "k8s.io/utils/exec"
	fakeexec "k8s.io/utils/exec/testing"
)

func init() {
	// full command lines are needed to tell which fake command failed
	format.TruncatedDiff = false
}

// ExpectedCmd describes one command a FakeExec expects to run and what the
// command returns
type ExpectedCmd struct {
	// Cmd is the full command line, e.g. "ovs-vsctl --timeout=10 list-br"
	Cmd string
	// Output is written to the command's stdout
	Output string
	// Stderr is written to the command's stderr
	Stderr string
	// Err is returned by the command
	Err error
	// Action runs when the command runs; its error is returned if Err is nil
	Action func() error
}

// FakeExec is a kexec.Interface that runs a script of expected commands in order
type FakeExec struct {
	sync.Mutex
	expected []*ExpectedCmd
	executed int
	called   []string
	// ErrorDesc describes the first unexpected command, if any
	ErrorDesc string
}

var _ kexec.Interface = &FakeExec{}

// NewFakeExec returns a FakeExec without expected commands
func NewFakeExec() *FakeExec {
	return &FakeExec{}
}

// AddFakeCmd appends an expected command
func (f *FakeExec) AddFakeCmd(expected *ExpectedCmd) {
	f.Lock()
	defer f.Unlock()
	f.expected = append(f.expected, expected)
}

// AddFakeCmdsNoOutputNoError appends expected commands that succeed without output
func (f *FakeExec) AddFakeCmdsNoOutputNoError(commands []string) {
	for _, cmd := range commands {
		f.AddFakeCmd(&ExpectedCmd{Cmd: cmd})
	}
}

// CalledMatchesExpected reports whether exactly the expected commands ran
func (f *FakeExec) CalledMatchesExpected() bool {
	f.Lock()
	defer f.Unlock()
	return f.ErrorDesc == "" && f.executed == len(f.expected)
}

// ExecutedCommands returns the command lines that ran, in order
func (f *FakeExec) ExecutedCommands() []string {
	f.Lock()
	defer f.Unlock()
	return append([]string{}, f.called...)
}

// Command implements kexec.Interface
func (f *FakeExec) Command(cmd string, args ...string) kexec.Cmd {
	f.Lock()
	defer f.Unlock()

	cmdLine := strings.Join(append([]string{cmd}, args...), " ")
	f.called = append(f.called, cmdLine)
	fake := &fakeexec.FakeCmd{Argv: append([]string{cmd}, args...)}

	if f.executed >= len(f.expected) {
		f.unexpected(fmt.Sprintf("unexpected command %q", cmdLine))
		action := func() ([]byte, []byte, error) {
			return nil, nil, fmt.Errorf("unexpected command %q", cmdLine)
		}
		fake.RunScript = []fakeexec.FakeAction{action}
		fake.OutputScript = []fakeexec.FakeAction{action}
		fake.CombinedOutputScript = []fakeexec.FakeAction{action}
		return fake
	}

	expected := f.expected[f.executed]
	f.executed++
	if expected.Cmd != cmdLine {
		f.unexpected(fmt.Sprintf("expected command %q but got %q", expected.Cmd, cmdLine))
	}
	action := func() ([]byte, []byte, error) {
		err := expected.Err
		if err == nil && expected.Action != nil {
			err = expected.Action()
		}
		return []byte(expected.Output), []byte(expected.Stderr), err
	}
	fake.RunScript = []fakeexec.FakeAction{action}
	fake.OutputScript = []fakeexec.FakeAction{action}
	fake.CombinedOutputScript = []fakeexec.FakeAction{action}
	return fake
}

// CommandContext implements kexec.Interface
func (f *FakeExec) CommandContext(ctx context.Context, cmd string, args ...string) kexec.Cmd {
	return f.Command(cmd, args...)
}

// LookPath implements kexec.Interface and resolves every file to itself
func (f *FakeExec) LookPath(file string) (string, error) {
	return file, nil
}

func (f *FakeExec) unexpected(desc string) {
	if f.ErrorDesc == "" {
		f.ErrorDesc = desc
	}
}
