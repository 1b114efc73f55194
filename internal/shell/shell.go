// Package shell runs external OS tools (hdiutil, ditto, codesign, aria2c,
// docker, clamscan) behind an interface so callers can be tested without
// executing anything.
package shell

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// CommandRunner executes external commands.
// This interface enables testing without actual command execution.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// RealCommandRunner executes actual system commands.
type RealCommandRunner struct{}

// NewRealCommandRunner creates a command runner that executes real commands.
func NewRealCommandRunner() *RealCommandRunner {
	return &RealCommandRunner{}
}

// Run executes a command and returns combined stdout/stderr output.
func (r *RealCommandRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.CombinedOutput()
}

// LookPath reports whether name resolves to an executable on PATH.
func LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// ExitCode extracts the process exit code from an error returned by Run.
// It returns -1 when the error does not carry one (command not found,
// context cancelled).
func ExitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}

	// Interface with ExitCode() method (mocks)
	type exitCoder interface {
		ExitCode() int
	}
	var coder exitCoder
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}

	return -1
}

// ExitError is a test stand-in for *exec.ExitError.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// ExitCode returns the simulated exit status.
func (e *ExitError) ExitCode() int {
	return e.Code
}

// MockCommandRunner is a test double for CommandRunner returning the same
// result for every call.
type MockCommandRunner struct {
	Output []byte
	Err    error
	Calls  [][]string // Track calls for debugging
}

// Run returns the configured output and error.
func (m *MockCommandRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	call := append([]string{name}, args...)
	m.Calls = append(m.Calls, call)
	return m.Output, m.Err
}

// Response is one scripted result of ScriptedRunner.
type Response struct {
	Output []byte
	Err    error
}

// ScriptedRunner returns results keyed by command. A call to "hdiutil
// attach ..." first looks up "hdiutil attach", then "hdiutil". Each key
// holds a queue; the last entry repeats once the queue drains. Unscripted
// commands succeed with no output.
type ScriptedRunner struct {
	Responses map[string][]Response
	Calls     [][]string
}

// NewScriptedRunner creates an empty scripted runner.
func NewScriptedRunner() *ScriptedRunner {
	return &ScriptedRunner{Responses: make(map[string][]Response)}
}

// On appends a response for key.
func (s *ScriptedRunner) On(key string, output string, err error) *ScriptedRunner {
	s.Responses[key] = append(s.Responses[key], Response{Output: []byte(output), Err: err})
	return s
}

// Run records the call and returns the next scripted response.
func (s *ScriptedRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	s.Calls = append(s.Calls, append([]string{name}, args...))

	keys := []string{name}
	if len(args) > 0 {
		keys = []string{name + " " + args[0], name}
	}
	for _, key := range keys {
		queue, ok := s.Responses[key]
		if !ok || len(queue) == 0 {
			continue
		}
		resp := queue[0]
		if len(queue) > 1 {
			s.Responses[key] = queue[1:]
		}
		return resp.Output, resp.Err
	}
	return nil, nil
}

// Called reports whether a call starting with prefix (space separated) was
// made.
func (s *ScriptedRunner) Called(prefix string) bool {
	for _, call := range s.Calls {
		if strings.HasPrefix(strings.Join(call, " "), prefix) {
			return true
		}
	}
	return false
}
