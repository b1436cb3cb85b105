// Package shelltest provides an Executor that records command lines
// instead of running them.
package shelltest

import (
	"context"
	"strings"
	"sync"
)

// Executor records every command and replies from a canned table
type Executor struct {
	mu       sync.Mutex
	commands []string
	outputs  map[string]string
	errors   map[string]error
}

// New creates an empty recording executor
func New() *Executor {
	return &Executor{
		outputs: make(map[string]string),
		errors:  make(map[string]error),
	}
}

// Reply sets the output returned for a command line
func (e *Executor) Reply(cmdline, output string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.outputs[cmdline] = output
}

// Fail makes a command line return err
func (e *Executor) Fail(cmdline string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.errors[cmdline] = err
}

func (e *Executor) Exec(ctx context.Context, cmd []string) (string, error) {
	cmdline := strings.Join(cmd, " ")

	e.mu.Lock()
	defer e.mu.Unlock()
	e.commands = append(e.commands, cmdline)
	return e.outputs[cmdline], e.errors[cmdline]
}

// Commands returns the recorded command lines in order
func (e *Executor) Commands() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.commands))
	copy(out, e.commands)
	return out
}

// Reset forgets recorded commands
func (e *Executor) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.commands = nil
}
