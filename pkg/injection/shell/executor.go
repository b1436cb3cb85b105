package shell

import (
	"context"
	"fmt"
	"strings"

	gocmd "github.com/go-cmd/cmd"
	"github.com/rs/zerolog/log"
)

// Executor runs a command line on the host
type Executor interface {
	Exec(ctx context.Context, cmd []string) (string, error)
}

// HostExecutor runs commands as child processes of the runner
type HostExecutor struct{}

// NewHostExecutor creates a new host executor
func NewHostExecutor() *HostExecutor {
	return &HostExecutor{}
}

// Exec runs cmd and returns its combined output. A non-zero exit status is
// reported as an error carrying the output.
func (h *HostExecutor) Exec(ctx context.Context, cmd []string) (string, error) {
	if len(cmd) == 0 {
		return "", fmt.Errorf("empty command")
	}

	log.Debug().Str("cmd", strings.Join(cmd, " ")).Msg("Executing host command")

	c := gocmd.NewCmd(cmd[0], cmd[1:]...)
	statusCh := c.Start()

	var status gocmd.Status
	select {
	case status = <-statusCh:
	case <-ctx.Done():
		_ = c.Stop()
		<-statusCh
		return "", fmt.Errorf("command %q cancelled: %w", strings.Join(cmd, " "), ctx.Err())
	}

	output := strings.Join(append(status.Stdout, status.Stderr...), "\n")

	if status.Error != nil {
		return output, fmt.Errorf("failed to run %q: %w", strings.Join(cmd, " "), status.Error)
	}
	if status.Exit != 0 {
		return output, fmt.Errorf("command %q exited with code %d: %s", strings.Join(cmd, " "), status.Exit, output)
	}

	return output, nil
}

// Command renders argv the way it is logged and recorded in step names
func Command(cmd []string) string {
	return strings.Join(cmd, " ")
}
