// Package bundler abstracts the external asset bundler the dev server
// embeds previews from. The tool does not compile frontend assets itself;
// it shells out to whatever the project uses and only needs a URL back.
package bundler

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/blocksmith-dev/blocksmith/internal/errors"
	"github.com/blocksmith-dev/blocksmith/internal/logger"
)

// Bundler serves compiled preview assets for the dev server.
type Bundler interface {
	// Start launches the bundler and returns the URL it serves on.
	Start(ctx context.Context) (string, error)
	// Stop shuts the bundler down.
	Stop()
}

// Noop is the bundler used when the project configures none; the preview
// shell then renders a hint instead of an iframe.
type Noop struct{}

func (Noop) Start(context.Context) (string, error) { return "", nil }
func (Noop) Stop()                                 {}

// Command runs a configured shell command (vite, webpack serve, ...) as the
// bundler process.
type Command struct {
	command string
	url     string
	dir     string
	cmd     *exec.Cmd
	cancel  context.CancelFunc
}

// NewCommand creates a command bundler. url is where the command is expected
// to serve once it is up.
func NewCommand(command, url, dir string) *Command {
	return &Command{command: command, url: url, dir: dir}
}

// Start launches the command and hands back the configured URL. The process
// inherits stdout/stderr so bundler output lands in the user's terminal.
func (c *Command) Start(ctx context.Context) (string, error) {
	if strings.TrimSpace(c.command) == "" {
		return "", errors.ValidationError("bundler command is empty")
	}

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.cmd = exec.CommandContext(ctx, "sh", "-c", c.command)
	c.cmd.Dir = c.dir
	c.cmd.Stdout = os.Stdout
	c.cmd.Stderr = os.Stderr

	if err := c.cmd.Start(); err != nil {
		cancel()
		return "", errors.Wrap(err, errors.ErrCodeInternal, "failed to start bundler")
	}
	logger.Log.Infof("bundler started (pid %d): %s", c.cmd.Process.Pid, c.command)

	go func() {
		if err := c.cmd.Wait(); err != nil && ctx.Err() == nil {
			logger.Log.Warnf("bundler exited: %v", err)
		}
	}()

	return c.url, nil
}

// Stop terminates the bundler process, giving it a moment to exit cleanly.
func (c *Command) Stop() {
	if c.cancel == nil {
		return
	}
	if c.cmd != nil && c.cmd.Process != nil {
		_ = c.cmd.Process.Signal(os.Interrupt)
		time.Sleep(500 * time.Millisecond)
	}
	c.cancel()
}
