// Package cli implements the blocksmith command surface.
package cli

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/blocksmith-dev/blocksmith/internal/backend"
	"github.com/blocksmith-dev/blocksmith/internal/cache"
	"github.com/blocksmith-dev/blocksmith/internal/config"
	"github.com/blocksmith-dev/blocksmith/internal/errors"
	"github.com/blocksmith-dev/blocksmith/internal/logger"
	"github.com/blocksmith-dev/blocksmith/internal/scanner"
)

// Root builds the root command.
func Root() *cli.Command {
	return &cli.Command{
		Name:    "blocksmith",
		Usage:   "author, preview and publish marketplace blocks and templates",
		Version: Version,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "enable debug logging",
			},
			&cli.StringFlag{
				Name:    "project",
				Aliases: []string{"C"},
				Usage:   "project root directory",
				Value:   ".",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			logger.Init(cmd.Bool("verbose"))
			return ctx, nil
		},
		Commands: []*cli.Command{
			initCommand(),
			createCommand(),
			listCommand(),
			infoCommand(),
			buildCommand(),
			devCommand(),
			migrateCommand(),
			syncCommand(),
			configureCommand(),
			publishCommand(),
			packageCommand(),
			uploadCommand(),
			workspacesCommand(),
			addSourceCommand(),
			sourcesCommand(),
		},
	}
}

// Version is set at build time.
var Version = "dev"

// project bundles everything a command needs about the current project.
type project struct {
	root    string
	cfg     *config.Config
	scanner *scanner.Scanner
	cache   *cache.Cache
}

// loadProject resolves the project root and loads its configuration and
// scanner. Commands that operate on resources all start here.
func loadProject(cmd *cli.Command) (*project, error) {
	root := cmd.String("project")
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, errors.ValidationError("project root " + root + " is not a directory")
	}

	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}

	return &project{
		root:    root,
		cfg:     cfg,
		scanner: scanner.New(cfg.BlocksDir(root), cfg.TemplatesDir(root), nil, nil),
		cache:   cache.Load(root),
	}, nil
}

// backendClient builds the backend client from project configuration, or
// nil when no token is configured.
func (p *project) backendClient() *backend.Client {
	if p.cfg.Backend.APIToken == "" {
		return nil
	}
	return backend.New(p.cfg.Backend.URL, p.cfg.Backend.APIToken, p.cfg.Backend.Workspace)
}

// requireBackend is backendClient for commands that cannot work without one.
func (p *project) requireBackend() (*backend.Client, error) {
	c := p.backendClient()
	if c == nil {
		return nil, errors.UnauthorizedError("no API token configured; set BLOCKSMITH_API_TOKEN or run `blocksmith configure --token ...`")
	}
	return c, nil
}

// handleError formats an error for the terminal and exits non-zero.
func handleError(cmd *cli.Command, err error) error {
	if err == nil {
		return nil
	}
	handler := errors.NewCLIErrorHandler(cmd.Bool("verbose"))
	return cli.Exit(handler.FormatError(err), 1)
}
