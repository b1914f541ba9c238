package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/blocksmith-dev/blocksmith/internal/bundler"
	"github.com/blocksmith-dev/blocksmith/internal/logger"
	"github.com/blocksmith-dev/blocksmith/internal/server"
	"github.com/blocksmith-dev/blocksmith/internal/service"
	"github.com/blocksmith-dev/blocksmith/internal/watcher"
)

func devCommand() *cli.Command {
	return &cli.Command{
		Name:  "dev",
		Usage: "start the local preview server",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "port", Usage: "port to listen on (overrides configuration)"},
			&cli.BoolFlag{Name: "no-bundler", Usage: "do not start the configured bundler"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			p, err := loadProject(cmd)
			if err != nil {
				return handleError(cmd, err)
			}

			session := service.NewSession(p.scanner, p.cache, p.backendClient())
			if err := session.Start(); err != nil {
				return handleError(cmd, err)
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			previewURL := p.cfg.Dev.BundlerURL
			var b bundler.Bundler = bundler.Noop{}
			if p.cfg.Dev.BundlerCommand != "" && !cmd.Bool("no-bundler") {
				b = bundler.NewCommand(p.cfg.Dev.BundlerCommand, p.cfg.Dev.BundlerURL, p.root)
			}
			if url, err := b.Start(ctx); err != nil {
				return handleError(cmd, err)
			} else if url != "" {
				previewURL = url
			}
			defer b.Stop()

			w, err := watcher.New(session, p.cfg.BlocksDir(p.root), p.cfg.TemplatesDir(p.root))
			if err != nil {
				return handleError(cmd, err)
			}
			go func() {
				if err := w.Start(ctx); err != nil && ctx.Err() == nil {
					logger.Log.Errorf("watcher stopped: %v", err)
				}
			}()

			port := p.cfg.Dev.Port
			if cmd.Int("port") != 0 {
				port = int(cmd.Int("port"))
			}
			dev := server.NewDevServer(session, p.cfg.Dev.Host, port, previewURL)

			errCh := make(chan error, 1)
			go func() { errCh <- dev.Start() }()

			select {
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := dev.Stop(shutdownCtx); err != nil {
					return handleError(cmd, err)
				}
				return nil
			case err := <-errCh:
				return handleError(cmd, err)
			}
		},
	}
}
