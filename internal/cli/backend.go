package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/blocksmith-dev/blocksmith/internal/backend"
	"github.com/blocksmith-dev/blocksmith/internal/config"
	"github.com/blocksmith-dev/blocksmith/internal/errors"
	"github.com/blocksmith-dev/blocksmith/internal/packager"
	"github.com/blocksmith-dev/blocksmith/internal/scanner"
	"github.com/blocksmith-dev/blocksmith/internal/sources"
)

func configureCommand() *cli.Command {
	return &cli.Command{
		Name:  "configure",
		Usage: "set backend connection settings",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "backend-url", Usage: "GraphQL endpoint of the backend"},
			&cli.StringFlag{Name: "workspace", Usage: "workspace to publish into"},
			&cli.StringFlag{Name: "token", Usage: "API token (stored in .env)"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			p, err := loadProject(cmd)
			if err != nil {
				return handleError(cmd, err)
			}

			changed := false
			if url := cmd.String("backend-url"); url != "" {
				p.cfg.Backend.URL = url
				changed = true
			}
			if ws := cmd.String("workspace"); ws != "" {
				p.cfg.Backend.Workspace = ws
				changed = true
			}
			if changed {
				if err := config.Save(p.root, p.cfg); err != nil {
					return handleError(cmd, err)
				}
				fmt.Println("Updated " + config.FileName)
			}

			if token := cmd.String("token"); token != "" {
				if err := writeEnvToken(p.root, token); err != nil {
					return handleError(cmd, err)
				}
				fmt.Println("Token written to .env")
				changed = true
			}
			if !changed {
				fmt.Printf("backend url: %s\nworkspace:   %s\ntoken:       %s\n",
					p.cfg.Backend.URL, orDash(p.cfg.Backend.Workspace), maskToken(p.cfg.Backend.APIToken))
			}
			return nil
		},
	}
}

// writeEnvToken updates BLOCKSMITH_API_TOKEN in the project .env, keeping
// all other lines intact.
func writeEnvToken(root, token string) error {
	path := filepath.Join(root, ".env")
	var lines []string
	if data, err := os.ReadFile(path); err == nil {
		for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
			if strings.HasPrefix(line, "BLOCKSMITH_API_TOKEN=") {
				continue
			}
			lines = append(lines, line)
		}
	}
	lines = append(lines, "BLOCKSMITH_API_TOKEN="+token)
	content := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageFailure, "failed to write .env")
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func maskToken(token string) string {
	if token == "" {
		return "(not set)"
	}
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

func publishCommand() *cli.Command {
	return &cli.Command{
		Name:      "publish",
		Usage:     "publish resources to the backend",
		ArgsUsage: "[name...]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "with-package", Usage: "package and upload archives before publishing"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			p, err := loadProject(cmd)
			if err != nil {
				return handleError(cmd, err)
			}
			client, err := p.requireBackend()
			if err != nil {
				return handleError(cmd, err)
			}

			resources, err := p.scanner.Scan(scanner.Options{
				Strict:             true,
				LoadConfig:         true,
				ValidateSchema:     true,
				RequirePackageJSON: true,
				Names:              cmd.Args().Slice(),
			})
			if err != nil {
				return handleError(cmd, err)
			}
			if len(resources) == 0 {
				return handleError(cmd, errors.NotFoundError("matching resources"))
			}

			var keys map[string]string
			if cmd.Bool("with-package") {
				keys, err = uploadArchives(ctx, p, cmd.Args().Slice())
				if err != nil {
					return handleError(cmd, err)
				}
			}

			for _, res := range resources {
				input := backend.InputFromResource(res)
				if keys != nil {
					input.PackageURL = keys[res.Name]
				}
				result, err := client.Publish(ctx, input)
				if err != nil {
					return handleError(cmd, err)
				}
				fmt.Printf("Published %s %s@%s\n", res.Kind, res.Name, result.Version)
			}
			return nil
		},
	}
}

// uploadArchives packages and uploads the named resources, returning
// resource name to object key.
func uploadArchives(ctx context.Context, p *project, names []string) (map[string]string, error) {
	uploader, err := packager.NewUploader(p.cfg.Upload)
	if err != nil {
		return nil, err
	}
	archives, err := packageResources(p, names)
	if err != nil {
		return nil, err
	}

	keys := make(map[string]string, len(archives))
	for _, archive := range archives {
		key, err := uploader.Upload(ctx, p.cfg.Backend.Workspace, archive.path)
		if err != nil {
			return nil, err
		}
		keys[archive.resource.Name] = key
	}
	return keys, nil
}

func workspacesCommand() *cli.Command {
	return &cli.Command{
		Name:  "workspaces",
		Usage: "list the workspaces your token can publish to",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			p, err := loadProject(cmd)
			if err != nil {
				return handleError(cmd, err)
			}
			client, err := p.requireBackend()
			if err != nil {
				return handleError(cmd, err)
			}

			workspaces, err := client.Workspaces(ctx)
			if err != nil {
				return handleError(cmd, err)
			}
			if len(workspaces) == 0 {
				fmt.Println("No workspaces.")
				return nil
			}
			for _, ws := range workspaces {
				marker := "  "
				if ws.ID == p.cfg.Backend.Workspace || ws.Name == p.cfg.Backend.Workspace {
					marker = "* "
				}
				fmt.Printf("%s%-24s %-12s %s\n", marker, ws.Name, ws.Role, ws.ID)
			}
			return nil
		},
	}
}

func addSourceCommand() *cli.Command {
	return &cli.Command{
		Name:      "add-source",
		Usage:     "register a marketplace source",
		ArgsUsage: "<name> <endpoint>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "description", Usage: "what this source is"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 2 {
				return handleError(cmd, errors.ValidationError("usage: blocksmith add-source <name> <endpoint>"))
			}

			registry, err := sources.Open(cmd.String("project"))
			if err != nil {
				return handleError(cmd, err)
			}
			src, err := registry.Add(cmd.Args().Get(0), cmd.Args().Get(1), cmd.String("description"))
			if err != nil {
				return handleError(cmd, err)
			}
			fmt.Printf("Added source %q (%s)\n", src.Name, src.Endpoint)
			return nil
		},
	}
}

func sourcesCommand() *cli.Command {
	return &cli.Command{
		Name:  "sources",
		Usage: "manage registered marketplace sources",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "list registered sources",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					registry, err := sources.Open(cmd.String("project"))
					if err != nil {
						return handleError(cmd, err)
					}
					if len(registry.List()) == 0 {
						fmt.Println("No sources registered. Add one with `blocksmith add-source`.")
						return nil
					}
					for _, src := range registry.List() {
						marker := "  "
						if src.Default {
							marker = "* "
						}
						fmt.Printf("%s%-20s %s\n", marker, src.Name, src.Endpoint)
					}
					return nil
				},
			},
			{
				Name:      "remove",
				Usage:     "remove a source",
				ArgsUsage: "<name>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					registry, err := sources.Open(cmd.String("project"))
					if err != nil {
						return handleError(cmd, err)
					}
					if err := registry.Remove(cmd.Args().First()); err != nil {
						return handleError(cmd, err)
					}
					fmt.Println("Removed.")
					return nil
				},
			},
			{
				Name:      "default",
				Usage:     "set the default source",
				ArgsUsage: "<name>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					registry, err := sources.Open(cmd.String("project"))
					if err != nil {
						return handleError(cmd, err)
					}
					if err := registry.SetDefault(cmd.Args().First()); err != nil {
						return handleError(cmd, err)
					}
					fmt.Println("Default updated.")
					return nil
				},
			},
		},
	}
}
