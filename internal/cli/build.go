package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/blocksmith-dev/blocksmith/internal/models"
	"github.com/blocksmith-dev/blocksmith/internal/packager"
	"github.com/blocksmith-dev/blocksmith/internal/scanner"
)

func buildCommand() *cli.Command {
	return &cli.Command{
		Name:      "build",
		Usage:     "validate all resources the way a publish would",
		ArgsUsage: "[name...]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			p, err := loadProject(cmd)
			if err != nil {
				return handleError(cmd, err)
			}

			// Strict scanning makes the first broken resource fail the
			// build, mirroring what the backend would reject.
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

			for _, res := range resources {
				cfg := &models.ResourceConfig{
					Name:        res.DisplayName,
					Description: res.Description,
					Category:    res.Category,
					Tags:        res.Tags,
					Schema:      res.Schema,
				}
				if err := p.cache.Update(res.Name, res.Kind, cfg, res.Version); err != nil {
					return handleError(cmd, err)
				}
			}

			fmt.Printf("Build OK: %d resource(s) validated.\n", len(resources))
			return nil
		},
	}
}

// archiveDir is where package writes archives, relative to the project root.
const archiveDir = ".blocksmith/packages"

func packageCommand() *cli.Command {
	return &cli.Command{
		Name:      "package",
		Usage:     "package resources into distributable archives",
		ArgsUsage: "[name...]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			p, err := loadProject(cmd)
			if err != nil {
				return handleError(cmd, err)
			}

			archives, err := packageResources(p, cmd.Args().Slice())
			if err != nil {
				return handleError(cmd, err)
			}
			for _, a := range archives {
				fmt.Println(a.path)
			}
			return nil
		},
	}
}

// builtArchive pairs a packaged resource with its archive path.
type builtArchive struct {
	resource *models.Resource
	path     string
}

// packageResources runs a strict scan over the named resources (or all)
// and archives each one.
func packageResources(p *project, names []string) ([]builtArchive, error) {
	resources, err := p.scanner.Scan(scanner.Options{
		Strict:             true,
		LoadConfig:         true,
		ValidateSchema:     true,
		RequirePackageJSON: true,
		Names:              names,
	})
	if err != nil {
		return nil, err
	}

	dest := filepath.Join(p.root, archiveDir)
	archives := make([]builtArchive, 0, len(resources))
	for _, res := range resources {
		path, err := packager.Archive(res, dest)
		if err != nil {
			return nil, err
		}
		archives = append(archives, builtArchive{resource: res, path: path})
	}
	return archives, nil
}

func uploadCommand() *cli.Command {
	return &cli.Command{
		Name:      "upload",
		Usage:     "package resources and upload the archives to object storage",
		ArgsUsage: "[name...]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			p, err := loadProject(cmd)
			if err != nil {
				return handleError(cmd, err)
			}

			uploader, err := packager.NewUploader(p.cfg.Upload)
			if err != nil {
				return handleError(cmd, err)
			}

			archives, err := packageResources(p, cmd.Args().Slice())
			if err != nil {
				return handleError(cmd, err)
			}
			for _, archive := range archives {
				key, err := uploader.Upload(ctx, p.cfg.Backend.Workspace, archive.path)
				if err != nil {
					return handleError(cmd, err)
				}
				fmt.Printf("Uploaded %s\n", key)
			}
			return nil
		},
	}
}
