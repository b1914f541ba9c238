package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/blocksmith-dev/blocksmith/internal/config"
	"github.com/blocksmith-dev/blocksmith/internal/errors"
	"github.com/blocksmith-dev/blocksmith/internal/logger"
	"github.com/blocksmith-dev/blocksmith/internal/models"
	"github.com/blocksmith-dev/blocksmith/internal/scanner"
	"github.com/blocksmith-dev/blocksmith/internal/ui"
)

func initCommand() *cli.Command {
	return &cli.Command{
		Name:      "init",
		Usage:     "scaffold a new blocksmith project in the current directory",
		ArgsUsage: "[name]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			root := cmd.String("project")
			if _, err := os.Stat(filepath.Join(root, config.FileName)); err == nil {
				return handleError(cmd, errors.AlreadyExistsError("project (found "+config.FileName+")"))
			}

			cfg := &config.Config{BlocksRoot: "blocks", TemplatesRoot: "templates"}
			cfg.Dev.Host = "localhost"
			cfg.Dev.Port = 3456
			if err := config.Save(root, cfg); err != nil {
				return handleError(cmd, err)
			}
			for _, dir := range []string{"blocks", "templates"} {
				if err := os.MkdirAll(filepath.Join(root, dir), 0755); err != nil {
					return handleError(cmd, errors.Wrap(err, errors.ErrCodeStorageFailure, "failed to create "+dir))
				}
			}
			envExample := "# Backend credentials for blocksmith publish\nBLOCKSMITH_API_TOKEN=\n"
			if err := os.WriteFile(filepath.Join(root, ".env.example"), []byte(envExample), 0644); err != nil {
				return handleError(cmd, errors.Wrap(err, errors.ErrCodeStorageFailure, "failed to write .env.example"))
			}

			fmt.Println("Project initialized. Next steps:")
			fmt.Println("  blocksmith create    scaffold your first block")
			fmt.Println("  blocksmith dev       start the preview server")
			return nil
		},
	}
}

func createCommand() *cli.Command {
	return &cli.Command{
		Name:      "create",
		Usage:     "scaffold a new block or template",
		ArgsUsage: "[name]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "kind", Usage: "block or template", Value: "block"},
			&cli.StringFlag{Name: "category", Usage: "marketplace category"},
			&cli.StringFlag{Name: "description", Usage: "short description"},
			&cli.BoolFlag{Name: "no-wizard", Usage: "skip the interactive wizard"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			p, err := loadProject(cmd)
			if err != nil {
				return handleError(cmd, err)
			}

			spec := ui.WizardResult{
				Name:        cmd.Args().First(),
				Category:    cmd.String("category"),
				Description: cmd.String("description"),
				Accepted:    true,
			}
			switch cmd.String("kind") {
			case "template":
				spec.Kind = models.KindTemplate
			case "block":
				spec.Kind = models.KindBlock
			default:
				return handleError(cmd, errors.ValidationError("kind must be block or template"))
			}

			if spec.Name == "" && !cmd.Bool("no-wizard") {
				result, err := ui.RunWizard()
				if err != nil {
					return handleError(cmd, err)
				}
				if !result.Accepted {
					return nil
				}
				spec = *result
			}
			if spec.Name == "" {
				return handleError(cmd, errors.ValidationError("resource name is required"))
			}
			if spec.DisplayName == "" {
				spec.DisplayName = models.DisplayNameFromDir(spec.Name)
			}

			dir, err := scaffoldResource(p, spec)
			if err != nil {
				return handleError(cmd, err)
			}
			fmt.Printf("Created %s %q in %s\n", spec.Kind, spec.Name, dir)
			return nil
		},
	}
}

// scaffoldResource writes the directory skeleton for a new resource.
func scaffoldResource(p *project, spec ui.WizardResult) (string, error) {
	root := p.cfg.BlocksDir(p.root)
	if spec.Kind == models.KindTemplate {
		root = p.cfg.TemplatesDir(p.root)
	}
	dir := filepath.Join(root, spec.Name)
	if _, err := os.Stat(dir); err == nil {
		return "", errors.AlreadyExistsError(fmt.Sprintf("%s %q", spec.Kind, spec.Name))
	}
	if err := os.MkdirAll(filepath.Join(dir, "src"), 0755); err != nil {
		return "", errors.Wrap(err, errors.ErrCodeStorageFailure, "failed to create resource directory")
	}

	pkg := map[string]interface{}{
		"name":        spec.Name,
		"version":     "0.1.0",
		"description": spec.Description,
		"main":        "src/index.js",
	}
	pkgJSON, _ := json.MarshalIndent(pkg, "", "  ")

	cfg := models.ResourceConfig{
		Name:        spec.DisplayName,
		Description: spec.Description,
		Category:    spec.Category,
		Schema: models.FieldSchema{
			"heading": {
				Type:         models.FieldTypeText,
				Label:        "Heading",
				DefaultValue: spec.DisplayName,
			},
		},
	}
	if spec.Kind == models.KindTemplate {
		cfg.Pages = []models.TemplatePage{{Name: "Home", Path: "/"}}
	}
	cfgYAML, err := yaml.Marshal(&cfg)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeInternal, "failed to encode configuration")
	}

	files := map[string][]byte{
		scanner.PackageFileName: pkgJSON,
		scanner.ConfigFileName:  cfgYAML,
		"preview.json":          []byte("{}\n"),
		"src/index.js":          []byte("export default function render(content) {\n  return content;\n}\n"),
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), content, 0644); err != nil {
			return "", errors.Wrap(err, errors.ErrCodeStorageFailure, "failed to write "+name)
		}
	}
	return dir, nil
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:      "migrate",
		Usage:     "convert legacy package.json metadata into configuration files",
		ArgsUsage: "[name...]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "dry-run", Usage: "report what would change without writing"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			p, err := loadProject(cmd)
			if err != nil {
				return handleError(cmd, err)
			}

			resources, err := p.scanner.Scan(scanner.Options{Names: cmd.Args().Slice()})
			if err != nil {
				return handleError(cmd, err)
			}

			migrated := 0
			for _, res := range resources {
				changed, err := migrateResource(res, cmd.Bool("dry-run"))
				if err != nil {
					return handleError(cmd, err)
				}
				if changed {
					migrated++
					fmt.Printf("  %s %s\n", res.Kind, res.Name)
				}
			}
			if migrated == 0 {
				fmt.Println("Nothing to migrate.")
			} else if cmd.Bool("dry-run") {
				fmt.Printf("%d resource(s) would be migrated.\n", migrated)
			} else {
				fmt.Printf("Migrated %d resource(s).\n", migrated)
			}
			return nil
		},
	}
}

// migrateResource moves the legacy "blocksmith" block out of package.json
// into a configuration file. Resources that already have one are skipped.
func migrateResource(res *models.Resource, dryRun bool) (bool, error) {
	pkgPath := filepath.Join(res.Path, scanner.PackageFileName)
	data, err := os.ReadFile(pkgPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.Wrap(err, errors.ErrCodeStorageFailure, "failed to read package.json")
	}

	var pkg map[string]interface{}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return false, errors.ConfigError(res.Name, err)
	}
	legacy, ok := pkg["blocksmith"].(map[string]interface{})
	if !ok || len(legacy) == 0 {
		return false, nil
	}

	cfgPath := filepath.Join(res.Path, scanner.ConfigFileName)
	if _, err := os.Stat(cfgPath); err == nil {
		logger.Log.Warnf("%s %q already has %s; leaving the legacy block in place",
			res.Kind, res.Name, scanner.ConfigFileName)
		return false, nil
	}
	if dryRun {
		return true, nil
	}

	cfgYAML, err := yaml.Marshal(legacy)
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeInternal, "failed to encode configuration")
	}
	if err := os.WriteFile(cfgPath, cfgYAML, 0644); err != nil {
		return false, errors.Wrap(err, errors.ErrCodeStorageFailure, "failed to write "+scanner.ConfigFileName)
	}

	delete(pkg, "blocksmith")
	pkgJSON, err := json.MarshalIndent(pkg, "", "  ")
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeInternal, "failed to encode package.json")
	}
	if err := os.WriteFile(pkgPath, append(pkgJSON, '\n'), 0644); err != nil {
		return false, errors.Wrap(err, errors.ErrCodeStorageFailure, "failed to rewrite package.json")
	}
	return true, nil
}

func syncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "compare local resources against their published versions",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			p, err := loadProject(cmd)
			if err != nil {
				return handleError(cmd, err)
			}
			client, err := p.requireBackend()
			if err != nil {
				return handleError(cmd, err)
			}

			resources, err := p.scanner.Scan(scanner.Options{LoadConfig: true})
			if err != nil {
				return handleError(cmd, err)
			}

			fmt.Printf("%-10s %-30s %-12s %-12s %s\n", "KIND", "NAME", "LOCAL", "PUBLISHED", "STATUS")
			for _, res := range resources {
				published, err := client.GetPublishedVersion(ctx, res.Name, "")
				if err != nil {
					return handleError(cmd, err)
				}

				remote := "-"
				status := "not published"
				if published != nil && published.Published {
					remote = published.Version
					switch {
					case remote == res.Version:
						status = "up to date"
					default:
						status = "differs"
					}
				}
				fmt.Printf("%-10s %-30s %-12s %-12s %s\n", res.Kind, res.Name, res.Version, remote, status)
			}
			return nil
		},
	}
}
