package cli

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/sahilm/fuzzy"
	"github.com/urfave/cli/v3"

	"github.com/blocksmith-dev/blocksmith/internal/errors"
	"github.com/blocksmith-dev/blocksmith/internal/models"
	"github.com/blocksmith-dev/blocksmith/internal/scanner"
	"github.com/blocksmith-dev/blocksmith/internal/ui"
)

func listCommand() *cli.Command {
	return &cli.Command{
		Name:      "list",
		Aliases:   []string{"ls"},
		Usage:     "list the project's blocks and templates",
		ArgsUsage: "[filter]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "kind", Usage: "only blocks or only templates"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			p, err := loadProject(cmd)
			if err != nil {
				return handleError(cmd, err)
			}

			resources, err := p.scanner.Scan(scanner.Options{LoadConfig: true})
			if err != nil {
				return handleError(cmd, err)
			}

			if kind := cmd.String("kind"); kind != "" {
				filtered := resources[:0]
				for _, res := range resources {
					if string(res.Kind) == strings.TrimSuffix(kind, "s") {
						filtered = append(filtered, res)
					}
				}
				resources = filtered
			}
			if query := cmd.Args().First(); query != "" {
				resources = fuzzyFilter(resources, query)
			}

			if len(resources) == 0 {
				fmt.Println("No resources found.")
				return nil
			}
			printResourceList(resources)
			return nil
		},
	}
}

// fuzzyFilter ranks resources against a query over name and display name.
func fuzzyFilter(resources []*models.Resource, query string) []*models.Resource {
	haystack := make([]string, len(resources))
	for i, res := range resources {
		haystack[i] = res.Name + " " + res.DisplayName
	}

	matches := fuzzy.Find(query, haystack)
	out := make([]*models.Resource, 0, len(matches))
	for _, m := range matches {
		out = append(out, resources[m.Index])
	}
	return out
}

func printResourceList(resources []*models.Resource) {
	byKind := map[models.ResourceKind][]*models.Resource{}
	for _, res := range resources {
		byKind[res.Kind] = append(byKind[res.Kind], res)
	}

	for _, kind := range []models.ResourceKind{models.KindBlock, models.KindTemplate} {
		group := byKind[kind]
		if len(group) == 0 {
			continue
		}
		title := strings.ToUpper(string(kind)[:1]) + string(kind)[1:] + "s"
		fmt.Println(ui.HeaderStyle.Render(title))
		for _, res := range group {
			line := fmt.Sprintf("%-28s %-10s %s", res.Name, res.Version, res.DisplayName)
			if res.Category != "" {
				line += "  [" + res.Category + "]"
			}
			fmt.Println(ui.ListItemStyle.Render(line))
		}
		fmt.Println()
	}
}

func infoCommand() *cli.Command {
	return &cli.Command{
		Name:      "info",
		Usage:     "show details for one resource",
		ArgsUsage: "<name>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			p, err := loadProject(cmd)
			if err != nil {
				return handleError(cmd, err)
			}
			name := cmd.Args().First()
			if name == "" {
				return handleError(cmd, errors.ValidationError("resource name is required"))
			}

			resources, err := p.scanner.Scan(scanner.Options{
				LoadConfig: true,
				Names:      []string{name},
			})
			if err != nil {
				return handleError(cmd, err)
			}
			if len(resources) == 0 {
				return handleError(cmd, errors.NotFoundError(fmt.Sprintf("resource %q", name)))
			}

			md := resourceMarkdown(resources[0])
			rendered, err := glamour.Render(md, "auto")
			if err != nil {
				// Fall back to the raw markdown on rendering trouble.
				fmt.Println(md)
				return nil
			}
			fmt.Print(rendered)
			return nil
		},
	}
}

// resourceMarkdown renders one resource as a markdown document.
func resourceMarkdown(res *models.Resource) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", res.DisplayName)
	fmt.Fprintf(&b, "- **Kind:** %s\n", res.Kind)
	fmt.Fprintf(&b, "- **Version:** %s\n", res.Version)
	if res.Category != "" {
		fmt.Fprintf(&b, "- **Category:** %s\n", res.Category)
	}
	if len(res.Tags) > 0 {
		fmt.Fprintf(&b, "- **Tags:** %s\n", strings.Join(res.Tags, ", "))
	}
	if res.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", res.Description)
	}

	if len(res.Schema) > 0 {
		b.WriteString("\n## Fields\n\n")
		b.WriteString("| Field | Type | Required | Default |\n")
		b.WriteString("|-------|------|----------|---------|\n")
		names := make([]string, 0, len(res.Schema))
		for name := range res.Schema {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			def := res.Schema[name]
			defaultVal := "-"
			if def.DefaultValue != nil {
				defaultVal = fmt.Sprintf("%v", def.DefaultValue)
			}
			required := ""
			if def.Required {
				required = "yes"
			}
			fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", name, def.Type, required, defaultVal)
		}
	}

	if len(res.Pages) > 0 {
		b.WriteString("\n## Pages\n\n")
		for _, page := range res.Pages {
			fmt.Fprintf(&b, "- %s (`%s`)\n", page.Name, page.Path)
		}
	}
	return b.String()
}
