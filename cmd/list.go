package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/conneroisu/pantry/internal/config"
	"github.com/conneroisu/pantry/internal/pantry"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"l"},
	Short:   "List the ingredients of a pantry",
	Long: `List the ingredients of a pantry with their entry point kinds.

Examples:
  pantry list -n kitchen               # List ingredients in table format
  pantry list -n kitchen -o json       # Output as JSON
  pantry list -n kitchen -e            # Include entry point files
  pantry list -n kitchen -D -o yaml    # Include partial dependencies, output as YAML`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return SetViperBindings(cmd, pantryBindings)
	},
	RunE: runList,
}

var (
	listFlags       *StandardFlags
	listWithDeps    bool
	listWithEntries bool
)

func init() {
	rootCmd.AddCommand(listCmd)

	listFlags = AddStandardFlags(listCmd, "pantry", "output")

	listCmd.Flags().
		BoolVarP(&listWithDeps, "with-deps", "D", false, "Include partial dependencies")
	listCmd.Flags().
		BoolVarP(&listWithEntries, "with-entries", "e", false, "Include entry point files")
}

// ingredientListing is one row of `pantry list`.
type ingredientListing struct {
	Name         string            `json:"name" yaml:"name"`
	Path         string            `json:"path" yaml:"path"`
	Kinds        []string          `json:"kinds" yaml:"kinds"`
	Entries      map[string]string `json:"entries,omitempty" yaml:"entries,omitempty"`
	Dependencies []string          `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	p, err := pantry.Load(ctx, pantry.Options{
		Name:   cfg.Pantry.Namespace,
		Path:   cfg.Pantry.BaseDir,
		Ignore: cfg.Pantry.Ignore,
	})
	if err != nil {
		return fmt.Errorf("failed to load pantry: %w", err)
	}

	listings, err := listIngredients(ctx, p)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(listings) == 0 && strings.EqualFold(listFlags.OutputFormat, "table") {
		fmt.Fprintln(out, "No ingredients found.")
		return nil
	}

	switch strings.ToLower(listFlags.OutputFormat) {
	case "json":
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(listings)
	case "yaml":
		encoder := yaml.NewEncoder(out)
		defer encoder.Close()
		return encoder.Encode(listings)
	case "table":
		return outputTable(out, listings)
	default:
		return fmt.Errorf("unsupported format: %s", listFlags.OutputFormat)
	}
}

func listIngredients(ctx context.Context, p *pantry.Pantry) ([]ingredientListing, error) {
	var resolver *pantry.Resolver
	if listWithDeps {
		var err error
		resolver, err = pantry.NewResolver(0)
		if err != nil {
			return nil, err
		}
	}
	pantries := map[string]*pantry.Pantry{p.Name: p}

	listings := make([]ingredientListing, 0, len(p.Ingredients))
	for _, name := range p.Names() {
		ing := p.Ingredients[name]
		rel, err := filepath.Rel(p.Path, ing.Path)
		if err != nil {
			rel = ing.Path
		}
		listing := ingredientListing{
			Name:  name,
			Path:  filepath.ToSlash(rel),
			Kinds: ing.Kinds(),
		}

		if listWithEntries {
			listing.Entries = make(map[string]string, len(ing.EntryPoints))
			for kind, ep := range ing.EntryPoints {
				listing.Entries[kind] = ep.Filename
			}
		}

		if resolver != nil && ing.Has(pantry.KindHandlebars) {
			source, err := os.ReadFile(ing.EntryPath(pantry.KindHandlebars))
			if err != nil {
				return nil, fmt.Errorf("reading %s template: %w", name, err)
			}
			deps, err := resolver.ResolveDependencies(ctx, string(source), pantries)
			if err != nil {
				return nil, fmt.Errorf("resolving %s dependencies: %w", name, err)
			}
			for dep := range deps {
				listing.Dependencies = append(listing.Dependencies, dep)
			}
			sort.Strings(listing.Dependencies)
		}

		listings = append(listings, listing)
	}
	return listings, nil
}

func outputTable(out io.Writer, listings []ingredientListing) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	header := "NAME\tPATH\tKINDS"
	separator := "----\t----\t-----"
	if listWithEntries {
		header += "\tENTRIES"
		separator += "\t-------"
	}
	if listWithDeps {
		header += "\tDEPENDENCIES"
		separator += "\t------------"
	}
	fmt.Fprintln(w, header)
	fmt.Fprintln(w, separator)

	for _, listing := range listings {
		row := fmt.Sprintf("%s\t%s\t%s", listing.Name, listing.Path, strings.Join(listing.Kinds, ", "))
		if listWithEntries {
			entries := make([]string, 0, len(listing.Entries))
			for _, kind := range listing.Kinds {
				entries = append(entries, listing.Entries[kind])
			}
			row += "\t" + strings.Join(entries, ", ")
		}
		if listWithDeps {
			row += "\t" + strings.Join(listing.Dependencies, ", ")
		}
		fmt.Fprintln(w, row)
	}

	return w.Flush()
}
