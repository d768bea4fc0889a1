package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/foxzi/postcard/internal/template"
)

var (
	templateKind      string
	templateOutputDir string
)

var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Template management commands",
}

var templateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all templates",
	RunE:  runTemplateList,
}

var templateShowCmd = &cobra.Command{
	Use:   "show <id|name>",
	Short: "Show template details",
	Args:  cobra.ExactArgs(1),
	RunE:  runTemplateShow,
}

var templatePreviewCmd = &cobra.Command{
	Use:   "preview <id|name>",
	Short: "Render a saved template with sample data",
	Args:  cobra.ExactArgs(1),
	RunE:  runTemplatePreview,
}

var templateDeleteCmd = &cobra.Command{
	Use:   "delete <id|name>",
	Short: "Delete a template",
	Args:  cobra.ExactArgs(1),
	RunE:  runTemplateDelete,
}

var templateExportCmd = &cobra.Command{
	Use:   "export <id|name>",
	Short: "Export a template to a JSON file",
	Args:  cobra.ExactArgs(1),
	RunE:  runTemplateExport,
}

var templateImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a template from a JSON file",
	Args:  cobra.ExactArgs(1),
	RunE:  runTemplateImport,
}

func init() {
	templateListCmd.Flags().StringVar(&templateKind, "kind", "", "only templates of this kind")

	templatePreviewCmd.Flags().StringVar(&previewVariant, "variant", "", "override the stored variant")
	templatePreviewCmd.Flags().BoolVar(&previewText, "text", false, "render the plain text alternative")
	templatePreviewCmd.Flags().StringVarP(&previewOutput, "output", "o", "", "write to file instead of stdout")

	templateExportCmd.Flags().StringVar(&templateOutputDir, "output", "./", "Output directory")

	templateCmd.AddCommand(
		templateListCmd,
		templateShowCmd,
		templatePreviewCmd,
		templateDeleteCmd,
		templateExportCmd,
		templateImportCmd,
	)
	rootCmd.AddCommand(templateCmd)
}

func getTemplateStorage() (*template.Storage, func(), error) {
	stores, db, err := openStores()
	if err != nil {
		return nil, nil, err
	}
	return stores.Templates, func() { db.Close() }, nil
}

// findTemplate looks a template up by ID, then by name
func findTemplate(cmd *cobra.Command, storage *template.Storage, ref string) (*template.Template, error) {
	tmpl, err := storage.Get(cmd.Context(), ref)
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	if tmpl == nil {
		tmpl, err = storage.GetByName(cmd.Context(), ref)
		if err != nil {
			return nil, fmt.Errorf("failed to get template: %w", err)
		}
	}
	if tmpl == nil {
		return nil, fmt.Errorf("template not found: %s", ref)
	}
	return tmpl, nil
}

func runTemplateList(cmd *cobra.Command, args []string) error {
	storage, cleanup, err := getTemplateStorage()
	if err != nil {
		return err
	}
	defer cleanup()

	templates, err := storage.List(cmd.Context(), template.ListFilter{Kind: templateKind})
	if err != nil {
		return fmt.Errorf("failed to list templates: %w", err)
	}

	if len(templates) == 0 {
		fmt.Println("No templates found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tKIND\tVARIANT\tSUBJECT\tVERSION\tUPDATED")
	for _, tmpl := range templates {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			tmpl.ID[:8],
			tmpl.Name,
			tmpl.Kind,
			tmpl.Variant,
			truncate(tmpl.Input.Subject, 40),
			tmpl.Version,
			tmpl.UpdatedAt.Format("2006-01-02 15:04"),
		)
	}
	w.Flush()

	fmt.Printf("\nTotal: %d templates\n", len(templates))
	return nil
}

func runTemplateShow(cmd *cobra.Command, args []string) error {
	storage, cleanup, err := getTemplateStorage()
	if err != nil {
		return err
	}
	defer cleanup()

	tmpl, err := findTemplate(cmd, storage, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("ID:          %s\n", tmpl.ID)
	fmt.Printf("Name:        %s\n", tmpl.Name)
	fmt.Printf("Description: %s\n", tmpl.Description)
	fmt.Printf("Kind:        %s\n", tmpl.Kind)
	fmt.Printf("Variant:     %s\n", tmpl.Variant)
	fmt.Printf("Version:     %d\n", tmpl.Version)
	fmt.Printf("Created:     %s\n", tmpl.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Updated:     %s\n", tmpl.UpdatedAt.Format("2006-01-02 15:04:05"))
	fmt.Println()
	fmt.Printf("Subject:     %s\n", tmpl.Input.Subject)
	fmt.Printf("Hero:        %s\n", tmpl.Input.HeroTitle)
	fmt.Printf("Subtitle:    %s\n", tmpl.Input.Subtitle)
	fmt.Printf("Color:       %s on %s\n", tmpl.Input.PrimaryColor, tmpl.Input.BackgroundColor)
	if tmpl.Input.ShowCallToAction {
		fmt.Printf("Button:      %s -> %s\n", tmpl.Input.CTAText, tmpl.Input.CTAURL)
	}
	fmt.Printf("\n--- Body ---\n%s\n", tmpl.Input.BodyText)

	return nil
}

func runTemplatePreview(cmd *cobra.Command, args []string) error {
	storage, cleanup, err := getTemplateStorage()
	if err != nil {
		return err
	}
	defer cleanup()

	tmpl, err := findTemplate(cmd, storage, args[0])
	if err != nil {
		return err
	}

	variant := tmpl.Variant
	if previewVariant != "" {
		variant = template.ParseVariant(previewVariant)
	}
	return writeRendered(tmpl.Input, variant)
}

func runTemplateDelete(cmd *cobra.Command, args []string) error {
	storage, cleanup, err := getTemplateStorage()
	if err != nil {
		return err
	}
	defer cleanup()

	tmpl, err := findTemplate(cmd, storage, args[0])
	if err != nil {
		return err
	}
	if err := storage.Delete(cmd.Context(), tmpl.ID); err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}

	fmt.Printf("Template %s deleted\n", tmpl.Name)
	return nil
}

func runTemplateExport(cmd *cobra.Command, args []string) error {
	storage, cleanup, err := getTemplateStorage()
	if err != nil {
		return err
	}
	defer cleanup()

	tmpl, err := findTemplate(cmd, storage, args[0])
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(tmpl, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal template: %w", err)
	}

	if err := os.MkdirAll(templateOutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(templateOutputDir, tmpl.Name+".json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write template: %w", err)
	}

	fmt.Printf("Template exported to %s\n", path)
	return nil
}

func runTemplateImport(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read template file: %w", err)
	}

	var tmpl template.Template
	if err := json.Unmarshal(data, &tmpl); err != nil {
		return fmt.Errorf("failed to parse template file: %w", err)
	}

	storage, cleanup, err := getTemplateStorage()
	if err != nil {
		return err
	}
	defer cleanup()

	if err := storage.Create(cmd.Context(), &tmpl); err != nil {
		return fmt.Errorf("failed to import template: %w", err)
	}

	fmt.Printf("Template imported successfully\n")
	fmt.Printf("  ID:   %s\n", tmpl.ID)
	fmt.Printf("  Name: %s\n", tmpl.Name)
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
