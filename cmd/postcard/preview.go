package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/foxzi/postcard/internal/rule"
	"github.com/foxzi/postcard/internal/template"
)

var (
	previewInputFile string
	previewKind      string
	previewVariant   string
	previewText      bool
	previewOutput    string
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Render an email with sample data",
	Long: `Render an email to HTML (or plain text with --text) using the sample
placeholder values. The input is read from a JSON file, or taken from the
default content of a rule kind.`,
	RunE: runPreview,
}

func init() {
	previewCmd.Flags().StringVar(&previewInputFile, "input", "", "JSON file with the email fields")
	previewCmd.Flags().StringVar(&previewKind, "kind", "", "use the default content of a rule kind")
	previewCmd.Flags().StringVar(&previewVariant, "variant", string(template.DefaultVariant), "design variant")
	previewCmd.Flags().BoolVar(&previewText, "text", false, "render the plain text alternative")
	previewCmd.Flags().StringVarP(&previewOutput, "output", "o", "", "write to file instead of stdout")

	rootCmd.AddCommand(previewCmd)
}

func readInput(path string) (template.Input, error) {
	var input template.Input
	data, err := os.ReadFile(path)
	if err != nil {
		return input, fmt.Errorf("failed to read input file: %w", err)
	}
	if err := json.Unmarshal(data, &input); err != nil {
		return input, fmt.Errorf("failed to parse input file: %w", err)
	}
	return input, nil
}

func runPreview(cmd *cobra.Command, args []string) error {
	var input template.Input
	switch {
	case previewInputFile != "":
		var err error
		if input, err = readInput(previewInputFile); err != nil {
			return err
		}
	case previewKind != "":
		kind := rule.Kind(previewKind)
		if !kind.Valid() {
			return fmt.Errorf("unknown kind %q (one of %v)", previewKind, rule.Kinds())
		}
		input = rule.Defaults(kind)
	default:
		return fmt.Errorf("one of --input or --kind is required")
	}

	return writeRendered(input, template.ParseVariant(previewVariant))
}

func writeRendered(input template.Input, variant template.Variant) error {
	rc := template.PreviewContext(time.Now())

	var out string
	if previewText {
		out = template.RenderText(input, rc)
	} else {
		out = template.RenderWith(input, variant, rc)
	}

	if previewOutput == "" {
		fmt.Println(out)
		return nil
	}
	if err := os.WriteFile(previewOutput, []byte(out), 0644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	fmt.Printf("Preview written to %s\n", previewOutput)
	return nil
}
