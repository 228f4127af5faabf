package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/dogcoloringbooks/coloringbook/internal/templates"
	"github.com/spf13/cobra"
)

func newTemplatesCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "templates",
		Short: "List the composite templates and their fields",
		Example: `  coloringbook templates
  coloringbook templates --format yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch format {
			case "yaml":
				raw, err := templates.MarshalYAML()
				if err != nil {
					return err
				}
				_, err = out.Write(raw)
				return err
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(templates.All())
			case "text":
				for _, d := range templates.All() {
					fmt.Fprintf(out, "%s %s (%s)\n  %s\n", d.Icon, d.Name, d.ID, d.Description)
					for _, f := range d.Fields {
						fmt.Fprintf(out, "    - %s [%s] default=%q\n", f.Label, f.Kind, f.Default)
					}
				}
				return nil
			default:
				return fmt.Errorf("unknown format %q", format)
			}
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json or yaml")

	return cmd
}
