package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dogcoloringbooks/coloringbook/internal/form"
	"github.com/dogcoloringbooks/coloringbook/internal/imagedata"
	"github.com/dogcoloringbooks/coloringbook/internal/models"
	"github.com/dogcoloringbooks/coloringbook/internal/single"
	"github.com/dogcoloringbooks/coloringbook/internal/templates"
	"github.com/spf13/cobra"
)

type singleOptions struct {
	name        string
	handle      string
	template    string
	caption     string
	out         string
	post        bool
	interactive bool
}

func newSingleCmd() *cobra.Command {
	var opts singleOptions

	cmd := &cobra.Command{
		Use:   "single PHOTO",
		Short: "Create a coloring page and marketing composite for one dog",
		Long: `Runs the single-dog workflow against the automation service: the photo is
turned into a coloring page, composed into the chosen template and optionally
posted to Instagram.

With --interactive the template and its fields are asked for in the terminal.`,
		Example: `  # Generate with the defaults and save the composite
  coloringbook single max.png --out max-composite.png

  # Pick the template and edit fields interactively, then post
  coloringbook single max.png --name Max --handle @maxthedog -i --post`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := newShell()
			if err != nil {
				return err
			}
			id, c := s.NewSingle()
			defer s.EndSingle(id)
			return runSingle(cmd.Context(), cmd.OutOrStdout(), c, form.SurveyDriver{}, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.name, "name", "n", "", "Dog name (default derived from the photo filename)")
	cmd.Flags().StringVar(&opts.handle, "handle", "", "Instagram handle of the dog")
	cmd.Flags().StringVarP(&opts.template, "template", "t", templates.Customizable, "Composite template id")
	cmd.Flags().StringVar(&opts.caption, "caption", "", "Caption used when posting")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "Write the composite image to this file")
	cmd.Flags().BoolVar(&opts.post, "post", false, "Post the composite to Instagram")
	cmd.Flags().BoolVarP(&opts.interactive, "interactive", "i", false, "Prompt for the template and its fields")

	return cmd
}

func runSingle(ctx context.Context, out io.Writer, c *single.Controller, driver form.PromptDriver, photo string, opts singleOptions) error {
	img, err := imagedata.EncodeFile(photo)
	if err != nil {
		return err
	}
	name := opts.name
	if name == "" {
		name = imagedata.NameFromFilename(photo)
	}

	fmt.Fprintf(out, "Generating coloring page for %s...\n", name)
	if err := c.GenerateColoringPage(ctx, name, img, opts.handle); err != nil {
		return fmt.Errorf("failed to generate coloring page: %w", err)
	}
	res := c.Snapshot()
	fmt.Fprintf(out, "Original:  %s\nColoring:  %s\n", res.OriginalImageURL, res.GeneratedImageURL)

	if err := c.Continue(); err != nil {
		return err
	}

	templateID := opts.template
	if opts.interactive {
		if templateID, err = chooseTemplate(ctx, driver, templateID); err != nil {
			return err
		}
	}
	if err := c.SelectTemplate(templateID); err != nil {
		return err
	}
	if opts.interactive {
		d, err := templates.Get(templateID)
		if err != nil {
			return err
		}
		var setErr error
		err = form.Prompt(ctx, driver, d.Fields, c.Snapshot().TemplateFields, func(fieldID, value string) {
			if err := c.SetField(fieldID, value); err != nil && setErr == nil {
				setErr = err
			}
		})
		if err != nil {
			return err
		}
		if setErr != nil {
			return setErr
		}
	}

	fmt.Fprintf(out, "Creating %s composite...\n", templateID)
	if err := c.GenerateComposite(ctx, "", nil); err != nil {
		return fmt.Errorf("failed to generate composite: %w", err)
	}
	res = c.Snapshot()
	if res.CompositeImageURL != "" {
		fmt.Fprintf(out, "Composite: %s\n", res.CompositeImageURL)
	}
	if opts.out != "" {
		if err := writeComposite(opts.out, res); err != nil {
			return err
		}
		fmt.Fprintf(out, "Saved composite to %s\n", opts.out)
	}

	if !opts.post {
		return nil
	}
	if err := c.PostComposite(ctx, opts.caption); err != nil {
		return fmt.Errorf("failed to post: %w", err)
	}
	fmt.Fprintln(out, c.Snapshot().Success)
	return nil
}

func chooseTemplate(ctx context.Context, driver form.PromptDriver, current string) (string, error) {
	all := templates.All()
	options := make([]string, len(all))
	def := 0
	for i, d := range all {
		options[i] = fmt.Sprintf("%s %s: %s", d.Icon, d.Name, d.Description)
		if d.ID == current {
			def = i
		}
	}
	idx, err := driver.Select(ctx, form.SelectConfig{Message: "Template", Options: options, DefaultIndex: def})
	if err != nil {
		return "", err
	}
	if idx < 0 || idx >= len(all) {
		return "", fmt.Errorf("%w: template choice out of range", models.ErrValidation)
	}
	return all[idx].ID, nil
}

func writeComposite(path string, res models.SingleResult) error {
	if res.CompositeImageBase64 == "" {
		return fmt.Errorf("composite has no inline image; download it from %s", res.CompositeImageURL)
	}
	data, err := imagedata.Decode(res.CompositeImageBase64)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write composite: %w", err)
	}
	return nil
}
