package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dogcoloringbooks/coloringbook/internal/bulk"
	"github.com/dogcoloringbooks/coloringbook/internal/imagedata"
	"github.com/dogcoloringbooks/coloringbook/internal/models"
	"github.com/spf13/cobra"
)

type bulkOptions struct {
	names    string
	auto     int
	template string
	approve  bool
	pick     string
	reject   string
	schedule bool
}

func newBulkCmd() *cobra.Command {
	var opts bulkOptions

	cmd := &cobra.Command{
		Use:   "bulk [PHOTO...]",
		Short: "Run the bulk queue for many dogs at once",
		Long: `Adds one queue item per photo and per name in --names, then generates a
coloring page and a composite for each. --auto asks the automation service to
invent that many extra dogs first.

With --approve every composite is approved, or only the dogs in --pick when
given. Dogs in --reject are never approved. With --schedule the approved posts
are queued for publication one slot apart (SCHEDULE_INTERVAL or SCHEDULE_CRON).`,
		Example: `  # Dogs without photos get a generated dog
  coloringbook bulk --names "Max, Bella, Rocky"

  # Photos named after the dogs, approved and scheduled
  coloringbook bulk photos/*.jpg --approve --schedule

  # Five invented dogs, all but Rocky scheduled
  coloringbook bulk --auto 5 --reject Rocky --schedule`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.names == "" && opts.auto == 0 && len(args) == 0 {
				return errors.New("provide photos, --names or --auto")
			}
			s, _, err := newShell()
			if err != nil {
				return err
			}
			return runBulk(cmd.Context(), cmd.OutOrStdout(), s.Bulk(), args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.names, "names", "", "Comma separated dog names")
	cmd.Flags().IntVar(&opts.auto, "auto", 0, fmt.Sprintf("Generate this many dogs (%d-%d)", bulk.MinAutoGenerate, bulk.MaxAutoGenerate))
	cmd.Flags().StringVarP(&opts.template, "template", "t", "", "Composite template id")
	cmd.Flags().BoolVar(&opts.approve, "approve", false, "Approve every finished composite")
	cmd.Flags().StringVar(&opts.pick, "pick", "", "Approve only these comma separated dogs")
	cmd.Flags().StringVar(&opts.reject, "reject", "", "Reject these comma separated dogs")
	cmd.Flags().BoolVar(&opts.schedule, "schedule", false, "Schedule the approved posts")

	return cmd
}

func runBulk(ctx context.Context, out io.Writer, c *bulk.Controller, photos []string, opts bulkOptions) error {
	if len(photos) > 0 {
		uploads := make([]bulk.Photo, 0, len(photos))
		for _, p := range photos {
			img, err := imagedata.EncodeFile(p)
			if err != nil {
				return fmt.Errorf("%s: %w", p, err)
			}
			uploads = append(uploads, bulk.Photo{Filename: p, Image: img})
		}
		if _, err := c.AddPhotos(uploads); err != nil {
			return err
		}
	}
	if opts.names != "" {
		c.SetInput(opts.names)
		c.SubmitInput()
	}
	if opts.auto != 0 {
		res, err := c.AutoGenerate(ctx, opts.auto)
		if err != nil {
			return fmt.Errorf("Dog generation: %w", err)
		}
		fmt.Fprintf(out, "Dog generation: %d succeeded, %d failed\n", res.Succeeded, res.Failed)
	}
	if opts.template != "" {
		if err := c.SelectTemplate(opts.template); err != nil {
			return err
		}
	}

	passes := []struct {
		name string
		run  func(context.Context) (bulk.PassResult, error)
		on   bool
	}{
		{"Coloring pages", c.GenerateAllColoringPages, true},
		{"Composites", c.GenerateAllComposites, true},
		{"Rejection", func(context.Context) (bulk.PassResult, error) { return applyByName(c, opts.reject, c.RejectItem) }, opts.reject != ""},
		{"Approval", func(context.Context) (bulk.PassResult, error) { return applyByName(c, opts.pick, c.ApproveItem) }, opts.pick != ""},
		{"Approval", func(context.Context) (bulk.PassResult, error) { return c.ApproveAll(), nil }, opts.pick == "" && (opts.approve || opts.schedule)},
		{"Scheduling", c.ScheduleAll, opts.schedule},
	}
	for _, p := range passes {
		if !p.on {
			continue
		}
		res, err := p.run(ctx)
		if err != nil {
			return fmt.Errorf("%s: %w", p.name, err)
		}
		if res.Notice != "" {
			fmt.Fprintf(out, "%s: %s\n", p.name, res.Notice)
			continue
		}
		fmt.Fprintf(out, "%s: %d succeeded, %d failed\n", p.name, res.Succeeded, res.Failed)
	}

	printItems(out, c)
	return nil
}

// applyByName runs action on every item whose dog is named in the comma
// separated list. A name matching no item is an error; an item that cannot make
// the transition is counted as failed.
func applyByName(c *bulk.Controller, names string, action func(id string) (models.WorkItem, error)) (bulk.PassResult, error) {
	var res bulk.PassResult
	for _, part := range strings.Split(names, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		found := false
		for _, item := range c.Items() {
			if !strings.EqualFold(item.DogName, name) {
				continue
			}
			found = true
			if _, err := action(item.ID); err != nil {
				if !errors.Is(err, bulk.ErrTransition) {
					return res, err
				}
				res.Failed++
				continue
			}
			res.Succeeded++
		}
		if !found {
			return res, fmt.Errorf("no dog named %q", name)
		}
	}
	return res, nil
}

func printItems(out io.Writer, c *bulk.Controller) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DOG\tSTATUS\tCOMPOSITE\tSCHEDULED\tERROR")
	for _, item := range c.Items() {
		when := ""
		if item.ScheduledTime != nil {
			when = item.ScheduledTime.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", item.DogName, item.Status, item.CompositeStatus, when, item.Error)
	}
	counts := c.Counts()
	fmt.Fprintf(tw, "\n%d total\t%d ready\t%d approved\t%d scheduled\t%d failed\t%d rejected\n",
		counts.Total, counts.Ready, counts.Approved, counts.Scheduled, counts.Failed, counts.Rejected)
	_ = tw.Flush()
}
