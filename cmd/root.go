package cmd

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "coloringbook",
		Short: "Turn dog photos into coloring pages and marketing posts",
		Long: `Coloringbook drives the coloring page automation service.

It generates coloring pages from dog photos, composes them into marketing
images from a template, and posts or schedules them to Instagram, either one
dog at a time or as a bulk queue.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
	}

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newSingleCmd())
	cmd.AddCommand(newBulkCmd())
	cmd.AddCommand(newTemplatesCmd())

	return cmd
}
