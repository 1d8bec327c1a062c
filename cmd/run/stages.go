package run

import (
	"github.com/spf13/cobra"

	"github.com/skyglow/skyglow-go/internal/app"
	"github.com/skyglow/skyglow-go/internal/pipeline"
)

// RegisterCommand registers image directories
func RegisterCommand(src app.Source) *cobra.Command {
	var (
		out       output
		withStats bool
	)

	cmd := &cobra.Command{
		Use:   "register directory...",
		Short: "Register the images of one or more directories",
		Long: `Register hashes every file with the default camera's extension, skips
files that are already known and records the new ones with the default
camera, observer and location. Moved files have their directory updated.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, src, pipeline.Options{Dirs: args, Stats: withStats}, &out)
		},
	}

	cmd.Flags().BoolVar(&withStats, "stats", false, "Measure the new images afterwards")
	out.bind(cmd)

	return cmd
}

// StatsCommand measures pending images
func StatsCommand(src app.Source) *cobra.Command {
	var out output

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Compute sky brightness for every pending image",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, src, pipeline.Options{Stats: true}, &out)
		},
	}
	out.bind(cmd)

	return cmd
}

// PublishCommand sends unpublished measurements
func PublishCommand(src app.Source) *cobra.Command {
	var (
		out      output
		observer uint
	)

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Send unpublished measurements to the configured endpoint",
		Long: `Publish posts every unpublished measurement in pages to the configured
https endpoint. Measurements are only marked published after every page was
accepted; a failed batch is sent again in full by the next publish.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, src, pipeline.Options{Publish: true, ObserverID: observer}, &out)
		},
	}

	cmd.Flags().UintVar(&observer, "observer", 0, "Observer id, 0 for all observers")
	out.bind(cmd)

	return cmd
}
