// Package run holds the commands that drive the processing pipeline:
// register, stats, publish and the combined run.
package run

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/skyglow/skyglow-go/internal/app"
	"github.com/skyglow/skyglow-go/internal/pipeline"
)

// output selects how a Status is printed
type output struct {
	json bool
}

func (o *output) bind(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&o.json, "json", false, "Print the run status as JSON")
}

func (o *output) print(w io.Writer, st pipeline.Status) error {
	if o.json {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}
	for _, d := range st.Directories {
		fmt.Fprintf(w, "%s: %s, %d of %d files registered\n", d.Directory, d.Status(), d.Processed, d.Found)
	}
	if st.Publishing != nil && st.Publishing.BatchID != "" {
		fmt.Fprintf(w, "publish batch %s\n", st.Publishing.BatchID)
	}
	_, err := fmt.Fprintln(w, st.Summary())
	return err
}

// execute runs opts and turns a failed status into a *pipeline.RunError
func execute(cmd *cobra.Command, src app.Source, opts pipeline.Options, out *output) error {
	a, err := src.App()
	if err != nil {
		return err
	}
	runner, err := a.Pipeline(cmd.Context(), opts.Publish)
	if err != nil {
		return err
	}
	st := runner.Run(cmd.Context(), opts)
	if err := out.print(cmd.OutOrStdout(), st); err != nil {
		return err
	}
	return st.AsError()
}

// Command creates the combined run command
func Command(src app.Source) *cobra.Command {
	var (
		out       output
		noStats   bool
		publish   bool
		noPublish bool
		observer  uint
	)

	cmd := &cobra.Command{
		Use:   "run [directory...]",
		Short: "Register directories, measure pending images and publish",
		Long: `Run registers every given directory, measures all pending images and,
when publishing is enabled in the configuration or requested with --publish,
sends the unpublished measurements. Each stage starts only when the previous
one succeeded. The exit code is 0 on success, 1 when a stage failed, 2 when
the publish batch was rejected and 130 when interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := src.App()
			if err != nil {
				return err
			}
			doPublish := (a.Settings.Publish.Enabled || publish) && !noPublish
			return execute(cmd, src, pipeline.Options{
				Dirs:       args,
				Stats:      !noStats,
				Publish:    doPublish,
				ObserverID: observer,
			}, &out)
		},
	}

	cmd.Flags().BoolVar(&noStats, "no-stats", false, "Skip the statistics stage")
	cmd.Flags().BoolVar(&publish, "publish", false, "Publish even when disabled in the configuration")
	cmd.Flags().BoolVar(&noPublish, "no-publish", false, "Skip publishing")
	cmd.Flags().UintVar(&observer, "observer", 0, "Publish only this observer's measurements, 0 for all")
	cmd.MarkFlagsMutuallyExclusive("publish", "no-publish")
	out.bind(cmd)

	return cmd
}
