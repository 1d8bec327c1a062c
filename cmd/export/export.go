// Package export provides the CSV export command.
package export

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/skyglow/skyglow-go/cmd/flags"
	"github.com/skyglow/skyglow-go/internal/app"
	"github.com/skyglow/skyglow-go/internal/daterange"
	"github.com/skyglow/skyglow-go/internal/errors"
)

// Command creates the export command
func Command(src app.Source) *cobra.Command {
	var (
		sel    flags.Selection
		output string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write selected measurements as ';' separated CSV",
		Long: `Export writes the measurements picked by the selector to a CSV file, or
to standard output when no file is given. Randomized locations are written
with their perturbed coordinates.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			selector, err := sel.Selector()
			if err != nil {
				return err
			}
			a, err := src.App()
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return errors.New(err).
						Component("export").
						Category(errors.CategoryFileIO).
						Context("path", output).
						Build()
				}
				defer f.Close()
				w = f
			}

			n, err := a.Exporter().Export(cmd.Context(), w, sel.Observer, selector)
			if err != nil {
				return err
			}
			if w != cmd.OutOrStdout() {
				fmt.Fprintf(cmd.ErrOrStderr(), "exported %d measurements (%s) to %s\n", n, selector, output)
			}
			return nil
		},
	}

	sel.Bind(cmd, daterange.LatestNight)
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file, standard output when empty")

	return cmd
}
