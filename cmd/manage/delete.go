// Package manage holds the destructive maintenance commands.
package manage

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/skyglow/skyglow-go/cmd/flags"
	"github.com/skyglow/skyglow-go/internal/app"
	"github.com/skyglow/skyglow-go/internal/daterange"
	"github.com/skyglow/skyglow-go/internal/logger"
)

// DeleteCommand removes images or measurements chosen by a selector
func DeleteCommand(src app.Source) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete images or measurements chosen by a date-range selector",
	}
	cmd.AddCommand(deleteTarget(src, "measurements",
		"Delete measurements; their images become pending again"))
	cmd.AddCommand(deleteTarget(src, "images",
		"Delete images together with their measurements"))
	return cmd
}

func deleteTarget(src app.Source, target, short string) *cobra.Command {
	var (
		sel flags.Selection
		yes bool
	)

	cmd := &cobra.Command{
		Use:   target,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			selector, err := sel.Selector()
			if err != nil {
				return err
			}
			a, err := src.App()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			if !yes {
				n, err := a.Store.Measurements.Count(ctx, sel.Observer, selector)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s (%s) would affect %d measurements, repeat with --yes to delete\n",
					target, selector, n)
				return nil
			}

			var deleted int64
			switch target {
			case "images":
				deleted, err = a.Store.Images.DeleteBySelection(ctx, sel.Observer, selector)
			default:
				deleted, err = a.Store.Measurements.DeleteBySelection(ctx, sel.Observer, selector)
			}
			if err != nil {
				return err
			}
			a.Log.Module("datastore").Info("rows deleted",
				logger.String("target", target),
				logger.String("selector", selector.String()),
				logger.Int64("deleted", deleted))
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d %s\n", deleted, target)
			return nil
		},
	}

	sel.Bind(cmd, daterange.LatestNight)
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Delete without the dry run")

	return cmd
}

// PurgeCommand removes expired observer versions no image references
func PurgeCommand(src app.Source) *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Remove expired observer versions that no image references",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := src.App()
			if err != nil {
				return err
			}
			n, err := a.Store.Observers.PurgeExpired(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d expired observer versions\n", n)
			return nil
		},
	}
}

// CalibrateCommand derives a camera's bias from its measured dark and
// bias frames
func CalibrateCommand(src app.Source) *cobra.Command {
	return &cobra.Command{
		Use:   "calibrate model",
		Short: "Derive the camera bias from measured BIAS and DARK frames",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := src.App()
			if err != nil {
				return err
			}
			res, err := a.Stats(cmd.Context()).CalibrateBias(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("calibrating %s: %w", args[0], err)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%s: bias %d (was %d) from %d frames, levels %v\n",
				res.Model, res.Bias, res.Previous, res.Frames, res.Levels)
			if res.Warning != "" {
				fmt.Fprintf(w, "warning: %s\n", res.Warning)
			}
			return nil
		},
	}
}
