// Package setup provides the commands that maintain cameras, observers,
// locations, regions of interest and the station defaults.
package setup

import (
	"fmt"
	"maps"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/skyglow/skyglow-go/internal/app"
	"github.com/skyglow/skyglow-go/internal/cfa"
	"github.com/skyglow/skyglow-go/internal/datastore/entities"
	"github.com/skyglow/skyglow-go/internal/geometry"
	"github.com/skyglow/skyglow-go/internal/metadata"
)

// Command creates the setup parent command
func Command(src app.Source) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Maintain cameras, observers, locations, regions and defaults",
	}

	cmd.AddCommand(
		cameraCommand(src),
		observerCommand(src),
		locationCommand(src),
		roiCommand(src),
		opticsCommand(src),
		showCommand(src),
	)
	return cmd
}

func cameraCommand(src app.Source) *cobra.Command {
	var (
		cam        entities.Camera
		header     string
		pattern    string
		setDefault bool
	)

	cmd := &cobra.Command{
		Use:   "camera model",
		Short: "Add or update a camera",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := metadata.ParseHeaderType(header)
			if err != nil {
				return err
			}
			p, err := cfa.ParsePattern(pattern)
			if err != nil {
				return err
			}
			a, err := src.App()
			if err != nil {
				return err
			}

			cam.Model = args[0]
			cam.HeaderType = string(h)
			cam.BayerPattern = string(p)
			ctx := cmd.Context()
			if err := a.Store.Cameras.Save(ctx, &cam); err != nil {
				return err
			}
			if setDefault {
				if err := a.Defaults.SetCamera(ctx, cam.Model); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "camera %q saved (id %d)\n", cam.Model, cam.ID)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&cam.Extension, "extension", ".cr2", "File extension of the camera's images")
	f.StringVar(&header, "header", string(metadata.EXIF), "Header type, EXIF or FITS")
	f.StringVar(&pattern, "bayer", string(cfa.RGGB), "Bayer pattern: RGGB, BGGR, GRBG or GBRG")
	f.IntVar(&cam.Bias, "bias", 0, "Pedestal level added by the sensor")
	f.IntVar(&cam.Width, "width", 0, "Raw plane width in pixels")
	f.IntVar(&cam.Length, "length", 0, "Raw plane height in pixels")
	f.Float64Var(&cam.PixelSize, "pixel-size", 0, "Pixel pitch in micrometres")
	f.StringVar(&cam.Comment, "comment", "", "Free text")
	f.BoolVar(&setDefault, "default", false, "Make this the default camera")

	return cmd
}

func observerCommand(src app.Source) *cobra.Command {
	var (
		obs        entities.Observer
		setDefault bool
	)

	cmd := &cobra.Command{
		Use:   "observer family-name [surname]",
		Short: "Add an observer or record a new version of one",
		Long: `Observer stores the given details as the current version. When they
differ from the stored current version that version is expired and kept, so
images registered earlier still name the details valid at the time.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := src.App()
			if err != nil {
				return err
			}
			obs.FamilyName = args[0]
			if len(args) > 1 {
				obs.Surname = args[1]
			}
			ctx := cmd.Context()
			if err := a.Store.Observers.Save(ctx, &obs); err != nil {
				return err
			}
			if setDefault {
				if err := a.Defaults.SetObserver(ctx, obs.FamilyName, obs.Surname); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "observer %q saved (id %d)\n", obs.FullName(), obs.ID)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&obs.Affiliation, "affiliation", "", "Organization")
	f.StringVar(&obs.Acronym, "acronym", "", "Organization acronym")
	f.StringVar(&obs.Email, "email", "", "Contact address")
	f.BoolVar(&setDefault, "default", false, "Make this the default observer")

	return cmd
}

func locationCommand(src app.Source) *cobra.Command {
	var (
		loc        entities.Location
		setDefault bool
	)

	cmd := &cobra.Command{
		Use:   "location site-name location",
		Short: "Add or update an observing site",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := src.App()
			if err != nil {
				return err
			}
			loc.SiteName, loc.Location = args[0], args[1]
			ctx := cmd.Context()
			if err := a.Store.Locations.Save(ctx, &loc); err != nil {
				return err
			}
			if setDefault {
				if err := a.Defaults.SetLocation(ctx, loc.SiteName, loc.Location); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "location %q saved (id %d)\n", loc.SiteName+" - "+loc.Location, loc.ID)
			return nil
		},
	}

	f := cmd.Flags()
	f.Float64Var(&loc.Longitude, "longitude", 0, "Longitude in degrees, east positive")
	f.Float64Var(&loc.Latitude, "latitude", 0, "Latitude in degrees, north positive")
	f.Float64Var(&loc.Height, "height", 0, "Metres above sea level")
	f.Float64Var(&loc.UTCOffset, "utc-offset", 0, "Hours the camera clock is ahead of UTC")
	f.BoolVar(&loc.Randomized, "randomize", false, "Publish perturbed coordinates for privacy")
	f.BoolVar(&setDefault, "default", false, "Make this the default location")
	_ = cmd.MarkFlagRequired("longitude")
	_ = cmd.MarkFlagRequired("latitude")

	return cmd
}

func roiCommand(src app.Source) *cobra.Command {
	var (
		comment    string
		setDefault bool
	)

	cmd := &cobra.Command{
		Use:   "roi [y1:y2,x1:x2]",
		Short: "Add a region of interest in raw channel coordinates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rect, err := geometry.ParseDisplayName(args[0])
			if err != nil {
				return err
			}
			a, err := src.App()
			if err != nil {
				return err
			}
			roi := entities.ROI{
				X1: rect.X1, Y1: rect.Y1, X2: rect.X2, Y2: rect.Y2,
				DisplayName: rect.DisplayName(),
				Comment:     comment,
			}
			ctx := cmd.Context()
			if err := a.Store.ROIs.Save(ctx, &roi); err != nil {
				return err
			}
			if setDefault {
				if err := a.Defaults.SetROI(ctx, rect); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "roi %s saved (id %d)\n", roi.DisplayName, roi.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&comment, "comment", "", "Free text")
	cmd.Flags().BoolVar(&setDefault, "default", false, "Make this the default region")

	return cmd
}

func opticsCommand(src app.Source) *cobra.Command {
	var optics metadata.Optics

	cmd := &cobra.Command{
		Use:   "optics",
		Short: "Store fallback focal length and f-number",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := src.App()
			if err != nil {
				return err
			}
			if err := a.Defaults.SetOptics(cmd.Context(), optics); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "optics saved")
			return nil
		},
	}

	cmd.Flags().Float64Var(&optics.FocalLength, "focal-length", 0, "Focal length in mm")
	cmd.Flags().Float64Var(&optics.FNumber, "f-number", 0, "Aperture f-number")

	return cmd
}

func showCommand(src app.Source) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "List the stored defaults and entities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := src.App()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)

			defs, err := a.Defaults.All(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(w, "DEFAULTS")
			for _, k := range slices.Sorted(maps.Keys(defs)) {
				fmt.Fprintf(w, "  %s\t%s\n", k, defs[k])
			}

			cams, err := a.Store.Cameras.List(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(w, "CAMERAS")
			for _, c := range cams {
				fmt.Fprintf(w, "  %d\t%s\t%s\t%s\tbias %d\n", c.ID, c.Model, c.Extension, c.BayerPattern, c.Bias)
			}

			observers, err := a.Store.Observers.List(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(w, "OBSERVERS")
			for _, o := range observers {
				fmt.Fprintf(w, "  %d\t%s\t%s\n", o.ID, o.FullName(), o.Affiliation)
			}

			locations, err := a.Store.Locations.List(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(w, "LOCATIONS")
			for _, l := range locations {
				fmt.Fprintf(w, "  %d\t%s - %s\t%.4f\t%.4f\n", l.ID, l.SiteName, l.Location, l.Longitude, l.Latitude)
			}

			rois, err := a.Store.ROIs.List(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(w, "REGIONS")
			for _, r := range rois {
				fmt.Fprintf(w, "  %d\t%s\t%s\n", r.ID, r.DisplayName, r.Comment)
			}
			return w.Flush()
		},
	}
}
