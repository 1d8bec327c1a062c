// Package serve runs the read-only status API.
package serve

import (
	"github.com/spf13/cobra"

	"github.com/skyglow/skyglow-go/internal/api"
	"github.com/skyglow/skyglow-go/internal/app"
)

// Command creates the serve command
func Command(src app.Source) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the status API and Prometheus metrics until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := src.App()
			if err != nil {
				return err
			}
			if listen != "" {
				a.Settings.WebServer.Listen = listen
			}
			server := api.New(a.Settings, a.Store,
				api.WithMetrics(a.Metrics),
				api.WithLogger(a.Log))
			return server.Start(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&listen, "listen", "l", "", "host:port to listen on, overrides webserver.listen")

	return cmd
}
