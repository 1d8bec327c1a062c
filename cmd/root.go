// Package cmd assembles the skyglow command line.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/skyglow/skyglow-go/cmd/export"
	"github.com/skyglow/skyglow-go/cmd/manage"
	"github.com/skyglow/skyglow-go/cmd/run"
	"github.com/skyglow/skyglow-go/cmd/serve"
	"github.com/skyglow/skyglow-go/cmd/setup"
	"github.com/skyglow/skyglow-go/internal/app"
	"github.com/skyglow/skyglow-go/internal/buildinfo"
	"github.com/skyglow/skyglow-go/internal/conf"
)

// session opens the App on first use and closes it after the command
type session struct {
	build      *buildinfo.Context
	configPath string
	opts       []app.Option

	app *app.App
}

// App implements app.Source
func (s *session) App() (*app.App, error) {
	if s.app != nil {
		return s.app, nil
	}

	var (
		settings *conf.Settings
		err      error
	)
	if s.configPath != "" {
		settings, err = conf.LoadFile(s.configPath)
	} else {
		settings, err = conf.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("error loading configuration: %w", err)
	}
	if viper.GetBool("debug") {
		settings.Debug = true
	}

	a, err := app.New(settings, s.build, s.opts...)
	if err != nil {
		return nil, err
	}
	s.app = a
	return a, nil
}

func (s *session) Close() error {
	if s.app == nil {
		return nil
	}
	err := s.app.Close()
	s.app = nil
	return err
}

// rootCommand creates the root command and all sub-commands
func rootCommand(s *session) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "skyglow",
		Short:         "Night sky brightness registration, measurement and publishing",
		Version:       s.build.Version(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Set up the global flags for the root command.
	if err := setupFlags(rootCmd, s); err != nil {
		panic(err)
	}

	subcommands := []*cobra.Command{
		run.Command(s),
		run.RegisterCommand(s),
		run.StatsCommand(s),
		run.PublishCommand(s),
		manage.CalibrateCommand(s),
		export.Command(s),
		manage.DeleteCommand(s),
		manage.PurgeCommand(s),
		setup.Command(s),
		serve.Command(s),
		versionCommand(s.build),
	}
	rootCmd.AddCommand(subcommands...)
	rootCmd.SetVersionTemplate("{{.Version}}\n")

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, s *session) error {
	rootCmd.PersistentFlags().StringVarP(&s.configPath, "config", "c", "", "Path to config.yaml, searched in the default locations when empty")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug output")

	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}

func versionCommand(build *buildinfo.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version and build date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), build.String())
			return err
		},
	}
}

// Execute runs the command line with args and releases the App afterwards
func Execute(ctx context.Context, build *buildinfo.Context, args []string) error {
	s := &session{build: build}
	root := rootCommand(s)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if cerr := s.Close(); err == nil {
		err = cerr
	}
	return err
}
