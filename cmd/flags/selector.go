// Package flags holds command-line flag groups shared by several commands.
package flags

import (
	"github.com/spf13/cobra"

	"github.com/skyglow/skyglow-go/internal/daterange"
)

// Selection binds the date-range selector flags and an observer filter
type Selection struct {
	Kind     string
	Start    string
	End      string
	Observer uint
}

// Bind registers the flags on cmd with defaultKind as the selector default
func (s *Selection) Bind(cmd *cobra.Command, defaultKind daterange.Kind) {
	cmd.Flags().StringVarP(&s.Kind, "selector", "s", defaultKind.String(),
		"Measurements to select: all, latest-night, latest-month, unpublished or range")
	cmd.Flags().StringVar(&s.Start, "start", "", "First night of a range, YYYYMMDD or YYYY-MM-DD")
	cmd.Flags().StringVar(&s.End, "end", "", "Last night of a range, YYYYMMDD or YYYY-MM-DD")
	cmd.Flags().UintVar(&s.Observer, "observer", 0, "Observer id, 0 for all observers")
}

// Selector parses the bound values
func (s *Selection) Selector() (daterange.Selector, error) {
	return daterange.Parse(s.Kind, s.Start, s.End)
}
