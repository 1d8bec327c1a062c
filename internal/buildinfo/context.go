// Package buildinfo holds build-time metadata that is injected at startup
// and kept apart from user configuration.
package buildinfo

import "fmt"

// UnknownValue is reported for metadata the build did not set
const UnknownValue = "unknown"

// Context contains the version and build date linked into the binary
type Context struct {
	version   string
	buildDate string
}

// NewContext creates a Context. Empty values read back as UnknownValue.
func NewContext(version, buildDate string) *Context {
	return &Context{version: version, buildDate: buildDate}
}

// Version returns the release tag
func (c *Context) Version() string {
	if c == nil || c.version == "" {
		return UnknownValue
	}
	return c.version
}

// BuildDate returns when the binary was built
func (c *Context) BuildDate() string {
	if c == nil || c.buildDate == "" {
		return UnknownValue
	}
	return c.buildDate
}

// UserAgent is sent with outbound publishing requests
func (c *Context) UserAgent() string {
	return fmt.Sprintf("skyglow/%s", c.Version())
}

// String is used by the version command
func (c *Context) String() string {
	return fmt.Sprintf("skyglow %s (built %s)", c.Version(), c.BuildDate())
}
