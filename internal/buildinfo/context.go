// Package buildinfo carries build-time metadata, kept apart from user configuration.
package buildinfo

import "github.com/google/uuid"

// UnknownValue is reported for metadata that was not injected at build time.
const UnknownValue = "unknown"

// Context contains build-time metadata that is not user-configurable.
// It is injected at startup through ldflags in main.
type Context struct {
	// Version holds the Git version tag from build
	Version string

	// BuildDate is the time when the binary was built
	BuildDate string

	// InstanceID identifies this process in telemetry and health output
	InstanceID string
}

// New returns a Context with a fresh instance id.
func New(version, buildDate string) *Context {
	return &Context{
		Version:    version,
		BuildDate:  buildDate,
		InstanceID: uuid.NewString(),
	}
}

func orUnknown(s string) string {
	if s == "" {
		return UnknownValue
	}
	return s
}

// GetVersion returns the version or UnknownValue.
func (c *Context) GetVersion() string {
	if c == nil {
		return UnknownValue
	}
	return orUnknown(c.Version)
}

// GetBuildDate returns the build date or UnknownValue.
func (c *Context) GetBuildDate() string {
	if c == nil {
		return UnknownValue
	}
	return orUnknown(c.BuildDate)
}

// GetInstanceID returns the instance id or UnknownValue.
func (c *Context) GetInstanceID() string {
	if c == nil {
		return UnknownValue
	}
	return orUnknown(c.InstanceID)
}

// Release formats the Sentry release name.
func (c *Context) Release() string {
	return "push-dispatcher@" + c.GetVersion()
}
