package buildinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContext(t *testing.T) {
	tests := []struct {
		name      string
		ctx       *Context
		version   string
		buildDate string
	}{
		{"nil context", nil, UnknownValue, UnknownValue},
		{"empty values", NewContext("", ""), UnknownValue, UnknownValue},
		{"release", NewContext("1.0.0", "2024-02-01"), "1.0.0", "2024-02-01"},
		{"pre-release tag", NewContext("1.0.0-beta.1", ""), "1.0.0-beta.1", UnknownValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.version, tt.ctx.Version())
			assert.Equal(t, tt.buildDate, tt.ctx.BuildDate())
			assert.Equal(t, "skyglow/"+tt.version, tt.ctx.UserAgent())
		})
	}
}

func TestString(t *testing.T) {
	assert.Equal(t, "skyglow 2.1.0 (built 2024-02-01)", NewContext("2.1.0", "2024-02-01").String())
}
