package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionCmd_Output(t *testing.T) {
	tests := []struct {
		version string
		want    string
	}{
		{version: "1.2.3", want: "mcp-remote version 1.2.3\n"},
		{version: "dev", want: "mcp-remote version dev\n"},
		{version: "", want: "mcp-remote version \n"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			origVersion := rootCmd.Version
			rootCmd.Version = tt.version
			defer func() { rootCmd.Version = origVersion }()

			c := newVersionCmd()
			var buf bytes.Buffer
			c.SetOut(&buf)
			c.SetArgs(nil)
			assert.NoError(t, c.Execute())
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestVersionCmd_RegisteredOnRoot(t *testing.T) {
	found := false
	for _, c := range rootCmd.Commands() {
		if c.Name() == "version" {
			found = true
		}
	}
	assert.True(t, found, "root command should expose version")
}
