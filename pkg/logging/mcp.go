package logging

import (
	"github.com/mark3labs/mcp-go/util"
)

// mcpLogger routes the mcp-go transport logs through this package.
// Library info records become debug and its errors become warnings; the
// library reports recoverable conditions (for example a server without a
// GET stream) as errors.
type mcpLogger struct {
	subsystem string
}

// MCPLogger returns a util.Logger that writes to the given subsystem.
func MCPLogger(subsystem string) util.Logger {
	return &mcpLogger{subsystem: subsystem}
}

func (l *mcpLogger) Infof(format string, v ...any) {
	Debug(l.subsystem, format, v...)
}

func (l *mcpLogger) Errorf(format string, v ...any) {
	Warn(l.subsystem, format, v...)
}
