package agent

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mark3labs/mcp-go/mcp"
)

// Logger prints client progress. Simple mode prints one line per step;
// JSON-RPC mode prints every request and response body.
type Logger struct {
	verbose     bool
	useColor    bool
	jsonRPCMode bool
	writer      io.Writer
}

// NewLogger creates a logger writing to stderr, keeping stdout for results.
func NewLogger(verbose, useColor, jsonRPCMode bool) *Logger {
	return NewLoggerWithWriter(verbose, useColor, jsonRPCMode, os.Stderr)
}

// NewLoggerWithWriter creates a new logger with a custom writer
func NewLoggerWithWriter(verbose, useColor, jsonRPCMode bool, writer io.Writer) *Logger {
	return &Logger{
		verbose:     verbose,
		useColor:    useColor,
		jsonRPCMode: jsonRPCMode,
		writer:      writer,
	}
}

func NewDevNullLogger() *Logger {
	return NewLoggerWithWriter(false, false, false, io.Discard)
}

// SetVerbose sets the verbose mode
func (l *Logger) SetVerbose(verbose bool) {
	l.verbose = verbose
}

// SetWriter sets a custom writer for the logger
func (l *Logger) SetWriter(w io.Writer) {
	l.writer = w
}

func (l *Logger) timestamp() string {
	return time.Now().Format("2006-01-02 15:04:05")
}

func (l *Logger) colorize(s string, c text.Color) string {
	if !l.useColor {
		return s
	}
	return c.Sprint(s)
}

func (l *Logger) line(msg string) {
	fmt.Fprintf(l.writer, "[%s] %s\n", l.timestamp(), msg)
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) {
	l.line(fmt.Sprintf(format, args...))
}

// Debug logs a debug message (only in verbose mode)
func (l *Logger) Debug(format string, args ...interface{}) {
	if !l.verbose {
		return
	}
	l.line(l.colorize(fmt.Sprintf(format, args...), text.FgHiBlack))
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.line(l.colorize(fmt.Sprintf(format, args...), text.FgRed))
}

// Success logs a success message
func (l *Logger) Success(format string, args ...interface{}) {
	l.line(l.colorize(fmt.Sprintf(format, args...), text.FgGreen))
}

// Request logs an outgoing request
func (l *Logger) Request(method string, params interface{}) {
	if !l.jsonRPCMode {
		switch method {
		case "initialize":
			l.Info("Initializing MCP session...")
		case "tools/list":
			l.Info("Listing available tools...")
		case "resources/list":
			l.Info("Listing available resources...")
		case "prompts/list":
			l.Info("Listing available prompts...")
		default:
			l.Info("Sending request: %s", method)
		}
		return
	}
	l.protocol("→", fmt.Sprintf("REQUEST (%s)", method), params, text.FgBlue)
}

// Response logs an incoming response
func (l *Logger) Response(method string, result interface{}) {
	if !l.jsonRPCMode {
		switch r := result.(type) {
		case *mcp.InitializeResult:
			l.Success("Session initialized with %s %s (protocol: %s)",
				r.ServerInfo.Name, r.ServerInfo.Version, r.ProtocolVersion)
		case *mcp.ListToolsResult:
			l.Success("Found %d tools", len(r.Tools))
		case *mcp.ListResourcesResult:
			l.Success("Found %d resources", len(r.Resources))
		case *mcp.ListPromptsResult:
			l.Success("Found %d prompts", len(r.Prompts))
		default:
			l.Success("Received response for: %s", method)
		}
		return
	}
	l.protocol("←", fmt.Sprintf("RESPONSE (%s)", method), result, text.FgGreen)
}

func (l *Logger) protocol(arrow, title string, body interface{}, c text.Color) {
	fmt.Fprintf(l.writer, "[%s] %s %s:\n", l.timestamp(), l.colorize(arrow, c), l.colorize(title, c))
	if body != nil {
		fmt.Fprintln(l.writer, l.colorize(prettyJSON(body), c))
	}
	fmt.Fprintln(l.writer)
}

func prettyJSON(v interface{}) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}
	return string(b)
}

// Write implements io.Writer so the logger can receive library output.
func (l *Logger) Write(p []byte) (n int, err error) {
	l.Debug("%s", string(p))
	return len(p), nil
}
