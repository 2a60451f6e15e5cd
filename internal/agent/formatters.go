package agent

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mark3labs/mcp-go/mcp"
)

const maxDescriptionWidth = 80

// Formatters renders MCP data for the console.
type Formatters struct {
	color bool
}

// NewFormatters creates a new formatters instance
func NewFormatters() *Formatters {
	return &Formatters{color: true}
}

// NewPlainFormatters creates formatters without ANSI colors.
func NewPlainFormatters() *Formatters {
	return &Formatters{}
}

func (f *Formatters) header(s string) string {
	if !f.color {
		return s
	}
	return text.FgHiCyan.Sprint(s)
}

func (f *Formatters) newTable(title string) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetTitle(title)
	return t
}

// FormatServerInfo summarizes the initialize result.
func (f *Formatters) FormatServerInfo(serverURL string, result *mcp.InitializeResult) string {
	if result == nil {
		return ""
	}
	t := f.newTable("Server")
	t.AppendRow(table.Row{f.header("URL"), serverURL})
	t.AppendRow(table.Row{f.header("NAME"), result.ServerInfo.Name})
	t.AppendRow(table.Row{f.header("VERSION"), result.ServerInfo.Version})
	t.AppendRow(table.Row{f.header("PROTOCOL"), result.ProtocolVersion})
	t.AppendRow(table.Row{f.header("CAPABILITIES"), strings.Join(capabilityNames(result.Capabilities), ", ")})
	return t.Render() + "\n"
}

// FormatToolsTable formats tools as a table.
func (f *Formatters) FormatToolsTable(tools []mcp.Tool) string {
	if len(tools) == 0 {
		return "No tools available.\n"
	}
	t := f.newTable(fmt.Sprintf("Tools (%d)", len(tools)))
	t.AppendHeader(table.Row{f.header("NAME"), f.header("DESCRIPTION")})
	for _, tool := range tools {
		t.AppendRow(table.Row{tool.Name, truncate(tool.Description)})
	}
	return t.Render() + "\n"
}

// FormatResourcesTable formats resources as a table.
func (f *Formatters) FormatResourcesTable(resources []mcp.Resource) string {
	if len(resources) == 0 {
		return "No resources available.\n"
	}
	t := f.newTable(fmt.Sprintf("Resources (%d)", len(resources)))
	t.AppendHeader(table.Row{f.header("URI"), f.header("NAME"), f.header("MIME TYPE")})
	for _, r := range resources {
		t.AppendRow(table.Row{r.URI, r.Name, r.MIMEType})
	}
	return t.Render() + "\n"
}

// FormatPromptsTable formats prompts as a table.
func (f *Formatters) FormatPromptsTable(prompts []mcp.Prompt) string {
	if len(prompts) == 0 {
		return "No prompts available.\n"
	}
	t := f.newTable(fmt.Sprintf("Prompts (%d)", len(prompts)))
	t.AppendHeader(table.Row{f.header("NAME"), f.header("ARGUMENTS"), f.header("DESCRIPTION")})
	for _, p := range prompts {
		args := make([]string, 0, len(p.Arguments))
		for _, a := range p.Arguments {
			if a.Required {
				args = append(args, a.Name+"*")
			} else {
				args = append(args, a.Name)
			}
		}
		t.AppendRow(table.Row{p.Name, strings.Join(args, ", "), truncate(p.Description)})
	}
	return t.Render() + "\n"
}

func capabilityNames(c mcp.ServerCapabilities) []string {
	var names []string
	if c.Tools != nil {
		names = append(names, "tools")
	}
	if c.Resources != nil {
		names = append(names, "resources")
	}
	if c.Prompts != nil {
		names = append(names, "prompts")
	}
	if c.Logging != nil {
		names = append(names, "logging")
	}
	if len(names) == 0 {
		return []string{"none"}
	}
	return names
}

func truncate(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= maxDescriptionWidth {
		return s
	}
	return s[:maxDescriptionWidth-3] + "..."
}
