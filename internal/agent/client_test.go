package agent

import (
	"bytes"
	"context"
	"testing"

	mcptransport "github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMCPServer() *server.MCPServer {
	s := server.NewMCPServer("test-server", "1.2.3",
		server.WithToolCapabilities(false),
		server.WithPromptCapabilities(false),
	)
	s.AddTool(mcp.NewTool("echo", mcp.WithDescription("Echo the input back")),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return mcp.NewToolResultText("ok"), nil
		})
	s.AddPrompt(mcp.NewPrompt("greet",
		mcp.WithPromptDescription("Say hello"),
		mcp.WithArgument("name", mcp.RequiredArgument()),
	), func(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		return mcp.NewGetPromptResult("hello", nil), nil
	})
	return s
}

func TestClient_Inspect(t *testing.T) {
	srv := server.NewTestStreamableHTTPServer(newTestMCPServer())
	defer srv.Close()

	tr, err := mcptransport.NewStreamableHTTP(srv.URL + "/mcp")
	require.NoError(t, err)

	var logs bytes.Buffer
	c := NewClient(srv.URL, tr, NewLoggerWithWriter(false, false, false, &logs))
	defer c.Close()

	c.formatters = NewPlainFormatters()

	var out bytes.Buffer
	require.NoError(t, c.Inspect(context.Background(), &out))

	info := c.ServerInfo()
	require.NotNil(t, info)
	assert.Equal(t, "test-server", info.ServerInfo.Name)

	assert.Contains(t, out.String(), "test-server")
	assert.Contains(t, out.String(), "echo")
	assert.Contains(t, out.String(), "Echo the input back")
	assert.Contains(t, out.String(), "greet")
	assert.Contains(t, out.String(), "name*")
	assert.NotContains(t, out.String(), "Resources", "resources were not announced")

	assert.Contains(t, logs.String(), "Found 1 tools")
	assert.Contains(t, logs.String(), "Found 1 prompts")
}

func TestClient_ListToolsOverSSE(t *testing.T) {
	srv := server.NewTestServer(newTestMCPServer())
	defer srv.Close()

	tr, err := mcptransport.NewSSE(srv.URL + "/sse")
	require.NoError(t, err)

	c := NewClient(srv.URL, tr, nil)
	defer c.Close()

	ctx := context.Background()
	require.NoError(t, c.Connect(ctx))

	tools, err := c.ListTools(ctx)
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "echo", tools[0].Name)
}
