package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/mark3labs/mcp-go/client"
	mcptransport "github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
)

const (
	clientName    = "mcp-remote-client"
	clientVersion = "1.0.0"

	defaultTimeout = 30 * time.Second
)

// Client runs MCP requests against a remote server over an existing
// transport.
type Client struct {
	serverURL  string
	logger     *Logger
	client     *client.Client
	timeout    time.Duration
	formatters *Formatters

	result *mcp.InitializeResult
}

// NewClient wraps t, which may already be started, in an MCP client.
func NewClient(serverURL string, t mcptransport.Interface, logger *Logger) *Client {
	if logger == nil {
		logger = NewDevNullLogger()
	}
	return &Client{
		serverURL:  serverURL,
		logger:     logger,
		client:     client.NewClient(t),
		timeout:    defaultTimeout,
		formatters: NewFormatters(),
	}
}

// SetTimeout bounds each request.
func (c *Client) SetTimeout(d time.Duration) {
	c.timeout = d
}

// Connect starts the transport and performs the MCP handshake.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.client.Start(ctx); err != nil {
		return fmt.Errorf("failed to start client: %w", err)
	}
	if _, err := c.Initialize(ctx); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	return nil
}

// Initialize performs the MCP protocol handshake.
func (c *Client) Initialize(ctx context.Context) (*mcp.InitializeResult, error) {
	req := mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			ClientInfo: mcp.Implementation{
				Name:    clientName,
				Version: clientVersion,
			},
			Capabilities: mcp.ClientCapabilities{},
		},
	}
	c.logger.Request("initialize", req.Params)

	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	result, err := c.client.Initialize(timeoutCtx, req)
	if err != nil {
		c.logger.Error("Initialize failed: %v", err)
		return nil, err
	}
	c.logger.Response("initialize", result)
	c.result = result
	return result, nil
}

// ServerInfo returns the initialize result, nil before Initialize.
func (c *Client) ServerInfo() *mcp.InitializeResult {
	return c.result
}

// ListTools lists all tools of the server.
func (c *Client) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	req := mcp.ListToolsRequest{}
	c.logger.Request("tools/list", req.Params)

	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	result, err := c.client.ListTools(timeoutCtx, req)
	if err != nil {
		c.logger.Error("ListTools failed: %v", err)
		return nil, err
	}
	c.logger.Response("tools/list", result)
	return result.Tools, nil
}

// ListResources lists all resources of the server.
func (c *Client) ListResources(ctx context.Context) ([]mcp.Resource, error) {
	req := mcp.ListResourcesRequest{}
	c.logger.Request("resources/list", req.Params)

	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	result, err := c.client.ListResources(timeoutCtx, req)
	if err != nil {
		c.logger.Error("ListResources failed: %v", err)
		return nil, err
	}
	c.logger.Response("resources/list", result)
	return result.Resources, nil
}

// ListPrompts lists all prompts of the server.
func (c *Client) ListPrompts(ctx context.Context) ([]mcp.Prompt, error) {
	req := mcp.ListPromptsRequest{}
	c.logger.Request("prompts/list", req.Params)

	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	result, err := c.client.ListPrompts(timeoutCtx, req)
	if err != nil {
		c.logger.Error("ListPrompts failed: %v", err)
		return nil, err
	}
	c.logger.Response("prompts/list", result)
	return result.Prompts, nil
}

// Inspect connects, then writes the server summary and one table per
// capability the server announced to w.
func (c *Client) Inspect(ctx context.Context, w io.Writer) error {
	if c.result == nil {
		if err := c.Connect(ctx); err != nil {
			return err
		}
	}

	fmt.Fprint(w, c.formatters.FormatServerInfo(c.serverURL, c.result))

	caps := c.result.Capabilities
	var errs []error

	if caps.Tools != nil {
		tools, err := c.ListTools(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("tools: %w", err))
		} else {
			fmt.Fprint(w, c.formatters.FormatToolsTable(tools))
		}
	}
	if caps.Resources != nil {
		resources, err := c.ListResources(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("resources: %w", err))
		} else {
			fmt.Fprint(w, c.formatters.FormatResourcesTable(resources))
		}
	}
	if caps.Prompts != nil {
		prompts, err := c.ListPrompts(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("prompts: %w", err))
		} else {
			fmt.Fprint(w, c.formatters.FormatPromptsTable(prompts))
		}
	}

	return errors.Join(errs...)
}

// Close closes the MCP client and its transport.
func (c *Client) Close() error {
	return c.client.Close()
}
