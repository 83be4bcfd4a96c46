// Package mcp provides the tool runner backed by an MCP server. Every plan
// step action maps to one MCP tool call.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	mcpprotocol "github.com/mark3labs/mcp-go/mcp"

	"github.com/stride-ai/stride/internal/config"
	"github.com/stride-ai/stride/internal/resilience"
)

// Transport values accepted in configuration.
const (
	TransportStdio          = "stdio"
	TransportSSE            = "sse"
	TransportStreamableHTTP = "streamable_http"
)

// Runner implements toolrunner.Runner over one MCP server connection.
// The pool caps concurrent calls across all in-flight requests.
type Runner struct {
	client mcpclient.MCPClient
	server string
	pool   *resilience.Pool
}

// Connect creates the client for the configured transport and performs the
// Initialize handshake. The returned Runner is ready for CallTool.
func Connect(ctx context.Context, cfg config.Tools) (*Runner, error) {
	client, err := createClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create mcp client: %w", err)
	}

	initReq := mcpprotocol.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcpprotocol.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcpprotocol.Implementation{
		Name:    "stride",
		Version: "1.0.0",
	}
	initResult, err := client.Initialize(ctx, initReq)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("mcp initialize: %w", err)
	}

	slog.Info("mcp server connected",
		"server", initResult.ServerInfo.Name,
		"version", initResult.ServerInfo.Version,
		"transport", cfg.Transport,
	)

	return &Runner{
		client: client,
		server: initResult.ServerInfo.Name,
		pool:   resilience.NewPool(cfg.MaxConcurrentCalls),
	}, nil
}

// createClient builds an mcp-go client for the configured transport.
func createClient(cfg config.Tools) (mcpclient.MCPClient, error) {
	switch cfg.Transport {
	case TransportStdio:
		return mcpclient.NewStdioMCPClient(cfg.Command, nil, cfg.Args...)

	case TransportSSE:
		var opts []transport.ClientOption
		return mcpclient.NewSSEMCPClient(cfg.URL, opts...)

	case TransportStreamableHTTP:
		var opts []transport.StreamableHTTPCOption
		return mcpclient.NewStreamableHttpClient(cfg.URL, opts...)

	default:
		return nil, fmt.Errorf("unsupported transport: %s", cfg.Transport)
	}
}

// Invoke calls the named tool and returns its decoded output. A transport
// fault or a tool-reported error surfaces as a Go error; a successful call
// returns the decoded JSON payload when the output parses, the raw text
// otherwise.
func (r *Runner) Invoke(ctx context.Context, action string, parameters map[string]any) (any, error) {
	req := mcpprotocol.CallToolRequest{}
	req.Params.Name = action
	req.Params.Arguments = parameters

	var result *mcpprotocol.CallToolResult
	err := r.pool.Run(ctx, func() error {
		var callErr error
		result, callErr = r.client.CallTool(ctx, req)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("call tool %s: %w", action, err)
	}

	text := joinTextContent(result.Content)
	if result.IsError {
		return nil, errors.New(text)
	}

	var decoded any
	if err := json.Unmarshal([]byte(text), &decoded); err == nil {
		return decoded, nil
	}
	return text, nil
}

// ListTools returns the names of the tools the server exposes.
func (r *Runner) ListTools(ctx context.Context) ([]string, error) {
	result, err := r.client.ListTools(ctx, mcpprotocol.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("list tools: %w", err)
	}
	names := make([]string, 0, len(result.Tools))
	for i := range result.Tools {
		names = append(names, result.Tools[i].Name)
	}
	return names, nil
}

// Close shuts down the server connection.
func (r *Runner) Close() error {
	return r.client.Close()
}

func joinTextContent(contents []mcpprotocol.Content) string {
	var parts []string
	for _, c := range contents {
		if tc, ok := c.(mcpprotocol.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}
