// Package mcptoolset adapts an external MCP (Model Context Protocol)
// tool server into a searchtool.Retriever, so search_code's "semantic
// (external retrieval collaborator)" half (spec.md §4.6) can be
// backed by any MCP-compliant retrieval server rather than a
// hand-rolled HTTP client. Grounded on the teacher's
// pkg/tool/mcptoolset/mcptoolset.go stdio connection and lazy-init
// pattern, narrowed here to the one call shape search_code needs
// (call a single named tool with a query argument and collect its
// text content) instead of the teacher's full dynamic toolset
// discovery surface.
package mcptoolset

import (
	"context"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// Config configures the stdio-transport MCP server to connect to.
type Config struct {
	Command  string
	Args     []string
	Env      map[string]string
	ToolName string
}

// Retriever lazily connects to an MCP server on first Retrieve call
// and forwards search_code queries to its configured tool.
type Retriever struct {
	cfg Config

	mu        sync.Mutex
	client    *client.Client
	connected bool
}

// New constructs a lazily-connecting MCP retriever.
func New(cfg Config) *Retriever {
	return &Retriever{cfg: cfg}
}

func (r *Retriever) connect(ctx context.Context) error {
	c, err := client.NewStdioMCPClient(r.cfg.Command, toEnvSlice(r.cfg.Env), r.cfg.Args...)
	if err != nil {
		return fmt.Errorf("mcp client: %w", err)
	}
	if err := c.Start(ctx); err != nil {
		return fmt.Errorf("mcp start: %w", err)
	}
	initReq := mcp.InitializeRequest{}
	initReq.Params.ClientInfo = mcp.Implementation{Name: "fixloop", Version: "0.1.0"}
	initReq.Params.ProtocolVersion = "2024-11-05"
	if _, err := c.Initialize(ctx, initReq); err != nil {
		c.Close()
		return fmt.Errorf("mcp initialize: %w", err)
	}
	r.client = c
	r.connected = true
	return nil
}

// Retrieve calls the configured MCP tool with {"query": query, "limit":
// limit} and collects its text content, implementing searchtool.Retriever.
func (r *Retriever) Retrieve(ctx context.Context, query string, limit int) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.connected {
		if err := r.connect(ctx); err != nil {
			return nil, err
		}
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = r.cfg.ToolName
	req.Params.Arguments = map[string]any{"query": query, "limit": limit}

	resp, err := r.client.CallTool(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("mcp call: %w", err)
	}
	if resp.IsError {
		for _, c := range resp.Content {
			if tc, ok := c.(mcp.TextContent); ok {
				return nil, fmt.Errorf("mcp tool error: %s", tc.Text)
			}
		}
		return nil, fmt.Errorf("mcp tool error")
	}

	var texts []string
	for _, c := range resp.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			texts = append(texts, tc.Text)
		}
	}
	return texts, nil
}

// Close releases the underlying MCP subprocess connection, if any.
func (r *Retriever) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client == nil {
		return nil
	}
	err := r.client.Close()
	r.client = nil
	r.connected = false
	return err
}

func toEnvSlice(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}
