// Package mcpclient implements bridge.Transport on the official MCP Go SDK,
// speaking the streamable HTTP transport to a remote MCP server.
package mcpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/promptline/elicitbridge/bridge"
)

// Transport dials one MCP client session per bridge session. The elicitation
// handler supplied by the bridge is bound into the session at connect time,
// mirroring how the SDK surfaces server-initiated elicit requests.
type Transport struct {
	endpoint   string
	httpClient *http.Client
	impl       *mcp.Implementation
}

// Option configures the Transport.
type Option func(*Transport)

// WithHTTPClient sets the HTTP client used for the streamable transport.
func WithHTTPClient(c *http.Client) Option {
	return func(t *Transport) { t.httpClient = c }
}

// WithImplementation overrides the client identity advertised at initialize.
func WithImplementation(impl *mcp.Implementation) Option {
	return func(t *Transport) { t.impl = impl }
}

// New constructs a Transport for the given streamable HTTP endpoint.
func New(endpoint string, opts ...Option) *Transport {
	t := &Transport{
		endpoint:   endpoint,
		httpClient: http.DefaultClient,
		impl:       &mcp.Implementation{Name: "elicitbridge", Version: "0.1.0"},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Connect implements bridge.Transport.
func (t *Transport) Connect(ctx context.Context, onElicit bridge.ElicitHandlerFunc) (bridge.ToolConn, error) {
	client := mcp.NewClient(t.impl, &mcp.ClientOptions{
		ElicitationHandler: func(ctx context.Context, req *mcp.ElicitRequest) (*mcp.ElicitResult, error) {
			out, err := onElicit(ctx, elicitRequest(req.Params))
			if err != nil {
				return nil, err
			}
			if !out.Accepted {
				return &mcp.ElicitResult{Action: "decline"}, nil
			}
			return &mcp.ElicitResult{Action: "accept", Content: out.Content}, nil
		},
	})

	cs, err := client.Connect(ctx, &mcp.StreamableClientTransport{
		Endpoint:   t.endpoint,
		HTTPClient: t.httpClient,
	}, &mcp.ClientSessionOptions{})
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", t.endpoint, err)
	}
	return &toolConn{cs: cs}, nil
}

// elicitRequest maps SDK elicit params onto the bridge's transport-neutral
// shape. URL-mode elicitations are signaled through _meta (there is no user
// input to collect in that mode, only an external action to complete); any
// requested schema rides along for form mode so the consumer can render it.
func elicitRequest(p *mcp.ElicitParams) *bridge.ElicitRequest {
	data := map[string]any{"message": p.Message}
	kind := bridge.ElicitKindForm

	if u := metaString(p.Meta, "url"); u != "" {
		kind = bridge.ElicitKindURL
		data["url"] = u
		if s := metaString(p.Meta, "state"); s != "" {
			data["state"] = s
		}
	} else if p.RequestedSchema != nil {
		if raw, err := json.Marshal(p.RequestedSchema); err == nil {
			var schema map[string]any
			if json.Unmarshal(raw, &schema) == nil {
				data["requestedSchema"] = schema
			}
		}
	}

	return &bridge.ElicitRequest{Kind: kind, Message: p.Message, Payload: data}
}

func metaString(meta map[string]any, key string) string {
	if meta == nil {
		return ""
	}
	s, _ := meta[key].(string)
	return s
}

type toolConn struct {
	cs *mcp.ClientSession
}

func (c *toolConn) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	res, err := c.cs.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return "", fmt.Errorf("call tool %q: %w", name, err)
	}
	text := textContent(res.Content)
	if res.IsError {
		if text == "" {
			text = "tool reported an error"
		}
		return "", fmt.Errorf("tool %q failed: %s", name, text)
	}
	if text == "" {
		return "no content", nil
	}
	return text, nil
}

func (c *toolConn) ListTools(ctx context.Context) ([]bridge.ToolInfo, error) {
	res, err := c.cs.ListTools(ctx, &mcp.ListToolsParams{})
	if err != nil {
		return nil, fmt.Errorf("list tools: %w", err)
	}
	infos := make([]bridge.ToolInfo, 0, len(res.Tools))
	for _, tl := range res.Tools {
		infos = append(infos, bridge.ToolInfo{Name: tl.Name, Description: tl.Description})
	}
	return infos, nil
}

func (c *toolConn) Ping(ctx context.Context) error {
	return c.cs.Ping(ctx, nil)
}

func (c *toolConn) Close() error {
	return c.cs.Close()
}

func textContent(blocks []mcp.Content) string {
	var parts []string
	for _, b := range blocks {
		if tc, ok := b.(*mcp.TextContent); ok && tc.Text != "" {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

var (
	_ bridge.Transport = (*Transport)(nil)
	_ bridge.ToolConn  = (*toolConn)(nil)
)
