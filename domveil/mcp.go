package domveil

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/veil/domveil/protocol"
	"github.com/hazyhaar/veil/kit"
)

// RegisterMCP registers the session's controller tools on an MCP server.
func (s *Session) RegisterMCP(srv *mcp.Server) {
	mw := func(name string) kit.Middleware {
		return kit.Chain(kit.Logging(s.logger, name), s.stampSession)
	}
	for _, t := range s.mcpTools() {
		kit.RegisterMCPTool(srv, t.tool, mw(t.tool.Name)(t.endpoint), t.decode)
	}
}

func (s *Session) stampSession(next kit.Endpoint) kit.Endpoint {
	return func(ctx context.Context, req any) (any, error) {
		return next(kit.WithSessionID(ctx, s.id), req)
	}
}

type mcpTool struct {
	tool     *mcp.Tool
	endpoint kit.Endpoint
	decode   kit.MCPDecoder
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func str(desc string) map[string]any { return map[string]any{"type": "string", "description": desc} }
func num(desc string) map[string]any { return map[string]any{"type": "integer", "description": desc} }

type idReq struct {
	ID string `json:"id"`
}

type touchReq struct {
	ID    string              `json:"id"`
	Phase protocol.TouchPhase `json:"phase"`
}

func (s *Session) mcpTools() []mcpTool {
	return []mcpTool{
		{
			tool: &mcp.Tool{
				Name:        "veil_command",
				Description: "Send a controller command: hide, hideSelectionForNewCategory, selectionFlagged, selectionUnflagged or unflagIgnored.",
				InputSchema: inputSchema(map[string]any{
					"name":      str("Command name"),
					"className": str("Element id, for hide"),
					"category":  str("Category, for selectionFlagged"),
				}, []string{"name"}),
			},
			endpoint: func(ctx context.Context, req any) (any, error) {
				msg := req.(protocol.Inbound)
				if _, ok := msg.(protocol.Unknown); ok {
					return nil, errors.New("unknown command " + msg.Action())
				}
				if err := s.Dispatch(ctx, msg); err != nil {
					return nil, err
				}
				return map[string]string{"status": "applied", "name": msg.Action()}, nil
			},
			decode: func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
				msg, err := protocol.UnmarshalInbound(req.Params.Arguments)
				if err != nil {
					return nil, err
				}
				return &kit.MCPDecodeResult{Request: msg}, nil
			},
		},
		{
			tool: &mcp.Tool{
				Name:        "veil_click",
				Description: "Click an identified element. Hidden elements on the path are revealed.",
				InputSchema: inputSchema(map[string]any{"id": str("Element id")}, []string{"id"}),
			},
			endpoint: func(ctx context.Context, req any) (any, error) {
				prevented, err := s.Click(ctx, req.(idReq).ID)
				if err != nil {
					return nil, err
				}
				return map[string]bool{"prevented": prevented}, nil
			},
			decode: kit.DecodeArgs[idReq](),
		},
		{
			tool: &mcp.Tool{
				Name:        "veil_touch",
				Description: "Deliver a touch event (start, end, leave, cancel) to an identified element. A held start reveals after the long-press delay.",
				InputSchema: inputSchema(map[string]any{
					"id":    str("Element id"),
					"phase": map[string]any{"type": "string", "enum": []string{"start", "end", "leave", "cancel"}},
				}, []string{"id", "phase"}),
			},
			endpoint: func(ctx context.Context, req any) (any, error) {
				r := req.(touchReq)
				if !r.Phase.Valid() {
					return nil, errors.New("invalid phase " + string(r.Phase))
				}
				if err := s.Touch(ctx, r.ID, r.Phase); err != nil {
					return nil, err
				}
				return map[string]string{"status": "ok"}, nil
			},
			decode: kit.DecodeArgs[touchReq](),
		},
		{
			tool: &mcp.Tool{
				Name:        "veil_select",
				Description: "Select text by element id and offset into each element's text. Omit anchor_id to clear the selection.",
				InputSchema: inputSchema(map[string]any{
					"anchor_id":     str("Element holding the anchor"),
					"anchor_offset": num("Offset into the anchor element's text"),
					"focus_id":      str("Element holding the focus (defaults to anchor_id)"),
					"focus_offset":  num("Offset into the focus element's text"),
					"utf16":         map[string]any{"type": "boolean", "description": "Offsets are UTF-16 code units"},
				}, nil),
			},
			endpoint: func(ctx context.Context, req any) (any, error) {
				if err := s.Select(ctx, req.(protocol.SelectRequest)); err != nil {
					return nil, err
				}
				return map[string]string{"status": "ok"}, nil
			},
			decode: kit.DecodeArgs[protocol.SelectRequest](),
		},
		{
			tool: &mcp.Tool{
				Name:        "veil_mutate",
				Description: "Append HTML under an identified element (or the body), or remove an identified element.",
				InputSchema: inputSchema(map[string]any{
					"parent_id": str("Parent element id; empty for the body"),
					"html":      str("Markup to append"),
					"remove_id": str("Element id to remove"),
				}, nil),
			},
			endpoint: func(ctx context.Context, req any) (any, error) {
				if err := s.Mutate(ctx, req.(protocol.MutateRequest)); err != nil {
					return nil, err
				}
				return map[string]string{"status": "ok"}, nil
			},
			decode: kit.DecodeArgs[protocol.MutateRequest](),
		},
		{
			tool: &mcp.Tool{
				Name:        "veil_elements",
				Description: "List identified elements with their text and visibility state.",
				InputSchema: inputSchema(map[string]any{}, nil),
			},
			endpoint: func(ctx context.Context, _ any) (any, error) {
				els, err := s.Elements(ctx)
				if err != nil {
					return nil, err
				}
				last, err := s.LastRevealed(ctx)
				if err != nil {
					return nil, err
				}
				return map[string]any{"elements": els, "last_revealed": last}, nil
			},
			decode: noArgs,
		},
		{
			tool: &mcp.Tool{
				Name:        "veil_render",
				Description: "Render the document with its current masking as HTML.",
				InputSchema: inputSchema(map[string]any{}, nil),
			},
			endpoint: func(ctx context.Context, _ any) (any, error) {
				var b strings.Builder
				if err := s.Render(ctx, &b); err != nil {
					return nil, err
				}
				return map[string]string{"html": b.String()}, nil
			},
			decode: noArgs,
		},
	}
}

func noArgs(*mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
	return &kit.MCPDecodeResult{}, nil
}

// NewMCPServer creates an MCP server exposing the session's tools.
func (s *Session) NewMCPServer(version string) *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{Name: "domveil", Version: version}, nil)
	s.RegisterMCP(srv)
	s.logger.Debug("domveil: mcp tools registered", slog.Int("tools", len(s.mcpTools())))
	return srv
}
