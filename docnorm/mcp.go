package docnorm

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/docparse/kit"
)

// RegisterMCP registers normalization tools on an MCP server.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	s.registerParseTool(srv)
	s.registerDetectTool(srv)
	s.registerFormatsTool(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// --- parse ---

func (s *Service) registerParseTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "docparse_parse",
		Description: "Parse a document (pdf, docx, pptx, xlsx, html, md, txt) into canonical content blocks.",
		InputSchema: inputSchema(map[string]any{
			"fileContent": map[string]any{"type": "string", "description": "Base64-encoded file content"},
			"filename":    map[string]any{"type": "string", "description": "Filename with extension"},
		}, []string{"fileContent", "filename"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		return s.Parse(ctx, req.(*ParseRequest))
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r ParseRequest
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- detect ---

type detectReq struct {
	Filename string `json:"filename"`
}

func (s *Service) registerDetectTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "docparse_detect",
		Description: "Detect the format of a document from its filename extension.",
		InputSchema: inputSchema(map[string]any{
			"filename": map[string]any{"type": "string", "description": "Filename to detect"},
		}, []string{"filename"}),
	}

	endpoint := func(_ context.Context, req any) (any, error) {
		r := req.(*detectReq)
		format, err := Detect(r.Filename)
		if err != nil {
			return nil, err
		}
		return map[string]string{"format": string(format)}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r detectReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- formats ---

func (s *Service) registerFormatsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "docparse_formats",
		Description: "List supported formats, split into native and backend-delegated.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(_ context.Context, _ any) (any, error) {
		return s.Formats(), nil
	}

	decode := func(_ *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: struct{}{}}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}
