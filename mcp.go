package viswatch

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/viswatch/kit"
)

// RegisterMCP registers the viswatch tools on an MCP server.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	s.registerCaptureTool(srv)
	s.registerCaptureElementTool(srv)
	s.registerFindImageTool(srv)
	s.registerCompareElementTool(srv)
	s.registerResultsTool(srv)
	s.registerStatsTool(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	sc := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		sc["required"] = required
	}
	return sc
}

var maskProps = map[string]any{
	"blur":   map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Selectors to blur"},
	"radius": map[string]any{"type": "integer", "description": "Blur radius (default 50)"},
	"redact": map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Selectors to black out"},
}

func withMasks(props map[string]any) map[string]any {
	for k, v := range maskProps {
		props[k] = v
	}
	return props
}

// register wraps the endpoint with logging and stamps a request ID on
// every call.
func register[T any](s *Service, srv *mcp.Server, tool *mcp.Tool, endpoint kit.Endpoint) {
	decodeJSON := kit.DecodeJSON[T]()
	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		res, err := decodeJSON(req)
		if err != nil {
			return nil, err
		}
		id := s.tokens()
		res.EnrichCtx = func(ctx context.Context) context.Context { return kit.WithRequestID(ctx, id) }
		return res, nil
	}
	kit.RegisterMCPTool(srv, tool, kit.Logging(s.logger, tool.Name)(endpoint), decode)
}

// --- capture ---

func (s *Service) registerCaptureTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "viswatch_capture",
		Description: "Screenshot the viewport, blurring and redacting the given selectors. Returns the saved path.",
		InputSchema: inputSchema(withMasks(map[string]any{
			"url":  map[string]any{"type": "string", "description": "Page to load first (optional)"},
			"name": map[string]any{"type": "string", "description": "File name under the artifacts directory (optional)"},
		}), nil),
	}
	register[CaptureRequest](s, srv, tool, func(ctx context.Context, req any) (any, error) {
		r := *req.(*CaptureRequest)
		r.Selector = ""
		return s.CaptureFull(ctx, r)
	})
}

func (s *Service) registerCaptureElementTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "viswatch_capture_element",
		Description: "Screenshot one element, cropped to its bounding box. Selectors: //xpath, id:x, class:x, css:x.",
		InputSchema: inputSchema(withMasks(map[string]any{
			"selector": map[string]any{"type": "string", "description": "Element selector"},
			"url":      map[string]any{"type": "string", "description": "Page to load first (optional)"},
			"name":     map[string]any{"type": "string", "description": "File name under the artifacts directory (optional)"},
		}), []string{"selector"}),
	}
	register[CaptureRequest](s, srv, tool, func(ctx context.Context, req any) (any, error) {
		return s.CaptureElement(ctx, *req.(*CaptureRequest))
	})
}

// --- match ---

func (s *Service) registerFindImageTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "viswatch_find_image",
		Description: "Search the screen for a reference image, retrying with fresh screenshots. Verdict 0 means found.",
		InputSchema: inputSchema(map[string]any{
			"template":   map[string]any{"type": "string", "description": "Reference image path"},
			"min_points": map[string]any{"type": "integer", "description": "Minimum matching points"},
			"url":        map[string]any{"type": "string", "description": "Page to load first (optional)"},
		}, []string{"template"}),
	}
	register[FindRequest](s, srv, tool, func(ctx context.Context, req any) (any, error) {
		return s.FindImage(ctx, *req.(*FindRequest))
	})
}

func (s *Service) registerCompareElementTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "viswatch_compare_element",
		Description: "Capture an element and diff it against a reference image. Verdict 0 means the score is below tolerance.",
		InputSchema: inputSchema(map[string]any{
			"selector":  map[string]any{"type": "string", "description": "Element selector"},
			"template":  map[string]any{"type": "string", "description": "Reference image path"},
			"tolerance": map[string]any{"type": "number", "description": "Passing score bound (exclusive)"},
			"url":       map[string]any{"type": "string", "description": "Page to load first (optional)"},
		}, []string{"selector", "template"}),
	}
	register[CompareRequest](s, srv, tool, func(ctx context.Context, req any) (any, error) {
		return s.CompareElement(ctx, *req.(*CompareRequest))
	})
}

// --- ledger ---

func (s *Service) registerResultsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "viswatch_results",
		Description: "List recorded comparison reports, most recent first.",
		InputSchema: inputSchema(map[string]any{
			"kind":     map[string]any{"type": "string", "enum": []string{"screen", "element"}},
			"template": map[string]any{"type": "string", "description": "Reference image path"},
			"verdict":  map[string]any{"type": "string", "enum": []string{"pass", "fail"}},
			"limit":    map[string]any{"type": "integer", "description": "Max results (default 50)"},
		}, nil),
	}
	register[ResultsRequest](s, srv, tool, func(ctx context.Context, req any) (any, error) {
		reports, err := s.Results(ctx, *req.(*ResultsRequest))
		if err != nil {
			return nil, err
		}
		return map[string]any{"results": reports, "count": len(reports)}, nil
	})
}

func (s *Service) registerStatsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "viswatch_stats",
		Description: "Pass and fail counts per reference image.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	register[struct{}](s, srv, tool, func(ctx context.Context, _ any) (any, error) {
		stats, err := s.Stats(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{"templates": stats}, nil
	})
}
