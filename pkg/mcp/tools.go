package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rendis/attackchain/internal/catalog"
	"github.com/rendis/attackchain/internal/diagram"
	"github.com/rendis/attackchain/internal/editor"
	"github.com/rendis/attackchain/internal/store"
	"github.com/rendis/attackchain/pkg/schema"
)

// handleCatalogSearch lists templates matching a text query, a category
// and an expression filter. All three are optional and combine with AND.
func (s *ChainServer) handleCatalogSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := req.GetString("query", "")
	category := req.GetString("category", "")
	filter := req.GetString("filter", "")

	templates := s.catalog.Search(query)
	if filter != "" {
		matched, err := s.catalog.Filter(ctx, filter)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid filter: %v", err)), nil
		}
		templates = intersect(templates, matched)
	}
	if category != "" {
		templates = slices.DeleteFunc(templates, func(t catalog.Template) bool { return t.Category != category })
	}

	return marshalResult(map[string]any{"templates": templates, "count": len(templates)})
}

// handleOpen resumes a stored chain or starts a new one.
func (s *ChainServer) handleOpen(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	chainID := req.GetString("chain_id", "")
	if ed, ok := s.sessions.Get(chainID); ok {
		return marshalResult(summary(ed))
	}

	var ed *editor.Editor
	var err error
	if chainID != "" && s.store != nil {
		ed, err = editor.Open(ctx, s.store, chainID, s.editorOptions()...)
		if err != nil && !schema.IsCode(err, schema.ErrCodeNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("open chain: %v", err)), nil
		}
	}
	if ed == nil {
		opts := s.editorOptions()
		if chainID != "" {
			opts = append(opts, editor.WithChainID(chainID))
		}
		if name := req.GetString("name", ""); name != "" {
			opts = append(opts, editor.WithName(name))
		}
		ed, err = editor.New(opts...)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("create chain: %v", err)), nil
		}
		if preset := req.GetString("preset", ""); preset != "" {
			if _, err := ed.LoadPreset(s.catalog, preset); err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("load preset: %v", err)), nil
			}
		}
	}

	s.sessions.Register(ed)
	if s.autosave != nil {
		s.autosave.Register(ed)
	}
	return marshalResult(summary(ed))
}

// handleList lists stored chains.
func (s *ChainServer) handleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.store == nil {
		return mcp.NewToolResultError("no chain store configured"), nil
	}
	records, err := s.store.ListChains(ctx, store.ChainFilter{
		NameContains: req.GetString("name", ""),
		RiskLevel:    schema.Severity(req.GetString("risk", "")),
		Limit:        extractInt(req.GetArguments(), "limit", 50),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list chains: %v", err)), nil
	}

	chains := make([]map[string]any, 0, len(records))
	for _, r := range records {
		chains = append(chains, map[string]any{
			"id":            r.ID,
			"name":          r.Name,
			"nodes":         r.NodeCount,
			"edges":         r.EdgeCount,
			"total_minutes": r.TotalMinutes,
			"risk":          r.RiskLevel,
			"verdict":       r.Verdict,
			"updated_at":    r.UpdatedAt,
			"open":          s.isOpen(r.ID),
		})
	}
	return marshalResult(map[string]any{"chains": chains})
}

func (s *ChainServer) handleAddNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ed, errResult := s.session(req)
	if errResult != nil {
		return errResult, nil
	}
	templateID, err := req.RequireString("template_id")
	if err != nil {
		return mcp.NewToolResultError("template_id is required"), nil
	}

	args := req.GetArguments()
	pos := schema.Point{X: extractFloat(args, "x", 0), Y: extractFloat(args, "y", 0)}
	node, err := ed.AddFromCatalog(s.catalog, templateID, pos)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return marshalResult(map[string]any{"node": node, "chain": summary(ed)})
}

func (s *ChainServer) handleRemoveNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ed, errResult := s.session(req)
	if errResult != nil {
		return errResult, nil
	}
	nodeID, err := req.RequireString("node_id")
	if err != nil {
		return mcp.NewToolResultError("node_id is required"), nil
	}
	if !ed.RemoveNode(nodeID) {
		return mcp.NewToolResultError(fmt.Sprintf("node %q not found", nodeID)), nil
	}
	return marshalResult(map[string]any{"removed": nodeID, "chain": summary(ed)})
}

func (s *ChainServer) handleConnect(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ed, errResult := s.session(req)
	if errResult != nil {
		return errResult, nil
	}
	from, err := req.RequireString("from")
	if err != nil {
		return mcp.NewToolResultError("from is required"), nil
	}
	to, err := req.RequireString("to")
	if err != nil {
		return mcp.NewToolResultError("to is required"), nil
	}
	typ := schema.EdgeType(req.GetString("type", string(schema.EdgeTypeDefault)))
	if !typ.IsValid() {
		return mcp.NewToolResultError(fmt.Sprintf("unknown edge type %q", typ)), nil
	}

	edge, err := ed.TryAddEdge(from, to, typ)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("connection rejected: %v", err)), nil
	}
	if guard := req.GetString("guard", ""); guard != "" {
		ed.UpdateEdge(edge.ID, typ, guard)
		edge.Label = guard
	}
	return marshalResult(map[string]any{"edge": edge, "chain": summary(ed)})
}

func (s *ChainServer) handleDisconnect(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ed, errResult := s.session(req)
	if errResult != nil {
		return errResult, nil
	}
	edgeID, err := req.RequireString("edge_id")
	if err != nil {
		return mcp.NewToolResultError("edge_id is required"), nil
	}
	if !ed.RemoveEdge(edgeID) {
		return mcp.NewToolResultError(fmt.Sprintf("edge %q not found", edgeID)), nil
	}
	return marshalResult(map[string]any{"removed": edgeID, "chain": summary(ed)})
}

func (s *ChainServer) handleMoveNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ed, errResult := s.session(req)
	if errResult != nil {
		return errResult, nil
	}
	nodeID, err := req.RequireString("node_id")
	if err != nil {
		return mcp.NewToolResultError("node_id is required"), nil
	}
	args := req.GetArguments()
	if _, ok := args["x"]; !ok {
		return mcp.NewToolResultError("x is required"), nil
	}
	if _, ok := args["y"]; !ok {
		return mcp.NewToolResultError("y is required"), nil
	}
	pos := schema.Point{X: extractFloat(args, "x", 0), Y: extractFloat(args, "y", 0)}
	if !ed.MoveNode(nodeID, pos) {
		return mcp.NewToolResultError(fmt.Sprintf("node %q not found", nodeID)), nil
	}
	node, _ := ed.Node(nodeID)
	return marshalResult(map[string]any{"node": node})
}

func (s *ChainServer) handleSetStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ed, errResult := s.session(req)
	if errResult != nil {
		return errResult, nil
	}
	nodeID, err := req.RequireString("node_id")
	if err != nil {
		return mcp.NewToolResultError("node_id is required"), nil
	}
	status, err := req.RequireString("status")
	if err != nil {
		return mcp.NewToolResultError("status is required"), nil
	}
	if !ed.SetNodeStatus(nodeID, schema.NodeStatus(status)) {
		return mcp.NewToolResultError(fmt.Sprintf("cannot set status %q on node %q", status, nodeID)), nil
	}
	node, _ := ed.Node(nodeID)
	return marshalResult(map[string]any{"node": node, "guards": ed.Guards(ctx)})
}

func (s *ChainServer) handleLayout(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ed, errResult := s.session(req)
	if errResult != nil {
		return errResult, nil
	}
	mode := editor.LayoutMode(req.GetString("mode", string(editor.LayoutGrid)))
	if mode != editor.LayoutGrid && mode != editor.LayoutLayered {
		return mcp.NewToolResultError(fmt.Sprintf("unknown layout mode %q", mode)), nil
	}
	ed.Arrange(mode)
	return marshalResult(map[string]any{"nodes": ed.Nodes()})
}

func (s *ChainServer) handleClear(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ed, errResult := s.session(req)
	if errResult != nil {
		return errResult, nil
	}
	ed.Clear()
	return marshalResult(summary(ed))
}

// handleInspect reports stats, verdict, the detailed validation report
// and the evaluation of conditional-edge guards.
func (s *ChainServer) handleInspect(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ed, errResult := s.session(req)
	if errResult != nil {
		return errResult, nil
	}
	report := ed.Inspect()
	return marshalResult(map[string]any{
		"chain_id": ed.ChainID(),
		"stats":    ed.Stats(),
		"verdict":  ed.ValidationStatus(),
		"valid":    report.Valid(),
		"errors":   report.Errors,
		"warnings": report.Warnings,
		"guards":   ed.Guards(ctx),
	})
}

// handleDiagram renders the chain in the requested format.
func (s *ChainServer) handleDiagram(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ed, errResult := s.session(req)
	if errResult != nil {
		return errResult, nil
	}
	format, err := req.RequireString("format")
	if err != nil {
		return mcp.NewToolResultError("format is required"), nil
	}
	if format != "ascii" && format != "mermaid" && format != "image" {
		return mcp.NewToolResultError("format must be ascii, mermaid, or image"), nil
	}

	var opts []diagram.BuildOption
	if extractBool(req.GetArguments(), "clusters") {
		opts = append(opts, diagram.WithClusters())
	}
	model, err := diagram.Build(ed.Document(), opts...)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("diagram build failed: %v", err)), nil
	}

	switch format {
	case "ascii":
		return mcp.NewToolResultText(diagram.RenderASCII(model)), nil
	case "mermaid":
		return mcp.NewToolResultText(diagram.RenderMermaid(model)), nil
	default:
		png, imgErr := diagram.RenderImage(ctx, model, diagram.FormatPNG)
		if imgErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("image render failed: %v", imgErr)), nil
		}
		return mcp.NewToolResultImage(model.Title, base64.StdEncoding.EncodeToString(png), "image/png"), nil
	}
}

// handleQuery runs a jq expression over the chain document.
func (s *ChainServer) handleQuery(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ed, errResult := s.session(req)
	if errResult != nil {
		return errResult, nil
	}
	expression, err := req.RequireString("jq")
	if err != nil {
		return mcp.NewToolResultError("jq is required"), nil
	}
	out, err := s.codec.Query(ctx, ed.Document(), expression)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
	}
	return marshalResult(map[string]any{"result": out})
}

func (s *ChainServer) handleSave(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ed, errResult := s.session(req)
	if errResult != nil {
		return errResult, nil
	}
	if s.store == nil {
		return mcp.NewToolResultError("no chain store configured"), nil
	}
	if err := ed.Save(ctx, s.store); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("save failed: %v", err)), nil
	}
	return marshalResult(map[string]any{"saved": ed.ChainID(), "chain": summary(ed)})
}

// --- Internal helpers ---

// session resolves the chain_id argument to an open editor.
func (s *ChainServer) session(req mcp.CallToolRequest) (*editor.Editor, *mcp.CallToolResult) {
	chainID, err := req.RequireString("chain_id")
	if err != nil {
		return nil, mcp.NewToolResultError("chain_id is required")
	}
	ed, ok := s.sessions.Get(chainID)
	if !ok {
		return nil, mcp.NewToolResultError(fmt.Sprintf("chain %q is not open; call chain.open first", chainID))
	}
	return ed, nil
}

func (s *ChainServer) isOpen(chainID string) bool {
	_, ok := s.sessions.Get(chainID)
	return ok
}

func (s *ChainServer) editorOptions() []editor.Option {
	opts := []editor.Option{editor.WithHub(s.hub), editor.WithLogger(s.logger)}
	if s.metrics != nil {
		opts = append(opts, editor.WithMetrics(s.metrics))
	}
	if s.viewSize.Width > 0 && s.viewSize.Height > 0 {
		opts = append(opts, editor.WithViewSize(s.viewSize))
	}
	return opts
}

// summary is the compact chain state returned by mutating tools.
func summary(ed *editor.Editor) map[string]any {
	st := ed.Stats()
	return map[string]any{
		"chain_id": ed.ChainID(),
		"name":     ed.Name(),
		"nodes":    st.NodeCount,
		"edges":    st.EdgeCount,
		"duration": st.Duration,
		"risk":     st.RiskLevel,
		"verdict":  ed.ValidationStatus(),
		"dirty":    ed.Dirty(),
	}
}

// intersect keeps the templates of a that also appear in b, in a's order.
func intersect(a, b []catalog.Template) []catalog.Template {
	keep := make(map[string]bool, len(b))
	for _, t := range b {
		keep[t.ID] = true
	}
	out := make([]catalog.Template, 0, len(a))
	for _, t := range a {
		if keep[t.ID] {
			out = append(out, t)
		}
	}
	return out
}

func extractInt(args map[string]any, key string, defaultVal int) int {
	switch val := args[key].(type) {
	case float64:
		return int(val)
	case int:
		return val
	case string:
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func extractFloat(args map[string]any, key string, defaultVal float64) float64 {
	switch val := args[key].(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case string:
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func extractBool(args map[string]any, key string) bool {
	switch val := args[key].(type) {
	case bool:
		return val
	case string:
		b, _ := strconv.ParseBool(val)
		return b
	}
	return false
}

// marshalResult converts a value to a JSON text tool result.
func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
