package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/attackchain/internal/autosave"
	"github.com/rendis/attackchain/internal/catalog"
	"github.com/rendis/attackchain/internal/document"
	"github.com/rendis/attackchain/internal/metrics"
	"github.com/rendis/attackchain/internal/store"
	"github.com/rendis/attackchain/internal/streaming"
	"github.com/rendis/attackchain/pkg/schema"
)

// Version is reported to MCP clients.
const Version = "1.0.0"

// ChainServerDeps holds the dependencies for creating a ChainServer.
type ChainServerDeps struct {
	Catalog  *catalog.Catalog
	Store    store.ChainStore
	Hub      streaming.EventHub
	Metrics  *metrics.Registry
	Autosave *autosave.Autosaver
	Logger   *slog.Logger
	ViewSize schema.Size
}

// ChainServer wraps an MCP server with attack-chain tool handlers.
type ChainServer struct {
	catalog   *catalog.Catalog
	store     store.ChainStore
	hub       streaming.EventHub
	metrics   *metrics.Registry
	autosave  *autosave.Autosaver
	codec     *document.Codec
	sessions  *SessionRegistry
	logger    *slog.Logger
	viewSize  schema.Size
	mcpServer *server.MCPServer
}

// NewChainServer creates a ChainServer with every chain tool registered.
func NewChainServer(deps ChainServerDeps) (*ChainServer, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	cat := deps.Catalog
	if cat == nil {
		cat = catalog.Default()
	}
	hub := deps.Hub
	if hub == nil {
		hub = streaming.NewMemoryHub()
	}
	codec, err := document.NewCodec()
	if err != nil {
		return nil, err
	}

	s := &ChainServer{
		catalog:  cat,
		store:    deps.Store,
		hub:      hub,
		metrics:  deps.Metrics,
		autosave: deps.Autosave,
		codec:    codec,
		sessions: NewSessionRegistry(),
		logger:   logger,
		viewSize: deps.ViewSize,
	}

	mcpSrv := server.NewMCPServer(
		"attackchain",
		Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("Attackchain edits attack-chain graphs. Use catalog.search to find technique templates, "+
			"chain.open to start or resume a chain, chain.add_node and chain.connect to build it, chain.inspect for "+
			"stats, verdict and issues, chain.diagram or chain.query to export it and chain.save to persist it."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s, nil
}

// Serve forwards change events to clients and runs the stdio transport
// until ctx is cancelled or stdin closes.
func (s *ChainServer) Serve(ctx context.Context) error {
	notifier := NewChangeNotifier(s.mcpServer, s.hub, s.logger)
	if err := notifier.Start(ctx); err != nil {
		return err
	}
	defer notifier.Stop()

	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *ChainServer) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// Sessions returns the open chain sessions.
func (s *ChainServer) Sessions() *SessionRegistry {
	return s.sessions
}

func (s *ChainServer) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: catalogSearchTool(), Handler: s.handleCatalogSearch},
		{Tool: openTool(), Handler: s.handleOpen},
		{Tool: listTool(), Handler: s.handleList},
		{Tool: addNodeTool(), Handler: s.handleAddNode},
		{Tool: removeNodeTool(), Handler: s.handleRemoveNode},
		{Tool: connectTool(), Handler: s.handleConnect},
		{Tool: disconnectTool(), Handler: s.handleDisconnect},
		{Tool: moveNodeTool(), Handler: s.handleMoveNode},
		{Tool: setStatusTool(), Handler: s.handleSetStatus},
		{Tool: layoutTool(), Handler: s.handleLayout},
		{Tool: clearTool(), Handler: s.handleClear},
		{Tool: inspectTool(), Handler: s.handleInspect},
		{Tool: diagramTool(), Handler: s.handleDiagram},
		{Tool: queryTool(), Handler: s.handleQuery},
		{Tool: saveTool(), Handler: s.handleSave},
	}
}

// --- Tool definitions ---

func catalogSearchTool() mcp.Tool {
	return mcp.NewTool("catalog.search",
		mcp.WithDescription("Search attack technique templates"),
		mcp.WithString("query", mcp.Description("Case-insensitive text matched against id, name, description and techniques")),
		mcp.WithString("category", mcp.Description("Restrict to one category")),
		mcp.WithString("filter", mcp.Description(`Expr predicate, e.g. severity == "critical" && max_time <= 60`)),
	)
}

func openTool() mcp.Tool {
	return mcp.NewTool("chain.open",
		mcp.WithDescription("Open a stored chain or start a new one"),
		mcp.WithString("chain_id", mcp.Description("Chain to open; a new chain is created when omitted or unknown")),
		mcp.WithString("name", mcp.Description("Name for a new chain")),
		mcp.WithString("preset", mcp.Description("Catalog preset to load into a new chain")),
	)
}

func listTool() mcp.Tool {
	return mcp.NewTool("chain.list",
		mcp.WithDescription("List stored chains"),
		mcp.WithString("name", mcp.Description("Name substring")),
		mcp.WithString("risk", mcp.Enum("low", "medium", "high", "critical"), mcp.Description("Risk level")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of chains (default 50)")),
	)
}

func addNodeTool() mcp.Tool {
	return mcp.NewTool("chain.add_node",
		mcp.WithDescription("Place a catalog template on the canvas"),
		mcp.WithString("chain_id", mcp.Required(), mcp.Description("Open chain")),
		mcp.WithString("template_id", mcp.Required(), mcp.Description("Catalog template id")),
		mcp.WithNumber("x", mcp.Description("Logical x position")),
		mcp.WithNumber("y", mcp.Description("Logical y position")),
	)
}

func removeNodeTool() mcp.Tool {
	return mcp.NewTool("chain.remove_node",
		mcp.WithDescription("Remove a node and its connections"),
		mcp.WithString("chain_id", mcp.Required(), mcp.Description("Open chain")),
		mcp.WithString("node_id", mcp.Required(), mcp.Description("Node to remove")),
	)
}

func connectTool() mcp.Tool {
	return mcp.NewTool("chain.connect",
		mcp.WithDescription("Connect two nodes with a directed edge"),
		mcp.WithString("chain_id", mcp.Required(), mcp.Description("Open chain")),
		mcp.WithString("from", mcp.Required(), mcp.Description("Source node id")),
		mcp.WithString("to", mcp.Required(), mcp.Description("Target node id")),
		mcp.WithString("type",
			mcp.Enum("default", "success", "error", "sequence", "parallel", "conditional"),
			mcp.Description("Edge type (default: default)"),
		),
		mcp.WithString("guard", mcp.Description("CEL guard for conditional edges, e.g. from.status == \"completed\"")),
	)
}

func disconnectTool() mcp.Tool {
	return mcp.NewTool("chain.disconnect",
		mcp.WithDescription("Remove an edge"),
		mcp.WithString("chain_id", mcp.Required(), mcp.Description("Open chain")),
		mcp.WithString("edge_id", mcp.Required(), mcp.Description("Edge to remove")),
	)
}

func moveNodeTool() mcp.Tool {
	return mcp.NewTool("chain.move_node",
		mcp.WithDescription("Move a node to a logical position"),
		mcp.WithString("chain_id", mcp.Required(), mcp.Description("Open chain")),
		mcp.WithString("node_id", mcp.Required(), mcp.Description("Node to move")),
		mcp.WithNumber("x", mcp.Required(), mcp.Description("Logical x position")),
		mcp.WithNumber("y", mcp.Required(), mcp.Description("Logical y position")),
	)
}

func setStatusTool() mcp.Tool {
	return mcp.NewTool("chain.set_status",
		mcp.WithDescription("Record the execution status of a node"),
		mcp.WithString("chain_id", mcp.Required(), mcp.Description("Open chain")),
		mcp.WithString("node_id", mcp.Required(), mcp.Description("Node to update")),
		mcp.WithString("status", mcp.Required(),
			mcp.Enum("pending", "running", "completed", "error"),
			mcp.Description("New status"),
		),
	)
}

func layoutTool() mcp.Tool {
	return mcp.NewTool("chain.layout",
		mcp.WithDescription("Rearrange all nodes"),
		mcp.WithString("chain_id", mcp.Required(), mcp.Description("Open chain")),
		mcp.WithString("mode", mcp.Enum("grid", "layered"), mcp.Description("Layout mode (default: grid)")),
	)
}

func clearTool() mcp.Tool {
	return mcp.NewTool("chain.clear",
		mcp.WithDescription("Remove every node and edge"),
		mcp.WithString("chain_id", mcp.Required(), mcp.Description("Open chain")),
	)
}

func inspectTool() mcp.Tool {
	return mcp.NewTool("chain.inspect",
		mcp.WithDescription("Get stats, verdict, validation issues and guard results"),
		mcp.WithString("chain_id", mcp.Required(), mcp.Description("Open chain")),
	)
}

func diagramTool() mcp.Tool {
	return mcp.NewTool("chain.diagram",
		mcp.WithDescription("Render the chain as ASCII art, a Mermaid flowchart or a PNG image"),
		mcp.WithString("chain_id", mcp.Required(), mcp.Description("Open chain")),
		mcp.WithString("format", mcp.Required(),
			mcp.Enum("ascii", "mermaid", "image"),
			mcp.Description("Output format"),
		),
		mcp.WithBoolean("clusters", mcp.Description("Group nodes by category")),
	)
}

func queryTool() mcp.Tool {
	return mcp.NewTool("chain.query",
		mcp.WithDescription("Run a jq query over the chain document"),
		mcp.WithString("chain_id", mcp.Required(), mcp.Description("Open chain")),
		mcp.WithString("jq", mcp.Required(), mcp.Description(`jq expression, e.g. [.nodes[] | select(.template.severity == "critical") | .id]`)),
	)
}

func saveTool() mcp.Tool {
	return mcp.NewTool("chain.save",
		mcp.WithDescription("Persist the chain"),
		mcp.WithString("chain_id", mcp.Required(), mcp.Description("Open chain")),
	)
}
