package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/ZanzyTHEbar/mcp-memo-libsql-go/internal/app"
	"github.com/ZanzyTHEbar/mcp-memo-libsql-go/internal/apptype"
	"github.com/ZanzyTHEbar/mcp-memo-libsql-go/internal/buildinfo"
	"github.com/ZanzyTHEbar/mcp-memo-libsql-go/internal/metrics"
)

const poolStatsInterval = 5 * time.Second

// MCPServer exposes the memo service as MCP tools
type MCPServer struct {
	server *mcp.Server
	app    *app.App
	logger *zap.Logger
}

// NewMCPServer creates a new MCP server
func NewMCPServer(a *app.App) *MCPServer {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "memo-graph",
		Version: buildinfo.Version,
	}, nil)

	logger := a.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	mcpServer := &MCPServer{
		server: server,
		app:    a,
		logger: logger.Named("mcp"),
	}
	mcpServer.setupToolHandlers()
	return mcpServer
}

func mustSchema[T any](name string) *jsonschema.Schema {
	s, err := jsonschema.For[T]()
	if err != nil {
		panic(fmt.Sprintf("failed to create schema for %s: %v", name, err))
	}
	return s
}

// setupToolHandlers registers all MCP tools
func (s *MCPServer) setupToolHandlers() {
	// Memo-bearing results are returned as JSON text; only plain
	// structs declare an OutputSchema.
	mcp.AddTool(s.server, &mcp.Tool{
		Annotations: &mcp.ToolAnnotations{Title: "Create Memo"},
		Name:        "create_memo",
		Title:       "Create Memo",
		Description: "Store a memo. The content is summarized, tagged and embedded before saving.",
		InputSchema: mustSchema[apptype.CreateMemoArgs]("CreateMemoArgs"),
	}, s.handleCreateMemo)

	mcp.AddTool(s.server, &mcp.Tool{
		Annotations: &mcp.ToolAnnotations{Title: "List Memos", ReadOnlyHint: true},
		Name:        "list_memos",
		Title:       "List Memos",
		Description: "List all memos, most recent first.",
		InputSchema: mustSchema[apptype.ListMemosArgs]("ListMemosArgs"),
	}, s.handleListMemos)

	mcp.AddTool(s.server, &mcp.Tool{
		Annotations: &mcp.ToolAnnotations{Title: "Get Memo", ReadOnlyHint: true},
		Name:        "get_memo",
		Title:       "Get Memo",
		Description: "Fetch one memo by id.",
		InputSchema: mustSchema[apptype.MemoIDArgs]("MemoIDArgs"),
	}, s.handleGetMemo)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "update_memo",
		Title:       "Update Memo",
		Description: "Replace the content of a memo and regenerate its summary, tags and embedding.",
		InputSchema: mustSchema[apptype.UpdateMemoArgs]("UpdateMemoArgs"),
	}, s.handleUpdateMemo)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "delete_memo",
		Title:        "Delete Memo",
		Description:  "Delete a memo by id.",
		InputSchema:  mustSchema[apptype.MemoIDArgs]("MemoIDArgs (delete)"),
		OutputSchema: mustSchema[apptype.DeleteResult]("DeleteResult"),
	}, s.handleDeleteMemo)

	mcp.AddTool(s.server, &mcp.Tool{
		Annotations:  &mcp.ToolAnnotations{Title: "Search Memos", ReadOnlyHint: true},
		Name:         "search_memos",
		Title:        "Search Memos",
		Description:  "Answer a question from the memos most similar to it.",
		InputSchema:  mustSchema[apptype.SearchMemosArgs]("SearchMemosArgs"),
		OutputSchema: mustSchema[apptype.SearchResult]("SearchResult"),
	}, s.handleSearchMemos)

	mcp.AddTool(s.server, &mcp.Tool{
		Annotations:  &mcp.ToolAnnotations{Title: "Memo Graph", ReadOnlyHint: true},
		Name:         "memo_graph",
		Title:        "Memo Graph",
		Description:  "Similarity graph over embedded memos: one node per memo, an edge for each pair at or above the threshold.",
		InputSchema:  mustSchema[apptype.GraphArgs]("GraphArgs"),
		OutputSchema: mustSchema[apptype.GraphData]("GraphData"),
	}, s.handleMemoGraph)

	mcp.AddTool(s.server, &mcp.Tool{
		Annotations: &mcp.ToolAnnotations{Title: "Memo Graph 3D", ReadOnlyHint: true},
		Name:        "memo_graph_3d",
		Title:       "Memo Graph 3D",
		Description: "The memo similarity graph with a 3D position for every node.",
		InputSchema: mustSchema[apptype.GraphArgs]("GraphArgs (3d)"),
	}, s.handleMemoGraph3D)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "reindex_memos",
		Title:        "Reindex Memos",
		Description:  "Embed every memo that is missing an embedding or has one of the wrong size.",
		InputSchema:  mustSchema[apptype.ReindexArgs]("ReindexArgs"),
		OutputSchema: mustSchema[apptype.ReindexResult]("ReindexResult"),
	}, s.handleReindex)

	mcp.AddTool(s.server, &mcp.Tool{
		Annotations:  &mcp.ToolAnnotations{Title: "Health", ReadOnlyHint: true},
		Name:         "health",
		Title:        "Health",
		Description:  "Returns server and configuration information.",
		InputSchema:  mustSchema[apptype.HealthArgs]("HealthArgs"),
		OutputSchema: mustSchema[apptype.HealthResult]("HealthResult"),
	}, s.handleHealth)
}

// jsonResult renders v as the text content of a tool result.
func jsonResult(v any) (*mcp.CallToolResultFor[any], error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{&mcp.TextContent{Text: string(b)}},
	}, nil
}

// toolError turns an invalid-input or disabled-feature error into a tool
// result the model can read; anything else fails the call.
func toolError[T any](err error) (*mcp.CallToolResultFor[T], error) {
	if errors.Is(err, apptype.ErrInvalidInput) || errors.Is(err, apptype.ErrEmbeddingsDisabled) {
		return &mcp.CallToolResultFor[T]{
			IsError: true,
			Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
		}, nil
	}
	return nil, err
}

// handleCreateMemo handles the create_memo tool call
func (s *MCPServer) handleCreateMemo(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.CreateMemoArgs],
) (*mcp.CallToolResultFor[any], error) {
	done := metrics.TimeTool("create_memo")
	var success bool
	defer func() { done(success) }()

	m, err := s.app.Service.Create(ctx, params.Arguments.Content)
	if err != nil {
		s.logger.Warn("create_memo failed", zap.Error(err))
		return toolError[any](err)
	}
	success = true
	return jsonResult(apptype.MemoResult{Found: true, Memo: m})
}

func (s *MCPServer) handleListMemos(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.ListMemosArgs],
) (*mcp.CallToolResultFor[any], error) {
	done := metrics.TimeTool("list_memos")
	var success bool
	defer func() { done(success) }()

	memos, err := s.app.Service.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list memos failed: %w", err)
	}
	if memos == nil {
		memos = []apptype.Memo{}
	}
	success = true
	return jsonResult(apptype.MemoListResult{Memos: memos})
}

func (s *MCPServer) handleGetMemo(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.MemoIDArgs],
) (*mcp.CallToolResultFor[any], error) {
	done := metrics.TimeTool("get_memo")
	var success bool
	defer func() { done(success) }()

	m, err := s.app.Service.Get(ctx, params.Arguments.ID)
	if err != nil {
		return nil, fmt.Errorf("get memo failed: %w", err)
	}
	success = true
	return jsonResult(apptype.MemoResult{Found: m != nil, Memo: m})
}

func (s *MCPServer) handleUpdateMemo(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.UpdateMemoArgs],
) (*mcp.CallToolResultFor[any], error) {
	done := metrics.TimeTool("update_memo")
	var success bool
	defer func() { done(success) }()

	m, err := s.app.Service.Update(ctx, params.Arguments.ID, params.Arguments.Content)
	if err != nil {
		s.logger.Warn("update_memo failed", zap.String("id", params.Arguments.ID), zap.Error(err))
		return toolError[any](err)
	}
	success = true
	return jsonResult(apptype.MemoResult{Found: m != nil, Memo: m})
}

func (s *MCPServer) handleDeleteMemo(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.MemoIDArgs],
) (*mcp.CallToolResultFor[apptype.DeleteResult], error) {
	done := metrics.TimeTool("delete_memo")
	var success bool
	defer func() { done(success) }()

	ok, err := s.app.Service.Delete(ctx, params.Arguments.ID)
	if err != nil {
		return nil, fmt.Errorf("delete memo failed: %w", err)
	}
	success = true
	text := "Memo deleted"
	if !ok {
		text = fmt.Sprintf("No memo with id %s", params.Arguments.ID)
	}
	return &mcp.CallToolResultFor[apptype.DeleteResult]{
		Content:           []mcp.Content{&mcp.TextContent{Text: text}},
		StructuredContent: apptype.DeleteResult{Deleted: ok},
	}, nil
}

// handleSearchMemos handles the search_memos tool call
func (s *MCPServer) handleSearchMemos(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.SearchMemosArgs],
) (*mcp.CallToolResultFor[apptype.SearchResult], error) {
	done := metrics.TimeTool("search_memos")
	var success bool
	defer func() { done(success) }()

	res, err := s.app.Service.Search(ctx, params.Arguments.Query)
	if err != nil {
		s.logger.Warn("search_memos failed", zap.Error(err))
		return toolError[apptype.SearchResult](err)
	}
	success = true
	return &mcp.CallToolResultFor[apptype.SearchResult]{
		Content:           []mcp.Content{&mcp.TextContent{Text: res.Answer}},
		StructuredContent: res,
	}, nil
}

func (s *MCPServer) handleMemoGraph(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.GraphArgs],
) (*mcp.CallToolResultFor[apptype.GraphData], error) {
	done := metrics.TimeTool("memo_graph")
	var success bool
	defer func() { done(success) }()

	g, err := s.app.Service.Graph(ctx, params.Arguments.Threshold)
	if err != nil {
		return toolError[apptype.GraphData](err)
	}
	success = true
	return &mcp.CallToolResultFor[apptype.GraphData]{
		Content:           []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("%d nodes, %d edges", len(g.Nodes), len(g.Edges))}},
		StructuredContent: g,
	}, nil
}

func (s *MCPServer) handleMemoGraph3D(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.GraphArgs],
) (*mcp.CallToolResultFor[any], error) {
	done := metrics.TimeTool("memo_graph_3d")
	var success bool
	defer func() { done(success) }()

	g, err := s.app.Service.Graph3D(ctx, nil, params.Arguments.Threshold)
	if err != nil {
		return toolError[any](err)
	}
	success = true
	return jsonResult(g)
}

func (s *MCPServer) handleReindex(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.ReindexArgs],
) (*mcp.CallToolResultFor[apptype.ReindexResult], error) {
	done := metrics.TimeTool("reindex_memos")
	var success bool
	defer func() { done(success) }()

	n, err := s.app.Service.Reindex(ctx)
	if errors.Is(err, apptype.ErrEmbeddingsDisabled) {
		return toolError[apptype.ReindexResult](err)
	}
	if err != nil {
		return nil, fmt.Errorf("reindex failed after %d memos: %w", n, err)
	}
	success = true
	return &mcp.CallToolResultFor[apptype.ReindexResult]{
		Content:           []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("Reindexed %d memos", n)}},
		StructuredContent: apptype.ReindexResult{Updated: n},
	}, nil
}

// handleHealth returns basic server health information
func (s *MCPServer) handleHealth(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.HealthArgs],
) (*mcp.CallToolResultFor[apptype.HealthResult], error) {
	done := metrics.TimeTool("health")
	defer func() { done(true) }()
	return &mcp.CallToolResultFor[apptype.HealthResult]{
		Content:           []mcp.Content{&mcp.TextContent{Text: "ok"}},
		StructuredContent: s.app.Health(),
	}, nil
}

// Run starts the MCP server with stdio transport
func (s *MCPServer) Run(ctx context.Context) error {
	go s.app.ReportPoolStats(ctx, poolStatsInterval)
	return s.server.Run(ctx, mcp.NewStdioTransport())
}

// Handler returns the SSE transport as an http.Handler.
func (s *MCPServer) Handler() http.Handler {
	return mcp.NewSSEHandler(func(r *http.Request) *mcp.Server { return s.server })
}

// RunSSE starts the MCP server over SSE at the given address and endpoint
func (s *MCPServer) RunSSE(ctx context.Context, addr string, endpoint string) error {
	go s.app.ReportPoolStats(ctx, poolStatsInterval)
	mux := http.NewServeMux()
	mux.Handle(endpoint, s.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("SSE MCP server listening", zap.String("addr", addr), zap.String("endpoint", endpoint))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
