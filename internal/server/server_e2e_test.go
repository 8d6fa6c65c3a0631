package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ZanzyTHEbar/mcp-memo-libsql-go/internal/app"
	"github.com/ZanzyTHEbar/mcp-memo-libsql-go/internal/apptype"
	"github.com/ZanzyTHEbar/mcp-memo-libsql-go/internal/config"
)

type fixedAnalyzer struct{}

func (fixedAnalyzer) Analyze(_ context.Context, content string) (apptype.AnalysisResult, error) {
	return apptype.AnalysisResult{Summary: "summary", Tags: []string{"e2e"}}, nil
}

func (fixedAnalyzer) Search(_ context.Context, _ string, memos []apptype.Memo) (apptype.SearchResult, error) {
	ids := make([]string, 0, len(memos))
	for _, m := range memos {
		ids = append(ids, m.ID)
	}
	return apptype.SearchResult{Answer: "found", RelatedMemoIDs: ids}, nil
}

// pickFreePort tries to get a free TCP port on 127.0.0.1
func pickFreePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

func newTestApp(t *testing.T, provider string) *app.App {
	t.Helper()
	cfg, err := config.Load(config.New())
	require.NoError(t, err)
	cfg.StoreDriver = config.DriverLibSQL
	cfg.LibSQLURL = fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	cfg.EmbeddingsProvider = provider
	cfg.EmbeddingDims = 32
	a, err := app.New(context.Background(), cfg, zaptest.NewLogger(t), app.WithAnalyzer(fixedAnalyzer{}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func connectSSE(t *testing.T, ctx context.Context, srv *MCPServer) *mcp.ClientSession {
	t.Helper()
	port, err := pickFreePort()
	require.NoError(t, err)
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	endpoint := "/sse"

	// start SSE server
	go func() { _ = srv.RunSSE(ctx, addr, endpoint) }()

	// wait briefly for server to bind
	time.Sleep(150 * time.Millisecond)

	client := mcp.NewClient(&mcp.Implementation{Name: "e2e-client", Version: "test"}, nil)
	transport := mcp.NewSSEClientTransport("http://"+addr+endpoint, nil)

	// retry connect a few times to avoid flakes
	var session *mcp.ClientSession
	for i := 0; i < 5; i++ {
		session, err = client.Connect(ctx, transport)
		if err == nil {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func textOf(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	return tc.Text
}

func TestSSEServer_ListTools(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	session := connectSSE(t, ctx, NewMCPServer(newTestApp(t, "hash")))

	tools, err := session.ListTools(ctx, &mcp.ListToolsParams{})
	require.NoError(t, err)
	names := make([]string, 0, len(tools.Tools))
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{
		"create_memo", "list_memos", "get_memo", "update_memo", "delete_memo",
		"search_memos", "memo_graph", "memo_graph_3d", "reindex_memos", "health",
	}, names)
}

func TestSSEServer_MemoLifecycle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	session := connectSSE(t, ctx, NewMCPServer(newTestApp(t, "hash")))

	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "create_memo",
		Arguments: map[string]any{"content": "vector search over memos"},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)
	var created apptype.MemoResult
	require.NoError(t, json.Unmarshal([]byte(textOf(t, res)), &created))
	require.True(t, created.Found)
	assert.Equal(t, "summary", created.Memo.Summary)

	res, err = session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "get_memo",
		Arguments: map[string]any{"id": created.Memo.ID},
	})
	require.NoError(t, err)
	var fetched apptype.MemoResult
	require.NoError(t, json.Unmarshal([]byte(textOf(t, res)), &fetched))
	assert.True(t, fetched.Found)
	assert.Equal(t, created.Memo.ID, fetched.Memo.ID)

	res, err = session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "search_memos",
		Arguments: map[string]any{"query": "memos"},
	})
	require.NoError(t, err)
	assert.Equal(t, "found", textOf(t, res))

	res, err = session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "memo_graph_3d",
		Arguments: map[string]any{"threshold": 0.5},
	})
	require.NoError(t, err)
	var g3 apptype.Graph3DData
	require.NoError(t, json.Unmarshal([]byte(textOf(t, res)), &g3))
	require.Len(t, g3.Nodes, 1)
	assert.Equal(t, created.Memo.ID, g3.Nodes[0].ID)

	res, err = session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "delete_memo",
		Arguments: map[string]any{"id": created.Memo.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, "Memo deleted", textOf(t, res))

	res, err = session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "get_memo",
		Arguments: map[string]any{"id": created.Memo.ID},
	})
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(textOf(t, res)), &fetched))
	assert.False(t, fetched.Found)
}

func TestSSEServer_ToolErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	session := connectSSE(t, ctx, NewMCPServer(newTestApp(t, "")))

	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "memo_graph",
		Arguments: map[string]any{},
	})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, textOf(t, res), "embeddings")

	res, err = session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "create_memo",
		Arguments: map[string]any{"content": "   "},
	})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}
