package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ZanzyTHEbar/mcp-memo-libsql-go/internal/apptype"
)

type StepResult struct {
	Name      string `json:"name"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
	ElapsedMs int64  `json:"elapsed_ms"`
}

type Report struct {
	SSEURL     string       `json:"sse_url"`
	StartedAt  time.Time    `json:"started_at"`
	DurationMs int64        `json:"duration_ms"`
	Steps      []StepResult `json:"steps"`
	Passed     bool         `json:"passed"`
}

var seedMemos = []string{
	"Vector databases store embeddings for nearest-neighbour search.",
	"Cosine similarity compares the direction of two embedding vectors.",
	"Buy oat milk and coffee beans on the way home.",
}

func main() {
	sseURL := flag.String("sse-url", "http://localhost:8080/sse", "SSE endpoint URL")
	timeout := flag.Duration("timeout", 60*time.Second, "Overall timeout")
	skipGraph := flag.Bool("skip-graph", false, "Skip graph and reindex steps (server runs without embeddings)")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client := mcp.NewClient(&mcp.Implementation{Name: "integration-tester", Version: "dev"}, nil)
	transport := mcp.NewSSEClientTransport(*sseURL, nil)

	start := time.Now()
	report := Report{SSEURL: *sseURL, StartedAt: start}
	steps := make([]StepResult, 0, 16)

	// Connect
	tConn := time.Now()
	connRes := StepResult{Name: "connect"}
	session, err := client.Connect(ctx, transport)
	if err != nil {
		connRes.Error = err.Error()
		connRes.ElapsedMs = elapsedMsSince(tConn)
		report.Steps = append(steps, connRes)
		report.DurationMs = elapsedMsSince(start)
		writeReport(report)
		os.Exit(1)
	}
	defer session.Close()
	connRes.Success = true
	connRes.ElapsedMs = elapsedMsSince(tConn)
	steps = append(steps, connRes)

	steps = append(steps, runListTools(ctx, session))
	steps = append(steps, runStep(ctx, session, "health", apptype.HealthArgs{}, nil))

	ids := make([]string, 0, len(seedMemos))
	for i, content := range seedMemos {
		var created apptype.MemoResult
		step := runStep(ctx, session, "create_memo", apptype.CreateMemoArgs{Content: content}, &created)
		step.Name = fmt.Sprintf("create_memo[%d]", i)
		if step.Success && created.Memo != nil {
			ids = append(ids, created.Memo.ID)
		}
		steps = append(steps, step)
	}

	var list apptype.MemoListResult
	steps = append(steps, runStep(ctx, session, "list_memos", apptype.ListMemosArgs{}, &list))
	steps = append(steps, expect("list_memos_count", len(list.Memos) >= len(ids),
		fmt.Sprintf("listed %d memos, created %d", len(list.Memos), len(ids))))

	if len(ids) > 0 {
		var got apptype.MemoResult
		steps = append(steps, runStep(ctx, session, "get_memo", apptype.MemoIDArgs{ID: ids[0]}, &got))
		steps = append(steps, expect("get_memo_found", got.Found, "memo not found"))
		steps = append(steps, runStep(ctx, session, "update_memo",
			apptype.UpdateMemoArgs{ID: ids[0], Content: seedMemos[0] + " Indexes trade recall for speed."}, nil))
	}

	steps = append(steps, runStep(ctx, session, "search_memos", apptype.SearchMemosArgs{Query: "How are embeddings compared?"}, nil))

	if !*skipGraph {
		steps = append(steps, runStep(ctx, session, "memo_graph", apptype.GraphArgs{}, nil))
		var g3 apptype.Graph3DData
		steps = append(steps, runStep(ctx, session, "memo_graph_3d", apptype.GraphArgs{}, &g3))
		steps = append(steps, expect("memo_graph_3d_nodes", len(g3.Nodes) >= len(ids),
			fmt.Sprintf("graph has %d nodes, created %d", len(g3.Nodes), len(ids))))
		steps = append(steps, runStep(ctx, session, "reindex_memos", apptype.ReindexArgs{}, nil))
	}

	for i, id := range ids {
		step := runStep(ctx, session, "delete_memo", apptype.MemoIDArgs{ID: id}, nil)
		step.Name = fmt.Sprintf("delete_memo[%d]", i)
		steps = append(steps, step)
	}

	// finalize report
	report.Steps = steps
	report.DurationMs = elapsedMsSince(start)
	report.Passed = true
	for _, s := range steps {
		if !s.Success {
			report.Passed = false
			break
		}
	}
	writeReport(report)

	if !report.Passed {
		os.Exit(1)
	}
}

func writeReport(r Report) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(r)
}

func runListTools(ctx context.Context, session *mcp.ClientSession) StepResult {
	t0 := time.Now()
	res := StepResult{Name: "list_tools"}
	if _, err := session.ListTools(ctx, &mcp.ListToolsParams{}); err != nil {
		res.Error = err.Error()
	} else {
		res.Success = true
	}
	res.ElapsedMs = elapsedMsSince(t0)
	return res
}

// runStep calls tool with args. When out is non-nil the first text content
// is decoded into it.
func runStep(ctx context.Context, session *mcp.ClientSession, tool string, args any, out any) StepResult {
	t0 := time.Now()
	res := StepResult{Name: tool}
	if err := callTool(ctx, session, tool, args, out); err != nil {
		res.Error = err.Error()
	} else {
		res.Success = true
	}
	res.ElapsedMs = elapsedMsSince(t0)
	return res
}

func callTool(ctx context.Context, session *mcp.ClientSession, tool string, args any, out any) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return err
	}
	result, err := session.CallTool(ctx, &mcp.CallToolParams{Name: tool, Arguments: json.RawMessage(raw)})
	if err != nil {
		return err
	}
	text := ""
	if len(result.Content) > 0 {
		if tc, ok := result.Content[0].(*mcp.TextContent); ok {
			text = tc.Text
		}
	}
	if result.IsError {
		return errors.New(text)
	}
	if out != nil {
		if err := json.Unmarshal([]byte(text), out); err != nil {
			return fmt.Errorf("decode %s result: %w", tool, err)
		}
	}
	return nil
}

func expect(name string, ok bool, msg string) StepResult {
	res := StepResult{Name: name, Success: ok, ElapsedMs: 1}
	if !ok {
		res.Error = msg
	}
	return res
}

// elapsedMsSince returns max(1ms, elapsed) to avoid zero durations on fast steps
func elapsedMsSince(t0 time.Time) int64 {
	d := time.Since(t0) / time.Millisecond
	if d <= 0 {
		return 1
	}
	return int64(d)
}
