package service

import (
	"context"
	"encoding/json"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/louisbranch/amaya/internal/services/planner/mcp/tools"
	"github.com/louisbranch/amaya/internal/services/planner/orchestrator"
	"github.com/louisbranch/amaya/internal/services/planner/storage/sqlite"
)

// 2026-01-07 09:00 in Shanghai.
var testNow = time.Date(2026, 1, 7, 1, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "planner.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	orch, err := orchestrator.New(orchestrator.Config{
		Store:    store,
		Clock:    func() time.Time { return testNow },
		Location: loc,
		Logf:     t.Logf,
	})
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	server, err := New(Config{Planner: orch, Search: store})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return server
}

// connect serves s over in-memory transports and returns a client session.
func connect(t *testing.T, s *Server) *mcp.ClientSession {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.serveWithTransport(ctx, serverTransport)
	}()

	client := mcp.NewClient(&mcp.Implementation{Name: "client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		cancel()
		t.Fatalf("connect client: %v", err)
	}
	t.Cleanup(func() {
		_ = session.Close()
		cancel()
		select {
		case <-serveErr:
		case <-time.After(2 * time.Second):
			t.Error("server did not stop after cancel")
		}
	})
	return session
}

func callTool[O any](t *testing.T, session *mcp.ClientSession, name string, args map[string]any) O {
	t.Helper()
	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("call %s: %v", name, err)
	}
	if res.IsError {
		t.Fatalf("call %s returned tool error: %s", name, toolText(res))
	}
	var out O
	data, err := json.Marshal(res.StructuredContent)
	if err != nil {
		t.Fatalf("marshal %s output: %v", name, err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("decode %s output: %v", name, err)
	}
	return out
}

func callToolError(t *testing.T, session *mcp.ClientSession, name string, args map[string]any) string {
	t.Helper()
	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("call %s: %v", name, err)
	}
	if !res.IsError {
		t.Fatalf("call %s: expected tool error", name)
	}
	return toolText(res)
}

func toolText(res *mcp.CallToolResult) string {
	var parts []string
	for _, content := range res.Content {
		if text, ok := content.(*mcp.TextContent); ok {
			parts = append(parts, text.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func readResource(t *testing.T, session *mcp.ClientSession, uri string) string {
	t.Helper()
	res, err := session.ReadResource(context.Background(), &mcp.ReadResourceParams{URI: uri})
	if err != nil {
		t.Fatalf("read %s: %v", uri, err)
	}
	if len(res.Contents) != 1 {
		t.Fatalf("read %s: expected one content block, got %d", uri, len(res.Contents))
	}
	return res.Contents[0].Text
}

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error without planner")
	}
}

func TestServerListsPlannerTools(t *testing.T) {
	session := connect(t, newTestServer(t))

	res, err := session.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatalf("list tools: %v", err)
	}
	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	want := []string{
		"group_create", "list_create", "reminder_acknowledge", "reminder_list",
		"task_add", "task_clear_reminder", "task_complete", "task_delete", "task_list",
		"task_move", "task_patch", "task_set_reminder", "task_set_review_hint", "task_set_schedule",
	}
	slices.Sort(names)
	if !slices.Equal(names, want) {
		t.Fatalf("tools = %v, want %v", names, want)
	}

	resources, err := session.ListResources(context.Background(), nil)
	if err != nil {
		t.Fatalf("list resources: %v", err)
	}
	var uris []string
	for _, resource := range resources.Resources {
		uris = append(uris, resource.URI)
	}
	slices.Sort(uris)
	wantURIs := []string{"plan://reminders/failed", "plan://reminders/pending", "plan://view"}
	if !slices.Equal(uris, wantURIs) {
		t.Fatalf("resources = %v, want %v", uris, wantURIs)
	}
}

func TestServerReminderFlow(t *testing.T) {
	session := connect(t, newTestServer(t))

	added := callTool[tools.MutationResult](t, session, "task_add", map[string]any{
		"list":  "next-action",
		"title": "提交材料",
	})
	if added.Task == nil || added.Task.Priority != "low" || added.Group == nil || added.Group.Name != "general" {
		t.Fatalf("unexpected task_add result: %+v", added)
	}
	taskID := added.Task.ID

	callTool[tools.MutationResult](t, session, "task_set_schedule", map[string]any{
		"task_id": taskID,
		"intent":  "date_only",
		"date":    "2026-01-07",
	})
	text := callToolError(t, session, "task_set_reminder", map[string]any{
		"task_id": taskID,
		"at":      "2026-01-07 16:30",
	})
	if !strings.HasPrefix(text, "INVALID_REMINDER: ") {
		t.Fatalf("tool error = %q, want INVALID_REMINDER", text)
	}

	callTool[tools.MutationResult](t, session, "task_set_schedule", map[string]any{
		"task_id": taskID,
		"intent":  "exact_time",
		"date":    "2026-01-07",
		"time":    "17:00",
	})
	set := callTool[tools.MutationResult](t, session, "task_set_reminder", map[string]any{
		"task_id": taskID,
		"at":      "2026-01-07 16:30",
	})
	if len(set.Scheduled) != 1 || set.Scheduled[0].FireAt != "2026-01-07T16:30:00+08:00" || set.Scheduled[0].Status != "scheduled" {
		t.Fatalf("unexpected scheduled records: %+v", set.Scheduled)
	}

	var pending tools.PendingPayload
	if err := json.Unmarshal([]byte(readResource(t, session, "plan://reminders/pending")), &pending); err != nil {
		t.Fatalf("decode pending: %v", err)
	}
	if len(pending.Scheduled) != 1 || pending.Scheduled[0].TaskID != taskID {
		t.Fatalf("unexpected pending payload: %+v", pending)
	}

	view := readResource(t, session, "plan://view")
	if !strings.Contains(view, "提交材料") {
		t.Fatalf("view missing task title:\n%s", view)
	}

	listed := callTool[tools.TaskListResult](t, session, "task_list", map[string]any{
		"filter": `status = "todo" AND list = "next-action"`,
	})
	if len(listed.Tasks) != 1 || listed.Tasks[0].ReminderAt != "2026-01-07T16:30:00+08:00" {
		t.Fatalf("unexpected task_list result: %+v", listed)
	}

	completed := callTool[tools.MutationResult](t, session, "task_complete", map[string]any{"task_id": taskID})
	if len(completed.Canceled) != 1 || completed.Canceled[0].Status != "canceled" {
		t.Fatalf("unexpected canceled records: %+v", completed.Canceled)
	}
	reminders := callTool[tools.ReminderListResult](t, session, "reminder_list", map[string]any{
		"filter": `status = "scheduled"`,
	})
	if len(reminders.Reminders) != 0 {
		t.Fatalf("expected no scheduled reminders after completion, got %+v", reminders.Reminders)
	}
}

func TestServerReturnsCodedToolErrors(t *testing.T) {
	session := connect(t, newTestServer(t))

	tests := []struct {
		name string
		tool string
		args map[string]any
		code string
	}{
		{name: "unknown list", tool: "list_create", args: map[string]any{"list": "errands"}, code: "INVALID_ARGUMENT"},
		{name: "missing task", tool: "task_complete", args: map[string]any{"task_id": "nope"}, code: "NOT_FOUND"},
		{name: "bad filter", tool: "reminder_list", args: map[string]any{"filter": `colour = "red"`}, code: "INVALID_ARGUMENT"},
		{name: "self parent", tool: "task_move", args: map[string]any{"task_id": "t1", "parent_id": "t1"}, code: "CYCLE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := callToolError(t, session, tt.tool, tt.args)
			if !strings.HasPrefix(text, tt.code+": ") {
				t.Fatalf("tool error = %q, want code %s", text, tt.code)
			}
		})
	}
}

func TestServeStopsOnContext(t *testing.T) {
	server := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.serveWithTransport(ctx, serverTransport)
	}()

	client := mcp.NewClient(&mcp.Implementation{Name: "client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(context.Background(), clientTransport, nil)
	if err != nil {
		t.Fatalf("connect client: %v", err)
	}
	defer session.Close()

	cancel()
	select {
	case err := <-serveErr:
		if err != nil {
			t.Fatalf("serve returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop after cancel")
	}
}

func TestServeRejectsUnconfiguredServer(t *testing.T) {
	var server *Server
	if err := server.serveWithTransport(context.Background(), &mcp.StdioTransport{}); err == nil {
		t.Fatal("expected error for nil server")
	}
}
