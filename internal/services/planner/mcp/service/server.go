// Package service hosts the planner MCP server over stdio or streamable
// HTTP.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/louisbranch/amaya/internal/services/planner/mcp/tools"
)

const (
	serverName    = "amaya-planner"
	serverVersion = "0.1.0"
)

const (
	mutationToolsModuleName = "mutation-tools"
	queryToolsModuleName    = "query-tools"
	planResourcesModuleName = "plan-resources"
)

// registrationModule groups tool or resource registrations under a name so
// startup failures point at the module that broke.
type registrationModule struct {
	name     string
	register func(*mcp.Server) error
}

// Config wires a Server.
type Config struct {
	Planner tools.Planner
	Search  tools.Searcher
}

// Server exposes planner tools and resources to MCP clients.
type Server struct {
	mcpServer *mcp.Server
}

// New builds the MCP server and registers every planner tool and resource.
func New(cfg Config) (*Server, error) {
	if cfg.Planner == nil {
		return nil, fmt.Errorf("planner is required")
	}
	if cfg.Search == nil {
		return nil, fmt.Errorf("search is required")
	}
	mcpServer := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, &mcp.ServerOptions{
		SubscribeHandler:   resourceSubscribeHandler,
		UnsubscribeHandler: resourceUnsubscribeHandler,
	})

	notify := func(ctx context.Context, uri string) {
		if strings.TrimSpace(uri) == "" {
			return
		}
		if err := mcpServer.ResourceUpdated(ctx, &mcp.ResourceUpdatedNotificationParams{URI: uri}); err != nil {
			log.Printf("mcp resource updated notify failed: uri=%s err=%v", uri, err)
		}
	}

	for _, module := range registrationModules(cfg, notify) {
		if err := module.register(mcpServer); err != nil {
			return nil, fmt.Errorf("register MCP module %q: %w", module.name, err)
		}
	}
	return &Server{mcpServer: mcpServer}, nil
}

func registrationModules(cfg Config, notify tools.ResourceUpdateNotifier) []registrationModule {
	planner := cfg.Planner
	return []registrationModule{
		{
			name: mutationToolsModuleName,
			register: func(server *mcp.Server) error {
				mcp.AddTool(server, tools.ListCreateTool(), tools.ListCreateHandler(planner, notify))
				mcp.AddTool(server, tools.GroupCreateTool(), tools.GroupCreateHandler(planner, notify))
				mcp.AddTool(server, tools.TaskAddTool(), tools.TaskAddHandler(planner, notify))
				mcp.AddTool(server, tools.TaskPatchTool(), tools.TaskPatchHandler(planner, notify))
				mcp.AddTool(server, tools.TaskSetScheduleTool(), tools.TaskSetScheduleHandler(planner, notify))
				mcp.AddTool(server, tools.TaskSetReminderTool(), tools.TaskSetReminderHandler(planner, notify))
				mcp.AddTool(server, tools.TaskClearReminderTool(), tools.TaskClearReminderHandler(planner, notify))
				mcp.AddTool(server, tools.TaskSetReviewHintTool(), tools.TaskSetReviewHintHandler(planner, notify))
				mcp.AddTool(server, tools.TaskMoveTool(), tools.TaskMoveHandler(planner, notify))
				mcp.AddTool(server, tools.TaskCompleteTool(), tools.TaskCompleteHandler(planner, notify))
				mcp.AddTool(server, tools.TaskDeleteTool(), tools.TaskDeleteHandler(planner, notify))
				mcp.AddTool(server, tools.ReminderAcknowledgeTool(), tools.ReminderAcknowledgeHandler(planner, notify))
				return nil
			},
		},
		{
			name: queryToolsModuleName,
			register: func(server *mcp.Server) error {
				mcp.AddTool(server, tools.TaskListTool(), tools.TaskListHandler(planner, cfg.Search))
				mcp.AddTool(server, tools.ReminderListTool(), tools.ReminderListHandler(planner, cfg.Search))
				return nil
			},
		},
		{
			name: planResourcesModuleName,
			register: func(server *mcp.Server) error {
				server.AddResource(tools.ViewResource(), tools.ViewResourceHandler(planner))
				server.AddResource(tools.PendingRemindersResource(), tools.PendingRemindersResourceHandler(planner))
				server.AddResource(tools.FailedRemindersResource(), tools.FailedRemindersResourceHandler(planner))
				return nil
			},
		},
	}
}

// resourceSubscribeHandler accepts resource subscriptions with a valid URI.
func resourceSubscribeHandler(_ context.Context, req *mcp.SubscribeRequest) error {
	if req == nil || req.Params == nil || strings.TrimSpace(req.Params.URI) == "" {
		return fmt.Errorf("resource uri is required")
	}
	return nil
}

// resourceUnsubscribeHandler accepts resource unsubscriptions with a valid URI.
func resourceUnsubscribeHandler(_ context.Context, req *mcp.UnsubscribeRequest) error {
	if req == nil || req.Params == nil || strings.TrimSpace(req.Params.URI) == "" {
		return fmt.Errorf("resource uri is required")
	}
	return nil
}

// RunStdio serves MCP over stdin/stdout until ctx is canceled.
func (s *Server) RunStdio(ctx context.Context) error {
	return s.serveWithTransport(ctx, &mcp.StdioTransport{})
}

// serveWithTransport blocks until the transport closes or ctx ends. A
// canceled context is a clean stop.
func (s *Server) serveWithTransport(ctx context.Context, transport mcp.Transport) error {
	if s == nil || s.mcpServer == nil {
		return fmt.Errorf("MCP server is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	err := s.mcpServer.Run(ctx, transport)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("serve MCP: %w", err)
	}
	return nil
}
