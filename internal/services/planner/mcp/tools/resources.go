package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/louisbranch/amaya/internal/platform/timeouts"
	"github.com/louisbranch/amaya/internal/services/planner/domain"
)

// ViewResource defines the rendered plan resource.
func ViewResource() *mcp.Resource {
	return &mcp.Resource{
		Name:        "plan_view",
		Title:       "Plan",
		Description: "Markdown rendering of every list, group and task, refreshed after each change",
		MIMEType:    "text/markdown",
		URI:         "plan://view",
	}
}

// PendingRemindersResource defines the pending reminder summary resource.
func PendingRemindersResource() *mcp.Resource {
	return &mcp.Resource{
		Name:        "pending_reminders",
		Title:       "Pending reminders",
		Description: "Scheduled reminders and sent reminders that are not yet acknowledged",
		MIMEType:    "application/json",
		URI:         "plan://reminders/pending",
	}
}

// FailedRemindersResource defines the failed reminder resource.
func FailedRemindersResource() *mcp.Resource {
	return &mcp.Resource{
		Name:        "failed_reminders",
		Title:       "Failed reminders",
		Description: "Reminders that exhausted their delivery attempts",
		MIMEType:    "application/json",
		URI:         "plan://reminders/failed",
	}
}

// ViewResourceHandler returns the last rendered plan view.
func ViewResourceHandler(planner Planner) mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if planner == nil {
			return nil, fmt.Errorf("planner is not configured")
		}
		runCtx, cancel := context.WithTimeout(ctx, timeouts.ToolCall)
		defer cancel()

		view, err := planner.View(runCtx)
		if err != nil {
			return nil, fmt.Errorf("read plan view: %w", err)
		}
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{
				{
					URI:      requestURI(req, ViewResource().URI),
					MIMEType: "text/markdown",
					Text:     view.Markdown,
				},
			},
		}, nil
	}
}

// PendingRemindersResourceHandler returns scheduled and unacknowledged sent
// reminders.
func PendingRemindersResourceHandler(planner Planner) mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if planner == nil {
			return nil, fmt.Errorf("planner is not configured")
		}
		runCtx, cancel := context.WithTimeout(ctx, timeouts.ToolCall)
		defer cancel()

		records, err := planner.Reminders(runCtx, domain.ReminderScheduled, domain.ReminderSent)
		if err != nil {
			return nil, fmt.Errorf("list pending reminders: %w", err)
		}
		loc := planner.Location()
		payload := PendingPayload{
			Timezone:  loc.String(),
			Scheduled: []ReminderResult{},
			Sent:      []ReminderResult{},
		}
		for _, record := range records {
			switch record.Status {
			case domain.ReminderScheduled:
				payload.Scheduled = append(payload.Scheduled, reminderResultFrom(record, loc))
			case domain.ReminderSent:
				payload.Sent = append(payload.Sent, reminderResultFrom(record, loc))
			}
		}
		return jsonResource(requestURI(req, PendingRemindersResource().URI), payload)
	}
}

// FailedRemindersResourceHandler returns reminders that gave up.
func FailedRemindersResourceHandler(planner Planner) mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if planner == nil {
			return nil, fmt.Errorf("planner is not configured")
		}
		runCtx, cancel := context.WithTimeout(ctx, timeouts.ToolCall)
		defer cancel()

		records, err := planner.Reminders(runCtx, domain.ReminderFailed)
		if err != nil {
			return nil, fmt.Errorf("list failed reminders: %w", err)
		}
		loc := planner.Location()
		payload := FailedPayload{Timezone: loc.String(), Failed: []ReminderResult{}}
		for _, record := range records {
			payload.Failed = append(payload.Failed, reminderResultFrom(record, loc))
		}
		return jsonResource(requestURI(req, FailedRemindersResource().URI), payload)
	}
}

func requestURI(req *mcp.ReadResourceRequest, fallback string) string {
	if req != nil && req.Params != nil && req.Params.URI != "" {
		return req.Params.URI
	}
	return fallback
}

func jsonResource(uri string, payload any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", uri, err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      uri,
				MIMEType: "application/json",
				Text:     string(data),
			},
		},
	}, nil
}
