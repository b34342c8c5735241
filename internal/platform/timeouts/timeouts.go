// Package timeouts defines shared timeout constants used across the planner
// commands so durations stay discoverable in one place.
package timeouts

import "time"

// Delivery caps a single call into the notification collaborator.
const Delivery = 15 * time.Second

// HealthDial caps the wait time when dialing the planner health endpoint.
const HealthDial = 2 * time.Second

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long servers wait for in-flight work during graceful
// shutdown.
const Shutdown = 5 * time.Second

// ToolCall caps one MCP tool or resource handler.
const ToolCall = 30 * time.Second
