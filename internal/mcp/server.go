// Package mcp exposes profile resolution and notes editing as Model Context
// Protocol tools so assistant clients can call the pipeline over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"client-profile-service/internal/api"
	"client-profile-service/internal/logging"
	"client-profile-service/internal/profile"
	"client-profile-service/internal/store"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// ServerConfig holds configuration for the MCP server.
type ServerConfig struct {
	Service api.Resolver
	Version string
}

// NewServer creates an MCP server with the profile tools registered.
func NewServer(cfg ServerConfig) *server.MCPServer {
	ver := cfg.Version
	if ver == "" {
		ver = "dev"
	}

	s := server.NewMCPServer(
		"client-profile-service",
		ver,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	registerResolveTool(s, cfg.Service)
	registerNotesTool(s, cfg.Service)
	return s
}

// ServeStdio runs s on the given streams until ctx is done or stdin closes.
func ServeStdio(ctx context.Context, s *server.MCPServer, in io.Reader, out io.Writer) error {
	return server.NewStdioServer(s).Listen(ctx, in, out)
}

func registerResolveTool(s *server.MCPServer, svc api.Resolver) {
	tool := mcp.NewTool("resolve_profile",
		mcp.WithDescription("Merge an email thread into the client profile for the sender and return the resulting profile (name, preferences, timeline, concerns, notes). Creates the profile on first contact."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithString("email",
			mcp.Required(),
			mcp.Description("Sender email address"),
		),
		mcp.WithString("thread",
			mcp.Required(),
			mcp.Description("Latest message or the full rendered thread"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		email, err := req.RequireString("email")
		if err != nil {
			return mcp.NewToolResultError("email is required"), nil
		}
		thread, err := req.RequireString("thread")
		if err != nil {
			return mcp.NewToolResultError("thread is required"), nil
		}

		ctx = logging.ContextWithTrace(ctx, uuid.New().String())
		res, err := svc.Resolve(ctx, email, thread)
		if err != nil {
			logging.FromContext(ctx).WithError(err).Error("resolve_profile failed")
			return mcp.NewToolResultError(fmt.Sprintf("resolve error: %v", err)), nil
		}
		if res.Outcome == profile.OutcomeNotClient {
			return mcp.NewToolResultText("Not a client"), nil
		}

		data, _ := json.MarshalIndent(api.NewProfileView(res.Profile), "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerNotesTool(s *server.MCPServer, svc api.Resolver) {
	tool := mcp.NewTool("update_notes",
		mcp.WithDescription("Overwrite the free-form notes on an existing client profile."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(true),
		mcp.WithString("email",
			mcp.Required(),
			mcp.Description("Client email address"),
		),
		mcp.WithString("notes",
			mcp.Description("New notes text; empty clears the notes"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		email, err := req.RequireString("email")
		if err != nil {
			return mcp.NewToolResultError("email is required"), nil
		}
		notes := req.GetString("notes", "")

		ctx = logging.ContextWithTrace(ctx, uuid.New().String())
		if err := svc.UpdateNotes(ctx, email, notes); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return mcp.NewToolResultError("profile not found"), nil
			}
			return mcp.NewToolResultError(fmt.Sprintf("update error: %v", err)), nil
		}
		return mcp.NewToolResultText("success"), nil
	})
}
