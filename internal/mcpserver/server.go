// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Inkwell notes to LLM clients via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/inkwell/internal/apperr"
	"github.com/starford/inkwell/internal/models"
	"github.com/starford/inkwell/internal/notes"
)

// Server wraps the MCP server with Inkwell tools.
type Server struct {
	mcp   *server.MCPServer
	notes *notes.Controller
}

// noteSummary is one line of list_notes.
type noteSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New creates a new MCP server with all tools registered.
func New(c *notes.Controller, version string) *Server {
	s := &Server{notes: c}

	s.mcp = server.NewMCPServer(
		"Inkwell",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List all notes with their id, title and last update time."),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read one note: title, body and timestamps."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id as returned by list_notes")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a note. Title defaults to \"Untitled\", content to empty."),
		mcp.WithString("title", mcp.Description("Note title")),
		mcp.WithString("content", mcp.Description("Note body")),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("update_note",
		mcp.WithDescription("Replace the title and/or body of a note. Omitted fields are kept."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
		mcp.WithString("title", mcp.Description("New title")),
		mcp.WithString("content", mcp.Description("New body")),
	), s.updateNote)

	s.mcp.AddTool(mcp.NewTool("delete_note",
		mcp.WithDescription("Move a note to the trash."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
	), s.deleteNote)

	s.mcp.AddTool(mcp.NewTool("get_storage_root",
		mcp.WithDescription("Return the folder notes are stored in."),
	), s.getStorageRoot)

	s.mcp.AddResource(
		mcp.NewResource(NoteFormatURI, "Note Format",
			mcp.WithResourceDescription("How Inkwell lays out notes on disk."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func errorResult(err error, id string) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id))
	case errors.Is(err, apperr.ErrInvalidID):
		return mcp.NewToolResultError(fmt.Sprintf("invalid note id: %q", id))
	}
	return mcp.NewToolResultError(err.Error())
}

// optionalString returns nil when key is absent.
func optionalString(req mcp.CallToolRequest, key string) (*string, error) {
	v, ok := req.GetArguments()[key]
	if !ok || v == nil {
		return nil, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("argument %q must be a string", key)
	}
	return &s, nil
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list := s.notes.Notes()
	out := make([]noteSummary, 0, len(list))
	for _, n := range list {
		out = append(out, noteSummary{ID: n.ID, Title: n.DisplayName(), UpdatedAt: n.UpdatedAt})
	}
	return jsonResult(out)
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, ok := s.notes.Note(id)
	if !ok {
		return errorResult(apperr.ErrNotFound, id), nil
	}
	return jsonResult(n)
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := optionalString(req, "title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := optionalString(req, "content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	n, err := s.notes.Add(ctx, notes.Keep)
	if err != nil {
		return errorResult(err, ""), nil
	}
	if title != nil || content != nil {
		id := n.ID
		if n, err = s.notes.Update(ctx, id, models.NotePatch{Title: title, Content: content}); err != nil {
			return errorResult(err, id), nil
		}
	}
	return jsonResult(n)
}

func (s *Server) updateNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	patch := models.NotePatch{}
	if patch.Title, err = optionalString(req, "title"); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if patch.Content, err = optionalString(req, "content"); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if patch.Empty() {
		return mcp.NewToolResultError("title or content is required"), nil
	}
	n, err := s.notes.Update(ctx, id, patch)
	if err != nil {
		return errorResult(err, id), nil
	}
	return jsonResult(n)
}

func (s *Server) deleteNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.notes.Delete(ctx, id); err != nil {
		return errorResult(err, id), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("moved to trash: %s", id)), nil
}

func (s *Server) getStorageRoot(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(s.notes.StorageRoot()), nil
}

func (s *Server) readNoteFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      NoteFormatURI,
			MIMEType: "text/markdown",
			Text:     NoteFormatContract,
		},
	}, nil
}
