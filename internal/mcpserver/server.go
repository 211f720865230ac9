// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes a running YamUI instance to agents via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/yamui/internal/binding"
	"github.com/starford/yamui/internal/control"
)

// FormatURI is the resource URI of the document format contract.
const FormatURI = "yamui://document-format"

// Server wraps the MCP server with runtime tools.
type Server struct {
	mcp *server.MCPServer
	svc *control.Service
}

// New creates a new MCP server with all tools registered.
func New(svc *control.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"YamUI",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("get_state",
		mcp.WithDescription("Read the state store. Returns one value when key is given, every key otherwise."),
		mcp.WithString("key", mcp.Description("Optional state key")),
	), s.getState)

	s.mcp.AddTool(mcp.NewTool("set_state",
		mcp.WithDescription("Set a state key. Bound widgets refresh immediately."),
		mcp.WithString("key", mcp.Required(), mcp.Description("State key")),
		mcp.WithString("value", mcp.Required(), mcp.Description("New value (state values are strings)")),
	), s.setState)

	s.mcp.AddTool(mcp.NewTool("navigate",
		mcp.WithDescription("Change the screen stack or open and close modals."),
		mcp.WithString("op", mcp.Required(),
			mcp.Enum("goto", "push", "replace", "pop", "modal", "close_modal"),
			mcp.Description("Navigation operation")),
		mcp.WithString("target", mcp.Description("Screen name, or component name for modal")),
	), s.navigate)

	s.mcp.AddTool(mcp.NewTool("dispatch_event",
		mcp.WithDescription("Simulate a widget event such as a click, running the widget's actions."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Widget id")),
		mcp.WithString("event", mcp.Required(), mcp.Description("Event name, e.g. click or on_change")),
		mcp.WithString("value", mcp.Description("Optional value carried by change events")),
	), s.dispatchEvent)

	s.mcp.AddTool(mcp.NewTool("render_tree",
		mcp.WithDescription("Return the current widget tree as JSON."),
	), s.renderTree)

	s.mcp.AddTool(mcp.NewTool("list_screens",
		mcp.WithDescription("List the screens of the loaded document."),
	), s.listScreens)

	s.mcp.AddTool(mcp.NewTool("list_documents",
		mcp.WithDescription("List the documents in the document directory."),
	), s.listDocuments)

	s.mcp.AddTool(mcp.NewTool("load_document",
		mcp.WithDescription("Compile and load a document by name, replacing the active one."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Document name without extension")),
	), s.loadDocument)

	s.mcp.AddTool(mcp.NewTool("check_document",
		mcp.WithDescription("Parse and compile document content without loading it. "+
			"Read the format first via get_document_format or the "+FormatURI+" resource."),
		mcp.WithString("content", mcp.Required(), mcp.Description("YAML document content")),
	), s.checkDocument)

	s.mcp.AddTool(mcp.NewTool("call_native",
		mcp.WithDescription("Call a registered native function."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Function name")),
		mcp.WithArray("args", mcp.Description("String arguments"), mcp.WithStringItems()),
	), s.callNative)

	s.mcp.AddTool(mcp.NewTool("get_document_format",
		mcp.WithDescription("Returns the YamUI document format contract. "+
			"Call this before writing documents to ensure correct structure."),
	), s.getDocumentFormat)

	s.mcp.AddResource(
		mcp.NewResource(FormatURI, "Document Format Contract",
			mcp.WithResourceDescription("YAML document format understood by the runtime."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readFormatResource,
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

func (s *Server) getState(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key := req.GetString("key", "")
	if key == "" {
		return jsonResult(s.svc.State(ctx))
	}
	v, err := s.svc.GetState(ctx, key)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(v), nil
}

func (s *Server) setState(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := req.RequireString("key")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	value, err := req.RequireString("value")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	v, err := s.svc.SetState(ctx, key, value)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s = %s", key, v)), nil
}

func (s *Server) navigate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	op, err := req.RequireString("op")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	nav, err := s.svc.Navigate(ctx, op, req.GetString("target", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(nav)
}

func (s *Server) dispatchEvent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	event, err := req.RequireString("event")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var info binding.EventInfo
	if v, err := req.RequireString("value"); err == nil {
		info.Value = &v
	}
	if err := s.svc.Dispatch(ctx, id, event, info); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("dispatched %s on %s", event, id)), nil
}

func (s *Server) renderTree(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tree, err := s.svc.Tree(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(tree)
}

func (s *Server) listScreens(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	screens, err := s.svc.Screens(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(screens) == 0 {
		return mcp.NewToolResultText("no screens loaded"), nil
	}
	lines := make([]string, 0, len(screens))
	for _, sc := range screens {
		line := sc.Name
		if sc.Current {
			line += " (current)"
		}
		lines = append(lines, line)
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) listDocuments(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	docs, err := s.svc.Documents(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(docs)
}

func (s *Server) loadDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	info, err := s.svc.LoadDocument(ctx, name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(info)
}

func (s *Server) checkDocument(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	report, err := s.svc.Check([]byte(content))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(report)
}

func (s *Server) callNative(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	strs := req.GetStringSlice("args", nil)
	args := make([]any, len(strs))
	for i, a := range strs {
		args[i] = a
	}
	if err := s.svc.CallNative(ctx, name, args); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("called: %s", name)), nil
}

func (s *Server) getDocumentFormat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(DocumentFormatContract), nil
}

func (s *Server) readFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      FormatURI,
			MIMEType: "text/markdown",
			Text:     DocumentFormatContract,
		},
	}, nil
}
