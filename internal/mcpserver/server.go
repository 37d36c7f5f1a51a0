// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Marginalia tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/marginalia/internal/codec"
	"github.com/starford/marginalia/internal/models"
	"github.com/starford/marginalia/internal/workspace"
)

const formatURI = "marginalia://annotated-format"

// Server wraps the MCP server with Marginalia tools.
type Server struct {
	mcp *server.MCPServer
	svc *workspace.Service
}

// New creates a new MCP server with all Marginalia tools registered.
func New(svc *workspace.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Marginalia",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_files",
		mcp.WithDescription("List workspace source files with their annotation counts."),
	), s.listFiles)

	s.mcp.AddTool(mcp.NewTool("read_annotated",
		mcp.WithDescription("Read a source file together with its annotations, as an annotated "+
			"markdown export (default) or as code with inline annotation markers."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the file (e.g. src/prog.mad)")),
		mcp.WithString("format", mcp.Description("markdown (default) or inline")),
	), s.readAnnotated)

	s.mcp.AddTool(mcp.NewTool("add_annotation",
		mcp.WithDescription("Attach a typed annotation to a line or a block of lines. "+
			"Types: observation, question, metaphor, pattern, context, critique."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the file")),
		mcp.WithNumber("line", mcp.Required(), mcp.Description("1-based line number")),
		mcp.WithNumber("end_line", mcp.Description("Last line of a block annotation")),
		mcp.WithString("type", mcp.Required(), mcp.Description("Annotation type")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Annotation text")),
		mcp.WithString("added_by", mcp.Description("Author initials")),
	), s.addAnnotation)

	s.mcp.AddTool(mcp.NewTool("import_markdown",
		mcp.WithDescription("Import an annotated markdown document into the workspace. "+
			"Content MUST follow the annotated export format. Read the contract first via "+
			"the get_format_contract tool or the "+formatURI+" resource."),
		mcp.WithString("content", mcp.Required(), mcp.Description("Annotated markdown document")),
		mcp.WithString("path", mcp.Description("Target path; derived from the document title when empty")),
	), s.importMarkdown)

	s.mcp.AddTool(mcp.NewTool("search_annotations",
		mcp.WithDescription("Full-text search through annotation content, annotated lines and replies."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchAnnotations)

	s.mcp.AddTool(mcp.NewTool("get_format_contract",
		mcp.WithDescription("Returns the annotated export format contract. "+
			"Call this before writing annotated documents to ensure correct structure."),
	), s.getFormatContract)

	// Resource: annotated format contract.
	s.mcp.AddResource(
		mcp.NewResource(formatURI, "Annotated Format Contract",
			mcp.WithResourceDescription("Inline marker and markdown export formats for annotated code."),
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

func (s *Server) listFiles(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, err := s.svc.ListFiles(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(items) == 0 {
		return mcp.NewToolResultText("no files"), nil
	}
	lines := make([]string, 0, len(items))
	for _, it := range items {
		line := fmt.Sprintf("%s (%d annotations", it.Path, it.Annotations)
		if it.Orphaned > 0 {
			line += fmt.Sprintf(", %d orphaned", it.Orphaned)
		}
		lines = append(lines, line+")")
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) readAnnotated(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	format := codec.FormatMarkdown
	if v, fErr := req.RequireString("format"); fErr == nil && v != "" {
		f, ok := codec.ParseFormat(v)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("unknown format: %s", v)), nil
		}
		format = f
	}
	out, err := s.svc.Export(ctx, path, format)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(out.Content), nil
}

func (s *Server) addAnnotation(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	line, err := req.RequireInt("line")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rawType, err := req.RequireString("type")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	typ, ok := models.ParseAnnotationType(rawType)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("unknown annotation type: %s", rawType)), nil
	}

	d := models.Draft{FileID: path, LineNumber: line, Type: typ, Content: content}
	if v, eErr := req.RequireInt("end_line"); eErr == nil {
		d.EndLineNumber = v
	}
	if v, aErr := req.RequireString("added_by"); aErr == nil {
		d.AddedBy = v
	}

	a, err := s.svc.AddAnnotation(ctx, d)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(a, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) importMarkdown(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	path := ""
	if v, pErr := req.RequireString("path"); pErr == nil {
		path = v
	}
	f, err := s.svc.ImportMarkdown(ctx, path, content)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("imported: %s (%d annotations)", f.Path, len(f.Annotations))), nil
}

func (s *Server) searchAnnotations(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getFormatContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(FormatContract), nil
}

func (s *Server) readFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      formatURI,
			MIMEType: "text/markdown",
			Text:     FormatContract,
		},
	}, nil
}
