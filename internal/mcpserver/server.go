// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes gallery tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/imgbed/internal/apperr"
	"github.com/starford/imgbed/internal/gallery"
	"github.com/starford/imgbed/internal/galleryservice"
)

const layoutURI = "imgbed://layout"

// Server wraps the MCP server with gallery tools.
type Server struct {
	mcp     *server.MCPServer
	svc     *galleryservice.Service
	fetcher *fetcher
}

// New creates a new MCP server with all gallery tools registered.
// maxFetchBytes bounds images downloaded by add_image.
func New(svc *galleryservice.Service, version string, maxFetchBytes int64) *Server {
	s := &Server{svc: svc, fetcher: newFetcher(maxFetchBytes)}

	s.mcp = server.NewMCPServer(
		"imgbed",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_categories",
		mcp.WithDescription("List the gallery's categories (folders of numbered images)."),
	), s.listCategories)

	s.mcp.AddTool(mcp.NewTool("create_category",
		mcp.WithDescription("Create an empty category. Succeeds without change if it already exists."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Category name: a single folder name, no slashes, not starting with a dot")),
	), s.createCategory)

	s.mcp.AddTool(mcp.NewTool("list_images",
		mcp.WithDescription("List the images of a category in sequence order, with dimensions."),
		mcp.WithString("category", mcp.Required(), mcp.Description("Category name")),
	), s.listImages)

	s.mcp.AddTool(mcp.NewTool("add_image",
		mcp.WithDescription("Append an image to a category. The image is fetched from an http(s) URL "+
			"or decoded from a base64 data URI, converted losslessly, and stored as the next number. "+
			"Read the layout contract (get_layout_contract) for naming rules."),
		mcp.WithString("category", mcp.Required(), mcp.Description("Existing category name")),
		mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or data:image/...;base64,... URI")),
	), s.addImage)

	s.mcp.AddTool(mcp.NewTool("delete_image",
		mcp.WithDescription("Delete an image; later images shift down so numbering stays gap-free."),
		mcp.WithString("category", mcp.Required(), mcp.Description("Category name")),
		mcp.WithString("name", mcp.Required(), mcp.Description("File name as listed, e.g. 3.webp")),
	), s.deleteImage)

	s.mcp.AddTool(mcp.NewTool("renumber_category",
		mcp.WithDescription("Close gaps in a category's numbering. Safe to repeat."),
		mcp.WithString("category", mcp.Required(), mcp.Description("Category name")),
	), s.renumberCategory)

	s.mcp.AddTool(mcp.NewTool("gallery_stats",
		mcp.WithDescription("Image counts and total bytes per category, plus groups of identical images."),
	), s.galleryStats)

	s.mcp.AddTool(mcp.NewTool("get_layout_contract",
		mcp.WithDescription("Returns the on-disk layout contract of the gallery. "+
			"Call this before referencing image paths from other tools."),
	), s.getLayoutContract)

	s.mcp.AddResource(
		mcp.NewResource(layoutURI, "Gallery Layout Contract",
			mcp.WithResourceDescription("How categories and numbered images are laid out on disk."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readLayoutResource,
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

func jsonResult(v any) *mcp.CallToolResult {
	out, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(out))
}

// errorResult turns domain errors into tool errors with a readable message.
func errorResult(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError("not found: " + err.Error())
	default:
		return mcp.NewToolResultError(err.Error())
	}
}

func (s *Server) listCategories(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cats, err := s.svc.ListCategories(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	if len(cats) == 0 {
		return mcp.NewToolResultText("no categories"), nil
	}
	return mcp.NewToolResultText(strings.Join(cats, "\n")), nil
}

func (s *Server) createCategory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	created, err := s.svc.CreateCategory(ctx, name)
	if err != nil {
		return errorResult(err), nil
	}
	if !created {
		return mcp.NewToolResultText(fmt.Sprintf("exists: %s", name)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", name)), nil
}

func (s *Server) listImages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	category, err := req.RequireString("category")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	items, err := s.svc.ListAssets(ctx, category)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(items), nil
}

func (s *Server) addImage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	category, err := req.RequireString("category")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rawURL, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	src, err := s.fetcher.source(ctx, rawURL)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.Insert(ctx, category, []gallery.Source{src})
	if err != nil {
		return errorResult(err), nil
	}
	if len(res.Failed) > 0 {
		return mcp.NewToolResultError(res.Failed[0].Error), nil
	}
	return jsonResult(res), nil
}

func (s *Server) deleteImage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	category, err := req.RequireString("category")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	deleted, err := s.svc.Delete(ctx, category, name)
	if err != nil {
		if deleted {
			return mcp.NewToolResultError(fmt.Sprintf("deleted %s/%s but renumbering failed (%v); call renumber_category", category, name, err)), nil
		}
		return errorResult(err), nil
	}
	if !deleted {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s/%s", category, name)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s/%s", category, name)), nil
}

func (s *Server) renumberCategory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	category, err := req.RequireString("category")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	renamed, err := s.svc.Renumber(ctx, category)
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("renamed %d file(s) in %s", renamed, category)), nil
}

func (s *Server) galleryStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.svc.Stats(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	dups, err := s.svc.Duplicates(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(map[string]any{"categories": stats, "duplicates": dups}), nil
}

func (s *Server) getLayoutContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(LayoutContract(s.svc.Extension())), nil
}

func (s *Server) readLayoutResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      layoutURI,
			MIMEType: "text/markdown",
			Text:     LayoutContract(s.svc.Extension()),
		},
	}, nil
}
