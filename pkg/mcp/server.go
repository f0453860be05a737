package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/statifier/pkg/config"
	"github.com/Sriram-PR/statifier/pkg/statification"
)

const (
	serverName    = "statifier"
	serverVersion = "1.0.0"
)

// ServerConfig holds configuration for the MCP server
type ServerConfig struct {
	AppConfig  *config.AppConfig
	Service    *statification.Service
	ConfigPath string
	Transport  string // "stdio" or "sse"
	Port       int
	Logger     *logrus.Logger
}

// Server exposes the statification service as MCP tools
type Server struct {
	mcpServer *server.MCPServer
	cfg       *ServerConfig
	log       *logrus.Entry
	service   *statification.Service

	// Parent of every crawl started through the tools; a tool call's own context ends with the call
	crawlCtx context.Context
}

// NewServer creates a new MCP server instance
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg.AppConfig == nil {
		return nil, fmt.Errorf("AppConfig is required")
	}
	if cfg.Service == nil {
		return nil, fmt.Errorf("Service is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	mcpServer := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithLogging(),
	)

	s := &Server{
		mcpServer: mcpServer,
		cfg:       cfg,
		log:       cfg.Logger.WithField("component", "mcp"),
		service:   cfg.Service,
		crawlCtx:  context.Background(),
	}

	s.registerTools()
	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	startTool := mcp.NewTool("start_statification",
		mcp.WithDescription("Start a statification of the configured site in the background. Returns immediately with a job ID."),
		mcp.WithString("designation",
			mcp.Required(),
			mcp.Description("Short name of the snapshot"),
		),
		mcp.WithString("description",
			mcp.Description("Free-form description of the snapshot"),
		),
		mcp.WithString("user",
			mcp.Description("User recorded in the historic (defaults to 'mcp')"),
		),
	)
	s.mcpServer.AddTool(startTool, s.handleStart)

	stopTool := mcp.NewTool("stop_statification",
		mcp.WithDescription("Stop the running statification. Does nothing when none is running."),
	)
	s.mcpServer.AddTool(stopTool, s.handleStop)

	statusTool := mcp.NewTool("get_statification_status",
		mcp.WithDescription("Get the running flag, progress counter and in-progress record, or the status of one job"),
		mcp.WithString("job_id",
			mcp.Description("Job ID returned by start_statification (optional)"),
		),
	)
	s.mcpServer.AddTool(statusTool, s.handleStatus)

	listTool := mcp.NewTool("list_statifications",
		mcp.WithDescription("List stored statifications, most recent first"),
	)
	s.mcpServer.AddTool(listTool, s.handleList)

	reportTool := mcp.NewTool("get_statification_report",
		mcp.WithDescription("Get the full report of a statification: HTTP errors, forbidden types, external links, crawl errors and file types"),
		mcp.WithString("commit",
			mcp.Description("Commit of the statification (empty for the one in progress)"),
		),
	)
	s.mcpServer.AddTool(reportTool, s.handleReport)

	pageTool := mcp.NewTool("get_mirrored_page",
		mcp.WithDescription("Read a page from the mirror and return its content as markdown"),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Mirror-relative path (e.g. '/about.html') or the original page URL"),
		),
		mcp.WithString("content_selector",
			mcp.Description("CSS selector for main content (defaults to 'body')"),
		),
	)
	s.mcpServer.AddTool(pageTool, s.handleGetMirroredPage)

	searchTool := mcp.NewTool("search_mirror",
		mcp.WithDescription("Search the text of mirrored HTML pages"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query (case-insensitive substring match)"),
		),
		mcp.WithNumber("max_results",
			mcp.Description("Maximum number of results to return (default: 10, max: 100)"),
		),
	)
	s.mcpServer.AddTool(searchTool, s.handleSearchMirror)

	s.log.Infof("Registered %d MCP tools", 7)
}

// Run starts the MCP server with the configured transport. Crawls started through the tools
// are bound to ctx.
func (s *Server) Run(ctx context.Context) error {
	s.crawlCtx = ctx
	switch s.cfg.Transport {
	case "stdio":
		s.log.Info("Starting MCP server with stdio transport")
		return server.ServeStdio(s.mcpServer)
	case "sse":
		addr := fmt.Sprintf(":%d", s.cfg.Port)
		s.log.Infof("Starting MCP server with SSE transport on %s", addr)
		sseServer := server.NewSSEServer(s.mcpServer)
		go func() {
			<-ctx.Done()
			sseServer.Shutdown(context.Background())
		}()
		return sseServer.Start(addr)
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio, sse)", s.cfg.Transport)
	}
}

// Shutdown stops any running statification and waits for it to settle
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down MCP server...")
	if !s.service.Stop() {
		return nil
	}
	job := s.service.Current()
	if job == nil {
		return nil
	}
	select {
	case <-job.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
