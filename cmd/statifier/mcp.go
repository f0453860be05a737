package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/statifier/pkg/mcp"
)

// runMcpServer handles the mcp-server subcommand
func runMcpServer(args []string) {
	var sf siteFlags
	fs := flag.NewFlagSet("mcp-server", flag.ExitOnError)
	sf.register(fs)
	transport := fs.String("transport", "stdio", "Transport type (stdio, sse)")
	port := fs.Int("port", 8080, "HTTP port (for sse transport)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: statifier mcp-server [options]

Start an MCP (Model Context Protocol) server for AI tool integration.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # Start with stdio transport
  statifier mcp-server -config config.yaml

  # Start with SSE transport on port 8080
  statifier mcp-server -config config.yaml -transport sse -port 8080

Available MCP Tools:
  start_statification       Start a statification in the background
  stop_statification        Stop the running statification
  get_statification_status  Running flag, progress counter and current record
  list_statifications       List stored statifications
  get_statification_report  Full report of one statification
  get_mirrored_page         Read a mirrored page as markdown
  search_mirror             Search the mirrored pages
`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	exitCode := doMcpServer(ctx, sf, *transport, *port, os.Stderr)
	os.Exit(exitCode)
}

// doMcpServer is the testable implementation of the MCP server
func doMcpServer(ctx context.Context, sf siteFlags, transport string, port int, stderr io.Writer) int {
	// MCP protocol uses stdout, logs go to stderr
	if _, err := logrus.ParseLevel(sf.logLevel); err != nil {
		fmt.Fprintf(stderr, "Invalid log level: %s\n", sf.logLevel)
		return 1
	}
	log := setupLogger(sf.logLevel, stderr)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05",
	})

	appCfg, err := prepareConfig(sf, log)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading config: %v\n", err)
		return 1
	}

	svc, store, err := openService(appCfg, log)
	if err != nil {
		fmt.Fprintf(stderr, "Error opening statification store: %v\n", err)
		return 1
	}
	defer store.Close()

	gcCtx, stopGC := context.WithCancel(ctx)
	defer stopGC()
	go store.RunGC(gcCtx, time.Hour)

	serverCfg := &mcp.ServerConfig{
		AppConfig:  appCfg,
		Service:    svc,
		ConfigPath: sf.configFile,
		Transport:  transport,
		Port:       port,
		Logger:     log,
	}

	server, err := mcp.NewServer(serverCfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error creating MCP server: %v\n", err)
		return 1
	}

	log.Infof("Starting MCP server (transport: %s)", transport)

	runErr := server.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warnf("MCP server shutdown: %v", err)
	}

	if runErr != nil {
		fmt.Fprintf(stderr, "MCP server error: %v\n", runErr)
		return 1
	}
	return 0
}
