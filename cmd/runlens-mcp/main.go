// Package main provides the runlens-mcp binary — MCP server for AI agents.
package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/ormasoftchile/runlens/pkg/approval"
	"github.com/ormasoftchile/runlens/pkg/cases"
	"github.com/ormasoftchile/runlens/pkg/launcher"
	rmcp "github.com/ormasoftchile/runlens/pkg/mcp"
)

var version = "dev"

func main() {
	baseURL := os.Getenv("RUNLENS_SERVER")
	if baseURL == "" {
		baseURL = launcher.DefaultBaseURL
	}

	h := &rmcp.Handlers{
		Launcher: launcher.New(baseURL),
		Cases:    cases.New(baseURL),
		Queue:    approval.New(baseURL),
	}

	s := rmcp.NewServer(version, h)
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
