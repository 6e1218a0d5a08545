package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/thisifier/internal/mcpserver"
)

func mcpCmd() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Start MCP (Model Context Protocol) server for LLM tool integration",
		Description: `Starts an MCP server over stdio transport that lets editors and AI
assistants list, explain and qualify Java self-calls.

To use with Claude Desktop, add to your config:
  {
    "mcpServers": {
      "thisifier": {
        "command": "thisifier",
        "args": ["mcp"]
      }
    }
  }

Available tools:
  - list_self_calls       Calls that can be prefixed with this.
  - qualify_self_calls    Rewrite files or an unsaved buffer
  - explain_self_calls    Verdict and reason for every call`,
		Action: runMCPCmd,
		Subcommands: []*cli.Command{
			{
				Name:   "manifest",
				Usage:  "Print the MCP registry manifest (server.json)",
				Action: runMCPManifestCmd,
			},
		},
	}
}

func runMCPCmd(c *cli.Context) error {
	e, err := loadEnv(c)
	if err != nil {
		return err
	}
	server := mcpserver.NewServer(version, e.service)
	return server.Run(c.Context)
}

func runMCPManifestCmd(c *cli.Context) error {
	data, err := mcpserver.GenerateManifest(version)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.App.Writer, string(data))
	return err
}
