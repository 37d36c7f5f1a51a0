package main

import (
	"context"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:   "marginalia",
		Usage:  "Line-anchored annotations for source files that survive edits",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Serve the HTTP API and event stream",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the workspace to an MCP client over stdio",
				Action: serveMCP,
			},
			{
				Name:      "export",
				Usage:     "Print a file with its annotations as inline markers or annotated markdown",
				ArgsUsage: "<path>",
				Action:    export,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "inline or markdown",
						Value:   "markdown",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write to this file instead of stdout",
					},
				},
			},
			{
				Name:      "import",
				Usage:     "Import an annotated markdown document into the workspace",
				ArgsUsage: "<markdown file>",
				Action:    importMarkdown,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "path",
						Usage: "Workspace path to write; derived from the document title when empty",
					},
				},
			},
			{
				Name:      "show",
				Usage:     "Render a file with highlighting and its annotations",
				ArgsUsage: "<path>",
				Action:    show,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
