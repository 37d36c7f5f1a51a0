package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/starford/marginalia/internal"
	"github.com/starford/marginalia/internal/codec"
	pkgconfig "github.com/starford/marginalia/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if _, err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.RunMCP(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("mcp run error: %w", err)
	}
	return nil
}

// openWorkspace loads the workspace for a one-shot command. Logs go to
// stderr so stdout carries only the command's output.
func openWorkspace(ctx context.Context, cmd *cli.Command) (*internal.Workspace, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return internal.OpenWorkspace(ctx, cfg, internal.NewLogger(cfg, os.Stderr))
}

func requireArg(cmd *cli.Command, name string) (string, error) {
	v := cmd.Args().First()
	if v == "" {
		return "", errors.New(name + " argument is required")
	}
	return v, nil
}

func export(ctx context.Context, cmd *cli.Command) error {
	p, err := requireArg(cmd, "path")
	if err != nil {
		return err
	}
	format, ok := codec.ParseFormat(cmd.String("format"))
	if !ok {
		return fmt.Errorf("unknown format %q", cmd.String("format"))
	}

	ws, err := openWorkspace(ctx, cmd)
	if err != nil {
		return err
	}
	defer ws.Close()

	out, err := ws.Service.Export(ctx, p, format)
	if err != nil {
		return fmt.Errorf("export %s: %w", p, err)
	}

	if dst := cmd.String("output"); dst != "" {
		if err := os.WriteFile(dst, []byte(out.Content), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", dst, err)
		}
		fmt.Fprintf(os.Stderr, "wrote %s\n", dst)
		return nil
	}
	_, err = fmt.Fprint(os.Stdout, out.Content)
	return err
}

func importMarkdown(ctx context.Context, cmd *cli.Command) error {
	src, err := requireArg(cmd, "markdown file")
	if err != nil {
		return err
	}
	doc, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("read %s: %w", src, err)
	}

	ws, err := openWorkspace(ctx, cmd)
	if err != nil {
		return err
	}
	defer ws.Close()

	detail, err := ws.Service.ImportMarkdown(ctx, cmd.String("path"), string(doc))
	if err != nil {
		return fmt.Errorf("import %s: %w", src, err)
	}
	fmt.Fprintf(os.Stdout, "imported %s (%d annotations)\n", detail.Path, len(detail.Annotations))
	return nil
}

func show(ctx context.Context, cmd *cli.Command) error {
	p, err := requireArg(cmd, "path")
	if err != nil {
		return err
	}

	ws, err := openWorkspace(ctx, cmd)
	if err != nil {
		return err
	}
	defer ws.Close()

	text, err := ws.Service.Render(ctx, p)
	if err != nil {
		return fmt.Errorf("show %s: %w", p, err)
	}
	_, err = fmt.Fprintln(os.Stdout, text)
	return err
}
