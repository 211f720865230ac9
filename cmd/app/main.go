package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/yamui/internal"
	"github.com/starford/yamui/internal/control"
	"github.com/starford/yamui/internal/engine"
	pkgconfig "github.com/starford/yamui/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	path := cmd.String("config")
	found, err := pkgconfig.LoadIfExists(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if !found {
		slog.Warn("config file not found, using defaults", slog.String("path", path))
	}
	return cfg, nil
}

func run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func runMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.RunMCP(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("mcp run error: %w", err)
	}
	return nil
}

func check(_ context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		return fmt.Errorf("check: document path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("check: %w", err)
	}

	eng := engine.New(engine.WithLogger(slog.New(slog.NewTextHandler(os.Stderr, nil))))
	defer eng.Close()
	sc, err := eng.Compile(data)
	if err != nil {
		return fmt.Errorf("check %s: %w", path, err)
	}
	printReport(os.Stdout, path, control.NewReport(sc))
	return nil
}

func printReport(w io.Writer, path string, r control.Report) {
	fmt.Fprintf(w, "%s: ok (%s)\n", path, r.Kind)
	if r.InitialScreen != "" {
		fmt.Fprintf(w, "initial screen: %s\n", r.InitialScreen)
	}
	fmt.Fprintf(w, "screens: %s\n", strings.Join(r.Screens, ", "))
	fmt.Fprintf(w, "components: %s\n", strings.Join(r.Components, ", "))
	fmt.Fprintf(w, "styles: %s\n", strings.Join(r.Styles, ", "))
}

func main() {
	cmd := &cli.Command{
		Name:   "yamui",
		Usage:  "Declarative YAML UI runtime with a live inspector API",
		Action: run,
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
				Usage:  "Run the runtime with the HTTP inspector (default)",
				Action: run,
			},
			{
				Name:      "check",
				Usage:     "Parse and compile a document, then print what it declares",
				ArgsUsage: "<file>",
				Action:    check,
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools on stdio over a headless runtime",
				Action: runMCP,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
