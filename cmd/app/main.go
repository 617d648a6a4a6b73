package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/imgbed/internal"
	pkgconfig "github.com/starford/imgbed/pkg/config"
)

// loadConfig reads the optional config file and applies flag overrides.
func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if _, err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if root := cmd.String("root"); root != "" {
		cfg.Gallery.Root = root
	}
	if format := cmd.String("format"); format != "" {
		cfg.Gallery.Format = format
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
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
	return internal.RunMCP(ctx, internal.WithConfig(cfg))
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "imgbed",
		Usage:   "Folder-per-category image gallery with gap-free numbered files",
		Version: internal.Version,
		Action:  serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file (optional)",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Gallery root directory (overrides the config file)",
				Sources: cli.EnvVars("IMGBED_ROOT"),
			},
			&cli.StringFlag{
				Name:    "format",
				Usage:   "Stored image format: webp or png (overrides the config file)",
				Sources: cli.EnvVars("IMGBED_FORMAT"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API, event stream and watcher (default)",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve gallery tools over MCP stdio",
				Action: serveMCP,
			},
			{
				Name:   "categories",
				Usage:  "List categories",
				Action: withGallery(listCategories),
			},
			{
				Name:      "create",
				Usage:     "Create a category",
				ArgsUsage: "<name>",
				Action:    withGallery(createCategory),
			},
			{
				Name:      "list",
				Usage:     "List a category's images in order",
				ArgsUsage: "<category>",
				Action:    withGallery(listAssets),
			},
			{
				Name:      "add",
				Usage:     "Append image files to a category",
				ArgsUsage: "<category> <file>...",
				Action:    withGallery(addAssets),
			},
			{
				Name:      "delete",
				Usage:     "Delete an image and close the gap",
				ArgsUsage: "<category> <file>",
				Action:    withGallery(deleteAsset),
			},
			{
				Name:      "renumber",
				Usage:     "Close numbering gaps left by external edits",
				ArgsUsage: "<category>",
				Action:    withGallery(renumber),
			},
		},
	}
}

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
