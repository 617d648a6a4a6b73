package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/starford/imgbed/internal"
	"github.com/starford/imgbed/internal/gallery"
)

// stdout receives command output; tests replace it.
var stdout io.Writer = os.Stdout

type galleryAction func(ctx context.Context, cmd *cli.Command, g *internal.Gallery) error

// withGallery opens the gallery for a one-shot command. Logs go to stderr
// at warn level so they never mix with command output.
func withGallery(fn galleryAction) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		g, err := internal.OpenGallery(ctx, cfg, logger, nil)
		if err != nil {
			return err
		}
		defer g.Close()
		return fn(ctx, cmd, g)
	}
}

func requireArgs(cmd *cli.Command, n int) ([]string, error) {
	args := cmd.Args().Slice()
	if len(args) < n {
		return nil, fmt.Errorf("%s: expected %s", cmd.Name, cmd.ArgsUsage)
	}
	return args, nil
}

func listCategories(ctx context.Context, _ *cli.Command, g *internal.Gallery) error {
	cats, err := g.Service.ListCategories(ctx)
	if err != nil {
		return err
	}
	for _, c := range cats {
		fmt.Fprintln(stdout, c)
	}
	return nil
}

func createCategory(ctx context.Context, cmd *cli.Command, g *internal.Gallery) error {
	args, err := requireArgs(cmd, 1)
	if err != nil {
		return err
	}
	created, err := g.Service.CreateCategory(ctx, args[0])
	if err != nil {
		return err
	}
	if created {
		fmt.Fprintf(stdout, "created %s\n", args[0])
	} else {
		fmt.Fprintf(stdout, "%s already exists\n", args[0])
	}
	return nil
}

func listAssets(ctx context.Context, cmd *cli.Command, g *internal.Gallery) error {
	args, err := requireArgs(cmd, 1)
	if err != nil {
		return err
	}
	items, err := g.Service.ListAssets(ctx, args[0])
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	for _, it := range items {
		fmt.Fprintf(tw, "%s\t%dx%d\t%d\n", it.Name, it.Width, it.Height, it.Size)
	}
	return tw.Flush()
}

func addAssets(ctx context.Context, cmd *cli.Command, g *internal.Gallery) error {
	args, err := requireArgs(cmd, 2)
	if err != nil {
		return err
	}
	sources := make([]gallery.Source, 0, len(args)-1)
	for _, path := range args[1:] {
		sources = append(sources, gallery.FileSource(path))
	}
	res, err := g.Service.Insert(ctx, args[0], sources)
	if err != nil {
		return err
	}
	for _, f := range res.Failed {
		fmt.Fprintf(os.Stderr, "skipped %s: %s\n", f.Source, f.Error)
	}
	fmt.Fprintf(stdout, "added %d of %d\n", res.Succeeded, len(sources))
	if res.Succeeded == 0 {
		return fmt.Errorf("add: no image could be added to %s", args[0])
	}
	return nil
}

func deleteAsset(ctx context.Context, cmd *cli.Command, g *internal.Gallery) error {
	args, err := requireArgs(cmd, 2)
	if err != nil {
		return err
	}
	deleted, err := g.Service.Delete(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	if !deleted {
		fmt.Fprintf(stdout, "%s/%s not found\n", args[0], args[1])
		return nil
	}
	fmt.Fprintf(stdout, "deleted %s/%s\n", args[0], args[1])
	return nil
}

func renumber(ctx context.Context, cmd *cli.Command, g *internal.Gallery) error {
	args, err := requireArgs(cmd, 1)
	if err != nil {
		return err
	}
	n, err := g.Service.Renumber(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "renamed %d file(s)\n", n)
	return nil
}
