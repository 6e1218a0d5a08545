package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/thisifier/internal/diffview"
	"github.com/panbanda/thisifier/internal/scanner"
	"github.com/panbanda/thisifier/internal/service/qualify"
	"github.com/panbanda/thisifier/pkg/watch"
)

func watchCmd() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Qualify self-calls in Java files as they are saved",
		ArgsUsage: "[path]",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "debounce",
				Usage: "Quiet period before a changed file is processed (default from config)",
			},
			&cli.BoolFlag{
				Name:    "dry-run",
				Aliases: []string{"n"},
				Usage:   "Print diffs instead of writing files",
			},
		},
		Action: runWatchCmd,
	}
}

func runWatchCmd(c *cli.Context) error {
	e, err := loadEnv(c)
	if err != nil {
		return err
	}

	root, err := filepath.Abs(getPaths(c)[0])
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}

	debounce := time.Duration(e.cfg.Watch.DebounceMS) * time.Millisecond
	if c.IsSet("debounce") {
		debounce = c.Duration("debounce")
	}

	out := c.App.Writer
	watcher, err := watch.NewWatcher(root, e.cfg, debounce, out, e.logger)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Stop()

	dryRun := c.Bool("dry-run")
	watcher.SetCallback(func(ctx context.Context, paths []string) {
		// Files deleted or grown past the limit since the event are dropped here.
		files, _ := scanner.FilterBySize(paths, e.cfg.Limits.MaxFileSize)
		result, err := e.service.Qualify(ctx, files, qualify.Options{
			DryRun:  dryRun,
			Diff:    dryRun,
			BaseDir: root,
		})
		if err != nil {
			e.logger.Warn("watch batch failed", "error", err)
			return
		}
		for _, f := range result.Files {
			s := f.Summary
			switch {
			case s.Error != "":
				color.New(color.FgYellow).Fprintf(out, "  %s: %s\n", s.Path, s.Error)
			case dryRun && f.Diff != nil:
				rendered, err := diffview.Render(f.Diff)
				if err == nil {
					fmt.Fprint(out, diffview.Colorize(rendered))
				}
			case s.Applied > 0:
				color.New(color.FgGreen).Fprintf(out, "  qualified %d self calls in %s\n", s.Applied, s.Path)
			}
		}
		if result.Errors != nil {
			for _, pe := range result.Errors.Errors {
				color.New(color.FgRed).Fprintf(out, "  %s: %v\n", pe.Path, pe.Err)
			}
		}
	})

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = watcher.Start(ctx)
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(out, "\nStopping watch...")
		return nil
	}
	return err
}
