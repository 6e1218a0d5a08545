package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/thisifier/internal/diffview"
	"github.com/panbanda/thisifier/internal/output"
	"github.com/panbanda/thisifier/internal/progress"
	"github.com/panbanda/thisifier/internal/report"
	"github.com/panbanda/thisifier/internal/service/qualify"
	"github.com/panbanda/thisifier/pkg/rewrite"
)

// selectionFlags narrow which files and which calls a command works on.
func selectionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "region",
			Usage: "Only calls inside `L:C-L:C` (single file)",
		},
		&cli.StringFlag{
			Name:  "cursor",
			Usage: "Only the call containing `L:C` (single file)",
		},
		&cli.BoolFlag{
			Name:  "changed",
			Usage: "Only files with uncommitted git changes",
		},
		&cli.StringFlag{
			Name:  "since",
			Usage: "Only files changed since git `REV` (implies --changed)",
		},
	}
}

func applyCmd() *cli.Command {
	return &cli.Command{
		Name:      "apply",
		Aliases:   []string{"fix"},
		Usage:     "Qualify eligible self-calls with this.",
		ArgsUsage: "[path...]",
		Flags: append(selectionFlags(),
			&cli.BoolFlag{
				Name:    "dry-run",
				Aliases: []string{"n"},
				Usage:   "Compute the edits without writing files",
			},
			&cli.BoolFlag{
				Name:    "diff",
				Aliases: []string{"d"},
				Usage:   "Print a unified diff of the edits",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Files processed in parallel (0 picks from CPU count)",
			},
		),
		Action: runApplyCmd,
	}
}

func checkCmd() *cli.Command {
	return &cli.Command{
		Name:      "check",
		Usage:     "Exit with status 1 when any self-call can be qualified",
		ArgsUsage: "[path...]",
		Flags: append(selectionFlags(),
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Files processed in parallel (0 picks from CPU count)",
			},
		),
		Action: runCheckCmd,
	}
}

// parseScope reads --region and --cursor.
func parseScope(c *cli.Context) (rewrite.Scope, error) {
	region, cursor := c.String("region"), c.String("cursor")
	switch {
	case region != "" && cursor != "":
		return rewrite.Scope{}, errors.New("--region and --cursor are mutually exclusive")
	case region != "":
		scope, err := rewrite.ParseScope(region)
		if err != nil {
			return rewrite.Scope{}, err
		}
		if scope.Kind != rewrite.Region {
			return rewrite.Scope{}, fmt.Errorf("--region %q: want L:C-L:C", region)
		}
		return scope, nil
	case cursor != "":
		scope, err := rewrite.ParseScope(cursor)
		if err != nil {
			return rewrite.Scope{}, err
		}
		if scope.Kind != rewrite.Cursor {
			return rewrite.Scope{}, fmt.Errorf("--cursor %q: want L:C", cursor)
		}
		return scope, nil
	}
	return rewrite.FileScope(), nil
}

// discover finds the files selected by the positional args and flags.
func discover(c *cli.Context, e *env, scope rewrite.Scope) ([]string, error) {
	since := c.String("since")
	files, err := e.service.Discover(getPaths(c), qualify.DiscoverOptions{
		Changed: c.Bool("changed") || since != "",
		Since:   since,
	})
	if err != nil {
		return nil, err
	}
	if scope.Kind != rewrite.WholeFile && len(files) != 1 {
		return nil, fmt.Errorf("--region and --cursor need exactly one file, found %d", len(files))
	}
	return files, nil
}

// applyOutput combines the report and diff for JSON and TOON output.
type applyOutput struct {
	Report *report.Report `json:"report" toon:"report"`
	Diff   string         `json:"diff,omitempty" toon:"diff"`
}

// qualifyFiles runs one batch with a progress bar and Ctrl+C handling.
func qualifyFiles(c *cli.Context, e *env, files []string, opts qualify.Options) (*qualify.Result, error) {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracker := progress.NewTracker(c.App.ErrWriter, "Qualifying...", len(files))
	opts.OnProgress = tracker.Tick
	if cwd, err := os.Getwd(); err == nil {
		opts.BaseDir = cwd
	}

	result, err := e.service.Qualify(ctx, files, opts)
	if err != nil {
		tracker.FinishError(err)
		return nil, err
	}
	tracker.Finish()
	if errors.Is(ctx.Err(), context.Canceled) {
		fmt.Fprintln(c.App.ErrWriter, "Interrupted: edits made so far were kept")
	}
	return result, nil
}

func runApplyCmd(c *cli.Context) error {
	e, err := loadEnv(c)
	if err != nil {
		return err
	}
	scope, err := parseScope(c)
	if err != nil {
		return err
	}
	files, err := discover(c, e, scope)
	if err != nil {
		return err
	}

	formatter, err := e.formatter(c)
	if err != nil {
		return err
	}
	defer formatter.Close()

	if len(files) == 0 {
		formatter.Warning("No Java files found")
		return nil
	}

	dryRun, showDiff := c.Bool("dry-run"), c.Bool("diff")
	result, err := qualifyFiles(c, e, files, qualify.Options{
		Scope:   scope,
		DryRun:  dryRun,
		Diff:    showDiff,
		Workers: c.Int("workers"),
	})
	if err != nil {
		return err
	}

	title := "Qualified self calls"
	if dryRun {
		title = "Self calls (dry run)"
	}
	rep := report.New(title, dryRun, result.Summaries())

	var rendered []byte
	var changed int
	if showDiff {
		diffs := result.Diffs()
		if rendered, err = diffview.Render(diffs...); err != nil {
			return fmt.Errorf("rendering diff: %w", err)
		}
		for _, d := range diffs {
			changed += diffview.Changed(d)
		}
	}

	switch formatter.Format() {
	case output.FormatJSON, output.FormatTOON:
		if err := formatter.Output(applyOutput{Report: rep, Diff: string(rendered)}); err != nil {
			return err
		}
	default:
		if err := formatter.Output(rep); err != nil {
			return err
		}
		if len(rendered) > 0 {
			content := string(rendered)
			if formatter.Colored() {
				content = diffview.Colorize(rendered)
			}
			if err := formatter.Output(&output.Section{
				Title:   fmt.Sprintf("Diff (%d lines changed)", changed),
				Content: content,
			}); err != nil {
				return err
			}
		}
	}

	return failures(result)
}

func runCheckCmd(c *cli.Context) error {
	e, err := loadEnv(c)
	if err != nil {
		return err
	}
	scope, err := parseScope(c)
	if err != nil {
		return err
	}
	files, err := discover(c, e, scope)
	if err != nil {
		return err
	}

	formatter, err := e.formatter(c)
	if err != nil {
		return err
	}
	defer formatter.Close()

	if len(files) == 0 {
		formatter.Warning("No Java files found")
		return nil
	}

	result, err := qualifyFiles(c, e, files, qualify.Options{
		Scope:   scope,
		DryRun:  true,
		Workers: c.Int("workers"),
	})
	if err != nil {
		return err
	}

	if err := formatter.Output(report.New("Unqualified self calls", true, result.Summaries())); err != nil {
		return err
	}
	if err := failures(result); err != nil {
		return err
	}
	if n := result.Eligible(); n > 0 {
		return cli.Exit(fmt.Sprintf("%d self calls can be qualified; run thisifier apply", n), 1)
	}
	if formatter.Format() == output.FormatText {
		formatter.Success("All self calls are qualified")
	}
	return nil
}

// failures turns per-file processing errors into exit status 2. Refused
// writes are reported in the table but do not fail the run.
func failures(result *qualify.Result) error {
	if result.Errors == nil || !result.Errors.HasErrors() {
		return nil
	}
	return cli.Exit(result.Errors.Error(), 2)
}
