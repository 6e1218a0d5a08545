package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/thisifier/internal/cache"
	"github.com/panbanda/thisifier/internal/output"
	"github.com/panbanda/thisifier/internal/service/qualify"
)

func cacheCmd() *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect or clear the result cache",
		Subcommands: []*cli.Command{
			{
				Name:   "stats",
				Usage:  "Show cache statistics",
				Action: runCacheStatsCmd,
			},
			{
				Name:      "clear",
				Usage:     "Remove cache entries, for the given paths or all of them",
				ArgsUsage: "[path...]",
				Action:    runCacheClearCmd,
			},
		},
	}
}

// openCache opens the configured cache directory regardless of cache.enabled.
func openCache(c *cli.Context) (*cache.Cache, *env, error) {
	e, err := loadEnv(c)
	if err != nil {
		return nil, nil, err
	}
	store, err := cache.New(e.cfg.Cache.Dir, e.cfg.Cache.TTL, true)
	if err != nil {
		return nil, nil, err
	}
	return store, e, nil
}

func runCacheStatsCmd(c *cli.Context) error {
	store, e, err := openCache(c)
	if err != nil {
		return err
	}
	stats, err := store.GetStats()
	if err != nil {
		return err
	}

	formatter, err := e.formatter(c)
	if err != nil {
		return err
	}
	defer formatter.Close()

	rows := [][]string{
		{"Directory", e.cfg.Cache.Dir},
		{"Enabled", strconv.FormatBool(e.cfg.Cache.Enabled)},
		{"Entries", strconv.Itoa(stats.Entries)},
		{"Clean files", strconv.Itoa(stats.Clean)},
		{"Size", fmt.Sprintf("%d bytes", stats.TotalSize)},
		{"Oldest entry", stats.OldestAge.Round(time.Second).String()},
	}
	return formatter.Output(output.NewTable("Cache", []string{"Setting", "Value"}, rows, nil, stats))
}

func runCacheClearCmd(c *cli.Context) error {
	store, e, err := openCache(c)
	if err != nil {
		return err
	}

	formatter, err := e.formatter(c)
	if err != nil {
		return err
	}
	defer formatter.Close()

	if c.NArg() == 0 {
		if err := store.Clear(); err != nil {
			return err
		}
		formatter.Success("Cleared %s", e.cfg.Cache.Dir)
		return nil
	}

	files, err := e.service.Discover(c.Args().Slice(), qualify.DiscoverOptions{})
	if err != nil {
		return err
	}
	for _, f := range files {
		if err := store.Invalidate(f); err != nil {
			return fmt.Errorf("invalidating %s: %w", f, err)
		}
	}
	formatter.Success("Invalidated %d entries", len(files))
	return nil
}
