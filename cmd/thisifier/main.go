package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/thisifier/internal/logging"
	"github.com/panbanda/thisifier/internal/output"
	"github.com/panbanda/thisifier/internal/service/qualify"
	"github.com/panbanda/thisifier/pkg/config"
)

var (
	version = "dev"
	commit  = "none"    // set via ldflags at build time
	date    = "unknown" // set via ldflags at build time
)

// getPaths returns paths from positional args, defaulting to ["."]
func getPaths(c *cli.Context) []string {
	if c.Args().Len() > 0 {
		return c.Args().Slice()
	}
	return []string{"."}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		var exit cli.ExitCoder
		if errors.As(err, &exit) {
			if msg := exit.Error(); msg != "" {
				color.Red("%s", msg)
			}
			os.Exit(exit.ExitCode())
		}
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "thisifier",
		Usage:   "Qualify unqualified Java self-calls with this.",
		Version: fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		Description: `thisifier rewrites calls like increment() inside a Java class into
this.increment() when the call targets an instance method declared by the
enclosing class. Calls to static, inherited or outer-class methods are left
alone, because qualifying them would change or break the program.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file (TOML, YAML, or JSON)",
				EnvVars: []string{"THISIFIER_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: text, json, markdown, toon (default from config)",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write output to file",
			},
			&cli.BoolFlag{
				Name:  "no-color",
				Usage: "Disable colored output",
			},
			&cli.BoolFlag{
				Name:  "no-cache",
				Usage: "Disable the result cache",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level: debug, info, warn, error (default from config)",
				EnvVars: []string{"THISIFIER_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "Log format: text or json (default from config)",
			},
		},
		// Exit codes are handled in main so tests can run the app in-process.
		ExitErrHandler: func(*cli.Context, error) {},
		Commands: []*cli.Command{
			applyCmd(),
			checkCmd(),
			explainCmd(),
			watchCmd(),
			mcpCmd(),
			initCmd(),
			configCmd(),
			cacheCmd(),
		},
	}
}

// env is the configuration and services shared by commands.
type env struct {
	cfg     *config.Config
	source  string
	logger  *slog.Logger
	service *qualify.Service
	format  output.Format
	colored bool
}

// loadEnv loads the config file and applies global flag overrides.
func loadEnv(c *cli.Context) (*env, error) {
	var opts []config.LoadOption
	if path := c.String("config"); path != "" {
		opts = append(opts, config.WithPath(path))
	}
	loaded, err := config.LoadConfig(opts...)
	if err != nil {
		return nil, err
	}
	cfg := loaded.Config
	if c.Bool("no-cache") {
		cfg.Cache.Enabled = false
	}

	level := firstNonEmpty(c.String("log-level"), cfg.Log.Level)
	logFormat := firstNonEmpty(c.String("log-format"), cfg.Log.Format)
	logger, err := logging.Setup(c.App.ErrWriter, level, logFormat)
	if err != nil {
		return nil, err
	}

	return &env{
		cfg:     cfg,
		source:  loaded.Source,
		logger:  logger,
		service: qualify.New(qualify.WithConfig(cfg), qualify.WithLogger(logger)),
		format:  output.ParseFormat(firstNonEmpty(c.String("format"), cfg.Output.Format)),
		colored: cfg.Output.Color && !c.Bool("no-color") && !color.NoColor,
	}, nil
}

func (e *env) formatter(c *cli.Context) (*output.Formatter, error) {
	return output.NewFormatter(e.format, c.App.Writer, c.String("output"), e.colored)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
