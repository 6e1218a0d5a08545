package main

import (
	"os"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/thisifier/internal/report"
)

func explainCmd() *cli.Command {
	return &cli.Command{
		Name:      "explain",
		Usage:     "Show every method call in scope and why it is or is not qualified",
		ArgsUsage: "[path...]",
		Flags: append(selectionFlags(),
			&cli.BoolFlag{
				Name:  "eligible",
				Usage: "Only list calls that would be qualified",
			},
		),
		Action: runExplainCmd,
	}
}

func runExplainCmd(c *cli.Context) error {
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

	cwd, _ := os.Getwd()
	explained, errs := e.service.Explain(c.Context, files, scope, cwd)

	onlyEligible := c.Bool("eligible")
	var findings []report.Finding
	for _, f := range explained {
		for _, finding := range report.FindingsOf(f.Path, f.Diagnoses) {
			if !onlyEligible || finding.Eligible {
				findings = append(findings, finding)
			}
		}
	}

	if err := formatter.Output(report.NewFindings("Call verdicts", findings)); err != nil {
		return err
	}
	if errs != nil && errs.HasErrors() {
		return cli.Exit(errs.Error(), 2)
	}
	return nil
}
