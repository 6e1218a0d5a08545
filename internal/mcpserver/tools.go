package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/panbanda/thisifier/internal/diffview"
	"github.com/panbanda/thisifier/internal/output"
	"github.com/panbanda/thisifier/internal/report"
	"github.com/panbanda/thisifier/internal/service/qualify"
	"github.com/panbanda/thisifier/pkg/rewrite"
)

// TargetInput selects what a tool works on: files on disk, or one buffer.
type TargetInput struct {
	Paths   []string `json:"paths,omitempty" jsonschema:"Files or directories to process. Defaults to the current directory when neither paths nor content is given."`
	Content string   `json:"content,omitempty" jsonschema:"Java source of an unsaved buffer. When set, paths is ignored and nothing is written."`
	Path    string   `json:"path,omitempty" jsonschema:"File name reported for content. Defaults to Buffer.java."`
	Scope   string   `json:"scope,omitempty" jsonschema:"Limit to a region 'L:C-L:C' or the call at a cursor 'L:C'. Only valid for content or a single file."`
	Changed bool     `json:"changed,omitempty" jsonschema:"Only process files with uncommitted git changes."`
	Format  string   `json:"format,omitempty" jsonschema:"Output format: toon (default), json, or markdown."`
}

// QualifyInput adds rewrite options.
type QualifyInput struct {
	TargetInput
	DryRun bool `json:"dry_run,omitempty" jsonschema:"Compute the edits and return a diff without writing files."`
}

// ContentOutput is the result of qualifying a buffer.
type ContentOutput struct {
	Path     string            `json:"path" toon:"path"`
	Eligible int               `json:"eligible" toon:"eligible"`
	Applied  int               `json:"applied" toon:"applied"`
	Outcomes []rewrite.Outcome `json:"outcomes,omitempty" toon:"outcomes"`
	Diff     string            `json:"diff,omitempty" toon:"diff"`
	Source   string            `json:"source" toon:"source"`
}

// BatchOutput is the result of qualifying files.
type BatchOutput struct {
	Report *report.Report `json:"report" toon:"report"`
	Diff   string         `json:"diff,omitempty" toon:"diff"`
}

var errScopeNeedsOneFile = errors.New("scope requires content or exactly one file")

func getPaths(input TargetInput) []string {
	if len(input.Paths) == 0 {
		return []string{"."}
	}
	return input.Paths
}

func getFormat(input TargetInput) output.Format {
	switch input.Format {
	case "json":
		return output.FormatJSON
	case "markdown", "md":
		return output.FormatMarkdown
	default:
		return output.FormatTOON
	}
}

func contentPath(input TargetInput) string {
	if input.Path == "" {
		return "Buffer.java"
	}
	return input.Path
}

func formatOutput(data any, format output.Format) (string, error) {
	switch format {
	case output.FormatJSON:
		out, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return "", err
		}
		return string(out), nil
	case output.FormatMarkdown:
		if r, ok := data.(output.Renderable); ok {
			var buf bytes.Buffer
			if err := r.RenderMarkdown(&buf); err != nil {
				return "", err
			}
			return buf.String(), nil
		}
		out, err := output.MarshalTOON(data)
		if err != nil {
			return "", err
		}
		return "```\n" + out + "\n```", nil
	default:
		return output.MarshalTOON(data)
	}
}

func toolResult(data any, format output.Format) (*mcp.CallToolResult, any, error) {
	text, err := formatOutput(data, format)
	if err != nil {
		return nil, nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}, nil, nil
}

func toolError(msg string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: "Error: " + msg},
		},
		IsError: true,
	}, nil, nil
}

// files discovers the Java files named by input and checks that a
// positional scope names exactly one of them.
func (s *Server) files(input TargetInput, scope rewrite.Scope) ([]string, error) {
	files, err := s.service.Discover(getPaths(input), qualify.DiscoverOptions{Changed: input.Changed})
	if err != nil {
		return nil, err
	}
	if scope.Kind != rewrite.WholeFile && len(files) != 1 {
		return nil, errScopeNeedsOneFile
	}
	return files, nil
}

// findings runs Explain over input and flattens the verdicts.
func (s *Server) findings(ctx context.Context, input TargetInput) ([]report.Finding, error) {
	scope, err := rewrite.ParseScope(input.Scope)
	if err != nil {
		return nil, err
	}

	if input.Content != "" {
		path := contentPath(input)
		diags, err := s.service.ExplainContent(path, []byte(input.Content), scope)
		if err != nil {
			return nil, err
		}
		return report.FindingsOf(path, diags), nil
	}

	files, err := s.files(input, scope)
	if err != nil {
		return nil, err
	}
	explained, errs := s.service.Explain(ctx, files, scope, "")
	if errs != nil {
		return nil, errs
	}
	var out []report.Finding
	for _, f := range explained {
		out = append(out, report.FindingsOf(f.Path, f.Diagnoses)...)
	}
	return out, nil
}

func (s *Server) handleList(ctx context.Context, req *mcp.CallToolRequest, input TargetInput) (*mcp.CallToolResult, any, error) {
	all, err := s.findings(ctx, input)
	if err != nil {
		return toolError(err.Error())
	}
	var eligible []report.Finding
	for _, f := range all {
		if f.Eligible {
			eligible = append(eligible, f)
		}
	}
	return toolResult(report.NewFindings("Qualifiable self calls", eligible), getFormat(input))
}

func (s *Server) handleExplain(ctx context.Context, req *mcp.CallToolRequest, input TargetInput) (*mcp.CallToolResult, any, error) {
	all, err := s.findings(ctx, input)
	if err != nil {
		return toolError(err.Error())
	}
	return toolResult(report.NewFindings("Call verdicts", all), getFormat(input))
}

func (s *Server) handleQualify(ctx context.Context, req *mcp.CallToolRequest, input QualifyInput) (*mcp.CallToolResult, any, error) {
	scope, err := rewrite.ParseScope(input.Scope)
	if err != nil {
		return toolError(err.Error())
	}
	format := getFormat(input.TargetInput)

	if input.Content != "" {
		path := contentPath(input.TargetInput)
		res, err := s.service.QualifyContent(ctx, path, []byte(input.Content), scope)
		if err != nil && res == nil {
			return toolError(err.Error())
		}
		return toolResult(&ContentOutput{
			Path:     path,
			Eligible: res.Report.Eligible,
			Applied:  res.Report.Applied(),
			Outcomes: res.Report.Outcomes,
			Diff:     res.Diff,
			Source:   res.Source,
		}, format)
	}

	files, err := s.files(input.TargetInput, scope)
	if err != nil {
		return toolError(err.Error())
	}
	result, err := s.service.Qualify(ctx, files, qualify.Options{
		Scope:  scope,
		DryRun: input.DryRun,
		Diff:   input.DryRun,
	})
	if err != nil {
		return toolError(err.Error())
	}

	title := "Qualified self calls"
	if input.DryRun {
		title = "Self calls (dry run)"
	}
	out := &BatchOutput{Report: report.New(title, input.DryRun, result.Summaries())}
	if input.DryRun {
		rendered, err := diffview.Render(result.Diffs()...)
		if err != nil {
			return toolError(fmt.Sprintf("rendering diff: %v", err))
		}
		out.Diff = string(rendered)
	}
	if format == output.FormatMarkdown {
		return toolResult(out.Report, format)
	}
	return toolResult(out, format)
}
