package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/octofhir/fshlint/internal/autofix"
	"github.com/octofhir/fshlint/internal/diag"
	"github.com/octofhir/fshlint/internal/lint"
	"github.com/octofhir/fshlint/internal/semantic"
	"github.com/octofhir/fshlint/internal/text"
)

const (
	exitOK       = 0
	exitIssues   = 1
	exitInternal = 3

	outputFormatText = "text"
	outputFormatJSON = "json"
)

type cliOptions struct {
	stdin          bool
	assumeFilename string
	format         string
	fix            bool
	fixUnsafe      bool
	preview        bool
	path           string
}

type diagnosticJSON struct {
	URI       string `json:"uri"`
	RuleID    string `json:"ruleId"`
	Category  string `json:"category"`
	Severity  string `json:"severity"`
	Message   string `json:"message"`
	StartLine int    `json:"startLine"`
	StartCol  int    `json:"startCol"`
	EndLine   int    `json:"endLine"`
	EndCol    int    `json:"endCol"`
}

var defaultLintRunner = lint.NewDefaultRunner()

func run(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, args []string) int {
	opts, usage, err := parseArgs(args)
	if err != nil {
		writef(stderr, "fshlint: %v\n\n%s", err, usage)
		return exitInternal
	}

	src, uri, err := readInput(stdin, opts)
	if err != nil {
		writef(stderr, "fshlint: %v\n", err)
		return exitInternal
	}

	doc := semantic.IndexDocument(uri, src)

	diags, err := collectDiagnostics(ctx, doc)
	if err != nil {
		writef(stderr, "fshlint: lint failed: %v\n", err)
		return exitInternal
	}

	if opts.preview {
		return runPreview(stdout, stderr, opts, src, diags)
	}
	if opts.fix || opts.fixUnsafe {
		return runFix(stdout, stderr, opts, src, diags)
	}

	if len(diags) == 0 {
		return exitOK
	}
	if err := writeDiagnosticsOutput(opts.format, stdout, stderr, doc.Tree.LineIndex, src, uri, diags); err != nil {
		writef(stderr, "fshlint: %v\n", err)
		return exitInternal
	}
	return exitIssues
}

func runFix(stdout, stderr io.Writer, opts cliOptions, src []byte, diags []diag.Diagnostic) int {
	mode := autofix.SafeOnly
	if opts.fixUnsafe {
		mode = autofix.All
	}
	plan, err := autofix.Compute(diags, mode)
	if err != nil {
		writef(stderr, "fshlint: %v\n", err)
		return exitInternal
	}
	fixed, err := autofix.Apply(src, plan)
	if err != nil {
		writef(stderr, "fshlint: %v\n", err)
		return exitInternal
	}
	for _, d := range plan.Discarded {
		writef(stderr, "fshlint: discarded %s suggestion %q (conflicts with %s)\n", d.RuleID, d.Description, d.WinningRuleID)
	}
	_, _ = stdout.Write(fixed)
	if len(diags) > len(plan.Accepted) {
		return exitIssues
	}
	return exitOK
}

func runPreview(stdout, stderr io.Writer, opts cliOptions, src []byte, diags []diag.Diagnostic) int {
	mode := autofix.SafeOnly
	if opts.fixUnsafe {
		mode = autofix.All
	}
	d, _, err := autofix.Preview(diags, src, mode)
	if err != nil {
		writef(stderr, "fshlint: %v\n", err)
		return exitInternal
	}
	_, _ = io.WriteString(stdout, d.String())
	if len(d.Hunks) == 0 {
		return exitOK
	}
	return exitIssues
}

func parseArgs(args []string) (cliOptions, string, error) {
	var opts cliOptions
	fs := flag.NewFlagSet("fshlint", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.BoolVar(&opts.stdin, "stdin", false, "read input from stdin")
	fs.StringVar(&opts.assumeFilename, "assume-filename", "", "filename/URI used for parser context and diagnostics")
	fs.StringVar(&opts.format, "format", outputFormatText, "diagnostic output format: text|json")
	fs.BoolVar(&opts.fix, "fix", false, "apply safe autofix suggestions and print the result")
	fs.BoolVar(&opts.fixUnsafe, "fix-unsafe", false, "apply all autofix suggestions, including unsafe ones")
	fs.BoolVar(&opts.preview, "preview", false, "print a diff of what --fix (or --fix-unsafe) would change, without applying it")

	usage := cliUsage(fs)
	if err := fs.Parse(args); err != nil {
		return cliOptions{}, usage, err
	}

	if !isSupportedOutputFormat(opts.format) {
		return cliOptions{}, usage, errors.New("--format must be one of: text, json")
	}
	if opts.fix && opts.preview {
		return cliOptions{}, usage, errors.New("--fix and --preview may not be used together")
	}

	rest := fs.Args()
	switch {
	case opts.stdin && len(rest) > 0:
		return cliOptions{}, usage, errors.New("positional file path is not allowed with --stdin")
	case !opts.stdin && len(rest) == 0:
		return cliOptions{}, usage, errors.New("exactly one input file path is required (or use --stdin)")
	case !opts.stdin && len(rest) != 1:
		return cliOptions{}, usage, errors.New("linting multiple files in one invocation is not supported")
	}
	if !opts.stdin {
		opts.path = rest[0]
	}
	return opts, usage, nil
}

func cliUsage(fs *flag.FlagSet) string {
	var b strings.Builder
	b.WriteString("Usage:\n")
	b.WriteString("  fshlint [flags] path/to/file.fsh\n")
	b.WriteString("  fshlint --stdin [--assume-filename foo.fsh] [flags]\n\n")
	b.WriteString("Flags:\n")
	fs.VisitAll(func(f *flag.Flag) {
		writef(&b, "  --%s\t%s\n", f.Name, f.Usage)
	})
	return b.String()
}

func readInput(stdin io.Reader, opts cliOptions) ([]byte, string, error) {
	if opts.stdin {
		src, err := io.ReadAll(stdin)
		if err != nil {
			return nil, "", fmt.Errorf("read stdin: %w", err)
		}
		uri := opts.assumeFilename
		if uri == "" {
			uri = "stdin.fsh"
		}
		return src, uri, nil
	}
	//nolint:gosec // CLI intentionally reads user-provided file paths.
	src, err := os.ReadFile(opts.path)
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", opts.path, err)
	}
	return src, opts.path, nil
}

func collectDiagnostics(ctx context.Context, doc *semantic.Document) ([]diag.Diagnostic, error) {
	if doc == nil {
		return nil, errors.New("nil semantic document")
	}
	return defaultLintRunner.Run(ctx, doc)
}

func isSupportedOutputFormat(v string) bool {
	switch v {
	case outputFormatText, outputFormatJSON:
		return true
	default:
		return false
	}
}

func writeDiagnosticsOutput(format string, stdout, stderr io.Writer, li *text.LineIndex, src []byte, uri string, diags []diag.Diagnostic) error {
	switch format {
	case outputFormatText:
		writeDiagnostics(stderr, li, src, uri, diags)
		return nil
	case outputFormatJSON:
		return writeJSONDiagnostics(stdout, li, uri, diags)
	default:
		return fmt.Errorf("unsupported --format %q", format)
	}
}

func writeDiagnostics(w io.Writer, li *text.LineIndex, src []byte, uri string, diags []diag.Diagnostic) {
	if len(diags) == 0 {
		return
	}
	for i, d := range diags {
		if i > 0 {
			writeln(w)
		}
		prefix := "fshlint"
		if uri != "" {
			prefix = uri
		}
		writeDiagnosticHeader(w, prefix, li, d)
		writeDiagnosticSnippet(w, src, d)
	}
}

func writeDiagnosticHeader(w io.Writer, prefix string, li *text.LineIndex, d diag.Diagnostic) {
	loc := d.Span.String()
	if li != nil && d.Span.Start.IsValid() {
		if p, err := li.OffsetToPoint(d.Span.Start); err == nil {
			loc = fmt.Sprintf("%d:%d", p.Line+1, p.Column+1)
		}
	}
	writef(
		w,
		"%s:%s: %s: %s/%s: %s\n",
		prefix,
		loc,
		diagnosticSeverityLetter(d.Severity),
		d.Category,
		d.RuleID,
		d.Message,
	)
}

func writeDiagnosticSnippet(w io.Writer, src []byte, d diag.Diagnostic) {
	if !d.Span.Start.IsValid() || int(d.Span.Start) > len(src) {
		return
	}
	lineStart, lineEnd := sourceLineAt(src, int(d.Span.Start))
	lineText := src[lineStart:lineEnd]
	startCol := min(max(int(d.Span.Start)-lineStart, 0), len(lineText))
	caretWidth := diagnosticCaretWidth(d, lineEnd, startCol, len(lineText))
	caretPrefix := caretPrefixForLine(lineText, startCol)

	writeln(w, string(lineText))
	writeString(w, caretPrefix)
	writeString(w, strings.Repeat("^", caretWidth))
	writeln(w)
}

func diagnosticCaretWidth(d diag.Diagnostic, lineEnd, startCol, lineLen int) int {
	if lineLen == 0 {
		return 1
	}
	if !d.Span.End.IsValid() || int(d.Span.End) <= int(d.Span.Start) {
		return 1
	}
	end := int(d.Span.End)
	if end > lineEnd {
		if startCol >= lineLen {
			return 1
		}
		return lineLen - startCol
	}
	endCol := end - (lineEnd - lineLen)
	if endCol < startCol {
		return 1
	}
	if endCol > lineLen {
		endCol = lineLen
	}
	if endCol == startCol {
		return 1
	}
	return endCol - startCol
}

// sourceLineAt returns the [start,end) byte bounds of the line containing
// off, excluding the trailing newline.
func sourceLineAt(src []byte, off int) (start, end int) {
	start = bytes.LastIndexByte(src[:off], '\n') + 1
	if nl := bytes.IndexByte(src[off:], '\n'); nl >= 0 {
		end = off + nl
	} else {
		end = len(src)
	}
	return start, end
}

func caretPrefixForLine(line []byte, col int) string {
	if col <= 0 {
		return ""
	}
	if col > len(line) {
		col = len(line)
	}
	var b strings.Builder
	b.Grow(col)
	for _, ch := range line[:col] {
		if ch == '\t' {
			b.WriteByte('\t')
			continue
		}
		b.WriteByte(' ')
	}
	return b.String()
}

func writeJSONDiagnostics(w io.Writer, li *text.LineIndex, uri string, diags []diag.Diagnostic) error {
	payload := make([]diagnosticJSON, 0, len(diags))
	for _, d := range diags {
		start, end, err := diagnosticPoints(li, d.Span)
		if err != nil {
			return err
		}
		payload = append(payload, diagnosticJSON{
			URI:       uri,
			RuleID:    d.RuleID,
			Category:  string(d.Category),
			Severity:  d.Severity.String(),
			Message:   d.Message,
			StartLine: start.Line + 1,
			StartCol:  start.Column + 1,
			EndLine:   end.Line + 1,
			EndCol:    end.Column + 1,
		})
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

func diagnosticPoints(li *text.LineIndex, sp text.Span) (text.Point, text.Point, error) {
	if li == nil {
		return text.Point{}, text.Point{}, errors.New("nil line index")
	}
	clamped := clampSpanToSource(sp, li.SourceLen())
	start, err := li.OffsetToPoint(clamped.Start)
	if err != nil {
		return text.Point{}, text.Point{}, err
	}
	end, err := li.OffsetToPoint(clamped.End)
	if err != nil {
		return text.Point{}, text.Point{}, err
	}
	return start, end, nil
}

func clampSpanToSource(sp text.Span, srcLen text.ByteOffset) text.Span {
	if !sp.Start.IsValid() {
		sp.Start = 0
	}
	if !sp.End.IsValid() {
		sp.End = sp.Start
	}
	if sp.Start > srcLen {
		sp.Start = srcLen
	}
	if sp.End > srcLen {
		sp.End = srcLen
	}
	if sp.End < sp.Start {
		sp.End = sp.Start
	}
	return sp
}

func diagnosticSeverityLetter(s diag.Severity) string {
	switch s {
	case diag.SeverityError:
		return "E"
	case diag.SeverityWarning:
		return "W"
	case diag.SeverityInfo:
		return "I"
	case diag.SeverityHint:
		return "H"
	default:
		return "E"
	}
}

func writef(w io.Writer, format string, args ...any) {
	//nolint:gosec // Terminal/debug output helper; format strings are internal callsite constants.
	_, _ = io.WriteString(w, fmt.Sprintf(format, args...))
}

func writeln(w io.Writer, args ...any) {
	//nolint:gosec // Terminal/debug output helper.
	_, _ = fmt.Fprintln(w, args...)
}

func writeString(w io.Writer, s string) {
	//nolint:gosec // Terminal/debug output helper.
	_, _ = io.WriteString(w, s)
}
