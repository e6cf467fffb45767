package editforge

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RunCmdOptions contains options for customizing RunCmd behavior
type RunCmdOptions struct {
	// MCPTransport allows providing a custom transport for MCP server (used for testing)
	MCPTransport *mcp.InMemoryTransport
	// Stdout writer for normal output (defaults to os.Stdout)
	Stdout io.Writer
	// Stderr writer for error output (defaults to os.Stderr)
	Stderr io.Writer
}

// commandContext holds runtime context for command execution
type commandContext struct {
	stdout   io.Writer
	stderr   io.Writer
	config   *Config
	editor   *FileEditor
	searcher PatternSearcher
	engine   *DiffEngine
}

func RunCmd(args []string, options *RunCmdOptions) error {
	stdout := io.Writer(os.Stdout)
	stderr := io.Writer(os.Stderr)
	if options != nil {
		if options.Stdout != nil {
			stdout = options.Stdout
		}
		if options.Stderr != nil {
			stderr = options.Stderr
		}
	}

	if len(args) < 1 {
		return ShowHelp(stdout)
	}

	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)

	var (
		help       = fs.Bool("h", false, "Show help")
		mcpOption  = fs.Bool("mcp", false, "Run as MCP server")
		verbose    = fs.Bool("v", false, "Verbose output")
		dryRun     = fs.Bool("dry-run", false, "Show what would be changed without making changes")
		configFile = fs.String("config", "", "Path to configuration file")
	)

	if len(args) > 1 {
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
	}

	if *help {
		return ShowHelp(stdout)
	}

	if *mcpOption {
		var transport *mcp.InMemoryTransport
		if options != nil && options.MCPTransport != nil {
			transport = options.MCPTransport
		}
		return RunMCPServer(*configFile, transport)
	}

	remaining := fs.Args()
	if len(remaining) == 0 {
		return ShowHelp(stdout)
	}

	config, err := LoadConfig(*configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if *verbose {
		config.LogLevel = "debug"
	}

	logger, closeLogger, err := NewLogger(config)
	if err != nil {
		return err
	}
	defer closeLogger()

	editor, err := NewFileEditor(config, logger)
	if err != nil {
		return err
	}
	defer func() { _ = editor.Close() }()

	cmdCtx := &commandContext{
		stdout:   stdout,
		stderr:   stderr,
		config:   config,
		editor:   editor,
		searcher: NewFilesystemSearcher(config, logger),
		engine:   NewDiffEngine(),
	}

	ctx := context.Background()

	switch remaining[0] {
	case "edit":
		return editCommand(ctx, cmdCtx, remaining[1:], *dryRun, *verbose)
	case "search":
		return searchCommand(ctx, cmdCtx, remaining[1:], *verbose)
	case "diff":
		return diffCommand(ctx, cmdCtx, remaining[1:], *verbose)
	case "history":
		return historyCommand(ctx, cmdCtx, remaining[1:], *verbose)
	default:
		return fmt.Errorf("unknown command: %s", remaining[0])
	}
}

func ShowHelp(w io.Writer) error {
	help := `Editforge - Batch text editing tools for agent workflows

Usage:
  editforge [OPTIONS] COMMAND [ARGS...]
  editforge -mcp                Run as MCP server

Options:
  -h, --help           Show this help message
  -v, --verbose        Enable verbose output
  --dry-run            Preview changes without modifying files
  --config FILE        Path to configuration file
  -mcp                 Run as MCP server

Commands:
  edit         Apply find/replace edits to files, with dry-run and rollback
  search       Search files for a literal or regex pattern
  diff         Generate a unified diff between two files
  history      List recent batch edit runs

Examples:
  editforge edit --file="main.go" --old="foo" --new="bar" --root="/path/to/project"
  editforge edit --edits="changes.json" --root="/path/to/project" --dry-run
  editforge search --pattern="TODO" --targets="src,docs" --max-results=50
  editforge search --pattern="func \w+" --regex --targets="." --json
  editforge diff --original=a.txt --modified=b.txt --context=3
  editforge history --max-results=10 --json
  editforge -mcp --config="/path/to/config.yaml"

For more information, visit: https://github.com/editforge/editforge
`
	_, _ = fmt.Fprint(w, help)
	return nil
}

func editCommand(ctx context.Context, cmdCtx *commandContext, args []string, globalDryRun bool, verbose bool) error {
	fs := flag.NewFlagSet("edit", flag.ContinueOnError)

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	editsFile := fs.String("edits", "", "Path to a JSON file containing a list of edit operations")
	file := fs.String("file", "", "File to edit (single-edit mode)")
	oldStr := fs.String("old", "", "Text or regex pattern to find")
	newStr := fs.String("new", "", "Replacement text")
	useRegex := fs.Bool("regex", false, "Interpret --old as a regular expression")
	replaceAll := fs.Bool("replace-all", false, "Replace every occurrence instead of requiring a unique one")
	root := fs.String("root", cwd, "Project root; edits outside it are rejected")
	noBackup := fs.Bool("no-backup", false, "Skip creating .bak backup files")
	jsonOutput := fs.Bool("json", false, "Output as JSON")
	localDryRun := fs.Bool("dry-run", false, "Show what would be changed without making changes")

	if err := fs.Parse(args); err != nil {
		return err
	}

	var edits []EditOperation
	switch {
	case *editsFile != "":
		data, err := os.ReadFile(*editsFile)
		if err != nil {
			return fmt.Errorf("failed to read edits file: %w", err)
		}
		if err := json.Unmarshal(data, &edits); err != nil {
			return fmt.Errorf("invalid edits file: %w", err)
		}
	case *file != "" && *oldStr != "":
		edits = []EditOperation{{
			FilePath:   *file,
			OldString:  *oldStr,
			NewString:  *newStr,
			UseRegex:   *useRegex,
			ReplaceAll: *replaceAll,
		}}
	default:
		return fmt.Errorf("either --edits or both --file and --old are required")
	}

	dryRun := globalDryRun || *localDryRun
	if dryRun && !*jsonOutput {
		_, _ = fmt.Fprintln(cmdCtx.stdout, "DRY RUN MODE - No files will be modified")
	}

	opts := DefaultEditorOptions()
	opts.DryRun = dryRun
	opts.CreateBackup = !*noBackup && cmdCtx.config.CreateBackups
	opts.ProjectRoot = *root

	result, err := cmdCtx.editor.ApplyEdits(ctx, edits, opts)
	if err != nil {
		return err
	}

	if *jsonOutput {
		return json.NewEncoder(cmdCtx.stdout).Encode(result)
	}

	_, _ = fmt.Fprintf(cmdCtx.stdout, "\n%d edits: %d applied, %d skipped, %d failed\n",
		result.Summary.Total, result.Summary.Applied, result.Summary.Skipped, result.Summary.Failed)

	for _, res := range result.Results {
		line := fmt.Sprintf("  %-8s %s", res.Status, res.FilePath)
		if res.Reason != "" {
			line += ": " + res.Reason
		}
		_, _ = fmt.Fprintln(cmdCtx.stdout, line)
		if verbose && res.Diff != "" {
			_, _ = fmt.Fprintln(cmdCtx.stdout, res.Diff)
		}
	}

	if len(result.RollbackErrors) > 0 {
		_, _ = fmt.Fprintf(cmdCtx.stdout, "\nRollback errors: %d\n", len(result.RollbackErrors))
		for _, msg := range result.RollbackErrors {
			_, _ = fmt.Fprintf(cmdCtx.stdout, "  %s\n", msg)
		}
	}

	if !result.Success {
		return fmt.Errorf("completed with %d failed edits", result.Summary.Failed)
	}
	return nil
}

func searchCommand(ctx context.Context, cmdCtx *commandContext, args []string, verbose bool) error {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)

	pattern := fs.String("pattern", "", "Literal text or regex pattern to search for")
	targets := fs.String("targets", ".", "Comma-separated files, directories, or globs")
	useRegex := fs.Bool("regex", false, "Interpret --pattern as a regular expression")
	caseSensitive := fs.Bool("case-sensitive", false, "Match case exactly")
	maxResults := fs.Int("max-results", DefaultMaxResults, "Maximum matches to collect")
	contextLines := fs.Int("context", DefaultContextLines, "Context lines around each match")
	noContext := fs.Bool("no-context", false, "Omit context lines")
	jsonOutput := fs.Bool("json", false, "Output as JSON")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *pattern == "" {
		return fmt.Errorf("--pattern is required")
	}

	targetList := strings.Split(*targets, ",")
	for i := range targetList {
		targetList[i] = strings.TrimSpace(targetList[i])
	}

	opts := DefaultSearchOptions()
	opts.IsRegex = *useRegex
	opts.CaseSensitive = *caseSensitive
	opts.MaxResults = *maxResults
	opts.ContextLines = *contextLines
	opts.IncludeContext = !*noContext
	opts.MaxFileSize = cmdCtx.config.MaxFileSize

	result, err := cmdCtx.searcher.Search(ctx, *pattern, targetList, opts)
	if err != nil {
		return err
	}

	if *jsonOutput {
		return json.NewEncoder(cmdCtx.stdout).Encode(result)
	}

	_, _ = fmt.Fprintf(cmdCtx.stdout, "\n%d matches in %d of %d files searched\n",
		result.Stats.TotalMatches, result.Stats.FilesWithMatches, result.Stats.FilesSearched)
	if result.Truncated {
		_, _ = fmt.Fprintln(cmdCtx.stdout, "(result cap reached, output truncated)")
	}

	for _, match := range result.Matches {
		_, _ = fmt.Fprintf(cmdCtx.stdout, "%s:%d:%d: %s\n", match.File, match.Line, match.Column, match.Content)
		if verbose && match.Context != nil {
			for _, line := range match.Context.Before {
				_, _ = fmt.Fprintf(cmdCtx.stdout, "    | %s\n", line)
			}
			for _, line := range match.Context.After {
				_, _ = fmt.Fprintf(cmdCtx.stdout, "    | %s\n", line)
			}
		}
	}

	return nil
}

func diffCommand(ctx context.Context, cmdCtx *commandContext, args []string, verbose bool) error {
	fs := flag.NewFlagSet("diff", flag.ContinueOnError)

	originalFile := fs.String("original", "", "Path to the original file")
	modifiedFile := fs.String("modified", "", "Path to the modified file")
	name := fs.String("name", "", "Filename for the patch header")
	contextLines := fs.Int("context", DefaultDiffContext, "Context lines per hunk")
	jsonOutput := fs.Bool("json", false, "Output as JSON")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *originalFile == "" || *modifiedFile == "" {
		return fmt.Errorf("both --original and --modified are required")
	}

	original, err := os.ReadFile(*originalFile)
	if err != nil {
		return fmt.Errorf("failed to read original: %w", err)
	}
	modified, err := os.ReadFile(*modifiedFile)
	if err != nil {
		return fmt.Errorf("failed to read modified: %w", err)
	}

	result := cmdCtx.engine.Diff(string(original), string(modified), *name, *contextLines)

	if *jsonOutput {
		return json.NewEncoder(cmdCtx.stdout).Encode(result)
	}

	if result.UnifiedDiff != "" {
		_, _ = fmt.Fprint(cmdCtx.stdout, result.UnifiedDiff)
	}
	_, _ = fmt.Fprintln(cmdCtx.stdout, result.Summary)
	return nil
}

func historyCommand(ctx context.Context, cmdCtx *commandContext, args []string, verbose bool) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)

	maxResults := fs.Int("max-results", 20, "Maximum runs to list")
	jsonOutput := fs.Bool("json", false, "Output as JSON")

	if err := fs.Parse(args); err != nil {
		return err
	}

	history := cmdCtx.editor.History()
	if history == nil {
		return fmt.Errorf("edit history is not configured; set history_db in the config file")
	}

	runs, err := history.RecentRuns(*maxResults)
	if err != nil {
		return err
	}

	if *jsonOutput {
		return json.NewEncoder(cmdCtx.stdout).Encode(runs)
	}

	_, _ = fmt.Fprintf(cmdCtx.stdout, "\n%d recorded runs:\n", len(runs))
	for _, run := range runs {
		mode := "write"
		if run.DryRun {
			mode = "dry-run"
		}
		_, _ = fmt.Fprintf(cmdCtx.stdout, "  #%d  %s  %s  %s  %d applied, %d skipped, %d failed\n",
			run.ID, run.StartedAt, mode, run.Root,
			run.Summary.Applied, run.Summary.Skipped, run.Summary.Failed)
		if verbose {
			edits, err := history.EditsForRun(run.ID)
			if err != nil {
				return err
			}
			for _, edit := range edits {
				_, _ = fmt.Fprintf(cmdCtx.stdout, "      %-8s %s\n", edit.Status, edit.FilePath)
			}
		}
	}

	return nil
}
