package editforge

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Parameter structures for MCP tools
type BatchEditParams struct {
	Edits        []EditOperation `json:"edits"`
	Root         string          `json:"root"`
	DryRun       bool            `json:"dry_run,omitempty"`
	CreateBackup *bool           `json:"create_backup,omitempty"`
	MaxFileSize  *int64          `json:"max_file_size,omitempty"`
}

type SearchPatternParams struct {
	Pattern        string   `json:"pattern"`
	Targets        []string `json:"targets"`
	IsRegex        bool     `json:"is_regex,omitempty"`
	CaseSensitive  bool     `json:"case_sensitive,omitempty"`
	MaxResults     *int     `json:"max_results,omitempty"`
	ContextLines   *int     `json:"context_lines,omitempty"`
	IncludeContext *bool    `json:"include_context,omitempty"`
	MaxFileSize    *int64   `json:"max_file_size,omitempty"`
}

type GenerateDiffParams struct {
	Original     string `json:"original"`
	Modified     string `json:"modified"`
	Filename     string `json:"filename,omitempty"`
	ContextLines *int   `json:"context_lines,omitempty"`
}

type ListEditHistoryParams struct {
	MaxResults *int `json:"max_results,omitempty"`
}

type EditHistoryEntry struct {
	Run   BatchRun       `json:"run"`
	Edits []RecordedEdit `json:"edits"`
}

// Tool handler functions
func BatchEditTool(ctx context.Context, req *mcp.CallToolRequest, args BatchEditParams, editor Editor, logger *slog.Logger) (*mcp.CallToolResult, any, error) {
	opts := DefaultEditorOptions()
	opts.DryRun = args.DryRun
	opts.ProjectRoot = args.Root
	if args.CreateBackup != nil {
		opts.CreateBackup = *args.CreateBackup
	}
	if args.MaxFileSize != nil {
		opts.MaxFileSize = *args.MaxFileSize
	}
	opts.Progress = func(current, total int, filePath string) {
		logger.Debug("processing edit", "current", current, "total", total, "file", filePath)
	}

	result, err := editor.ApplyEdits(ctx, args.Edits, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to apply edits: %w", err)
	}

	return nil, result, nil
}

func SearchPatternTool(ctx context.Context, req *mcp.CallToolRequest, args SearchPatternParams, searcher PatternSearcher) (*mcp.CallToolResult, any, error) {
	opts := DefaultSearchOptions()
	opts.IsRegex = args.IsRegex
	opts.CaseSensitive = args.CaseSensitive
	if args.MaxResults != nil {
		opts.MaxResults = *args.MaxResults
	}
	if args.ContextLines != nil {
		opts.ContextLines = *args.ContextLines
	}
	if args.IncludeContext != nil {
		opts.IncludeContext = *args.IncludeContext
	}
	if args.MaxFileSize != nil {
		opts.MaxFileSize = *args.MaxFileSize
	}

	result, err := searcher.Search(ctx, args.Pattern, args.Targets, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("search failed: %w", err)
	}

	return nil, result, nil
}

func GenerateDiffTool(ctx context.Context, req *mcp.CallToolRequest, args GenerateDiffParams, engine *DiffEngine) (*mcp.CallToolResult, any, error) {
	contextLines := 0
	if args.ContextLines != nil {
		contextLines = *args.ContextLines
	}

	result := engine.Diff(args.Original, args.Modified, args.Filename, contextLines)
	return nil, result, nil
}

func ListEditHistoryTool(ctx context.Context, req *mcp.CallToolRequest, args ListEditHistoryParams, history *HistoryStore) (*mcp.CallToolResult, any, error) {
	if history == nil {
		return nil, nil, fmt.Errorf("edit history is not configured; set history_db in the config file")
	}

	limit := 0
	if args.MaxResults != nil {
		limit = *args.MaxResults
	}

	runs, err := history.RecentRuns(limit)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list history: %w", err)
	}

	entries := make([]EditHistoryEntry, 0, len(runs))
	for _, run := range runs {
		edits, err := history.EditsForRun(run.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load edits for run %d: %w", run.ID, err)
		}
		entries = append(entries, EditHistoryEntry{Run: run, Edits: edits})
	}

	return nil, entries, nil
}

// RunMCPServer starts the MCP server implementation using the official Go SDK.
// If transport is nil, it will use stdio transport.
func RunMCPServer(configPath string, transport *mcp.InMemoryTransport) error {
	config, err := LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
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

	searcher := NewFilesystemSearcher(config, logger)
	engine := NewDiffEngine()

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "editforge",
		Version: "1.0.0",
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "batch_edit",
		Description: "Apply a batch of find/replace edits across files with dry-run, backup, and rollback",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args BatchEditParams) (*mcp.CallToolResult, any, error) {
		return BatchEditTool(ctx, req, args, editor, logger)
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_pattern",
		Description: "Search files and directories for a literal or regex pattern with context lines",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args SearchPatternParams) (*mcp.CallToolResult, any, error) {
		return SearchPatternTool(ctx, req, args, searcher)
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "generate_diff",
		Description: "Generate a unified diff between two texts with hunks and statistics",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args GenerateDiffParams) (*mcp.CallToolResult, any, error) {
		return GenerateDiffTool(ctx, req, args, engine)
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_edit_history",
		Description: "List recent batch edit runs recorded in the history database",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args ListEditHistoryParams) (*mcp.CallToolResult, any, error) {
		return ListEditHistoryTool(ctx, req, args, editor.History())
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	if transport != nil {
		// InMemoryTransport is used by tests.
		return server.Run(ctx, transport)
	}
	return server.Run(ctx, &mcp.StdioTransport{})
}
