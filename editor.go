package editforge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gofrs/flock"
)

const lockPollInterval = 10 * time.Millisecond

// ProgressFunc receives incremental progress while a batch runs. current is
// 1-based. The editor works fine with no callback attached.
type ProgressFunc func(current, total int, filePath string)

type EditorOptions struct {
	DryRun       bool
	CreateBackup bool
	ProjectRoot  string
	MaxFileSize  int64
	LockTimeout  time.Duration
	Progress     ProgressFunc
}

func DefaultEditorOptions() EditorOptions {
	return EditorOptions{
		CreateBackup: true,
		MaxFileSize:  DefaultMaxFileSize,
		LockTimeout:  DefaultLockTimeout,
	}
}

type Editor interface {
	ApplyEdits(ctx context.Context, edits []EditOperation, opts EditorOptions) (*BatchResult, error)
}

// FileEditor applies batches of find/replace edits. Edits run strictly in
// input order; later edits against the same file observe earlier results
// because each edit performs its own read-modify-write. Concurrent external
// modification between that read and write is not guarded against beyond
// the advisory lock held for the write itself.
type FileEditor struct {
	config  *Config
	diff    *DiffEngine
	history *HistoryStore
	logger  *slog.Logger
}

func NewFileEditor(config *Config, logger *slog.Logger) (*FileEditor, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	e := &FileEditor{
		config: config,
		diff:   NewDiffEngine(),
		logger: logger,
	}

	if config.HistoryDB != "" {
		history, err := OpenHistory(config.HistoryDB)
		if err != nil {
			return nil, fmt.Errorf("failed to open history database: %w", err)
		}
		e.history = history
	}

	return e, nil
}

// History returns the run-history store, or nil when none is configured.
func (e *FileEditor) History() *HistoryStore {
	return e.history
}

func (e *FileEditor) Close() error {
	if e.history != nil {
		return e.history.Close()
	}
	return nil
}

// ApplyEdits processes every edit in order and returns one result per edit.
// Pre-condition violations (empty batch, unresolvable root, invalid regex)
// fail the whole call before any file is touched; everything else lands in
// per-item statuses. When any edit failed and this was not a dry run, every
// backed-up file is restored from its backup on a best-effort basis.
func (e *FileEditor) ApplyEdits(ctx context.Context, edits []EditOperation, opts EditorOptions) (*BatchResult, error) {
	if len(edits) == 0 {
		return nil, fmt.Errorf("edit list cannot be empty")
	}

	boundary, err := NewBoundary(opts.ProjectRoot)
	if err != nil {
		return nil, err
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = e.config.MaxFileSize
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = e.config.LockTimeout()
	}

	// Compile all regex patterns up front so an invalid one rejects the
	// whole batch before any file is touched.
	patterns := make(map[string]*regexp.Regexp)
	for _, edit := range edits {
		if !edit.UseRegex {
			continue
		}
		if _, ok := patterns[edit.OldString]; ok {
			continue
		}
		re, err := regexp.Compile(edit.OldString)
		if err != nil {
			return nil, fmt.Errorf("invalid regex pattern %q: %w", edit.OldString, err)
		}
		patterns[edit.OldString] = re
	}

	result := &BatchResult{Results: make([]EditResult, 0, len(edits))}
	backups := make(map[string]string)

	for i, edit := range edits {
		if opts.Progress != nil {
			opts.Progress(i+1, len(edits), edit.FilePath)
		}

		var res EditResult
		if err := ctx.Err(); err != nil {
			// Cancellation fails the remaining edits, which routes the
			// batch through the normal rollback below.
			res = EditResult{
				FilePath: edit.FilePath,
				Status:   EditFailed,
				Reason:   fmt.Sprintf("operation cancelled: %v", err),
			}
		} else {
			res = e.processEdit(edit, boundary, patterns, backups, opts)
		}
		result.Results = append(result.Results, res)
	}

	result.Summary.Total = len(result.Results)
	for _, res := range result.Results {
		switch res.Status {
		case EditApplied:
			result.Summary.Applied++
		case EditSkipped:
			result.Summary.Skipped++
		case EditFailed:
			result.Summary.Failed++
		}
	}
	result.Success = result.Summary.Failed == 0

	if !opts.DryRun && result.Summary.Failed > 0 && len(backups) > 0 {
		result.RollbackErrors = e.rollback(backups)
	}

	if e.history != nil {
		if _, err := e.history.RecordBatch(boundary.Root(), opts.DryRun, result); err != nil {
			e.logger.Warn("failed to record batch in history", "error", err)
		}
	}

	e.logger.Info("batch edit complete",
		"total", result.Summary.Total,
		"applied", result.Summary.Applied,
		"skipped", result.Summary.Skipped,
		"failed", result.Summary.Failed,
		"dry_run", opts.DryRun)

	return result, nil
}

func (e *FileEditor) processEdit(edit EditOperation, boundary *Boundary, patterns map[string]*regexp.Regexp, backups map[string]string, opts EditorOptions) EditResult {
	res := EditResult{FilePath: edit.FilePath}

	if edit.OldString == "" {
		res.Status = EditFailed
		res.Reason = "old_string cannot be empty"
		return res
	}

	path, err := boundary.Resolve(edit.FilePath)
	if err != nil {
		res.Status = EditFailed
		if errors.Is(err, ErrOutsideBoundary) {
			res.Reason = fmt.Sprintf("Path outside project boundary: %s", boundary.Root())
		} else {
			res.Reason = err.Error()
		}
		return res
	}

	info, err := os.Stat(path)
	if err != nil {
		res.Status = EditFailed
		if os.IsNotExist(err) {
			res.Reason = fmt.Sprintf("File not found: %s", edit.FilePath)
		} else {
			res.Reason = err.Error()
		}
		return res
	}
	if !info.Mode().IsRegular() {
		res.Status = EditFailed
		res.Reason = fmt.Sprintf("Not a regular file: %s", edit.FilePath)
		return res
	}
	if info.Size() > opts.MaxFileSize {
		res.Status = EditSkipped
		res.Reason = fmt.Sprintf("File exceeds maximum size of %d bytes", opts.MaxFileSize)
		return res
	}

	data, err := os.ReadFile(path)
	if err != nil {
		res.Status = EditFailed
		res.Reason = err.Error()
		return res
	}
	if !utf8.Valid(data) {
		res.Status = EditFailed
		res.Reason = "File is not valid UTF-8"
		return res
	}
	content := string(data)

	var newContent string
	if edit.UseRegex {
		re := patterns[edit.OldString]
		if !re.MatchString(content) {
			res.Status = EditSkipped
			res.Reason = "Old string/pattern not found in file"
			return res
		}
		newContent = replaceRegex(re, content, edit.NewString, edit.ReplaceAll)
	} else {
		count := strings.Count(content, edit.OldString)
		if count == 0 {
			res.Status = EditSkipped
			res.Reason = "Old string/pattern not found in file"
			return res
		}
		if count > 1 && !edit.ReplaceAll {
			// Never silently pick "the first" occurrence the caller did
			// not ask for.
			res.Status = EditSkipped
			res.Reason = fmt.Sprintf("Multiple occurrences found (%d). Use replace_all: true to replace all.", count)
			return res
		}
		if edit.ReplaceAll {
			newContent = strings.ReplaceAll(content, edit.OldString, edit.NewString)
		} else {
			newContent = strings.Replace(content, edit.OldString, edit.NewString, 1)
		}
	}

	res.Diff = e.diff.Diff(content, newContent, edit.FilePath, e.config.DiffContextLines).UnifiedDiff

	if opts.DryRun {
		res.Status = EditApplied
		res.Reason = edit.Description
		if res.Reason == "" {
			res.Reason = "Dry run - changes not written"
		}
		return res
	}

	if opts.CreateBackup {
		if backup, ok := backups[path]; ok {
			// One backup per file per batch run; later edits reuse it.
			res.Backup = backup
		} else {
			backup := path + ".bak"
			if err := copyFile(path, backup); err != nil {
				res.Status = EditFailed
				res.Reason = fmt.Sprintf("Backup failed: %v", err)
				return res
			}
			backups[path] = backup
			res.Backup = backup
		}
	}

	if err := writeLocked(path, []byte(newContent), info.Mode().Perm(), opts.LockTimeout); err != nil {
		res.Status = EditFailed
		res.Reason = err.Error()
		return res
	}

	res.Status = EditApplied
	res.Reason = edit.Description
	return res
}

// replaceRegex substitutes the pattern, expanding $1-style references in
// replacement. When all is false only the first match is replaced.
func replaceRegex(re *regexp.Regexp, content, replacement string, all bool) string {
	if all {
		return re.ReplaceAllString(content, replacement)
	}
	replaced := false
	return re.ReplaceAllStringFunc(content, func(m string) string {
		if replaced {
			return m
		}
		replaced = true
		idx := re.FindStringSubmatchIndex(m)
		return string(re.ExpandString(nil, replacement, m, idx))
	})
}

// rollback restores every backed-up file. A failure on one file does not
// stop the others; failures are returned for the caller to report.
func (e *FileEditor) rollback(backups map[string]string) []string {
	var failures []string
	for path, backup := range backups {
		if err := copyFile(backup, path); err != nil {
			e.logger.Error("rollback failed", "file", path, "backup", backup, "error", err)
			failures = append(failures, fmt.Sprintf("%s: %v", path, err))
			continue
		}
		e.logger.Info("rolled back file", "file", path, "backup", backup)
	}
	return failures
}

// writeLocked overwrites path under an advisory OS lock so two editors
// cannot interleave writes to the same file.
func writeLocked(path string, data []byte, perm os.FileMode, timeout time.Duration) error {
	lockPath := path + ".lock"
	fl := flock.New(lockPath)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	locked, err := fl.TryLockContext(ctx, lockPollInterval)
	if err != nil {
		return fmt.Errorf("could not lock %s: %w", path, err)
	}
	if !locked {
		return fmt.Errorf("could not lock %s: timeout", path)
	}
	defer func() {
		_ = fl.Unlock()
		_ = os.Remove(lockPath)
	}()

	return os.WriteFile(path, data, perm)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
