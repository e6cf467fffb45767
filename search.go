package editforge

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"
)

type SearchOptions struct {
	IsRegex        bool  `json:"is_regex,omitempty"`
	CaseSensitive  bool  `json:"case_sensitive,omitempty"`
	MaxResults     int   `json:"max_results,omitempty"`
	IncludeContext bool  `json:"include_context,omitempty"`
	ContextLines   int   `json:"context_lines,omitempty"`
	MaxFileSize    int64 `json:"max_file_size,omitempty"`
}

func DefaultSearchOptions() SearchOptions {
	return SearchOptions{
		MaxResults:     DefaultMaxResults,
		IncludeContext: true,
		ContextLines:   DefaultContextLines,
		MaxFileSize:    DefaultMaxFileSize,
	}
}

type PatternSearcher interface {
	Search(ctx context.Context, pattern string, targets []string, opts SearchOptions) (*SearchResult, error)
}

// FilesystemSearcher scans files and directories for a literal or regex
// pattern. Unreadable, binary, and oversized files are skipped, not
// reported as errors.
type FilesystemSearcher struct {
	config *Config
	logger *slog.Logger
}

func NewFilesystemSearcher(config *Config, logger *slog.Logger) *FilesystemSearcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &FilesystemSearcher{config: config, logger: logger}
}

// compilePattern builds the matcher. Literal patterns are quoted so every
// metacharacter matches itself; both modes are case-insensitive unless
// asked otherwise. Go's regexp engine runs in time linear in the input, so
// caller-supplied patterns cannot trigger catastrophic backtracking.
func compilePattern(pattern string, isRegex, caseSensitive bool) (*regexp.Regexp, error) {
	src := pattern
	if !isRegex {
		src = regexp.QuoteMeta(pattern)
	}
	if !caseSensitive {
		src = "(?i)" + src
	}
	re, err := regexp.Compile(src)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	return re, nil
}

// Search scans every file the targets resolve to, in resolution order,
// until all files are scanned or the result cap is reached. An invalid
// regex fails the whole call; per-file problems only skip that file.
func (s *FilesystemSearcher) Search(ctx context.Context, pattern string, targets []string, opts SearchOptions) (*SearchResult, error) {
	if pattern == "" {
		return nil, fmt.Errorf("pattern cannot be empty")
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("at least one search target is required")
	}

	re, err := compilePattern(pattern, opts.IsRegex, opts.CaseSensitive)
	if err != nil {
		return nil, err
	}

	if opts.MaxResults <= 0 {
		opts.MaxResults = DefaultMaxResults
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = s.config.MaxFileSize
	}
	if opts.ContextLines < 0 {
		opts.ContextLines = DefaultContextLines
	}

	result := &SearchResult{Matches: []SearchMatch{}}

	for _, file := range s.resolveTargets(targets) {
		if ctx.Err() != nil {
			break
		}
		stop := s.scanFile(file, re, opts, result)
		if stop {
			break
		}
	}

	result.Stats.TotalMatches = len(result.Matches)
	return result, nil
}

// resolveTargets expands globs and directories into a deduplicated list of
// concrete file paths, preserving first-seen order.
func (s *FilesystemSearcher) resolveTargets(targets []string) []string {
	seen := make(map[string]bool)
	var files []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			files = append(files, p)
		}
	}

	for _, target := range targets {
		if strings.ContainsAny(target, "*?[") {
			matches, err := filepath.Glob(target)
			if err != nil {
				s.logger.Debug("bad glob pattern", "pattern", target, "error", err)
				continue
			}
			for _, m := range matches {
				s.addPath(m, add)
			}
			continue
		}
		s.addPath(target, add)
	}
	return files
}

func (s *FilesystemSearcher) addPath(p string, add func(string)) {
	info, err := os.Stat(p)
	if err != nil {
		return
	}
	if !info.IsDir() {
		add(p)
		return
	}

	_ = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			for _, exclude := range s.config.ExcludeDirs {
				if d.Name() == exclude {
					return filepath.SkipDir
				}
			}
			return nil
		}
		add(path)
		return nil
	})
}

// scanFile appends matches from one file to result. It returns true when
// the global result cap was hit with at least one more match available,
// which ends the search.
func (s *FilesystemSearcher) scanFile(path string, re *regexp.Regexp, opts SearchOptions, result *SearchResult) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		s.logger.Debug("skipping search target", "file", path, "reason", "not a regular file")
		result.Stats.FilesSkipped++
		return false
	}
	if info.Size() > opts.MaxFileSize {
		s.logger.Debug("skipping search target", "file", path, "reason", "exceeds max file size")
		result.Stats.FilesSkipped++
		return false
	}

	data, err := os.ReadFile(path)
	if err != nil || !utf8.Valid(data) {
		s.logger.Debug("skipping search target", "file", path, "reason", "unreadable or binary")
		result.Stats.FilesSkipped++
		return false
	}

	result.Stats.FilesSearched++
	lines := strings.Split(string(data), "\n")
	matched := false

	for i, line := range lines {
		var locs [][]int
		if opts.IsRegex {
			locs = re.FindAllStringIndex(line, -1)
		} else if loc := re.FindStringIndex(line); loc != nil {
			// Literal mode records only the first occurrence per line.
			locs = [][]int{loc}
		}

		for _, loc := range locs {
			if len(result.Matches) >= opts.MaxResults {
				result.Truncated = true
				if matched {
					result.Stats.FilesWithMatches++
				}
				return true
			}

			match := SearchMatch{
				File:    path,
				Line:    i + 1,
				Column:  utf8.RuneCountInString(line[:loc[0]]) + 1,
				Content: line,
			}
			if opts.IncludeContext {
				match.Context = lineContext(lines, i, opts.ContextLines)
			}
			result.Matches = append(result.Matches, match)
			matched = true
		}
	}

	if matched {
		result.Stats.FilesWithMatches++
	}
	return false
}

func lineContext(lines []string, idx, contextLines int) *SearchContext {
	before := lines[max(0, idx-contextLines):idx]
	after := lines[idx+1 : min(len(lines), idx+1+contextLines)]
	return &SearchContext{
		Before: append([]string{}, before...),
		After:  append([]string{}, after...),
	}
}
