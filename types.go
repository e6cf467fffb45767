package editforge

// EditStatus is the terminal outcome of a single edit operation.
type EditStatus string

const (
	EditApplied EditStatus = "applied"
	EditSkipped EditStatus = "skipped"
	EditFailed  EditStatus = "failed"
)

// EditOperation is one requested find/replace change against a single file.
type EditOperation struct {
	FilePath    string `json:"file_path"`
	OldString   string `json:"old_string"`
	NewString   string `json:"new_string"`
	UseRegex    bool   `json:"use_regex,omitempty"`
	ReplaceAll  bool   `json:"replace_all,omitempty"`
	Description string `json:"description,omitempty"`
}

// EditResult is the outcome of one EditOperation. In dry-run mode a status
// of EditApplied means "would apply"; nothing was written.
type EditResult struct {
	FilePath string     `json:"file_path"`
	Status   EditStatus `json:"status"`
	Reason   string     `json:"reason,omitempty"`
	Backup   string     `json:"backup,omitempty"`
	Diff     string     `json:"diff,omitempty"`
}

type BatchSummary struct {
	Total   int `json:"total"`
	Applied int `json:"applied"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// BatchResult aggregates the outcome of one ApplyEdits call. Results keep
// the input order, one entry per operation. Success is true iff no result
// failed; skips do not count against it.
type BatchResult struct {
	Success        bool         `json:"success"`
	Results        []EditResult `json:"results"`
	Summary        BatchSummary `json:"summary"`
	RollbackErrors []string     `json:"rollback_errors,omitempty"`
}

// SearchMatch is one located occurrence. Line and Column are 1-based;
// Column counts runes, not bytes.
type SearchMatch struct {
	File    string         `json:"file"`
	Line    int            `json:"line"`
	Column  int            `json:"column"`
	Content string         `json:"content"`
	Context *SearchContext `json:"context,omitempty"`
}

type SearchContext struct {
	Before []string `json:"before"`
	After  []string `json:"after"`
}

type SearchStats struct {
	TotalMatches     int `json:"total_matches"`
	FilesSearched    int `json:"files_searched"`
	FilesWithMatches int `json:"files_with_matches"`
	FilesSkipped     int `json:"files_skipped"`
}

// SearchResult aggregates matches across all searched files. Truncated is
// true when the result cap was reached before every file was scanned.
type SearchResult struct {
	Matches   []SearchMatch `json:"matches"`
	Stats     SearchStats   `json:"stats"`
	Truncated bool          `json:"truncated"`
}

// ChangeType tags one line of a diff.
type ChangeType string

const (
	ChangeAddition ChangeType = "addition"
	ChangeDeletion ChangeType = "deletion"
	ChangeContext  ChangeType = "context"
)

// DiffChange is one diffed line. Line is the 1-based number on the new side
// for additions and context, and on the old side for deletions.
type DiffChange struct {
	Type    ChangeType `json:"type"`
	Line    int        `json:"line"`
	Content string     `json:"content"`
}

// DiffHunk is a contiguous block of a unified diff. Lines carry their
// "+"/"-"/" " prefixes.
type DiffHunk struct {
	OldStart int      `json:"old_start"`
	OldCount int      `json:"old_count"`
	NewStart int      `json:"new_start"`
	NewCount int      `json:"new_count"`
	Lines    []string `json:"lines"`
}

type DiffStats struct {
	Additions    int `json:"additions"`
	Deletions    int `json:"deletions"`
	TotalChanges int `json:"total_changes"`
}

// DiffResult aggregates the unified diff text and its structured
// decomposition.
type DiffResult struct {
	UnifiedDiff string       `json:"unified_diff"`
	Hunks       []DiffHunk   `json:"hunks"`
	Changes     []DiffChange `json:"changes"`
	Stats       DiffStats    `json:"stats"`
	Summary     string       `json:"summary"`
}
