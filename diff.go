package editforge

import (
	"fmt"
	"strings"
)

// DiffEngine computes line-based diffs between two text blobs. It holds no
// state; a single engine is safe for concurrent use.
type DiffEngine struct{}

func NewDiffEngine() *DiffEngine {
	return &DiffEngine{}
}

// lineOp is one aligned line of the two texts. oldLine/newLine are 1-based
// and zero on the side the line does not exist on.
type lineOp struct {
	kind    ChangeType
	text    string
	oldLine int
	newLine int
}

// Diff produces a unified diff of original vs modified together with its
// structured decomposition. filename is used in the patch header when
// non-empty. contextLines defaults to DefaultDiffContext when <= 0.
// Identical inputs yield zero hunks, zero changes, and a "no changes"
// summary.
func (e *DiffEngine) Diff(original, modified, filename string, contextLines int) *DiffResult {
	if contextLines <= 0 {
		contextLines = DefaultDiffContext
	}

	oldLines := splitLines(original)
	newLines := splitLines(modified)
	ops := alignLines(oldLines, newLines)
	hunks := buildHunks(ops, contextLines)

	result := &DiffResult{
		Hunks:       hunks,
		UnifiedDiff: renderUnified(hunks, filename),
	}

	for _, h := range hunks {
		oldLine := h.OldStart
		newLine := h.NewStart
		for _, line := range h.Lines {
			switch {
			case line == noNewlineMarker:
				// Annotates the previous line; not a line itself.
			case strings.HasPrefix(line, "+"):
				result.Changes = append(result.Changes, DiffChange{
					Type:    ChangeAddition,
					Line:    newLine,
					Content: line[1:],
				})
				result.Stats.Additions++
				newLine++
			case strings.HasPrefix(line, "-"):
				result.Changes = append(result.Changes, DiffChange{
					Type:    ChangeDeletion,
					Line:    oldLine,
					Content: line[1:],
				})
				result.Stats.Deletions++
				oldLine++
			default:
				result.Changes = append(result.Changes, DiffChange{
					Type:    ChangeContext,
					Line:    newLine,
					Content: strings.TrimPrefix(line, " "),
				})
				oldLine++
				newLine++
			}
		}
	}

	result.Stats.TotalChanges = result.Stats.Additions + result.Stats.Deletions
	result.Summary = summarize(result.Stats, len(hunks))
	return result
}

func summarize(stats DiffStats, hunkCount int) string {
	if stats.TotalChanges == 0 {
		return "No changes detected between the two texts"
	}
	return fmt.Sprintf("%d %s: %d %s, %d %s across %d %s",
		stats.TotalChanges, plural(stats.TotalChanges, "change", "changes"),
		stats.Additions, plural(stats.Additions, "addition", "additions"),
		stats.Deletions, plural(stats.Deletions, "deletion", "deletions"),
		hunkCount, plural(hunkCount, "hunk", "hunks"))
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// noNewlineMarker annotates the preceding hunk line as having no
// terminating newline, as in standard unified diff output.
const noNewlineMarker = `\ No newline at end of file`

// splitLines splits content into lines, each keeping its terminating
// newline. A final line without one stays distinct from the same line with
// one, so a trailing-newline-only difference is a real change.
func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	lines := strings.SplitAfter(content, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// alignLines walks both sides against their longest common subsequence,
// emitting context lines for common entries and deletions/additions for the
// rest.
func alignLines(oldLines, newLines []string) []lineOp {
	lcs := longestCommonSubsequence(oldLines, newLines)

	var ops []lineOp
	i, j, k := 0, 0, 0
	for i < len(oldLines) || j < len(newLines) {
		switch {
		case k < len(lcs) && i < len(oldLines) && j < len(newLines) &&
			oldLines[i] == lcs[k] && newLines[j] == lcs[k]:
			ops = append(ops, lineOp{kind: ChangeContext, text: oldLines[i], oldLine: i + 1, newLine: j + 1})
			i++
			j++
			k++
		case i < len(oldLines) && (k >= len(lcs) || oldLines[i] != lcs[k]):
			ops = append(ops, lineOp{kind: ChangeDeletion, text: oldLines[i], oldLine: i + 1})
			i++
		case j < len(newLines):
			ops = append(ops, lineOp{kind: ChangeAddition, text: newLines[j], newLine: j + 1})
			j++
		}
	}
	return ops
}

func longestCommonSubsequence(a, b []string) []string {
	m, n := len(a), len(b)
	if m == 0 || n == 0 {
		return nil
	}

	dp := make([][]int, m+1)
	for i := range dp {
		dp[i] = make([]int, n+1)
	}
	for i := 1; i <= m; i++ {
		for j := 1; j <= n; j++ {
			if a[i-1] == b[j-1] {
				dp[i][j] = dp[i-1][j-1] + 1
			} else {
				dp[i][j] = max(dp[i-1][j], dp[i][j-1])
			}
		}
	}

	lcs := make([]string, dp[m][n])
	i, j := m, n
	for i > 0 && j > 0 {
		switch {
		case a[i-1] == b[j-1]:
			lcs[dp[i][j]-1] = a[i-1]
			i--
			j--
		case dp[i-1][j] > dp[i][j-1]:
			i--
		default:
			j--
		}
	}
	return lcs
}

// buildHunks groups changed ops into hunks, merging changes whose context
// windows overlap.
func buildHunks(ops []lineOp, contextLines int) []DiffHunk {
	var changeIdx []int
	for i, op := range ops {
		if op.kind != ChangeContext {
			changeIdx = append(changeIdx, i)
		}
	}
	if len(changeIdx) == 0 {
		return nil
	}

	var hunks []DiffHunk
	start := max(0, changeIdx[0]-contextLines)
	prev := changeIdx[0]
	for _, ci := range changeIdx[1:] {
		if ci-prev-1 > 2*contextLines {
			end := min(len(ops)-1, prev+contextLines)
			hunks = append(hunks, makeHunk(ops, start, end))
			start = ci - contextLines
		}
		prev = ci
	}
	hunks = append(hunks, makeHunk(ops, start, min(len(ops)-1, prev+contextLines)))
	return hunks
}

// makeHunk builds one hunk from ops[start..end] inclusive. A hunk with no
// old-side lines anchors on the old line preceding it (zero at the top of
// the file), and symmetrically for the new side.
func makeHunk(ops []lineOp, start, end int) DiffHunk {
	h := DiffHunk{}
	for _, op := range ops[start : end+1] {
		text := strings.TrimSuffix(op.text, "\n")
		switch op.kind {
		case ChangeAddition:
			h.Lines = append(h.Lines, "+"+text)
			h.NewCount++
		case ChangeDeletion:
			h.Lines = append(h.Lines, "-"+text)
			h.OldCount++
		default:
			h.Lines = append(h.Lines, " "+text)
			h.OldCount++
			h.NewCount++
		}
		if !strings.HasSuffix(op.text, "\n") {
			h.Lines = append(h.Lines, noNewlineMarker)
		}
		if h.OldStart == 0 && op.oldLine > 0 {
			h.OldStart = op.oldLine
		}
		if h.NewStart == 0 && op.newLine > 0 {
			h.NewStart = op.newLine
		}
	}
	if h.OldStart == 0 {
		for i := start - 1; i >= 0; i-- {
			if ops[i].oldLine > 0 {
				h.OldStart = ops[i].oldLine
				break
			}
		}
	}
	if h.NewStart == 0 {
		for i := start - 1; i >= 0; i-- {
			if ops[i].newLine > 0 {
				h.NewStart = ops[i].newLine
				break
			}
		}
	}
	return h
}

func renderUnified(hunks []DiffHunk, filename string) string {
	if len(hunks) == 0 {
		return ""
	}

	var sb strings.Builder
	if filename != "" {
		fmt.Fprintf(&sb, "--- a/%s\n+++ b/%s\n", filename, filename)
	} else {
		sb.WriteString("--- original\n+++ modified\n")
	}
	for _, h := range hunks {
		fmt.Fprintf(&sb, "@@ -%d,%d +%d,%d @@\n", h.OldStart, h.OldCount, h.NewStart, h.NewCount)
		for _, line := range h.Lines {
			sb.WriteString(line)
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}
