package editforge_test

import (
	"fmt"
	"strings"
	"testing"

	editforge "github.com/editforge/editforge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiffIdenticalInputs(t *testing.T) {
	engine := editforge.NewDiffEngine()

	for _, text := range []string{"", "one line\n", "a\nb\nc\n"} {
		result := engine.Diff(text, text, "f.txt", 0)
		assert.Empty(t, result.UnifiedDiff)
		assert.Empty(t, result.Hunks)
		assert.Empty(t, result.Changes)
		assert.Equal(t, editforge.DiffStats{}, result.Stats)
		assert.Equal(t, "No changes detected between the two texts", result.Summary)
	}
}

func TestDiffSingleReplacement(t *testing.T) {
	engine := editforge.NewDiffEngine()

	result := engine.Diff("one\ntwo\nthree\n", "one\n2\nthree\n", "f.txt", 0)

	expected := "--- a/f.txt\n" +
		"+++ b/f.txt\n" +
		"@@ -1,3 +1,3 @@\n" +
		" one\n" +
		"-two\n" +
		"+2\n" +
		" three\n"
	assert.Equal(t, expected, result.UnifiedDiff)

	require.Len(t, result.Hunks, 1)
	h := result.Hunks[0]
	assert.Equal(t, 1, h.OldStart)
	assert.Equal(t, 3, h.OldCount)
	assert.Equal(t, 1, h.NewStart)
	assert.Equal(t, 3, h.NewCount)
	assert.Equal(t, []string{" one", "-two", "+2", " three"}, h.Lines)

	require.Len(t, result.Changes, 4)
	assert.Equal(t, editforge.DiffChange{Type: editforge.ChangeContext, Line: 1, Content: "one"}, result.Changes[0])
	assert.Equal(t, editforge.DiffChange{Type: editforge.ChangeDeletion, Line: 2, Content: "two"}, result.Changes[1])
	assert.Equal(t, editforge.DiffChange{Type: editforge.ChangeAddition, Line: 2, Content: "2"}, result.Changes[2])
	assert.Equal(t, editforge.DiffChange{Type: editforge.ChangeContext, Line: 3, Content: "three"}, result.Changes[3])

	assert.Equal(t, editforge.DiffStats{Additions: 1, Deletions: 1, TotalChanges: 2}, result.Stats)
	assert.Equal(t, "2 changes: 1 addition, 1 deletion across 1 hunk", result.Summary)
}

func TestDiffSplitsDistantChangesIntoHunks(t *testing.T) {
	engine := editforge.NewDiffEngine()

	var oldLines, newLines []string
	for i := 1; i <= 9; i++ {
		oldLines = append(oldLines, fmt.Sprintf("l%d", i))
		newLines = append(newLines, fmt.Sprintf("l%d", i))
	}
	newLines[0] = "x1"
	newLines[8] = "x9"

	original := strings.Join(oldLines, "\n") + "\n"
	modified := strings.Join(newLines, "\n") + "\n"

	result := engine.Diff(original, modified, "", 1)

	require.Len(t, result.Hunks, 2)

	first := result.Hunks[0]
	assert.Equal(t, 1, first.OldStart)
	assert.Equal(t, 2, first.OldCount)
	assert.Equal(t, 1, first.NewStart)
	assert.Equal(t, 2, first.NewCount)
	assert.Equal(t, []string{"-l1", "+x1", " l2"}, first.Lines)

	second := result.Hunks[1]
	assert.Equal(t, 8, second.OldStart)
	assert.Equal(t, 2, second.OldCount)
	assert.Equal(t, 8, second.NewStart)
	assert.Equal(t, 2, second.NewCount)
	assert.Equal(t, []string{" l8", "-l9", "+x9"}, second.Lines)

	assert.True(t, strings.HasPrefix(result.UnifiedDiff, "--- original\n+++ modified\n"))
	assert.Contains(t, result.UnifiedDiff, "@@ -1,2 +1,2 @@\n")
	assert.Contains(t, result.UnifiedDiff, "@@ -8,2 +8,2 @@\n")
	assert.Equal(t, "4 changes: 2 additions, 2 deletions across 2 hunks", result.Summary)
}

func TestDiffMergesNearbyChanges(t *testing.T) {
	engine := editforge.NewDiffEngine()

	result := engine.Diff("a\nb\nc\nd\ne\n", "A\nb\nc\nd\nE\n", "", 3)

	// Changes at lines 1 and 5 have overlapping context windows.
	require.Len(t, result.Hunks, 1)
	assert.Equal(t, []string{"-a", "+A", " b", " c", " d", "-e", "+E"}, result.Hunks[0].Lines)
}

func TestDiffInsertionIntoEmpty(t *testing.T) {
	engine := editforge.NewDiffEngine()

	result := engine.Diff("", "a\nb\n", "f.txt", 0)

	require.Len(t, result.Hunks, 1)
	h := result.Hunks[0]
	assert.Equal(t, 0, h.OldStart)
	assert.Equal(t, 0, h.OldCount)
	assert.Equal(t, 1, h.NewStart)
	assert.Equal(t, 2, h.NewCount)
	assert.Contains(t, result.UnifiedDiff, "@@ -0,0 +1,2 @@\n")
	assert.Equal(t, editforge.DiffStats{Additions: 2, TotalChanges: 2}, result.Stats)
	assert.Equal(t, "2 changes: 2 additions, 0 deletions across 1 hunk", result.Summary)
}

func TestDiffDeletionToEmpty(t *testing.T) {
	engine := editforge.NewDiffEngine()

	result := engine.Diff("a\n", "", "", 0)

	require.Len(t, result.Hunks, 1)
	h := result.Hunks[0]
	assert.Equal(t, 1, h.OldStart)
	assert.Equal(t, 1, h.OldCount)
	assert.Equal(t, 0, h.NewStart)
	assert.Equal(t, 0, h.NewCount)
	assert.Equal(t, []string{"-a"}, h.Lines)
	assert.Equal(t, "1 change: 0 additions, 1 deletion across 1 hunk", result.Summary)
}

func TestDiffInsertionAtTop(t *testing.T) {
	engine := editforge.NewDiffEngine()

	result := engine.Diff("b\n", "a\nb\n", "", 0)

	require.Len(t, result.Hunks, 1)
	h := result.Hunks[0]
	assert.Equal(t, 1, h.OldStart)
	assert.Equal(t, 1, h.OldCount)
	assert.Equal(t, 1, h.NewStart)
	assert.Equal(t, 2, h.NewCount)
	assert.Equal(t, []string{"+a", " b"}, h.Lines)
}

func TestDiffTrailingNewlineOnly(t *testing.T) {
	engine := editforge.NewDiffEngine()

	result := engine.Diff("hello foo", "hello foo\n", "", 0)

	require.Len(t, result.Hunks, 1)
	h := result.Hunks[0]
	assert.Equal(t, []string{"-hello foo", `\ No newline at end of file`, "+hello foo"}, h.Lines)
	assert.Equal(t, 1, h.OldStart)
	assert.Equal(t, 1, h.OldCount)
	assert.Equal(t, 1, h.NewStart)
	assert.Equal(t, 1, h.NewCount)

	require.Len(t, result.Changes, 2)
	assert.Equal(t, editforge.DiffChange{Type: editforge.ChangeDeletion, Line: 1, Content: "hello foo"}, result.Changes[0])
	assert.Equal(t, editforge.DiffChange{Type: editforge.ChangeAddition, Line: 1, Content: "hello foo"}, result.Changes[1])

	assert.Equal(t, editforge.DiffStats{Additions: 1, Deletions: 1, TotalChanges: 2}, result.Stats)
	assert.Contains(t, result.UnifiedDiff, "\\ No newline at end of file\n")

	reversed := engine.Diff("hello foo\n", "hello foo", "", 0)
	require.Len(t, reversed.Hunks, 1)
	assert.Equal(t, []string{"-hello foo", "+hello foo", `\ No newline at end of file`}, reversed.Hunks[0].Lines)
}

func TestDiffLastLineWithoutNewline(t *testing.T) {
	engine := editforge.NewDiffEngine()

	result := engine.Diff("a\nb", "a\nc", "", 0)

	require.Len(t, result.Hunks, 1)
	assert.Equal(t, []string{" a", "-b", `\ No newline at end of file`, "+c", `\ No newline at end of file`}, result.Hunks[0].Lines)
	assert.Equal(t, editforge.DiffStats{Additions: 1, Deletions: 1, TotalChanges: 2}, result.Stats)
}

// applyHunks replays hunks over original, which must reproduce the
// modified text the hunks were computed from.
func applyHunks(t *testing.T, original string, hunks []editforge.DiffHunk) string {
	t.Helper()

	var oldLines []string
	if original != "" {
		oldLines = strings.SplitAfter(original, "\n")
		if oldLines[len(oldLines)-1] == "" {
			oldLines = oldLines[:len(oldLines)-1]
		}
	}

	const marker = `\ No newline at end of file`

	var sb strings.Builder
	idx := 0
	for _, h := range hunks {
		start := h.OldStart - 1
		if h.OldCount == 0 {
			// Anchored after the preceding old line.
			start = h.OldStart
		}
		for idx < start {
			sb.WriteString(oldLines[idx])
			idx++
		}
		for i, line := range h.Lines {
			if line == marker {
				continue
			}
			terminated := i+1 >= len(h.Lines) || h.Lines[i+1] != marker
			switch line[0] {
			case '-':
				idx++
			case '+', ' ':
				sb.WriteString(line[1:])
				if terminated {
					sb.WriteByte('\n')
				}
				if line[0] == ' ' {
					idx++
				}
			}
		}
	}
	for idx < len(oldLines) {
		sb.WriteString(oldLines[idx])
		idx++
	}
	return sb.String()
}

func TestDiffHunksReconstructModified(t *testing.T) {
	engine := editforge.NewDiffEngine()

	tests := []struct {
		name     string
		original string
		modified string
	}{
		{name: "Replacement", original: "one\ntwo\nthree\n", modified: "one\n2\nthree\n"},
		{name: "AddTrailingNewline", original: "hello foo", modified: "hello foo\n"},
		{name: "DropTrailingNewline", original: "hello foo\n", modified: "hello foo"},
		{name: "ChangeLastLineNoNewline", original: "a\nb", modified: "a\nc"},
		{name: "InsertIntoEmpty", original: "", modified: "a\nb\n"},
		{name: "DeleteToEmpty", original: "a\n", modified: ""},
		{name: "DistantChanges", original: "l1\nl2\nl3\nl4\nl5\nl6\nl7\nl8\nl9\n", modified: "x1\nl2\nl3\nl4\nl5\nl6\nl7\nl8\nx9\n"},
		{name: "Identical", original: "same\n", modified: "same\n"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := engine.Diff(test.original, test.modified, "", 1)
			assert.Equal(t, test.modified, applyHunks(t, test.original, result.Hunks))
		})
	}
}

func TestDiffCustomContextWidth(t *testing.T) {
	engine := editforge.NewDiffEngine()

	result := engine.Diff("a\nb\nc\nd\ne\n", "a\nb\nX\nd\ne\n", "", 1)

	require.Len(t, result.Hunks, 1)
	assert.Equal(t, []string{" b", "-c", "+X", " d"}, result.Hunks[0].Lines)
	assert.Equal(t, 2, result.Hunks[0].OldStart)
	assert.Equal(t, 3, result.Hunks[0].OldCount)
}
