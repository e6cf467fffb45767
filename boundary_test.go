package editforge_test

import (
	"os"
	"path/filepath"
	"testing"

	editforge "github.com/editforge/editforge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBoundary(t *testing.T) {
	tempDir := t.TempDir()

	t.Run("ValidDirectory", func(t *testing.T) {
		b, err := editforge.NewBoundary(tempDir)
		require.NoError(t, err)
		assert.True(t, filepath.IsAbs(b.Root()))
	})

	t.Run("MissingDirectory", func(t *testing.T) {
		_, err := editforge.NewBoundary(filepath.Join(tempDir, "nope"))
		require.Error(t, err)
	})

	t.Run("FileIsNotADirectory", func(t *testing.T) {
		path := writeTestFile(t, tempDir, "plain.txt", "x")
		_, err := editforge.NewBoundary(path)
		require.Error(t, err)
	})

	t.Run("EmptyRootDefaultsToCwd", func(t *testing.T) {
		b, err := editforge.NewBoundary("")
		require.NoError(t, err)
		cwd, err := os.Getwd()
		require.NoError(t, err)
		resolved, err := filepath.EvalSymlinks(cwd)
		require.NoError(t, err)
		assert.Equal(t, resolved, b.Root())
	})
}

func TestBoundaryResolve(t *testing.T) {
	tempDir := t.TempDir()
	outsideDir := t.TempDir()

	writeTestFile(t, tempDir, "inside.txt", "x")
	outside := writeTestFile(t, outsideDir, "outside.txt", "x")

	b, err := editforge.NewBoundary(tempDir)
	require.NoError(t, err)

	t.Run("RelativeInside", func(t *testing.T) {
		p, err := b.Resolve("inside.txt")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(b.Root(), "inside.txt"), p)
	})

	t.Run("AbsoluteInside", func(t *testing.T) {
		p, err := b.Resolve(filepath.Join(tempDir, "inside.txt"))
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(b.Root(), "inside.txt"), p)
	})

	t.Run("NewFileInExistingDir", func(t *testing.T) {
		p, err := b.Resolve("fresh.txt")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(b.Root(), "fresh.txt"), p)
	})

	t.Run("TraversalEscape", func(t *testing.T) {
		_, err := b.Resolve(filepath.Join("..", filepath.Base(outsideDir), "outside.txt"))
		assert.ErrorIs(t, err, editforge.ErrOutsideBoundary)
	})

	t.Run("AbsoluteOutside", func(t *testing.T) {
		_, err := b.Resolve(outside)
		assert.ErrorIs(t, err, editforge.ErrOutsideBoundary)
	})

	t.Run("DotDotWithinRoot", func(t *testing.T) {
		require.NoError(t, os.Mkdir(filepath.Join(tempDir, "sub"), 0755))
		p, err := b.Resolve(filepath.Join("sub", "..", "inside.txt"))
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(b.Root(), "inside.txt"), p)
	})
}

func TestBoundaryResolveSymlinks(t *testing.T) {
	tempDir := t.TempDir()
	outsideDir := t.TempDir()

	outside := writeTestFile(t, outsideDir, "secret.txt", "x")

	b, err := editforge.NewBoundary(tempDir)
	require.NoError(t, err)

	t.Run("FileLinkEscapes", func(t *testing.T) {
		link := filepath.Join(tempDir, "link.txt")
		require.NoError(t, os.Symlink(outside, link))

		_, err := b.Resolve("link.txt")
		assert.ErrorIs(t, err, editforge.ErrOutsideBoundary)
	})

	t.Run("DirLinkEscapes", func(t *testing.T) {
		link := filepath.Join(tempDir, "linkdir")
		require.NoError(t, os.Symlink(outsideDir, link))

		_, err := b.Resolve(filepath.Join("linkdir", "secret.txt"))
		assert.ErrorIs(t, err, editforge.ErrOutsideBoundary)
	})

	t.Run("LinkWithinRootAllowed", func(t *testing.T) {
		writeTestFile(t, tempDir, "real.txt", "x")
		link := filepath.Join(tempDir, "alias.txt")
		require.NoError(t, os.Symlink(filepath.Join(tempDir, "real.txt"), link))

		p, err := b.Resolve("alias.txt")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(b.Root(), "alias.txt"), p)
	})
}
