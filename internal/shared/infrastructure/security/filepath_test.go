package security

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateFilePath(t *testing.T) {
	t.Run("rejects empty path", func(t *testing.T) {
		_, err := ValidateFilePath("")
		assert.ErrorContains(t, err, "cannot be empty")
	})

	t.Run("rejects shell metacharacters", func(t *testing.T) {
		for _, char := range dangerousChars {
			_, err := ValidateFilePath("/var/lib/vyora" + char + ".db")
			assert.ErrorContains(t, err, "forbidden character", "char %q", char)
		}
	})

	t.Run("makes relative paths absolute", func(t *testing.T) {
		result, err := ValidateFilePath("vyora.db")
		require.NoError(t, err)
		assert.True(t, filepath.IsAbs(result))
	})

	t.Run("cleans traversal segments", func(t *testing.T) {
		dir := t.TempDir()
		result, err := ValidateFilePath(filepath.Join(dir, "data", "..", "vyora.db"))
		require.NoError(t, err)
		assert.NotContains(t, result, "..")
		assert.Equal(t, "vyora.db", filepath.Base(result))
	})

	t.Run("resolves symlinks of existing files", func(t *testing.T) {
		dir := t.TempDir()
		real := filepath.Join(dir, "real.db")
		require.NoError(t, os.WriteFile(real, nil, 0o600))
		link := filepath.Join(dir, "link.db")
		require.NoError(t, os.Symlink(real, link))

		result, err := ValidateFilePath(link)
		require.NoError(t, err)
		want, err := filepath.EvalSymlinks(real)
		require.NoError(t, err)
		assert.Equal(t, want, result)
	})

	t.Run("accepts files that do not exist yet", func(t *testing.T) {
		result, err := ValidateFilePath(filepath.Join(t.TempDir(), "new", "vyora.db"))
		require.NoError(t, err)
		assert.Equal(t, "vyora.db", filepath.Base(result))
	})
}
