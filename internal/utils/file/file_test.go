package file_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/agentgw/internal/utils/file"
)

func TestWriteIfChanged(t *testing.T) {
	tests := map[string]struct {
		existing *string
		data     string
		expWrote bool
	}{
		"A missing file and directory should be created.": {
			existing: nil,
			data:     "a = 1\n",
			expWrote: true,
		},

		"Different content should be written.": {
			existing: ptr("a = 1\n"),
			data:     "a = 2\n",
			expWrote: true,
		},

		"Identical content should not be written.": {
			existing: ptr("a = 1\n"),
			data:     "a = 1\n",
			expWrote: false,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			path := filepath.Join(t.TempDir(), "nested", "dir", "config.toml")
			var oldMod time.Time
			if test.existing != nil {
				require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
				require.NoError(t, os.WriteFile(path, []byte(*test.existing), 0o644))
				old := time.Now().Add(-time.Hour)
				require.NoError(t, os.Chtimes(path, old, old))
				info, err := os.Stat(path)
				require.NoError(t, err)
				oldMod = info.ModTime()
			}

			wrote, err := file.WriteIfChanged(path, []byte(test.data), 0o644)
			require.NoError(t, err)
			assert.Equal(test.expWrote, wrote)

			got, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(test.data, string(got))

			if !test.expWrote {
				info, err := os.Stat(path)
				require.NoError(t, err)
				assert.Equal(oldMod, info.ModTime())
			}

			// No temp files left behind.
			entries, err := os.ReadDir(filepath.Dir(path))
			require.NoError(t, err)
			assert.Len(entries, 1)
		})
	}
}

func ptr(s string) *string { return &s }
