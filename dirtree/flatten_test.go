package dirtree

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

// tree lists every file and directory below root, relative to it.
func tree(t *testing.T, root string) []string {
	t.Helper()
	var out []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if d.IsDir() {
			rel += "/"
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	require.NoError(t, err)
	sort.Strings(out)
	return out
}

func write(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, f := range files {
		path := filepath.Join(root, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(f), 0644))
	}
}

func TestFlatten(t *testing.T) {
	tests := []struct {
		name  string
		files []string
		dirs  []string
		want  []string
	}{
		{
			name:  "two levels collapse",
			files: []string{"X/Y/file.log"},
			want:  []string{"file.log"},
		},
		{
			name:  "stops at several entries",
			files: []string{"X/a.log", "X/Y/b.log"},
			want:  []string{"Y/", "Y/b.log", "a.log"},
		},
		{
			name:  "single file untouched",
			files: []string{"only.log"},
			want:  []string{"only.log"},
		},
		{
			name:  "several entries untouched",
			files: []string{"A/a.log", "B/b.log"},
			want:  []string{"A/", "A/a.log", "B/", "B/b.log"},
		},
		{
			name: "empty directory untouched",
			want: nil,
		},
		{
			name: "chain of empty directories",
			dirs: []string{"A/B/C"},
			want: nil,
		},
		{
			name:  "entry named like its parent",
			files: []string{"Logs/Logs/run.log", "Logs/other.log"},
			want:  []string{"Logs/", "Logs/run.log", "other.log"},
		},
		{
			name:  "deep chain",
			files: []string{"a/b/c/d/e/f.txt", "a/b/c/d/e/g.txt"},
			want:  []string{"f.txt", "g.txt"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			write(t, root, tt.files...)
			for _, d := range tt.dirs {
				require.NoError(t, os.MkdirAll(filepath.Join(root, d), 0755))
			}

			require.NoError(t, Flatten(root))
			require.Equal(t, tt.want, tree(t, root))

			// A second pass changes nothing.
			require.NoError(t, Flatten(root))
			require.Equal(t, tt.want, tree(t, root))
		})
	}
}

func TestFlattenKeepsContent(t *testing.T) {
	root := filepath.Join(t.TempDir(), "logs", "Test")
	write(t, root, "X/Y/file.log")

	require.NoError(t, Flatten(root))

	data, err := os.ReadFile(filepath.Join(root, "file.log"))
	require.NoError(t, err)
	require.Equal(t, "X/Y/file.log", string(data))

	_, err = os.Stat(filepath.Join(root, "X"))
	require.True(t, os.IsNotExist(err))
}

func TestFlattenDoesNotFollowSymlinks(t *testing.T) {
	base := t.TempDir()
	outside := filepath.Join(base, "outside")
	logs := filepath.Join(base, "logs")
	write(t, outside, "keep.txt")
	require.NoError(t, os.MkdirAll(logs, 0755))
	require.NoError(t, os.Symlink(filepath.Join("..", "outside"), filepath.Join(logs, "link")))

	require.NoError(t, Flatten(logs))

	require.Equal(t, []string{"keep.txt"}, tree(t, outside))
	entries, err := os.ReadDir(logs)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "link", entries[0].Name())
	require.NotZero(t, entries[0].Type()&os.ModeSymlink)
}

func TestFlattenMissingDirectory(t *testing.T) {
	require.Error(t, Flatten(filepath.Join(t.TempDir(), "missing")))
}
