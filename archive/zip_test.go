package archive

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"
)

func TestZipDirectory(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "TestResults")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "Attachments"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "Logs", "Test"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "SmokeTests.json"), []byte(`{"name":"SmokeTests"}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Attachments", "shot.png"), []byte("png"), 0644))

	dest := filepath.Join(base, "testResults.zip")
	require.NoError(t, ZipDirectory(dir, dest))

	r, err := zip.OpenReader(dest)
	require.NoError(t, err)
	defer r.Close()

	var names []string
	contents := map[string]string{}
	for _, f := range r.File {
		names = append(names, f.Name)
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		contents[f.Name] = string(data)
	}
	sort.Strings(names)

	require.Equal(t, []string{
		"TestResults/",
		"TestResults/Attachments/",
		"TestResults/Attachments/shot.png",
		"TestResults/Logs/",
		"TestResults/Logs/Test/",
		"TestResults/SmokeTests.json",
	}, names)
	require.Equal(t, `{"name":"SmokeTests"}`, contents["TestResults/SmokeTests.json"])
	require.Equal(t, "png", contents["TestResults/Attachments/shot.png"])
}

func TestZipDirectoryErrors(t *testing.T) {
	base := t.TempDir()

	err := ZipDirectory(filepath.Join(base, "missing"), filepath.Join(base, "out.zip"))
	require.Error(t, err)

	file := filepath.Join(base, "file.txt")
	require.NoError(t, os.WriteFile(file, nil, 0644))
	err = ZipDirectory(file, filepath.Join(base, "out.zip"))
	require.ErrorContains(t, err, "not a directory")
}
