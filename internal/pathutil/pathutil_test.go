package pathutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsWindowsAbsPath(t *testing.T) {
	assert.True(t, IsWindowsAbsPath(`C:\Users\dev`))
	assert.True(t, IsWindowsAbsPath("D:/projects"))
	assert.False(t, IsWindowsAbsPath("/home/dev"))
	assert.False(t, IsWindowsAbsPath("x"))
}

func TestFileURIToPathUnix(t *testing.T) {
	p, err := FileURIToPath("file:///home/dev/project/main.go")
	require.NoError(t, err)
	assert.Equal(t, "/home/dev/project/main.go", p)
}

func TestFileURIToPathWindowsDriveLetter(t *testing.T) {
	p, err := FileURIToPath("file:///C:/Users/dev/main.go")
	require.NoError(t, err)
	assert.Equal(t, filepath.FromSlash("C:/Users/dev/main.go"), p)
}

func TestFileURIToPathRejectsNonFileScheme(t *testing.T) {
	_, err := FileURIToPath("https://example.com/main.go")
	require.Error(t, err)
}

func TestPathToFileURIRoundTripUnix(t *testing.T) {
	uri, err := PathToFileURI("/home/dev/project/main.go")
	require.NoError(t, err)
	assert.Equal(t, "file:///home/dev/project/main.go", uri)

	back, err := FileURIToPath(uri)
	require.NoError(t, err)
	assert.Equal(t, "/home/dev/project/main.go", back)
}

func TestTrimFileScheme(t *testing.T) {
	assert.Equal(t, "/tmp/foo.go", TrimFileScheme("file:///tmp/foo.go"))
	assert.Equal(t, "/tmp/foo.go", TrimFileScheme("file:/tmp/foo.go"))
	assert.Equal(t, "/tmp/foo.go", TrimFileScheme("/tmp/foo.go"))
}

