package binder

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGotoBindingMirrorsExternalFile(t *testing.T) {
	src, err := os.CreateTemp(t.TempDir(), "lib-*.py")
	require.NoError(t, err)
	_, err = src.WriteString("print('hi')")
	require.NoError(t, err)
	require.NoError(t, src.Close())

	b := New(Config{UseDocker: false, HostWorkspacePath: "/workspace"}, nil)
	b.tempDir = t.TempDir()

	value := map[string]any{
		"id": float64(4),
		"result": []any{
			map[string]any{"uri": "file://" + src.Name()},
		},
	}

	require.NoError(t, b.Run(context.Background(), value))

	results := value["result"].([]any)
	obj := results[0].(map[string]any)
	newURI := obj["uri"].(string)
	assert.Contains(t, newURI, b.tempDir)

	mirrored := newURI[len("file://"):]
	content, err := os.ReadFile(mirrored)
	require.NoError(t, err)
	assert.Equal(t, "print('hi')", string(content))
}

func TestGotoBindingSkipsWorkspacePaths(t *testing.T) {
	b := New(Config{UseDocker: false, HostWorkspacePath: "/workspace"}, nil)
	value := map[string]any{
		"result": []any{
			map[string]any{"uri": "file:///workspace/main.go"},
		},
	}

	require.NoError(t, b.Run(context.Background(), value))

	results := value["result"].([]any)
	obj := results[0].(map[string]any)
	assert.Equal(t, "file:///workspace/main.go", obj["uri"])
}

func TestGotoBindingIsIdempotent(t *testing.T) {
	src, err := os.CreateTemp(t.TempDir(), "lib-*.py")
	require.NoError(t, err)
	require.NoError(t, src.Close())

	b := New(Config{UseDocker: false, HostWorkspacePath: "/workspace"}, nil)
	b.tempDir = t.TempDir()

	value := map[string]any{"result": []any{map[string]any{"uri": "file://" + src.Name()}}}
	require.NoError(t, b.Run(context.Background(), value))
	firstURI := value["result"].([]any)[0].(map[string]any)["uri"].(string)

	mirrored := filepath.Join(b.tempDir, src.Name()[1:])
	info1, err := os.Stat(mirrored)
	require.NoError(t, err)

	// Second goto against the same path: no new copy, same uri.
	value2 := map[string]any{"result": []any{map[string]any{"uri": "file://" + src.Name()}}}
	require.NoError(t, b.Run(context.Background(), value2))
	secondURI := value2["result"].([]any)[0].(map[string]any)["uri"].(string)

	assert.Equal(t, firstURI, secondURI)
	info2, err := os.Stat(mirrored)
	require.NoError(t, err)
	assert.Equal(t, info1.ModTime(), info2.ModTime())
}

func TestMethodsIncludesGotoSet(t *testing.T) {
	b := New(Config{}, nil)
	assert.ElementsMatch(t, GotoMethods, b.Methods())
}
