// Package rewriteuri implements the byte-level path/URI substitution
// between the host workspace root and the container workspace root
// (spec.md §4.C), plus the initialize-request root patch.
//
// Grounded on the teacher's utils/uri.go and utils/pathmap.go path
// handling, but deliberately operating on raw JSON bytes rather than a
// parsed structure: the substitution must survive LSP payload shapes
// the proxy has never seen, matching the Rust original's
// src/lsp/binding.rs::redirect_uri (a single string replace).
package rewriteuri

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Pair identifies which side of the proxy a message came from.
type Pair int

const (
	// Client is a message read from the editor, destined for the server.
	Client Pair = iota
	// Server is a message read from the language server, destined for the editor.
	Server
)

func (p Pair) String() string {
	if p == Client {
		return "client"
	}
	return "server"
}

// Config is the subset of proxy configuration the rewriter needs.
type Config struct {
	UseDocker              bool
	HostWorkspacePath      string
	ContainerWorkspacePath string
	// EncodedLocalPath, when set, is used instead of HostWorkspacePath as
	// the client-side prefix (§9 Open Question (b): some editors send
	// URL-encoded colons for Windows drive letters).
	EncodedLocalPath string
}

func (c Config) clientPrefix() string {
	if c.EncodedLocalPath != "" {
		return c.EncodedLocalPath
	}
	return c.HostWorkspacePath
}

// Rewrite replaces every occurrence of the source-side prefix with the
// destination-side prefix in msg, as raw bytes, and returns the
// rewritten message (msg itself is not modified). When cfg.UseDocker
// is false it returns msg unchanged. It also special-cases the
// initialize request, forcing rootUri/rootPath/workspaceFolders[].uri
// to the container workspace root regardless of what the editor sent.
func Rewrite(msg []byte, dir Pair, cfg Config) []byte {
	if !cfg.UseDocker {
		return msg
	}

	var from, to string
	switch dir {
	case Client:
		from, to = cfg.clientPrefix(), cfg.ContainerWorkspacePath
	case Server:
		from, to = cfg.ContainerWorkspacePath, cfg.clientPrefix()
	}

	if from != "" && to != "" {
		msg = bytes.ReplaceAll(msg, []byte(from), []byte(to))
	}

	if dir == Client && isInitializeRequest(msg) {
		if patched, err := patchInitializeRoot(msg, cfg.ContainerWorkspacePath); err == nil {
			msg = patched
		}
	}

	return msg
}

func isInitializeRequest(msg []byte) bool {
	var probe struct {
		Method string `json:"method"`
	}
	if err := json.Unmarshal(msg, &probe); err != nil {
		return false
	}
	return probe.Method == "initialize"
}

type workspaceFolder struct {
	URI  string `json:"uri"`
	Name string `json:"name,omitempty"`
}

// patchInitializeRoot rewrites rootUri, rootPath, and every
// workspaceFolders[].uri to point at the container workspace root, so
// the server always sees a workspace root that exists inside the
// container it runs in.
func patchInitializeRoot(msg []byte, containerRoot string) ([]byte, error) {
	var value map[string]json.RawMessage
	if err := json.Unmarshal(msg, &value); err != nil {
		return nil, fmt.Errorf("rewriteuri: decode initialize request: %w", err)
	}
	paramsRaw, ok := value["params"]
	if !ok {
		return msg, nil
	}

	var params map[string]json.RawMessage
	if err := json.Unmarshal(paramsRaw, &params); err != nil {
		return nil, fmt.Errorf("rewriteuri: decode initialize params: %w", err)
	}

	rootURI := "file://" + containerRoot
	rootURIJSON, _ := json.Marshal(rootURI)
	params["rootUri"] = rootURIJSON
	params["rootPath"] = rootURIJSON

	if foldersRaw, ok := params["workspaceFolders"]; ok && string(foldersRaw) != "null" {
		var folders []workspaceFolder
		if err := json.Unmarshal(foldersRaw, &folders); err == nil {
			for i := range folders {
				folders[i].URI = rootURI
			}
			patched, err := json.Marshal(folders)
			if err == nil {
				params["workspaceFolders"] = patched
			}
		}
	}

	newParams, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("rewriteuri: encode initialize params: %w", err)
	}
	value["params"] = newParams

	return json.Marshal(value)
}
