// Package pidpatch implements the PID interceptor (spec.md §4.D): on
// the first client->server "initialize" request, it captures
// params.processId and rewrites it to null so a language server
// running inside a container never tries (and fails) to observe the
// host editor's PID.
//
// Grounded on the Rust original's src/lsp/pid.rs, reimplemented as a
// small JSON-level patch rather than a regex over the raw string, to
// stay robust to whitespace variation in processId's literal.
package pidpatch

import (
	"encoding/json"
	"fmt"
)

// Interceptor is stateful and single-use per client-side session: once
// it has patched an initialize request, subsequent messages pass
// through untouched.
type Interceptor struct {
	applied   bool
	capturedPID int64
}

// New returns an Interceptor that has not patched anything yet.
func New() *Interceptor {
	return &Interceptor{}
}

// TryPatch inspects msg for a not-yet-seen "initialize" request. If
// found, it records params.processId and rewrites it to null,
// returning the patched message and true. On any other message, or
// once a patch has already been applied, it returns msg unchanged and
// false.
func (i *Interceptor) TryPatch(msg []byte) ([]byte, bool, error) {
	if i.applied {
		return msg, false, nil
	}

	var probe struct {
		Method string          `json:"method"`
		Params json.RawMessage `json:"params"`
	}
	if err := json.Unmarshal(msg, &probe); err != nil {
		// Not parseable JSON: not our concern, pass through silently.
		return msg, false, nil
	}
	if probe.Method != "initialize" {
		return msg, false, nil
	}
	if probe.Params == nil {
		return msg, false, nil
	}

	var params struct {
		ProcessID *int64 `json:"processId"`
	}
	if err := json.Unmarshal(probe.Params, &params); err != nil {
		return msg, false, fmt.Errorf("pidpatch: decode initialize params: %w", err)
	}
	if params.ProcessID != nil {
		i.capturedPID = *params.ProcessID
	}

	var value map[string]json.RawMessage
	if err := json.Unmarshal(msg, &value); err != nil {
		return msg, false, fmt.Errorf("pidpatch: decode initialize request: %w", err)
	}
	var paramsMap map[string]json.RawMessage
	if err := json.Unmarshal(value["params"], &paramsMap); err != nil {
		return msg, false, fmt.Errorf("pidpatch: decode initialize params object: %w", err)
	}
	paramsMap["processId"] = json.RawMessage("null")
	newParams, err := json.Marshal(paramsMap)
	if err != nil {
		return msg, false, fmt.Errorf("pidpatch: encode initialize params: %w", err)
	}
	value["params"] = newParams

	patched, err := json.Marshal(value)
	if err != nil {
		return msg, false, fmt.Errorf("pidpatch: encode initialize request: %w", err)
	}

	i.applied = true
	return patched, true, nil
}

// Applied reports whether the patch has already been made.
func (i *Interceptor) Applied() bool { return i.applied }

// CapturedPID returns the processId value observed before patching. It
// is only meaningful once Applied() is true.
func (i *Interceptor) CapturedPID() int64 { return i.capturedPID }
