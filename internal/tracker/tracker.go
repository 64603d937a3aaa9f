// Package tracker implements the request tracker (spec.md §4.E): it
// remembers the method of outstanding client->server requests by id,
// so that when the matching server->client response arrives it can
// invoke whatever actions are registered for that method (notably the
// goto-definition library binder, internal/binder).
//
// Decoding uses github.com/sourcegraph/jsonrpc2's own Request/Response
// wire types rather than ad hoc anonymous structs, since they already
// implement exactly the duck-typed "read id, method, result" shape
// spec.md §9 calls for, and are the RPC library the teacher repo
// itself speaks LSP with (lsp/tcp_client.go, lsp/websocket_client.go).
package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/sourcegraph/jsonrpc2"

	"rockerboo/lspdock/internal/logger"
)

// ErrJSON wraps decode failures on messages the tracker determined it
// must inspect; these are treated as fatal for the owning direction
// (spec.md §7) since a partially-consumed tracked message risks
// desyncing client and server id spaces.
var ErrJSON = fmt.Errorf("tracker: json decode error")

// Action is a registered transform run against the parsed JSON value
// of a response whose request method matched this action's method
// set. It may mutate value in place and may suspend (e.g. to copy a
// file over docker exec).
type Action interface {
	// Methods returns the set of LSP methods this action applies to.
	Methods() []string
	// Run transforms the decoded response value.
	Run(ctx context.Context, value map[string]any) error
}

type registryEntry struct {
	methods map[string]struct{}
	action  Action
}

// Tracker maps outstanding request ids to the method they were sent
// under, and dispatches registered actions when the matching response
// arrives.
type Tracker struct {
	cfg Config

	mu      sync.Mutex
	pending map[uint64]string

	registry []registryEntry
	// trackedMethods is the union of every registered action's method
	// set, used for the cheap raw-byte prefilter before parsing JSON.
	trackedMethods map[string]struct{}
}

// Config is the subset of proxy configuration the tracker needs.
type Config struct {
	UseDocker bool
}

// New returns a Tracker with no actions registered.
func New(cfg Config) *Tracker {
	return &Tracker{
		cfg:            cfg,
		pending:        make(map[uint64]string),
		trackedMethods: make(map[string]struct{}),
	}
}

// Register adds an action to the plugin registry. Call before the
// forwarding pipeline starts; Register is not safe to call
// concurrently with Observe.
func (t *Tracker) Register(action Action) {
	methods := make(map[string]struct{}, len(action.Methods()))
	for _, m := range action.Methods() {
		methods[m] = struct{}{}
		t.trackedMethods[m] = struct{}{}
	}
	t.registry = append(t.registry, registryEntry{methods: methods, action: action})
}

// ObserveClient implements the client-side flow of §4.E: if the raw
// bytes look like they carry a tracked method, parse just enough JSON
// to record id -> method. Notifications (no id) are ignored.
func (t *Tracker) ObserveClient(msg []byte) error {
	if !t.cfg.UseDocker || len(t.trackedMethods) == 0 {
		return nil
	}
	if !containsAnyMethod(msg, t.trackedMethods) {
		return nil
	}

	var req jsonrpc2.Request
	if err := json.Unmarshal(msg, &req); err != nil {
		return fmt.Errorf("%w: %v", ErrJSON, err)
	}
	if req.Notif {
		return nil
	}
	if _, ok := t.trackedMethods[req.Method]; !ok {
		return nil
	}

	id, ok := idAsUint64(req.ID)
	if !ok {
		logger.Debug("tracker: skipping non-numeric request id", "method", req.Method)
		return nil
	}

	t.mu.Lock()
	t.pending[id] = req.Method
	t.mu.Unlock()

	return nil
}

// ObserveServer implements the server-side flow of §4.E: on a response
// whose id matches a pending tracked request, atomically remove the
// entry and run every registered action whose method set contains it,
// then re-serialize the (possibly mutated) JSON back into msg.
func (t *Tracker) ObserveServer(ctx context.Context, msg []byte) ([]byte, error) {
	if !t.cfg.UseDocker {
		return msg, nil
	}

	t.mu.Lock()
	empty := len(t.pending) == 0
	t.mu.Unlock()
	if empty {
		return msg, nil
	}

	var resp jsonrpc2.Response
	if err := json.Unmarshal(msg, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrJSON, err)
	}

	id, ok := idAsUint64(resp.ID)
	if !ok {
		return msg, nil
	}

	t.mu.Lock()
	method, found := t.pending[id]
	if found {
		delete(t.pending, id)
	}
	t.mu.Unlock()
	if !found {
		return msg, nil
	}

	var value map[string]any
	if err := json.Unmarshal(msg, &value); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrJSON, err)
	}

	for _, entry := range t.registry {
		if _, ok := entry.methods[method]; !ok {
			continue
		}
		if err := entry.action.Run(ctx, value); err != nil {
			return nil, fmt.Errorf("tracker: action for %s failed: %w", method, err)
		}
	}

	out, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrJSON, err)
	}
	return out, nil
}

// Pending returns the number of outstanding tracked requests, for
// status reporting.
func (t *Tracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

func idAsUint64(id jsonrpc2.ID) (uint64, bool) {
	if id.IsString {
		return 0, false
	}
	return id.Num, true
}

// containsAnyMethod is the cheap raw-byte prefilter: scan for
// `"method":"<m>"` for any tracked method before paying for a full
// JSON parse.
func containsAnyMethod(msg []byte, methods map[string]struct{}) bool {
	for m := range methods {
		needle := []byte(`"method":"` + m + `"`)
		if bytes.Contains(msg, needle) {
			return true
		}
	}
	return false
}
