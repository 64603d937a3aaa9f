// Package stats holds the small set of running counters the status
// tool (cmd/lspdock-status) reports: bytes forwarded per direction,
// and how many files the library binder has mirrored so far. Counters
// are updated from the forwarding goroutines and read concurrently by
// the status tool, so every field lives behind atomics rather than a
// mutex.
package stats

import "sync/atomic"

// Stats is safe for concurrent use.
type Stats struct {
	clientToServerBytes atomic.Int64
	serverToClientBytes atomic.Int64
	mirroredFiles       atomic.Int64
}

// New returns a zeroed Stats.
func New() *Stats {
	return &Stats{}
}

// AddBytes records n forwarded bytes for the named direction, as
// returned by proxy.Pair.String() ("client" or "server" for the
// client->server and server->client legs respectively); any other
// direction name is ignored.
func (s *Stats) AddBytes(direction string, n int) {
	switch direction {
	case "client":
		s.clientToServerBytes.Add(int64(n))
	case "server":
		s.serverToClientBytes.Add(int64(n))
	}
}

// IncMirroredFiles records one more file copied by the library binder.
func (s *Stats) IncMirroredFiles() {
	s.mirroredFiles.Add(1)
}

// Snapshot is a point-in-time copy of the counters, safe to marshal.
type Snapshot struct {
	ClientToServerBytes int64 `json:"client_to_server_bytes"`
	ServerToClientBytes int64 `json:"server_to_client_bytes"`
	MirroredFiles       int64 `json:"mirrored_files"`
}

// Snapshot returns the current counter values.
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		ClientToServerBytes: s.clientToServerBytes.Load(),
		ServerToClientBytes: s.serverToClientBytes.Load(),
		MirroredFiles:       s.mirroredFiles.Load(),
	}
}
