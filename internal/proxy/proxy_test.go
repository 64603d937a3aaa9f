package proxy

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"rockerboo/lspdock/internal/framing"
	"rockerboo/lspdock/internal/stats"
	"rockerboo/lspdock/internal/tracker"
)

// fakeLanguageServer reads framed messages off in and writes them back
// out unchanged, until in is closed, then closes out -- mirroring how
// a real child process closing its stdin causes its stdout pipe to be
// closed by the kernel when the process exits.
func fakeLanguageServer(in io.Reader, out io.WriteCloser) {
	defer out.Close()
	r := framing.NewReader(in)
	w := framing.NewWriter(out)
	for {
		msgs, err := r.ReadMessages()
		if err != nil || msgs == nil {
			return
		}
		for _, m := range msgs {
			if w.WriteMessage(m) != nil {
				return
			}
		}
	}
}

func TestRunForwardsAndEchoesRoundTrip(t *testing.T) {
	editorInR, editorInW := io.Pipe()
	editorOutR, editorOutW := io.Pipe()
	serverInR, serverInW := io.Pipe()
	serverOutR, serverOutW := io.Pipe()

	go fakeLanguageServer(serverInR, serverOutW)

	cfg := Config{UseDocker: false}
	trk := tracker.New(tracker.Config{UseDocker: false})
	st := stats.New()

	done := make(chan error, 1)
	go func() {
		done <- Run(context.Background(), cfg, trk, st, Streams{
			EditorIn:  editorInR,
			EditorOut: editorOutW,
			ServerIn:  serverInW,
			ServerOut: serverOutR,
		})
	}()

	writer := framing.NewWriter(editorInW)
	require.NoError(t, writer.WriteMessage(framing.Message(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`)))

	reader := framing.NewReader(editorOutR)
	readDone := make(chan []framing.Message, 1)
	go func() {
		msgs, err := reader.ReadMessages()
		require.NoError(t, err)
		readDone <- msgs
	}()

	select {
	case msgs := <-readDone:
		require.Len(t, msgs, 1)
		require.JSONEq(t, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`, string(msgs[0]))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for echoed message")
	}

	// Closing both input pipes mirrors the editor exiting and, in turn,
	// the proxy tearing down the child process: both directions see a
	// clean EOF and the supervisor returns with no error.
	require.NoError(t, editorInW.Close())
	require.NoError(t, serverInW.Close())

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after streams closed")
	}

	snap := st.Snapshot()
	require.Greater(t, snap.ClientToServerBytes, int64(0))
	require.Greater(t, snap.ServerToClientBytes, int64(0))
}

// TestRunEndsWhenBothStreamsClose exercises the plain shutdown path:
// no signal, no watchdog, both directions reach a clean EOF. A
// context.Context cannot interrupt a blocked pipe Read -- the same
// limitation real stdin has -- so what actually ends a direction is
// its own stream closing, not a later cancellation.
func TestRunEndsWhenBothStreamsClose(t *testing.T) {
	editorInR, editorInW := io.Pipe()
	editorOutR, editorOutW := io.Pipe()
	serverInR, serverInW := io.Pipe()
	serverOutR, serverOutW := io.Pipe()

	go fakeLanguageServer(serverInR, serverOutW)
	go io.Copy(io.Discard, editorOutR)

	cfg := Config{UseDocker: false}
	trk := tracker.New(tracker.Config{UseDocker: false})
	st := stats.New()

	done := make(chan error, 1)
	go func() {
		done <- Run(context.Background(), cfg, trk, st, Streams{
			EditorIn:  editorInR,
			EditorOut: editorOutW,
			ServerIn:  serverInW,
			ServerOut: serverOutR,
		})
	}()

	require.NoError(t, editorInW.Close())
	require.NoError(t, serverInW.Close())

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after streams closed")
	}
}

func TestConfigRequiresPIDPatch(t *testing.T) {
	cfg := Config{
		Executable:       "gopls",
		PatchPIDBinaries: map[string]struct{}{"gopls": {}},
	}
	require.True(t, cfg.requiresPIDPatch())

	other := Config{Executable: "rust-analyzer", PatchPIDBinaries: map[string]struct{}{"gopls": {}}}
	require.False(t, other.requiresPIDPatch())

	unset := Config{}
	require.False(t, unset.requiresPIDPatch())
}
