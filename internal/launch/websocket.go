package launch

import (
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"rockerboo/lspdock/internal/logger"
)

// DialWebSocket attaches to an already-running language server over a
// plain WebSocket endpoint (ws://host:port/lsp), the third transport
// alongside docker exec and local exec -- useful when the server is
// long-lived and pre-started rather than spawned per session.
func DialWebSocket(host string, port int) (*Process, error) {
	if host == "" {
		host = "localhost"
	}
	if port <= 0 {
		port = 9999
	}
	url := fmt.Sprintf("ws://%s:%d/lsp", host, port)

	dialer := websocket.Dialer{
		NetDial: func(network, addr string) (net.Conn, error) {
			conn, err := (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).Dial(network, addr)
			if err != nil {
				return nil, err
			}
			if tcpConn, ok := conn.(*net.TCPConn); ok {
				_ = tcpConn.SetNoDelay(true)
			}
			return conn, nil
		},
		HandshakeTimeout: 45 * time.Second,
		ReadBufferSize:   4096,
		WriteBufferSize:  4096,
	}

	conn, _, err := dialer.Dial(url, http.Header{})
	if err != nil {
		return nil, fmt.Errorf("launch: dial %s: %w", url, err)
	}
	logger.Info("launch: attached over websocket", "url", url)

	rwc := newGorillaRWC(conn)
	return &Process{
		In:    rwc,
		Out:   rwc,
		close: rwc.Close,
	}, nil
}

// gorillaRWC adapts a gorilla/websocket connection's message-oriented
// frames into the plain byte-stream io.ReadWriteCloser the framing
// reader/writer expect.
type gorillaRWC struct {
	conn    *websocket.Conn
	readBuf []byte
	mu      sync.Mutex
}

func newGorillaRWC(conn *websocket.Conn) *gorillaRWC {
	return &gorillaRWC{conn: conn}
}

func (g *gorillaRWC) Read(p []byte) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.readBuf) > 0 {
		n := copy(p, g.readBuf)
		g.readBuf = g.readBuf[n:]
		return n, nil
	}

	_, msg, err := g.conn.ReadMessage()
	if err != nil {
		return 0, err
	}
	n := copy(p, msg)
	if n < len(msg) {
		g.readBuf = msg[n:]
	}
	return n, nil
}

func (g *gorillaRWC) Write(p []byte) (int, error) {
	if err := g.conn.WriteMessage(websocket.TextMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (g *gorillaRWC) Close() error {
	return g.conn.Close()
}
