package framing

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frame(body string) string {
	return "Content-Length: " + itoa(len(body)) + "\r\n\r\n" + body
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var b []byte
	for n > 0 {
		b = append([]byte{byte('0' + n%10)}, b...)
		n /= 10
	}
	return string(b)
}

func TestReadSingleMessage(t *testing.T) {
	body := `{"jsonrpc":"2.0","id":1,"method":"initialize"}`
	r := NewReader(strings.NewReader(frame(body)))

	msgs, err := r.ReadMessages()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, body, string(msgs[0]))
}

func TestReadBatchedMessages(t *testing.T) {
	b1 := `{"id":1}`
	b2 := `{"id":2}`
	stream := frame(b1) + frame(b2)
	r := NewReader(strings.NewReader(stream))

	msgs, err := r.ReadMessages()
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, b1, string(msgs[0]))
	assert.Equal(t, b2, string(msgs[1]))
}

func TestReadToleratesTruncatedContentLengthKey(t *testing.T) {
	body := `{"id":1}`
	stream := "ontent-length: " + itoa(len(body)) + "\r\n\r\n" + body
	r := NewReader(strings.NewReader(stream))

	msgs, err := r.ReadMessages()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, body, string(msgs[0]))
}

func TestReadCleanEOF(t *testing.T) {
	r := NewReader(strings.NewReader(""))
	msgs, err := r.ReadMessages()
	require.NoError(t, err)
	assert.Nil(t, msgs)
}

func TestReadUnexpectedEOFOnPartialFrame(t *testing.T) {
	r := NewReader(strings.NewReader("Content-Length: 100\r\n\r\nshort"))
	_, err := r.ReadMessages()
	require.Error(t, err)
}

func TestReadMissingContentLength(t *testing.T) {
	r := NewReader(strings.NewReader("Content-Type: foo\r\n\r\n{}"))
	_, err := r.ReadMessages()
	require.Error(t, err)
}

func TestReadRejectsOversizeContentLength(t *testing.T) {
	stream := "Content-Length: 99999999999\r\n\r\n"
	r := NewReader(strings.NewReader(stream))
	_, err := r.ReadMessages()
	require.Error(t, err)
}

func TestReadRejectsOversizeHeader(t *testing.T) {
	huge := strings.Repeat("X-Pad: filler\r\n", 1000)
	stream := huge + "Content-Length: 2\r\n\r\n{}"
	r := NewReader(strings.NewReader(stream))
	_, err := r.ReadMessages()
	require.Error(t, err)
}

func TestWriteMessageRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	body := Message(`{"jsonrpc":"2.0","id":1}`)

	require.NoError(t, w.WriteMessage(body))

	r := NewReader(&buf)
	msgs, err := r.ReadMessages()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, string(body), string(msgs[0]))
}

func TestWriteMessageRepeatable(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteMessage(Message("a")))
	require.NoError(t, w.WriteMessage(Message("b")))

	r := NewReader(&buf)
	msgs, err := r.ReadMessages()
	require.NoError(t, err)
	require.Len(t, msgs, 2)
}

// chunkedReader dribbles bytes out a handful at a time, to exercise the
// reader's refill loop across partial frames.
type chunkedReader struct {
	data []byte
	pos  int
	size int
}

func (c *chunkedReader) Read(p []byte) (int, error) {
	if c.pos >= len(c.data) {
		return 0, io.EOF
	}
	n := c.size
	if n > len(p) {
		n = len(p)
	}
	if c.pos+n > len(c.data) {
		n = len(c.data) - c.pos
	}
	copy(p, c.data[c.pos:c.pos+n])
	c.pos += n
	return n, nil
}

func TestReadAcrossChunkBoundaries(t *testing.T) {
	body := `{"id":1,"method":"textDocument/definition"}`
	stream := frame(body)
	r := NewReader(&chunkedReader{data: []byte(stream), size: 3})

	var got []byte
	for {
		msgs, err := r.ReadMessages()
		require.NoError(t, err)
		if msgs == nil {
			break
		}
		for _, m := range msgs {
			got = append(got, m...)
		}
	}
	assert.Equal(t, body, string(got))
}
