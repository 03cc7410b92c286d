// Streams codec output to a websocket server, one binary message per output
// buffer. Example sink specs: "ws:ws://localhost:8000/frames", or the bare
// URL "ws://localhost:8000/frames".

package media

import (
	"io"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

const wsWriteTimeout = 5 * time.Second

// WebsocketSink sends each Write as one binary message.
type WebsocketSink struct {
	conn *websocket.Conn
	url  string
}

// DialWebsocket connects to url and returns a sink writing binary messages.
func DialWebsocket(url string) (*WebsocketSink, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "websocket dial")
	}
	log.Info("Connected to %s", url)
	return &WebsocketSink{conn: conn, url: url}, nil
}

func (s *WebsocketSink) Write(p []byte) (int, error) {
	s.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := s.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (s *WebsocketSink) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); err != nil {
		log.Debug("Close handshake with %s failed: %v", s.url, err)
	}
	return s.conn.Close()
}

// websocketURL rebuilds a bare URL that the registry split at its scheme.
func websocketURL(scheme, path string) string {
	if strings.HasPrefix(path, "//") {
		return scheme + ":" + path
	}
	return path
}

func init() {
	for _, scheme := range []string{"ws", "wss"} {
		scheme := scheme
		RegisterSinkType(scheme, func(path string) (io.WriteCloser, error) {
			return DialWebsocket(websocketURL(scheme, path))
		})
	}
}
