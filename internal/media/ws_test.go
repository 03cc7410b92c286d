package media

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebsocketSink(t *testing.T) {
	for _, form := range []string{"ws:ws", "ws"} {
		t.Run(form, func(t *testing.T) {
			testWebsocketSink(t, form)
		})
	}
}

func testWebsocketSink(t *testing.T, prefix string) {
	received := make(chan []byte, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := new(websocket.Upgrader).Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, msg, err := conn.ReadMessage()
			if err != nil {
				close(received)
				return
			}
			if mt == websocket.BinaryMessage {
				received <- msg
			}
		}
	}))
	defer srv.Close()

	sink, err := OpenSink(prefix + strings.TrimPrefix(srv.URL, "http"))
	require.NoError(t, err)

	n, err := sink.Write([]byte("one"))
	assert.NoError(t, err)
	assert.Equal(t, 3, n)
	_, err = sink.Write([]byte("two"))
	assert.NoError(t, err)
	require.NoError(t, sink.Close())

	var msgs []string
	for msg := range received {
		msgs = append(msgs, string(msg))
	}
	assert.Equal(t, []string{"one", "two"}, msgs)
}

func TestWebsocketSinkDialFailure(t *testing.T) {
	_, err := DialWebsocket("ws://127.0.0.1:1/none")
	assert.Error(t, err)
}

func TestWebsocketURL(t *testing.T) {
	assert.Equal(t, "ws://host/frames", websocketURL("ws", "//host/frames"))
	assert.Equal(t, "wss://host/frames", websocketURL("wss", "//host/frames"))
	assert.Equal(t, "ws://host/frames", websocketURL("ws", "ws://host/frames"))
}
