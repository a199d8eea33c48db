package ws_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
)

// startEchoServer runs a gorilla server that echoes data messages and answers
// close frames with gorilla's default handler. On /goodbye it starts the
// closing handshake itself after the first message.
func startEchoServer(t *testing.T) string {
	t.Helper()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()

		for {
			messageType, data, err := c.ReadMessage()
			if err != nil {
				return
			}
			if r.URL.Path == "/goodbye" {
				msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutdown")
				if err := c.WriteMessage(websocket.CloseMessage, msg); err != nil {
					return
				}
				continue
			}
			if err := c.WriteMessage(messageType, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http")
}
