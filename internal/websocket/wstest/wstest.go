// Package wstest provides live WebSocket connection pairs for tests in
// packages that sit above the connection layer.
package wstest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"

	"chatwire/internal/websocket"
	"chatwire/pkg/types"
)

var upgrader = gorilla.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Pipe returns a server-side Connection and the matching client-side
// socket, connected through a real WebSocket handshake. Both are closed
// on test cleanup.
func Pipe(t *testing.T) (*websocket.Connection, *gorilla.Conn) {
	t.Helper()

	serverCh := make(chan *gorilla.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		serverCh <- conn
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := gorilla.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	var serverConn *gorilla.Conn
	select {
	case serverConn = <-serverCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server-side connection")
	}

	conn := websocket.NewConnection(serverConn)
	t.Cleanup(func() { _ = conn.Close() })

	return conn, client
}

// ReadEvent reads enveloped frames from the client side until one with
// the wanted event name arrives, failing the test on timeout.
func ReadEvent(t *testing.T, client *gorilla.Conn, event string) types.Envelope {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for {
		if err := client.SetReadDeadline(deadline); err != nil {
			t.Fatalf("failed to set read deadline: %v", err)
		}
		_, data, err := client.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for event %q: %v", event, err)
		}

		var envelope types.Envelope
		if err := json.Unmarshal(data, &envelope); err != nil {
			t.Fatalf("malformed frame while waiting for %q: %s", event, data)
		}
		if envelope.Event == event {
			return envelope
		}
	}
}

// ExpectSilence asserts no frame arrives on the client within the given
// window.
func ExpectSilence(t *testing.T, client *gorilla.Conn, window time.Duration) {
	t.Helper()

	if err := client.SetReadDeadline(time.Now().Add(window)); err != nil {
		t.Fatalf("failed to set read deadline: %v", err)
	}
	if _, data, err := client.ReadMessage(); err == nil {
		t.Fatalf("expected no frame, got: %s", data)
	}
}

// Decode unmarshals an envelope's data into out.
func Decode(t *testing.T, envelope types.Envelope, out interface{}) {
	t.Helper()

	if err := json.Unmarshal(envelope.Data, out); err != nil {
		t.Fatalf("failed to decode %s payload: %v", envelope.Event, err)
	}
}
