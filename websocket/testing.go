package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

// StreamPattern is the route serving world streams.
const StreamPattern = "GET /worlds/{world}/stream"

// NewServer returns a WebSocket server that runs a handler created with
// newHandler for each connection.
func NewServer(handshake func(*websocket.Config, *http.Request) error, newHandler func() Handler) websocket.Server {
	return websocket.Server{
		Handshake: handshake,
		Handler: func(conn *websocket.Conn) {
			defer conn.Close()

			handler := newHandler()
			defer handler.Close()

			Handle(conn.Request().Context(), conn, handler)
		},
	}
}

// TestingEnv is an environment to test stream handlers.
type TestingEnv struct {
	t      *testing.T
	server *httptest.Server
}

// NewTestingEnv creates a testing environment serving the handlers created
// with newHandler on the stream route.
func NewTestingEnv(t *testing.T, newHandler func() Handler) (*TestingEnv, func()) {
	var mutex sync.Mutex
	logger := t.Log

	logs.Encoder = func(v any) ([]byte, error) {
		return json.MarshalIndent(v, "", "  ")
	}

	logs.SetLogger(func(e logs.Entry) {
		mutex.Lock()
		defer mutex.Unlock()

		if logger != nil {
			logger(e)
		}
	})

	errors.Encoder = json.Marshal

	var mux http.ServeMux
	mux.Handle(StreamPattern, NewServer(nil, newHandler))

	env := &TestingEnv{
		t:      t,
		server: httptest.NewServer(&mux),
	}

	return env, func() {
		env.server.Close()

		mutex.Lock()
		defer mutex.Unlock()
		logger = nil
	}
}

// Dial connects a client to the stream of the given world. rawQuery is added
// to the stream url when not empty.
func (e *TestingEnv) Dial(worldUUID, rawQuery string) *websocket.Conn {
	url := strings.ReplaceAll(e.server.URL, "http://", "ws://") + "/worlds/" + worldUUID + "/stream"
	if rawQuery != "" {
		url += "?" + rawQuery
	}

	config, err := websocket.NewConfig(url, "http://localhost")
	if err != nil {
		e.t.Fatalf("error initializing web socket: %s", err)
	}

	config.Header.Set("User-Agent", "ted")
	config.Header.Set("X-Forwarded-For", "192.0.0.0")

	conn, err := websocket.DialConfig(config)
	if err != nil {
		e.t.Fatalf("error dialing web socket: %s", err)
	}
	e.t.Cleanup(func() { conn.Close() })
	return conn
}

// Receive reads messages from conn until one with the given type is
// received.
func Receive(ctx context.Context, conn *websocket.Conn, msgType string) (Msg, error) {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(time.Second)
	}
	conn.SetReadDeadline(deadline)
	defer conn.SetReadDeadline(time.Time{})

	for {
		var msg Msg
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			return Msg{}, err
		}
		if msg.Type == msgType {
			return msg, nil
		}
	}
}
