package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"gorahrib/internal/config"
	"gorahrib/internal/models"
	"gorahrib/internal/notifications"
	"gorahrib/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type liveServer struct {
	srv  *Server
	addr string
}

// startLiveServer serves the full API on a loopback port so real websocket
// clients can connect.
func startLiveServer(t *testing.T) (*liveServer, *models.User, *models.User) {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	srv := newServer(&config.Config{JWTSecret: testSecret}, db, rdb, testutil.NewObjectStoreStub())
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	srv.SetupMiddleware(app)
	srv.SetupRoutes(app)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, srv.hub.StartWiring(ctx, srv.notifier))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() {
		cancel()
		_ = srv.hub.Shutdown(context.Background())
		_ = app.Shutdown()
	})

	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	return &liveServer{srv: srv, addr: ln.Addr().String()}, alice, bob
}

func (l *liveServer) post(t *testing.T, path string, as *models.User) *http.Response {
	t.Helper()
	tok, err := l.srv.generateToken(as.ID, as.Username)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, "http://"+l.addr+path, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (l *liveServer) dial(t *testing.T, as *models.User) *websocket.Conn {
	t.Helper()
	resp := l.post(t, "/api/ws/ticket", as)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var issued struct {
		Ticket string `json:"ticket"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&issued))

	url := fmt.Sprintf("ws://%s/api/ws?ticket=%s", l.addr, issued.Ticket)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) notifications.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var ev notifications.Event
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestWebsocket_DeliversFriendRequestLive(t *testing.T) {
	live, alice, bob := startLiveServer(t)

	conn := live.dial(t, alice)
	snapshot := readEvent(t, conn)
	assert.Equal(t, notifications.EventFriendsOnline, snapshot.Type)

	assert.Eventually(t, func() bool {
		return live.srv.hub.IsOnline(context.Background(), alice.ID)
	}, time.Second, 10*time.Millisecond)

	resp := live.post(t, "/api/friends/requests/"+idStr(alice.ID), bob)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	ev := readEvent(t, conn)
	assert.Equal(t, notifications.EventFriendRequest, ev.Type)
}

func TestWebsocket_TicketCannotBeReplayed(t *testing.T) {
	live, alice, _ := startLiveServer(t)

	resp := live.post(t, "/api/ws/ticket", alice)
	var issued struct {
		Ticket string `json:"ticket"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&issued))
	url := fmt.Sprintf("ws://%s/api/ws?ticket=%s", live.addr, issued.Ticket)

	first, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer func() { _ = first.Close() }()
	assert.Eventually(t, func() bool { return live.srv.hub.Connections() == 1 }, time.Second, 10*time.Millisecond)

	_, httpResp, err := websocket.DefaultDialer.Dial(url, nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, httpResp)
	assert.Equal(t, http.StatusUnauthorized, httpResp.StatusCode)
}
