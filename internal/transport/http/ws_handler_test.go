package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/wirespace-server/internal/auth"
	"github.com/vovakirdan/wirespace-server/internal/config"
	"github.com/vovakirdan/wirespace-server/internal/core"
	"github.com/vovakirdan/wirespace-server/internal/proto"
	"github.com/vovakirdan/wirespace-server/internal/store"
	"github.com/vovakirdan/wirespace-server/internal/store/sqlite"
)

const testSecret = "test-secret"

type testEnv struct {
	ts  *httptest.Server
	hub *core.Hub
	jwt *auth.JWTConfig
}

func startTestServer(t *testing.T, mutate func(*config.Config, *core.Options)) *testEnv {
	t.Helper()

	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.CreateSpace(context.Background(), &store.Space{ID: "R1", Name: "Room one", Width: 5, Height: 5}))

	cfg := config.Default()
	cfg.JWTSecret = testSecret
	opts := core.Options{
		IdleCheckInterval: time.Hour,
		IdleTimeout:       time.Hour,
		JoinTimeout:       time.Second,
		Spawn:             func(core.Bounds) core.Position { return core.Position{} },
	}
	if mutate != nil {
		mutate(&cfg, &opts)
	}

	logger := zerolog.Nop()
	jwtCfg := &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      time.Hour,
	}
	hub := core.NewHub(st, opts, &logger)
	server := NewServer(hub, st, auth.NewResolver(jwtCfg, cfg.RequireToken), &cfg, &logger)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)
	return &testEnv{ts: ts, hub: hub, jwt: jwtCfg}
}

func (e *testEnv) wsURL(query string) string {
	u := strings.Replace(e.ts.URL, "http", "ws", 1) + "/ws"
	if query != "" {
		u += "?" + query
	}
	return u
}

func (e *testEnv) dial(t *testing.T, ctx context.Context, query string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.Dial(ctx, e.wsURL(query), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

type frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func send(t *testing.T, ctx context.Context, conn *websocket.Conn, typ string, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, wsjson.Write(ctx, conn, frame{Type: typ, Payload: raw}))
}

func expect(t *testing.T, ctx context.Context, conn *websocket.Conn, typ string, into any) {
	t.Helper()
	var f frame
	require.NoError(t, wsjson.Read(ctx, conn, &f))
	require.Equal(t, typ, f.Type, "payload: %s", f.Payload)
	if into != nil {
		require.NoError(t, json.Unmarshal(f.Payload, into))
	}
}

func TestHealthEndpoint(t *testing.T) {
	env := startTestServer(t, nil)

	resp, err := env.ts.Client().Get(env.ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWebSocketJoinMoveLeave(t *testing.T) {
	env := startTestServer(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	connA := env.dial(t, ctx, "")
	connB := env.dial(t, ctx, "")

	send(t, ctx, connA, proto.InboundTypeJoin, proto.JoinData{SpaceID: "R1"})
	var ackA proto.SpaceJoinedData
	expect(t, ctx, connA, proto.OutboundTypeSpaceJoined, &ackA)
	assert.Equal(t, proto.Point{}, ackA.Spawn)
	assert.Empty(t, ackA.Users)

	send(t, ctx, connB, proto.InboundTypeJoin, proto.JoinData{SpaceID: "R1"})
	var ackB proto.SpaceJoinedData
	expect(t, ctx, connB, proto.OutboundTypeSpaceJoined, &ackB)
	require.Len(t, ackB.Users, 1)
	assert.Equal(t, ackA.UserID, ackB.Users[0].UserID)
	assert.Contains(t, ackB.Users[0].Name, "guest-")

	var joined proto.UserState
	expect(t, ctx, connA, proto.OutboundTypeUserJoined, &joined)
	assert.Equal(t, ackB.UserID, joined.UserID)

	send(t, ctx, connA, proto.InboundTypeMove, proto.Point{X: 1, Y: 0})
	var moved proto.MovementData
	expect(t, ctx, connB, proto.OutboundTypeMovement, &moved)
	assert.Equal(t, proto.MovementData{UserID: ackA.UserID, X: 1, Y: 0}, moved)

	send(t, ctx, connA, proto.InboundTypeMove, proto.Point{X: 3, Y: 3})
	var rejected proto.MovementRejectedData
	expect(t, ctx, connA, proto.OutboundTypeMovementRejected, &rejected)
	assert.Equal(t, 1, rejected.X)
	assert.Equal(t, 0, rejected.Y)

	require.NoError(t, connA.Close(websocket.StatusNormalClosure, "bye"))
	var left proto.UserLeftData
	expect(t, ctx, connB, proto.OutboundTypeUserLeft, &left)
	assert.Equal(t, ackA.UserID, left.UserID)

	require.Eventually(t, func() bool { return env.hub.Rooms().Count("R1") == 1 }, time.Second, 10*time.Millisecond)
}

func TestWebSocketProtocolErrorsKeepConnection(t *testing.T) {
	env := startTestServer(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn := env.dial(t, ctx, "")

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(`{"type":`)))
	var e proto.ErrorData
	expect(t, ctx, conn, proto.OutboundTypeError, &e)
	assert.Equal(t, "malformed frame", e.Message)

	send(t, ctx, conn, "teleport", map[string]int{})
	expect(t, ctx, conn, proto.OutboundTypeError, &e)
	assert.Contains(t, e.Message, "teleport")

	send(t, ctx, conn, proto.InboundTypeJoin, proto.JoinData{SpaceID: "R1"})
	expect(t, ctx, conn, proto.OutboundTypeSpaceJoined, nil)
}

func TestWebSocketUnknownSpaceCloses(t *testing.T) {
	env := startTestServer(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn := env.dial(t, ctx, "")

	send(t, ctx, conn, proto.InboundTypeJoin, proto.JoinData{SpaceID: "nowhere"})

	_, _, err := conn.Read(ctx)
	require.Error(t, err)
	assert.Equal(t, websocket.StatusPolicyViolation, websocket.CloseStatus(err))
}

func TestWebSocketSignalRelay(t *testing.T) {
	env := startTestServer(t, func(_ *config.Config, opts *core.Options) {
		next := 0
		opts.Spawn = func(core.Bounds) core.Position {
			next++
			return core.Position{X: next}
		}
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	connA := env.dial(t, ctx, "")
	connB := env.dial(t, ctx, "")
	var ackA, ackB proto.SpaceJoinedData
	send(t, ctx, connA, proto.InboundTypeJoin, proto.JoinData{SpaceID: "R1"})
	expect(t, ctx, connA, proto.OutboundTypeSpaceJoined, &ackA)
	send(t, ctx, connB, proto.InboundTypeJoin, proto.JoinData{SpaceID: "R1"})
	expect(t, ctx, connB, proto.OutboundTypeSpaceJoined, &ackB)
	expect(t, ctx, connA, proto.OutboundTypeUserJoined, nil)

	offer := []byte(`{"type":"offer","payload":{"from":"` + ackA.UserID + `","to":"` + ackB.UserID +
		`","spaceId":"R1","sdp":{"type":"offer","sdp":"v=0"}}}`)
	require.NoError(t, connA.Write(ctx, websocket.MessageText, offer))

	_, got, err := connB.Read(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, string(offer), string(got))
}

func TestWebSocketIdleKick(t *testing.T) {
	env := startTestServer(t, func(_ *config.Config, opts *core.Options) {
		opts.IdleCheckInterval = 10 * time.Millisecond
		opts.IdleTimeout = 200 * time.Millisecond
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c := env.dial(t, ctx, "")

	send(t, ctx, c, proto.InboundTypeJoin, proto.JoinData{SpaceID: "R1"})
	expect(t, ctx, c, proto.OutboundTypeSpaceJoined, nil)

	var kick proto.IdleKickData
	expect(t, ctx, c, proto.OutboundTypeIdleKick, &kick)
	assert.Equal(t, core.IdleKickReason, kick.Reason)

	_, _, err := c.Read(ctx)
	require.Error(t, err)
	assert.Equal(t, websocket.StatusNormalClosure, websocket.CloseStatus(err))
	require.Eventually(t, func() bool { return env.hub.Rooms().Count("R1") == 0 }, time.Second, 10*time.Millisecond)
}

func TestWebSocketRateLimit(t *testing.T) {
	env := startTestServer(t, func(cfg *config.Config, _ *core.Options) {
		cfg.MessageRateLimit = 1
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c := env.dial(t, ctx, "")

	send(t, ctx, c, proto.InboundTypeJoin, proto.JoinData{SpaceID: "R1"})
	expect(t, ctx, c, proto.OutboundTypeSpaceJoined, nil)

	send(t, ctx, c, proto.InboundTypeMove, proto.Point{X: 1, Y: 0})
	var e proto.ErrorData
	expect(t, ctx, c, proto.OutboundTypeError, &e)
	assert.Equal(t, "rate limit exceeded", e.Message)
}

func TestWebSocketTokens(t *testing.T) {
	env := startTestServer(t, func(cfg *config.Config, _ *core.Options) {
		cfg.RequireToken = true
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, resp, err := websocket.Dial(ctx, env.wsURL(""), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.Dial(ctx, env.wsURL("token=garbage"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token, err := auth.GenerateToken(env.jwt, "user-1", "Ada", false)
	require.NoError(t, err)
	c, _, err := websocket.Dial(ctx, env.wsURL(""), &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": []string{"Bearer " + token}},
	})
	require.NoError(t, err)
	defer c.Close(websocket.StatusNormalClosure, "done")

	send(t, ctx, c, proto.InboundTypeJoin, proto.JoinData{SpaceID: "R1"})
	var ack proto.SpaceJoinedData
	expect(t, ctx, c, proto.OutboundTypeSpaceJoined, &ack)
	assert.NotEmpty(t, ack.UserID)
	assert.Equal(t, 1, env.hub.Relay().Len())
}

func TestWebSocketUpgradeOnServerHandler(t *testing.T) {
	env := startTestServer(t, func(cfg *config.Config, _ *core.Options) {
		cfg.RequireToken = true
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := env.ts.Client().Get(env.ts.URL + "/ws")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")
	var body ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "unauthorized", body.Error)

	token, err := auth.GenerateToken(env.jwt, "user-2", "Grace", false)
	require.NoError(t, err)
	c, upgrade, err := websocket.Dial(ctx, env.wsURL("token="+token), nil)
	require.NoError(t, err)
	defer c.Close(websocket.StatusNormalClosure, "done")
	assert.Equal(t, http.StatusSwitchingProtocols, upgrade.StatusCode)

	// The upgraded stream must carry frames both ways.
	send(t, ctx, c, proto.InboundTypeMove, proto.Point{X: 1, Y: 0})
	var errFrame proto.ErrorData
	expect(t, ctx, c, proto.OutboundTypeError, &errFrame)
	assert.Equal(t, "not in a space", errFrame.Message)

	send(t, ctx, c, proto.InboundTypeJoin, proto.JoinData{SpaceID: "R1"})
	var ack proto.SpaceJoinedData
	expect(t, ctx, c, proto.OutboundTypeSpaceJoined, &ack)
	assert.Equal(t, 1, env.hub.Rooms().Count("R1"))
}

func TestSpacesAPI(t *testing.T) {
	env := startTestServer(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client := env.ts.Client()

	c := env.dial(t, ctx, "")
	send(t, ctx, c, proto.InboundTypeJoin, proto.JoinData{SpaceID: "R1"})
	var ack proto.SpaceJoinedData
	expect(t, ctx, c, proto.OutboundTypeSpaceJoined, &ack)

	resp, err := client.Get(env.ts.URL + "/api/spaces")
	require.NoError(t, err)
	var spaces []SpaceResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&spaces))
	resp.Body.Close()
	require.Len(t, spaces, 1)
	assert.Equal(t, "R1", spaces[0].ID)
	assert.Equal(t, 1, spaces[0].Members)

	resp, err = client.Get(env.ts.URL + "/api/spaces/R1/occupancy")
	require.NoError(t, err)
	var occ OccupancyResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&occ))
	resp.Body.Close()
	require.Len(t, occ.Members, 1)
	assert.Equal(t, ack.UserID, occ.Members[0].UserID)

	resp, err = client.Get(env.ts.URL + "/api/spaces/nowhere/occupancy")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	body := []byte(`{"id":"R2","name":"Room two","width":3,"height":4}`)
	resp, err = client.Post(env.ts.URL+"/api/spaces", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token, err := auth.GenerateToken(env.jwt, "admin", "admin", false)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, env.ts.URL+"/api/spaces", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	req, err = http.NewRequest(http.MethodPost, env.ts.URL+"/api/spaces", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestCloseStatus(t *testing.T) {
	status, reason := closeStatus(core.CloseSpaceNotFound, nil)
	assert.Equal(t, websocket.StatusPolicyViolation, status)
	assert.Equal(t, "space not found", reason)

	status, _ = closeStatus(core.CloseNormal, context.Canceled)
	assert.Equal(t, websocket.StatusNormalClosure, status)

	status, _ = closeStatus(core.CloseNormal, assert.AnError)
	assert.Equal(t, websocket.StatusInternalError, status)
}

func TestWSConnBackpressureAndClose(t *testing.T) {
	c := newWSConn(1)
	require.NoError(t, c.Send(&core.Event{Kind: core.EventMovement}))
	assert.ErrorIs(t, c.Send(&core.Event{Kind: core.EventMovement}), core.ErrBackpressure)

	c.Close(core.CloseIdle)
	c.Close(core.CloseNormal)
	assert.False(t, c.Open())
	assert.Equal(t, core.CloseIdle, c.closeReason())
	assert.ErrorIs(t, c.Send(&core.Event{}), core.ErrConnClosed)

	// The queued event survives the close.
	ev, ok := <-c.send
	assert.True(t, ok)
	assert.Equal(t, core.EventMovement, ev.Kind)
	_, ok = <-c.send
	assert.False(t, ok)
}
