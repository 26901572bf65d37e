package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yugisim/duel-server-go/internal/cards"
	"github.com/yugisim/duel-server-go/internal/config"
	"github.com/yugisim/duel-server-go/internal/game"
	"go.uber.org/zap/zaptest"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func testCatalog() *cards.Catalog {
	catalog := cards.NewCatalog()
	for _, name := range []string{"Alpha", "Beta", "Gamma", "Delta", "Epsilon", "Zeta", "Eta", "Theta"} {
		catalog.Add(cards.Metadata{
			Name:     name,
			Kind:     cards.KindMonster,
			Category: cards.CategoryNormal,
			Level:    cards.IntPtr(4),
			Attack:   cards.IntPtr(1000),
			Defense:  cards.IntPtr(1000),
		})
	}
	return catalog
}

func testDeck() cards.DeckList {
	list := cards.DeckList{}
	for _, name := range testCatalog().Names() {
		list.Main = append(list.Main, cards.Entry{Name: name, Count: 3})
	}
	return list
}

func newTestDispatcher(t *testing.T) *game.Dispatcher {
	t.Helper()
	logger := zaptest.NewLogger(t)
	opts := game.DefaultOptions()
	opts.Shuffle = false
	return game.NewDispatcher(game.NewRegistry(testCatalog(), opts, logger), nil, logger)
}

type wsEnv struct {
	hub    *Hub
	server *httptest.Server
}

func newWSEnv(t *testing.T) *wsEnv {
	t.Helper()
	hub := NewHub(newTestDispatcher(t), zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(NewHTTPHandler(hub, config.WebSocketConfig{}))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return &wsEnv{hub: hub, server: srv}
}

type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func (e *wsEnv) dial(t *testing.T, actorID string) *wsClient {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/ws?actor_id=" + actorID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	c := &wsClient{t: t, conn: conn}
	welcome := c.read()
	require.Equal(t, MsgWelcome, welcome.Type)
	require.Equal(t, actorID, welcome.ActorID)
	return c
}

func (c *wsClient) send(msgType, sessionID string, data any) {
	c.t.Helper()
	msg := WSMessage{Type: msgType, SessionID: sessionID}
	if data != nil {
		raw, err := json.Marshal(data)
		require.NoError(c.t, err)
		msg.Data = raw
	}
	require.NoError(c.t, c.conn.WriteJSON(msg))
}

func (c *wsClient) read() WSMessage {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg WSMessage
	require.NoError(c.t, c.conn.ReadJSON(&msg))
	return msg
}

// readType skips frames until one of msgType arrives.
func (c *wsClient) readType(msgType string) WSMessage {
	c.t.Helper()
	for {
		msg := c.read()
		if msg.Type == msgType {
			return msg
		}
	}
}

func decodeState(t *testing.T, msg WSMessage) game.SessionView {
	t.Helper()
	var view game.SessionView
	require.NoError(t, json.Unmarshal(msg.Data, &view))
	assert.Equal(t, view.Checksum(), msg.Checksum)
	return view
}

func TestWebSocketDuel(t *testing.T) {
	env := newWSEnv(t)
	alice := env.dial(t, "p1")
	bob := env.dial(t, "p2")

	alice.send(MsgCreate, "", nil)
	created := alice.readType(MsgSessionCreated)
	id := created.SessionID
	require.NotEmpty(t, id)

	alice.send("join", id, map[string]any{"name": "Alice", "deck": testDeck()})
	view := decodeState(t, alice.readType(MsgGameState))
	assert.False(t, view.Started)

	bob.send("join", id, map[string]any{"name": "Bob", "deck": testDeck()})
	view = decodeState(t, bob.readType(MsgGameState))
	assert.True(t, view.Started)
	assert.Equal(t, "p1", view.TurnHolder)

	// Alice sees Bob's join too.
	view = decodeState(t, alice.readType(MsgGameState))
	assert.True(t, view.Started)

	// Errors go to the offender only.
	bob.send("end_turn", id, nil)
	errMsg := bob.readType(MsgError)
	assert.Equal(t, game.ErrNotYourTurn.Error(), errMsg.Error)

	card := view.Players["p1"].Hand[0]
	alice.send("play_card", id, map[string]any{"card_id": card.InstanceID})
	view = decodeState(t, alice.readType(MsgGameState))
	assert.Len(t, view.Players["p1"].Field, 1)

	// Bob's next frame is the play, not an error about his turn.
	next := bob.read()
	assert.Equal(t, MsgGameState, next.Type)

	alice.send("attack", id, map[string]any{"card_id": card.InstanceID})
	attack := bob.readType(MsgAttackResult)
	var result game.AttackResult
	require.NoError(t, json.Unmarshal(attack.Data, &result))
	assert.Equal(t, 1000, result.Damage)
	view = decodeState(t, bob.readType(MsgGameState))
	assert.Equal(t, 7000, view.Players["p2"].LifePoints)

	alice.send("end_turn", id, nil)
	view = decodeState(t, bob.readType(MsgGameState))
	assert.Equal(t, "p2", view.TurnHolder)

	// Disconnecting removes Alice and hands Bob the session.
	require.NoError(t, alice.conn.Close())
	view = decodeState(t, bob.readType(MsgGameState))
	assert.NotContains(t, view.Players, "p1")
	assert.False(t, view.Started)
	assert.Equal(t, "p2", view.TurnHolder)
}

func TestWebSocketRejectsUnknownMessages(t *testing.T) {
	env := newWSEnv(t)
	c := env.dial(t, "p1")

	c.send("summon_exodia", "whatever", nil)
	msg := c.readType(MsgError)
	assert.Contains(t, msg.Error, "unknown action")

	c.send("join", "no-such-session", map[string]any{"name": "A"})
	msg = c.readType(MsgError)
	assert.Equal(t, game.ErrSessionNotFound.Error(), msg.Error)

	require.NoError(t, c.conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	msg = c.readType(MsgError)
	assert.Contains(t, msg.Error, "invalid message")
}

func TestHTTPSessionEndpoints(t *testing.T) {
	env := newWSEnv(t)

	resp, err := http.Post(env.server.URL+"/sessions", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var created map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	id := created["session_id"]
	require.NotEmpty(t, id)

	resp2, err := http.Get(env.server.URL + "/sessions/" + id)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusOK, resp2.StatusCode)

	resp3, err := http.Get(env.server.URL + "/sessions/missing")
	require.NoError(t, err)
	defer resp3.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp3.StatusCode)

	resp4, err := http.Get(env.server.URL + "/healthz")
	require.NoError(t, err)
	defer resp4.Body.Close()
	var health map[string]any
	require.NoError(t, json.NewDecoder(resp4.Body).Decode(&health))
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, float64(1), health["sessions"])
}

func TestHTTPSessionJournal(t *testing.T) {
	env := newWSEnv(t)
	dispatcher := env.hub.dispatcher
	id := dispatcher.Create()

	_, err := dispatcher.Dispatch(id, game.Action{Type: game.ActionJoin, ActorID: "p1", Deck: testDeck()})
	require.NoError(t, err)
	_, err = dispatcher.Dispatch(id, game.Action{Type: game.ActionAdjustLife, ActorID: "p1", Delta: -500})
	require.NoError(t, err)

	getJournal := func(query string) (int, []game.JournalEntry) {
		resp, err := http.Get(env.server.URL + "/sessions/" + id + "/journal" + query)
		require.NoError(t, err)
		defer resp.Body.Close()
		var body struct {
			Entries []game.JournalEntry `json:"entries"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return resp.StatusCode, body.Entries
	}

	code, entries := getJournal("")
	require.Equal(t, http.StatusOK, code)
	require.NotEmpty(t, entries)
	last := entries[len(entries)-1]
	assert.Equal(t, 7500, last.View.Players["p1"].LifePoints)
	assert.Equal(t, last.View.Checksum(), last.Checksum)

	code, entries = getJournal("?since=" + strconv.Itoa(last.Seq))
	assert.Equal(t, http.StatusOK, code)
	assert.Empty(t, entries)

	code, _ = getJournal("?since=latest")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestCloseRoomNotifiesSeatedClients(t *testing.T) {
	env := newWSEnv(t)
	dispatcher := env.hub.dispatcher
	admin := NewSessionAdmin(dispatcher, env.hub.CloseRoom, zaptest.NewLogger(t))

	alice := env.dial(t, "p1")
	id := dispatcher.Create()
	alice.send("join", id, map[string]any{"name": "Alice", "deck": testDeck()})
	decodeState(t, alice.readType(MsgGameState))
	require.Equal(t, 1, env.hub.RoomSize(id))

	_, err := admin.CloseSession(context.Background(), wrapperspb.String(id))
	require.NoError(t, err)

	final := decodeState(t, alice.readType(MsgGameState))
	assert.Equal(t, id, final.SessionID)
	assert.Empty(t, final.Players)
	assert.Equal(t, 0, env.hub.RoomSize(id))
	assert.Equal(t, 0, dispatcher.Registry().Len())
}

func TestWelcomeIsFirstFrame(t *testing.T) {
	env := newWSEnv(t)
	for i := 0; i < 50; i++ {
		actorID := "a" + strconv.Itoa(i)
		url := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws?actor_id=" + actorID
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)

		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var msg WSMessage
		require.NoError(t, conn.ReadJSON(&msg))
		assert.Equal(t, MsgWelcome, msg.Type)
		assert.Equal(t, actorID, msg.ActorID)
		conn.Close()
	}
}
