package server

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/xsukax/securechat/api/websocket/identity"
	"github.com/xsukax/securechat/api/websocket/messages"
	"github.com/xsukax/securechat/config"
)

const readTimeout = 3 * time.Second

func newTestRelay(t *testing.T) (*WsServer, *httptest.Server) {
	ws := InitWsServer()
	ts := httptest.NewServer(ws)
	t.Cleanup(ts.Close)
	return ws, ts
}

// dialClient connects and consumes the identity_assigned frame.
func dialClient(t *testing.T, ts *httptest.Server) (*websocket.Conn, string) {
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	frame := readFrame(t, conn)
	require.Equal(t, messages.TypeIdentityAssigned, frame["type"])
	id, _ := frame["id"].(string)
	require.Len(t, id, identity.IDLength)
	for _, c := range id {
		require.True(t, strings.ContainsRune(identity.Alphabet, c))
	}
	return conn, id
}

func sendFrame(t *testing.T, conn *websocket.Conn, v interface{}) {
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(readTimeout)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var frame map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &frame))
	return frame
}

func requireErrorFrame(t *testing.T, frame map[string]interface{}, code string) {
	require.Equal(t, messages.TypeError, frame["type"])
	require.Equal(t, code, frame["code"])
	require.NotEmpty(t, frame["message"])
}

func TestIdentityAssignment(t *testing.T) {
	ws, ts := newTestRelay(t)

	_, aID := dialClient(t, ts)
	_, bID := dialClient(t, ts)

	require.NotEqual(t, aID, bID)
	require.Equal(t, 2, ws.SessionList.GetSessionCount())
	require.True(t, ws.SessionList.IsLive(aID))
	require.True(t, ws.SessionList.IsLive(bID))
}

func TestFriendFlowAndRouting(t *testing.T) {
	ws, ts := newTestRelay(t)

	connA, aID := dialClient(t, ts)
	connB, bID := dialClient(t, ts)

	// both sides register their key blobs up front
	sendFrame(t, connA, map[string]interface{}{"type": "register_key", "public_key_blob": "KEY-A"})
	require.Equal(t, messages.TypeKeyRegistered, readFrame(t, connA)["type"])
	sendFrame(t, connB, map[string]interface{}{"type": "register_key", "public_key_blob": "KEY-B"})
	require.Equal(t, messages.TypeKeyRegistered, readFrame(t, connB)["type"])

	// ids are normalized before lookup
	sendFrame(t, connA, map[string]interface{}{"type": "friend_request", "to_id": "  " + strings.ToLower(bID) + " "})

	frame := readFrame(t, connB)
	require.Equal(t, messages.TypeFriendRequestIncoming, frame["type"])
	require.Equal(t, aID, frame["from_id"])

	frame = readFrame(t, connA)
	require.Equal(t, messages.TypeFriendRequestSent, frame["type"])
	require.Equal(t, bID, frame["to_id"])

	// duplicate while pending is rejected
	sendFrame(t, connA, map[string]interface{}{"type": "friend_request", "to_id": bID})
	requireErrorFrame(t, readFrame(t, connA), "DuplicateRequest")

	sendFrame(t, connB, map[string]interface{}{"type": "friend_response", "from_id": aID, "accept": true})

	frame = readFrame(t, connA)
	require.Equal(t, messages.TypeFriendResponseResult, frame["type"])
	require.Equal(t, bID, frame["peer_id"])
	require.Equal(t, true, frame["accepted"])
	require.Equal(t, "KEY-B", frame["peer_key"])

	frame = readFrame(t, connB)
	require.Equal(t, messages.TypeFriendAdded, frame["type"])
	require.Equal(t, aID, frame["peer_id"])
	require.Equal(t, "KEY-A", frame["peer_key"])

	require.True(t, ws.FriendStore.AreFriends(aID, bID))
	require.True(t, ws.FriendStore.AreFriends(bID, aID))

	// route opaque ciphertext, delivered unmodified
	sendFrame(t, connA, map[string]interface{}{"type": "message", "to_id": bID, "ciphertext": "Qk1..."})

	frame = readFrame(t, connB)
	require.Equal(t, messages.TypeMessageIncoming, frame["type"])
	require.Equal(t, aID, frame["from_id"])
	require.Equal(t, "Qk1...", frame["ciphertext"])
	require.Greater(t, frame["timestamp"].(float64), float64(0))

	frame = readFrame(t, connA)
	require.Equal(t, messages.TypeMessageSent, frame["type"])
	require.Equal(t, bID, frame["to_id"])

	// friends list carries the peer key blob
	sendFrame(t, connB, map[string]interface{}{"type": "get_friends"})
	frame = readFrame(t, connB)
	require.Equal(t, messages.TypeFriendsList, frame["type"])
	list := frame["friends"].([]interface{})
	require.Len(t, list, 1)
	entry := list[0].(map[string]interface{})
	require.Equal(t, aID, entry["id"])
	require.Equal(t, "KEY-A", entry["public_key_blob"])
}

func TestRouteRequiresFriendship(t *testing.T) {
	_, ts := newTestRelay(t)

	connA, aID := dialClient(t, ts)
	connB, bID := dialClient(t, ts)
	connC, _ := dialClient(t, ts)

	// C is nobody's friend
	sendFrame(t, connC, map[string]interface{}{"type": "message", "to_id": bID, "ciphertext": "x"})
	requireErrorFrame(t, readFrame(t, connC), "NotFriends")

	// make A and B friends, then prove B's next delivery is A's message,
	// i.e. nothing from C ever arrived
	sendFrame(t, connA, map[string]interface{}{"type": "friend_request", "to_id": bID})
	readFrame(t, connA) // friend_request_sent
	readFrame(t, connB) // friend_request_incoming
	sendFrame(t, connB, map[string]interface{}{"type": "friend_response", "from_id": aID, "accept": true})
	readFrame(t, connA) // friend_response_result
	readFrame(t, connB) // friend_added

	sendFrame(t, connA, map[string]interface{}{"type": "message", "to_id": bID, "ciphertext": "from-a"})
	frame := readFrame(t, connB)
	require.Equal(t, messages.TypeMessageIncoming, frame["type"])
	require.Equal(t, aID, frame["from_id"])
	require.Equal(t, "from-a", frame["ciphertext"])
}

func TestDeclineLeavesNoState(t *testing.T) {
	ws, ts := newTestRelay(t)

	connA, aID := dialClient(t, ts)
	connB, bID := dialClient(t, ts)

	sendFrame(t, connA, map[string]interface{}{"type": "friend_request", "to_id": bID})
	readFrame(t, connA) // friend_request_sent
	readFrame(t, connB) // friend_request_incoming

	sendFrame(t, connB, map[string]interface{}{"type": "friend_response", "from_id": aID, "accept": false})

	frame := readFrame(t, connA)
	require.Equal(t, messages.TypeFriendResponseResult, frame["type"])
	require.Equal(t, false, frame["accepted"])

	require.False(t, ws.FriendStore.AreFriends(aID, bID))

	// second decline resolves nothing
	sendFrame(t, connB, map[string]interface{}{"type": "friend_response", "from_id": aID, "accept": false})
	requireErrorFrame(t, readFrame(t, connB), "NoSuchRequest")
}

func TestUnknownTarget(t *testing.T) {
	_, ts := newTestRelay(t)

	connA, aID := dialClient(t, ts)

	target := "ZZZZZ1"
	if target == aID {
		target = "ZZZZZ2"
	}
	sendFrame(t, connA, map[string]interface{}{"type": "friend_request", "to_id": target})
	requireErrorFrame(t, readFrame(t, connA), "UnknownTarget")

	sendFrame(t, connA, map[string]interface{}{"type": "friend_request", "to_id": aID})
	requireErrorFrame(t, readFrame(t, connA), "SelfRequest")
}

func TestMalformedFrames(t *testing.T) {
	_, ts := newTestRelay(t)

	connA, _ := dialClient(t, ts)

	require.NoError(t, connA.WriteMessage(websocket.TextMessage, []byte("not json")))
	requireErrorFrame(t, readFrame(t, connA), "IllegalDataFormat")

	sendFrame(t, connA, map[string]interface{}{"type": "bogus"})
	requireErrorFrame(t, readFrame(t, connA), "InvalidMethod")

	require.NoError(t, connA.WriteMessage(websocket.BinaryMessage, []byte{0x01}))
	requireErrorFrame(t, readFrame(t, connA), "IllegalDataFormat")

	sendFrame(t, connA, map[string]interface{}{"type": "friend_request", "to_id": ""})
	requireErrorFrame(t, readFrame(t, connA), "InvalidParams")

	// session survives malformed frames
	sendFrame(t, connA, map[string]interface{}{"type": "ping"})
	require.Equal(t, messages.TypePong, readFrame(t, connA)["type"])
}

func TestPingPong(t *testing.T) {
	_, ts := newTestRelay(t)

	connA, _ := dialClient(t, ts)
	sendFrame(t, connA, map[string]interface{}{"type": "ping"})
	require.Equal(t, messages.TypePong, readFrame(t, connA)["type"])
}

func TestDisconnectCancelsPending(t *testing.T) {
	ws, ts := newTestRelay(t)

	connA, aID := dialClient(t, ts)
	connB, bID := dialClient(t, ts)

	sendFrame(t, connA, map[string]interface{}{"type": "friend_request", "to_id": bID})
	readFrame(t, connA) // friend_request_sent
	readFrame(t, connB) // friend_request_incoming

	connA.Close()
	require.Eventually(t, func() bool {
		return !ws.SessionList.IsLive(aID)
	}, 3*time.Second, 10*time.Millisecond)

	sendFrame(t, connB, map[string]interface{}{"type": "friend_response", "from_id": aID, "accept": true})
	requireErrorFrame(t, readFrame(t, connB), "NoSuchRequest")
}

func TestHeartbeatTimeoutPrunesSession(t *testing.T) {
	origPong := config.Parameters.PongTimeoutSec
	origPing := config.Parameters.PingIntervalSec
	config.Parameters.PongTimeoutSec = 1
	config.Parameters.PingIntervalSec = 1
	t.Cleanup(func() {
		config.Parameters.PongTimeoutSec = origPong
		config.Parameters.PingIntervalSec = origPing
	})

	ws, ts := newTestRelay(t)

	connA, aID := dialClient(t, ts)
	_ = connA // silent client: never reads, so it never answers pings

	require.Eventually(t, func() bool {
		return !ws.SessionList.IsLive(aID)
	}, 5*time.Second, 50*time.Millisecond)

	// a dead peer is an unknown target afterwards
	connB, _ := dialClient(t, ts)
	sendFrame(t, connB, map[string]interface{}{"type": "friend_request", "to_id": aID})
	requireErrorFrame(t, readFrame(t, connB), "UnknownTarget")
}
