package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/xsukax/securechat/api/common"
	"github.com/xsukax/securechat/api/ratelimiter"
	"github.com/xsukax/securechat/api/websocket/friends"
	"github.com/xsukax/securechat/api/websocket/identity"
	"github.com/xsukax/securechat/api/websocket/messages"
	"github.com/xsukax/securechat/api/websocket/session"
	"github.com/xsukax/securechat/config"
)

const (
	maxMessageSize = config.MaxClientMessageSize
)

type actionHandler func(sess *session.Session, raw []byte) error

// WsServer is the relay. It owns the connection registry, the friend store
// and the identity allocator, and is the only writer of session state
// transitions: each connection's frames are handled one at a time by its own
// reader goroutine, and cross-session effects go through the serialized
// registry and store operations.
type WsServer struct {
	Upgrader    websocket.Upgrader
	listener    net.Listener
	server      *http.Server
	SessionList *session.SessionList
	FriendStore *friends.Store
	allocator   *identity.Allocator
	actionMap   map[string]actionHandler
	StartTime   time.Time
}

func InitWsServer() *WsServer {
	sessionList := session.NewSessionList()
	ws := &WsServer{
		Upgrader:    websocket.Upgrader{},
		SessionList: sessionList,
		FriendStore: friends.NewStore(),
		allocator:   identity.NewAllocator(sessionList, config.Parameters.IDReuseCooldown()),
		StartTime:   time.Now(),
	}
	ws.registryMethod()
	return ws
}

func (ws *WsServer) Start() error {
	if config.Parameters.HttpWsPort == 0 {
		logrus.Error("HttpWsPort is not configured")
		return nil
	}
	ws.Upgrader.CheckOrigin = func(r *http.Request) bool {
		return true
	}

	var err error
	ws.listener, err = net.Listen("tcp", ":"+strconv.Itoa(int(config.Parameters.HttpWsPort)))
	if err != nil {
		logrus.WithError(err).Error("net.Listen")
		return err
	}

	logrus.WithField("port", config.Parameters.HttpWsPort).Info("websocket relay listening")

	ws.server = &http.Server{Handler: ws}
	return ws.server.Serve(ws.listener)
}

func (ws *WsServer) Stop() {
	if ws.server != nil {
		ws.server.Shutdown(context.Background())
		logrus.Info("websocket relay stopped")
	}
}

func (ws *WsServer) registryMethod() {
	ws.actionMap = map[string]actionHandler{
		messages.TypeRegisterKey:    ws.handleRegisterKey,
		messages.TypeFriendRequest:  ws.handleFriendRequest,
		messages.TypeFriendResponse: ws.handleFriendResponse,
		messages.TypeMessage:        ws.handleMessage,
		messages.TypeGetFriends:     ws.handleGetFriends,
		messages.TypePing:           ws.handlePing,
	}
}

// ServeHTTP upgrades the connection, runs the registration handshake and then
// processes one inbound frame at a time until the transport closes or the
// heartbeat window lapses.
func (ws *WsServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	wsConn, err := ws.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.WithError(err).Error("websocket upgrade")
		return
	}
	defer wsConn.Close()

	remoteAddr := r.RemoteAddr
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		remoteAddr = host
	}

	sess, err := ws.SessionList.NewSession(wsConn, remoteAddr)
	if err != nil {
		logrus.WithError(err).Error("websocket new session")
		return
	}

	defer func() {
		ws.cleanupSession(sess)
		if err := recover(); err != nil {
			logrus.Errorf("websocket recover: %v", err)
		}
	}()

	id, err := ws.allocator.Allocate()
	if err != nil {
		logrus.WithError(err).Error("identity allocation")
		ws.respondError(sess, common.CodeOf(err))
		return
	}
	if _, err = ws.SessionList.ChangeSessionToID(sess.GetSessionId(), id); err != nil {
		logrus.WithError(err).Error("session registration")
		return
	}

	logrus.WithFields(logrus.Fields{
		"id":     id,
		"remote": remoteAddr,
	}).Info("client connected")

	// the only frame the server originates unprompted
	ws.respond(sess, messages.NewIdentityAssigned(id))

	pongTimeout := config.Parameters.PongTimeout()
	wsConn.SetReadLimit(maxMessageSize)
	wsConn.SetReadDeadline(time.Now().Add(pongTimeout))
	wsConn.SetPongHandler(func(string) error {
		wsConn.SetReadDeadline(time.Now().Add(pongTimeout))
		sess.UpdateLastReadTime()
		return nil
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(config.Parameters.PingInterval())
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := sess.Ping(); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	limiter := ratelimiter.GetLimiter("ws:"+remoteAddr, config.Parameters.WsIPRateLimit, int(config.Parameters.WsIPRateBurst))

	for {
		messageType, bysMsg, err := wsConn.ReadMessage()
		if err != nil {
			logrus.WithField("id", sess.GetSessionId()).Debugf("websocket read message error: %v", err)
			break
		}

		wsConn.SetReadDeadline(time.Now().Add(pongTimeout))
		sess.UpdateLastReadTime()

		if config.Parameters.WsIPRateLimit > 0 && !limiter.Allow() {
			logrus.WithField("remote", remoteAddr).Warn("inbound frame rate limit exceeded, dropping frame")
			continue
		}

		err = ws.OnDataHandle(sess, messageType, bysMsg)
		if err != nil {
			logrus.WithField("id", sess.GetSessionId()).Error(err)
		}
	}
}

// OnDataHandle classifies one inbound frame and dispatches it. Malformed or
// rejected frames produce an error frame for the originating client and no
// state change.
func (ws *WsServer) OnDataHandle(curSession *session.Session, messageType int, bysMsg []byte) error {
	if messageType != websocket.TextMessage {
		ws.respondError(curSession, common.ILLEGAL_DATAFORMAT)
		return fmt.Errorf("unsupported websocket message type %v", messageType)
	}

	var envelope messages.Envelope
	if err := json.Unmarshal(bysMsg, &envelope); err != nil {
		ws.respondError(curSession, common.ILLEGAL_DATAFORMAT)
		return fmt.Errorf("websocket OnDataHandle: %v", err)
	}

	action, ok := ws.actionMap[envelope.Type]
	if !ok {
		ws.respondError(curSession, common.INVALID_METHOD)
		return nil
	}

	if err := action(curSession, bysMsg); err != nil {
		ws.respondError(curSession, common.CodeOf(err))
		if common.CodeOf(err) == common.INTERNAL_ERROR {
			return err
		}
		logrus.WithFields(logrus.Fields{
			"id":     curSession.GetSessionId(),
			"action": envelope.Type,
		}).Debugf("rejected frame: %v", err)
	}

	return nil
}

func (ws *WsServer) handleRegisterKey(sess *session.Session, raw []byte) error {
	var req messages.RegisterKey
	if err := json.Unmarshal(raw, &req); err != nil || req.PublicKeyBlob == "" {
		return common.NewStatusError(common.INVALID_PARAMS)
	}

	// opaque blob, stored as-is and only ever forwarded
	sess.SetPubKeyBlob(req.PublicKeyBlob)
	ws.respond(sess, messages.NewKeyRegistered())
	return nil
}

func (ws *WsServer) handleFriendRequest(sess *session.Session, raw []byte) error {
	var req messages.FriendRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return common.NewStatusError(common.INVALID_PARAMS)
	}
	toID := NormalizeID(req.ToID)
	if toID == "" {
		return common.NewStatusError(common.INVALID_PARAMS)
	}

	// liveness is owned by the registry, not the friend store
	target := ws.SessionList.GetSessionById(toID)
	if target == nil {
		return common.NewStatusError(common.UNKNOWN_TARGET)
	}

	fromID := sess.GetSessionId()
	if err := ws.FriendStore.Request(fromID, toID); err != nil {
		return err
	}

	ws.respond(target, messages.NewFriendRequestIncoming(fromID))
	ws.respond(sess, messages.NewFriendRequestSent(toID))
	return nil
}

func (ws *WsServer) handleFriendResponse(sess *session.Session, raw []byte) error {
	var req messages.FriendResponse
	if err := json.Unmarshal(raw, &req); err != nil {
		return common.NewStatusError(common.INVALID_PARAMS)
	}
	requesterID := NormalizeID(req.FromID)
	if requesterID == "" {
		return common.NewStatusError(common.INVALID_PARAMS)
	}

	responderID := sess.GetSessionId()
	if err := ws.FriendStore.Respond(responderID, requesterID, req.Accept); err != nil {
		return err
	}

	requester := ws.SessionList.GetSessionById(requesterID)
	if requester != nil {
		peerKey := ""
		if req.Accept {
			peerKey = sess.GetPubKeyBlob()
		}
		ws.respond(requester, messages.NewFriendResponseResult(responderID, req.Accept, peerKey))
	}

	if req.Accept {
		requesterKey := ""
		if requester != nil {
			requesterKey = requester.GetPubKeyBlob()
		}
		ws.respond(sess, messages.NewFriendAdded(requesterID, requesterKey))
	}
	return nil
}

func (ws *WsServer) handleMessage(sess *session.Session, raw []byte) error {
	var req messages.ChatMessage
	if err := json.Unmarshal(raw, &req); err != nil {
		return common.NewStatusError(common.INVALID_PARAMS)
	}
	toID := NormalizeID(req.ToID)
	if toID == "" {
		return common.NewStatusError(common.INVALID_PARAMS)
	}

	return ws.routeMessage(sess, toID, req.Ciphertext)
}

func (ws *WsServer) handleGetFriends(sess *session.Session, raw []byte) error {
	id := sess.GetSessionId()
	friendIDs := ws.FriendStore.Friends(id)

	infos := make([]messages.FriendInfo, 0, len(friendIDs))
	for _, friendID := range friendIDs {
		info := messages.FriendInfo{ID: friendID}
		if friendSess := ws.SessionList.GetSessionById(friendID); friendSess != nil {
			info.PublicKeyBlob = friendSess.GetPubKeyBlob()
		}
		infos = append(infos, info)
	}

	ws.respond(sess, messages.NewFriendsList(infos))
	return nil
}

func (ws *WsServer) handlePing(sess *session.Session, raw []byte) error {
	ws.respond(sess, messages.NewPong())
	return nil
}

func (ws *WsServer) cleanupSession(sess *session.Session) {
	id := sess.GetSessionId()
	ws.SessionList.CloseSession(sess)
	if id == "" {
		return
	}
	ws.FriendStore.Disconnect(id)
	ws.allocator.Release(id)
	logrus.WithField("id", id).Info("client disconnected")
}

func (ws *WsServer) respond(sess *session.Session, frame interface{}) {
	data, err := json.Marshal(frame)
	if err != nil {
		logrus.WithError(err).Error("websocket response marshal")
		return
	}
	if err := sess.SendText(data); err != nil {
		logrus.WithField("id", sess.GetSessionId()).Debugf("websocket response: %v", err)
	}
}

func (ws *WsServer) respondError(sess *session.Session, code common.ErrCode) {
	ws.respond(sess, messages.NewError(code))
}

// NormalizeID upper-cases and trims a client supplied identity so lookups are
// case insensitive, the way ids are displayed to users.
func NormalizeID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}
