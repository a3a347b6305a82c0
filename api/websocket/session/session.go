package session

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pborman/uuid"
)

const (
	writeTimeout = 10 * time.Second
)

// Session is the server side state of one live client connection. The
// websocket handle is owned exclusively by the session list; all writes go
// through Send, which serializes concurrent writers.
type Session struct {
	sync.Mutex
	ws           *websocket.Conn
	sSessionId   string
	pubKeyBlob   string
	remoteAddr   string
	lastReadTime time.Time
}

func (s *Session) GetSessionId() string {
	s.Lock()
	defer s.Unlock()
	return s.sSessionId
}

func newSession(wsConn *websocket.Conn, remoteAddr string) (session *Session, err error) {
	sSessionId := uuid.NewUUID().String()
	session = &Session{
		ws:           wsConn,
		sSessionId:   sSessionId,
		remoteAddr:   remoteAddr,
		lastReadTime: time.Now(),
	}
	return session, nil
}

func (s *Session) close() {
	s.Lock()
	defer s.Unlock()
	if s.ws != nil {
		s.ws.Close()
		s.ws = nil
	}
	s.sSessionId = ""
}

func (s *Session) Send(msgType int, data []byte) error {
	s.Lock()
	defer s.Unlock()
	if s.ws == nil {
		return errors.New("websocket is null")
	}
	s.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.ws.WriteMessage(msgType, data)
}

func (s *Session) SendText(data []byte) error {
	return s.Send(websocket.TextMessage, data)
}

func (s *Session) Ping() error {
	return s.Send(websocket.PingMessage, nil)
}

func (s *Session) SetSessionId(sessionId string) {
	s.Lock()
	defer s.Unlock()
	s.sSessionId = sessionId
}

// SetPubKeyBlob stores the client supplied public key blob. The blob is
// opaque; it is never parsed or validated, only forwarded to friends.
func (s *Session) SetPubKeyBlob(blob string) {
	s.Lock()
	defer s.Unlock()
	s.pubKeyBlob = blob
}

func (s *Session) GetPubKeyBlob() string {
	s.Lock()
	defer s.Unlock()
	return s.pubKeyBlob
}

func (s *Session) GetRemoteAddr() string {
	return s.remoteAddr
}

func (s *Session) UpdateLastReadTime() {
	s.Lock()
	defer s.Unlock()
	s.lastReadTime = time.Now()
}

func (s *Session) GetLastReadTime() time.Time {
	s.Lock()
	defer s.Unlock()
	return s.lastReadTime
}
