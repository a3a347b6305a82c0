package session

import (
	"errors"
	"sync"

	"github.com/gorilla/websocket"
)

// SessionList is the connection registry: it owns the mapping from session id
// (a provisional uuid at first, the assigned identity after registration) to
// the live session. At most one session per id.
type SessionList struct {
	sync.RWMutex
	mapOnlineList map[string]*Session // key is session id
}

func NewSessionList() *SessionList {
	return &SessionList{
		mapOnlineList: make(map[string]*Session),
	}
}

func (sl *SessionList) NewSession(wsConn *websocket.Conn, remoteAddr string) (*Session, error) {
	session, err := newSession(wsConn, remoteAddr)
	if err != nil {
		return nil, err
	}
	err = sl.addOnlineSession(session)
	if err != nil {
		return nil, err
	}
	return session, nil
}

// CloseSession removes the session from the registry and closes its
// transport. Safe to call more than once for the same session.
func (sl *SessionList) CloseSession(session *Session) error {
	if session == nil {
		return errors.New("session is nil")
	}
	sl.removeSession(session)
	session.close()
	return nil
}

func (sl *SessionList) addOnlineSession(session *Session) error {
	sessionId := session.GetSessionId()
	if sessionId == "" {
		return errors.New("session id is empty")
	}
	sl.Lock()
	defer sl.Unlock()
	if _, ok := sl.mapOnlineList[sessionId]; ok {
		return errors.New("session id already registered")
	}
	sl.mapOnlineList[sessionId] = session
	return nil
}

func (sl *SessionList) removeSession(session *Session) {
	sl.Lock()
	defer sl.Unlock()
	sessionId := session.GetSessionId()
	if s, ok := sl.mapOnlineList[sessionId]; ok && s == session {
		delete(sl.mapOnlineList, sessionId)
	}
}

func (sl *SessionList) GetSessionById(sSessionId string) *Session {
	sl.RLock()
	defer sl.RUnlock()
	return sl.mapOnlineList[sSessionId]
}

func (sl *SessionList) IsLive(sSessionId string) bool {
	sl.RLock()
	defer sl.RUnlock()
	_, ok := sl.mapOnlineList[sSessionId]
	return ok
}

func (sl *SessionList) GetSessionCount() int {
	sl.RLock()
	defer sl.RUnlock()
	return len(sl.mapOnlineList)
}

func (sl *SessionList) ForEachSession(visit func(*Session)) {
	sl.RLock()
	defer sl.RUnlock()
	for _, session := range sl.mapOnlineList {
		visit(session)
	}
}

// ChangeSessionToID rebinds a session from its provisional id to the assigned
// identity. The new id must not be taken.
func (sl *SessionList) ChangeSessionToID(sessionId, newId string) (*Session, error) {
	sl.Lock()
	defer sl.Unlock()

	session, ok := sl.mapOnlineList[sessionId]
	if !ok {
		return nil, errors.New("session not exists")
	}
	if _, ok := sl.mapOnlineList[newId]; ok {
		return nil, errors.New("target session id already registered")
	}

	delete(sl.mapOnlineList, sessionId)
	session.SetSessionId(newId)
	sl.mapOnlineList[newId] = session

	return session, nil
}
