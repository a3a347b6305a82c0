// Package friends tracks pending friend requests and accepted friendships
// between live identities. It owns relationship state only; liveness is owned
// by the connection registry and checked by the dispatcher before requests
// reach this store.
package friends

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	orderedmap "github.com/wk8/go-ordered-map"

	"github.com/xsukax/securechat/api/common"
)

// Store holds the relationship tables. friendships maps an identity to the
// ordered set of its accepted friends (insertion order is acceptance order,
// which keeps friends_list responses stable). pending maps a recipient
// identity to the ordered set of requester identities.
type Store struct {
	sync.RWMutex
	friendships map[string]*orderedmap.OrderedMap // id -> friend id -> struct{}
	pending     map[string]*orderedmap.OrderedMap // to id -> from id -> time.Time
}

func NewStore() *Store {
	return &Store{
		friendships: make(map[string]*orderedmap.OrderedMap),
		pending:     make(map[string]*orderedmap.OrderedMap),
	}
}

// Request records a pending request from fromID to toID. A duplicate request
// while one is pending is rejected, as is a request to an existing friend or
// to oneself. At most one pending request per ordered (from, to) pair.
func (s *Store) Request(fromID, toID string) error {
	if fromID == toID {
		return common.NewStatusError(common.SELF_REQUEST)
	}

	s.Lock()
	defer s.Unlock()

	if s.areFriendsLocked(fromID, toID) {
		return common.NewStatusError(common.ALREADY_FRIENDS)
	}

	incoming := s.pending[toID]
	if incoming == nil {
		incoming = orderedmap.New()
		s.pending[toID] = incoming
	}
	if _, ok := incoming.Get(fromID); ok {
		return common.NewStatusError(common.DUPLICATE_REQUEST)
	}
	incoming.Set(fromID, time.Now())

	logrus.WithFields(logrus.Fields{
		"from": fromID,
		"to":   toID,
	}).Info("friend request pending")

	return nil
}

// Respond resolves the pending request from requesterID directed at
// responderID. Accepting inserts mutual friendship entries; declining leaves
// no residual state. Either way the pending request is removed, so a second
// respond for the same pair fails with NO_SUCH_REQUEST.
func (s *Store) Respond(responderID, requesterID string, accept bool) error {
	s.Lock()
	defer s.Unlock()

	incoming := s.pending[responderID]
	if incoming == nil {
		return common.NewStatusError(common.NO_SUCH_REQUEST)
	}
	if _, ok := incoming.Get(requesterID); !ok {
		return common.NewStatusError(common.NO_SUCH_REQUEST)
	}
	incoming.Delete(requesterID)
	if incoming.Len() == 0 {
		delete(s.pending, responderID)
	}

	if accept {
		s.friendSetLocked(responderID).Set(requesterID, struct{}{})
		s.friendSetLocked(requesterID).Set(responderID, struct{}{})
	}

	logrus.WithFields(logrus.Fields{
		"responder": responderID,
		"requester": requesterID,
		"accepted":  accept,
	}).Info("friend request resolved")

	return nil
}

// AreFriends reports whether a and b have an accepted relationship. The check
// is symmetric, and holds as long as either party's table still lists the
// other: a disconnect drops only the departing side's table.
func (s *Store) AreFriends(a, b string) bool {
	s.RLock()
	defer s.RUnlock()
	return s.areFriendsLocked(a, b)
}

// Friends returns id's accepted friends in acceptance order.
func (s *Store) Friends(id string) []string {
	s.RLock()
	defer s.RUnlock()

	set := s.friendships[id]
	if set == nil {
		return nil
	}
	out := make([]string, 0, set.Len())
	for pair := set.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key.(string))
	}
	return out
}

// HasPending reports whether a request from fromID to toID is pending.
func (s *Store) HasPending(toID, fromID string) bool {
	s.RLock()
	defer s.RUnlock()

	incoming := s.pending[toID]
	if incoming == nil {
		return false
	}
	_, ok := incoming.Get(fromID)
	return ok
}

// Disconnect cancels id's pending requests in both directions and drops its
// own friendship table. Friends' tables still listing id are left alone: the
// relationship logically persists until the surviving party disconnects too.
func (s *Store) Disconnect(id string) {
	s.Lock()
	defer s.Unlock()

	delete(s.pending, id)
	for toID, incoming := range s.pending {
		incoming.Delete(id)
		if incoming.Len() == 0 {
			delete(s.pending, toID)
		}
	}

	delete(s.friendships, id)
}

func (s *Store) areFriendsLocked(a, b string) bool {
	if set := s.friendships[a]; set != nil {
		if _, ok := set.Get(b); ok {
			return true
		}
	}
	if set := s.friendships[b]; set != nil {
		if _, ok := set.Get(a); ok {
			return true
		}
	}
	return false
}

func (s *Store) friendSetLocked(id string) *orderedmap.OrderedMap {
	set := s.friendships[id]
	if set == nil {
		set = orderedmap.New()
		s.friendships[id] = set
	}
	return set
}
