// Package messages defines the wire frames exchanged over the websocket. All
// frames are JSON text messages discriminated by a `type` field. The
// ciphertext and public key blob fields are opaque strings: the relay stores
// and forwards them, never parses them.
package messages

import (
	"github.com/xsukax/securechat/api/common"
)

// Client to server frame types.
const (
	TypeRegisterKey    = "register_key"
	TypeFriendRequest  = "friend_request"
	TypeFriendResponse = "friend_response"
	TypeMessage        = "message"
	TypeGetFriends     = "get_friends"
	TypePing           = "ping"
)

// Server to client frame types.
const (
	TypeIdentityAssigned      = "identity_assigned"
	TypeKeyRegistered         = "key_registered"
	TypeFriendRequestSent     = "friend_request_sent"
	TypeFriendRequestIncoming = "friend_request_incoming"
	TypeFriendResponseResult  = "friend_response_result"
	TypeFriendAdded           = "friend_added"
	TypeMessageSent           = "message_sent"
	TypeMessageIncoming       = "message_incoming"
	TypeFriendsList           = "friends_list"
	TypePong                  = "pong"
	TypeError                 = "error"
)

// Envelope carries only the discriminator; the dispatcher decodes it first,
// then unmarshals the concrete frame for the type.
type Envelope struct {
	Type string `json:"type"`
}

type RegisterKey struct {
	PublicKeyBlob string `json:"public_key_blob"`
}

type FriendRequest struct {
	ToID string `json:"to_id"`
}

type FriendResponse struct {
	FromID string `json:"from_id"`
	Accept bool   `json:"accept"`
}

type ChatMessage struct {
	ToID       string `json:"to_id"`
	Ciphertext string `json:"ciphertext"`
}

type IdentityAssigned struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type KeyRegistered struct {
	Type string `json:"type"`
}

type FriendRequestSent struct {
	Type string `json:"type"`
	ToID string `json:"to_id"`
}

type FriendRequestIncoming struct {
	Type   string `json:"type"`
	FromID string `json:"from_id"`
}

type FriendResponseResult struct {
	Type     string `json:"type"`
	PeerID   string `json:"peer_id"`
	Accepted bool   `json:"accepted"`
	PeerKey  string `json:"peer_key,omitempty"`
}

type FriendAdded struct {
	Type    string `json:"type"`
	PeerID  string `json:"peer_id"`
	PeerKey string `json:"peer_key,omitempty"`
}

type MessageSent struct {
	Type      string  `json:"type"`
	ToID      string  `json:"to_id"`
	Timestamp float64 `json:"timestamp"`
}

// MessageIncoming delivers routed ciphertext to the recipient. Timestamp is
// Unix seconds as a float, matching what existing clients expect.
type MessageIncoming struct {
	Type       string  `json:"type"`
	FromID     string  `json:"from_id"`
	Ciphertext string  `json:"ciphertext"`
	Timestamp  float64 `json:"timestamp"`
}

type FriendInfo struct {
	ID            string `json:"id"`
	PublicKeyBlob string `json:"public_key_blob,omitempty"`
}

type FriendsList struct {
	Type    string       `json:"type"`
	Friends []FriendInfo `json:"friends"`
}

type Pong struct {
	Type string `json:"type"`
}

type Error struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewIdentityAssigned(id string) *IdentityAssigned {
	return &IdentityAssigned{Type: TypeIdentityAssigned, ID: id}
}

func NewKeyRegistered() *KeyRegistered {
	return &KeyRegistered{Type: TypeKeyRegistered}
}

func NewFriendRequestSent(toID string) *FriendRequestSent {
	return &FriendRequestSent{Type: TypeFriendRequestSent, ToID: toID}
}

func NewFriendRequestIncoming(fromID string) *FriendRequestIncoming {
	return &FriendRequestIncoming{Type: TypeFriendRequestIncoming, FromID: fromID}
}

func NewFriendResponseResult(peerID string, accepted bool, peerKey string) *FriendResponseResult {
	return &FriendResponseResult{Type: TypeFriendResponseResult, PeerID: peerID, Accepted: accepted, PeerKey: peerKey}
}

func NewFriendAdded(peerID, peerKey string) *FriendAdded {
	return &FriendAdded{Type: TypeFriendAdded, PeerID: peerID, PeerKey: peerKey}
}

func NewMessageSent(toID string, timestamp float64) *MessageSent {
	return &MessageSent{Type: TypeMessageSent, ToID: toID, Timestamp: timestamp}
}

func NewMessageIncoming(fromID, ciphertext string, timestamp float64) *MessageIncoming {
	return &MessageIncoming{Type: TypeMessageIncoming, FromID: fromID, Ciphertext: ciphertext, Timestamp: timestamp}
}

func NewFriendsList(friends []FriendInfo) *FriendsList {
	return &FriendsList{Type: TypeFriendsList, Friends: friends}
}

func NewPong() *Pong {
	return &Pong{Type: TypePong}
}

func NewError(code common.ErrCode) *Error {
	return &Error{Type: TypeError, Code: common.ErrName[code], Message: common.ErrMessage[code]}
}
