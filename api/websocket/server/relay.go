package server

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/xsukax/securechat/api/common"
	"github.com/xsukax/securechat/api/websocket/messages"
	"github.com/xsukax/securechat/api/websocket/session"
)

// routeMessage forwards opaque ciphertext from the sender to toID. Delivery
// requires an accepted friendship and a live recipient; there is no
// store-and-forward, a message to an offline recipient is dropped. The
// ciphertext is never inspected, logged or transformed.
func (ws *WsServer) routeMessage(sender *session.Session, toID, ciphertext string) error {
	fromID := sender.GetSessionId()

	if !ws.FriendStore.AreFriends(fromID, toID) {
		return common.NewStatusError(common.NOT_FRIENDS)
	}

	target := ws.SessionList.GetSessionById(toID)
	if target == nil {
		return common.NewStatusError(common.RECIPIENT_OFFLINE)
	}

	timestamp := unixSeconds(time.Now())

	// one Send per message: delivered exactly once, and per-sender order is
	// preserved because this runs synchronously in the sender's reader
	ws.respond(target, messages.NewMessageIncoming(fromID, ciphertext, timestamp))

	logrus.WithFields(logrus.Fields{
		"from": fromID,
		"to":   toID,
	}).Debug("message routed")

	ws.respond(sender, messages.NewMessageSent(toID, timestamp))
	return nil
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
