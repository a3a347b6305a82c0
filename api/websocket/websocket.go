package websocket

import (
	"github.com/xsukax/securechat/api/websocket/server"
)

var ws *server.WsServer

func NewServer() *server.WsServer {
	ws = server.InitWsServer()
	return ws
}

func GetServer() *server.WsServer {
	return ws
}
