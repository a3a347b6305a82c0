package dashboard

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/xsukax/securechat/api/websocket/server"
	"github.com/xsukax/securechat/config"
)

var (
	relay  *server.WsServer
	isInit = false
	app    *gin.Engine
)

func Init(ws *server.WsServer) {
	isInit = true
	relay = ws
}

// Start serves the read-only status web service. It exposes no relay state
// beyond counters; identities, relationships and payloads stay private.
func Start() {
	if config.Parameters.WebServicePort == 0 {
		return
	}

	gin.SetMode(gin.ReleaseMode)
	app = gin.New()
	app.Use(gin.Recovery())
	app.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		logrus.Debugf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"",
			param.ClientIP,
			param.TimeStamp.Format(time.RFC1123),
			param.Method,
			param.Path,
			param.Request.Proto,
			param.StatusCode,
			param.Latency,
			param.Request.UserAgent(),
			param.ErrorMessage,
		)
		return ""
	}))

	router := app.Group("/api/v1")
	router.GET("/node/status", func(context *gin.Context) {
		if !isInit {
			context.JSON(http.StatusServiceUnavailable, gin.H{"status": "starting"})
			return
		}
		context.JSON(http.StatusOK, gin.H{
			"version":       config.Version,
			"uptime":        time.Since(relay.StartTime).Seconds(),
			"session_count": relay.SessionList.GetSessionCount(),
		})
	})

	// 404 router
	app.Use(func(context *gin.Context) {
		context.JSON(http.StatusNotFound, "not found")
	})

	err := app.Run(":" + strconv.Itoa(int(config.Parameters.WebServicePort)))
	if err != nil {
		logrus.WithError(err).Error("status web service")
	}
}
